package services

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/pjc-admin/statistiques-api/models"
	"github.com/pjc-admin/statistiques-api/utils"
)

// DefaultStartYear est la première année de statistiques PJC disponible
const DefaultStartYear = 2023

type StatistiquesService struct {
	api       StatistiquesAPI
	policy    FetchPolicy
	startYear int
	now       func() time.Time
}

func NewStatistiquesService(api StatistiquesAPI, policy FetchPolicy, startYear int) *StatistiquesService {
	if startYear == 0 {
		startYear = DefaultStartYear
	}
	if policy == nil {
		policy = SequentialPolicy{}
	}
	return &StatistiquesService{
		api:       api,
		policy:    policy,
		startYear: startYear,
		now:       time.Now,
	}
}

// CandidateYears returns every year from the start year up to next year,
// or nothing when the start year is still in the future.
func (s *StatistiquesService) CandidateYears() []int {
	last := s.now().Year() + 1
	if last < s.startYear {
		return []int{}
	}
	years := make([]int, 0, last-s.startYear+1)
	for y := s.startYear; y <= last; y++ {
		years = append(years, y)
	}
	return years
}

// GlobalFetch est le résultat du chargement de toutes les années candidates
type GlobalFetch struct {
	ParAnnee map[int]models.GlobalYearRow
	Details  map[int]models.YearStatistic
	Failed   []int
}

// FetchStatsGlobales issues one request per candidate year. A failed year is
// logged and zero-filled so downstream arithmetic always has a value.
func (s *StatistiquesService) FetchStatsGlobales(ctx context.Context) *GlobalFetch {
	years := s.CandidateYears()
	results := FetchYears(ctx, s.policy, years, s.api.GetByAnnee)

	out := &GlobalFetch{
		ParAnnee: make(map[int]models.GlobalYearRow, len(years)),
		Details:  make(map[int]models.YearStatistic, len(years)),
	}
	for _, year := range years {
		res := results[year]
		stat := ZeroYearStatistic(year)
		if res.Err != nil || res.Stat == nil {
			utils.LogStatsFetch("annee", year, res.Err)
			out.Failed = append(out.Failed, year)
		} else {
			stat = normalizeYear(*res.Stat, year)
		}
		out.Details[year] = stat
		out.ParAnnee[year] = GlobalRowFromYear(stat)
	}
	return out
}

// normalizeYear garantit des maps non nulles
func normalizeYear(stat models.YearStatistic, year int) models.YearStatistic {
	stat.Year = year
	if stat.ParRedacteur == nil {
		stat.ParRedacteur = map[string]int{}
	}
	if stat.ParCirconstance == nil {
		stat.ParCirconstance = map[string]int{}
	}
	if stat.ParRegion == nil {
		stat.ParRegion = map[string]models.RegionCount{}
	}
	if stat.ParDepartement == nil {
		stat.ParDepartement = map[string]models.RegionCount{}
	}
	return stat
}

// GetView builds the statistics page for annee (-1 for every year). The
// global block tolerates failed years; a failure on the selected year (or
// on the all-years snapshot) is returned.
func (s *StatistiquesService) GetView(ctx context.Context, annee int) (*models.StatistiquesView, error) {
	global := s.FetchStatsGlobales(ctx)

	annual, err := s.annualView(ctx, annee, global)
	if err != nil {
		return nil, err
	}

	return BuildView(annee, global.ParAnnee, annual, global.Failed), nil
}

func (s *StatistiquesService) annualView(ctx context.Context, annee int, global *GlobalFetch) (*models.AnnualView, error) {
	if annee == models.AllYears {
		snapshot, err := s.api.GetAll(ctx)
		if err != nil {
			utils.LogStatsFetch("all", annee, err)
			return nil, fmt.Errorf("failed to load statistics for all years: %w", err)
		}

		details := make([]models.YearStatistic, 0, len(global.Details))
		for _, stat := range global.Details {
			details = append(details, stat)
		}
		merged := AggregateYears(details)

		// Les totaux du backend font foi pour les compteurs globaux
		merged.Affaires = snapshot.Affaires
		merged.Militaires = snapshot.Militaires
		merged.Beneficiaires = snapshot.Beneficiaires
		return BuildAnnualView(merged), nil
	}

	if stat, ok := global.Details[annee]; ok && !slices.Contains(global.Failed, annee) {
		return BuildAnnualView(stat), nil
	}

	stat, err := s.api.GetByAnnee(ctx, annee)
	if err != nil {
		utils.LogStatsFetch("annee", annee, err)
		return nil, fmt.Errorf("failed to load statistics for %d: %w", annee, err)
	}
	return BuildAnnualView(normalizeYear(*stat, annee)), nil
}

// GetBudget retourne le détail mensuel du budget d'une année
func (s *StatistiquesService) GetBudget(ctx context.Context, annee int) (*models.BudgetAnnuel, error) {
	if annee == models.AllYears {
		return nil, fmt.Errorf("budget detail requires a single year")
	}
	budget, err := s.api.GetBudgetByAnnee(ctx, annee)
	if err != nil {
		utils.LogStatsFetch("budget", annee, err)
		return nil, fmt.Errorf("failed to load budget for %d: %w", annee, err)
	}
	normalizeBudgetMonths(budget.ParMois)
	sort.SliceStable(budget.ParMois, func(i, j int) bool {
		return budget.ParMois[i].Mois < budget.ParMois[j].Mois
	})
	return budget, nil
}

// ============================================================================
// VIEW MODEL
// ============================================================================

// BuildView assemble l'état complet de la page sans effet de bord
func BuildView(annee int, parAnnee map[int]models.GlobalYearRow, annual *models.AnnualView, failed []int) *models.StatistiquesView {
	return &models.StatistiquesView{
		Annee:      annee,
		IsAllYears: annee == models.AllYears,
		Years:      sortedYears(parAnnee),
		Global: models.GlobalStats{
			ParAnnee: parAnnee,
			Totals:   CalculateTotals(parAnnee),
		},
		DataWithVariations: PrepareDataWithVariations(parAnnee),
		Annual:             annual,
		FailedYears:        failed,
	}
}

// BuildAnnualView projects one YearStatistic (or the all-years merge) onto
// the annual section.
func BuildAnnualView(stat models.YearStatistic) *models.AnnualView {
	return &models.AnnualView{
		Annee:           stat.Year,
		MontantGageHT:   stat.Finances.MontantGage,
		MontantGageTTC:  stat.Finances.MontantGage * TauxTVA,
		MontantPaye:     stat.Finances.MontantPaye,
		NbConventions:   stat.Finances.NbConventions,
		NbPaiements:     stat.Finances.NbPaiements,
		NbAffaires:      stat.Affaires.Total,
		NbMilitaires:    stat.Militaires.Total,
		NbBeneficiaires: stat.Beneficiaires.Total,
		ParRedacteur:    RankBreakdown(stat.ParRedacteur),
		ParCirconstance: RankBreakdown(stat.ParCirconstance),
		ParRegion:       RankRegions(stat.ParRegion),
		ParDepartement:  RankRegions(stat.ParDepartement),
	}
}
