package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pjc-admin/statistiques-api/models"
)

var errBackendDown = errors.New("backend down")

// fakeStatsAPI sert des statistiques en mémoire et compte les appels
type fakeStatsAPI struct {
	mu      sync.Mutex
	years   map[int]*models.YearStatistic
	budgets map[int]*models.BudgetAnnuel
	all     *models.StatsGlobales
	failAll bool
	failing map[int]bool
	calls   map[string]int
}

func newFakeStatsAPI() *fakeStatsAPI {
	return &fakeStatsAPI{
		years:   map[int]*models.YearStatistic{},
		budgets: map[int]*models.BudgetAnnuel{},
		all:     &models.StatsGlobales{},
		failing: map[int]bool{},
		calls:   map[string]int{},
	}
}

func (f *fakeStatsAPI) count(endpoint string) {
	f.mu.Lock()
	f.calls[endpoint]++
	f.mu.Unlock()
}

func (f *fakeStatsAPI) Calls(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[endpoint]
}

func (f *fakeStatsAPI) GetAll(ctx context.Context) (*models.StatsGlobales, error) {
	f.count("all")
	if f.failAll {
		return nil, errBackendDown
	}
	return f.all, nil
}

func (f *fakeStatsAPI) GetByAnnee(ctx context.Context, year int) (*models.YearStatistic, error) {
	f.count("annee")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[year] {
		return nil, &ProviderError{Endpoint: "/statistiques/annee", StatusCode: 500}
	}
	stat, ok := f.years[year]
	if !ok {
		empty := ZeroYearStatistic(year)
		return &empty, nil
	}
	cp := *stat
	return &cp, nil
}

func (f *fakeStatsAPI) GetBudgetByAnnee(ctx context.Context, year int) (*models.BudgetAnnuel, error) {
	f.count("budget")
	b, ok := f.budgets[year]
	if !ok {
		return nil, &ProviderError{Endpoint: "/statistiques/budget", StatusCode: 404}
	}
	cp := *b
	cp.ParMois = append([]models.BudgetMois(nil), b.ParMois...)
	return &cp, nil
}

func yearStat(year int, gage float64, benef int) *models.YearStatistic {
	s := ZeroYearStatistic(year)
	s.Finances = models.Finances{
		MontantGage:   gage,
		MontantPaye:   gage / 2,
		NbConventions: benef / 2,
		NbPaiements:   benef / 4,
	}
	s.Affaires.Total = benef / 3
	s.Militaires.Total = benef / 2
	s.Beneficiaires.Total = benef
	s.ParRedacteur = map[string]int{"Martin": 4, "Durand": 6, "Bernard": 2}
	s.ParCirconstance = map[string]int{"OPEX": 7, "Service courant": 5}
	s.ParRegion = map[string]models.RegionCount{
		"Bretagne":      {NbMilitaires: 3, NbBeneficiaires: 9},
		"Île-de-France": {NbMilitaires: 5, NbBeneficiaires: 11},
		"Grand Est":     {NbMilitaires: 1, NbBeneficiaires: 2},
	}
	return &s
}

func budgetFixture(year int) *models.BudgetAnnuel {
	noms := []string{"Janvier", "Février", "Mars", "Avril"}
	b := &models.BudgetAnnuel{Annee: year}
	for i := len(noms) - 1; i >= 0; i-- {
		m := i + 1
		b.ParMois = append(b.ParMois, models.BudgetMois{
			Mois:    m,
			NomMois: noms[i],
			Gage:    models.MontantNombre{Montant: float64(1000 * m), Nombre: m},
			Paye:    models.MontantNombre{Montant: float64(600 * m), Nombre: 2 * m},
		})
	}
	b.Totaux = models.BudgetTotaux{MontantGage: 10000, MontantPaye: 6000, Ratio: 0.6}
	return b
}

// threeYearFixture is the 2023-2025 reference data set.
func threeYearFixture() *fakeStatsAPI {
	api := newFakeStatsAPI()
	api.years[2023] = yearStat(2023, 10000, 40)
	api.years[2024] = yearStat(2024, 15000, 60)
	api.years[2025] = yearStat(2025, 9000, 30)
	api.budgets[2024] = budgetFixture(2024)
	api.all = &models.StatsGlobales{
		Affaires:      models.Compteur{Total: 999},
		Militaires:    models.Compteur{Total: 888},
		Beneficiaires: models.Compteur{Total: 777},
	}
	return api
}

// newTestStatsService fige l'horloge en 2025 : années candidates 2023 à 2026
func newTestStatsService(api StatistiquesAPI) *StatistiquesService {
	s := NewStatistiquesService(api, SequentialPolicy{}, 2023)
	s.now = func() time.Time { return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC) }
	return s
}
