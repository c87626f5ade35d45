package services

import (
	"math"
	"sort"
	"strconv"

	"github.com/pjc-admin/statistiques-api/models"
)

// TVA appliquée pour passer du HT au TTC
const TauxTVA = 1.2

// SignificantThreshold is the variation (in percent) from which a change is highlighted.
const SignificantThreshold = 5.0

// ============================================================================
// TOTAUX
// ============================================================================

// CalculateTotals sums every year of parAnnee. Years are visited in ascending
// order so floating point sums do not depend on map iteration.
func CalculateTotals(parAnnee map[int]models.GlobalYearRow) models.Totals {
	var totals models.Totals
	for _, year := range sortedYears(parAnnee) {
		row := parAnnee[year]
		totals.NbBeneficiaires += row.NbBeneficiaires
		totals.NbConventions += row.NbConventions
		totals.MontantGageHT += row.MontantGageHT
		totals.MontantPaye += row.MontantPaye
		totals.NbReglements += row.NbReglements
	}
	return totals
}

// sortedYears retourne les années dans l'ordre croissant, sans la sentinelle -1
func sortedYears(parAnnee map[int]models.GlobalYearRow) []int {
	years := make([]int, 0, len(parAnnee))
	for year := range parAnnee {
		if year == models.AllYears {
			continue
		}
		years = append(years, year)
	}
	sort.Ints(years)
	return years
}

// ============================================================================
// VARIATIONS
// ============================================================================

// CalculateVariation compares current with previous. A zero previous value
// yields a flat 100% increase when current is positive and nil otherwise, so
// 0 -> 0 shows no badge at all.
func CalculateVariation(current, previous float64) *models.Variation {
	if previous == 0 {
		if current > 0 {
			return &models.Variation{Value: "100", Direction: models.DirectionUp}
		}
		return nil
	}

	pct := (current - previous) / previous * 100
	direction := models.DirectionUp
	if pct < 0 {
		direction = models.DirectionDown
	}

	return &models.Variation{
		Value:       strconv.FormatFloat(math.Abs(pct), 'f', 1, 64),
		Direction:   direction,
		Significant: math.Abs(pct) >= SignificantThreshold,
	}
}

func metricValues(row models.GlobalYearRow) map[string]float64 {
	return map[string]float64{
		models.MetricNbBeneficiaires: float64(row.NbBeneficiaires),
		models.MetricNbConventions:   float64(row.NbConventions),
		models.MetricMontantGageHT:   row.MontantGageHT,
		models.MetricMontantPaye:     row.MontantPaye,
		models.MetricNbReglements:    float64(row.NbReglements),
	}
}

// PrepareDataWithVariations builds the ascending timeline. Each year is only
// compared with the year right before it; the first year has no variations.
func PrepareDataWithVariations(parAnnee map[int]models.GlobalYearRow) []models.TimelineEntry {
	years := sortedYears(parAnnee)
	timeline := make([]models.TimelineEntry, 0, len(years))

	for i, year := range years {
		entry := models.TimelineEntry{
			Year:       year,
			Data:       parAnnee[year],
			Variations: map[string]*models.Variation{},
		}
		if i > 0 {
			current := metricValues(parAnnee[year])
			previous := metricValues(parAnnee[years[i-1]])
			for metric, value := range current {
				entry.Variations[metric] = CalculateVariation(value, previous[metric])
			}
		}
		timeline = append(timeline, entry)
	}
	return timeline
}

// ============================================================================
// AGRÉGATION PLURIANNUELLE
// ============================================================================

// ZeroYearStatistic retourne un enregistrement vide, utilisé pour les années en échec
func ZeroYearStatistic(year int) models.YearStatistic {
	return models.YearStatistic{
		Year:            year,
		ParRedacteur:    map[string]int{},
		ParCirconstance: map[string]int{},
		ParRegion:       map[string]models.RegionCount{},
		ParDepartement:  map[string]models.RegionCount{},
	}
}

// GlobalRowFromYear projects a year onto the columns of the global tables.
func GlobalRowFromYear(stat models.YearStatistic) models.GlobalYearRow {
	return models.GlobalYearRow{
		NbBeneficiaires: stat.Beneficiaires.Total,
		NbConventions:   stat.Finances.NbConventions,
		MontantGageHT:   stat.Finances.MontantGage,
		MontantPaye:     stat.Finances.MontantPaye,
		NbReglements:    stat.Finances.NbPaiements,
	}
}

// AggregateYears additionne plusieurs années clé par clé (mode "toutes années").
// Inputs are not modified.
func AggregateYears(stats []models.YearStatistic) models.YearStatistic {
	sorted := make([]models.YearStatistic, len(stats))
	copy(sorted, stats)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })

	out := ZeroYearStatistic(models.AllYears)
	for _, s := range sorted {
		out.Finances.MontantGage += s.Finances.MontantGage
		out.Finances.MontantPaye += s.Finances.MontantPaye
		out.Finances.NbConventions += s.Finances.NbConventions
		out.Finances.NbPaiements += s.Finances.NbPaiements
		out.Affaires.Total += s.Affaires.Total
		out.Militaires.Total += s.Militaires.Total
		out.Beneficiaires.Total += s.Beneficiaires.Total

		for k, v := range s.ParRedacteur {
			out.ParRedacteur[k] += v
		}
		for k, v := range s.ParCirconstance {
			out.ParCirconstance[k] += v
		}
		mergeRegions(out.ParRegion, s.ParRegion)
		mergeRegions(out.ParDepartement, s.ParDepartement)
	}
	return out
}

func mergeRegions(dst, src map[string]models.RegionCount) {
	for k, v := range src {
		cur := dst[k]
		cur.NbMilitaires += v.NbMilitaires
		cur.NbBeneficiaires += v.NbBeneficiaires
		dst[k] = cur
	}
}

// ============================================================================
// CLASSEMENTS
// ============================================================================

// RankBreakdown sorts a breakdown by descending count (label order on ties)
// and attaches each share of the total.
func RankBreakdown(counts map[string]int) []models.BreakdownRow {
	sum := 0
	rows := make([]models.BreakdownRow, 0, len(counts))
	for label, count := range counts {
		sum += count
		rows = append(rows, models.BreakdownRow{Label: label, Count: count})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Label < rows[j].Label
	})

	if sum > 0 {
		for i := range rows {
			rows[i].Percentage = float64(rows[i].Count) / float64(sum)
		}
	}
	return rows
}

// RankRegions trie les régions par nombre de militaires décroissant
func RankRegions(regions map[string]models.RegionCount) []models.RegionRow {
	rows := make([]models.RegionRow, 0, len(regions))
	for name, c := range regions {
		rows = append(rows, models.RegionRow{
			Region:          name,
			NbMilitaires:    c.NbMilitaires,
			NbBeneficiaires: c.NbBeneficiaires,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].NbMilitaires != rows[j].NbMilitaires {
			return rows[i].NbMilitaires > rows[j].NbMilitaires
		}
		return rows[i].Region < rows[j].Region
	})
	return rows
}
