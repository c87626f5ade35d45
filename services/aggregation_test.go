package services

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pjc-admin/statistiques-api/models"
)

func TestCalculateVariation(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		previous float64
		want     *models.Variation
	}{
		{"zero to zero", 0, 0, nil},
		{"from zero", 50, 0, &models.Variation{Value: "100", Direction: models.DirectionUp}},
		{"big increase", 150, 100, &models.Variation{Value: "50.0", Direction: models.DirectionUp, Significant: true}},
		{"threshold decrease", 95, 100, &models.Variation{Value: "5.0", Direction: models.DirectionDown, Significant: true}},
		{"small increase", 102, 100, &models.Variation{Value: "2.0", Direction: models.DirectionUp}},
		{"flat", 100, 100, &models.Variation{Value: "0.0", Direction: models.DirectionUp}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateVariation(tt.current, tt.previous))
		})
	}
}

func fixtureRows() map[int]models.GlobalYearRow {
	return map[int]models.GlobalYearRow{
		2023: {NbBeneficiaires: 40, NbConventions: 20, MontantGageHT: 10000, MontantPaye: 5000, NbReglements: 10},
		2024: {NbBeneficiaires: 60, NbConventions: 30, MontantGageHT: 15000, MontantPaye: 7500, NbReglements: 15},
		2025: {NbBeneficiaires: 30, NbConventions: 15, MontantGageHT: 9000, MontantPaye: 4500, NbReglements: 7},
	}
}

func TestCalculateTotals(t *testing.T) {
	totals := CalculateTotals(fixtureRows())

	assert.Equal(t, models.Totals{
		NbBeneficiaires: 130,
		NbConventions:   65,
		MontantGageHT:   34000,
		MontantPaye:     17000,
		NbReglements:    32,
	}, totals)
}

func TestCalculateTotals_IgnoresAllYearsSentinel(t *testing.T) {
	rows := fixtureRows()
	rows[models.AllYears] = models.GlobalYearRow{MontantGageHT: 1e9}

	assert.Equal(t, 34000.0, CalculateTotals(rows).MontantGageHT)
}

func TestPrepareDataWithVariations(t *testing.T) {
	timeline := PrepareDataWithVariations(fixtureRows())
	require.Len(t, timeline, 3)

	years := []int{timeline[0].Year, timeline[1].Year, timeline[2].Year}
	assert.Equal(t, []int{2023, 2024, 2025}, years)

	assert.NotNil(t, timeline[0].Variations)
	assert.Empty(t, timeline[0].Variations)

	got := []*models.Variation{
		timeline[1].Variations[models.MetricMontantGageHT],
		timeline[2].Variations[models.MetricMontantGageHT],
	}
	want := []*models.Variation{
		{Value: "50.0", Direction: models.DirectionUp, Significant: true},
		{Value: "40.0", Direction: models.DirectionDown, Significant: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("montantGageHT variations mismatch (-want +got):\n%s", diff)
	}
}

func TestPrepareDataWithVariations_JSONShape(t *testing.T) {
	rows := map[int]models.GlobalYearRow{
		2023: {},
		2024: {NbBeneficiaires: 5},
	}
	timeline := PrepareDataWithVariations(rows)

	raw, err := json.Marshal(timeline[0].Variations)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))

	raw, err = json.Marshal(timeline[1].Variations)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"nbBeneficiaires": {"value": "100", "direction": "up", "significant": false},
		"nbConventions": null,
		"montantGageHT": null,
		"montantPaye": null,
		"nbReglements": null
	}`, string(raw))
}

func TestAggregateYears(t *testing.T) {
	a := yearStat(2023, 10000, 40)
	b := yearStat(2024, 15000, 60)
	b.ParRedacteur["Petit"] = 1

	merged := AggregateYears([]models.YearStatistic{*b, *a})

	assert.Equal(t, models.AllYears, merged.Year)
	assert.Equal(t, 25000.0, merged.Finances.MontantGage)
	assert.Equal(t, 100, merged.Beneficiaires.Total)
	assert.Equal(t, 12, merged.ParRedacteur["Durand"])
	assert.Equal(t, 1, merged.ParRedacteur["Petit"])
	assert.Equal(t, models.RegionCount{NbMilitaires: 10, NbBeneficiaires: 22}, merged.ParRegion["Île-de-France"])

	// les entrées ne sont pas modifiées
	assert.Equal(t, 6, a.ParRedacteur["Durand"])
	assert.NotContains(t, a.ParRedacteur, "Petit")
}

func TestRankBreakdown(t *testing.T) {
	rows := RankBreakdown(map[string]int{"b": 2, "a": 2, "c": 6})

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{rows[0].Label, rows[1].Label, rows[2].Label})
	assert.InDelta(t, 0.6, rows[0].Percentage, 1e-9)
	assert.InDelta(t, 0.2, rows[1].Percentage, 1e-9)
}

func TestRankBreakdown_Empty(t *testing.T) {
	assert.Empty(t, RankBreakdown(nil))
	assert.Equal(t, 0.0, RankBreakdown(map[string]int{"x": 0})[0].Percentage)
}

func TestRankRegions(t *testing.T) {
	rows := RankRegions(yearStat(2024, 0, 0).ParRegion)

	require.Len(t, rows, 3)
	assert.Equal(t, "Île-de-France", rows[0].Region)
	assert.Equal(t, "Grand Est", rows[2].Region)
}
