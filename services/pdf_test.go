package services

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pjc-admin/statistiques-api/models"
)

func TestPDFGenerate_GlobalOnlyIsOnePage(t *testing.T) {
	opts := models.ExportOptions{Format: models.FormatPDF, Annee: 2024}
	file, err := NewPDFGenerator(1.3, 70).Generate(exportFixture(2024, true), opts)
	require.NoError(t, err)

	assert.Equal(t, 1, file.Pages)
	assert.Equal(t, "statistiques_pjc_2025-03-14.pdf", file.Filename)
	assert.True(t, bytes.HasPrefix(file.Content, []byte("%PDF")))
}

func TestPDFGenerate_AnnualAddsPages(t *testing.T) {
	opts := models.ExportOptions{
		Format:                   models.FormatPDF,
		Annee:                    2024,
		IncludeAnnualStats:       true,
		IncludeRedacteurTable:    true,
		IncludeCirconstanceTable: true,
		IncludeRegionTable:       true,
	}
	file, err := NewPDFGenerator(1.2, 60).Generate(exportFixture(2024, true), opts)
	require.NoError(t, err)

	// synthèse, graphique, détail budget seul, répartitions (+ régions sur la même page)
	assert.Equal(t, 5, file.Pages)
	assert.Equal(t, "statistiques_pjc_avec_2024_2025-03-14.pdf", file.Filename)
}

func TestPDFGenerate_AnnualWithoutBudget(t *testing.T) {
	opts := models.ExportOptions{Format: models.FormatPDF, Annee: models.AllYears, IncludeAnnualStats: true}
	file, err := NewPDFGenerator(1.3, 70).Generate(exportFixture(models.AllYears, false), opts)
	require.NoError(t, err)

	assert.Equal(t, 2, file.Pages)
}

func TestPDFGenerate_GreedyPacking(t *testing.T) {
	block := func(height float64) func(*PDFDoc, SectionInput, float64) (float64, error) {
		return func(_ *PDFDoc, _ SectionInput, y float64) (float64, error) {
			return y + height, nil
		}
	}
	gen := NewPDFGenerator(1.3, 70).WithSections([]Section{
		{Name: "a", Render: block(60)},
		{Name: "b", Render: block(60)},
		{Name: "c", Render: block(60)},
		{Name: "skipped", Available: func(SectionInput) bool { return false }, Render: block(500)},
		{Name: "d", Render: block(20)},
		{Name: "e", StartsPage: true, Render: block(10)},
	})

	file, err := gen.Generate(exportFixture(2024, false), models.ExportOptions{Format: models.FormatPDF, Annee: 2024})
	require.NoError(t, err)

	// a: 15->75, b: 83->143, c: 151->211, d dépasse 160 -> page 2, e force la page 3
	assert.Equal(t, 3, file.Pages)
}

func TestPDFGenerate_SectionErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	gen := NewPDFGenerator(1.3, 70).WithSections([]Section{
		{Name: "broken", Render: func(*PDFDoc, SectionInput, float64) (float64, error) { return 0, boom }},
	})

	file, err := gen.Generate(exportFixture(2024, false), models.ExportOptions{Format: models.FormatPDF})
	assert.Nil(t, file)
	assert.ErrorIs(t, err, boom)
}

// sectionPages renders the default layout and records the page each
// section was drawn on.
func sectionPages(t *testing.T, data *models.ExportData, opts models.ExportOptions) (map[string]int, int) {
	t.Helper()
	pages := map[string]int{}
	var sections []Section
	for _, sec := range DefaultSections() {
		sec := sec
		render := sec.Render
		sec.Render = func(d *PDFDoc, in SectionInput, y float64) (float64, error) {
			pages[sec.Name] = d.pdf.PageNo()
			return render(d, in, y)
		}
		sections = append(sections, sec)
	}
	file, err := NewPDFGenerator(1.3, 70).WithSections(sections).Generate(data, opts)
	require.NoError(t, err)
	return pages, file.Pages
}

func TestPDFGenerate_BudgetDetailKeepsItsPage(t *testing.T) {
	opts := models.ExportOptions{
		Format:             models.FormatPDF,
		Annee:              2024,
		IncludeAnnualStats: true,
		IncludeRegionTable: true,
	}
	pages, total := sectionPages(t, exportFixture(2024, true), opts)

	assert.Equal(t, map[string]int{
		"titre":            1,
		"global":           1,
		"synthese":         2,
		"budget-graphique": 3,
		"budget-detail":    4,
		"regions":          5,
	}, pages)
	assert.Equal(t, 5, total)
}

func TestPDFGenerate_RegionsFollowBreakdowns(t *testing.T) {
	opts := models.ExportOptions{
		Format:                models.FormatPDF,
		Annee:                 2024,
		IncludeAnnualStats:    true,
		IncludeRedacteurTable: true,
		IncludeRegionTable:    true,
	}
	pages, _ := sectionPages(t, exportFixture(2024, true), opts)

	assert.Equal(t, 4, pages["budget-detail"])
	assert.Equal(t, 5, pages["repartitions"])
	assert.Equal(t, pages["repartitions"], pages["regions"])
}

func TestGlobalRows_FoldsOldestYears(t *testing.T) {
	parAnnee := map[int]models.GlobalYearRow{}
	for year := 2001; year <= 2030; year++ {
		parAnnee[year] = models.GlobalYearRow{NbBeneficiaires: 1, MontantGageHT: 10}
	}
	parAnnee[models.AllYears] = models.GlobalYearRow{NbBeneficiaires: 999}

	rows := globalRows(parAnnee, 10)
	require.Len(t, rows, 10)
	assert.Equal(t, "Avant 2022", rows[0].label)
	assert.Equal(t, 21, rows[0].row.NbBeneficiaires)
	assert.InDelta(t, 210.0, rows[0].row.MontantGageHT, 1e-9)
	assert.Equal(t, "2022", rows[1].label)
	assert.Equal(t, "2030", rows[9].label)

	assert.Len(t, globalRows(parAnnee, 40), 30)
}

func TestPDFGenerate_ManyYearsStayOnFirstPage(t *testing.T) {
	data := exportFixture(2024, false)
	for year := 1990; year <= 2030; year++ {
		data.Global.ParAnnee[year] = models.GlobalYearRow{NbBeneficiaires: year, MontantGageHT: 1000}
	}
	pages, total := sectionPages(t, data, models.ExportOptions{Format: models.FormatPDF, Annee: 2024})

	assert.Equal(t, 1, pages["global"])
	assert.Equal(t, 1, total)
}

func TestTruncateBreakdown(t *testing.T) {
	rows := RankBreakdown(map[string]int{"a": 5, "b": 4, "c": 3, "d": 2, "e": 1})

	out := truncateBreakdown(rows, 3)
	require.Len(t, out, 3)
	assert.Equal(t, "Autres (3)", out[2].Label)
	assert.Equal(t, 6, out[2].Count)
	assert.InDelta(t, 0.4, out[2].Percentage, 1e-9)

	assert.Equal(t, rows, truncateBreakdown(rows, 10))
}

func TestRenderBudgetChart(t *testing.T) {
	img, err := RenderBudgetChart(budgetFixture(2024), 1.2, 60)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, []byte{0xFF, 0xD8}), "jpeg magic")

	_, err = RenderBudgetChart(&models.BudgetAnnuel{ParMois: budgetFixture(2024).ParMois[:1]}, 1.2, 60)
	assert.ErrorIs(t, err, ErrNoChartData)
}
