package services

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-pdf/fpdf"

	"github.com/pjc-admin/statistiques-api/models"
	"github.com/pjc-admin/statistiques-api/utils"
)

// Mise en page A4 paysage, en millimètres
const (
	pdfPageWidth  = 297.0
	pdfPageHeight = 210.0
	pdfMargin     = 10.0
	pdfTopY       = 15.0
	pdfContentW   = pdfPageWidth - 2*pdfMargin
	pdfRowHeight  = 6.0
	pdfBlockGap   = 8.0

	// PDFMaxY is the highest yOffset at which a block may still start on the
	// current page.
	PDFMaxY = 160.0

	pdfContentType = "application/pdf"
	chartImageName = "budget-chart"
)

// SectionInput est ce que reçoit chaque section au moment du rendu
type SectionInput struct {
	Data *models.ExportData
	Opts models.ExportOptions
}

// Section is a named block of the PDF with its own renderer. Render draws
// the block starting at y and returns the y just below it.
// A section with Alone set keeps its page: the next block starts a new one.
type Section struct {
	Name       string
	StartsPage bool
	Alone      bool
	Available  func(in SectionInput) bool
	Render     func(doc *PDFDoc, in SectionInput, y float64) (float64, error)
}

// PDFDoc wraps the fpdf document with the helpers shared by sections.
type PDFDoc struct {
	pdf         *fpdf.Fpdf
	tr          func(string) string
	imageScale  float64
	jpegQuality int
}

type PDFGenerator struct {
	sections    []Section
	imageScale  float64
	jpegQuality int
}

func NewPDFGenerator(imageScale float64, jpegQuality int) *PDFGenerator {
	return &PDFGenerator{
		sections:    DefaultSections(),
		imageScale:  imageScale,
		jpegQuality: jpegQuality,
	}
}

// WithSections remplace la liste des sections (ordre = ordre d'affichage)
func (g *PDFGenerator) WithSections(sections []Section) *PDFGenerator {
	g.sections = sections
	return g
}

// Generate composes the sections page by page. Sections that are not
// available are skipped; a rendering error aborts the whole document.
func (g *PDFGenerator) Generate(data *models.ExportData, opts models.ExportOptions) (*models.ExportFile, error) {
	opts = opts.Normalize()
	in := SectionInput{Data: data, Opts: opts}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfTopY, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.SetCreationDate(data.GeneratedAt)

	doc := &PDFDoc{
		pdf:         pdf,
		tr:          pdf.UnicodeTranslatorFromDescriptor(""),
		imageScale:  g.imageScale,
		jpegQuality: g.jpegQuality,
	}
	pdf.SetTitle(doc.tr("Statistiques PJC"), false)
	pdf.AddPage()

	y := pdfTopY
	pageTaken := false
	for _, sec := range g.sections {
		if sec.Available != nil && !sec.Available(in) {
			continue
		}
		if sec.StartsPage || pageTaken || y > PDFMaxY {
			pdf.AddPage()
			y = pdfTopY
		}
		pageTaken = sec.Alone

		end, err := sec.Render(doc, in, y)
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", sec.Name, err)
		}
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("section %s: %w", sec.Name, err)
		}
		y = end + pdfBlockGap
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}

	return &models.ExportFile{
		Filename:    ExportFilename(opts, data.GeneratedAt, "pdf"),
		ContentType: pdfContentType,
		Content:     buf.Bytes(),
		Pages:       pdf.PageCount(),
	}, nil
}

// ============================================================================
// HELPERS DE DESSIN
// ============================================================================

func (d *PDFDoc) heading(x, y float64, text string, size float64) {
	d.pdf.SetFont("Helvetica", "B", size)
	d.pdf.SetTextColor(31, 56, 100)
	d.pdf.SetXY(x, y)
	d.pdf.CellFormat(0, size*0.5, d.tr(text), "", 0, "L", false, 0, "")
	d.pdf.SetTextColor(0, 0, 0)
}

func (d *PDFDoc) note(x, y float64, text string) {
	d.pdf.SetFont("Helvetica", "I", 9)
	d.pdf.SetTextColor(90, 90, 90)
	d.pdf.SetXY(x, y)
	d.pdf.CellFormat(0, 5, d.tr(text), "", 0, "L", false, 0, "")
	d.pdf.SetTextColor(0, 0, 0)
}

// table draws a header row, body rows and an optional totals row; the first
// column is left aligned, the others right aligned.
func (d *PDFDoc) table(x, y float64, widths []float64, headers []string, rows [][]string, totals []string) float64 {
	p := d.pdf
	p.SetDrawColor(166, 166, 166)

	p.SetFont("Helvetica", "B", 9)
	p.SetFillColor(217, 225, 242)
	p.SetXY(x, y)
	for i, h := range headers {
		p.CellFormat(widths[i], pdfRowHeight, d.tr(h), "1", 0, "C", true, 0, "")
	}
	y += pdfRowHeight

	p.SetFont("Helvetica", "", 9)
	for _, r := range rows {
		p.SetXY(x, y)
		for i, v := range r {
			p.CellFormat(widths[i], pdfRowHeight, d.tr(v), "1", 0, align(i), false, 0, "")
		}
		y += pdfRowHeight
	}

	if totals != nil {
		p.SetFont("Helvetica", "B", 9)
		p.SetFillColor(231, 230, 230)
		p.SetXY(x, y)
		for i, v := range totals {
			p.CellFormat(widths[i], pdfRowHeight, d.tr(v), "1", 0, align(i), true, 0, "")
		}
		y += pdfRowHeight
	}
	return y
}

func align(col int) string {
	if col == 0 {
		return "L"
	}
	return "R"
}

// card draws a shaded key figure box.
func (d *PDFDoc) card(x, y, w, h float64, label, value string) {
	p := d.pdf
	p.SetFillColor(242, 242, 242)
	p.SetDrawColor(200, 200, 200)
	p.Rect(x, y, w, h, "FD")

	p.SetFont("Helvetica", "", 9)
	p.SetTextColor(90, 90, 90)
	p.SetXY(x+3, y+3)
	p.CellFormat(w-6, 5, d.tr(label), "", 0, "L", false, 0, "")

	p.SetFont("Helvetica", "B", 13)
	p.SetTextColor(31, 56, 100)
	p.SetXY(x+3, y+10)
	p.CellFormat(w-6, 7, d.tr(value), "", 0, "L", false, 0, "")
	p.SetTextColor(0, 0, 0)
}

type cardValue struct {
	label, value string
}

// cards lays out cards four per row and returns the y below them.
func (d *PDFDoc) cards(y float64, values []cardValue) float64 {
	const perRow = 4
	const gap = 5.0
	const h = 22.0
	w := (pdfContentW - gap*(perRow-1)) / perRow

	for i, c := range values {
		col := i % perRow
		row := i / perRow
		d.card(pdfMargin+float64(col)*(w+gap), y+float64(row)*(h+gap), w, h, c.label, c.value)
	}
	rows := (len(values) + perRow - 1) / perRow
	return y + float64(rows)*(h+gap) - gap
}

// fitRows returns how many table rows fit between y and the bottom margin,
// leaving room for header and totals.
func fitRows(y float64) int {
	n := int((pdfPageHeight-pdfMargin-y)/pdfRowHeight) - 2
	if n < 1 {
		return 1
	}
	return n
}

// ============================================================================
// SECTIONS PAR DÉFAUT
// ============================================================================

// DefaultSections returns the export layout: title and global figures on the
// first page, then the annual pages.
func DefaultSections() []Section {
	return []Section{
		{Name: "titre", Render: renderTitle},
		{Name: "global", Render: renderGlobal},
		{Name: "synthese", StartsPage: true, Available: hasAnnual, Render: renderSummary},
		{Name: "budget-graphique", StartsPage: true, Available: hasBudget, Render: renderBudgetChart},
		{Name: "budget-detail", StartsPage: true, Alone: true, Available: hasBudget, Render: renderBudgetTable},
		{Name: "repartitions", StartsPage: true, Available: hasBreakdowns, Render: renderBreakdowns},
		{Name: "regions", Available: hasRegions, Render: renderRegions},
	}
}

func hasAnnual(in SectionInput) bool {
	return in.Opts.IncludeAnnualStats && in.Data.Annual != nil
}

func hasBudget(in SectionInput) bool {
	return hasAnnual(in) && budgetOf(in.Data) != nil
}

func hasBreakdowns(in SectionInput) bool {
	return hasAnnual(in) && (in.Opts.IncludeRedacteurTable || in.Opts.IncludeCirconstanceTable)
}

func hasRegions(in SectionInput) bool {
	return hasAnnual(in) && in.Opts.IncludeRegionTable && len(in.Data.Annual.ParRegion) > 0
}

func renderTitle(d *PDFDoc, in SectionInput, y float64) (float64, error) {
	d.heading(pdfMargin, y, "Statistiques Protection Juridique Complémentaire", 18)
	d.note(pdfMargin, y+10, "Généré le "+utils.FormatDateTimeFR(in.Data.GeneratedAt))
	return y + 15, nil
}

func renderGlobal(d *PDFDoc, in SectionInput, y float64) (float64, error) {
	d.heading(pdfMargin, y, "Statistiques globales", 13)
	y += 9

	const gap = 5.0
	w := (pdfContentW - 2*gap) / 3
	widths := []float64{w * 0.24, w * 0.38, w * 0.38}

	var benef, gage, depenses [][]string
	totBenef, totConv, totRegl := 0, 0, 0
	totHT, totTTC, totPaye := 0.0, 0.0, 0.0
	for _, yr := range globalRows(in.Data.Global.ParAnnee, fitRows(y+7)) {
		r, label := yr.row, yr.label
		ttc := r.MontantGageHT * TauxTVA

		benef = append(benef, []string{label, utils.FormatNumber(r.NbBeneficiaires), utils.FormatNumber(r.NbConventions)})
		gage = append(gage, []string{label, utils.FormatEuro(r.MontantGageHT), utils.FormatEuro(ttc)})
		depenses = append(depenses, []string{label, utils.FormatNumber(r.NbReglements), utils.FormatEuro(r.MontantPaye)})

		totBenef += r.NbBeneficiaires
		totConv += r.NbConventions
		totRegl += r.NbReglements
		totHT += r.MontantGageHT
		totTTC += ttc
		totPaye += r.MontantPaye
	}

	titles := []string{"Bénéficiaires / Conventions", "Montant Total Gagé", "Dépenses Ordonnées"}
	headers := [][]string{
		{"Année", "Bénéficiaires", "Conventions"},
		{"Année", "Montant HT", "Montant TTC"},
		{"Année", "Règlements", "Montant payé TTC"},
	}
	bodies := [][][]string{benef, gage, depenses}
	totals := [][]string{
		{"Total", utils.FormatNumber(totBenef), utils.FormatNumber(totConv)},
		{"Total", utils.FormatEuro(totHT), utils.FormatEuro(totTTC)},
		{"Total", utils.FormatNumber(totRegl), utils.FormatEuro(totPaye)},
	}

	end := y
	for i := range titles {
		x := pdfMargin + float64(i)*(w+gap)
		d.heading(x, y, titles[i], 10)
		if e := d.table(x, y+7, widths, headers[i], bodies[i], totals[i]); e > end {
			end = e
		}
	}
	return end, nil
}

type labeledYear struct {
	label string
	row   models.GlobalYearRow
}

// globalRows returns one row per year, oldest first. Past limit rows, the
// oldest years are summed into a single "Avant N" row.
func globalRows(parAnnee map[int]models.GlobalYearRow, limit int) []labeledYear {
	years := sortedYears(parAnnee)
	out := make([]labeledYear, 0, len(years))
	if len(years) > limit {
		cut := len(years) - limit + 1
		var older models.GlobalYearRow
		for _, year := range years[:cut] {
			r := parAnnee[year]
			older.NbBeneficiaires += r.NbBeneficiaires
			older.NbConventions += r.NbConventions
			older.MontantGageHT += r.MontantGageHT
			older.MontantPaye += r.MontantPaye
			older.NbReglements += r.NbReglements
		}
		out = append(out, labeledYear{label: "Avant " + strconv.Itoa(years[cut]), row: older})
		years = years[cut:]
	}
	for _, year := range years {
		out = append(out, labeledYear{label: strconv.Itoa(year), row: parAnnee[year]})
	}
	return out
}

func renderSummary(d *PDFDoc, in SectionInput, y float64) (float64, error) {
	a := in.Data.Annual
	title := "Statistiques " + strconv.Itoa(in.Data.Annee)
	if in.Data.IsAllYears {
		title = "Statistiques toutes années"
	}
	d.heading(pdfMargin, y, title, 15)
	y += 12

	return d.cards(y, []cardValue{
		{"Montant gagé HT", utils.FormatEuro(a.MontantGageHT)},
		{"Montant gagé TTC", utils.FormatEuro(a.MontantGageTTC)},
		{"Montant payé TTC", utils.FormatEuro(a.MontantPaye)},
		{"Conventions", utils.FormatNumber(a.NbConventions)},
		{"Paiements", utils.FormatNumber(a.NbPaiements)},
		{"Affaires", utils.FormatNumber(a.NbAffaires)},
		{"Militaires", utils.FormatNumber(a.NbMilitaires)},
		{"Bénéficiaires", utils.FormatNumber(a.NbBeneficiaires)},
	}), nil
}

func renderBudgetChart(d *PDFDoc, in SectionInput, y float64) (float64, error) {
	budget := budgetOf(in.Data)
	d.heading(pdfMargin, y, "Budget "+strconv.Itoa(budget.Annee), 15)
	y += 12

	img, err := RenderBudgetChart(budget, d.imageScale, d.jpegQuality)
	switch {
	case errors.Is(err, ErrNoChartData):
	case err != nil:
		return y, err
	default:
		const h = 105.0
		opt := fpdf.ImageOptions{ImageType: "JPG"}
		d.pdf.RegisterImageOptionsReader(chartImageName, opt, bytes.NewReader(img))
		d.pdf.ImageOptions(chartImageName, pdfMargin, y, pdfContentW, h, false, opt, 0, "")
		y += h + 5
	}

	ratio := 0.0
	if budget.Totaux.MontantGage > 0 {
		ratio = budget.Totaux.MontantPaye / budget.Totaux.MontantGage
	}
	return d.cards(y, []cardValue{
		{"Total gagé", utils.FormatEuro(budget.Totaux.MontantGage)},
		{"Total payé", utils.FormatEuro(budget.Totaux.MontantPaye)},
		{"Taux de paiement", utils.FormatPercent(ratio)},
	}), nil
}

func renderBudgetTable(d *PDFDoc, in SectionInput, y float64) (float64, error) {
	budget := budgetOf(in.Data)
	d.heading(pdfMargin, y, "Détail mensuel du budget "+strconv.Itoa(budget.Annee), 13)
	y += 9

	var rows [][]string
	nbGage, nbPaye := 0, 0
	for _, m := range budget.ParMois {
		rows = append(rows, []string{
			m.NomMois,
			utils.FormatEuro(m.Gage.Montant),
			utils.FormatNumber(m.Gage.Nombre),
			utils.FormatEuro(m.Paye.Montant),
			utils.FormatNumber(m.Paye.Nombre),
		})
		nbGage += m.Gage.Nombre
		nbPaye += m.Paye.Nombre
	}

	w := pdfContentW / 5
	return d.table(pdfMargin, y, []float64{w, w, w, w, w},
		[]string{"Mois", "Montant gagé", "Engagements", "Montant payé", "Paiements"},
		rows,
		[]string{"Total",
			utils.FormatEuro(budget.Totaux.MontantGage), utils.FormatNumber(nbGage),
			utils.FormatEuro(budget.Totaux.MontantPaye), utils.FormatNumber(nbPaye)},
	), nil
}

func renderBreakdowns(d *PDFDoc, in SectionInput, y float64) (float64, error) {
	a := in.Data.Annual
	type block struct {
		title, label string
		rows         []models.BreakdownRow
	}
	var blocks []block
	if in.Opts.IncludeRedacteurTable {
		blocks = append(blocks, block{"Répartition par rédacteur", "Rédacteur", a.ParRedacteur})
	}
	if in.Opts.IncludeCirconstanceTable {
		blocks = append(blocks, block{"Répartition par circonstance", "Circonstance", a.ParCirconstance})
	}

	const gap = 8.0
	w := (pdfContentW - gap*float64(len(blocks)-1)) / float64(len(blocks))
	widths := []float64{w * 0.56, w * 0.2, w * 0.24}

	end := y
	for i, b := range blocks {
		x := pdfMargin + float64(i)*(w+gap)
		d.heading(x, y, b.title, 12)

		rows := truncateBreakdown(b.rows, fitRows(y+8))
		var body [][]string
		total := 0
		for _, r := range rows {
			body = append(body, []string{r.Label, utils.FormatNumber(r.Count), utils.FormatPercent(r.Percentage)})
			total += r.Count
		}
		share := 0.0
		if total > 0 {
			share = 1
		}
		e := d.table(x, y+8, widths, []string{b.label, "Nombre", "%"}, body,
			[]string{"Total", utils.FormatNumber(total), utils.FormatPercent(share)})
		if e > end {
			end = e
		}
	}
	return end, nil
}

// truncateBreakdown keeps the first limit-1 rows and folds the rest into "Autres".
func truncateBreakdown(rows []models.BreakdownRow, limit int) []models.BreakdownRow {
	if len(rows) <= limit {
		return rows
	}
	kept := make([]models.BreakdownRow, 0, limit)
	kept = append(kept, rows[:limit-1]...)
	other := models.BreakdownRow{Label: "Autres (" + strconv.Itoa(len(rows)-limit+1) + ")"}
	for _, r := range rows[limit-1:] {
		other.Count += r.Count
		other.Percentage += r.Percentage
	}
	return append(kept, other)
}

func renderRegions(d *PDFDoc, in SectionInput, y float64) (float64, error) {
	d.heading(pdfMargin, y, "Répartition par région", 12)
	y += 8

	regions := in.Data.Annual.ParRegion
	limit := fitRows(y)
	var body [][]string
	totMil, totBen := 0, 0
	for i, r := range regions {
		totMil += r.NbMilitaires
		totBen += r.NbBeneficiaires
		if i < limit {
			body = append(body, []string{r.Region, utils.FormatNumber(r.NbMilitaires), utils.FormatNumber(r.NbBeneficiaires)})
		}
	}

	w := pdfContentW
	return d.table(pdfMargin, y, []float64{w * 0.5, w * 0.25, w * 0.25},
		[]string{"Région", "Militaires", "Bénéficiaires"},
		body,
		[]string{"Total", utils.FormatNumber(totMil), utils.FormatNumber(totBen)},
	), nil
}
