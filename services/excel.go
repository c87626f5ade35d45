package services

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/pjc-admin/statistiques-api/models"
	"github.com/pjc-admin/statistiques-api/utils"
)

const (
	SheetGlobal        = "Statistiques Globales"
	sheetAnnualAll     = "Statistiques Toutes Années"
	moneyFormat        = "#,##0.00 €"
	headerFillColor    = "#D9E1F2"
	totalFillColor     = "#E7E6E6"
	excelContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	excelNumFmtInt     = 3
	excelNumFmtPercent = 10
)

// AnnualSheetName retourne le nom de l'onglet annuel
func AnnualSheetName(annee int) string {
	if annee == models.AllYears {
		return sheetAnnualAll
	}
	return "Statistiques " + strconv.Itoa(annee)
}

// BudgetSheetName retourne le nom de l'onglet budget mensuel
func BudgetSheetName(annee int) string {
	return "Budget " + strconv.Itoa(annee)
}

// ExcelGenerator writes ExportData into a styled workbook.
type ExcelGenerator struct{}

func NewExcelGenerator() *ExcelGenerator {
	return &ExcelGenerator{}
}

type excelStyles struct {
	title, subtitle, header int
	plain, money, integer   int
	percent, totalLabel     int
	totalMoney, totalInt    int
	totalPct                int
}

func newExcelStyles(f *excelize.File) (*excelStyles, error) {
	money := moneyFormat
	border := []excelize.Border{
		{Type: "left", Color: "#A6A6A6", Style: 1},
		{Type: "right", Color: "#A6A6A6", Style: 1},
		{Type: "top", Color: "#A6A6A6", Style: 1},
		{Type: "bottom", Color: "#A6A6A6", Style: 1},
	}
	headerFill := excelize.Fill{Type: "pattern", Color: []string{headerFillColor}, Pattern: 1}
	totalFill := excelize.Fill{Type: "pattern", Color: []string{totalFillColor}, Pattern: 1}
	bold := &excelize.Font{Bold: true}

	s := &excelStyles{}
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&s.title, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}},
		{&s.subtitle, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 12}}},
		{&s.header, &excelize.Style{Font: bold, Fill: headerFill, Border: border,
			Alignment: &excelize.Alignment{Horizontal: "center", WrapText: true}}},
		{&s.plain, &excelize.Style{Border: border}},
		{&s.money, &excelize.Style{CustomNumFmt: &money, Border: border}},
		{&s.integer, &excelize.Style{NumFmt: excelNumFmtInt, Border: border}},
		{&s.percent, &excelize.Style{NumFmt: excelNumFmtPercent, Border: border}},
		{&s.totalLabel, &excelize.Style{Font: bold, Fill: totalFill, Border: border}},
		{&s.totalMoney, &excelize.Style{Font: bold, Fill: totalFill, Border: border, CustomNumFmt: &money}},
		{&s.totalInt, &excelize.Style{Font: bold, Fill: totalFill, Border: border, NumFmt: excelNumFmtInt}},
		{&s.totalPct, &excelize.Style{Font: bold, Fill: totalFill, Border: border, NumFmt: excelNumFmtPercent}},
	}
	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return nil, fmt.Errorf("failed to create style: %w", err)
		}
		*d.dst = id
	}
	return s, nil
}

// sheetWriter garde la première erreur rencontrée pour alléger le code d'écriture
type sheetWriter struct {
	f     *excelize.File
	sheet string
	st    *excelStyles
	err   error
}

func (w *sheetWriter) cell(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil && w.err == nil {
		w.err = err
	}
	return name
}

func (w *sheetWriter) set(col, row int, value interface{}, style int) {
	if w.err != nil {
		return
	}
	c := w.cell(col, row)
	if w.err != nil {
		return
	}
	if err := w.f.SetCellValue(w.sheet, c, value); err != nil {
		w.err = err
		return
	}
	if style != 0 {
		w.err = w.f.SetCellStyle(w.sheet, c, c, style)
	}
}

func (w *sheetWriter) width(col string, width float64) {
	if w.err != nil {
		return
	}
	w.err = w.f.SetColWidth(w.sheet, col, col, width)
}

// column describes one column of a table: its header and the cell styles
// for body and totals rows.
type column struct {
	header     string
	style      int
	totalStyle int
}

// table writes title, header, rows and an optional totals row starting at
// (col,row) and returns the first free row below it.
func (w *sheetWriter) table(col, row int, title string, cols []column, rows [][]interface{}, totals []interface{}) int {
	if title != "" {
		w.set(col, row, title, w.st.subtitle)
		row++
	}
	for i, c := range cols {
		w.set(col+i, row, c.header, w.st.header)
	}
	row++
	for _, r := range rows {
		for i, v := range r {
			w.set(col+i, row, v, cols[i].style)
		}
		row++
	}
	if totals != nil {
		for i, v := range totals {
			w.set(col+i, row, v, cols[i].totalStyle)
		}
		row++
	}
	return row
}

// Generate builds the workbook. Any error aborts the export: no partial
// file is ever returned.
func (g *ExcelGenerator) Generate(data *models.ExportData, opts models.ExportOptions) (*models.ExportFile, error) {
	opts = opts.Normalize()

	f := excelize.NewFile()
	defer f.Close()

	st, err := newExcelStyles(f)
	if err != nil {
		return nil, err
	}

	if err := f.SetSheetName("Sheet1", SheetGlobal); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := writeGlobalSheet(&sheetWriter{f: f, sheet: SheetGlobal, st: st}, data); err != nil {
		return nil, fmt.Errorf("global sheet: %w", err)
	}

	if opts.IncludeAnnualStats && data.Annual != nil {
		name := AnnualSheetName(data.Annee)
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
		if err := writeAnnualSheet(&sheetWriter{f: f, sheet: name, st: st}, data, opts); err != nil {
			return nil, fmt.Errorf("annual sheet: %w", err)
		}
	}

	if budget := budgetOf(data); opts.IncludeAnnualStats && budget != nil {
		name := BudgetSheetName(data.Annee)
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
		if err := writeBudgetSheet(&sheetWriter{f: f, sheet: name, st: st}, budget); err != nil {
			return nil, fmt.Errorf("budget sheet: %w", err)
		}
	}

	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	return &models.ExportFile{
		Filename:    ExportFilename(opts, data.GeneratedAt, "xlsx"),
		ContentType: excelContentType,
		Content:     buf.Bytes(),
	}, nil
}

func budgetOf(data *models.ExportData) *models.BudgetAnnuel {
	if data.Annual == nil || data.Annual.Budget == nil || len(data.Annual.Budget.ParMois) == 0 {
		return nil
	}
	return data.Annual.Budget
}

// ============================================================================
// ONGLET STATISTIQUES GLOBALES
// ============================================================================

func writeGlobalSheet(w *sheetWriter, data *models.ExportData) error {
	w.width("A", 18)
	w.width("B", 28)
	w.width("C", 28)

	w.set(1, 1, "Statistiques globales PJC", w.st.title)
	w.set(1, 2, "Généré le "+utils.FormatDateTimeFR(data.GeneratedAt), 0)

	years := sortedYears(data.Global.ParAnnee)
	row := 4

	// 1. Bénéficiaires / conventions
	var rows [][]interface{}
	totBenef, totConv := 0, 0
	for _, y := range years {
		r := data.Global.ParAnnee[y]
		rows = append(rows, []interface{}{y, r.NbBeneficiaires, r.NbConventions})
		totBenef += r.NbBeneficiaires
		totConv += r.NbConventions
	}
	row = w.table(1, row, "Bénéficiaires / Conventions", []column{
		{"Année", w.st.plain, w.st.totalLabel},
		{"Nombre de bénéficiaires", w.st.integer, w.st.totalInt},
		{"Nombre de conventions", w.st.integer, w.st.totalInt},
	}, rows, []interface{}{"Total", totBenef, totConv})
	row++

	// 2. Montant total gagé : le TTC est toujours dérivé du HT
	rows = nil
	totHT, totTTC := 0.0, 0.0
	for _, y := range years {
		ht := data.Global.ParAnnee[y].MontantGageHT
		ttc := ht * TauxTVA
		rows = append(rows, []interface{}{y, ht, ttc})
		totHT += ht
		totTTC += ttc
	}
	row = w.table(1, row, "Montant Total Gagé", []column{
		{"Année", w.st.plain, w.st.totalLabel},
		{"Montant HT", w.st.money, w.st.totalMoney},
		{"Montant TTC", w.st.money, w.st.totalMoney},
	}, rows, []interface{}{"Total", totHT, totTTC})
	row++

	// 3. Dépenses ordonnées
	rows = nil
	totRegl, totPaye := 0, 0.0
	for _, y := range years {
		r := data.Global.ParAnnee[y]
		rows = append(rows, []interface{}{y, r.NbReglements, r.MontantPaye})
		totRegl += r.NbReglements
		totPaye += r.MontantPaye
	}
	w.table(1, row, "Dépenses Ordonnées", []column{
		{"Année", w.st.plain, w.st.totalLabel},
		{"Nombre de règlements", w.st.integer, w.st.totalInt},
		{"Montant payé TTC", w.st.money, w.st.totalMoney},
	}, rows, []interface{}{"Total", totRegl, totPaye})

	return w.err
}

// ============================================================================
// ONGLET ANNUEL
// ============================================================================

func writeAnnualSheet(w *sheetWriter, data *models.ExportData, opts models.ExportOptions) error {
	a := data.Annual
	for _, col := range []string{"A", "E"} {
		w.width(col, 36)
	}
	for _, col := range []string{"B", "C", "F", "G"} {
		w.width(col, 16)
	}

	title := "Statistiques " + strconv.Itoa(data.Annee)
	if data.IsAllYears {
		title = "Statistiques toutes années"
	}
	w.set(1, 1, title, w.st.title)

	indicator := []column{
		{"Indicateur", 0, 0},
		{"Valeur", w.st.money, 0},
	}
	row := w.table(1, 3, "Synthèse financière", indicator, nil, nil)
	for _, line := range []struct {
		label string
		value interface{}
		style int
	}{
		{"Montant gagé HT", a.MontantGageHT, w.st.money},
		{"Montant gagé TTC", a.MontantGageTTC, w.st.money},
		{"Montant payé TTC", a.MontantPaye, w.st.money},
		{"Nombre de conventions", a.NbConventions, w.st.integer},
		{"Nombre de paiements", a.NbPaiements, w.st.integer},
	} {
		w.set(1, row, line.label, 0)
		w.set(2, row, line.value, line.style)
		row++
	}
	row++

	w.set(1, row, "Affaires", w.st.subtitle)
	row++
	for _, line := range []struct {
		label string
		value int
	}{
		{"Nombre d'affaires", a.NbAffaires},
		{"Nombre de militaires", a.NbMilitaires},
		{"Nombre de bénéficiaires", a.NbBeneficiaires},
	} {
		w.set(1, row, line.label, 0)
		w.set(2, row, line.value, w.st.integer)
		row++
	}
	row++

	// Tableaux de répartition côte à côte
	var blocks []struct {
		title, label string
		rows         []models.BreakdownRow
	}
	if opts.IncludeRedacteurTable {
		blocks = append(blocks, struct {
			title, label string
			rows         []models.BreakdownRow
		}{"Répartition par rédacteur", "Rédacteur", a.ParRedacteur})
	}
	if opts.IncludeCirconstanceTable {
		blocks = append(blocks, struct {
			title, label string
			rows         []models.BreakdownRow
		}{"Répartition par circonstance", "Circonstance", a.ParCirconstance})
	}

	next := row
	for i, b := range blocks {
		col := 1 + i*4
		end := w.breakdownTable(col, row, b.title, b.label, b.rows)
		if end > next {
			next = end
		}
	}
	row = next + 1

	if opts.IncludeRegionTable {
		var rows [][]interface{}
		totMil, totBen := 0, 0
		for _, r := range a.ParRegion {
			rows = append(rows, []interface{}{r.Region, r.NbMilitaires, r.NbBeneficiaires})
			totMil += r.NbMilitaires
			totBen += r.NbBeneficiaires
		}
		w.table(1, row, "Répartition par région", []column{
			{"Région", w.st.plain, w.st.totalLabel},
			{"Militaires", w.st.integer, w.st.totalInt},
			{"Bénéficiaires", w.st.integer, w.st.totalInt},
		}, rows, []interface{}{"Total", totMil, totBen})
	}

	return w.err
}

// breakdownTable writes a ranked breakdown; the percentage column holds the
// ratio itself so Excel formats it as a native percentage.
func (w *sheetWriter) breakdownTable(col, row int, title, label string, data []models.BreakdownRow) int {
	var rows [][]interface{}
	total := 0
	for _, r := range data {
		rows = append(rows, []interface{}{r.Label, r.Count, r.Percentage})
		total += r.Count
	}
	share := 0.0
	if total > 0 {
		share = 1.0
	}
	return w.table(col, row, title, []column{
		{label, w.st.plain, w.st.totalLabel},
		{"Nombre", w.st.integer, w.st.totalInt},
		{"Pourcentage", w.st.percent, w.st.totalPct},
	}, rows, []interface{}{"Total", total, share})
}

// ============================================================================
// ONGLET BUDGET MENSUEL
// ============================================================================

func writeBudgetSheet(w *sheetWriter, budget *models.BudgetAnnuel) error {
	w.width("A", 16)
	for _, col := range []string{"B", "C", "D", "E"} {
		w.width(col, 20)
	}

	w.set(1, 1, "Budget "+strconv.Itoa(budget.Annee), w.st.title)

	var rows [][]interface{}
	nbGage, nbPaye := 0, 0
	for _, m := range budget.ParMois {
		rows = append(rows, []interface{}{m.NomMois, m.Gage.Montant, m.Gage.Nombre, m.Paye.Montant, m.Paye.Nombre})
		nbGage += m.Gage.Nombre
		nbPaye += m.Paye.Nombre
	}

	// Les montants du total viennent des totaux du backend, les nombres sont sommés
	w.table(1, 3, "", []column{
		{"Mois", w.st.plain, w.st.totalLabel},
		{"Montant gagé", w.st.money, w.st.totalMoney},
		{"Nombre d'engagements", w.st.integer, w.st.totalInt},
		{"Montant payé", w.st.money, w.st.totalMoney},
		{"Nombre de paiements", w.st.integer, w.st.totalInt},
	}, rows, []interface{}{"Total", budget.Totaux.MontantGage, nbGage, budget.Totaux.MontantPaye, nbPaye})

	return w.err
}
