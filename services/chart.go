package services

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"
	"image/png"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/pjc-admin/statistiques-api/models"
	"github.com/pjc-admin/statistiques-api/utils"
)

// ErrNoChartData means the budget has nothing worth plotting.
var ErrNoChartData = errors.New("no chart data")

const (
	chartBaseWidth  = 1000
	chartBaseHeight = 410
)

// RenderBudgetChart dessine l'évolution mensuelle gagé / payé et la renvoie en JPEG.
// scale multiplies the base pixel size; quality is the JPEG quality (1-100).
// Both are kept low on purpose: the PDF favours size over fidelity.
func RenderBudgetChart(budget *models.BudgetAnnuel, scale float64, quality int) ([]byte, error) {
	if budget == nil || len(budget.ParMois) < 2 {
		return nil, ErrNoChartData
	}

	n := len(budget.ParMois)
	xs := make([]float64, n)
	gage := make([]float64, n)
	paye := make([]float64, n)
	ticks := make([]chart.Tick, n)

	lo, hi := budget.ParMois[0].Gage.Montant, budget.ParMois[0].Gage.Montant
	for i, m := range budget.ParMois {
		xs[i] = float64(i + 1)
		gage[i] = m.Gage.Montant
		paye[i] = m.Paye.Montant
		ticks[i] = chart.Tick{Value: xs[i], Label: shortMonth(m.NomMois)}
		for _, v := range []float64{m.Gage.Montant, m.Paye.Montant} {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	// go-chart refuse une plage de valeurs nulle
	if lo == hi {
		return nil, ErrNoChartData
	}

	graph := chart.Chart{
		Width:  int(float64(chartBaseWidth) * scale),
		Height: int(float64(chartBaseHeight) * scale),
		Background: chart.Style{
			Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return utils.FormatNumber(int(f)) + " €"
				}
				return ""
			},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Montant gagé",
				XValues: xs,
				YValues: gage,
				Style: chart.Style{
					StrokeColor: drawing.ColorFromHex("2F5597"),
					StrokeWidth: 3,
				},
			},
			chart.ContinuousSeries{
				Name:    "Montant payé",
				XValues: xs,
				YValues: paye,
				Style: chart.Style{
					StrokeColor: drawing.ColorFromHex("C55A11"),
					StrokeWidth: 3,
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	var raw bytes.Buffer
	if err := graph.Render(chart.PNG, &raw); err != nil {
		return nil, fmt.Errorf("failed to render budget chart: %w", err)
	}

	img, err := png.Decode(&raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode budget chart: %w", err)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to compress budget chart: %w", err)
	}
	return out.Bytes(), nil
}

func shortMonth(nom string) string {
	r := []rune(nom)
	if len(r) <= 4 {
		return nom
	}
	return string(r[:4]) + "."
}
