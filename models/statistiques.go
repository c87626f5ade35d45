package models

// AllYears est la valeur sentinelle d'année pour "toutes les années"
const AllYears = -1

// ============================================================================
// DONNÉES FOURNIES PAR LE BACKEND
// ============================================================================

type Finances struct {
	MontantGage   float64 `json:"montantGage"`
	MontantPaye   float64 `json:"montantPaye"`
	NbConventions int     `json:"nbConventions"`
	NbPaiements   int     `json:"nbPaiements"`
}

type Compteur struct {
	Total int `json:"total"`
}

type RegionCount struct {
	NbMilitaires    int `json:"nbMilitaires"`
	NbBeneficiaires int `json:"nbBeneficiaires"`
}

// YearStatistic is the per-year aggregate returned by the statistics backend.
type YearStatistic struct {
	Year            int                    `json:"year"`
	Finances        Finances               `json:"finances"`
	Affaires        Compteur               `json:"affaires"`
	Militaires      Compteur               `json:"militaires"`
	Beneficiaires   Compteur               `json:"beneficiaires"`
	ParRedacteur    map[string]int         `json:"parRedacteur"`
	ParCirconstance map[string]int         `json:"parCirconstance"`
	ParRegion       map[string]RegionCount `json:"parRegion"`
	ParDepartement  map[string]RegionCount `json:"parDepartement"`
}

type FinanceAnnee struct {
	MontantGage float64 `json:"montantGage"`
	MontantPaye float64 `json:"montantPaye"`
}

// StatsGlobales is the "all years" snapshot. It carries headline counts only,
// no breakdowns.
type StatsGlobales struct {
	Affaires      Compteur                `json:"affaires"`
	Militaires    Compteur                `json:"militaires"`
	Beneficiaires Compteur                `json:"beneficiaires"`
	Finances      map[string]FinanceAnnee `json:"finances"`
}

type MontantNombre struct {
	Montant float64 `json:"montant"`
	Nombre  int     `json:"nombre"`
}

type BudgetMois struct {
	Mois    int           `json:"mois"`
	NomMois string        `json:"nomMois"`
	Gage    MontantNombre `json:"gage"`
	Paye    MontantNombre `json:"paye"`
}

type BudgetTotaux struct {
	MontantGage float64 `json:"montantGage"`
	MontantPaye float64 `json:"montantPaye"`
	Ratio       float64 `json:"ratio"`
}

// BudgetAnnuel est le détail mensuel du budget d'une année
type BudgetAnnuel struct {
	Annee   int          `json:"annee"`
	ParMois []BudgetMois `json:"parMois"`
	Totaux  BudgetTotaux `json:"totaux"`
}

// ============================================================================
// AGRÉGATS CALCULÉS
// ============================================================================

// GlobalYearRow is one year of the "Statistiques Globales" tables.
type GlobalYearRow struct {
	NbBeneficiaires int     `json:"nbBeneficiaires"`
	NbConventions   int     `json:"nbConventions"`
	MontantGageHT   float64 `json:"montantGageHT"`
	MontantPaye     float64 `json:"montantPaye"`
	NbReglements    int     `json:"nbReglements"`
}

type Totals struct {
	NbBeneficiaires int     `json:"nbBeneficiaires"`
	NbConventions   int     `json:"nbConventions"`
	MontantGageHT   float64 `json:"montantGageHT"`
	MontantPaye     float64 `json:"montantPaye"`
	NbReglements    int     `json:"nbReglements"`
}

// Noms des métriques suivies dans la timeline
const (
	MetricNbBeneficiaires = "nbBeneficiaires"
	MetricNbConventions   = "nbConventions"
	MetricMontantGageHT   = "montantGageHT"
	MetricMontantPaye     = "montantPaye"
	MetricNbReglements    = "nbReglements"
)

const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Variation is a year-over-year change. Value is already formatted with one
// decimal, except the "from zero" case which is the bare "100".
type Variation struct {
	Value       string `json:"value"`
	Direction   string `json:"direction"`
	Significant bool   `json:"significant"`
}

type TimelineEntry struct {
	Year       int                   `json:"year"`
	Data       GlobalYearRow         `json:"data"`
	Variations map[string]*Variation `json:"variations"`
}

type GlobalStats struct {
	ParAnnee map[int]GlobalYearRow `json:"parAnnee"`
	Totals   Totals                `json:"totals"`
}

type BreakdownRow struct {
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type RegionRow struct {
	Region          string `json:"region"`
	NbMilitaires    int    `json:"nbMilitaires"`
	NbBeneficiaires int    `json:"nbBeneficiaires"`
}

// AnnualView regroupe les statistiques d'une année (ou de toutes les années)
type AnnualView struct {
	Annee           int            `json:"annee"`
	MontantGageHT   float64        `json:"montantGageHT"`
	MontantGageTTC  float64        `json:"montantGageTTC"`
	MontantPaye     float64        `json:"montantPaye"`
	NbConventions   int            `json:"nbConventions"`
	NbPaiements     int            `json:"nbPaiements"`
	NbAffaires      int            `json:"nbAffaires"`
	NbMilitaires    int            `json:"nbMilitaires"`
	NbBeneficiaires int            `json:"nbBeneficiaires"`
	ParRedacteur    []BreakdownRow `json:"parRedacteur"`
	ParCirconstance []BreakdownRow `json:"parCirconstance"`
	ParRegion       []RegionRow    `json:"parRegion"`
	ParDepartement  []RegionRow    `json:"parDepartement"`
	Budget          *BudgetAnnuel  `json:"budget,omitempty"`
}

// StatistiquesView is the whole state of the statistics page.
type StatistiquesView struct {
	Annee              int             `json:"annee"`
	IsAllYears         bool            `json:"isAllYears"`
	Years              []int           `json:"years"`
	Global             GlobalStats     `json:"global"`
	DataWithVariations []TimelineEntry `json:"dataWithVariations"`
	Annual             *AnnualView     `json:"annual"`
	FailedYears        []int           `json:"failedYears,omitempty"`
}
