package services

import (
	"strings"

	"github.com/pjc-admin/statistiques-api/models"
)

// MoisFR : mois français dans l'ordre (index 0 = Janvier)
var MoisFR = []string{
	"Janvier", "Février", "Mars", "Avril", "Mai", "Juin",
	"Juillet", "Août", "Septembre", "Octobre", "Novembre", "Décembre",
}

// Variantes rencontrées dans les réponses du backend (accents perdus, mojibake)
var monthNameVariants = map[string]string{
	"fevrier":   "Février",
	"aout":      "Août",
	"decembre":  "Décembre",
	"fã©vrier":  "Février",
	"aoã»t":     "Août",
	"dã©cembre": "Décembre",
}

// normalizeMonthName retourne le nom canonique d'un mois
func normalizeMonthName(name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, m := range MoisFR {
		if strings.ToLower(m) == key {
			return m, true
		}
	}
	if m, ok := monthNameVariants[key]; ok {
		return m, true
	}
	return "", false
}

// monthIndex retourne 1..12, ou 0 si le nom n'est pas un mois
func monthIndex(name string) int {
	normalized, ok := normalizeMonthName(name)
	if !ok {
		return 0
	}
	for i, m := range MoisFR {
		if m == normalized {
			return i + 1
		}
	}
	return 0
}

// normalizeBudgetMonths fills in whichever of Mois / NomMois the backend
// left empty and rewrites month names to their canonical spelling.
func normalizeBudgetMonths(months []models.BudgetMois) {
	for i := range months {
		m := &months[i]
		if m.Mois == 0 {
			m.Mois = monthIndex(m.NomMois)
		}
		if name, ok := normalizeMonthName(m.NomMois); ok {
			m.NomMois = name
		} else if m.Mois >= 1 && m.Mois <= 12 {
			m.NomMois = MoisFR[m.Mois-1]
		}
	}
}
