package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pjc-admin/statistiques-api/models"
)

func TestNormalizeBudgetMonths(t *testing.T) {
	months := []models.BudgetMois{
		{Mois: 2, NomMois: "FÃ©vrier"},
		{NomMois: "aout"},
		{Mois: 12},
		{Mois: 3, NomMois: "  mars "},
	}

	normalizeBudgetMonths(months)

	assert.Equal(t, models.BudgetMois{Mois: 2, NomMois: "Février"}, months[0])
	assert.Equal(t, models.BudgetMois{Mois: 8, NomMois: "Août"}, months[1])
	assert.Equal(t, models.BudgetMois{Mois: 12, NomMois: "Décembre"}, months[2])
	assert.Equal(t, "Mars", months[3].NomMois)
}

func TestMonthIndex(t *testing.T) {
	assert.Equal(t, 1, monthIndex("Janvier"))
	assert.Equal(t, 12, monthIndex("DÃ©cembre"))
	assert.Equal(t, 0, monthIndex("Brumaire"))
}
