package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pjc-admin/statistiques-api/middleware"
	"github.com/pjc-admin/statistiques-api/models"
	"github.com/pjc-admin/statistiques-api/services"
	"github.com/pjc-admin/statistiques-api/utils"
)

type StatistiquesHandler struct {
	Stats *services.StatistiquesService
}

func NewStatistiquesHandler(stats *services.StatistiquesService) *StatistiquesHandler {
	return &StatistiquesHandler{Stats: stats}
}

// parseAnnee accepte une année, "-1" ou "all" ; vide = année en cours
func parseAnnee(raw string) (int, error) {
	switch raw {
	case "":
		return time.Now().Year(), nil
	case "all", "toutes":
		return models.AllYears, nil
	}
	annee, err := strconv.Atoi(raw)
	if err != nil || (annee != models.AllYears && (annee < 2000 || annee > 2100)) {
		return 0, errors.New("invalid year")
	}
	return annee, nil
}

// backendContext relaie le jeton de l'utilisateur au backend de statistiques
func backendContext(c *gin.Context) context.Context {
	return services.WithToken(c.Request.Context(), middleware.GetToken(c))
}

// GetStatistiques retourne le modèle de vue complet de la page statistiques
func (h *StatistiquesHandler) GetStatistiques(c *gin.Context) {
	annee, err := parseAnnee(c.Query("annee"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid year"})
		return
	}

	view, err := h.Stats.GetView(backendContext(c), annee)
	if err != nil {
		utils.SafeError("[Stats] view %d failed: %v", annee, err)
		c.JSON(statusForBackendError(err), gin.H{"error": "Failed to load statistics"})
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *StatistiquesHandler) GetBudget(c *gin.Context) {
	annee, err := strconv.Atoi(c.Param("annee"))
	if err != nil || annee == models.AllYears {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid year"})
		return
	}

	budget, err := h.Stats.GetBudget(backendContext(c), annee)
	if err != nil {
		c.JSON(statusForBackendError(err), gin.H{"error": "Failed to load budget"})
		return
	}

	c.JSON(http.StatusOK, budget)
}

// statusForBackendError maps backend failures: a 404 stays a 404, the rest
// is a bad gateway.
func statusForBackendError(err error) int {
	var perr *services.ProviderError
	if errors.As(err, &perr) && perr.StatusCode == http.StatusNotFound {
		return http.StatusNotFound
	}
	if errors.Is(err, context.Canceled) {
		return 499
	}
	return http.StatusBadGateway
}
