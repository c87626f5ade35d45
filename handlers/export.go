package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pjc-admin/statistiques-api/middleware"
	"github.com/pjc-admin/statistiques-api/models"
	"github.com/pjc-admin/statistiques-api/services"
)

type ExportHandler struct {
	Exports *services.ExportService
}

func NewExportHandler(exports *services.ExportService) *ExportHandler {
	return &ExportHandler{Exports: exports}
}

// Export génère le fichier demandé et le renvoie en pièce jointe
func (h *ExportHandler) Export(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var opts models.ExportOptions
	if err := c.ShouldBindJSON(&opts); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "stage": services.StageOptions})
		return
	}

	file, err := h.Exports.Export(backendContext(c), userID, opts)
	if err != nil {
		status, body := exportErrorResponse(err)
		c.JSON(status, body)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
	if file.Pages > 0 {
		c.Header("X-Export-Pages", strconv.Itoa(file.Pages))
	}
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

// exportErrorResponse traduit une erreur d'export en message affichable
func exportErrorResponse(err error) (int, gin.H) {
	if errors.Is(err, services.ErrExportInProgress) {
		return http.StatusConflict, gin.H{"error": "Un export est déjà en cours"}
	}

	var exportErr *services.ExportError
	if !errors.As(err, &exportErr) {
		return http.StatusInternalServerError, gin.H{"error": "Export failed"}
	}

	switch exportErr.Stage {
	case services.StageOptions:
		return http.StatusBadRequest, gin.H{"error": "Options d'export invalides", "stage": exportErr.Stage}
	case services.StageFetch:
		return http.StatusBadGateway, gin.H{"error": "Impossible de charger les statistiques", "stage": exportErr.Stage}
	default:
		return http.StatusInternalServerError, gin.H{"error": "La génération du fichier a échoué", "stage": exportErr.Stage}
	}
}

// History liste les derniers exports de l'utilisateur
func (h *ExportHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	entries, err := h.Exports.History(c.Request.Context(), middleware.GetUserID(c), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load export history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"exports": entries})
}
