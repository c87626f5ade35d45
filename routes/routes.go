package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/pjc-admin/statistiques-api/handlers"
)

// SetupStatistiquesRoutes sets up the protected statistics and export routes.
func SetupStatistiquesRoutes(rg *gin.RouterGroup, stats *handlers.StatistiquesHandler, exports *handlers.ExportHandler) {
	rg.GET("/statistiques", stats.GetStatistiques)
	rg.GET("/statistiques/budget/:annee", stats.GetBudget)

	rg.POST("/statistiques/export", exports.Export)
	rg.GET("/statistiques/exports", exports.History)
}

// SetupWSRoutes branche le canal de progression des exports
func SetupWSRoutes(rg *gin.RouterGroup, ws *handlers.WSHandler) {
	rg.GET("/ws/exports", ws.HandleWS)
}
