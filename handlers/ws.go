package handlers

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/olahol/melody"

	"github.com/pjc-admin/statistiques-api/middleware"
	"github.com/pjc-admin/statistiques-api/models"
	"github.com/pjc-admin/statistiques-api/utils"
)

// WSHandler pousse la progression des exports aux onglets de l'utilisateur
type WSHandler struct {
	M *melody.Melody
}

func NewWSHandler() *WSHandler {
	m := melody.New()

	m.Config.MaxMessageSize = 4096

	// Keep-Alive (hébergement derrière proxy)
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second

	m.HandleConnect(func(s *melody.Session) {
		userID, _ := s.Get("user_id")
		utils.LogWebSocket("connected", toString(userID))
	})

	m.HandleDisconnect(func(s *melody.Session) {
		userID, _ := s.Get("user_id")
		utils.LogWebSocket("disconnected", toString(userID))
	})

	m.HandleError(func(s *melody.Session, err error) {
		utils.SafeWarn("[WS] error: %v", err)
	})

	return &WSHandler{M: m}
}

func toString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// HandleWS ouvre le canal de progression pour l'utilisateur authentifié
func (h *WSHandler) HandleWS(c *gin.Context) {
	userID := middleware.GetUserID(c)

	err := h.M.HandleRequestWithKeys(c.Writer, c.Request, map[string]interface{}{
		"user_id": userID,
	})
	if err != nil {
		utils.SafeError("[WS] failed to upgrade websocket: %v", err)
	}
}

// NotifyExport envoie un événement d'export à toutes les sessions de l'utilisateur
func (h *WSHandler) NotifyExport(userID string, event models.ExportEvent) {
	msg, err := json.Marshal(event)
	if err != nil {
		utils.SafeError("[WS] failed to encode export event: %v", err)
		return
	}

	err = h.M.BroadcastFilter(msg, func(q *melody.Session) bool {
		id, exists := q.Get("user_id")
		return exists && id == userID
	})
	if err != nil {
		utils.SafeWarn("[WS] broadcast to user %s failed: %v", utils.MaskID(userID), err)
	}
}

func (h *WSHandler) Close() error {
	return h.M.Close()
}
