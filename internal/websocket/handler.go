package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/rosterbot/rosterbot/internal/middleware"
)

// HandleAlerts returns an HTTP handler that upgrades an authenticated
// manager's connection and streams their team's alerts.
func HandleAlerts(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, teamID := middleware.ManagerFromContext(r.Context())
		if teamID == 0 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, nil)
		if err != nil {
			logger.Error("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, teamID)
		client.Run(r.Context())
	}
}
