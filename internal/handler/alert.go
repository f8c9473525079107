package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rosterbot/rosterbot/internal/middleware"
	"github.com/rosterbot/rosterbot/internal/model"
	"github.com/rosterbot/rosterbot/internal/store"
)

type AlertHandler struct {
	alerts *store.AlertStore
	logger *slog.Logger
}

func NewAlertHandler(alerts *store.AlertStore, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{alerts: alerts, logger: logger}
}

// List handles GET /api/alerts.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	_, teamID := middleware.ManagerFromContext(r.Context())

	alerts, err := h.alerts.ListByTeam(teamID)
	if err != nil {
		h.logger.Error("list alerts", "team_id", teamID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}

	writeJSON(w, http.StatusOK, alerts)
}

// MarkRead handles POST /api/alerts/{id}/read.
func (h *AlertHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	_, teamID := middleware.ManagerFromContext(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.alerts.MarkRead(id, teamID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		h.logger.Error("mark alert read", "alert_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update alert")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
