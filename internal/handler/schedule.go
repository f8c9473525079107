package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rosterbot/rosterbot/internal/middleware"
	"github.com/rosterbot/rosterbot/internal/model"
	"github.com/rosterbot/rosterbot/internal/store"
)

const scheduleListLimit = 50

type ScheduleHandler struct {
	schedule *store.ScheduleStore
	logger   *slog.Logger
}

func NewScheduleHandler(schedule *store.ScheduleStore, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{schedule: schedule, logger: logger}
}

// List handles GET /api/schedule.
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	_, teamID := middleware.ManagerFromContext(r.Context())

	events, err := h.schedule.ListUpcoming(teamID, time.Now().UTC(), scheduleListLimit)
	if err != nil {
		h.logger.Error("list schedule", "team_id", teamID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list schedule")
		return
	}

	writeJSON(w, http.StatusOK, events)
}

type createEventRequest struct {
	Title    string    `json:"title"`
	Location string    `json:"location"`
	StartsAt time.Time `json:"starts_at"`
}

// Create handles POST /api/schedule.
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	_, teamID := middleware.ManagerFromContext(r.Context())

	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.StartsAt.IsZero() {
		writeError(w, http.StatusBadRequest, "starts_at is required")
		return
	}

	event, err := h.schedule.Create(teamID, req.Title, req.Location, req.StartsAt.UTC())
	if err != nil {
		h.logger.Error("create schedule event", "team_id", teamID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// Delete handles DELETE /api/schedule/{id}.
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	_, teamID := middleware.ManagerFromContext(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.schedule.Delete(id, teamID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		h.logger.Error("delete schedule event", "event_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
