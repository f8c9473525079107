package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rosterbot/rosterbot/internal/classifier"
	"github.com/rosterbot/rosterbot/internal/genai"
	"github.com/rosterbot/rosterbot/internal/model"
	"github.com/rosterbot/rosterbot/internal/notify"
	"github.com/rosterbot/rosterbot/internal/store"
)

// generateTimeout bounds the outbound generation call.
const generateTimeout = 30 * time.Second

// scheduleContextLimit caps how many upcoming events feed the prompt.
const scheduleContextLimit = 5

type MessageHandler struct {
	users    *store.UserStore
	teams    *store.TeamStore
	schedule *store.ScheduleStore
	ai       *genai.Client
	notifier *notify.Notifier
	logger   *slog.Logger
}

func NewMessageHandler(
	users *store.UserStore,
	teams *store.TeamStore,
	schedule *store.ScheduleStore,
	ai *genai.Client,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *MessageHandler {
	return &MessageHandler{
		users:    users,
		teams:    teams,
		schedule: schedule,
		ai:       ai,
		notifier: notifier,
		logger:   logger,
	}
}

type messageRequest struct {
	UserID string `json:"user_id"`
	Prompt string `json:"prompt"`
}

type messageResponse struct {
	Result    string `json:"result"`
	ModelUsed string `json:"model_used"`
}

// HandleMessage handles POST /api/message. The compliance gateway has already
// rejected opted-out senders before this runs.
func (h *MessageHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == "" || strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "user_id and prompt are required")
		return
	}

	user, err := h.users.GetByID(req.UserID)
	if err != nil {
		h.logger.Error("get user", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	resp, err := h.Process(r.Context(), user, req.Prompt)
	if err != nil {
		h.logger.Error("message pipeline", "user_id", user.ID, "error", err)
		writeError(w, http.StatusBadGateway, "generation failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Process runs the classifier and, for cleared messages, the generation call.
// It is shared by the HTTP message API and the carrier inbound webhook.
func (h *MessageHandler) Process(ctx context.Context, user *model.User, prompt string) (*messageResponse, error) {
	switch classifier.Classify(prompt) {
	case classifier.DecisionOptOut:
		return h.processOptOut(user)
	case classifier.DecisionOptIn:
		return h.processOptIn(user)
	case classifier.DecisionEmergency:
		return &messageResponse{Result: classifier.EmergencyDeflect, ModelUsed: classifier.SystemModel}, nil
	}
	return h.generate(ctx, user, prompt)
}

func (h *MessageHandler) processOptOut(user *model.User) (*messageResponse, error) {
	if err := h.users.SetCommunicationStatus(user.ID, model.CommOptedOut); err != nil {
		return nil, fmt.Errorf("set opted_out: %w", err)
	}

	if user.TeamID != nil {
		msg := fmt.Sprintf("%s has opted out of messages.", user.Name)
		if _, err := h.notifier.Alert(*user.TeamID, model.AlertTypeOptOut, msg); err != nil {
			// The opt-out itself succeeded; the alert is best effort.
			h.logger.Error("opt-out alert", "user_id", user.ID, "error", err)
		}
	}

	h.logger.Info("user opted out", "user_id", user.ID)
	return &messageResponse{Result: classifier.OptOutConfirmation, ModelUsed: classifier.SystemModel}, nil
}

func (h *MessageHandler) processOptIn(user *model.User) (*messageResponse, error) {
	if err := h.users.SetCommunicationStatus(user.ID, model.CommSubscribed); err != nil {
		return nil, fmt.Errorf("set subscribed: %w", err)
	}
	h.logger.Info("user opted in", "user_id", user.ID)
	return &messageResponse{Result: classifier.OptInConfirmation, ModelUsed: classifier.SystemModel}, nil
}

func (h *MessageHandler) generate(ctx context.Context, user *model.User, prompt string) (*messageResponse, error) {
	if !h.ai.Configured() {
		return nil, fmt.Errorf("generation client not configured")
	}

	plan := model.PlanStarter
	if user.TeamID != nil {
		team, err := h.teams.GetByID(*user.TeamID)
		if err != nil {
			return nil, fmt.Errorf("get team: %w", err)
		}
		if team != nil {
			plan = team.Plan
		}
	}

	fullPrompt := prompt
	if user.TeamID != nil {
		if sched := h.scheduleContext(*user.TeamID); sched != "" {
			fullPrompt = sched + "\n\n" + prompt
		}
	}

	modelName := genai.ModelForPlan(plan)

	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	result, err := h.ai.Generate(ctx, modelName, fullPrompt)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	return &messageResponse{Result: result, ModelUsed: modelName}, nil
}

// scheduleContext renders the team's next few events as prompt context.
// Lookup failures degrade to no context rather than failing the message.
func (h *MessageHandler) scheduleContext(teamID int64) string {
	events, err := h.schedule.ListUpcoming(teamID, time.Now().UTC(), scheduleContextLimit)
	if err != nil {
		h.logger.Error("list schedule for context", "team_id", teamID, "error", err)
		return ""
	}
	if len(events) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Upcoming team schedule:")
	for _, ev := range events {
		b.WriteString(fmt.Sprintf("\n- %s on %s", ev.Title, ev.StartsAt.Format("Mon Jan 2 15:04 MST")))
		if ev.Location != "" {
			b.WriteString(" at " + ev.Location)
		}
	}
	return b.String()
}
