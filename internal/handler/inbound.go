package handler

import (
	"log/slog"
	"net/http"

	"github.com/rosterbot/rosterbot/internal/carrier"
	"github.com/rosterbot/rosterbot/internal/classifier"
	"github.com/rosterbot/rosterbot/internal/model"
	"github.com/rosterbot/rosterbot/internal/store"
)

// InboundHandler receives carrier webhooks for messages users send from their
// phones. Replies go back out through the carrier API.
type InboundHandler struct {
	carrier   *carrier.Client
	users     *store.UserStore
	pipeline  *MessageHandler
	publicURL string
	logger    *slog.Logger
}

// NewInboundHandler creates the carrier webhook handler. publicURL is the
// externally visible URL of the webhook endpoint; the carrier signs exactly
// that URL, not whatever Host header reaches us behind the proxy.
func NewInboundHandler(c *carrier.Client, users *store.UserStore, pipeline *MessageHandler, publicURL string, logger *slog.Logger) *InboundHandler {
	return &InboundHandler{
		carrier:   c,
		users:     users,
		pipeline:  pipeline,
		publicURL: publicURL,
		logger:    logger,
	}
}

// HandleInbound handles POST /webhooks/carrier. Unknown senders get a 200 with
// no reply so the carrier does not retry them forever.
func (h *InboundHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	if !h.carrier.VerifySignature(h.publicURL, r.PostForm, r.Header.Get("X-Twilio-Signature")) {
		h.logger.Warn("inbound signature verification failed", "remote", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	from := r.PostForm.Get("From")
	body := r.PostForm.Get("Body")
	if from == "" || body == "" {
		http.Error(w, "missing From or Body", http.StatusBadRequest)
		return
	}

	user, err := h.users.GetByPhone(from)
	if err != nil {
		h.logger.Error("get user by phone", "error", err)
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if user == nil {
		h.logger.Info("inbound message from unknown number")
		w.WriteHeader(http.StatusOK)
		return
	}

	// Consent gate for the message channel: opted-out senders are dropped
	// unless the message is the exact re-subscribe command.
	if user.Status == model.CommOptedOut && classifier.Classify(body) != classifier.DecisionOptIn {
		h.logger.Info("dropped inbound from opted-out user", "user_id", user.ID)
		w.WriteHeader(http.StatusOK)
		return
	}

	resp, err := h.pipeline.Process(r.Context(), user, body)
	if err != nil {
		h.logger.Error("inbound pipeline", "user_id", user.ID, "error", err)
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}

	if err := h.carrier.SendMessage(r.Context(), from, resp.Result); err != nil {
		h.logger.Error("send carrier reply", "user_id", user.ID, "error", err)
		http.Error(w, "send failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
