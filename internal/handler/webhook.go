package handler

import (
	"io"
	"log/slog"
	"net/http"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/rosterbot/rosterbot/internal/billing"
)

const maxWebhookBody = 64 * 1024

// WebhookVerifier checks a raw webhook payload against its signature header.
type WebhookVerifier interface {
	VerifyWebhook(payload []byte, sigHeader string) (stripe.Event, error)
}

type WebhookHandler struct {
	verifier   WebhookVerifier
	reconciler *billing.Reconciler
	logger     *slog.Logger
}

func NewWebhookHandler(verifier WebhookVerifier, reconciler *billing.Reconciler, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, reconciler: reconciler, logger: logger}
}

// HandleStripeWebhook handles POST /webhooks/stripe. Signature failures are
// 400 and will not be retried by the provider; transient apply errors are 500
// so the provider redelivers and the idempotency record absorbs the retry.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	stripeEvent, err := h.verifier.VerifyWebhook(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	ev, err := billing.ParseEvent(stripeEvent)
	if err != nil {
		h.logger.Error("webhook parse event", "event_id", stripeEvent.ID, "type", stripeEvent.Type, "error", err)
		http.Error(w, "malformed event", http.StatusBadRequest)
		return
	}

	outcome, err := h.reconciler.Apply(r.Context(), ev)
	if err != nil {
		h.logger.Error("webhook apply event", "event_id", ev.EventID(), "error", err)
		http.Error(w, "apply failed", http.StatusInternalServerError)
		return
	}

	h.logger.Info("webhook processed", "event_id", ev.EventID(), "type", stripeEvent.Type, "outcome", outcome)
	w.WriteHeader(http.StatusOK)
}
