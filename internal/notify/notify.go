// Package notify persists alerts and fans them out to every manager surface:
// the websocket feed, web push subscriptions, and email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rosterbot/rosterbot/internal/email"
	"github.com/rosterbot/rosterbot/internal/model"
	"github.com/rosterbot/rosterbot/internal/push"
	"github.com/rosterbot/rosterbot/internal/store"
	"github.com/rosterbot/rosterbot/internal/websocket"
)

// pushTimeout bounds the whole push fan-out for one alert.
const pushTimeout = 30 * time.Second

type Notifier struct {
	alerts   *store.AlertStore
	managers *store.ManagerStore
	pushSubs *store.PushStore
	hub      *websocket.Hub
	pushSvc  *push.Service
	mailer   *email.Client
	logger   *slog.Logger
}

func NewNotifier(
	alerts *store.AlertStore,
	managers *store.ManagerStore,
	pushSubs *store.PushStore,
	hub *websocket.Hub,
	pushSvc *push.Service,
	mailer *email.Client,
	logger *slog.Logger,
) *Notifier {
	return &Notifier{
		alerts:   alerts,
		managers: managers,
		pushSubs: pushSubs,
		hub:      hub,
		pushSvc:  pushSvc,
		mailer:   mailer,
		logger:   logger,
	}
}

// Alert creates an alert record and delivers it to the team's managers.
// Delivery failures are logged, never returned: the alert row is the source
// of truth and the push surfaces are best effort.
func (n *Notifier) Alert(teamID int64, alertType, message string) (*model.Alert, error) {
	alert, err := n.alerts.Create(teamID, alertType, message)
	if err != nil {
		return nil, fmt.Errorf("create alert: %w", err)
	}

	n.hub.BroadcastAlert(*alert)
	n.sendPush(teamID, alertType, message)
	n.sendEmail(teamID, alertType, message)

	return alert, nil
}

func (n *Notifier) sendPush(teamID int64, alertType, message string) {
	if n.pushSvc == nil || !n.pushSvc.Configured() {
		return
	}

	subs, err := n.pushSubs.ListByTeam(teamID)
	if err != nil {
		n.logger.Error("list push subscriptions", "team_id", teamID, "error", err)
		return
	}

	payload := push.Payload{
		Title: "Rosterbot alert",
		Body:  message,
		URL:   "/alerts",
	}

	// Delivery outlives the originating request.
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	for i := range subs {
		err := n.pushSvc.Send(ctx, &subs[i], payload)
		if errors.Is(err, push.ErrExpired) {
			if err := n.pushSubs.DeleteByEndpoint(subs[i].Endpoint); err != nil {
				n.logger.Error("delete expired push subscription", "error", err)
			}
			continue
		}
		if err != nil {
			n.logger.Error("send push", "team_id", teamID, "type", alertType, "error", err)
		}
	}
}

func (n *Notifier) sendEmail(teamID int64, alertType, message string) {
	if n.mailer == nil || !n.mailer.Configured() {
		return
	}

	managers, err := n.managers.ListByTeam(teamID)
	if err != nil {
		n.logger.Error("list managers for alert email", "team_id", teamID, "error", err)
		return
	}

	for _, m := range managers {
		if err := n.mailer.SendAlert(m.Email, alertType, message); err != nil {
			n.logger.Error("send alert email", "manager_id", m.ID, "error", err)
		}
	}
}
