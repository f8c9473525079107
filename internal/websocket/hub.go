// Package websocket pushes manager alerts to connected dashboard clients.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/rosterbot/rosterbot/internal/model"
)

// AlertMessage is the wire format for a broadcast alert.
type AlertMessage struct {
	Type  string      `json:"type"`
	Alert model.Alert `json:"alert"`
}

// Hub maintains the set of active clients indexed by team, so a broadcast
// only touches the owning team's connections.
type Hub struct {
	mu     sync.RWMutex
	teams  map[int64]map[*Client]struct{}
	logger *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		teams:  make(map[int64]map[*Client]struct{}),
		logger: logger,
	}
}

// Register adds a client under its team.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.teams[c.teamID]
	if !ok {
		set = make(map[*Client]struct{})
		h.teams[c.teamID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel. Calling it twice
// for the same client is safe.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.teams[c.teamID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.teams, c.teamID)
		}
	}
	h.mu.Unlock()
}

// BroadcastAlert sends an alert to every connected client of its team.
func (h *Hub) BroadcastAlert(alert model.Alert) {
	data, err := json.Marshal(AlertMessage{Type: "alert", Alert: alert})
	if err != nil {
		h.logger.Error("marshal alert broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.teams[alert.TeamID] {
		select {
		case c.send <- data:
		default:
			// Client buffer full — drop message to avoid blocking
		}
	}
}

// ClientCount returns the number of connected clients across all teams.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.teams {
		n += len(set)
	}
	return n
}
