package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 5 * time.Second
)

// Client is a single dashboard connection belonging to one team's manager.
// The alert feed is write-only; inbound frames are discarded.
type Client struct {
	hub    *Hub
	conn   *ws.Conn
	teamID int64
	send   chan []byte
}

// NewClient creates a Client tied to the given hub, connection, and team.
func NewClient(hub *Hub, conn *ws.Conn, teamID int64) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		teamID: teamID,
		send:   make(chan []byte, sendBufferSize),
	}
}

// Run registers the client and streams its team's alerts until the
// connection drops or ctx is canceled, then unregisters.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	// CloseRead discards inbound frames and cancels the returned context
	// when the peer goes away.
	ctx = c.conn.CloseRead(ctx)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				// Hub closed the channel — connection is done
				c.conn.Close(ws.StatusNormalClosure, "")
				return
			}
			if err := c.write(ctx, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, msg)
}
