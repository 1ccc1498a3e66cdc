package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sonroyaalmerol/presenter/internal/protocol"
)

type EventHandler interface {
	HandleEvent(ev protocol.Event) error
}

type EventHandlerFunc func(ev protocol.Event) error

func (f EventHandlerFunc) HandleEvent(ev protocol.Event) error { return f(ev) }

// Client is the presenter side of the connection.
type Client struct {
	url  string
	conn *Conn
}

// Dial connects to the projector at url. Events are only read once Serve is
// running.
func Dial(ctx context.Context, url string) (*Client, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return nil, fmt.Errorf("%w: %s already has a controller", ErrConnection, url)
		}
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnection, url, err)
	}
	c := &Client{url: url, conn: newConn(ws)}
	go c.conn.writePump()
	slog.Info("connected to projector", "url", url)
	return c, nil
}

// Send queues cmd for the projector without waiting for it to be written.
func (c *Client) Send(cmd protocol.Command) error {
	raw, err := protocol.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	return c.conn.send(raw)
}

// Serve reads events and hands them to h until the connection is lost.
// Malformed messages are logged and dropped. The returned error wraps
// ErrConnection.
func (c *Client) Serve(h EventHandler) error {
	err := c.conn.readPump(func(raw string) {
		ev, err := protocol.DecodeEvent(raw)
		if err != nil {
			slog.Warn("dropping malformed event", "raw", raw, "err", err)
			return
		}
		if err := h.HandleEvent(ev); err != nil {
			slog.Warn("event handling failed", "event", raw, "err", err)
		}
	})
	_ = c.conn.Close()
	return err
}

func (c *Client) Close() error { return c.conn.Close() }
