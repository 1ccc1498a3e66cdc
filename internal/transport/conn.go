// Package transport carries protocol messages between the presenter and the
// projector over a single WebSocket connection, one text frame per message.
package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrConnection    = errors.New("connection error")
	ErrClosed        = fmt.Errorf("%w: connection closed", ErrConnection)
	ErrNotConnected  = fmt.Errorf("%w: no peer connected", ErrConnection)
	ErrSendQueueFull = errors.New("send queue full")
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	outboxSize     = 64
)

// Conn owns one WebSocket. Outgoing messages go through a FIFO outbox
// drained by a single writer goroutine, so Send never blocks on the network.
type Conn struct {
	ws     *websocket.Conn
	outbox chan string

	done       chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{
		ws:         ws,
		outbox:     make(chan string, outboxSize),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

func (c *Conn) send(raw string) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.outbox <- raw:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrSendQueueFull
	}
}

// writePump is the only goroutine writing data frames to ws.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
		close(c.writerDone)
	}()

	for {
		select {
		case raw := <-c.outbox:
			if err := c.write(websocket.TextMessage, []byte(raw)); err != nil {
				slog.Debug("websocket write failed", "err", err)
				c.shutdown()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				slog.Debug("websocket ping failed", "err", err)
				c.shutdown()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			return
		}
	}
}

func (c *Conn) flush() {
	for {
		select {
		case raw := <-c.outbox:
			if err := c.write(websocket.TextMessage, []byte(raw)); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) write(mt int, data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(mt, data)
}

// readPump delivers every text message to handle until the connection fails.
// The returned error always wraps ErrConnection.
func (c *Conn) readPump(handle func(raw string)) error {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return ErrClosed
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("%w: peer closed the connection", ErrConnection)
			}
			return fmt.Errorf("%w: read: %w", ErrConnection, err)
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		if mt != websocket.TextMessage {
			slog.Warn("dropping non-text message", "type", mt, "bytes", len(data))
			continue
		}
		handle(string(data))
	}
}

func (c *Conn) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Close flushes queued messages, sends a close frame and waits for the
// writer to release the socket.
func (c *Conn) Close() error {
	c.shutdown()
	<-c.writerDone
	return nil
}
