package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sonroyaalmerol/presenter/internal/protocol"
)

type CommandHandler interface {
	HandleCommand(ctx context.Context, cmd protocol.Command) error
}

// StatusFunc reports projector state for GET /status.
type StatusFunc func(ctx context.Context) (any, error)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// the projector is a local display; any origin may control it
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the projector side. It accepts exactly one controller
// connection per run and rejects any later attempt with 409 Conflict.
type Server struct {
	ctx     context.Context
	handler CommandHandler
	status  StatusFunc

	accepted  atomic.Bool
	conn      atomic.Pointer[Conn]
	connected chan struct{}

	doneOnce sync.Once
	done     chan struct{}
	err      error
}

func NewServer(ctx context.Context, handler CommandHandler, status StatusFunc) *Server {
	return &Server{
		ctx:       ctx,
		handler:   handler,
		status:    status,
		connected: make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/", s.handleWS)
	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)

	return r
}

// Connected is closed once the controller connection has been accepted.
func (s *Server) Connected() <-chan struct{} { return s.connected }

// Wait blocks until the controller connection is lost and returns the cause,
// which wraps ErrConnection.
func (s *Server) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendEvent queues ev for the controller.
func (s *Server) SendEvent(ev protocol.Event) error {
	c := s.conn.Load()
	if c == nil {
		return ErrNotConnected
	}
	raw, err := protocol.EncodeEvent(ev)
	if err != nil {
		return err
	}
	return c.send(raw)
}

func (s *Server) Close() error {
	if c := s.conn.Load(); c != nil {
		return c.Close()
	}
	return nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.accepted.CompareAndSwap(false, true) {
		slog.Warn("rejecting additional controller", "remote", r.RemoteAddr)
		http.Error(w, "projector already has a controller", http.StatusConflict)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade", "remote", r.RemoteAddr, "err", err)
		s.accepted.Store(false)
		return
	}

	conn := newConn(ws)
	s.conn.Store(conn)
	close(s.connected)
	slog.Info("controller connected", "remote", r.RemoteAddr)

	go conn.writePump()
	err = conn.readPump(s.dispatch)
	_ = conn.Close()

	slog.Error("controller connection lost", "remote", r.RemoteAddr, "err", err)
	s.finish(err)
}

// dispatch runs on the read loop, so commands are applied in arrival order.
func (s *Server) dispatch(raw string) {
	cmd, err := protocol.DecodeCommand(raw)
	if err != nil {
		slog.Warn("dropping malformed command", "raw", raw, "err", err)
		return
	}
	if err := s.handler.HandleCommand(s.ctx, cmd); err != nil {
		slog.Warn("command failed", "command", raw, "err", err)
	}
}

func (s *Server) finish(err error) {
	s.doneOnce.Do(func() {
		s.err = err
		close(s.done)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	st, err := s.status(r.Context())
	if err != nil {
		slog.Warn("status", "err", err)
		http.Error(w, "status unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
