package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sonroyaalmerol/presenter/internal/media"
	"github.com/sonroyaalmerol/presenter/internal/protocol"
	"github.com/sonroyaalmerol/presenter/internal/repository"
)

var ErrNoSession = errors.New("no active session")

// Engine owns at most one Session at a time. Start, Stop and Poll are
// serialised by mu; a new Start always tears the previous session down
// before probing, so two pipelines never run at once. Current and Status
// only read atomics and are safe from any goroutine.
type Engine struct {
	prober  media.Prober
	opener  media.Opener
	journal Journal
	minRate float64

	mu     sync.Mutex
	events EventSender

	cur     atomic.Pointer[Session]
	state   atomic.Int32
	lastErr atomic.Pointer[string]
}

func NewEngine(prober media.Prober, opener media.Opener, journal Journal) *Engine {
	return &Engine{
		prober:  prober,
		opener:  opener,
		journal: journal,
		minRate: MinRate,
	}
}

// SetMinRate changes the rate floor for sessions started afterwards.
func (e *Engine) SetMinRate(r float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r > 0 {
		e.minRate = r
	}
}

func (e *Engine) SetEventSender(s EventSender) {
	e.mu.Lock()
	e.events = s
	e.mu.Unlock()
}

// Current returns the active session or nil.
func (e *Engine) Current() *Session { return e.cur.Load() }

func (e *Engine) State() State {
	if s := e.cur.Load(); s != nil {
		return s.State()
	}
	return State(e.state.Load())
}

// Start preempts any active session and opens path. On a loading failure no
// session is left behind, the engine enters StateError and a PlaybackError
// event is sent.
func (e *Engine) Start(ctx context.Context, path, skip string) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked(repository.OutcomePreempted)
	e.setState(StateLoading)

	if _, err := protocol.ParseSkipPolicy(skip); err != nil {
		slog.Warn("unrecognised skip policy", "path", path, "skip", skip)
	}

	slog.Info("loading media", "path", path, "skip", skip)
	info, err := e.prober.Probe(ctx, path)
	if err != nil {
		return nil, e.failLocked(path, skip, nil, err)
	}

	sess := newSession(path, skip, *info, e.minRate)
	pl, err := e.opener.Open(path, info.Width, info.Height, sess.onFrame)
	if err != nil {
		return nil, e.failLocked(path, skip, info, err)
	}
	sess.pipeline = pl

	if err := sess.Play(); err != nil {
		sess.teardown()
		return nil, e.failLocked(path, skip, info, err)
	}

	e.cur.Store(sess)
	e.lastErr.Store(nil)
	e.record(sess, repository.OutcomePlaying, "")
	slog.Info("playback started",
		"session", sess.ID,
		"path", path,
		"duration", info.Duration,
		"width", info.Width,
		"height", info.Height,
	)
	return sess, nil
}

func (e *Engine) failLocked(path, skip string, info *media.Info, cause error) error {
	e.setState(StateError)
	msg := cause.Error()
	e.lastErr.Store(&msg)

	kind := ErrorKind(cause)
	slog.Error("failed to start playback", "path", path, "kind", kind, "err", cause)
	e.emitLocked(protocol.PlaybackError{Kind: kind, Message: msg})

	failed := newSession(path, skip, media.Info{}, e.minRate)
	if info != nil {
		failed.Info = *info
	}
	e.record(failed, repository.OutcomeFailed, msg)
	return cause
}

// ErrorKind maps a loading error to the kind carried by PlaybackError.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, media.ErrMediaNotFound):
		return protocol.KindMediaNotFound
	case errors.Is(err, media.ErrNoVideoStream):
		return protocol.KindNoVideoStream
	case errors.Is(err, media.ErrProbeFailed):
		return protocol.KindProbeFailed
	default:
		return protocol.KindPipelineError
	}
}

// Poll is called once per render tick. It never waits: if a Start or Stop
// holds the engine the check is skipped until the next tick.
func (e *Engine) Poll() {
	if !e.mu.TryLock() {
		return
	}
	defer e.mu.Unlock()

	s := e.cur.Load()
	if s == nil {
		return
	}

	if err := s.pipeline.Err(); err != nil {
		slog.Error("pipeline failed", "session", s.ID, "err", err)
		s.setState(StateError)
		e.cur.Store(nil)
		e.setState(StateError)
		msg := err.Error()
		e.lastErr.Store(&msg)
		e.emitLocked(protocol.PlaybackError{Kind: protocol.KindPipelineError, Message: msg})
		s.teardown()
		e.end(s, repository.OutcomeFailed, msg)
		return
	}

	if !s.pipeline.PollEOS() {
		return
	}

	s.setState(StateFinished)
	e.cur.Store(nil)
	e.setState(StateFinished)
	slog.Info("playback finished", "session", s.ID, "path", s.Path)
	e.emitLocked(protocol.VideoEnded{})
	s.teardown()
	e.end(s, repository.OutcomeFinished, "")
}

func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.stopLocked(repository.OutcomeStopped) {
		return ErrNoSession
	}
	e.setState(StateIdle)
	return nil
}

// stopLocked tears down the active session synchronously. Caller must hold e.mu.
func (e *Engine) stopLocked(outcome repository.Outcome) bool {
	s := e.cur.Swap(nil)
	if s == nil {
		return false
	}
	slog.Debug("tearing down session", "session", s.ID, "outcome", outcome)
	s.teardown()
	e.end(s, outcome, "")
	return true
}

func (e *Engine) Pause() error {
	s := e.cur.Load()
	if s == nil {
		return ErrNoSession
	}
	return s.Pause()
}

func (e *Engine) Resume() error {
	s := e.cur.Load()
	if s == nil {
		return ErrNoSession
	}
	return s.Play()
}

func (e *Engine) Seek(target time.Duration) error {
	s := e.cur.Load()
	if s == nil {
		return ErrNoSession
	}
	return s.Seek(target)
}

func (e *Engine) SetRate(r float64) error {
	s := e.cur.Load()
	if s == nil {
		return ErrNoSession
	}
	return s.SetRate(r)
}

// HandleCommand applies a command received from the controller.
func (e *Engine) HandleCommand(ctx context.Context, cmd protocol.Command) error {
	switch c := cmd.(type) {
	case protocol.Start:
		_, err := e.Start(ctx, c.Path, c.Skip)
		return err
	case protocol.Pause:
		return e.Pause()
	case protocol.Resume:
		return e.Resume()
	case protocol.Seek:
		return e.Seek(c.Position)
	case protocol.SetRate:
		return e.SetRate(c.Rate)
	case protocol.Stop:
		return e.Stop()
	default:
		return fmt.Errorf("%w: unhandled command %T", protocol.ErrProtocol, cmd)
	}
}

func (e *Engine) Status() Status {
	st := Status{State: e.State()}
	if p := e.lastErr.Load(); p != nil {
		st.LastError = *p
	}
	s := e.cur.Load()
	if s == nil {
		return st
	}
	id := s.ID
	st.SessionID = &id
	st.Path = s.Path
	st.Skip = s.Skip
	st.Position = s.Position()
	st.Duration = s.Info.Duration
	st.Rate = s.Rate()
	st.Width = s.Info.Width
	st.Height = s.Info.Height
	st.PositionMs = st.Position.Milliseconds()
	st.DurationMs = st.Duration.Milliseconds()
	return st
}

func (e *Engine) setState(st State) { e.state.Store(int32(st)) }

func (e *Engine) emitLocked(ev protocol.Event) {
	if e.events == nil {
		return
	}
	if err := e.events.SendEvent(ev); err != nil {
		slog.Warn("could not send event", "event", fmt.Sprintf("%T", ev), "err", err)
	}
}

func (e *Engine) record(s *Session, outcome repository.Outcome, errMsg string) {
	if e.journal == nil {
		return
	}
	e.journal.Started(repository.SessionRecord{
		ID:        s.ID.String(),
		Path:      s.Path,
		Skip:      s.Skip,
		Width:     s.Info.Width,
		Height:    s.Info.Height,
		Duration:  s.Info.Duration,
		Outcome:   outcome,
		Error:     errMsg,
		StartedAt: s.StartedAt,
	})
}

func (e *Engine) end(s *Session, outcome repository.Outcome, errMsg string) {
	if e.journal == nil {
		return
	}
	e.journal.Ended(s.ID.String(), outcome, errMsg)
}
