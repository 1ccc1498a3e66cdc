package player

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sonroyaalmerol/presenter/internal/media"
)

// MinRate is the default floor applied to playback rates. Zero or negative
// rates would stall the pipeline.
const MinRate = 0.01

// Session is one opened media file: its pipeline, frame buffer, published
// timestamp and lifecycle state. Its atomics are only meaningful while it is
// the engine's current session.
type Session struct {
	ID        uuid.UUID
	Path      string
	Skip      string
	Info      media.Info
	Frames    *FrameBuffer
	StartedAt time.Time

	pipeline media.Pipeline
	minRate  float64

	positionMs atomic.Uint64
	rateBits   atomic.Uint64
	state      atomic.Int32

	teardownOnce sync.Once
}

func newSession(path, skip string, info media.Info, minRate float64) *Session {
	s := &Session{
		ID:        uuid.New(),
		Path:      path,
		Skip:      skip,
		Info:      info,
		Frames:    NewFrameBuffer(info.FrameSize()),
		StartedAt: time.Now(),
		minRate:   minRate,
	}
	s.rateBits.Store(math.Float64bits(1.0))
	s.state.Store(int32(StateLoading))
	return s
}

// onFrame runs on the pipeline's decode goroutine.
func (s *Session) onFrame(pixels []byte, pos time.Duration) {
	s.publish(pos)
	if err := s.Frames.Write(pixels); err != nil {
		slog.Warn("dropping frame", "session", s.ID, "err", err)
	}
}

func (s *Session) publish(pos time.Duration) {
	if pos < 0 {
		pos = 0
	}
	s.positionMs.Store(uint64(pos.Milliseconds()))
}

func (s *Session) Position() time.Duration {
	return time.Duration(s.positionMs.Load()) * time.Millisecond
}

func (s *Session) Rate() float64 { return math.Float64frombits(s.rateBits.Load()) }

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

func (s *Session) Play() error {
	if err := s.pipeline.Play(); err != nil {
		slog.Warn("play failed", "session", s.ID, "err", err)
		return err
	}
	s.setState(StatePlaying)
	return nil
}

func (s *Session) Pause() error {
	if err := s.pipeline.Pause(); err != nil {
		slog.Warn("pause failed", "session", s.ID, "err", err)
		return err
	}
	s.setState(StatePaused)
	return nil
}

// Seek clamps target to [0, duration] and publishes it before the pipeline
// has landed, which may be on the nearest key frame rather than exactly on
// target. On failure the previous timestamp is restored.
func (s *Session) Seek(target time.Duration) error {
	clamped := lo.Clamp(target, 0, s.Info.Duration)
	prev := s.positionMs.Load()
	s.publish(clamped)

	if err := s.pipeline.Seek(clamped, s.Rate()); err != nil {
		s.positionMs.CompareAndSwap(uint64(clamped.Milliseconds()), prev)
		slog.Warn("seek failed", "session", s.ID, "target", clamped, "err", err)
		return fmt.Errorf("seek: %w", err)
	}
	slog.Debug("seek", "session", s.ID, "requested", target, "target", clamped)
	return nil
}

// SetRate changes the playback speed by seeking to the current position at
// the new rate. Very high rates are approximate: the decoder may not keep up.
func (s *Session) SetRate(r float64) error {
	if !(r >= s.minRate) {
		r = s.minRate
	}
	if err := s.pipeline.Seek(s.Position(), r); err != nil {
		slog.Warn("set rate failed", "session", s.ID, "rate", r, "err", err)
		return fmt.Errorf("set rate: %w", err)
	}
	s.rateBits.Store(math.Float64bits(r))
	slog.Debug("rate changed", "session", s.ID, "rate", r)
	return nil
}

// teardown stops and releases the pipeline. Only the first call does work.
func (s *Session) teardown() {
	s.teardownOnce.Do(func() {
		if s.pipeline == nil {
			return
		}
		if err := s.pipeline.Teardown(); err != nil {
			slog.Warn("pipeline teardown", "session", s.ID, "err", err)
		}
	})
}
