package player

import (
	"time"

	"github.com/google/uuid"
	"github.com/sonroyaalmerol/presenter/internal/protocol"
	"github.com/sonroyaalmerol/presenter/internal/repository"
)

type State int32

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateFinished
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// EventSender delivers events to the connected controller.
type EventSender interface {
	SendEvent(ev protocol.Event) error
}

// Journal records session lifecycle without blocking the caller.
type Journal interface {
	Started(rec repository.SessionRecord)
	Ended(id string, outcome repository.Outcome, errMsg string)
}

type Status struct {
	State     State         `json:"state"`
	SessionID *uuid.UUID    `json:"session_id,omitempty"`
	Path      string        `json:"path,omitempty"`
	Skip      string        `json:"skip,omitempty"`
	Position  time.Duration `json:"-"`
	Duration  time.Duration `json:"-"`
	Rate      float64       `json:"rate,omitempty"`
	Width     int           `json:"width,omitempty"`
	Height    int           `json:"height,omitempty"`
	LastError string        `json:"last_error,omitempty"`

	PositionMs int64 `json:"position_ms"`
	DurationMs int64 `json:"duration_ms"`
}
