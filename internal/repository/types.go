package repository

import (
	"database/sql"
	"time"
)

type Repo struct {
	db *sql.DB
}

type Outcome string

const (
	OutcomePlaying   Outcome = "playing"
	OutcomeFinished  Outcome = "finished"
	OutcomePreempted Outcome = "preempted"
	OutcomeStopped   Outcome = "stopped"
	OutcomeFailed    Outcome = "failed"
)

// SessionRecord is one row of the playback journal.
type SessionRecord struct {
	ID        string        `json:"id"`
	Path      string        `json:"path"`
	Skip      string        `json:"skip"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	Duration  time.Duration `json:"duration"`
	Outcome   Outcome       `json:"outcome"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
}

type ProbeEntry struct {
	Key        string
	Info       []byte
	AccessedAt time.Time
}
