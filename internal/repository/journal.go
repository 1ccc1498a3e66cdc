package repository

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const DefaultJournalBuffer = 64

type journalOp struct {
	start   *SessionRecord
	id      string
	outcome Outcome
	errMsg  string
	at      time.Time
}

// Journal records session lifecycle in the background so that callers on
// the render loop never wait on SQLite. When the buffer is full entries are
// dropped with a warning.
type Journal struct {
	repo    *Repo
	ops     chan journalOp
	dropped atomic.Uint64
}

func NewJournal(repo *Repo, buffer int) *Journal {
	if buffer <= 0 {
		buffer = DefaultJournalBuffer
	}
	return &Journal{repo: repo, ops: make(chan journalOp, buffer)}
}

func (j *Journal) Started(rec SessionRecord) {
	j.enqueue(journalOp{start: &rec})
}

func (j *Journal) Ended(id string, outcome Outcome, errMsg string) {
	j.enqueue(journalOp{id: id, outcome: outcome, errMsg: errMsg, at: time.Now()})
}

func (j *Journal) Dropped() uint64 { return j.dropped.Load() }

func (j *Journal) Recent(ctx context.Context, limit int) ([]SessionRecord, error) {
	return j.repo.RecentSessions(ctx, limit)
}

func (j *Journal) enqueue(op journalOp) {
	select {
	case j.ops <- op:
	default:
		j.dropped.Add(1)
		slog.Warn("journal full, dropping entry", "dropped", j.dropped.Load())
	}
}

// Run writes queued entries until ctx is cancelled, then flushes what is
// still buffered. Individual writes are not bound to ctx.
func (j *Journal) Run(ctx context.Context) error {
	wctx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case op := <-j.ops:
					j.apply(wctx, op)
				default:
					return nil
				}
			}
		case op := <-j.ops:
			j.apply(wctx, op)
		}
	}
}

func (j *Journal) apply(parent context.Context, op journalOp) {
	ctx, cancel := context.WithTimeout(parent, 2*time.Second)
	defer cancel()
	if op.start != nil {
		if err := j.repo.InsertSession(ctx, op.start); err != nil {
			slog.Warn("journal insert", "session", op.start.ID, "err", err)
		}
		return
	}
	if err := j.repo.UpdateSessionOutcome(ctx, op.id, op.outcome, op.errMsg, op.at); err != nil {
		slog.Warn("journal update", "session", op.id, "outcome", op.outcome, "err", err)
	}
}
