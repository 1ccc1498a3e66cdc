package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

// InsertSession stores a new journal row. Rows with a terminal outcome get
// ended_at set to their start time.
func (r *Repo) InsertSession(ctx context.Context, s *SessionRecord) error {
	var ended sql.NullInt64
	if s.Outcome != OutcomePlaying {
		ended = sql.NullInt64{Int64: s.StartedAt.UnixMilli(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions(id, path, skip, width, height, duration_ms, outcome, error, started_at, ended_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.Path, s.Skip, s.Width, s.Height, s.Duration.Milliseconds(),
		string(s.Outcome), s.Error, s.StartedAt.UnixMilli(), ended,
	)
	return err
}

func (r *Repo) UpdateSessionOutcome(ctx context.Context, id string, outcome Outcome, errMsg string, endedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET outcome=?, error=?, ended_at=? WHERE id=?`,
		string(outcome), errMsg, endedAt.UnixMilli(), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *Repo) RecentSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, path, skip, width, height, duration_ms, outcome, error, started_at, ended_at
	FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var (
			s          SessionRecord
			durationMs int64
			outcome    string
			startedAt  int64
			endedAt    sql.NullInt64
		)
		if err := rows.Scan(
			&s.ID, &s.Path, &s.Skip, &s.Width, &s.Height,
			&durationMs, &outcome, &s.Error, &startedAt, &endedAt,
		); err != nil {
			return nil, err
		}
		s.Duration = time.Duration(durationMs) * time.Millisecond
		s.Outcome = Outcome(outcome)
		s.StartedAt = time.UnixMilli(startedAt)
		if endedAt.Valid {
			t := time.UnixMilli(endedAt.Int64)
			s.EndedAt = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ProbeGet returns the cached entry for key and marks it as recently used.
func (r *Repo) ProbeGet(ctx context.Context, key string) (*ProbeEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT key, info, accessed_at FROM probe_cache WHERE key=?`, key)
	var (
		e  ProbeEntry
		at int64
	)
	if err := row.Scan(&e.Key, &e.Info, &at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	now := time.Now()
	if _, err := r.db.ExecContext(ctx, `UPDATE probe_cache SET accessed_at=? WHERE key=?`, now.UnixNano(), key); err != nil {
		return nil, err
	}
	e.AccessedAt = now
	return &e, nil
}

func (r *Repo) ProbePut(ctx context.Context, key string, info []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO probe_cache(key, info, accessed_at) VALUES (?,?,?)`,
		key, info, time.Now().UnixNano(),
	)
	return err
}

func (r *Repo) ProbeRemove(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM probe_cache WHERE key=?`, key)
	return err
}

func (r *Repo) ProbeCount(ctx context.Context) (int, error) {
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM probe_cache`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *Repo) ProbeOldest(ctx context.Context) (string, error) {
	row := r.db.QueryRowContext(ctx, `SELECT key FROM probe_cache ORDER BY accessed_at ASC LIMIT 1`)
	var key string
	if err := row.Scan(&key); err != nil {
		return "", err
	}
	return key, nil
}
