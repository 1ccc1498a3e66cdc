package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := OpenDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepo(db)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenDB(dir)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(filepath.Join(dir, dbFile))
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestSessionLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	start := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, repo.InsertSession(ctx, &SessionRecord{
		ID: "a", Path: "/a.mp4", Skip: "VideoEnd", Width: 1920, Height: 1080,
		Duration: 5 * time.Second, Outcome: OutcomePlaying, StartedAt: start,
	}))
	require.NoError(t, repo.InsertSession(ctx, &SessionRecord{
		ID: "b", Path: "/missing.mp4", Skip: "Input", Outcome: OutcomeFailed,
		Error: "media not found", StartedAt: start.Add(time.Second),
	}))
	require.NoError(t, repo.UpdateSessionOutcome(ctx, "a", OutcomeFinished, "", start.Add(5*time.Second)))

	got, err := repo.RecentSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, OutcomeFailed, got[0].Outcome)
	assert.Equal(t, "media not found", got[0].Error)
	require.NotNil(t, got[0].EndedAt)

	assert.Equal(t, "a", got[1].ID)
	assert.Equal(t, OutcomeFinished, got[1].Outcome)
	assert.Equal(t, 5*time.Second, got[1].Duration)
	assert.Equal(t, 1920, got[1].Width)
	require.NotNil(t, got[1].EndedAt)
	assert.Equal(t, start.Add(5*time.Second), *got[1].EndedAt)

	assert.ErrorIs(t, repo.UpdateSessionOutcome(ctx, "nope", OutcomeStopped, "", start), sql.ErrNoRows)
}

func TestProbeCacheRows(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.ProbeGet(ctx, "k1")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, repo.ProbePut(ctx, "k1", []byte(`{"width":1}`)))
	require.NoError(t, repo.ProbePut(ctx, "k2", []byte(`{"width":2}`)))

	oldest, err := repo.ProbeOldest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "k1", oldest)

	e, err := repo.ProbeGet(ctx, "k1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"width":1}`, string(e.Info))

	oldest, err = repo.ProbeOldest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "k2", oldest, "get refreshes access time")

	n, err := repo.ProbeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, repo.ProbeRemove(ctx, "k2"))
	n, err = repo.ProbeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestJournalWritesInOrder(t *testing.T) {
	repo := newTestRepo(t)
	j := NewJournal(repo, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	j.Started(SessionRecord{ID: "s1", Path: "/a.mp4", Outcome: OutcomePlaying, StartedAt: time.Now()})
	j.Ended("s1", OutcomePreempted, "")

	require.Eventually(t, func() bool {
		got, err := j.Recent(context.Background(), 1)
		return err == nil && len(got) == 1 && got[0].Outcome == OutcomePreempted
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestJournalDropsWhenFull(t *testing.T) {
	j := NewJournal(newTestRepo(t), 1)

	j.Started(SessionRecord{ID: "s1", Outcome: OutcomePlaying, StartedAt: time.Now()})
	j.Ended("s1", OutcomeStopped, "")
	j.Ended("s1", OutcomeStopped, "")
	assert.Equal(t, uint64(2), j.Dropped())

	// Run drains what was buffered even when cancelled right away.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, j.Run(ctx))

	got, err := j.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].ID)
}
