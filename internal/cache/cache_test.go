package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sonroyaalmerol/presenter/internal/media"
	"github.com/sonroyaalmerol/presenter/internal/repository"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProber struct {
	calls atomic.Int32
}

func (p *countingProber) Probe(_ context.Context, path string) (*media.Info, error) {
	p.calls.Add(1)
	return &media.Info{
		Duration:     5 * time.Second,
		Width:        1920,
		Height:       1080,
		FrameRate:    media.Fraction{Num: 25, Den: 1},
		VideoStreams: 1,
	}, nil
}

func newTestCache(t *testing.T, limit int) (*ProbeCache, afero.Fs, *countingProber, *repository.Repo) {
	t.Helper()
	db, err := repository.OpenDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := repository.NewRepo(db)
	fs := afero.NewMemMapFs()
	p := &countingProber{}
	return NewProbeCache(fs, p, repo, limit), fs, p, repo
}

func TestProbeCacheHit(t *testing.T) {
	c, fs, p, _ := newTestCache(t, 10)
	require.NoError(t, afero.WriteFile(fs, "/videos/a.mp4", []byte("aaaa"), 0o644))

	first, err := c.Probe(context.Background(), "/videos/a.mp4")
	require.NoError(t, err)
	second, err := c.Probe(context.Background(), "/videos/a.mp4")
	require.NoError(t, err)

	assert.Equal(t, int32(1), p.calls.Load())
	assert.Equal(t, first, second)
	assert.Equal(t, 1920, second.Width)
}

func TestProbeCacheChangedFileReprobes(t *testing.T) {
	c, fs, p, _ := newTestCache(t, 10)
	require.NoError(t, afero.WriteFile(fs, "/a.mp4", []byte("aaaa"), 0o644))
	_, err := c.Probe(context.Background(), "/a.mp4")
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(fs, "/a.mp4", []byte("aaaaaaaa"), 0o644))
	_, err = c.Probe(context.Background(), "/a.mp4")
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestProbeCacheMissingFile(t *testing.T) {
	c, fs, p, _ := newTestCache(t, 10)
	require.NoError(t, afero.WriteFile(fs, "/a.mp4", []byte("aaaa"), 0o644))
	_, err := c.Probe(context.Background(), "/a.mp4")
	require.NoError(t, err)

	require.NoError(t, fs.Remove("/a.mp4"))
	_, err = c.Probe(context.Background(), "/a.mp4")
	assert.ErrorIs(t, err, media.ErrMediaNotFound)

	require.NoError(t, fs.MkdirAll("/dir.mp4", 0o755))
	_, err = c.Probe(context.Background(), "/dir.mp4")
	assert.ErrorIs(t, err, media.ErrMediaNotFound)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestProbeCacheEvictsOldest(t *testing.T) {
	c, fs, _, repo := newTestCache(t, 2)
	ctx := context.Background()
	for _, name := range []string{"/a.mp4", "/b.mp4", "/c.mp4"} {
		require.NoError(t, afero.WriteFile(fs, name, []byte(name), 0o644))
		_, err := c.Probe(ctx, name)
		require.NoError(t, err)
	}

	n, err := repo.ProbeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	fi, err := fs.Stat("/a.mp4")
	require.NoError(t, err)
	_, err = repo.ProbeGet(ctx, c.HashKey("/a.mp4", fi))
	assert.Error(t, err, "least recently used entry evicted")
}

func TestProbeCacheEvictionFailureDoesNotBlock(t *testing.T) {
	db, err := repository.OpenDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TRIGGER refuse_delete BEFORE DELETE ON probe_cache
		BEGIN SELECT RAISE(ABORT, 'delete refused'); END`)
	require.NoError(t, err)

	repo := repository.NewRepo(db)
	fs := afero.NewMemMapFs()
	p := &countingProber{}
	c := NewProbeCache(fs, p, repo, 1)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		for _, name := range []string{"/a.mp4", "/b.mp4", "/c.mp4"} {
			if err := afero.WriteFile(fs, name, []byte(name), 0o644); err != nil {
				done <- err
				return
			}
			if _, err := c.Probe(ctx, name); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("probe blocked on a refused eviction")
	}
	assert.Equal(t, int32(3), p.calls.Load())

	n, err := repo.ProbeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
