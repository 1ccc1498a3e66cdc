package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/sonroyaalmerol/presenter/internal/media"
	"github.com/sonroyaalmerol/presenter/internal/repository"
	"github.com/spf13/afero"
)

const DefaultLimit = 256

// ProbeCache remembers probe results in SQLite keyed by path, size and
// modification time. Existence is always checked against the filesystem
// first, so a file that disappeared is reported missing even if cached.
type ProbeCache struct {
	fs     afero.Fs
	prober media.Prober
	repo   *repository.Repo
	limit  int
	mu     sync.Mutex
}

func NewProbeCache(fs afero.Fs, prober media.Prober, repo *repository.Repo, limit int) *ProbeCache {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &ProbeCache{fs: fs, prober: prober, repo: repo, limit: limit}
}

func (c *ProbeCache) HashKey(path string, fi os.FileInfo) string {
	s := fmt.Sprintf("%s\x00%d\x00%d", path, fi.Size(), fi.ModTime().UnixNano())
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func (c *ProbeCache) Probe(ctx context.Context, path string) (*media.Info, error) {
	f, err := media.CheckExists(c.fs, path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", media.ErrMediaNotFound, path, err)
	}
	key := c.HashKey(path, fi)

	if info, ok := c.get(ctx, key); ok {
		slog.Debug("probe cache hit", "path", path)
		return info, nil
	}

	info, err := c.prober.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	b, err := json.Marshal(info)
	if err != nil {
		return info, nil
	}
	if err := c.repo.ProbePut(ctx, key, b); err != nil {
		slog.Warn("probe cache store", "path", path, "err", err)
		return info, nil
	}
	if err := c.evictIfNeeded(ctx); err != nil {
		slog.Warn("probe cache evict", "err", err)
	}
	return info, nil
}

func (c *ProbeCache) get(ctx context.Context, key string) (*media.Info, bool) {
	e, err := c.repo.ProbeGet(ctx, key)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("probe cache lookup", "err", err)
		}
		return nil, false
	}
	var info media.Info
	if err := json.Unmarshal(e.Info, &info); err != nil {
		if err := c.repo.ProbeRemove(ctx, key); err != nil {
			slog.Warn("probe cache drop corrupt entry", "err", err)
		}
		return nil, false
	}
	return &info, true
}

// evictIfNeeded removes the least recently used rows beyond the limit. It
// stops at the first failed delete.
func (c *ProbeCache) evictIfNeeded(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	total, err := c.repo.ProbeCount(ctx)
	if err != nil {
		return err
	}
	for range total - c.limit {
		oldest, err := c.repo.ProbeOldest(ctx)
		if err != nil {
			return err
		}
		if err := c.repo.ProbeRemove(ctx, oldest); err != nil {
			return fmt.Errorf("remove %s: %w", oldest, err)
		}
	}
	return nil
}
