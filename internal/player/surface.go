package player

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sonroyaalmerol/presenter/internal/utils"
)

// HeadlessSurface stands in for a window. It keeps a copy of the last frame
// and periodically logs what is being shown.
type HeadlessSurface struct {
	engine   *Engine
	logEvery time.Duration

	mu        sync.Mutex
	last      []byte
	presented uint64
	lastLog   time.Time
}

func NewHeadlessSurface(engine *Engine, logEvery time.Duration) *HeadlessSurface {
	if logEvery <= 0 {
		logEvery = 5 * time.Second
	}
	return &HeadlessSurface{engine: engine, logEvery: logEvery}
}

func (h *HeadlessSurface) UpdateSurface(pixels []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cap(h.last) < len(pixels) {
		h.last = make([]byte, len(pixels))
	}
	h.last = h.last[:len(pixels)]
	copy(h.last, pixels)
	h.presented++

	if now := time.Now(); now.Sub(h.lastLog) >= h.logEvery {
		h.lastLog = now
		st := h.engine.Status()
		slog.Debug("presenting",
			"state", st.State,
			"path", st.Path,
			"progress", ProgressBar(20, st.Position, st.Duration),
			"elapsed", utils.PrettyTime(st.Position)+"/"+utils.PrettyTime(st.Duration),
			"rate", st.Rate,
			"frames", h.presented,
		)
	}
	return nil
}

func (h *HeadlessSurface) Presented() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.presented
}

// LastFrame returns a copy of the most recently presented frame.
func (h *HeadlessSurface) LastFrame() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]byte(nil), h.last...)
}
