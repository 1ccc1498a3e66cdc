package player

import (
	"context"
	"log/slog"
	"time"
)

const DefaultFPS = 60

// Surface presents frames. The window toolkit implements it; pixels are only
// valid for the duration of the call.
type Surface interface {
	UpdateSurface(pixels []byte) error
}

// RenderPump pulls the latest frame into a Surface at a fixed rate. It never
// waits on decoding or the network.
type RenderPump struct {
	engine   *Engine
	surface  Surface
	interval time.Duration
}

func NewRenderPump(engine *Engine, surface Surface, fps int) *RenderPump {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &RenderPump{
		engine:   engine,
		surface:  surface,
		interval: time.Second / time.Duration(fps),
	}
}

// Tick checks for end of stream and presents a new frame if one is pending.
// It reports whether a frame was presented.
func (r *RenderPump) Tick() bool {
	r.engine.Poll()

	s := r.engine.Current()
	if s == nil {
		return false
	}
	presented, err := s.Frames.Consume(r.surface.UpdateSurface)
	if err != nil {
		slog.Warn("update surface", "session", s.ID, "err", err)
	}
	return presented
}

func (r *RenderPump) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	slog.Info("render loop started", "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("render loop stopped")
			return nil
		case <-t.C:
			r.Tick()
		}
	}
}
