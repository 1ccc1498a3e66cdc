// Package playlist holds the presenter's ordered list of sources and turns
// navigation into Start commands for the projector.
package playlist

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/sonroyaalmerol/presenter/internal/protocol"
)

var ErrIndexOutOfRange = errors.New("index out of range")

// Dispatcher sends commands to the projector without waiting for them to
// take effect.
type Dispatcher interface {
	Send(cmd protocol.Command) error
}

type Status int

const (
	StatusIdle Status = iota
	StatusPlaying
	StatusEnded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPlaying:
		return "playing"
	case StatusEnded:
		return "ended"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Entry struct {
	Index   int
	Source  protocol.Source
	Current bool
}

type Snapshot struct {
	Entries   []Entry
	Current   mo.Option[int]
	Status    Status
	LastError string
}

// Controller owns the playlist. The current index, when present, is always
// a valid index into sources.
type Controller struct {
	mu         sync.Mutex
	sources    []protocol.Source
	current    mo.Option[int]
	status     Status
	lastErr    string
	dispatcher Dispatcher
	onChange   func(Snapshot)
}

func NewController(d Dispatcher) *Controller {
	return &Controller{dispatcher: d, current: mo.None[int]()}
}

// OnChange registers fn to be called after every state change. fn runs
// outside the controller's lock.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sources)
}

func (c *Controller) Append(src protocol.Source) int {
	c.mu.Lock()
	c.sources = append(c.sources, src)
	i := len(c.sources) - 1
	c.mu.Unlock()
	c.changed()
	return i
}

// Remove deletes entry i. Removing the current entry clears the current
// index; removing an earlier one shifts it down.
func (c *Controller) Remove(i int) (protocol.Source, error) {
	c.mu.Lock()
	if err := c.checkLocked(i); err != nil {
		c.mu.Unlock()
		return protocol.Source{}, err
	}
	removed := c.sources[i]
	c.sources = slices.Delete(c.sources, i, i+1)
	if cur, ok := c.current.Get(); ok {
		switch {
		case cur == i:
			c.current = mo.None[int]()
		case cur > i:
			c.current = mo.Some(cur - 1)
		}
	}
	c.mu.Unlock()
	c.changed()
	return removed, nil
}

// MoveUp swaps entry i with the one before it. No-op for the first entry.
func (c *Controller) MoveUp(i int) error {
	return c.swap(i, i-1)
}

// MoveDown swaps entry i with the one after it. No-op for the last entry.
func (c *Controller) MoveDown(i int) error {
	return c.swap(i, i+1)
}

func (c *Controller) swap(i, j int) error {
	c.mu.Lock()
	if err := c.checkLocked(i); err != nil {
		c.mu.Unlock()
		return err
	}
	if j < 0 || j >= len(c.sources) {
		c.mu.Unlock()
		return nil
	}
	c.sources[i], c.sources[j] = c.sources[j], c.sources[i]
	if cur, ok := c.current.Get(); ok {
		switch cur {
		case i:
			c.current = mo.Some(j)
		case j:
			c.current = mo.Some(i)
		}
	}
	c.mu.Unlock()
	c.changed()
	return nil
}

func (c *Controller) SetSkip(i int, p protocol.SkipPolicy) error {
	c.mu.Lock()
	if err := c.checkLocked(i); err != nil {
		c.mu.Unlock()
		return err
	}
	c.sources[i] = protocol.Source{Path: c.sources[i].Path, Skip: p}
	c.mu.Unlock()
	c.changed()
	return nil
}

// Select marks entry i as current without starting it.
func (c *Controller) Select(i int) error {
	c.mu.Lock()
	if err := c.checkLocked(i); err != nil {
		c.mu.Unlock()
		return err
	}
	c.current = mo.Some(i)
	c.mu.Unlock()
	c.changed()
	return nil
}

// Play starts entry i on the projector. The current index moves only if the
// command could be dispatched.
func (c *Controller) Play(i int) error {
	c.mu.Lock()
	if err := c.checkLocked(i); err != nil {
		c.mu.Unlock()
		return err
	}
	err := c.startLocked(i)
	c.mu.Unlock()
	c.changed()
	return err
}

// Next starts the entry after the current one. At the end of the playlist
// or without a current entry it does nothing.
func (c *Controller) Next() error {
	return c.step(1)
}

// Prev starts the entry before the current one. At the start of the
// playlist or without a current entry it does nothing.
func (c *Controller) Prev() error {
	return c.step(-1)
}

func (c *Controller) step(delta int) error {
	c.mu.Lock()
	cur, ok := c.current.Get()
	target := cur + delta
	if !ok || target < 0 || target >= len(c.sources) {
		c.mu.Unlock()
		return nil
	}
	err := c.startLocked(target)
	c.mu.Unlock()
	c.changed()
	return err
}

func (c *Controller) startLocked(i int) error {
	src := c.sources[i]
	cmd := protocol.Start{Path: src.Path, Skip: src.Skip.String()}
	if err := c.dispatcher.Send(cmd); err != nil {
		slog.Warn("could not dispatch start", "index", i, "path", src.Path, "err", err)
		return fmt.Errorf("start %s: %w", src.Path, err)
	}
	c.current = mo.Some(i)
	c.status = StatusPlaying
	c.lastErr = ""
	slog.Info("started entry", "index", i, "path", src.Path, "skip", src.Skip.String())
	return nil
}

// HandleEvent reacts to an event reported by the projector.
func (c *Controller) HandleEvent(ev protocol.Event) error {
	switch e := ev.(type) {
	case protocol.VideoEnded:
		return c.videoEnded()
	case protocol.PlaybackError:
		c.mu.Lock()
		c.status = StatusFailed
		c.lastErr = e.Kind + ": " + e.Message
		c.mu.Unlock()
		slog.Error("projector failed to play", "kind", e.Kind, "message", e.Message)
		c.changed()
		return nil
	default:
		return fmt.Errorf("%w: unhandled event %T", protocol.ErrProtocol, ev)
	}
}

func (c *Controller) videoEnded() error {
	c.mu.Lock()
	c.status = StatusEnded
	cur, ok := c.current.Get()
	if !ok {
		c.mu.Unlock()
		c.changed()
		return nil
	}
	skip := c.sources[cur].Skip

	var err error
	switch skip.Kind() {
	case protocol.SkipKindVideoEnd:
		if cur+1 < len(c.sources) {
			err = c.startLocked(cur + 1)
		} else {
			slog.Info("end of playlist")
		}
	case protocol.SkipKindInput:
		slog.Debug("waiting for input to advance", "index", cur)
	case protocol.SkipKindTime:
		// Time(n) has no timer behind it yet; the entry stays until the
		// operator moves on.
		slog.Info("time based skip is not wired to video end, not advancing",
			"index", cur,
			"seconds", skip.Seconds(),
		)
	}
	c.mu.Unlock()
	c.changed()
	return err
}

func (c *Controller) Pause() error  { return c.control(protocol.Pause{}) }
func (c *Controller) Resume() error { return c.control(protocol.Resume{}) }

func (c *Controller) Seek(pos time.Duration) error {
	if pos < 0 {
		pos = 0
	}
	return c.control(protocol.Seek{Position: pos})
}

func (c *Controller) SetRate(r float64) error { return c.control(protocol.SetRate{Rate: r}) }

func (c *Controller) Stop() error {
	if err := c.control(protocol.Stop{}); err != nil {
		return err
	}
	c.mu.Lock()
	c.status = StatusIdle
	c.mu.Unlock()
	c.changed()
	return nil
}

func (c *Controller) control(cmd protocol.Command) error {
	if err := c.dispatcher.Send(cmd); err != nil {
		return fmt.Errorf("%T: %w", cmd, err)
	}
	return nil
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	cur, hasCur := c.current.Get()
	return Snapshot{
		Entries: lo.Map(c.sources, func(s protocol.Source, i int) Entry {
			return Entry{Index: i, Source: s, Current: hasCur && cur == i}
		}),
		Current:   c.current,
		Status:    c.status,
		LastError: c.lastErr,
	}
}

func (c *Controller) checkLocked(i int) error {
	if i < 0 || i >= len(c.sources) {
		return fmt.Errorf("%w: %d (playlist has %d entries)", ErrIndexOutOfRange, i, len(c.sources))
	}
	return nil
}

func (c *Controller) changed() {
	c.mu.Lock()
	fn := c.onChange
	snap := c.snapshotLocked()
	c.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}
