package player

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var ErrFrameSize = errors.New("frame size mismatch")

// FrameBuffer is a single slot holding the most recently decoded frame.
//
// It is not a queue. Every Write overwrites whatever the render loop has not
// picked up yet, so when the decoder outruns the display intermediate frames
// are dropped and only the latest one is ever shown.
//
// The bytes are guarded by mu and dirtiness by an atomic flag, so a render
// tick with nothing new costs a single atomic load. Write copies first and
// raises the flag after, both under mu, and Consume reads under mu too, so a
// reader can never observe a frame that is still being written.
type FrameBuffer struct {
	mu    sync.Mutex
	pix   []byte
	dirty atomic.Bool

	written  atomic.Uint64
	consumed atomic.Uint64
}

func NewFrameBuffer(size int) *FrameBuffer {
	return &FrameBuffer{pix: make([]byte, size)}
}

func (b *FrameBuffer) Size() int { return len(b.pix) }

func (b *FrameBuffer) Write(pixels []byte) error {
	if len(pixels) != len(b.pix) {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrFrameSize, len(pixels), len(b.pix))
	}
	b.mu.Lock()
	copy(b.pix, pixels)
	b.dirty.Store(true)
	b.mu.Unlock()
	b.written.Add(1)
	return nil
}

// Consume hands the pending frame to fn and clears the dirty flag. It reports
// false without locking when no new frame was written since the last call.
// The slice passed to fn must not be retained.
func (b *FrameBuffer) Consume(fn func(pixels []byte) error) (bool, error) {
	if !b.dirty.Load() {
		return false, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.dirty.Swap(false) {
		return false, nil
	}
	b.consumed.Add(1)
	return true, fn(b.pix)
}

// Dropped is the number of frames overwritten before being consumed.
func (b *FrameBuffer) Dropped() uint64 {
	w, c := b.written.Load(), b.consumed.Load()
	if c >= w {
		return 0
	}
	// one pending frame is not dropped yet
	d := w - c
	if b.dirty.Load() {
		d--
	}
	return d
}
