package media

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedDecoder returns sends[i] for the i-th SendPacket and never has a
// frame ready.
type scriptedDecoder struct {
	sends    []error
	sent     int
	received int
}

func (d *scriptedDecoder) SendPacket(*astiav.Packet) error {
	i := d.sent
	d.sent++
	if i < len(d.sends) {
		return d.sends[i]
	}
	return nil
}

func (d *scriptedDecoder) ReceiveFrame(*astiav.Frame) error {
	d.received++
	return astiav.ErrEagain
}

func newBarePipeline(t *testing.T, dec frameDecoder) *avPipeline {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	p := &avPipeline{
		path:    "/test.mp4",
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		wake:    make(chan struct{}, 1),
		rate:    1,
		playing: true,
		codec:   dec,
		src:     astiav.AllocFrame(),
	}
	p.cond = sync.NewCond(&p.mu)
	t.Cleanup(func() {
		cancel()
		p.src.Free()
	})
	return p
}

func TestPauseWakeDoesNotOutliveResume(t *testing.T) {
	p := newBarePipeline(t, &scriptedDecoder{})

	require.NoError(t, p.Pause())
	require.Len(t, p.wake, 1)
	require.NoError(t, p.Play())

	assert.True(t, p.waitRunnable())
	assert.Empty(t, p.wake, "a leftover wake-up would drop the next frame")
}

func TestDecodeResendsRefusedPacket(t *testing.T) {
	dec := &scriptedDecoder{sends: []error{astiav.ErrEagain, astiav.ErrEagain, nil}}
	p := newBarePipeline(t, dec)

	assert.True(t, p.decode())
	assert.Equal(t, 3, dec.sent, "packet resent until the decoder accepts it")
	assert.Equal(t, 3, dec.received)
	assert.NoError(t, p.Err())
}

func TestDecodeSendFailureIsFatal(t *testing.T) {
	dec := &scriptedDecoder{sends: []error{errors.New("invalid data")}}
	p := newBarePipeline(t, dec)

	assert.False(t, p.decode())
	assert.ErrorIs(t, p.Err(), ErrPipeline)
	assert.Equal(t, 1, dec.sent)
}
