package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asticode/go-astiav"
)

// seekReplyTimeout bounds how long Seek waits for the decode goroutine.
const seekReplyTimeout = 2 * time.Second

var errTornDown = fmt.Errorf("%w: pipeline torn down", ErrPipeline)

type AVOpener struct{}

func NewAVOpener() *AVOpener {
	astiav.SetLogLevel(astiav.LogLevelError)
	return &AVOpener{}
}

// frameDecoder is the send/receive half of a codec context.
type frameDecoder interface {
	SendPacket(pkt *astiav.Packet) error
	ReceiveFrame(f *astiav.Frame) error
}

type seekRequest struct {
	pos  time.Duration
	rate float64
	done chan error
}

// avPipeline decodes the first video stream of a file on its own goroutine,
// scales frames to packed RGB24 and paces them against the wall clock.
type avPipeline struct {
	path   string
	width  int
	height int
	sink   FrameSink

	fc     *astiav.FormatContext
	ii     *astiav.IOInterrupter
	stream *astiav.Stream
	dec    *astiav.CodecContext
	codec  frameDecoder
	sws    *astiav.SoftwareScaleContext
	src    *astiav.Frame
	dst    *astiav.Frame
	pkt    *astiav.Packet

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wake   chan struct{}

	mu          sync.Mutex
	cond        *sync.Cond
	playing     bool
	pendingSeek *seekRequest

	resetClock atomic.Bool
	eos        atomic.Bool
	errMu      sync.Mutex
	runErr     error

	// decode goroutine only
	seekGen uint64
	rate    float64
	wall0   time.Time
	media0  time.Duration
	lastPos time.Duration

	teardownOnce sync.Once
}

// Open prepares a paused pipeline for path, scaling to width x height.
func (o *AVOpener) Open(path string, width, height int, sink FrameSink) (Pipeline, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", ErrPipeline, width, height)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &avPipeline{
		path:   path,
		width:  width,
		height: height,
		sink:   sink,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		wake:   make(chan struct{}, 1),
		rate:   1.0,
	}
	p.cond = sync.NewCond(&p.mu)

	if err := p.init(); err != nil {
		cancel()
		p.free()
		return nil, err
	}

	p.resetClock.Store(true)
	go p.run()
	return p, nil
}

func (p *avPipeline) init() error {
	p.fc = astiav.AllocFormatContext()
	if p.fc == nil {
		return fmt.Errorf("%w: alloc format context", ErrPipeline)
	}
	p.ii = astiav.NewIOInterrupter()
	p.fc.SetIOInterrupter(p.ii)

	if err := p.fc.OpenInput(p.path, nil, nil); err != nil {
		p.fc.Free()
		p.fc = nil
		return fmt.Errorf("%w: open input: %w", ErrPipeline, err)
	}
	if err := p.fc.FindStreamInfo(nil); err != nil {
		return fmt.Errorf("%w: find stream info: %w", ErrPipeline, err)
	}

	st, codec, err := p.fc.FindBestStream(astiav.MediaTypeVideo, -1, -1)
	if err != nil || st == nil || codec == nil {
		if err != nil {
			return fmt.Errorf("%w: find best video stream: %w", ErrPipeline, err)
		}
		return fmt.Errorf("%w: no video stream found", ErrPipeline)
	}
	p.stream = st

	p.dec = astiav.AllocCodecContext(codec)
	if p.dec == nil {
		return fmt.Errorf("%w: alloc codec context", ErrPipeline)
	}
	if err := p.dec.FromCodecParameters(st.CodecParameters()); err != nil {
		return fmt.Errorf("%w: codec from params: %w", ErrPipeline, err)
	}
	p.dec.SetTimeBase(st.TimeBase())
	if err := p.dec.Open(codec, nil); err != nil {
		return fmt.Errorf("%w: open decoder: %w", ErrPipeline, err)
	}
	p.codec = p.dec

	p.src = astiav.AllocFrame()
	p.dst = astiav.AllocFrame()
	p.pkt = astiav.AllocPacket()
	if p.src == nil || p.dst == nil || p.pkt == nil {
		return fmt.Errorf("%w: alloc frames", ErrPipeline)
	}
	return nil
}

func (p *avPipeline) Play() error {
	if p.ctx.Err() != nil {
		return errTornDown
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		p.playing = true
		p.resetClock.Store(true)
		p.cond.Broadcast()
	}
	return nil
}

func (p *avPipeline) Pause() error {
	if p.ctx.Err() != nil {
		return errTornDown
	}
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
	p.poke()
	return nil
}

func (p *avPipeline) Seek(pos time.Duration, rate float64) error {
	if p.ctx.Err() != nil {
		return errTornDown
	}
	req := &seekRequest{pos: pos, rate: rate, done: make(chan error, 1)}

	p.mu.Lock()
	if prev := p.pendingSeek; prev != nil {
		prev.done <- fmt.Errorf("%w: superseded by a newer seek", ErrPipeline)
	}
	p.pendingSeek = req
	p.cond.Broadcast()
	p.mu.Unlock()
	p.poke()

	select {
	case err := <-req.done:
		return err
	case <-p.done:
		return errTornDown
	case <-time.After(seekReplyTimeout):
		return fmt.Errorf("%w: seek timed out", ErrPipeline)
	}
}

func (p *avPipeline) PollEOS() bool { return p.eos.Load() }

func (p *avPipeline) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.runErr
}

// Teardown stops the decode goroutine, waits for it and releases every
// FFmpeg object. Safe to call more than once.
func (p *avPipeline) Teardown() error {
	p.teardownOnce.Do(func() {
		p.cancel()
		p.mu.Lock()
		p.playing = false
		p.cond.Broadcast()
		p.mu.Unlock()
		p.poke()
		if p.ii != nil {
			p.ii.Interrupt()
		}
		<-p.done
		p.free()
		slog.Debug("pipeline torn down", "path", p.path)
	})
	return nil
}

func (p *avPipeline) poke() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *avPipeline) free() {
	if p.pkt != nil {
		p.pkt.Free()
		p.pkt = nil
	}
	if p.src != nil {
		p.src.Free()
		p.src = nil
	}
	if p.dst != nil {
		p.dst.Free()
		p.dst = nil
	}
	if p.sws != nil {
		p.sws.Free()
		p.sws = nil
	}
	if p.dec != nil {
		p.codec = nil
		p.dec.Free()
		p.dec = nil
	}
	if p.fc != nil {
		p.fc.CloseInput()
		p.fc.Free()
		p.fc = nil
	}
	if p.ii != nil {
		p.ii.Free()
		p.ii = nil
	}
}

func (p *avPipeline) setErr(err error) {
	if err == nil {
		return
	}
	p.errMu.Lock()
	defer p.errMu.Unlock()
	if p.runErr == nil {
		p.runErr = err
	}
}

func (p *avPipeline) run() {
	defer close(p.done)

	for {
		if !p.waitRunnable() {
			return
		}

		p.pkt.Unref()
		if err := p.fc.ReadFrame(p.pkt); err != nil {
			if p.ctx.Err() != nil {
				return
			}
			if errors.Is(err, astiav.ErrEof) {
				if !p.drain() {
					return
				}
				p.eos.Store(true)
				slog.Debug("end of stream", "path", p.path, "pos", p.lastPos)
				continue
			}
			if errors.Is(err, astiav.ErrEagain) {
				continue
			}
			p.setErr(fmt.Errorf("%w: read frame: %w", ErrPipeline, err))
			return
		}

		if p.pkt.StreamIndex() != p.stream.Index() {
			continue
		}

		if !p.decode() {
			return
		}
	}
}

// decode sends the current packet, emptying the decoder first whenever it
// refuses input. A packet read before a seek is dropped once that seek has
// been applied.
func (p *avPipeline) decode() bool {
	gen := p.seekGen
	for {
		err := p.codec.SendPacket(p.pkt)
		if err == nil {
			return p.receiveFrames()
		}
		if !errors.Is(err, astiav.ErrEagain) {
			p.setErr(fmt.Errorf("%w: send packet: %w", ErrPipeline, err))
			return false
		}
		if !p.receiveFrames() || !p.waitRunnable() {
			return false
		}
		if p.seekGen != gen {
			return true
		}
	}
}

// waitRunnable blocks while paused or at end of stream, serving seek
// requests meanwhile. It returns false once the pipeline is torn down.
func (p *avPipeline) waitRunnable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if p.ctx.Err() != nil {
			return false
		}
		if req := p.pendingSeek; req != nil {
			p.pendingSeek = nil
			p.mu.Unlock()
			req.done <- p.doSeek(req.pos, req.rate)
			p.mu.Lock()
			continue
		}
		if p.playing && !p.eos.Load() {
			p.clearWake()
			return true
		}
		p.cond.Wait()
	}
}

// clearWake discards wake-ups left by a Pause or Seek that arrived while no
// frame was waiting, so they cannot drop the next frame.
func (p *avPipeline) clearWake() {
	for {
		select {
		case <-p.wake:
		default:
			return
		}
	}
}

func (p *avPipeline) doSeek(pos time.Duration, rate float64) error {
	tb := p.stream.TimeBase()
	ts := int64(pos.Seconds() / tb.Float64())
	if err := p.fc.SeekFrame(p.stream.Index(), ts, astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
		return fmt.Errorf("%w: seek to %s: %w", ErrPipeline, pos, err)
	}
	p.dec.FlushBuffers()
	p.seekGen++
	p.rate = rate
	p.lastPos = pos
	p.eos.Store(false)
	p.resetClock.Store(true)
	slog.Debug("pipeline seek", "path", p.path, "pos", pos, "rate", rate)
	return nil
}

func (p *avPipeline) drain() bool {
	if err := p.codec.SendPacket(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
		slog.Debug("flush decoder", "path", p.path, "err", err)
	}
	return p.receiveFrames()
}

func (p *avPipeline) receiveFrames() bool {
	for {
		p.src.Unref()
		if err := p.codec.ReceiveFrame(p.src); err != nil {
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return true
			}
			p.setErr(fmt.Errorf("%w: receive frame: %w", ErrPipeline, err))
			return false
		}
		if !p.present(p.src) {
			return p.ctx.Err() == nil
		}
	}
}

// present waits for the frame's presentation time and hands it to the sink.
// It returns false when the frame was dropped because of a pause, a seek or
// teardown.
func (p *avPipeline) present(f *astiav.Frame) bool {
	pos := p.lastPos
	if pts := f.Pts(); pts != astiav.NoPtsValue {
		pos = time.Duration(float64(pts) * p.stream.TimeBase().Float64() * float64(time.Second))
	}
	p.lastPos = pos

	if p.resetClock.CompareAndSwap(true, false) {
		p.wall0 = time.Now()
		p.media0 = pos
	}
	rate := p.rate
	if rate <= 0 {
		rate = 1
	}
	target := p.wall0.Add(time.Duration(float64(pos-p.media0) / rate))
	if d := time.Until(target); d > 0 {
		t := time.NewTimer(d)
		select {
		case <-p.ctx.Done():
			t.Stop()
			return false
		case <-p.wake:
			t.Stop()
			return false
		case <-t.C:
		}
	}

	if err := p.scale(f); err != nil {
		slog.Warn("scale frame", "path", p.path, "err", err)
		return true
	}
	b, err := p.dst.Data().Bytes(1)
	if err != nil {
		slog.Warn("frame bytes", "path", p.path, "err", err)
		return true
	}
	p.sink(b, pos)
	return true
}

// scale converts f to packed RGB24, creating the scaler lazily since the
// decoder's pixel format is only reliable once a frame is out.
func (p *avPipeline) scale(f *astiav.Frame) error {
	if p.sws == nil {
		sws, err := astiav.CreateSoftwareScaleContext(
			f.Width(), f.Height(), f.PixelFormat(),
			p.width, p.height, astiav.PixelFormatRgb24,
			astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
		)
		if err != nil {
			return fmt.Errorf("create scaler: %w", err)
		}
		p.sws = sws

		p.dst.SetWidth(p.width)
		p.dst.SetHeight(p.height)
		p.dst.SetPixelFormat(astiav.PixelFormatRgb24)
		if err := p.dst.AllocBuffer(1); err != nil {
			return fmt.Errorf("dst alloc buffer: %w", err)
		}
	}
	return p.sws.ScaleFrame(f, p.dst)
}
