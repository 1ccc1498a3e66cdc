package player

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sonroyaalmerol/presenter/internal/media"
	"github.com/sonroyaalmerol/presenter/internal/protocol"
	"github.com/sonroyaalmerol/presenter/internal/repository"
	"github.com/spf13/afero"
)

// fakeProber checks existence on an in-memory filesystem and returns the
// same info for every file that exists.
type fakeProber struct {
	fs   afero.Fs
	info media.Info
	err  map[string]error
}

func newFakeProber(info media.Info, paths ...string) *fakeProber {
	fs := afero.NewMemMapFs()
	for _, p := range paths {
		_ = afero.WriteFile(fs, p, []byte("not really a video"), 0o644)
	}
	return &fakeProber{fs: fs, info: info, err: map[string]error{}}
}

func (f *fakeProber) Probe(_ context.Context, path string) (*media.Info, error) {
	file, err := media.CheckExists(f.fs, path)
	if err != nil {
		return nil, err
	}
	_ = file.Close()
	if err := f.err[path]; err != nil {
		return nil, err
	}
	info := f.info
	return &info, nil
}

type fakeOpener struct {
	mu        sync.Mutex
	live      int
	maxLive   int
	opened    int
	openErr   error
	pipelines []*fakePipeline
}

func (o *fakeOpener) Open(path string, width, height int, sink media.FrameSink) (media.Pipeline, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.openErr != nil {
		return nil, o.openErr
	}
	o.opened++
	o.live++
	o.maxLive = max(o.maxLive, o.live)
	p := &fakePipeline{opener: o, path: path, width: width, height: height, sink: sink}
	o.pipelines = append(o.pipelines, p)
	return p, nil
}

func (o *fakeOpener) last() *fakePipeline {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pipelines[len(o.pipelines)-1]
}

func (o *fakeOpener) stats() (live, maxLive, opened int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.live, o.maxLive, o.opened
}

type seekCall struct {
	pos  time.Duration
	rate float64
}

type fakePipeline struct {
	opener *fakeOpener
	path   string
	width  int
	height int
	sink   media.FrameSink

	mu       sync.Mutex
	playing  bool
	seeks    []seekCall
	seekErr  error
	tornDown bool

	eos    atomic.Bool
	runErr atomic.Pointer[error]
}

func (p *fakePipeline) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = true
	return nil
}

func (p *fakePipeline) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	return nil
}

func (p *fakePipeline) Seek(pos time.Duration, rate float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seekErr != nil {
		return p.seekErr
	}
	p.seeks = append(p.seeks, seekCall{pos: pos, rate: rate})
	return nil
}

func (p *fakePipeline) PollEOS() bool { return p.eos.Load() }

func (p *fakePipeline) Err() error {
	if e := p.runErr.Load(); e != nil {
		return *e
	}
	return nil
}

func (p *fakePipeline) Teardown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tornDown {
		return nil
	}
	p.tornDown = true
	p.playing = false
	p.opener.mu.Lock()
	p.opener.live--
	p.opener.mu.Unlock()
	return nil
}

func (p *fakePipeline) isTornDown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tornDown
}

func (p *fakePipeline) seekCalls() []seekCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]seekCall(nil), p.seeks...)
}

type fakeEvents struct {
	mu     sync.Mutex
	events []protocol.Event
}

func (f *fakeEvents) SendEvent(ev protocol.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeEvents) all() []protocol.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Event(nil), f.events...)
}

type endedCall struct {
	id      string
	outcome repository.Outcome
}

type fakeJournal struct {
	mu      sync.Mutex
	started []repository.SessionRecord
	ended   []endedCall
}

func (j *fakeJournal) Started(rec repository.SessionRecord) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.started = append(j.started, rec)
}

func (j *fakeJournal) Ended(id string, outcome repository.Outcome, _ string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ended = append(j.ended, endedCall{id: id, outcome: outcome})
}

type recordingSurface struct {
	frames [][]byte
}

func (s *recordingSurface) UpdateSurface(pixels []byte) error {
	s.frames = append(s.frames, append([]byte(nil), pixels...))
	return nil
}
