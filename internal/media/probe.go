package media

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/spf13/afero"
)

type AVProber struct {
	fs      afero.Fs
	timeout time.Duration
}

func NewAVProber(fs afero.Fs, timeout time.Duration) *AVProber {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AVProber{fs: fs, timeout: timeout}
}

// CheckExists returns ErrMediaNotFound unless path is a regular file.
func CheckExists(fs afero.Fs, path string) (afero.File, error) {
	fi, err := fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMediaNotFound, path, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrMediaNotFound, path)
	}
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMediaNotFound, path, err)
	}
	return f, nil
}

func (p *AVProber) Probe(ctx context.Context, path string) (*Info, error) {
	f, err := CheckExists(p.fs, path)
	if err != nil {
		return nil, err
	}
	_ = f.Close()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, fmt.Errorf("%w: alloc format context", ErrProbeFailed)
	}
	defer fc.Free()

	ii := astiav.NewIOInterrupter()
	defer ii.Free()
	fc.SetIOInterrupter(ii)
	stop := context.AfterFunc(ctx, ii.Interrupt)
	defer stop()

	if err := fc.OpenInput(path, nil, nil); err != nil {
		return nil, fmt.Errorf("%w: open input %s: %w", ErrProbeFailed, path, err)
	}
	defer fc.CloseInput()

	if err := fc.FindStreamInfo(nil); err != nil {
		return nil, fmt.Errorf("%w: find stream info %s: %w", ErrProbeFailed, path, err)
	}

	info := &Info{}
	var video *astiav.Stream
	for _, st := range fc.Streams() {
		switch st.CodecParameters().MediaType() {
		case astiav.MediaTypeVideo:
			if video == nil {
				video = st
			}
			info.VideoStreams++
		case astiav.MediaTypeAudio:
			info.AudioStreams++
		}
	}

	if video == nil {
		return nil, fmt.Errorf("%w in %s", ErrNoVideoStream, path)
	}
	if info.VideoStreams > 1 {
		slog.Warn("multiple video streams, only the first one will be used", "path", path, "count", info.VideoStreams)
	}
	if info.AudioStreams > 1 {
		slog.Warn("multiple audio streams, only the first one will be used", "path", path, "count", info.AudioStreams)
	}

	cp := video.CodecParameters()
	info.Width = cp.Width()
	info.Height = cp.Height()
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid video dimensions (%dx%d) in %s", ErrProbeFailed, info.Width, info.Height, path)
	}

	rate := video.AvgFrameRate()
	if rate.Num() == 0 {
		rate = video.RFrameRate()
	}
	if rate.Num() < 0 || rate.Den() < 0 {
		return nil, fmt.Errorf("%w: invalid negative framerate in %s", ErrProbeFailed, path)
	}
	info.FrameRate = Fraction{Num: rate.Num(), Den: rate.Den()}

	switch {
	case fc.Duration() > 0:
		// AV_TIME_BASE units are microseconds
		info.Duration = time.Duration(fc.Duration()) * time.Microsecond
	case video.Duration() > 0:
		secs := float64(video.Duration()) * video.TimeBase().Float64()
		info.Duration = time.Duration(secs * float64(time.Second))
	default:
		return nil, fmt.Errorf("%w: cannot determine media duration for %s", ErrProbeFailed, path)
	}

	slog.Debug("probed media",
		"path", path,
		"duration", info.Duration,
		"width", info.Width,
		"height", info.Height,
		"framerate", info.FrameRate.String(),
	)
	return info, nil
}
