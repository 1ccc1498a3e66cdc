// Package media opens video files for the projector: probing their
// properties and running a decode pipeline that hands RGB24 frames to a sink.
package media

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrMediaNotFound = errors.New("media not found")
	ErrNoVideoStream = errors.New("no video stream")
	ErrProbeFailed   = errors.New("probe failed")
	ErrPipeline      = errors.New("pipeline error")
)

// BytesPerPixel of the packed RGB24 frames produced by pipelines.
const BytesPerPixel = 3

type Fraction struct {
	Num int `json:"num"`
	Den int `json:"den"`
}

func (f Fraction) Float64() float64 {
	if f.Den == 0 {
		return 0
	}
	return float64(f.Num) / float64(f.Den)
}

func (f Fraction) String() string { return fmt.Sprintf("%d/%d", f.Num, f.Den) }

type Info struct {
	Duration     time.Duration `json:"duration"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	FrameRate    Fraction      `json:"frame_rate"`
	VideoStreams int           `json:"video_streams"`
	AudioStreams int           `json:"audio_streams"`
}

// FrameSize is the byte length of one decoded frame.
func (i Info) FrameSize() int { return i.Width * i.Height * BytesPerPixel }

type Prober interface {
	Probe(ctx context.Context, path string) (*Info, error)
}

// FrameSink receives every presented frame. pixels is only valid for the
// duration of the call.
type FrameSink func(pixels []byte, pos time.Duration)

type Pipeline interface {
	Play() error
	Pause() error
	// Seek flushes and jumps to the nearest decodable point before pos,
	// continuing at rate.
	Seek(pos time.Duration, rate float64) error
	// PollEOS reports whether the end of stream has been reached.
	PollEOS() bool
	// Err returns the fatal runtime error that stopped decoding, if any.
	Err() error
	Teardown() error
}

type Opener interface {
	Open(path string, width, height int, sink FrameSink) (Pipeline, error)
}
