// Package protocol defines the messages exchanged between the presenter
// (controller) and the projector (player) and their line-oriented text form:
// a tag optionally followed by "\n"-separated fields.
package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	TagStart         = "START"
	TagPause         = "PAUSE"
	TagResume        = "RESUME"
	TagSeek          = "SEEK"
	TagRate          = "RATE"
	TagStop          = "STOP"
	TagVideoEnded    = "VideoEnded"
	TagPlaybackError = "PlaybackError"
)

// PlaybackError kinds.
const (
	KindMediaNotFound = "MediaNotFound"
	KindNoVideoStream = "NoVideoStream"
	KindProbeFailed   = "ProbeFailed"
	KindPipelineError = "PipelineError"
)

const fieldSep = "\n"

// Command is sent presenter -> projector. The set of commands is closed.
type Command interface {
	command()
}

// Start asks the projector to open Path, preempting whatever is playing.
// Skip is carried in its canonical text form.
type Start struct {
	Path string
	Skip string
}

type Pause struct{}

type Resume struct{}

type Seek struct {
	Position time.Duration
}

type SetRate struct {
	Rate float64
}

type Stop struct{}

func (Start) command()   {}
func (Pause) command()   {}
func (Resume) command()  {}
func (Seek) command()    {}
func (SetRate) command() {}
func (Stop) command()    {}

// Event is sent projector -> presenter. The set of events is closed.
type Event interface {
	event()
}

// VideoEnded reports that the active session reached its natural end.
type VideoEnded struct{}

// PlaybackError reports that a Start could not be turned into a session.
type PlaybackError struct {
	Kind    string
	Message string
}

func (VideoEnded) event()    {}
func (PlaybackError) event() {}

func EncodeCommand(c Command) (string, error) {
	switch c := c.(type) {
	case Start:
		if err := checkField("path", c.Path); err != nil {
			return "", err
		}
		if err := checkField("skip", c.Skip); err != nil {
			return "", err
		}
		return join(TagStart, c.Path, c.Skip), nil
	case Pause:
		return TagPause, nil
	case Resume:
		return TagResume, nil
	case Seek:
		return join(TagSeek, strconv.FormatInt(c.Position.Milliseconds(), 10)), nil
	case SetRate:
		return join(TagRate, strconv.FormatFloat(c.Rate, 'g', -1, 64)), nil
	case Stop:
		return TagStop, nil
	default:
		return "", fmt.Errorf("%w: unsupported command %T", ErrProtocol, c)
	}
}

func DecodeCommand(raw string) (Command, error) {
	parts := strings.Split(raw, fieldSep)
	switch parts[0] {
	case TagStart:
		if len(parts) < 3 {
			return nil, decodeErr(raw, ErrMissingField, "START needs path and skip")
		}
		return Start{Path: parts[1], Skip: parts[2]}, nil
	case TagPause:
		return Pause{}, nil
	case TagResume:
		return Resume{}, nil
	case TagSeek:
		if len(parts) < 2 {
			return nil, decodeErr(raw, ErrMissingField, "SEEK needs a position")
		}
		ms, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, decodeErr(raw, ErrInvalidField, "position: "+err.Error())
		}
		return Seek{Position: time.Duration(ms) * time.Millisecond}, nil
	case TagRate:
		if len(parts) < 2 {
			return nil, decodeErr(raw, ErrMissingField, "RATE needs a value")
		}
		r, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, decodeErr(raw, ErrInvalidField, "rate: "+err.Error())
		}
		return SetRate{Rate: r}, nil
	case TagStop:
		return Stop{}, nil
	default:
		return nil, decodeErr(raw, ErrUnknownTag, parts[0])
	}
}

func EncodeEvent(e Event) (string, error) {
	switch e := e.(type) {
	case VideoEnded:
		return TagVideoEnded, nil
	case PlaybackError:
		if err := checkField("kind", e.Kind); err != nil {
			return "", err
		}
		// the message is the last field, newlines would split it
		msg := strings.ReplaceAll(e.Message, fieldSep, " ")
		return join(TagPlaybackError, e.Kind, msg), nil
	default:
		return "", fmt.Errorf("%w: unsupported event %T", ErrProtocol, e)
	}
}

func DecodeEvent(raw string) (Event, error) {
	parts := strings.Split(raw, fieldSep)
	switch parts[0] {
	case TagVideoEnded:
		return VideoEnded{}, nil
	case TagPlaybackError:
		if len(parts) < 3 {
			return nil, decodeErr(raw, ErrMissingField, "PlaybackError needs kind and message")
		}
		return PlaybackError{Kind: parts[1], Message: parts[2]}, nil
	default:
		return nil, decodeErr(raw, ErrUnknownTag, parts[0])
	}
}

func join(tag string, fields ...string) string {
	return strings.Join(append([]string{tag}, fields...), fieldSep)
}

func checkField(name, v string) error {
	if strings.Contains(v, fieldSep) {
		return fmt.Errorf("%w: %s contains a newline", ErrInvalidField, name)
	}
	return nil
}
