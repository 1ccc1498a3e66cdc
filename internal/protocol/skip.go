package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidSkipPolicy = errors.New("invalid skip policy")

type SkipKind int

const (
	SkipKindVideoEnd SkipKind = iota
	SkipKindInput
	SkipKindTime
)

// SkipPolicy decides what advances the playlist past a source. The zero
// value is VideoEnd.
type SkipPolicy struct {
	kind    SkipKind
	seconds uint32
}

var (
	SkipVideoEnd = SkipPolicy{kind: SkipKindVideoEnd}
	SkipInput    = SkipPolicy{kind: SkipKindInput}
)

func SkipTime(seconds uint32) SkipPolicy {
	return SkipPolicy{kind: SkipKindTime, seconds: seconds}
}

func (p SkipPolicy) Kind() SkipKind { return p.kind }

// Seconds is only meaningful for SkipKindTime.
func (p SkipPolicy) Seconds() uint32 { return p.seconds }

func (p SkipPolicy) String() string {
	switch p.kind {
	case SkipKindInput:
		return "Input"
	case SkipKindTime:
		return "Time(" + strconv.FormatUint(uint64(p.seconds), 10) + ")"
	default:
		return "VideoEnd"
	}
}

func ParseSkipPolicy(s string) (SkipPolicy, error) {
	switch s {
	case "VideoEnd":
		return SkipVideoEnd, nil
	case "Input":
		return SkipInput, nil
	}
	if strings.HasPrefix(s, "Time(") && strings.HasSuffix(s, ")") {
		inner := s[len("Time(") : len(s)-1]
		n, err := strconv.ParseUint(inner, 10, 32)
		if err != nil {
			return SkipPolicy{}, fmt.Errorf("%w: %q: %w", ErrInvalidSkipPolicy, s, err)
		}
		return SkipTime(uint32(n)), nil
	}
	return SkipPolicy{}, fmt.Errorf("%w: %q", ErrInvalidSkipPolicy, s)
}

func (p SkipPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *SkipPolicy) UnmarshalText(b []byte) error {
	v, err := ParseSkipPolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Source is one playable playlist entry.
type Source struct {
	Path string     `json:"path"`
	Skip SkipPolicy `json:"skip"`
}
