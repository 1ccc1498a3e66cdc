package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocol matches every malformed-message error of this package.
	ErrProtocol     = errors.New("protocol error")
	ErrUnknownTag   = fmt.Errorf("%w: unknown tag", ErrProtocol)
	ErrMissingField = fmt.Errorf("%w: missing field", ErrProtocol)
	ErrInvalidField = fmt.Errorf("%w: invalid field", ErrProtocol)
)

type DecodeError struct {
	Raw    string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v: %s", e.Raw, e.Err, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(raw string, err error, reason string) *DecodeError {
	return &DecodeError{Raw: raw, Reason: reason, Err: err}
}
