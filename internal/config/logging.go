package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds the text logger used by both binaries.
func NewLogger(level string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, ErrConfig(fmt.Sprintf("log-level: %v", err))
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(h), nil
}
