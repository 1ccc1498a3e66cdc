package handlers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/sonroyaalmerol/presenter/internal/playlist"
	"github.com/sonroyaalmerol/presenter/internal/protocol"
	"github.com/sonroyaalmerol/presenter/internal/ui"
	"github.com/spf13/afero"
)

const prompt = "> "

// Console is the operator's line-oriented front end to a playlist
// controller. Playback changes reported by the projector are printed as
// they arrive.
type Console struct {
	in   io.Reader
	out  *lockedWriter
	ctrl *playlist.Controller
	cmd  *CommandHandler

	mu   sync.Mutex
	last playlist.Snapshot
}

func NewConsole(ctrl *playlist.Controller, defaultSkip protocol.SkipPolicy, fs afero.Fs, in io.Reader, out io.Writer) *Console {
	w := &lockedWriter{w: out}
	c := &Console{
		in:   in,
		out:  w,
		ctrl: ctrl,
		cmd:  NewCommandHandler(ctrl, defaultSkip, fs, w),
	}
	c.last = ctrl.Snapshot()
	ctrl.OnChange(c.onChange)
	return c
}

// Run reads commands until quit, end of input or ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	slog.Info("console ready, type help for commands")
	_, _ = io.WriteString(c.out, prompt)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-scanErr:
			if err != nil {
				return fmt.Errorf("read console: %w", err)
			}
			slog.Info("console input closed")
			return nil
		case line := <-lines:
			if c.cmd.Handle(line) {
				slog.Info("console quit requested")
				return nil
			}
			_, _ = io.WriteString(c.out, prompt)
		}
	}
}

func (c *Console) onChange(snap playlist.Snapshot) {
	c.mu.Lock()
	prev := c.last
	c.last = snap
	c.mu.Unlock()

	cur, hasCur := snap.Current.Get()
	moved := hasCur && currentPath(prev) != snap.Entries[cur].Source.Path

	switch {
	case snap.Status == playlist.StatusFailed && (prev.Status != playlist.StatusFailed || snap.LastError != prev.LastError):
		_, _ = io.WriteString(c.out, ui.RenderError(fmt.Errorf("%s", snap.LastError)))
	case snap.Status == playlist.StatusPlaying && hasCur && (moved || prev.Status != playlist.StatusPlaying):
		fmt.Fprintf(c.out, "now playing %d. %s\n", cur+1, snap.Entries[cur].Source.Path)
	case snap.Status == playlist.StatusEnded && prev.Status != playlist.StatusEnded:
		if !hasCur || cur == len(snap.Entries)-1 {
			fmt.Fprintln(c.out, "playlist finished")
			return
		}
		fmt.Fprintf(c.out, "%d. %s ended, waiting for input (next)\n", cur+1, snap.Entries[cur].Source.Path)
	}
}

func currentPath(snap playlist.Snapshot) string {
	if i, ok := snap.Current.Get(); ok && i < len(snap.Entries) {
		return snap.Entries[i].Source.Path
	}
	return ""
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
