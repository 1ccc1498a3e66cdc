package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sonroyaalmerol/presenter/internal/autocomplete"
	"github.com/sonroyaalmerol/presenter/internal/playlist"
	"github.com/sonroyaalmerol/presenter/internal/protocol"
	"github.com/sonroyaalmerol/presenter/internal/ui"
	"github.com/sonroyaalmerol/presenter/internal/utils"
	"github.com/spf13/afero"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("usage")
)

type command struct {
	name  string
	usage string
	desc  string
	run   func(args []string) error
}

// CommandHandler turns operator input lines into playlist operations.
// Entry numbers typed by the operator are 1-based.
type CommandHandler struct {
	ctrl        *playlist.Controller
	defaultSkip protocol.SkipPolicy
	fs          afero.Fs
	out         io.Writer

	cmds  []command
	index map[string]*command
}

func NewCommandHandler(ctrl *playlist.Controller, defaultSkip protocol.SkipPolicy, fs afero.Fs, out io.Writer) *CommandHandler {
	h := &CommandHandler{ctrl: ctrl, defaultSkip: defaultSkip, fs: fs, out: out}
	h.register()
	return h
}

func (h *CommandHandler) register() {
	h.cmds = []command{
		{name: "add", usage: "add <path> [skip]", desc: "append a video (skip: VideoEnd, Input or Time(n))", run: h.cmdAdd},
		{name: "rm", usage: "rm <n>", desc: "remove entry n", run: h.cmdRemove},
		{name: "up", usage: "up <n>", desc: "move entry n up", run: withIndex(h.ctrl.MoveUp)},
		{name: "down", usage: "down <n>", desc: "move entry n down", run: withIndex(h.ctrl.MoveDown)},
		{name: "skip", usage: "skip <n> <policy>", desc: "change the skip policy of entry n", run: h.cmdSkip},
		{name: "select", usage: "select <n>", desc: "make entry n current without playing it", run: withIndex(h.ctrl.Select)},
		{name: "play", usage: "play [n]", desc: "play entry n, or the current entry", run: h.cmdPlay},
		{name: "next", usage: "next", desc: "play the next entry", run: h.noArgs(h.ctrl.Next)},
		{name: "prev", usage: "prev", desc: "play the previous entry", run: h.noArgs(h.ctrl.Prev)},
		{name: "pause", usage: "pause", desc: "pause playback", run: h.noArgs(h.ctrl.Pause)},
		{name: "resume", usage: "resume", desc: "resume playback", run: h.noArgs(h.ctrl.Resume)},
		{name: "seek", usage: "seek <time>", desc: "seek to seconds, mm:ss or 1m30s", run: h.cmdSeek},
		{name: "rate", usage: "rate <r>", desc: "set the playback rate", run: h.cmdRate},
		{name: "stop", usage: "stop", desc: "stop playback", run: h.noArgs(h.ctrl.Stop)},
		{name: "ls", usage: "ls [prefix]", desc: "list local videos matching prefix", run: h.cmdLs},
		{name: "list", usage: "list [page]", desc: "show the playlist", run: h.cmdList},
		{name: "help", usage: "help", desc: "show this help", run: h.cmdHelp},
	}
	h.index = make(map[string]*command, len(h.cmds))
	for i := range h.cmds {
		h.index[h.cmds[i].name] = &h.cmds[i]
	}
}

// Handle runs one input line. It reports whether the operator asked to quit.
func (h *CommandHandler) Handle(line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	name := strings.ToLower(fields[0])
	if name == "quit" || name == "exit" {
		return true
	}

	cmd, ok := h.index[name]
	if !ok {
		h.fail(fmt.Errorf("%w %q, try help", ErrUnknownCommand, name))
		return false
	}
	slog.Debug("console command", "cmd", name, "args", fields[1:])
	if err := cmd.run(fields[1:]); err != nil {
		if errors.Is(err, ErrUsage) {
			err = fmt.Errorf("%w: %s", ErrUsage, cmd.usage)
		}
		h.fail(err)
	}
	return false
}

func (h *CommandHandler) fail(err error) {
	slog.Debug("console command failed", "err", err)
	_, _ = io.WriteString(h.out, ui.RenderError(err))
}

func (h *CommandHandler) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(h.out, format, args...)
}

func (h *CommandHandler) noArgs(fn func() error) func([]string) error {
	return func(args []string) error {
		if len(args) != 0 {
			return ErrUsage
		}
		return fn()
	}
}

func withIndex(fn func(int) error) func([]string) error {
	return func(args []string) error {
		if len(args) != 1 {
			return ErrUsage
		}
		i, err := parseEntry(args[0])
		if err != nil {
			return err
		}
		return fn(i)
	}
}

// parseEntry converts a 1-based entry number into a playlist index.
func parseEntry(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: entry number %q", playlist.ErrIndexOutOfRange, s)
	}
	return n - 1, nil
}

func (h *CommandHandler) cmdAdd(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return ErrUsage
	}
	skip := h.defaultSkip
	if len(args) == 2 {
		p, err := protocol.ParseSkipPolicy(args[1])
		if err != nil {
			return err
		}
		skip = p
	}
	i := h.ctrl.Append(protocol.Source{Path: args[0], Skip: skip})
	h.printf("added %d. %s (%s)\n", i+1, args[0], skip)
	return nil
}

func (h *CommandHandler) cmdRemove(args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	i, err := parseEntry(args[0])
	if err != nil {
		return err
	}
	src, err := h.ctrl.Remove(i)
	if err != nil {
		return err
	}
	h.printf("removed %s\n", src.Path)
	return nil
}

func (h *CommandHandler) cmdSkip(args []string) error {
	if len(args) != 2 {
		return ErrUsage
	}
	i, err := parseEntry(args[0])
	if err != nil {
		return err
	}
	p, err := protocol.ParseSkipPolicy(args[1])
	if err != nil {
		return err
	}
	return h.ctrl.SetSkip(i, p)
}

func (h *CommandHandler) cmdPlay(args []string) error {
	switch len(args) {
	case 0:
		cur, ok := h.ctrl.Snapshot().Current.Get()
		if !ok {
			cur = 0
		}
		return h.ctrl.Play(cur)
	case 1:
		i, err := parseEntry(args[0])
		if err != nil {
			return err
		}
		return h.ctrl.Play(i)
	default:
		return ErrUsage
	}
}

func (h *CommandHandler) cmdSeek(args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	d, err := utils.ParseDurationString(args[0])
	if err != nil {
		return err
	}
	return h.ctrl.Seek(d)
}

func (h *CommandHandler) cmdRate(args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	r, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid rate %q", args[0])
	}
	return h.ctrl.SetRate(r)
}

func (h *CommandHandler) cmdList(args []string) error {
	page := 1
	switch len(args) {
	case 0:
	case 1:
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return ErrUsage
		}
		page = n
	default:
		return ErrUsage
	}
	out, err := ui.RenderPlaylist(h.ctrl.Snapshot(), page, ui.DefaultPageSize)
	if err != nil {
		return err
	}
	h.printf("%s", out)
	return nil
}

func (h *CommandHandler) cmdLs(args []string) error {
	if len(args) > 1 {
		return ErrUsage
	}
	prefix := ""
	if len(args) == 1 {
		prefix = args[0]
	}
	paths, err := autocomplete.SuggestPaths(h.fs, prefix, autocomplete.DefaultLimit)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		h.printf("no matches\n")
		return nil
	}
	h.printf("%s\n", strings.Join(paths, "\n"))
	return nil
}

func (h *CommandHandler) cmdHelp([]string) error {
	entries := make([]ui.HelpEntry, 0, len(h.cmds)+1)
	for _, c := range h.cmds {
		entries = append(entries, ui.HelpEntry{Usage: c.usage, Description: c.desc})
	}
	entries = append(entries, ui.HelpEntry{Usage: "quit", Description: "leave the console"})
	h.printf("%s", ui.RenderHelp(entries))
	return nil
}
