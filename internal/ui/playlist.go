package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sonroyaalmerol/presenter/internal/playlist"
)

var ErrPageOutOfRange = errors.New("the playlist isn't that big")

const DefaultPageSize = 10

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	currentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	statusColors = map[playlist.Status]lipgloss.Color{
		playlist.StatusIdle:    lipgloss.Color("8"),
		playlist.StatusPlaying: lipgloss.Color("10"),
		playlist.StatusEnded:   lipgloss.Color("12"),
		playlist.StatusFailed:  lipgloss.Color("9"),
	}
)

func statusBadge(s playlist.Status) string {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(statusColors[s]).
		Render("[" + strings.ToUpper(s.String()) + "]")
}

// RenderPlaylist draws one page of the playlist. Pages and entry numbers
// shown to the operator are 1-based.
func RenderPlaylist(snap playlist.Snapshot, page, pageSize int) (string, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	total := len(snap.Entries)
	maxPage := max(1, (total+pageSize-1)/pageSize)
	if page < 1 || page > maxPage {
		return "", ErrPageOutOfRange
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Playlist"))
	b.WriteString(" ")
	b.WriteString(statusBadge(snap.Status))
	b.WriteString("\n")

	if cur, ok := snap.Current.Get(); ok && cur < total {
		fmt.Fprintf(&b, "Now: %s\n", currentStyle.Render(snap.Entries[cur].Source.Path))
	}

	if total == 0 {
		b.WriteString(dimStyle.Render("(empty)"))
		b.WriteString("\n")
	}

	begin := (page - 1) * pageSize
	end := min(begin+pageSize, total)
	for _, e := range snap.Entries[begin:end] {
		marker := "  "
		line := fmt.Sprintf("%3d. %s %s", e.Index+1, e.Source.Path, dimStyle.Render("("+e.Source.Skip.String()+")"))
		if e.Current {
			marker = currentStyle.Render("▶ ")
			line = currentStyle.Render(fmt.Sprintf("%3d. %s", e.Index+1, e.Source.Path)) +
				" " + dimStyle.Render("("+e.Source.Skip.String()+")")
		}
		b.WriteString(marker)
		b.WriteString(line)
		b.WriteString("\n")
	}

	if maxPage > 1 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("page %d/%d, %d entries", page, maxPage, total)))
		b.WriteString("\n")
	}
	if snap.LastError != "" {
		b.WriteString(errorStyle.Render("error: " + snap.LastError))
		b.WriteString("\n")
	}
	return b.String(), nil
}

type HelpEntry struct {
	Usage       string
	Description string
}

// RenderHelp lays out usage strings in an aligned two-column table.
func RenderHelp(entries []HelpEntry) string {
	width := 0
	for _, e := range entries {
		width = max(width, lipgloss.Width(e.Usage))
	}
	col := lipgloss.NewStyle().Width(width + 2)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Commands"))
	b.WriteString("\n")
	for _, e := range entries {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, col.Render(e.Usage), dimStyle.Render(e.Description)))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderError formats a failed command for the console.
func RenderError(err error) string {
	return errorStyle.Render("error: "+err.Error()) + "\n"
}
