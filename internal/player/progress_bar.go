package player

import (
	"strings"
	"time"
)

func ProgressBar(width int, pos, total time.Duration) string {
	if width <= 0 {
		return ""
	}
	progress := 0.0
	if total > 0 {
		progress = float64(pos) / float64(total)
	}
	progress = min(max(progress, 0), 1)

	dot := int(float64(width) * progress)
	if dot >= width {
		dot = width - 1
	}
	var b strings.Builder
	b.Grow(width * 3)
	for i := 0; i < width; i++ {
		switch {
		case i == dot:
			b.WriteRune('●')
		case i < dot:
			b.WriteRune('━')
		default:
			b.WriteRune('─')
		}
	}
	return b.String()
}
