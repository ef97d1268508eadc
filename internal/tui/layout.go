package tui

import (
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
)

// fitLine cuts s (ANSI-aware) to width columns, marking the cut with an ellipsis.
func fitLine(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if xansi.StringWidth(s) <= width {
		return s
	}
	return xansi.Truncate(s, width, "…")
}

// normalizePane pads or cuts every line of s to exactly width columns and the block
// to height lines, so panes line up under lipgloss.JoinHorizontal.
func normalizePane(s string, width, height int) string {
	lines := strings.Split(s, "\n")
	if height > 0 {
		if len(lines) > height {
			lines = lines[:height]
		}
		for len(lines) < height {
			lines = append(lines, "")
		}
	}
	for i, ln := range lines {
		ln = fitLine(ln, width)
		if w := xansi.StringWidth(ln); w < width {
			ln += strings.Repeat(" ", width-w)
		}
		lines[i] = ln
	}
	return strings.Join(lines, "\n")
}
