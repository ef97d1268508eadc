// Package tui is an interactive outline editor for one family. Every keyboard gesture
// is applied optimistically and committed in the background; a failed commit reverts
// the view and shows the error on the status line.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"pagecraft/internal/move"
	"pagecraft/internal/mutate"
)

type Options struct {
	// Threshold is the lateral offset sent with nest/un-nest gestures.
	Threshold int
}

func Run(ctx context.Context, c *mutate.Coordinator, opts Options) error {
	applyColorProfilePreference()
	applyThemePreference()
	applyGlyphPreference()

	if opts.Threshold <= 0 {
		opts.Threshold = move.DefaultThreshold
	}
	m := newAppModel(ctx, c, opts)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
