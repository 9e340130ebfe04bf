package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"checkbook-calc/internal/desk"
)

// Run drives d in the terminal until the user quits.
func Run(ctx context.Context, d *desk.Desk, dismissAfter time.Duration) error {
	p := tea.NewProgram(New(ctx, d, dismissAfter), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
