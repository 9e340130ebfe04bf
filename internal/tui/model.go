package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"checkbook-calc/internal/desk"
	"checkbook-calc/internal/store"
)

// fixed rows around the history tape: header, expression, display,
// feedback, footer and two spacers.
const chromeHeight = 7

// Model is the bubbletea model for the calculator.
type Model struct {
	ctx  context.Context
	desk *desk.Desk

	view    desk.View
	history []store.HistoryEntry
	balance float64 // last stored result
	cursor  int // selected history entry, -1 for none
	tape    viewport.Model

	dismissAfter time.Duration
	keyErr       error

	width  int
	height int
}

// historyMsg carries a fresh copy of the stored history and last balance.
type historyMsg struct {
	entries []store.HistoryEntry
	balance float64
}

// dismissFeedbackMsg fires when undo/redo feedback numbered seq has been
// shown long enough.
type dismissFeedbackMsg struct{ seq uint64 }

// New returns a Model driving d. Undo/redo feedback is dismissed after
// dismissAfter; zero keeps it until replaced.
func New(ctx context.Context, d *desk.Desk, dismissAfter time.Duration) Model {
	m := Model{
		ctx:          ctx,
		desk:         d,
		view:         d.View(),
		cursor:       -1,
		dismissAfter: dismissAfter,
		width:        48,
		height:       20,
	}
	m.tape = viewport.New(m.width, m.tapeHeight())
	return m
}

// Init loads the history tape.
func (m Model) Init() tea.Cmd {
	return m.loadHistory()
}

// DeskView returns the desk view the model last rendered.
func (m Model) DeskView() desk.View {
	return m.view
}

func (m Model) loadHistory() tea.Cmd {
	d, ctx := m.desk, m.ctx
	return func() tea.Msg {
		d.Flush()
		return historyMsg{entries: d.History(ctx), balance: d.LastBalance(ctx)}
	}
}

func (m Model) dismissLater(seq uint64) tea.Cmd {
	if m.dismissAfter <= 0 {
		return nil
	}
	return tea.Tick(m.dismissAfter, func(time.Time) tea.Msg {
		return dismissFeedbackMsg{seq: seq}
	})
}

func (m Model) tapeHeight() int {
	h := m.height - chromeHeight
	if h < 1 {
		h = 1
	}
	return h
}
