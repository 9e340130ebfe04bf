package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"checkbook-calc/internal/desk"
)

// Update handles incoming messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.tape.Width = msg.Width
		m.tape.Height = m.tapeHeight()
		m.tape.SetContent(m.renderTape())
		return m, nil

	case historyMsg:
		m.history = msg.entries
		m.balance = msg.balance
		if m.cursor >= len(m.history) {
			m.cursor = len(m.history) - 1
		}
		m.tape.SetContent(m.renderTape())
		return m, nil

	case dismissFeedbackMsg:
		if m.desk.DismissFeedback(msg.seq) {
			m.view = m.desk.View()
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx := m.ctx
	m.keyErr = nil

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "u", "ctrl+z":
		m.view = m.desk.Undo(ctx)
		return m, m.feedbackCmd()
	case "r", "ctrl+y":
		m.view = m.desk.Redo(ctx)
		return m, m.feedbackCmd()
	case "e":
		m.view = m.desk.RecoverFromError(ctx)
		return m, m.feedbackCmd()

	case "esc":
		m.view = m.desk.AllClear(ctx)
	case "c":
		m.view = m.desk.Clear(ctx)
	case "n":
		m.view = m.desk.Negate(ctx)
	case "backspace":
		m.view = m.desk.Backspace(ctx)
	case "enter", "=":
		m.view = m.desk.Equals(ctx)
		if m.view.Recorded != nil {
			return m, m.loadHistory()
		}

	case "up":
		if m.cursor < len(m.history)-1 {
			m.cursor++
		}
		m.tape.SetContent(m.renderTape())
		m.tape.SetYOffset(m.cursor)
	case "down":
		if m.cursor > -1 {
			m.cursor--
		}
		m.tape.SetContent(m.renderTape())
		m.tape.SetYOffset(max(m.cursor, 0))
	case "s":
		if m.cursor >= 0 && m.cursor < len(m.history) {
			m.view = m.desk.SelectHistoryEntry(ctx, m.history[m.cursor])
		}
	case "d":
		if m.cursor >= 0 && m.cursor < len(m.history) {
			if err := m.desk.DeleteHistoryEntry(ctx, m.history[m.cursor].ID); err != nil {
				m.keyErr = err
				return m, nil
			}
			return m, m.loadHistory()
		}

	default:
		k, err := desk.ParseKey(msg.String())
		if err != nil {
			return m, nil
		}
		m.view, m.keyErr = m.desk.Press(ctx, k)
	}
	return m, nil
}

func (m Model) feedbackCmd() tea.Cmd {
	if m.view.Feedback == nil {
		return nil
	}
	return m.dismissLater(m.view.Feedback.Seq)
}
