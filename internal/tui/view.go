package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"checkbook-calc/internal/calculator"
)

// View renders the calculator.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Width(m.width).Render(m.headerText()))
	b.WriteString("\n")
	b.WriteString(m.tape.View())
	b.WriteString("\n\n")

	right := lipgloss.NewStyle().Width(m.width).Align(lipgloss.Right)

	b.WriteString(right.Inherit(expressionStyle).Render(m.view.State.Expression))
	b.WriteString("\n")

	if m.view.State.Error {
		b.WriteString(right.Inherit(errorStyle).Render(m.view.State.ErrorMessage))
	} else {
		b.WriteString(right.Inherit(displayStyle).Render(m.displayText()))
	}
	b.WriteString("\n")

	switch {
	case m.keyErr != nil:
		b.WriteString(errorStyle.Render(m.keyErr.Error()))
	case m.view.Feedback != nil:
		b.WriteString(feedbackStyle.Render(m.view.Feedback.Message))
	}
	b.WriteString("\n")

	b.WriteString(footerStyle.Render(m.footerText()))
	return b.String()
}

func (m Model) headerText() string {
	mode := "Checkbook"
	if m.view.Mode == calculator.Scientific {
		mode = "Scientific"
	}
	return fmt.Sprintf("%s · %d entries · balance %s", mode, len(m.history),
		calculator.FormatForDisplay(m.balance, m.view.Mode, m.view.CurrencySymbol))
}

// displayText is the display with the currency symbol in checkbook mode.
func (m Model) displayText() string {
	d := m.view.State.Display
	if m.view.Mode != calculator.Checkbook || m.view.CurrencySymbol == "" {
		return d
	}
	if strings.HasPrefix(d, "-") {
		return "-" + m.view.CurrencySymbol + d[1:]
	}
	return m.view.CurrencySymbol + d
}

func (m Model) footerText() string {
	parts := []string{"=/enter equals", "c clear", "esc AC", "n ±"}
	if m.view.CanUndo {
		parts = append(parts, "u undo")
	}
	if m.view.CanRedo {
		parts = append(parts, "r redo")
	}
	if m.view.State.Error {
		parts = append(parts, "e recover")
	}
	if len(m.history) > 0 {
		parts = append(parts, "↑↓ tape", "s use", "d delete")
	}
	parts = append(parts, "q quit")
	return strings.Join(parts, "  ")
}

// renderTape lists history entries newest first, highlighting the cursor.
func (m Model) renderTape() string {
	if len(m.history) == 0 {
		return tapeStyle.Render("No calculations yet")
	}

	lines := make([]string, len(m.history))
	for i, e := range m.history {
		line := fmt.Sprintf("%s = %s", e.Expression, e.DisplayResult)
		if i == m.cursor {
			lines[i] = selectedStyle.Render("▸ " + line)
			continue
		}
		lines[i] = tapeStyle.Render("  " + line)
	}
	return strings.Join(lines, "\n")
}
