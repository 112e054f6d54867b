package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	selectedStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
	doneStyle     = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	helpStyle     = lipgloss.NewStyle().Faint(true)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)

	boxChecked   = "☑"
	boxUnchecked = "☐"
)

// OK prints a success line.
func OK(w io.Writer, msg string) {
	fmt.Fprintln(w, successStyle.Render("✔ "+msg))
}

// Fail prints an error line.
func Fail(w io.Writer, msg string) {
	fmt.Fprintln(w, errorStyle.Render("✖ "+msg))
}

// Panel prints lines inside a rounded border.
func Panel(w io.Writer, lines []string) {
	fmt.Fprintln(w, borderStyle.Render(strings.Join(lines, "\n")))
}

// Checkbox renders the completion box for an item.
func Checkbox(done bool) string {
	if done {
		return successStyle.Render(boxChecked)
	}
	return mutedStyle.Render(boxUnchecked)
}

// Strike renders a completed title.
func Strike(s string) string {
	return doneStyle.Render(s)
}

// ProgressBar renders done out of total as a fixed-width bar.
func ProgressBar(done, total, width int) string {
	if total == 0 {
		total = 1
	}
	if width <= 0 {
		width = 28
	}
	filled := int(float64(done) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + fmt.Sprintf("] %d/%d", done, total)
}

// header renders the title with live counts.
func header(done, pending, total int) string {
	return fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		titleStyle.Render("Todos"),
		successStyle.Render("✔"), done,
		pendingStyle.Render("•"), pending,
		accentStyle.Render("Total"), total,
	)
}
