package live

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	retryStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	counterStyle = lipgloss.NewStyle().Bold(true)
)

// defaultColumns lays out the recent-completions table.
func defaultColumns() []table.Column {
	return []table.Column{
		{Title: "id", Width: 8},
		{Title: "status", Width: 8},
		{Title: "attempt", Width: 8},
		{Title: "detail", Width: 48},
	}
}

// tableStyles adapts the bubbles table to the run view.
func tableStyles(noColor bool) table.Styles {
	styles := table.DefaultStyles()
	styles.Selected = styles.Cell
	if noColor {
		styles.Header = lipgloss.NewStyle().Padding(0, 1)
		styles.Cell = lipgloss.NewStyle().Padding(0, 1)
		styles.Selected = styles.Cell
	}
	return styles
}

// renderHeader formats the counter line above the table.
func renderHeader(s State, elapsed time.Duration, noColor bool) string {
	done := s.Succeeded + s.Failed
	progress := fmt.Sprintf("%d done", done)
	if s.Total > 0 {
		progress = fmt.Sprintf("%d/%d", done, s.Total)
	}
	counts := fmt.Sprintf("ok %d  failed %d  retries %d  in flight %d",
		s.Succeeded, s.Failed, s.Retried, s.InFlight)
	clock := elapsed.Round(time.Second).String()
	if noColor {
		return fmt.Sprintf("parareq  %s  %s  %s", progress, counts, clock)
	}
	return headerStyle.Render("parareq") + "  " +
		counterStyle.Render(progress) + "  " +
		okStyle.Render(fmt.Sprintf("ok %d", s.Succeeded)) + "  " +
		failStyle.Render(fmt.Sprintf("failed %d", s.Failed)) + "  " +
		retryStyle.Render(fmt.Sprintf("retries %d", s.Retried)) + "  " +
		fmt.Sprintf("in flight %d", s.InFlight) + "  " +
		subtleStyle.Render(clock)
}

// renderFooter formats the key hint line below the table.
func renderFooter(noColor bool) string {
	hint := "q or ctrl+c to stop admitting; in-flight calls drain"
	if noColor {
		return hint
	}
	return subtleStyle.Render(hint)
}
