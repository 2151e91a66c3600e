package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"netsift/internal/analysis"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFF7DB")).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Margin(0, 1)

	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A8A8A8"))
)

const helpText = `s start/stop   space select   a select all   r resolve names
g provider lookup   c check selected   d import DNS cache
m export mode   e export mode lists   E export all   h HTML report   q quit`

func (m Model) View() string {
	state := "stopped"
	if m.running {
		state = "capturing"
	}
	title := titleStyle.Render(fmt.Sprintf("netsift - %s [%s]", m.filter, state))

	stats := analysis.Summarize(m.view.Records(), 0)
	summary := fmt.Sprintf("Records: %d   Resolved: %d   Packets: %d", stats.Records, stats.Resolved, stats.Packets)
	summaryBox := infoStyle.Render(summary)

	var labels []string
	for i, l := range stats.Labels {
		if i == 4 {
			break
		}
		labels = append(labels, fmt.Sprintf("%s: %d", l.Label, l.Count))
	}
	if len(labels) == 0 {
		labels = append(labels, "Waiting for data...")
	}
	labelBox := infoStyle.Render(strings.Join(labels, "  "))

	row1 := lipgloss.JoinHorizontal(lipgloss.Top, summaryBox, labelBox)
	footer := statusStyle.Render(fmt.Sprintf("%s | export: %s", m.view.Status(), exportModes[m.exportMode]))

	body := lipgloss.JoinVertical(lipgloss.Left, title, row1, m.table.View(), footer)
	if m.showHelp {
		return body + "\n" + helpText
	}
	return body + "\nPress ? for keys, q to quit."
}
