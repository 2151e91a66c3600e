// Package tui is the interactive terminal front end: a live table of the
// records of one capture session.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"netsift/internal/models"
	"netsift/internal/reporting"
)

// Controller is the part of the application controller the UI drives.
type Controller interface {
	Start(ctx context.Context, filter string) error
	Stop()
	Records() []models.TrafficRecord
	SetSelected(key models.Key, selected bool) bool
	SelectAll(selected bool)
	ResolveNames(ctx context.Context) int
	Enrich(ctx context.Context, keys []models.Key) int
	Probe(ctx context.Context, keys []models.Key) int
	ImportDNSCache(ctx context.Context) (int, error)
	Export(mode string) (reporting.ExportResult, error)
	Report() (string, error)
}

// exportModes is the order m cycles through; e exports the current one.
var exportModes = []reporting.Selection{
	reporting.SelectSelected,
	reporting.SelectBlocked,
	reporting.SelectOK,
	reporting.SelectAll,
}

type Model struct {
	ctl     Controller
	view    *RecordView
	table   table.Model
	filter  string
	running bool
	// autoStart begins capturing as soon as the program starts.
	autoStart  bool
	exportMode int
	showHelp   bool
	allOn      bool
	height     int
	ctx        context.Context
}

// New builds the model. view must be the same RecordView that receives the
// controller's notifications through a Bridge.
func New(ctx context.Context, ctl Controller, view *RecordView, filter string, autoStart bool) Model {
	columns := []table.Column{
		{Title: "", Width: 1},
		{Title: "Time", Width: 8},
		{Title: "Process", Width: 14},
		{Title: "Address", Width: 15},
		{Title: "Port", Width: 5},
		{Title: "Domain", Width: 30},
		{Title: "Proto", Width: 6},
		{Title: "Pkts", Width: 7},
		{Title: "Type", Width: 16},
		{Title: "Provider", Width: 18},
		{Title: "Geo", Width: 4},
		{Title: "Status", Width: 10},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(20),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	if ctx == nil {
		ctx = context.Background()
	}
	return Model{
		ctl:       ctl,
		view:      view,
		table:     t,
		filter:    filter,
		autoStart: autoStart,
		ctx:       ctx,
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(), m.snapshotCmd()}
	if m.autoStart && m.filter != "" {
		cmds = append(cmds, m.startCmd())
	}
	return tea.Batch(cmds...)
}

// TickMsg triggers a table refresh.
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
