package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"netsift/internal/models"
	"netsift/internal/reporting"
)

// snapshotMsg replaces the view with the controller's records.
type snapshotMsg []models.TrafficRecord

// sessionMsg reports a start or stop.
type sessionMsg struct {
	running bool
	err     error
}

// opMsg reports a finished operation that did not publish its own status.
type opMsg struct {
	status string
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case actionMsg:
		msg()
		return m, nil

	case snapshotMsg:
		m.view.Reset(msg)
		m.refresh()
		return m, nil

	case sessionMsg:
		if msg.err != nil {
			m.view.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.running = msg.running
		if msg.running {
			return m, m.snapshotCmd()
		}
		return m, nil

	case opMsg:
		if msg.status != "" {
			m.view.status = msg.status
		}
		return m, nil

	case TickMsg:
		if m.view.dirty {
			m.refresh()
		}
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.height = msg.Height
		if h := msg.Height - 8; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "s":
			if m.running {
				return m, m.stopCmd()
			}
			return m, m.startCmd()
		case " ":
			return m, m.toggleCmd()
		case "a":
			m.allOn = !m.allOn
			return m, m.selectAllCmd(m.allOn)
		case "r":
			return m, m.resolveCmd()
		case "g":
			return m, m.enrichCmd()
		case "c":
			return m, m.probeCmd()
		case "d":
			return m, m.dnsCacheCmd()
		case "m":
			m.exportMode = (m.exportMode + 1) % len(exportModes)
			return m, nil
		case "e":
			return m, m.exportCmd(exportModes[m.exportMode])
		case "E":
			return m, m.exportCmd(reporting.SelectAll)
		case "h":
			return m, m.reportCmd()
		case "?":
			m.showHelp = !m.showHelp
			return m, nil
		}
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// refresh rebuilds the table rows from the view.
func (m *Model) refresh() {
	rows := make([]table.Row, m.view.Len())
	for i, r := range m.view.Records() {
		rows[i] = recordRow(r)
	}
	m.table.SetRows(rows)
	m.view.dirty = false
}

func recordRow(r models.TrafficRecord) table.Row {
	sel := " "
	if r.Selected {
		sel = "*"
	}
	port := ""
	if r.RemotePort > 0 {
		port = strconv.Itoa(r.RemotePort)
	}
	return table.Row{
		sel,
		r.Timestamp.Format("15:04:05"),
		r.ProcessName,
		r.RemoteAddress,
		port,
		r.Domain,
		r.Protocol,
		fmt.Sprintf("%d", r.PacketCount),
		r.TrafficType,
		r.ProviderName,
		r.GeoLocation,
		r.Status,
	}
}

// Controller calls run as commands: they publish notifications, which are
// dispatched back into Update and would block if issued from it.

func (m Model) snapshotCmd() tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		return snapshotMsg(ctl.Records())
	}
}

func (m Model) startCmd() tea.Cmd {
	ctl, ctx, filter := m.ctl, m.ctx, m.filter
	return func() tea.Msg {
		if err := ctl.Start(ctx, filter); err != nil {
			return sessionMsg{err: err}
		}
		return sessionMsg{running: true}
	}
}

func (m Model) stopCmd() tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		ctl.Stop()
		return sessionMsg{running: false}
	}
}

func (m Model) toggleCmd() tea.Cmd {
	r, ok := m.view.At(m.table.Cursor())
	if !ok {
		return nil
	}
	ctl := m.ctl
	return func() tea.Msg {
		ctl.SetSelected(r.Key(), !r.Selected)
		return nil
	}
}

func (m Model) selectAllCmd(on bool) tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		ctl.SelectAll(on)
		return nil
	}
}

func (m Model) resolveCmd() tea.Cmd {
	ctl, ctx := m.ctl, m.ctx
	return func() tea.Msg {
		ctl.ResolveNames(ctx)
		return nil
	}
}

func (m Model) enrichCmd() tea.Cmd {
	ctl, ctx := m.ctl, m.ctx
	return func() tea.Msg {
		ctl.Enrich(ctx, nil)
		return nil
	}
}

func (m Model) probeCmd() tea.Cmd {
	ctl, ctx := m.ctl, m.ctx
	return func() tea.Msg {
		ctl.Probe(ctx, nil)
		return nil
	}
}

func (m Model) dnsCacheCmd() tea.Cmd {
	ctl, ctx := m.ctl, m.ctx
	return func() tea.Msg {
		ctl.ImportDNSCache(ctx)
		return nil
	}
}

func (m Model) exportCmd(mode reporting.Selection) tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		ctl.Export(string(mode))
		return nil
	}
}

func (m Model) reportCmd() tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		if _, err := ctl.Report(); err != nil {
			return opMsg{status: "Report failed: " + err.Error()}
		}
		return nil
	}
}
