package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rkpatel/swarmpeer/internal/swarm"
)

// Model represents the terminal UI state.
type Model struct {
	peerID     uint32
	snapshotFn func() swarm.Snapshot

	width      int
	height     int
	lastUpdate time.Time

	snap swarm.Snapshot

	showHelp bool
	quitting bool
	complete bool
}

// NewModel creates a new TUI model. snapshotFn is polled on every tick
// to refresh the displayed state.
func NewModel(peerID uint32, snapshotFn func() swarm.Snapshot) Model {
	return Model{
		peerID:     peerID,
		snapshotFn: snapshotFn,
		lastUpdate: time.Now(),
	}
}

// Init initializes the model (required by bubbletea).
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		tickCmd(),
	)
}

// Update handles incoming messages (required by bubbletea).
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		case "h", "?":
			m.showHelp = !m.showHelp
			return m, nil
		}

	case tickMsg:
		if m.snapshotFn != nil {
			m.snap = m.snapshotFn()
		}
		m.lastUpdate = time.Now()
		return m, tickCmd()

	case completionMsg:
		m.complete = true
		return m, nil

	case tea.QuitMsg:
		return m, tea.Quit
	}

	return m, nil
}

// View renders the UI (required by bubbletea).
func (m Model) View() string {
	if m.quitting {
		return "Goodbye.\n"
	}
	if m.showHelp {
		return m.helpView()
	}
	return m.mainView()
}

func (m Model) mainView() string {
	var sections []string
	sections = append(sections, m.headerView())
	sections = append(sections, m.progressView())
	sections = append(sections, m.connectionsView())
	sections = append(sections, m.footerView())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) headerView() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		Render("swarmpeer")

	id := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#059669")).
		Render(fmt.Sprintf("peer %d", m.peerID))

	status := ""
	if m.complete {
		status = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Render(" — transfer complete")
	}

	return fmt.Sprintf("%s %s%s\n", title, id, status)
}

func (m Model) progressView() string {
	if m.snap.NumPieces == 0 {
		return "\nwaiting for configuration...\n"
	}

	width := m.width - 20
	if width > 60 {
		width = 60
	}
	if width < 10 {
		width = 10
	}

	percentage := float64(m.snap.HaveCount) / float64(m.snap.NumPieces) * 100
	completed := int(float64(width) * (percentage / 100))
	remaining := width - completed

	bar := strings.Repeat("█", completed) + strings.Repeat("░", remaining)
	barStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))

	return fmt.Sprintf("\npieces: %s %d/%d (%.1f%%)\n",
		barStyle.Render(bar), m.snap.HaveCount, m.snap.NumPieces, percentage)
}

func (m Model) connectionsView() string {
	if len(m.snap.Connections) == 0 {
		return "\nno connections yet\n"
	}

	rowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6366F1"))
	optimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	var rows []string
	rows = append(rows, "\nconnections:")
	for _, c := range m.snap.Connections {
		direction := "in"
		if c.Outbound {
			direction = "out"
		}
		marker := ""
		if c.RemoteID == m.snap.OptimUnchokedID {
			marker = optimStyle.Render(" (optimistic)")
		}
		rows = append(rows, rowStyle.Render(fmt.Sprintf(
			"  peer %d [%s]  choked=%-5v interested=%-5v received=%-3d have=%d/%d%s",
			c.RemoteID, direction, c.Choked, c.Interested, c.PiecesReceived, c.RemoteHaveCount, m.snap.NumPieces, marker,
		)))
	}
	return strings.Join(rows, "\n") + "\n"
}

func (m Model) footerView() string {
	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280")).
		Italic(true)
	return fmt.Sprintf("\n%s\n", helpStyle.Render("Press 'h' for help · 'q' to quit"))
}

func (m Model) helpView() string {
	helpStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#7C3AED")).
		Padding(1)

	help := `swarmpeer - help

Keyboard Controls:
  h, ?    Toggle this help screen
  q       Quit the application
  Ctrl+C  Force quit

Information Display:
  pieces       completion bar for this peer's own bitmap
  connections  one row per live neighbor: choke/interest state,
               pieces received since the last preferred-neighbor tick,
               and the neighbor's own completion count

Press 'h' again to return to the main view.`

	return helpStyle.Render(help)
}

// tickMsg is sent periodically to refresh the displayed snapshot.
type tickMsg time.Time

// completionMsg is sent once this peer and all its neighbors hold the
// whole file.
type completionMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
