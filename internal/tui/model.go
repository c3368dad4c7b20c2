// Package tui provides the interactive watch view: a live rendering of the
// worker tree that refreshes while workers run and quits on q or ctrl+c.
package tui

import (
	"fmt"
	"time"

	"github.com/Iron-Ham/arbor/internal/session"
	tea "github.com/charmbracelet/bubbletea"
)

// refreshInterval is how often the view re-snapshots the tree.
const refreshInterval = 250 * time.Millisecond

// tickMsg drives the periodic snapshot refresh.
type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model is the bubbletea model for the watch view.
type Model struct {
	sess     *session.Session
	snapshot session.Snapshot
	width    int
	height   int
	quitting bool
}

// NewModel creates the watch view model over a started session.
func NewModel(sess *session.Session) Model {
	return Model{
		sess:     sess,
		snapshot: sess.Snapshot(),
	}
}

// Init starts the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles key presses, resizes, and refresh ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.snapshot = m.sess.Snapshot()
		return m, tick()
	}

	return m, nil
}

// View renders the tree snapshot with a title and status bar.
func (m Model) View() string {
	if m.quitting {
		return statusStyle.Render("stopping workers...") + "\n"
	}

	title := titleStyle.Render("arbor")

	body := m.snapshot.Rendered
	if body == "" {
		body = warnStyle.Render("no tree (construction failed or not started)")
	}

	status := statusStyle.Render(fmt.Sprintf("%d nodes", m.snapshot.Nodes))
	help := helpStyle.Render("q: stop and quit")

	return title + "\n" + treeStyle.Render(body) + "\n" + status + "  " + help + "\n"
}
