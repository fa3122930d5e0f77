// Package tui renders the live watch dashboard: the grouped worklist,
// refresh state, and scheduler status, updating as snapshots are
// published.
package tui

import (
	"context"
	"os/exec"
	"runtime"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/spiffcs/reviewdeck/internal/core"
	"github.com/spiffcs/reviewdeck/internal/model"
	"github.com/spiffcs/reviewdeck/internal/ratelimit"
	"github.com/spiffcs/reviewdeck/internal/schedule"
)

// snoozeFor is the quick-snooze duration bound to the s key.
const snoozeFor = 4 * time.Hour

// row is one display line; section headers interleave with items.
type row struct {
	header string
	item   model.Item
}

func (r row) isHeader() bool { return r.header != "" }

// Model is the Bubble Tea model for the watch dashboard.
type Model struct {
	svc       *core.Service
	scheduler *schedule.Scheduler
	updates   <-chan struct{}

	rows         []row
	cursor       int
	snap         core.Snapshot
	rateLevel    ratelimit.Level
	spinner      spinner.Model
	refreshing   bool
	windowWidth  int
	windowHeight int
	statusMsg    string
	quitting     bool
}

// updateMsg signals that the service published a new snapshot.
type updateMsg struct{}

// refreshDoneMsg carries the outcome of a manual refresh.
type refreshDoneMsg struct{ err error }

// clearStatusMsg clears the transient status line.
type clearStatusMsg struct{}

// NewModel creates the dashboard model.
func NewModel(svc *core.Service, scheduler *schedule.Scheduler) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	m := Model{
		svc:          svc,
		scheduler:    scheduler,
		updates:      svc.Subscribe(),
		spinner:      s,
		windowWidth:  80,
		windowHeight: 24,
	}
	m.reload()
	return m
}

// reload rebuilds the display rows from the current snapshot.
func (m *Model) reload() {
	m.snap = m.svc.Snapshot()
	if tracker := m.svc.Tracker(); tracker != nil {
		m.rateLevel = tracker.OverallLevel()
	}

	var current string
	if m.cursor < len(m.rows) && !m.rows[m.cursor].isHeader() {
		current = m.rows[m.cursor].item.ID
	}

	m.rows = nil
	for _, state := range model.AllStates {
		group := m.snap.Result.Groups[state]
		if len(group) == 0 {
			continue
		}
		m.rows = append(m.rows, row{header: state.DisplayName()})
		for _, item := range group {
			m.rows = append(m.rows, row{item: item})
		}
	}
	if len(m.snap.Result.Snoozed) > 0 {
		m.rows = append(m.rows, row{header: "Snoozed"})
		for _, item := range m.snap.Result.Snoozed {
			m.rows = append(m.rows, row{item: item})
		}
	}

	m.cursor = 0
	m.cursorToItem(0, 1)
	if current != "" {
		for i, r := range m.rows {
			if !r.isHeader() && r.item.ID == current {
				m.cursor = i
				break
			}
		}
	}
}

// selected returns the item under the cursor.
func (m Model) selected() (model.Item, bool) {
	if m.cursor < len(m.rows) && !m.rows[m.cursor].isHeader() {
		return m.rows[m.cursor].item, true
	}
	return model.Item{}, false
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitForUpdate(m.updates),
		m.refreshCmd(false),
	)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case updateMsg:
		m.reload()
		return m, waitForUpdate(m.updates)

	case refreshDoneMsg:
		m.refreshing = false
		if msg.err != nil {
			m.statusMsg = errorStyle.Render(msg.err.Error())
			return m, clearStatusAfter(5 * time.Second)
		}
		return m, nil

	case clearStatusMsg:
		m.statusMsg = ""
		return m, nil
	}

	return m, nil
}

// handleKey processes keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "j", "down":
		m.moveCursor(1)
		return m, nil

	case "k", "up":
		m.moveCursor(-1)
		return m, nil

	case "g", "home":
		m.cursorToItem(0, 1)
		return m, nil

	case "G", "end":
		m.cursorToItem(len(m.rows)-1, -1)
		return m, nil

	case "r":
		if m.refreshing {
			return m, nil
		}
		m.refreshing = true
		return m, m.refreshCmd(true)

	case "s":
		return m.snooze(func(id string) error { return m.svc.Snooze(id, snoozeFor) }, "Snoozed for 4h")

	case "t":
		return m.snooze(m.svc.SnoozeUntilTomorrow, "Snoozed until tomorrow")

	case "u":
		return m.snooze(m.svc.Unsnooze, "Unsnoozed")

	case "enter", "o":
		return m.openInBrowser()
	}

	return m, nil
}

// cursorToItem places the cursor on the first item row found scanning
// from start in the given direction.
func (m *Model) cursorToItem(start, delta int) {
	for i := start; i >= 0 && i < len(m.rows); i += delta {
		if !m.rows[i].isHeader() {
			m.cursor = i
			return
		}
	}
}

// moveCursor advances past section headers in the given direction.
func (m *Model) moveCursor(delta int) {
	next := m.cursor + delta
	for next >= 0 && next < len(m.rows) && m.rows[next].isHeader() {
		next += delta
	}
	if next >= 0 && next < len(m.rows) {
		m.cursor = next
	}
}

func (m Model) snooze(apply func(id string) error, status string) (tea.Model, tea.Cmd) {
	item, ok := m.selected()
	if !ok {
		return m, nil
	}
	if err := apply(item.ID); err != nil {
		m.statusMsg = errorStyle.Render(err.Error())
		return m, clearStatusAfter(2 * time.Second)
	}
	m.reload()
	m.statusMsg = statusStyle.Render(status)
	return m, clearStatusAfter(2 * time.Second)
}

// openInBrowser opens the selected item in the default browser
func (m Model) openInBrowser() (tea.Model, tea.Cmd) {
	item, ok := m.selected()
	if !ok || item.URL == "" {
		m.statusMsg = dimStyle.Render("No URL available")
		return m, clearStatusAfter(2 * time.Second)
	}
	return m, openURL(item.URL)
}

// View implements tea.Model
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return renderDashboard(m)
}

func (m Model) refreshCmd(force bool) tea.Cmd {
	return func() tea.Msg {
		return refreshDoneMsg{err: m.svc.Refresh(context.Background(), force)}
	}
}

// waitForUpdate creates a command that waits for the next published
// snapshot.
func waitForUpdate(updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-updates
		return updateMsg{}
	}
}

// clearStatusAfter returns a command that clears the status after a delay
func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

// openURL opens a URL in the default browser
func openURL(url string) tea.Cmd {
	return func() tea.Msg {
		var cmd *exec.Cmd

		switch runtime.GOOS {
		case "darwin":
			cmd = exec.Command("open", url)
		case "linux":
			cmd = exec.Command("xdg-open", url)
		case "windows":
			cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
		default:
			return nil
		}

		_ = cmd.Start()
		return nil
	}
}
