// Package tui renders a live terminal view of the download queue: items,
// per-stream states and a progress bar for the active transfer. It is a
// read-only observer; all mutation stays in the queue package.
package tui

import (
	"fmt"
	"strings"
	"time"

	progressbar "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tubeq/tubeq/internal/progress"
	"github.com/tubeq/tubeq/internal/queue"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#0B0B0B")).
			Background(lipgloss.Color("#7FDBFF")).
			Bold(true).
			Padding(0, 1)

	itemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8F8F2")).
			Bold(true)

	streamStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EAEAEA"))

	stateStyles = map[queue.State]lipgloss.Style{
		queue.StateAdded:     lipgloss.NewStyle().Foreground(lipgloss.Color("#A6ADC8")),
		queue.StateWait:      lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")),
		queue.StateInProcess: lipgloss.NewStyle().Foreground(lipgloss.Color("#7FDBFF")).Bold(true),
		queue.StateReady:     lipgloss.NewStyle().Foreground(lipgloss.Color("#00F5D4")).Bold(true),
		queue.StateError:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5C8A")).Bold(true),
	}

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A6ADC8")).
			Faint(true)
)

const refreshInterval = 200 * time.Millisecond

type tickMsg time.Time

// Model is the bubbletea model for the queue status view.
type Model struct {
	mgr     *queue.Manager
	tracker *progress.Tracker
	bar     progressbar.Model
	width   int
	done    func() bool
}

// NewModel builds the status view. done, when non-nil, quits the view once
// it reports true.
func NewModel(mgr *queue.Manager, tracker *progress.Tracker, done func() bool) Model {
	bar := progressbar.New(progressbar.WithDefaultGradient())
	bar.Width = 40
	return Model{mgr: mgr, tracker: tracker, bar: bar, width: 80, done: done}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if w := msg.Width - 30; w > 10 {
			m.bar.Width = min(w, 60)
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	case tickMsg:
		if m.done != nil && m.done() {
			return m, tea.Quit
		}
		return m, tick()
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("tubeq download queue"))
	b.WriteString("\n\n")

	items := m.mgr.Items()
	if len(items) == 0 {
		b.WriteString(helpStyle.Render("queue is empty"))
		b.WriteString("\n")
	}

	for _, item := range items {
		b.WriteString(itemStyle.Render(truncate(item.Video().Title, m.width-4)))
		b.WriteString("\n")
		for _, s := range item.Streams() {
			state := s.State()
			line := fmt.Sprintf("  [%d] %-10s %s", s.ID(), state, truncate(s.Title(), m.width-20))
			style, ok := stateStyles[state]
			if !ok {
				style = streamStyle
			}
			b.WriteString(style.Render(line))
			b.WriteString("\n")
		}
	}

	if label, fraction, active := m.tracker.Current(); active {
		b.WriteString("\n")
		b.WriteString(streamStyle.Render(truncate(label, m.width-4)))
		b.WriteString("\n")
		b.WriteString(m.bar.ViewAs(fraction))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("q to quit"))
	b.WriteString("\n")
	return b.String()
}

// Run displays the status view until the user quits or done reports true.
func Run(mgr *queue.Manager, tracker *progress.Tracker, done func() bool) error {
	p := tea.NewProgram(NewModel(mgr, tracker, done), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func truncate(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
