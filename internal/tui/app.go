package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/JohnDeved/myrient-filter/internal/downloader"
	"github.com/JohnDeved/myrient-filter/internal/filter"
)

// Messages
type downloadUpdateMsg struct{}

type runFinishedMsg struct{ err error }

// Model is the download progress view.
type Model struct {
	manager   *downloader.Manager
	ctx       context.Context
	cancel    context.CancelFunc
	downloads downloadsModel
	spinner   spinner.Model
	width     int
	height    int
	quitting  bool
	finished  bool
	err       error
}

// NewModel creates a model that runs the manager's queue when started.
func NewModel(m *downloader.Manager) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	ctx, cancel := context.WithCancel(context.Background())
	d := newDownloadsModel()
	d.setItems(m.Items())

	return Model{
		manager:   m,
		ctx:       ctx,
		cancel:    cancel,
		downloads: d,
		spinner:   s,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runQueue())
}

func (m Model) runQueue() tea.Cmd {
	manager, ctx := m.manager, m.ctx
	return func() tea.Msg {
		return runFinishedMsg{err: manager.Run(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.downloads.height = m.height - 6 // Header, stats and status bar
		if m.downloads.height < 1 {
			m.downloads.height = 1
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case downloadUpdateMsg:
		m.downloads.setItems(m.manager.Items())
		m.downloads.follow()
		return m, nil

	case runFinishedMsg:
		m.finished = true
		m.err = msg.err
		m.downloads.setItems(m.manager.Items())
		m.cancel()
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		if m.finished {
			return m, tea.Quit
		}
		// The queue stops at the current item; runFinishedMsg quits.
		m.quitting = true
		m.cancel()
		return m, nil
	case "up", "k":
		m.downloads.moveUp()
	case "down", "j":
		m.downloads.moveDown()
	case "pgup":
		m.downloads.pageUp()
	case "pgdown":
		m.downloads.pageDown()
	}
	return m, nil
}

func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("  Myrient downloads  "))
	sb.WriteString("\n")
	sb.WriteString(m.downloads.view(m.width, m.spinner.View()))
	sb.WriteString("\n")

	width := m.width
	if width <= 0 {
		width = 80
	}
	sb.WriteString(statusBarStyle.Width(width).Render(m.statusLine()))
	sb.WriteString("\n")
	return sb.String()
}

func (m Model) statusLine() string {
	switch {
	case m.finished:
		s := m.manager.Summary()
		return fmt.Sprintf("Finished: %d completed, %d skipped, %d failed", s.Completed, s.Skipped, s.Failed)
	case m.quitting:
		return "Cancelling..."
	default:
		return "j/k:scroll  q:cancel"
	}
}

// Err returns the error the queue finished with.
func (m Model) Err() error {
	return m.err
}

// RunDownloads queues releases on the manager and shows their progress until
// the queue finishes or the user cancels. The returned items carry the final
// status of every download.
func RunDownloads(dm *downloader.Manager, releases []filter.Release) ([]*downloader.Item, error) {
	dm.Enqueue(releases)
	m := NewModel(dm)
	defer m.cancel()

	p := tea.NewProgram(m)
	dm.SetOnChange(func() {
		p.Send(downloadUpdateMsg{})
	})
	defer dm.SetOnChange(nil)

	final, err := p.Run()
	if err != nil {
		return dm.Items(), err
	}
	if fm, ok := final.(Model); ok {
		return dm.Items(), fm.Err()
	}
	return dm.Items(), nil
}
