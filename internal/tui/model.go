package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chrisarseno/claude-swarm/internal/config"
	"github.com/chrisarseno/claude-swarm/internal/engine"
	"github.com/chrisarseno/claude-swarm/internal/queue"
	"github.com/chrisarseno/claude-swarm/internal/worker"
)

const refreshInterval = 500 * time.Millisecond

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneInstances PaneID = iota
	PaneQueue
)

// Model is the root Bubble Tea model for the dashboard: a live view of the
// worker pool and task queue, polled from an embedded orchestrator.
type Model struct {
	orch              *engine.Orchestrator
	instancePane      InstancePaneModel
	queuePane         QueuePaneModel
	settingsPane      SettingsPaneModel
	focusedPane       PaneID
	width             int
	height            int
	quitting          bool
	showSettings      bool
	config            *config.Config
	globalConfigPath  string
	projectConfigPath string
}

// New creates a new dashboard model polling orch for its state.
func New(orch *engine.Orchestrator, cfg *config.Config, globalPath, projectPath string) Model {
	return Model{
		orch:              orch,
		instancePane:      NewInstancePaneModel(),
		queuePane:         NewQueuePaneModel(),
		settingsPane:      NewSettingsPaneModel(cfg, globalPath, projectPath),
		focusedPane:       PaneInstances,
		config:            cfg,
		globalConfigPath:  globalPath,
		projectConfigPath: projectPath,
	}
}

// refreshMsg carries a fresh poll of pool and queue state to every pane.
type refreshMsg struct {
	instances []worker.Snapshot
	counts    queue.Counts
}

// tickMsg drives the periodic poll of the orchestrator's state.
type tickMsg struct{}

func scheduleTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return scheduleTick()
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.showSettings {
			switch msg.String() {
			case "s", "esc":
				m.showSettings = false
				m.settingsPane.SetVisible(false)
			default:
				var cmd tea.Cmd
				m.settingsPane, cmd = m.settingsPane.Update(msg)
				cmds = append(cmds, cmd)
				if !m.settingsPane.IsVisible() {
					m.showSettings = false
				}
			}
			return m, tea.Batch(cmds...)
		}

		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case KeySettings:
			m.showSettings = true
			m.settingsPane.SetVisible(true)
			cmds = append(cmds, m.settingsPane.Init())

		case KeyTab, KeyShiftTab:
			m.focusedPane = (m.focusedPane + 1) % 2
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneInstances
			m.updateFocusStates()

		case KeyPane2, KeyPane3:
			m.focusedPane = PaneQueue
			m.updateFocusStates()

		default:
			switch m.focusedPane {
			case PaneInstances:
				var cmd tea.Cmd
				m.instancePane, cmd = m.instancePane.Update(msg)
				cmds = append(cmds, cmd)
			case PaneQueue:
				var cmd tea.Cmd
				m.queuePane, cmd = m.queuePane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()
		m.settingsPane.SetSize(msg.Width, msg.Height)

		var cmd tea.Cmd
		m.instancePane, cmd = m.instancePane.Update(msg)
		cmds = append(cmds, cmd)
		m.queuePane, cmd = m.queuePane.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		rmsg := refreshMsg{
			instances: m.orch.Pool().Snapshot(),
			counts:    m.orch.Queue().Snapshot().Counts,
		}
		var cmd tea.Cmd
		m.instancePane, cmd = m.instancePane.Update(rmsg)
		cmds = append(cmds, cmd)
		m.queuePane, cmd = m.queuePane.Update(rmsg)
		cmds = append(cmds, cmd)
		cmds = append(cmds, scheduleTick())
	}

	return m, tea.Batch(cmds...)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.showSettings {
		return m.settingsPane.View()
	}

	leftPane := m.instancePane.View()
	rightPane := m.queuePane.View()

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)
	helpBar := HelpView()

	return lipgloss.JoinVertical(lipgloss.Left, mainContent, helpBar)
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 60) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 1

	m.instancePane.SetSize(leftWidth, availableHeight)
	m.queuePane.SetSize(rightWidth, availableHeight)

	m.updateFocusStates()
}

// updateFocusStates updates the focus state of all panes.
func (m *Model) updateFocusStates() {
	m.instancePane.SetFocused(m.focusedPane == PaneInstances)
	m.queuePane.SetFocused(m.focusedPane == PaneQueue)
}
