package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/chrisarseno/claude-swarm/internal/worker"
)

// InstancePaneModel lists the worker pool and shows the selected worker's
// recent output in a scrollable viewport.
type InstancePaneModel struct {
	instances   []worker.Snapshot
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
}

// NewInstancePaneModel creates a new instance pane model.
func NewInstancePaneModel() InstancePaneModel {
	return InstancePaneModel{viewport: viewport.New(0, 0)}
}

// Update handles messages for the instance pane.
func (m InstancePaneModel) Update(msg tea.Msg) (InstancePaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()

	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.instances)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case refreshMsg:
		m.instances = msg.instances
		if m.selectedIdx >= len(m.instances) {
			m.selectedIdx = len(m.instances) - 1
		}
		if m.selectedIdx < 0 {
			m.selectedIdx = 0
		}
		m.updateViewportContent()
	}

	return m, cmd
}

// View renders the instance pane.
func (m InstancePaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	listWidth := 28
	viewportWidth := m.width - listWidth - 4

	listContent := m.renderInstanceList(listWidth)
	viewportContent := m.viewport.View()

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		listContent,
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(viewportContent),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m InstancePaneModel) renderInstanceList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Instances")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.instances) == 0 {
		b.WriteString(StyleStatusPending.Render("No workers spawned"))
	} else {
		for i, w := range m.instances {
			icon := m.statusIcon(w.State)
			label := w.ID
			if len(label) > width-10 {
				label = label[:width-13] + "..."
			}
			line := fmt.Sprintf("%s %-10s %s", icon, w.ModelProfile, label)
			if i == m.selectedIdx {
				line = lipgloss.NewStyle().
					Background(lipgloss.Color("62")).
					Foreground(lipgloss.Color("0")).
					Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

func (m InstancePaneModel) statusIcon(s worker.State) string {
	switch s {
	case worker.StateIdle:
		return StyleStatusComplete.Render("●")
	case worker.StateBusy:
		return StyleStatusRunning.Render("●")
	case worker.StateUnhealthy:
		return StyleStatusFailed.Render("●")
	case worker.StateStarting:
		return StyleStatusPending.Render("○")
	default:
		return StyleStatusPending.Render("✗")
	}
}

func (m InstancePaneModel) selected() (worker.Snapshot, bool) {
	if m.selectedIdx < 0 || m.selectedIdx >= len(m.instances) {
		return worker.Snapshot{}, false
	}
	return m.instances[m.selectedIdx], true
}

func (m *InstancePaneModel) updateViewportContent() {
	w, ok := m.selected()
	if !ok {
		m.viewport.SetContent("No worker selected")
		return
	}
	header := fmt.Sprintf("%s  [%s]  task=%s\n\n", w.ID, w.State, w.CurrentTaskID)
	m.viewport.SetContent(header + w.RecentOutput)
	m.viewport.GotoBottom()
}

func (m *InstancePaneModel) resizeViewport() {
	listWidth := 28
	viewportWidth := m.width - listWidth - 4
	viewportHeight := m.height - 4

	if viewportWidth < 10 {
		viewportWidth = 10
	}
	if viewportHeight < 5 {
		viewportHeight = 5
	}

	m.viewport.Width = viewportWidth
	m.viewport.Height = viewportHeight
}

// SetSize updates the pane dimensions.
func (m *InstancePaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *InstancePaneModel) SetFocused(focused bool) {
	m.focused = focused
}
