package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/tracegc/heap"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// headerHeight and footerHeight are the rows outside the history viewport.
const (
	headerHeight = 3
	footerHeight = 3
)

type interactiveModel struct {
	session *session
	history []string
	input   textinput.Model
	view    viewport.Model
	ready   bool
}

func newInteractiveModel(s *session) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "alloc a 1"
	ti.Prompt = "gc> "
	ti.Width = 60
	ti.Focus()

	return &interactiveModel{
		session: s,
		input:   ti,
		history: []string{helpStyle.Render("type help for commands, ctrl+c to quit")},
	}
}

func runInteractive(h *heap.Heap) error {
	s, err := newSession(h)
	if err != nil {
		return err
	}
	defer s.close()

	_, err = tea.NewProgram(newInteractiveModel(s), tea.WithAltScreen()).Run()
	return err
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "quit" || line == "exit" {
				return m, tea.Quit
			}
			if line != "" {
				m.execute(line)
			}
		}

	case tea.WindowSizeMsg:
		height := msg.Height - headerHeight - footerHeight
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.view = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.view.Width = msg.Width
			m.view.Height = height
		}
		m.refresh()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	if m.ready {
		m.view, cmd = m.view.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *interactiveModel) execute(line string) {
	m.history = append(m.history, cmdStyle.Render("> "+line))
	out, err := m.session.exec(line)
	switch {
	case err != nil:
		m.history = append(m.history, errStyle.Render("error: "+err.Error()))
	case out != "":
		m.history = append(m.history, outStyle.Render(out))
	}
	m.refresh()
}

func (m *interactiveModel) refresh() {
	if !m.ready {
		return
	}
	m.view.SetContent(strings.Join(m.history, "\n"))
	m.view.GotoBottom()
}

func (m *interactiveModel) View() string {
	if !m.ready {
		return "Starting..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("tracegc"))
	b.WriteString(" ")
	b.WriteString(statsStyle.Render(m.session.stats()))
	b.WriteString("\n\n")
	b.WriteString(m.view.View())
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(fmt.Sprintf("epoch %d • enter run • esc quit", m.session.ctx.Epoch())))
	return b.String()
}
