package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const pageSize = 20

type modelState int

const (
	stateBrowse modelState = iota
	stateFilter
	stateDetail
)

type inspectModel struct {
	err      error
	opts     options
	ins      *inspection
	visible  []int // indices into ins.entries after filtering
	filter   textinput.Model
	selected int
	top      int
	state    modelState
}

type loadedMsg struct {
	err error
	ins *inspection
}

func newInspectModel(o options) *inspectModel {
	ti := textinput.New()
	ti.Placeholder = "substring"
	ti.Prompt = "filter: "
	ti.Width = 40
	return &inspectModel{opts: o, filter: ti, state: stateBrowse}
}

func (m *inspectModel) Init() tea.Cmd {
	return m.loadContainer
}

func (m *inspectModel) loadContainer() tea.Msg {
	o := m.opts
	// the TUI pages through everything itself
	o.limit = 0
	ins, err := load(o)
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{ins: ins}
}

func (m *inspectModel) applyFilter() {
	m.visible = m.visible[:0]
	needle := strings.ToLower(m.filter.Value())
	for i, e := range m.ins.entries {
		if needle == "" ||
			strings.Contains(strings.ToLower(e.key), needle) ||
			strings.Contains(strings.ToLower(e.value), needle) {
			m.visible = append(m.visible, i)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = 0
		m.top = 0
	}
}

func (m *inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateFilter {
			switch msg.String() {
			case "enter", "esc":
				if msg.String() == "esc" {
					m.filter.SetValue("")
				}
				m.filter.Blur()
				m.state = stateBrowse
				m.applyFilter()
				return m, nil
			case "ctrl+c":
				return m, tea.Quit
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.selected > 0 {
				m.selected--
				if m.selected < m.top {
					m.top = m.selected
				}
			}

		case "down", "j":
			if m.selected < len(m.visible)-1 {
				m.selected++
				if m.selected >= m.top+pageSize {
					m.top = m.selected - pageSize + 1
				}
			}

		case "g":
			m.selected, m.top = 0, 0

		case "G":
			if n := len(m.visible); n > 0 {
				m.selected = n - 1
				if m.top = n - pageSize; m.top < 0 {
					m.top = 0
				}
			}

		case "/":
			m.state = stateFilter
			m.filter.Focus()
			return m, textinput.Blink

		case "enter":
			if m.state == stateBrowse && len(m.visible) > 0 {
				m.state = stateDetail
			} else if m.state == stateDetail {
				m.state = stateBrowse
			}

		case "esc":
			if m.state == stateDetail {
				m.state = stateBrowse
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.ins = msg.ins
		m.applyFilter()
	}

	return m, nil
}

func (m *inspectModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.ins == nil {
		return "Loading container..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("EASTL Inspector"))
	fmt.Fprintf(&b, " %s at %#x, %d entries", m.ins.family, m.ins.addr, m.ins.length)
	if len(m.visible) != len(m.ins.entries) {
		fmt.Fprintf(&b, " (%d shown)", len(m.visible))
	}
	b.WriteString("\n\n")

	switch m.state {
	case stateDetail:
		e := m.ins.entries[m.visible[m.selected]]
		b.WriteString(keyStyle.Render(e.key))
		b.WriteString("\n\n")
		b.WriteString(valueStyle.Render(e.value))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter/esc back • q quit"))

	default:
		end := m.top + pageSize
		if end > len(m.visible) {
			end = len(m.visible)
		}
		for row := m.top; row < end; row++ {
			e := m.ins.entries[m.visible[row]]
			line := keyStyle.Render(e.key) + " = " + valueStyle.Render(truncate(e.value, 60))
			if row == m.selected {
				line = selectedStyle.Render("> ") + line
			} else {
				line = "  " + line
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		if len(m.visible) == 0 {
			b.WriteString(helpStyle.Render("  (no entries)"))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		if m.state == stateFilter {
			b.WriteString(m.filter.View())
			b.WriteString("\n")
			b.WriteString(helpStyle.Render("enter apply • esc clear"))
		} else {
			b.WriteString(helpStyle.Render("↑/↓ move • g/G ends • / filter • enter detail • q quit"))
		}
	}

	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func runInteractive(o options) error {
	p := tea.NewProgram(newInspectModel(o), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
