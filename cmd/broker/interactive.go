package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/databroker/codec"
	"github.com/wippyai/databroker/module"
	"github.com/wippyai/databroker/option"
	"github.com/wippyai/databroker/payload"
	"github.com/wippyai/databroker/resource"
	"github.com/wippyai/databroker/session"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectModule modelState = iota
	stateInputArgs
	stateShowResult
)

type interactiveModel struct {
	ctx      context.Context
	err      error
	sess     *session.Session
	result   string
	modules  []module.Descriptor
	input    textinput.Model
	status   int
	selected int
	state    modelState
}

type callResultMsg struct {
	err    error
	result string
	status int
}

func newInteractiveModel(ctx context.Context, s *session.Session) *interactiveModel {
	return &interactiveModel{
		ctx:     ctx,
		sess:    s,
		modules: s.Modules().List(),
		state:   stateSelectModule,
	}
}

func (m *interactiveModel) Init() tea.Cmd { return nil }

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectModule && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectModule && m.selected < len(m.modules)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectModule:
				if len(m.modules) == 0 {
					return m, nil
				}
				m.prepareInput()
				m.state = stateInputArgs
				return m, textinput.Blink

			case stateInputArgs:
				return m, m.callModule(m.input.Value())

			case stateShowResult:
				m.reset()
			}
			return m, nil

		case "esc":
			if m.state != stateSelectModule {
				m.reset()
			}
			return m, nil
		}

	case callResultMsg:
		m.result = msg.result
		m.status = msg.status
		m.err = msg.err
		m.state = stateShowResult
		return m, nil
	}

	if m.state == stateInputArgs {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *interactiveModel) reset() {
	m.state = stateSelectModule
	m.result = ""
	m.err = nil
}

func (m *interactiveModel) prepareInput() {
	d := m.modules[m.selected]
	ti := textinput.New()
	ti.Placeholder = d.Usage
	ti.Prompt = d.Name + " "
	ti.Width = 60
	ti.Focus()
	m.input = ti
}

// callModule runs the selected module. A module output left unbound is
// captured in memory and rendered with its family's codec.
func (m *interactiveModel) callModule(line string) tea.Cmd {
	d := m.modules[m.selected]
	return func() tea.Msg {
		opts, err := option.ParseCommand(line)
		if err != nil {
			return callResultMsg{err: err, status: module.StatusDispatch}
		}

		var outID resource.ID
		captured := false
		if k, ok := d.KeyFor(option.FlagOutput); ok && !hasFlag(opts, option.FlagOutput) {
			outID, err = m.sess.Register(resource.Spec{
				Family:    k.Family,
				Direction: resource.DirOut,
				Method:    resource.MethodDuplicate,
			})
			if err != nil {
				return callResultMsg{err: err, status: module.StatusDispatch}
			}
			defer m.sess.Destroy(outID)
			tok, err := m.sess.EncodeToken(outID)
			if err != nil {
				return callResultMsg{err: err, status: module.StatusDispatch}
			}
			opts, _ = opts.Append(option.Make(option.FlagOutput, tok))
			captured = true
		}

		status, err := m.sess.CallModule(m.ctx, d.Name, module.ModeRun, opts)
		if err != nil || !captured {
			return callResultMsg{err: err, status: status}
		}
		text, err := m.render(outID)
		return callResultMsg{result: text, status: status, err: err}
	}
}

func (m *interactiveModel) render(id resource.ID) (string, error) {
	v, err := m.sess.Retrieve(id)
	if err != nil {
		return "", err
	}
	p, ok := v.(payload.Payload)
	if !ok || p == nil {
		return "(no output)", nil
	}
	c, err := codec.For(p.Family())
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := c.Encode(&buf, p); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func (m *interactiveModel) View() string {
	if len(m.modules) == 0 {
		return errorStyle.Render("No modules registered.\n\nPress q to quit.")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Data Broker"))
	b.WriteString(" ")
	b.WriteString(m.sess.Name())
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectModule:
		b.WriteString("Select a module to run:\n\n")
		for i, d := range m.modules {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + formatModule(d)))
			} else {
				b.WriteString("  " + formatModule(d))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter choose • q quit"))

	case stateInputArgs:
		d := m.modules[m.selected]
		b.WriteString(fmt.Sprintf("Arguments for %s\n\n", nameStyle.Render(d.Name)))
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter run • esc back"))

	case stateShowResult:
		d := m.modules[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s (status %d):\n\n", nameStyle.Render(d.Name), m.status))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}
	return b.String()
}

func formatModule(d module.Descriptor) string {
	var keys []string
	for _, k := range d.Keys {
		keys = append(keys, fmt.Sprintf("%c%s", k.Flag, k.Family))
	}
	s := nameStyle.Render(d.Name)
	if len(keys) > 0 {
		s += " [" + keyStyle.Render(strings.Join(keys, " ")) + "]"
	}
	return s + "  " + d.Purpose
}

func runInteractive(ctx context.Context, s *session.Session) error {
	p := tea.NewProgram(newInteractiveModel(ctx, s), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
