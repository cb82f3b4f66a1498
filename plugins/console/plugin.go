// Package console is the interactive admin console. Operators run
// admin commands and send ad-hoc fabric requests from a terminal UI.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"switchboard/cmd"
	"switchboard/plugin"
	"switchboard/transport"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// init registers the console plugin
func init() {
	plugin.Register(NewConsolePlugin())
}

// ConsolePlugin provides the terminal admin console
type ConsolePlugin struct {
	program *tea.Program
	model   *model
	ctx     context.Context
}

// NewConsolePlugin creates a new console plugin
func NewConsolePlugin() *ConsolePlugin {
	return &ConsolePlugin{}
}

// Name returns the plugin name
func (p *ConsolePlugin) Name() string {
	return "console"
}

// CheckRequirements validates plugin requirements
func (p *ConsolePlugin) CheckRequirements(ctx context.Context) error {
	checker := plugin.NewRequirementChecker("console")

	checker.AddRequired(
		"interactive_mode",
		"Console requires interactive mode",
		plugin.RequireMode(plugin.ModeInteractive),
	)

	return checker.Check(ctx)
}

// Extensions returns the plugin's extensions
func (p *ConsolePlugin) Extensions() []plugin.Extension {
	return []plugin.Extension{}
}

// Start initializes the console
func (p *ConsolePlugin) Start(ctx context.Context, client *transport.Client) error {
	p.ctx = ctx
	p.model = newModel(ctx, client)

	p.program = tea.NewProgram(p.model, tea.WithAltScreen())
	p.model.send = p.program.Send

	go func() {
		if _, err := p.program.Run(); err != nil {
			log.Printf("[Console] Error running program: %v", err)
		}
	}()

	log.Printf("[Console] Started")
	return nil
}

// Stop shuts down the console
func (p *ConsolePlugin) Stop(ctx context.Context) error {
	if p.program != nil {
		p.program.Quit()
	}

	log.Printf("[Console] Stopped")
	return nil
}

// model represents the bubbletea model
type model struct {
	ctx    context.Context
	client *transport.Client
	router *cmd.Router
	send   func(tea.Msg)

	lines  []line
	input  string
	width  int
	height int
}

// line is one rendered console line
type line struct {
	source string
	text   string
}

// outputMsg carries asynchronous output into the model
type outputMsg struct {
	source string
	text   string
}

// newModel creates a new bubbletea model
func newModel(ctx context.Context, client *transport.Client) *model {
	return &model{
		ctx:    ctx,
		client: client,
		router: cmd.NewRouter(),
		lines: []line{{
			source: "system",
			text:   "Type /help for commands, or <service>:<action> <subdomain> [json] to send a request.",
		}},
	}
}

// Init initializes the model
func (m *model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			if m.input != "" {
				m.lines = append(m.lines, line{source: "you", text: m.input})

				input := m.input
				m.input = ""

				go m.processInput(input)
			}

		case tea.KeyBackspace, tea.KeyDelete:
			if len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}

		default:
			m.input += msg.String()
		}

	case outputMsg:
		m.lines = append(m.lines, line{source: msg.source, text: msg.text})

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

// processInput runs one console line: slash for admin commands,
// anything else as a fabric request
func (m *model) processInput(input string) {
	if strings.HasPrefix(input, "/") {
		result, err := m.router.Route(m.ctx, strings.TrimPrefix(input, "/"))
		if err != nil {
			m.addLine("error", fmt.Sprintf("Error: %v", err))
			return
		}
		if result != nil && result.Output != "" {
			m.addLine("system", result.Output)
		}
		return
	}

	m.sendRequest(input)
}

// sendRequest parses "<service>:<action> <subdomain> [json]" and sends
// it as an RPC, printing the reply
func (m *model) sendRequest(input string) {
	parts := strings.SplitN(input, " ", 3)
	if len(parts) < 2 || !strings.Contains(parts[0], ":") {
		m.addLine("error", "Usage: <service>:<action> <subdomain> [json]")
		return
	}

	target := strings.SplitN(parts[0], ":", 2)
	subdomain := parts[1]

	var data interface{}
	if len(parts) == 3 {
		raw := json.RawMessage(parts[2])
		if !json.Valid(raw) {
			m.addLine("error", "Payload is not valid JSON")
			return
		}
		data = raw
	}

	ctx, cancel := context.WithTimeout(m.ctx, 30*time.Second)
	defer cancel()

	result, err := m.client.SendMessage(ctx, transport.SendArgs{
		ServiceName: target[0],
		Subdomain:   subdomain,
		Action:      target[1],
		Data:        data,
		IsRPC:       true,
	})
	if err != nil {
		m.addLine("error", fmt.Sprintf("Error: %v", err))
		return
	}

	m.addLine(parts[0], string(result))
}

// addLine appends output through the program so updates stay on the
// bubbletea goroutine
func (m *model) addLine(source, text string) {
	if m.send != nil {
		m.send(outputMsg{source: source, text: text})
	}
}

// View renders the UI
func (m *model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")).
		Padding(0, 1)

	lineStyle := lipgloss.NewStyle().
		Padding(0, 2)

	userStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	systemStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Bold(true)

	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), true).
		Padding(0, 1)

	var s strings.Builder

	s.WriteString(titleStyle.Render("Switchboard Console"))
	s.WriteString("\n\n")

	availableHeight := m.height - 6
	if availableHeight < 1 {
		availableHeight = 10
	}

	start := 0
	if len(m.lines) > availableHeight {
		start = len(m.lines) - availableHeight
	}

	for _, l := range m.lines[start:] {
		var prefix string
		var style lipgloss.Style

		switch l.source {
		case "you":
			prefix = "You: "
			style = userStyle
		case "system":
			prefix = "System: "
			style = systemStyle
		case "error":
			prefix = "Error: "
			style = errorStyle
		default:
			prefix = fmt.Sprintf("[%s]: ", l.source)
			style = lineStyle
		}

		s.WriteString(lineStyle.Render(style.Render(prefix) + l.text))
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(inputStyle.Render("> " + m.input))

	s.WriteString("\n\n")
	s.WriteString(systemStyle.Render("Press Ctrl+C or Esc to quit | Type /help for commands"))

	return s.String()
}
