// Package main provides the tablepilot CLI entry point.
// This file implements the interactive chat interface using bubbletea.
package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"tablepilot/internal/agent"
	"tablepilot/internal/logging"
)

// styles holds the lipgloss styles for the chat interface.
type styles struct {
	header  lipgloss.Style
	user    lipgloss.Style
	bot     lipgloss.Style
	muted   lipgloss.Style
	errText lipgloss.Style
	spin    lipgloss.Style
	input   lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1),
		user:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		bot:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		errText: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		spin:    lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("212")).
			Padding(0, 1),
	}
}

// chatMessage is one rendered turn in the transcript.
type chatMessage struct {
	role    string // "user", "assistant" or "system"
	content string
	time    time.Time
}

// Messages for tea updates
type (
	agentResultMsg agent.Result
	errorMsg       error
)

// chatModel is the main model for the interactive chat interface.
type chatModel struct {
	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	styles    styles
	renderer  *glamour.TermRenderer

	history   []chatMessage
	isLoading bool
	err       error
	width     int
	height    int
	ready     bool
	showCode  bool

	app       *app
	ctx       context.Context
	sessionID string
}

// runInteractiveChat connects the backend and starts the TUI.
func runInteractiveChat() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.store.Create("")
	if err != nil {
		return err
	}

	model := initChat(ctx, a, sess.ID)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat interface failed: %w", err)
	}
	return nil
}

// initChat initializes the interactive chat model.
func initChat(ctx context.Context, a *app, sessionID string) chatModel {
	st := defaultStyles()

	ti := textinput.New()
	ti.Placeholder = "Ask about your Airtable data... (Enter to send, Ctrl+C to exit)"
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 4096
	ti.Width = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = st.spin

	vp := viewport.New(80, 20)
	vp.SetContent("")

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	welcome := chatMessage{
		role: "assistant",
		content: "Connected to **" + a.cfg.MCPURL + "**.\n\n" +
			"Describe what you want to do with your Airtable data and I'll " +
			"write and run the code for it. Type `/help` for commands.",
		time: time.Now(),
	}

	return chatModel{
		textinput: ti,
		viewport:  vp,
		spinner:   sp,
		styles:    st,
		renderer:  renderer,
		history:   []chatMessage{welcome},
		app:       a,
		ctx:       ctx,
		sessionID: sessionID,
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
	)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			if !m.isLoading {
				return m.handleSubmit()
			}
		}

		if !m.isLoading {
			m.textinput, tiCmd = m.textinput.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 3
		inputHeight := 3
		footerHeight := 2

		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, msg.Height-headerHeight-inputHeight-footerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = msg.Height - headerHeight - inputHeight - footerHeight
		}
		m.textinput.Width = msg.Width - 6

		if m.renderer != nil {
			m.renderer, _ = glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(msg.Width-8),
			)
		}
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()

	case spinner.TickMsg:
		if m.isLoading {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}

	case agentResultMsg:
		m.isLoading = false
		m.history = append(m.history, chatMessage{
			role:    "assistant",
			content: m.formatResult(agent.Result(msg)),
			time:    time.Now(),
		})
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()

	case errorMsg:
		m.isLoading = false
		m.err = msg
	}

	m.viewport, vpCmd = m.viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, spCmd)
}

func (m chatModel) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textinput.Value())
	if input == "" {
		return m, nil
	}

	if strings.HasPrefix(input, "/") {
		return m.handleCommand(input)
	}

	m.history = append(m.history, chatMessage{
		role:    "user",
		content: input,
		time:    time.Now(),
	})
	m.err = nil
	m.textinput.Reset()
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
	m.isLoading = true

	return m, tea.Batch(
		m.spinner.Tick,
		m.processInput(input),
	)
}

// processInput runs the request through the agent in the background.
func (m chatModel) processInput(input string) tea.Cmd {
	a, ctx, sessionID := m.app, m.ctx, m.sessionID
	return func() tea.Msg {
		logging.Session("chat request: %q", input)
		res := a.handleRequest(ctx, sessionID, input)
		return agentResultMsg(res)
	}
}

// formatResult renders an agent result as markdown for the transcript.
func (m chatModel) formatResult(res agent.Result) string {
	var sb strings.Builder

	if m.showCode && res.Code != "" {
		sb.WriteString("```go\n")
		sb.WriteString(strings.TrimSpace(res.Code))
		sb.WriteString("\n```\n\n")
	}

	if res.Success {
		output := strings.TrimSpace(res.Output)
		if output == "" {
			output = "_Done (no output)._"
		}
		sb.WriteString(output)
	} else {
		sb.WriteString("**Failed after ")
		sb.WriteString(fmt.Sprintf("%d attempt(s)", res.Attempts))
		sb.WriteString(":**\n\n```\n")
		sb.WriteString(strings.TrimSpace(res.Error))
		sb.WriteString("\n```")
	}

	if res.Attempts > 1 && res.Success {
		sb.WriteString(m.styles.muted.Render(fmt.Sprintf("\n\n(took %d attempts)", res.Attempts)))
	}
	return sb.String()
}

func (m chatModel) renderHistory() string {
	var sb strings.Builder

	for _, msg := range m.history {
		switch msg.role {
		case "user":
			sb.WriteString(m.styles.user.Render("You") + "\n")
			sb.WriteString(msg.content)
			sb.WriteString("\n\n")
		default:
			sb.WriteString(m.styles.bot.Render("tablepilot") + "\n")
			sb.WriteString(m.safeRenderMarkdown(msg.content))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// safeRenderMarkdown renders markdown with panic recovery.
func (m chatModel) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		rendered, err := m.renderer.Render(content)
		if err == nil {
			return rendered
		}
	}
	return content
}

func (m chatModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.renderHeader()

	chatView := m.viewport.View()
	if m.isLoading {
		chatView += "\n" + m.styles.spin.Render(m.spinner.View()) + " Working..."
	}
	if m.err != nil {
		chatView += "\n" + m.styles.errText.Render("Error: "+m.err.Error())
	}

	inputArea := m.styles.input.Render(m.textinput.View())
	footer := m.renderFooter()

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		chatView,
		inputArea,
		footer,
	)
}

func (m chatModel) renderHeader() string {
	title := m.styles.header.Render("tablepilot")
	target := m.styles.muted.Render(m.app.cfg.MCPURL)

	var status string
	if m.isLoading {
		status = m.styles.muted.Render("● Working")
	} else {
		status = m.styles.user.Render("● Ready")
	}

	return lipgloss.JoinHorizontal(lipgloss.Center, title, " ", status, "  ", target)
}

func (m chatModel) renderFooter() string {
	code := "off"
	if m.showCode {
		code = "on"
	}
	help := fmt.Sprintf("Enter: send • /help: commands • /code: show code (%s) • Ctrl+C: exit", code)
	return m.styles.muted.Render(help)
}
