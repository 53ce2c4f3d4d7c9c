// Package main provides the tablepilot CLI entry point.
// This file contains /command handling for the chat interface.
package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const chatHelp = `## Available Commands

| Command | Description |
|---------|-------------|
| /help | Show this help message |
| /clear | Clear the conversation (model forgets context) |
| /code | Toggle showing generated code with results |
| /tools | List tools exposed by the MCP server |
| /sessions | List saved sessions |
| /new-session | Start a fresh session |
| /resume <id-prefix> | Resume a saved session |
| /quit, /exit, /q | Exit |

## Tips
- **Enter** to send a message
- **Ctrl+C** or **Esc** to exit
- Ask in plain language: "how many contacts are marked Active?"
- The agent writes and runs Go code against your bases; large tables are
  summarized in code, not pasted into the conversation
`

func (m chatModel) handleCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	cmd := parts[0]

	switch cmd {
	case "/quit", "/exit", "/q":
		return m, tea.Quit

	case "/clear":
		m.history = nil
		m.app.agent.ClearHistory()
		if err := m.app.store.ClearMessages(m.sessionID); err != nil {
			return m.systemReply(fmt.Sprintf("Failed to clear stored messages: %v", err))
		}
		return m.systemReply("Conversation cleared.")

	case "/help":
		return m.systemReply(chatHelp)

	case "/code":
		m.showCode = !m.showCode
		if m.showCode {
			return m.systemReply("Generated code will be shown with each result.")
		}
		return m.systemReply("Generated code hidden.")

	case "/tools":
		tools, err := m.app.mcp.ListTools(m.ctx)
		if err != nil {
			return m.systemReply(fmt.Sprintf("Failed to list tools: %v", err))
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "## %d tools at %s\n\n", len(tools), m.app.cfg.MCPURL)
		for _, tool := range tools {
			fmt.Fprintf(&sb, "- `%s` — %s\n", tool.Name, firstLine(tool.Description))
		}
		return m.systemReply(sb.String())

	case "/sessions":
		sessions, err := m.app.store.List()
		if err != nil || len(sessions) == 0 {
			return m.systemReply("No saved sessions found.")
		}
		var sb strings.Builder
		sb.WriteString("## Saved Sessions\n\n")
		for _, sess := range sessions {
			current := ""
			if sess.ID == m.sessionID {
				current = " *(current)*"
			}
			title := sess.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Fprintf(&sb, "- `%s` %s, %d messages%s\n", sess.ID[:8], title, sess.Messages, current)
		}
		sb.WriteString("\n*Use `/resume <id-prefix>` to continue a session*")
		return m.systemReply(sb.String())

	case "/new-session":
		sess, err := m.app.store.Create("")
		if err != nil {
			return m.systemReply(fmt.Sprintf("Failed to create session: %v", err))
		}
		m.sessionID = sess.ID
		m.app.agent.ClearHistory()
		return m.systemReply(fmt.Sprintf("Started new session `%s`. Previous history saved.", sess.ID[:8]))

	case "/resume":
		if len(parts) < 2 {
			return m.systemReply("Usage: `/resume <id-prefix>`")
		}
		sessions, err := m.app.store.List()
		if err != nil {
			return m.systemReply(fmt.Sprintf("Failed to list sessions: %v", err))
		}
		prefix := parts[1]
		for _, sess := range sessions {
			if strings.HasPrefix(sess.ID, prefix) {
				if err := m.app.resumeSession(sess.ID); err != nil {
					return m.systemReply(fmt.Sprintf("Failed to resume: %v", err))
				}
				m.sessionID = sess.ID
				return m.systemReply(fmt.Sprintf("Resumed session `%s` (%d messages).", sess.ID[:8], sess.Messages))
			}
		}
		return m.systemReply(fmt.Sprintf("No session matching `%s`.", prefix))

	default:
		return m.systemReply(fmt.Sprintf("Unknown command `%s`. Type `/help` for the list.", cmd))
	}
}

// systemReply appends an assistant-styled notice and refreshes the view.
func (m chatModel) systemReply(content string) (tea.Model, tea.Cmd) {
	m.history = append(m.history, chatMessage{role: "assistant", content: content, time: time.Now()})
	m.textinput.Reset()
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
	return m, nil
}
