// Package agent orchestrates the generate-execute-retry loop: it turns a
// natural-language request into a Go snippet via the LLM, runs it in the
// sandbox, and feeds execution errors back to the model for another
// attempt.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tablepilot/internal/executor"
	"tablepilot/internal/llm"
	"tablepilot/internal/logging"
)

// DefaultMaxRetries is how many times a failed snippet is regenerated
// before giving up.
const DefaultMaxRetries = 2

// DefaultHistoryWindow is how many prior turns are replayed into the
// generation prompt.
const DefaultHistoryWindow = 5

// Runner executes a generated snippet. *executor.Executor satisfies this.
type Runner interface {
	Execute(ctx context.Context, code string) executor.Result
	AllowedImports() []string
}

// Result is the outcome of one agent run, including failed ones.
type Result struct {
	Success  bool
	Output   string
	Code     string
	Error    string
	Attempts int
}

// Agent generates and executes code for Airtable requests.
type Agent struct {
	llm           llm.Client
	runner        Runner
	maxRetries    int
	historyWindow int
	system        string

	mu      sync.Mutex
	history []llm.Message
}

// Option configures an Agent.
type Option func(*Agent)

// WithMaxRetries overrides the retry budget.
func WithMaxRetries(n int) Option {
	return func(a *Agent) {
		if n >= 0 {
			a.maxRetries = n
		}
	}
}

// WithHistoryWindow overrides how many prior turns are replayed.
func WithHistoryWindow(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.historyWindow = n
		}
	}
}

// WithHistory seeds the conversation, e.g. when resuming a session.
func WithHistory(history []llm.Message) Option {
	return func(a *Agent) {
		a.history = append(a.history, history...)
	}
}

// New creates an agent over an LLM client and a snippet runner.
func New(client llm.Client, runner Runner, opts ...Option) *Agent {
	a := &Agent{
		llm:           client,
		runner:        runner,
		maxRetries:    DefaultMaxRetries,
		historyWindow: DefaultHistoryWindow,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.system = systemPrompt(runner.AllowedImports())
	return a
}

// Run handles one user request. It generates code, executes it, and on
// failure regenerates with the error fed back, up to the retry budget.
// The returned Result always carries the last generated snippet and the
// attempt count.
func (a *Agent) Run(ctx context.Context, input string) Result {
	a.appendHistory("user", input)
	logging.Agent("run: %q", truncate(input, 120))

	var lastError string
	var lastCode string

	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		code, err := a.GenerateCode(ctx, input, lastError)
		if err != nil {
			return Result{
				Success:  false,
				Code:     lastCode,
				Error:    fmt.Sprintf("code generation failed: %v", err),
				Attempts: attempt + 1,
			}
		}
		lastCode = code
		logging.AgentDebug("attempt %d generated %d bytes of code", attempt+1, len(code))

		res := a.runner.Execute(ctx, code)
		if res.Success {
			a.appendHistory("assistant", "Generated and executed code successfully. Output:\n"+res.Stdout)
			logging.Agent("run succeeded on attempt %d", attempt+1)
			return Result{
				Success:  true,
				Output:   res.Stdout,
				Code:     code,
				Attempts: attempt + 1,
			}
		}

		lastError = res.Stderr
		if lastError == "" {
			lastError = res.Error
		}
		logging.Agent("attempt %d failed: %s", attempt+1, truncate(lastError, 200))

		if ctx.Err() != nil {
			return Result{
				Success:  false,
				Code:     code,
				Error:    lastError,
				Attempts: attempt + 1,
			}
		}
	}

	return Result{
		Success:  false,
		Code:     lastCode,
		Error:    lastError,
		Attempts: a.maxRetries + 1,
	}
}

// GenerateCode asks the LLM for a snippet. When errorContext is non-empty
// the request is framed as a fix for the previous failure.
func (a *Agent) GenerateCode(ctx context.Context, input, errorContext string) (string, error) {
	current := input
	if errorContext != "" {
		current = retryPrompt(input, errorContext)
	}

	prompt := llm.RenderHistory(a.recentHistory(), current)
	raw, err := a.llm.CompleteWithSystem(ctx, a.system, prompt)
	if err != nil {
		return "", err
	}

	code := stripFences(raw)
	if code == "" {
		return "", fmt.Errorf("model returned no code")
	}
	return code, nil
}

// History returns a copy of the conversation so far.
func (a *Agent) History() []llm.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]llm.Message, len(a.history))
	copy(out, a.history)
	return out
}

// ReplaceHistory swaps in a stored conversation, e.g. when resuming a
// persisted session.
func (a *Agent) ReplaceHistory(history []llm.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = make([]llm.Message, len(history))
	copy(a.history, history)
}

// ClearHistory starts a fresh conversation.
func (a *Agent) ClearHistory() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
	logging.Agent("history cleared")
}

func (a *Agent) appendHistory(role, content string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, llm.Message{Role: role, Content: content})
}

// recentHistory returns the last historyWindow turns, excluding the
// in-flight user message (it is rendered as the current prompt).
func (a *Agent) recentHistory() []llm.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	h := a.history
	if n := len(h); n > 0 && h[n-1].Role == "user" {
		h = h[:n-1]
	}
	if len(h) > a.historyWindow {
		h = h[len(h)-a.historyWindow:]
	}
	out := make([]llm.Message, len(h))
	copy(out, h)
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}
