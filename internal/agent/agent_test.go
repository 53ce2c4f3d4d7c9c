package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"tablepilot/internal/executor"
)

func TestMain(m *testing.M) {
	// opencensus (a transitive dependency of the Gemini client) starts a
	// background worker goroutine in its package init that cannot be stopped.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// scriptedLLM replays canned completions and records every prompt.
type scriptedLLM struct {
	responses []string
	err       error
	prompts   []string
	systems   []string
}

func (s *scriptedLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return s.CompleteWithSystem(ctx, "", prompt)
}

func (s *scriptedLLM) CompleteWithSystem(ctx context.Context, system, prompt string) (string, error) {
	s.systems = append(s.systems, system)
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	i := len(s.prompts) - 1
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

// scriptedRunner replays canned execution results and records snippets.
type scriptedRunner struct {
	results []executor.Result
	codes   []string
}

func (r *scriptedRunner) AllowedImports() []string { return []string{"fmt", "airtable"} }

func (r *scriptedRunner) Execute(ctx context.Context, code string) executor.Result {
	r.codes = append(r.codes, code)
	i := len(r.codes) - 1
	if i >= len(r.results) {
		i = len(r.results) - 1
	}
	return r.results[i]
}

const goodCode = `import "fmt"

func Run() error {
	fmt.Println("3 bases")
	return nil
}`

func TestRunSucceedsFirstAttempt(t *testing.T) {
	model := &scriptedLLM{responses: []string{goodCode}}
	runner := &scriptedRunner{results: []executor.Result{{Success: true, Stdout: "3 bases\n"}}}
	a := New(model, runner)

	res := a.Run(context.Background(), "how many bases do I have?")
	require.True(t, res.Success)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "3 bases\n", res.Output)
	assert.Equal(t, goodCode, res.Code)

	history := a.History()
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "assistant", history[1].Role)
	assert.Contains(t, history[1].Content, "3 bases")
}

func TestRunRetriesWithErrorFeedback(t *testing.T) {
	model := &scriptedLLM{responses: []string{"bad code", goodCode}}
	runner := &scriptedRunner{results: []executor.Result{
		{Success: false, Stderr: "syntax error: unexpected bad"},
		{Success: true, Stdout: "done\n"},
	}}
	a := New(model, runner)

	res := a.Run(context.Background(), "list my bases")
	require.True(t, res.Success)
	assert.Equal(t, 2, res.Attempts)

	require.Len(t, model.prompts, 2)
	assert.NotContains(t, model.prompts[0], "PREVIOUS ATTEMPT FAILED")
	assert.Contains(t, model.prompts[1], "PREVIOUS ATTEMPT FAILED WITH ERROR:")
	assert.Contains(t, model.prompts[1], "syntax error: unexpected bad")
}

func TestRunExhaustsRetries(t *testing.T) {
	model := &scriptedLLM{responses: []string{"always bad"}}
	runner := &scriptedRunner{results: []executor.Result{
		{Success: false, Stderr: "forbidden imports: os"},
	}}
	a := New(model, runner, WithMaxRetries(2))

	res := a.Run(context.Background(), "wipe my disk")
	assert.False(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, "forbidden imports: os", res.Error)
	assert.Len(t, runner.codes, 3)
}

func TestRunStripsMarkdownFences(t *testing.T) {
	fenced := "```go\n" + goodCode + "\n```"
	model := &scriptedLLM{responses: []string{fenced}}
	runner := &scriptedRunner{results: []executor.Result{{Success: true, Stdout: "ok"}}}
	a := New(model, runner)

	res := a.Run(context.Background(), "list bases")
	require.True(t, res.Success)
	require.Len(t, runner.codes, 1)
	assert.Equal(t, goodCode, runner.codes[0])
	assert.Equal(t, goodCode, res.Code)
}

func TestRunReportsGenerationFailure(t *testing.T) {
	model := &scriptedLLM{err: errors.New("api: overloaded")}
	a := New(model, &scriptedRunner{})

	res := a.Run(context.Background(), "list bases")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "code generation failed")
	assert.Contains(t, res.Error, "overloaded")
}

func TestHistoryWindowLimitsPrompt(t *testing.T) {
	model := &scriptedLLM{responses: []string{goodCode}}
	runner := &scriptedRunner{results: []executor.Result{{Success: true, Stdout: "ok"}}}
	a := New(model, runner, WithHistoryWindow(2))

	for i := 0; i < 4; i++ {
		a.Run(context.Background(), fmt.Sprintf("request number %d", i))
	}

	last := model.prompts[len(model.prompts)-1]
	assert.NotContains(t, last, "request number 0")
	assert.NotContains(t, last, "request number 1")
	assert.Contains(t, last, "request number 3")
}

func TestClearHistory(t *testing.T) {
	model := &scriptedLLM{responses: []string{goodCode}}
	runner := &scriptedRunner{results: []executor.Result{{Success: true, Stdout: "ok"}}}
	a := New(model, runner)

	a.Run(context.Background(), "first request")
	require.NotEmpty(t, a.History())

	a.ClearHistory()
	assert.Empty(t, a.History())

	a.Run(context.Background(), "second request")
	last := model.prompts[len(model.prompts)-1]
	assert.NotContains(t, last, "first request")
}

func TestSystemPromptListsAPI(t *testing.T) {
	model := &scriptedLLM{responses: []string{goodCode}}
	runner := &scriptedRunner{results: []executor.Result{{Success: true}}}
	a := New(model, runner)

	a.Run(context.Background(), "anything")
	require.NotEmpty(t, model.systems)
	system := model.systems[0]
	for _, fn := range []string{"ListBases", "SearchRecords", "UpdateRecords", "CreateComment"} {
		assert.Contains(t, system, fn)
	}
	assert.Contains(t, system, "func Run() error")
	assert.Contains(t, system, "max 10 per batch")
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"plain code", "plain code"},
		{"```go\ncode\n```", "code"},
		{"```\ncode\n```", "code"},
		{"```go\ncode", "code"},
		{"  ```go\ncode\n```  ", "code"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, stripFences(tc.in), "input %q", tc.in)
	}
}

func TestRetryPromptShape(t *testing.T) {
	p := retryPrompt("list bases", "boom")
	assert.True(t, strings.HasPrefix(p, "list bases"))
	assert.Contains(t, p, "PREVIOUS ATTEMPT FAILED WITH ERROR:\nboom")
}
