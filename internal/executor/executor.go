// Package executor runs LLM-generated Go snippets in a sandboxed yaegi
// interpreter. Snippets are validated before execution: they must parse,
// import only whitelisted packages, and define func Run() error. The
// interpreter is created fresh per execution with the airtable API bound
// to the live MCP client, so generated code has no access to the host's
// filesystem, network, or process state.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"tablepilot/internal/airtable"
	"tablepilot/internal/logging"
)

// entryFunc is the function generated snippets must define.
const entryFunc = "Run"

// Result holds the outcome of one snippet execution.
type Result struct {
	Success  bool
	Stdout   string
	Stderr   string
	Error    string
	Duration time.Duration
}

// Executor validates and runs generated snippets.
type Executor struct {
	client  *airtable.Client
	timeout time.Duration
	allowed map[string]bool
}

// New creates an executor bound to an airtable client.
func New(client *airtable.Client, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Executor{
		client:  client,
		timeout: timeout,
		allowed: map[string]bool{
			"fmt":           true,
			"strings":       true,
			"strconv":       true,
			"sort":          true,
			"time":          true,
			"math":          true,
			"regexp":        true,
			"errors":        true,
			"bytes":         true,
			"unicode":       true,
			"unicode/utf8":  true,
			"encoding/json": true,
			"encoding/csv":  true,

			// The injected API surface.
			"airtable": true,

			// Blocked by omission: os, os/exec, net, net/http, syscall,
			// unsafe, io, path/filepath, reflect, runtime.
		},
	}
}

// AllowedImports returns the import whitelist, for prompt construction.
func (e *Executor) AllowedImports() []string {
	pkgs := make([]string, 0, len(e.allowed))
	for pkg := range e.allowed {
		pkgs = append(pkgs, pkg)
	}
	return pkgs
}

// Validate checks a snippet without executing it. Returns nil when the
// snippet parses, imports only whitelisted packages, and defines Run.
func (e *Executor) Validate(code string) error {
	src := wrapCode(code)

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "snippet.go", src, 0)
	if err != nil {
		return fmt.Errorf("syntax error: %w", err)
	}

	var forbidden []string
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return fmt.Errorf("invalid import %s", imp.Path.Value)
		}
		if !e.allowed[path] {
			forbidden = append(forbidden, path)
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports: %s", strings.Join(forbidden, ", "))
	}

	hasRun := false
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Name.Name == entryFunc && fn.Recv == nil {
			hasRun = true
			break
		}
	}
	if !hasRun {
		return fmt.Errorf("snippet must define func %s() error", entryFunc)
	}
	return nil
}

// Execute validates and runs a snippet, capturing its output. The context
// bounds both the Airtable calls made by the snippet and the overall run;
// the executor's timeout applies when the context has no deadline.
func (e *Executor) Execute(ctx context.Context, code string) Result {
	start := time.Now()

	if err := e.Validate(code); err != nil {
		logging.ExecutorDebug("validation rejected snippet: %v", err)
		return Result{
			Success:  false,
			Stderr:   err.Error(),
			Error:    err.Error(),
			Duration: time.Since(start),
		}
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var stdout, stderr lockedBuffer
	i := interp.New(interp.Options{
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err := i.Use(stdlib.Symbols); err != nil {
		return failure(start, fmt.Errorf("failed to load stdlib: %w", err))
	}
	if err := i.Use(airtableSymbols(ctx, e.client)); err != nil {
		return failure(start, fmt.Errorf("failed to load airtable API: %w", err))
	}

	if _, err := i.Eval(wrapCode(code)); err != nil {
		logging.ExecutorDebug("evaluation failed: %v", err)
		return failure(start, fmt.Errorf("code evaluation failed: %w", err))
	}

	v, err := i.Eval("main." + entryFunc)
	if err != nil {
		return failure(start, fmt.Errorf("%s function not found: %w", entryFunc, err))
	}
	run, ok := v.Interface().(func() error)
	if !ok {
		return failure(start, fmt.Errorf("%s has wrong signature (want func() error)", entryFunc))
	}

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("panic in generated code: %v", r)
			}
		}()
		errCh <- run()
	}()

	select {
	case err := <-errCh:
		result := Result{
			Success:  err == nil,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: time.Since(start),
		}
		if err != nil {
			result.Error = err.Error()
			if result.Stderr == "" {
				result.Stderr = err.Error()
			}
		}
		logging.Executor("snippet finished success=%v in %v", result.Success, result.Duration)
		return result
	case <-ctx.Done():
		logging.Executor("snippet timed out after %v", time.Since(start))
		return Result{
			Success:  false,
			Stdout:   stdout.String(),
			Stderr:   fmt.Sprintf("execution timeout: %v", ctx.Err()),
			Error:    fmt.Sprintf("execution timeout: %v", ctx.Err()),
			Duration: time.Since(start),
		}
	}
}

func failure(start time.Time, err error) Result {
	return Result{
		Success:  false,
		Stderr:   err.Error(),
		Error:    err.Error(),
		Duration: time.Since(start),
	}
}

// wrapCode prepends the package clause when the snippet omits it.
func wrapCode(code string) string {
	if strings.Contains(code, "package main") {
		return code
	}
	return "package main\n\n" + code
}

// lockedBuffer is a bytes.Buffer safe for the writer goroutine and the
// reader racing on timeout.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
