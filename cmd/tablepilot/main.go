// Package main provides the tablepilot CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tablepilot/internal/config"
	"tablepilot/internal/logging"
)

const version = "0.3.0"

var (
	// Global flags
	verbose     bool
	workspace   string
	mcpURL      string
	mcpProtocol string
	provider    string
	model       string
	maxRetries  int
	timeout     time.Duration

	// Logger for non-interactive commands
	logger *zap.Logger

	// Config resolved in PersistentPreRunE
	cfg config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "tablepilot",
	Short: "tablepilot - conversational Airtable automation",
	Long: `tablepilot turns natural-language requests into sandboxed Go snippets
that run against your Airtable bases through an MCP server.

Instead of pulling thousands of records into the model's context, the
agent writes code that fetches and processes the data locally and prints
only the summary.

Run without arguments to start the interactive chat interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real environment wins.
		_ = godotenv.Load()

		if workspace == "" {
			workspace, _ = os.Getwd()
		}

		var err error
		cfg, err = config.Load(workspace)
		if err != nil {
			return err
		}
		applyFlags(cmd)

		if err := logging.Initialize(workspace, cfg.DebugMode || verbose, cfg.LogLevel); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		logging.Boot("tablepilot %s starting (provider=%s mcp=%s)", version, cfg.Provider, cfg.MCPURL)

		// The chat TUI owns the terminal; zap is for the plain commands.
		if cmd.Name() == cmd.Root().Name() {
			return nil
		}
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractiveChat()
	},
}

// applyFlags overlays explicitly-set CLI flags onto the loaded config.
func applyFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("mcp-url") {
		cfg.MCPURL = mcpURL
	}
	if cmd.Flags().Changed("mcp-protocol") {
		cfg.MCPProtocol = mcpProtocol
	}
	if cmd.Flags().Changed("provider") {
		cfg.Provider = config.Provider(provider)
	}
	if cmd.Flags().Changed("model") {
		cfg.Model = model
	}
	if cmd.Flags().Changed("max-retries") {
		cfg.MaxRetries = maxRetries
	}
	if cmd.Flags().Changed("timeout") {
		cfg.ExecutionTimeout = timeout
	}
	if verbose {
		cfg.DebugMode = true
	}
}

// runCmd executes a single request without the TUI
var runCmd = &cobra.Command{
	Use:   "run [request]",
	Short: "Execute a single request and print the result",
	Long: `Processes one natural-language request through the full pipeline:
generate Go code, execute it in the sandbox against the MCP server, and
print the output. Failed snippets are regenerated with the error fed
back, up to the retry budget.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOnce,
}

// toolsCmd lists the tools exposed by the MCP server
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List tools exposed by the Airtable MCP server",
	RunE:  listTools,
}

// sessionsCmd lists stored conversations
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List saved chat sessions",
	RunE:  listSessions,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tablepilot version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tablepilot %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&mcpURL, "mcp-url", "", "Airtable MCP server URL (or set AIRTABLE_MCP_URL)")
	rootCmd.PersistentFlags().StringVar(&mcpProtocol, "mcp-protocol", "http", "MCP transport: http or sse")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "LLM provider: anthropic or gemini")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "Model name override")
	rootCmd.PersistentFlags().IntVar(&maxRetries, "max-retries", 2, "Retry budget for failed snippets")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 60*time.Second, "Snippet execution timeout")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runOnce handles `tablepilot run "request"`.
func runOnce(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	request := strings.Join(args, " ")
	logger.Info("processing request", zap.String("input", request))

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.store.Create(truncateTitle(request))
	if err != nil {
		return err
	}

	res := a.handleRequest(ctx, sess.ID, request)
	if verbose && res.Code != "" {
		fmt.Fprintln(os.Stderr, "--- generated code ---")
		fmt.Fprintln(os.Stderr, res.Code)
		fmt.Fprintln(os.Stderr, "----------------------")
	}
	if !res.Success {
		return fmt.Errorf("request failed after %d attempt(s): %s", res.Attempts, res.Error)
	}

	logger.Info("request succeeded", zap.Int("attempts", res.Attempts))
	fmt.Print(res.Output)
	if !strings.HasSuffix(res.Output, "\n") {
		fmt.Println()
	}
	return nil
}

// listTools handles `tablepilot tools`.
func listTools(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.MCPTimeout)
	defer cancel()

	client := newMCPClient(cfg)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cfg.MCPURL, err)
	}
	defer client.Close()

	tools, err := client.ListTools(ctx)
	if err != nil {
		return err
	}
	logger.Info("listed tools", zap.Int("count", len(tools)))

	fmt.Printf("%d tools at %s:\n\n", len(tools), cfg.MCPURL)
	for _, tool := range tools {
		fmt.Printf("  %-20s %s\n", tool.Name, firstLine(tool.Description))
	}
	return nil
}

// listSessions handles `tablepilot sessions`.
func listSessions(cmd *cobra.Command, args []string) error {
	store, err := newSessionStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.List()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No saved sessions.")
		return nil
	}
	for _, sess := range sessions {
		title := sess.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%s  %s  %d messages  %s\n",
			sess.ID[:8], sess.UpdatedAt.Local().Format("2006-01-02 15:04"), sess.Messages, title)
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncateTitle(s string) string {
	if len(s) > 64 {
		return s[:64]
	}
	return s
}
