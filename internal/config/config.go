// Package config holds tablepilot configuration. Values are resolved in
// order: built-in defaults, then <workspace>/.tablepilot/config.yaml, then
// environment variables. CLI flags are applied last by the caller.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider identifies an LLM backend.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// Config is the resolved tablepilot configuration.
type Config struct {
	// LLM settings.
	Provider        Provider `yaml:"provider"`
	Model           string   `yaml:"model"`
	AnthropicAPIKey string   `yaml:"-"` // env only, never written to disk
	GeminiAPIKey    string   `yaml:"-"`

	// MCP server settings.
	MCPURL      string        `yaml:"mcp_url"`
	MCPProtocol string        `yaml:"mcp_protocol"` // "http" or "sse"
	MCPTimeout  time.Duration `yaml:"mcp_timeout"`

	// Agent settings.
	MaxRetries       int           `yaml:"max_retries"`
	HistoryWindow    int           `yaml:"history_window"`
	ExecutionTimeout time.Duration `yaml:"execution_timeout"`

	// Workspace and logging.
	Workspace string `yaml:"-"`
	DebugMode bool   `yaml:"debug_mode"`
	LogLevel  string `yaml:"log_level"`
}

// Default returns the built-in defaults. The model default tracks the
// original agent's choice for the anthropic provider.
func Default() Config {
	return Config{
		Provider:         ProviderAnthropic,
		Model:            "claude-sonnet-4-20250514",
		MCPURL:           "http://localhost:8000/mcp",
		MCPProtocol:      "http",
		MCPTimeout:       30 * time.Second,
		MaxRetries:       2,
		HistoryWindow:    5,
		ExecutionTimeout: 60 * time.Second,
		LogLevel:         "info",
	}
}

// Load resolves the configuration for a workspace.
func Load(workspace string) (Config, error) {
	cfg := Default()
	cfg.Workspace = workspace

	if workspace != "" {
		path := filepath.Join(workspace, ".tablepilot", "config.yaml")
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// loadFile merges a YAML config file into cfg. A missing file is not an
// error.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides config values from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.AnthropicAPIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.GeminiAPIKey = v
	}
	if v := os.Getenv("AIRTABLE_MCP_URL"); v != "" {
		c.MCPURL = v
	}
	if v := os.Getenv("AIRTABLE_MCP_PROTOCOL"); v != "" {
		c.MCPProtocol = v
	}
	if v := os.Getenv("TABLEPILOT_PROVIDER"); v != "" {
		c.Provider = Provider(v)
	}
	if v := os.Getenv("TABLEPILOT_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("TABLEPILOT_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.DebugMode = b
		}
	}
}

// APIKey returns the credential for the configured provider.
func (c Config) APIKey() string {
	switch c.Provider {
	case ProviderGemini:
		return c.GeminiAPIKey
	default:
		return c.AnthropicAPIKey
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderAnthropic, ProviderGemini:
	default:
		return fmt.Errorf("unknown provider: %q", c.Provider)
	}
	if c.APIKey() == "" {
		env := "ANTHROPIC_API_KEY"
		if c.Provider == ProviderGemini {
			env = "GEMINI_API_KEY"
		}
		return fmt.Errorf("%s environment variable not set", env)
	}
	if c.MCPURL == "" {
		return fmt.Errorf("MCP server URL not configured")
	}
	switch c.MCPProtocol {
	case "", "http", "sse":
	default:
		return fmt.Errorf("mcp_protocol must be http or sse, got %q", c.MCPProtocol)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.ExecutionTimeout <= 0 {
		return fmt.Errorf("execution_timeout must be positive")
	}
	return nil
}

// Save writes the file-backed portion of the config to the workspace.
func (c Config) Save() error {
	if c.Workspace == "" {
		return fmt.Errorf("workspace path required")
	}
	dir := filepath.Join(c.Workspace, ".tablepilot")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0o644)
}
