package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("AIRTABLE_MCP_URL", "")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ProviderAnthropic, cfg.Provider)
	assert.Equal(t, "http://localhost:8000/mcp", cfg.MCPURL)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 5, cfg.HistoryWindow)
	assert.Equal(t, 60*time.Second, cfg.ExecutionTimeout)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".tablepilot"), 0o755))
	yaml := []byte("mcp_url: http://file:9000/mcp\nmax_retries: 4\ndebug_mode: true\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tablepilot", "config.yaml"), yaml, 0o644))

	t.Setenv("AIRTABLE_MCP_URL", "http://env:8000/mcp")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load(dir)
	require.NoError(t, err)

	// env wins over file, file wins over defaults
	assert.Equal(t, "http://env:8000/mcp", cfg.MCPURL)
	assert.Equal(t, 4, cfg.MaxRetries)
	assert.True(t, cfg.DebugMode)
	assert.Equal(t, "sk-test", cfg.AnthropicAPIKey)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.AnthropicAPIKey = "sk-test"
	assert.NoError(t, cfg.Validate())

	cfg.AnthropicAPIKey = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")

	cfg = Default()
	cfg.Provider = ProviderGemini
	cfg.GeminiAPIKey = "g-test"
	assert.NoError(t, cfg.Validate())

	cfg.Provider = "openai"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.AnthropicAPIKey = "sk-test"
	cfg.MaxRetries = -1
	assert.Error(t, cfg.Validate())
}

func TestAPIKeyPerProvider(t *testing.T) {
	cfg := Default()
	cfg.AnthropicAPIKey = "a"
	cfg.GeminiAPIKey = "g"

	assert.Equal(t, "a", cfg.APIKey())
	cfg.Provider = ProviderGemini
	assert.Equal(t, "g", cfg.APIKey())
}
