package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resetState() {
	mu.Lock()
	defer mu.Unlock()
	loggers = make(map[Category]*Logger)
	logsDir = ""
	debugMode = false
	logLevel = LevelInfo
}

func TestInitializeDisabledIsNoOp(t *testing.T) {
	defer resetState()

	dir := t.TempDir()
	if err := Initialize(dir, false, "info"); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	Get(CategoryBoot).Info("should go nowhere")

	if _, err := os.Stat(filepath.Join(dir, ".tablepilot", "logs")); !os.IsNotExist(err) {
		t.Fatalf("logs directory should not exist in production mode")
	}
}

func TestInitializeDebugWritesCategoryFile(t *testing.T) {
	defer resetState()
	defer CloseAll()

	dir := t.TempDir()
	if err := Initialize(dir, true, "debug"); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	Get(CategoryExecutor).Info("executed snippet in %dms", 42)
	Get(CategoryExecutor).Debug("validation passed")
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(dir, ".tablepilot", "logs"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 log file, got %d", len(entries))
	}
	if !strings.Contains(entries[0].Name(), "executor") {
		t.Fatalf("unexpected log file name: %s", entries[0].Name())
	}

	data, err := os.ReadFile(filepath.Join(dir, ".tablepilot", "logs", entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "executed snippet in 42ms") {
		t.Fatalf("missing info line: %s", content)
	}
	if !strings.Contains(content, "[DEBUG] validation passed") {
		t.Fatalf("missing debug line: %s", content)
	}
}

func TestLevelFiltering(t *testing.T) {
	defer resetState()
	defer CloseAll()

	dir := t.TempDir()
	if err := Initialize(dir, true, "warn"); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	l := Get(CategoryAPI)
	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("visible")
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(dir, ".tablepilot", "logs"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, ".tablepilot", "logs", entries[0].Name()))
	content := string(data)
	if strings.Contains(content, "hidden") {
		t.Fatalf("filtered levels leaked: %s", content)
	}
	if !strings.Contains(content, "[WARN] visible") {
		t.Fatalf("warn line missing: %s", content)
	}
}
