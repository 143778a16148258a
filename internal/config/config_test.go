package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/seantiz/vidrestore/internal/model"
)

var allEnv = []string{
	envListenAddr, envLogLevel, envLogFormat, envStore, envDBPath, envResultsDir,
	envWorkDir, envModelSize, envBackendsFile, envEngineDir, envMaxUploadMB,
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allEnv {
		t.Setenv(k, "")
	}
	// Keep stray .env files in the package directory out of the test.
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.ListenAddr != defaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, defaultListenAddr)
	}
	if cfg.DBPath != defaultDBPath {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, defaultDBPath)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
	if cfg.LogFormat != LogFormatJSON {
		t.Errorf("LogFormat = %q, want %q", cfg.LogFormat, LogFormatJSON)
	}
	if cfg.Store != StoreMemory {
		t.Errorf("Store = %q, want %q", cfg.Store, StoreMemory)
	}
	if cfg.ModelSize != model.Variant7B {
		t.Errorf("ModelSize = %q, want %q", cfg.ModelSize, model.Variant7B)
	}
	if cfg.ResultsDir != defaultResultsDir {
		t.Errorf("ResultsDir = %q, want %q", cfg.ResultsDir, defaultResultsDir)
	}
	if cfg.MaxUploadBytes != 2048<<20 {
		t.Errorf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes, 2048<<20)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(envListenAddr, ":9090")
	t.Setenv(envDBPath, "/tmp/test.db")
	t.Setenv(envLogLevel, "debug")
	t.Setenv(envLogFormat, "Console")
	t.Setenv(envStore, "sqlite")
	t.Setenv(envModelSize, "3B")
	t.Setenv(envWorkDir, "/scratch")
	t.Setenv(envBackendsFile, "/etc/vidrestore/backends.yaml")
	t.Setenv(envMaxUploadMB, "16")

	cfg := Load()

	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9090")
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/test.db")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	if cfg.LogFormat != LogFormatConsole {
		t.Errorf("LogFormat = %q, want %q", cfg.LogFormat, LogFormatConsole)
	}
	if cfg.Store != StoreSQLite {
		t.Errorf("Store = %q, want %q", cfg.Store, StoreSQLite)
	}
	if cfg.ModelSize != model.Variant3B {
		t.Errorf("ModelSize = %q, want %q", cfg.ModelSize, model.Variant3B)
	}
	if cfg.WorkDir != "/scratch" {
		t.Errorf("WorkDir = %q, want %q", cfg.WorkDir, "/scratch")
	}
	if cfg.BackendsFile != "/etc/vidrestore/backends.yaml" {
		t.Errorf("BackendsFile = %q", cfg.BackendsFile)
	}
	if cfg.MaxUploadBytes != 16<<20 {
		t.Errorf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes, 16<<20)
	}
}

func TestLoadIgnoresBadUploadLimit(t *testing.T) {
	clearEnv(t)
	t.Setenv(envMaxUploadMB, "lots")

	if got := Load().MaxUploadBytes; got != defaultMaxUploadMB<<20 {
		t.Errorf("MaxUploadBytes = %d, want default", got)
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv(envListenAddr)
	os.Unsetenv(envResultsDir)
	if err := os.WriteFile(filepath.Join(".", ".env"), []byte("VIDRESTORE_LISTEN_ADDR=:7000\nVIDRESTORE_RESULTS_DIR=/data/results\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg := Load()

	if cfg.ListenAddr != ":7000" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":7000")
	}
	if cfg.ResultsDir != "/data/results" {
		t.Errorf("ResultsDir = %q, want %q", cfg.ResultsDir, "/data/results")
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	cfg := Load()
	cfg.Store = "postgres"
	cfg.LogFormat = "xml"
	cfg.ModelSize = "13b"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, want := range []string{"unknown store", "unknown log format", "unsupported model size"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() = %q, missing %q", err, want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		got := parseLogLevel(tt.input)
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLoggerOutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo, LogFormatJSON)
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}

	logger.Info("test message", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("logger output is not valid JSON: %v\noutput: %s", err, buf.String())
	}

	for _, key := range []string{"time", "level", "msg"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("JSON output missing expected key %q", key)
		}
	}
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want %q", entry["key"], "value")
	}
}

func TestNewLoggerConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn, LogFormatConsole)

	logger.Info("hidden")
	logger.Warn("shown", "job_id", "abc")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "abc") {
		t.Errorf("console output = %q, want message and attribute", out)
	}
	if json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Error("console output should not be JSON")
	}
}
