package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/seantiz/vidrestore/internal/model"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Log formats.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

const (
	defaultListenAddr  = ":8000"
	defaultDBPath      = ":memory:"
	defaultResultsDir  = "results"
	defaultEngineDir   = "/app"
	defaultMaxUploadMB = 2048

	envListenAddr   = "VIDRESTORE_LISTEN_ADDR"
	envLogLevel     = "VIDRESTORE_LOG_LEVEL"
	envLogFormat    = "VIDRESTORE_LOG_FORMAT"
	envStore        = "VIDRESTORE_STORE"
	envDBPath       = "VIDRESTORE_DB_PATH"
	envResultsDir   = "VIDRESTORE_RESULTS_DIR"
	envWorkDir      = "VIDRESTORE_WORK_DIR"
	envModelSize    = "VIDRESTORE_MODEL_SIZE"
	envBackendsFile = "VIDRESTORE_BACKENDS_FILE"
	envEngineDir    = "VIDRESTORE_ENGINE_DIR"
	envMaxUploadMB  = "VIDRESTORE_MAX_UPLOAD_MB"
)

// envFiles are loaded, when present, before the environment is read. Values
// already set in the environment win.
var envFiles = []string{".env", ".env.local"}

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	LogLevel   slog.Level
	LogFormat  string

	Store  string
	DBPath string

	// ResultsDir holds durable artifacts; WorkDir holds job workspaces. An
	// empty WorkDir uses the OS temporary directory.
	ResultsDir string
	WorkDir    string

	// ModelSize is the default engine variant.
	ModelSize string
	// BackendsFile is an optional YAML engine catalog. Without it the
	// default catalog runs the inference scripts under EngineDir.
	BackendsFile string
	EngineDir    string

	MaxUploadBytes int64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	loadEnvFiles(envFiles...)

	cfg := Config{
		ListenAddr:     defaultListenAddr,
		LogLevel:       slog.LevelInfo,
		LogFormat:      LogFormatJSON,
		Store:          StoreMemory,
		DBPath:         defaultDBPath,
		ResultsDir:     defaultResultsDir,
		ModelSize:      model.Variant7B,
		EngineDir:      defaultEngineDir,
		MaxUploadBytes: defaultMaxUploadMB << 20,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envLogFormat); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v := os.Getenv(envStore); v != "" {
		cfg.Store = strings.ToLower(v)
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envResultsDir); v != "" {
		cfg.ResultsDir = v
	}
	cfg.WorkDir = os.Getenv(envWorkDir)
	if v := os.Getenv(envModelSize); v != "" {
		cfg.ModelSize = strings.ToLower(v)
	}
	cfg.BackendsFile = os.Getenv(envBackendsFile)
	if v := os.Getenv(envEngineDir); v != "" {
		cfg.EngineDir = v
	}
	if v := os.Getenv(envMaxUploadMB); v != "" {
		if mb, err := strconv.ParseInt(v, 10, 64); err == nil && mb > 0 {
			cfg.MaxUploadBytes = mb << 20
		}
	}

	return cfg
}

// Validate reports settings that cannot be served.
func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreMemory, StoreSQLite:
	default:
		errs = append(errs, fmt.Errorf("%s: unknown store %q", envStore, c.Store))
	}
	switch c.LogFormat {
	case LogFormatJSON, LogFormatConsole:
	default:
		errs = append(errs, fmt.Errorf("%s: unknown log format %q", envLogFormat, c.LogFormat))
	}
	if !model.IsSupportedVariant(c.ModelSize) {
		errs = append(errs, fmt.Errorf("%s: unsupported model size %q", envModelSize, c.ModelSize))
	}
	if c.ResultsDir == "" {
		errs = append(errs, fmt.Errorf("%s is required", envResultsDir))
	}
	return errors.Join(errs...)
}

func loadEnvFiles(paths ...string) {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "config: ignoring %s: %v\n", p, err)
		}
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured logger writing to w at the configured level.
// The console format is colored and meant for local runs.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	if format == LogFormatConsole {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
