package main

import (
	"fmt"
	"log"
	"os"

	"github.com/seantiz/vidrestore/internal/api"
	"github.com/seantiz/vidrestore/internal/artifact"
	"github.com/seantiz/vidrestore/internal/backend"
	"github.com/seantiz/vidrestore/internal/config"
	"github.com/seantiz/vidrestore/internal/orchestrator"
	"github.com/seantiz/vidrestore/internal/pipeline"
	"github.com/seantiz/vidrestore/internal/serverless"
	"github.com/seantiz/vidrestore/internal/store"
	"github.com/seantiz/vidrestore/internal/workspace"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("vidrestore: %v", err)
	}
}

// run serves until shutdown. Errors are returned rather than fatal so that
// deferred cleanup, such as closing the job store, always happens.
func run() error {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Info("vidrestore: starting",
		"listen_addr", cfg.ListenAddr,
		"store", cfg.Store,
		"results_dir", cfg.ResultsDir,
		"model_size", cfg.ModelSize,
	)

	var jobs store.Store
	switch cfg.Store {
	case config.StoreSQLite:
		db, err := store.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		jobs = db
	default:
		jobs = store.NewMemoryStore()
	}
	defer jobs.Close()

	artifacts, err := artifact.NewFileStore(cfg.ResultsDir)
	if err != nil {
		return fmt.Errorf("open results directory: %w", err)
	}

	catalog := backend.DefaultCatalog(cfg.EngineDir)
	if cfg.BackendsFile != "" {
		catalog, err = backend.LoadCatalog(cfg.BackendsFile)
		if err != nil {
			return fmt.Errorf("load backends: %w", err)
		}
	}
	reg := backend.NewRegistry()
	if err := catalog.Register(reg, logger); err != nil {
		// The service still answers health checks as unhealthy.
		logger.Error("engine load failed", "error", err)
	}

	p := pipeline.New(reg, pipeline.NewGate(), workspace.NewManager(cfg.WorkDir), logger)
	orch := orchestrator.New(jobs, artifacts, p, reg, logger)
	runsync := serverless.NewHandler(p, cfg.ModelSize, logger)

	srv := api.NewServer(cfg.ListenAddr, orch, runsync, reg, api.Options{
		DefaultVariant: cfg.ModelSize,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, logger)

	if err := srv.Run(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
