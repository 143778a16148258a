// testserver starts a vidrestore API server with passthrough engines for
// end-to-end testing.
// Usage: go run ./cmd/testserver
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/seantiz/vidrestore/internal/api"
	"github.com/seantiz/vidrestore/internal/artifact"
	"github.com/seantiz/vidrestore/internal/backend"
	"github.com/seantiz/vidrestore/internal/config"
	"github.com/seantiz/vidrestore/internal/model"
	"github.com/seantiz/vidrestore/internal/orchestrator"
	"github.com/seantiz/vidrestore/internal/pipeline"
	"github.com/seantiz/vidrestore/internal/serverless"
	"github.com/seantiz/vidrestore/internal/store"
	"github.com/seantiz/vidrestore/internal/workspace"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("testserver: %v", err)
	}
}

func run() error {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	delay := 300 * time.Millisecond
	if v := os.Getenv("VIDRESTORE_TEST_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid VIDRESTORE_TEST_DELAY: %w", err)
		}
		delay = d
	}

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	artifacts, err := artifact.NewFileStore(cfg.ResultsDir)
	if err != nil {
		return fmt.Errorf("open results directory: %w", err)
	}

	var catalog backend.Catalog
	for _, variant := range model.SupportedVariants {
		catalog.Backends = append(catalog.Backends, backend.Spec{
			Variant: variant,
			Kind:    backend.KindPassthrough,
			Delay:   delay,
		})
	}
	reg := backend.NewRegistry()
	if err := catalog.Register(reg, logger); err != nil {
		return fmt.Errorf("register engines: %w", err)
	}

	p := pipeline.New(reg, pipeline.NewGate(), workspace.NewManager(cfg.WorkDir), logger)
	orch := orchestrator.New(db, artifacts, p, reg, logger)
	srv := api.NewServer(cfg.ListenAddr, orch, serverless.NewHandler(p, cfg.ModelSize, logger), reg, api.Options{
		DefaultVariant: cfg.ModelSize,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, logger)

	logger.Info("testserver: starting", "addr", cfg.ListenAddr, "delay", delay)
	if err := srv.Run(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
