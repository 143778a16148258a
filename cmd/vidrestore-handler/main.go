// vidrestore-handler runs one synchronous restoration request and exits.
// The request JSON is read from -input or stdin; the response is written to
// stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/seantiz/vidrestore/internal/backend"
	"github.com/seantiz/vidrestore/internal/config"
	"github.com/seantiz/vidrestore/internal/model"
	"github.com/seantiz/vidrestore/internal/pipeline"
	"github.com/seantiz/vidrestore/internal/serverless"
	"github.com/seantiz/vidrestore/internal/workspace"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailed  = 1
	exitStartup = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run handles one request and returns the process exit code. It never exits
// itself, so deferred cleanup always runs.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("vidrestore-handler", flag.ContinueOnError)
	flags.SetOutput(stderr)
	input := flags.String("input", "", "request JSON file (default stdin)")
	if err := flags.Parse(args); err != nil {
		return exitStartup
	}

	cfg := config.Load()
	// stdout carries the response.
	logger := config.NewLogger(stderr, cfg.LogLevel, cfg.LogFormat)

	src := stdin
	if *input != "" {
		f, err := os.Open(*input)
		if err != nil {
			logger.Error("open input", "error", err)
			return exitStartup
		}
		defer f.Close()
		src = f
	}

	catalog := backend.DefaultCatalog(cfg.EngineDir)
	if cfg.BackendsFile != "" {
		var err error
		catalog, err = backend.LoadCatalog(cfg.BackendsFile)
		if err != nil {
			logger.Error("failed to load backends", "error", err)
			return exitStartup
		}
	}
	reg := backend.NewRegistry()
	if err := catalog.Register(reg, logger); err != nil {
		logger.Error("failed to load engines", "error", err)
		return exitStartup
	}

	p := pipeline.New(reg, pipeline.NewGate(), workspace.NewManager(cfg.WorkDir), logger)
	h := serverless.NewHandler(p, cfg.ModelSize, logger)

	var resp serverless.Response
	req, err := serverless.DecodeRequest(src)
	if err != nil {
		resp = serverless.Response{
			Status:    serverless.StatusError,
			Error:     err.Error(),
			ErrorType: string(model.KindOf(err)),
		}
	} else {
		resp = h.Handle(ctx, req)
	}
	logger.Info("request finished", "result", resp.String())

	if err := json.NewEncoder(stdout).Encode(resp); err != nil {
		fmt.Fprintf(stderr, "write response: %v\n", err)
		return exitFailed
	}
	if resp.Status != serverless.StatusSuccess {
		return exitFailed
	}
	return exitOK
}
