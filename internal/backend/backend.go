package backend

import (
	"context"

	"github.com/seantiz/vidrestore/internal/model"
)

// Backend is a loaded compute engine. Implementations are not assumed to be
// safe for concurrent use; callers serialize Invoke.
type Backend interface {
	// Invoke restores the video at InputPath and writes its result into
	// OutputDir. The returned path names the produced artifact when the
	// engine knows it; it may be empty.
	Invoke(ctx context.Context, inv Invocation) (string, error)

	// Capabilities reports what this engine serves.
	Capabilities() Capabilities
}

// Invocation is one request to a compute engine.
type Invocation struct {
	JobID     string       `json:"job_id"`
	InputPath string       `json:"input_path"`
	OutputDir string       `json:"output_dir"`
	Params    model.Params `json:"params"`

	// LogWriter is an optional callback that engines invoke to emit progress
	// lines during inference.
	LogWriter func(line string) `json:"-"`
}

// Capabilities describes a loaded engine.
type Capabilities struct {
	Name    string `json:"name"`
	Variant string `json:"variant"`
	Kind    string `json:"kind"`
}

func emitLog(inv Invocation, line string) {
	if inv.LogWriter != nil {
		inv.LogWriter(line)
	}
}
