package pipeline

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"

	"github.com/seantiz/vidrestore/internal/artifact"
	"github.com/seantiz/vidrestore/internal/model"
)

// Sink relocates a located artifact to its destination form.
type Sink interface {
	Deliver(ctx context.Context, jobID, path string) (string, error)
}

// ArtifactKey is the durable storage key for a job's artifact.
func ArtifactKey(jobID, name string) string {
	return jobID + "_" + name
}

// ArtifactSink moves the artifact into durable storage and returns its reference.
type ArtifactSink struct {
	Store artifact.Store
}

// Deliver implements Sink.
func (s ArtifactSink) Deliver(ctx context.Context, jobID, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", model.NewError(model.KindIO, "open output", err)
	}
	defer f.Close()

	ref, err := s.Store.Put(ctx, ArtifactKey(jobID, filepath.Base(path)), f)
	if err != nil {
		return "", model.NewError(model.KindIO, "store output", err)
	}
	return ref, nil
}

// EncodeSink returns the artifact as standard base64.
type EncodeSink struct{}

// Deliver implements Sink.
func (EncodeSink) Deliver(_ context.Context, _ string, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", model.NewError(model.KindIO, "encode output", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
