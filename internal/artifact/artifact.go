// Package artifact provides the durable storage that outlives a job's
// workspace. Artifacts are addressed by a storage key which doubles as the
// reference recorded on completed jobs.
package artifact

import (
	"context"
	"io"

	"github.com/seantiz/vidrestore/internal/model"
)

// ErrNotFound is returned when no artifact exists for a reference.
var ErrNotFound = model.NewError(model.KindNotFound, "output file not found", nil)

// Store is the keyed write/read/delete surface for durable artifacts.
type Store interface {
	// Put streams r into the artifact at key and returns its reference.
	Put(ctx context.Context, key string, r io.Reader) (string, error)
	// Get opens the artifact for reading. The caller closes the reader.
	Get(ctx context.Context, ref string) (io.ReadCloser, error)
	// Exists reports whether the artifact is present.
	Exists(ctx context.Context, ref string) (bool, error)
	// Delete removes the artifact. Deleting an absent artifact is not an error.
	Delete(ctx context.Context, ref string) error
}
