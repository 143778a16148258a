package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/seantiz/vidrestore/internal/model"
)

var (
	// ErrNotFound is returned when a job is not found. It matches model.ErrNotFound.
	ErrNotFound = model.NewError(model.KindNotFound, "job not found", nil)

	// ErrInvalidTransition is returned when an update would move a job along an
	// edge the state machine does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvariant is returned when an update leaves a job record inconsistent.
	ErrInvariant = errors.New("job invariant violated")

	// ErrExists is returned when creating a job whose id is already present.
	ErrExists = errors.New("job already exists")
)

// Mutator changes a job record in place. It receives a private copy; returning
// an error aborts the update and leaves the stored record untouched.
type Mutator func(j *model.Job) error

// JobStats holds aggregate job statistics.
type JobStats struct {
	Total              int            `json:"total"`
	CountByStatus      map[string]int `json:"count_by_status"`
	CountByVariant     map[string]int `json:"count_by_variant"`
	AvgDurationSeconds float64        `json:"avg_duration_seconds"`
}

// Store defines the operations on job records. Implementations must allow any
// number of concurrent readers alongside updaters; every read returns a snapshot.
type Store interface {
	CreateJob(ctx context.Context, j *model.Job) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	// ListJobs returns every job ordered by created_at, newest first.
	ListJobs(ctx context.Context) ([]*model.Job, error)
	// UpdateJob applies fn atomically and returns the resulting snapshot.
	UpdateJob(ctx context.Context, id string, fn Mutator) (*model.Job, error)
	// DeleteJob removes the job and its log lines and returns the record as it
	// was at removal.
	DeleteJob(ctx context.Context, id string) (*model.Job, error)
	GetJobStats(ctx context.Context) (*JobStats, error)
	InsertLogLine(ctx context.Context, jobID string, seq int, line string) error
	GetLogLines(ctx context.Context, jobID string) ([]model.LogLine, error)
	Close() error
}

// applyMutator runs fn against a copy of current and checks the result against
// the state machine and record invariants.
func applyMutator(current *model.Job, fn Mutator) (*model.Job, error) {
	if model.IsTerminal(current.Status) {
		return nil, fmt.Errorf("%w: job is %s", ErrInvalidTransition, current.Status)
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.Params = current.Params
	next.CreatedAt = current.CreatedAt
	if next.Status != current.Status && !model.ValidTransition(current.Status, next.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, next.Status)
	}
	if err := next.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvariant, err)
	}
	return next, nil
}
