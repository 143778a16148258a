package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/seantiz/vidrestore/internal/model"
)

// Compile-time interface satisfaction check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store with a lock-guarded map. Contents are lost when
// the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	jobs   map[string]*model.Job
	logs   map[string][]model.LogLine
	nextLn int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*model.Job),
		logs: make(map[string][]model.LogLine),
	}
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// CreateJob inserts a new job record.
func (s *MemoryStore) CreateJob(ctx context.Context, j *model.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := j.CheckInvariants(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvariant, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, j.ID)
	}
	s.jobs[j.ID] = j.Clone()
	return nil
}

// GetJob returns a snapshot of the job with the given id.
func (s *MemoryStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j.Clone(), nil
}

// ListJobs returns snapshots of all jobs, newest first.
func (s *MemoryStore) ListJobs(ctx context.Context) ([]*model.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	jobs := make([]*model.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(i, k int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[k].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
		}
		return jobs[i].ID > jobs[k].ID
	})
	return jobs, nil
}

// UpdateJob applies fn under the write lock.
func (s *MemoryStore) UpdateJob(ctx context.Context, id string, fn Mutator) (*model.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	next, err := applyMutator(current, fn)
	if err != nil {
		return nil, err
	}
	s.jobs[id] = next
	return next.Clone(), nil
}

// DeleteJob removes the job and its log lines.
func (s *MemoryStore) DeleteJob(ctx context.Context, id string) (*model.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.jobs, id)
	delete(s.logs, id)
	return j, nil
}

// GetJobStats aggregates counts by status and variant.
func (s *MemoryStore) GetJobStats(ctx context.Context) (*JobStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &JobStats{
		CountByStatus:  make(map[string]int),
		CountByVariant: make(map[string]int),
	}
	var sum float64
	var n int
	for _, j := range s.jobs {
		stats.Total++
		stats.CountByStatus[j.Status]++
		stats.CountByVariant[j.Params.Variant]++
		if j.DurationSeconds != nil {
			sum += *j.DurationSeconds
			n++
		}
	}
	if n > 0 {
		stats.AvgDurationSeconds = sum / float64(n)
	}
	return stats, nil
}

// InsertLogLine appends a progress line for an existing job.
func (s *MemoryStore) InsertLogLine(ctx context.Context, jobID string, seq int, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return ErrNotFound
	}
	s.nextLn++
	s.logs[jobID] = append(s.logs[jobID], model.LogLine{
		ID:        s.nextLn,
		JobID:     jobID,
		Seq:       seq,
		Line:      line,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// GetLogLines returns the job's log lines ordered by sequence number.
func (s *MemoryStore) GetLogLines(ctx context.Context, jobID string) ([]model.LogLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	lines := make([]model.LogLine, len(s.logs[jobID]))
	copy(lines, s.logs[jobID])
	s.mu.RUnlock()

	sort.SliceStable(lines, func(i, k int) bool { return lines[i].Seq < lines[k].Seq })
	return lines, nil
}
