package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Job status constants.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// validTransitions maps each status to the set of statuses it may transition to.
// Terminal statuses have no outgoing edges.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusProcessing: true,
	},
	StatusProcessing: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// IsTerminal reports whether status is Completed or Failed.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// NewID generates a new ULID string for use as a job identifier.
func NewID() string {
	return ulid.Make().String()
}

// LogLine represents a single persisted progress line of a job.
type LogLine struct {
	ID        int64     `json:"id"`
	JobID     string    `json:"job_id"`
	Seq       int       `json:"seq"`
	Line      string    `json:"line"`
	CreatedAt time.Time `json:"created_at"`
}

// Job is one tracked video restoration request.
type Job struct {
	ID              string     `json:"id"`
	Status          string     `json:"status"`
	Message         string     `json:"message"`
	InputName       string     `json:"input_name,omitempty"`
	OutputRef       string     `json:"output_ref,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`
	Params          Params     `json:"parameters"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// Clone returns a deep copy so snapshots never share pointers with the stored record.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.DurationSeconds != nil {
		d := *j.DurationSeconds
		c.DurationSeconds = &d
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// SetDuration records d as the job's elapsed processing time.
func (j *Job) SetDuration(d time.Duration) {
	s := d.Seconds()
	j.DurationSeconds = &s
}

// CheckInvariants verifies the record-level rules: output_ref is set iff the job
// is completed, and duration is set iff the job is terminal.
func (j *Job) CheckInvariants() error {
	var errs []error
	if j.ID == "" {
		errs = append(errs, errors.New("id is empty"))
	}
	if _, ok := validTransitions[j.Status]; !ok && !IsTerminal(j.Status) {
		errs = append(errs, fmt.Errorf("unknown status %q", j.Status))
	}
	if (j.OutputRef != "") != (j.Status == StatusCompleted) {
		errs = append(errs, fmt.Errorf("output_ref %q inconsistent with status %q", j.OutputRef, j.Status))
	}
	if (j.DurationSeconds != nil) != IsTerminal(j.Status) {
		errs = append(errs, fmt.Errorf("duration inconsistent with status %q", j.Status))
	}
	return errors.Join(errs...)
}
