package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seantiz/vidrestore/internal/artifact"
	"github.com/seantiz/vidrestore/internal/backend"
	"github.com/seantiz/vidrestore/internal/model"
	"github.com/seantiz/vidrestore/internal/pipeline"
	"github.com/seantiz/vidrestore/internal/store"
)

// Status messages recorded on jobs outside the pipeline stages.
const (
	MessageQueued    = "queued"
	MessageCompleted = "video restoration completed"
)

// Submission is a request to restore one video in the background.
type Submission struct {
	Input  pipeline.Input
	Params model.Params
}

// Download is an open artifact stream. The caller closes Body.
type Download struct {
	Name string
	Body io.ReadCloser
}

// Orchestrator owns the lifecycle of background jobs.
type Orchestrator struct {
	store     store.Store
	artifacts artifact.Store
	pipeline  *pipeline.Pipeline
	registry  *backend.Registry
	logger    *slog.Logger
	broker    *Broker
	wg        sync.WaitGroup
}

// New creates an orchestrator.
func New(s store.Store, artifacts artifact.Store, p *pipeline.Pipeline, reg *backend.Registry, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:     s,
		artifacts: artifacts,
		pipeline:  p,
		registry:  reg,
		logger:    logger,
		broker:    NewBroker(),
	}
}

// Broker returns the progress broker for event subscriptions.
func (o *Orchestrator) Broker() *Broker {
	return o.broker
}

// Gate returns the engine admission gate shared with the pipeline.
func (o *Orchestrator) Gate() *pipeline.Gate {
	return o.pipeline.Gate()
}

// Ready reports whether at least one engine is loaded.
func (o *Orchestrator) Ready() bool {
	return o.registry.Len() > 0
}

// Submit validates sub, records a pending job and starts executing it in the
// background. Validation failures return a ValidationError and create no record.
func (o *Orchestrator) Submit(ctx context.Context, sub Submission) (*model.Job, error) {
	if err := o.validate(sub); err != nil {
		return nil, err
	}

	job := &model.Job{
		ID:        model.NewID(),
		Status:    model.StatusPending,
		Message:   MessageQueued,
		InputName: sub.Input.Filename,
		Params:    sub.Params,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	jobsSubmittedTotal.Inc()
	o.logger.Info("job queued", "job_id", job.ID, "variant", job.Params.Variant, "input", job.InputName)

	id := job.ID
	o.wg.Go(func() {
		o.execute(id, sub)
	})
	return job.Clone(), nil
}

func (o *Orchestrator) validate(sub Submission) error {
	if sub.Input.Empty() {
		return model.NewError(model.KindValidation, "no video provided", nil)
	}
	if len(sub.Input.Data) > 0 {
		if err := pipeline.ValidateMedia(sub.Input.ContentType, sub.Input.Data); err != nil {
			return err
		}
	}
	if err := sub.Params.Validate(); err != nil {
		return err
	}
	if !o.registry.Has(sub.Params.Variant) {
		return model.NewError(model.KindValidation,
			fmt.Sprintf("engine variant %q is not loaded", sub.Params.Variant), nil)
	}
	return nil
}

// Wait blocks until all in-flight jobs reach a terminal state.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// execute drives one job from pending to a terminal state. Only this
// goroutine mutates the job's record. The broker topic is closed only after
// the terminal update.
func (o *Orchestrator) execute(id string, sub Submission) {
	defer o.broker.Close(id)

	ctx := context.Background()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("job execution panic recovered", "job_id", id, "panic", r)
			o.finishFailed(ctx, id, start, model.NewError(model.KindInternal, fmt.Sprintf("unexpected failure: %v", r), nil))
		}
	}()

	// The job is Processing before its workspace exists, so every failure
	// after this point is a Processing -> Failed edge.
	if _, err := o.store.UpdateJob(ctx, id, func(j *model.Job) error {
		now := time.Now().UTC()
		j.Status = model.StatusProcessing
		j.StartedAt = &now
		return nil
	}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			o.logger.Info("job deleted before it started", "job_id", id)
		} else {
			o.logger.Error("failed to start job", "job_id", id, "error", err)
		}
		return
	}

	// Engine output is persisted for history and published for live streams.
	var seq atomic.Int32
	logLine := func(line string) {
		n := int(seq.Add(1) - 1)
		if err := o.store.InsertLogLine(ctx, id, n, line); err != nil && !errors.Is(err, store.ErrNotFound) {
			o.logger.Error("failed to persist log line", "job_id", id, "seq", n, "error", err)
		}
		o.broker.Publish(id, Event{Kind: EventLog, Seq: n, Data: line})
	}

	req := pipeline.Request{
		JobID:  id,
		Input:  sub.Input,
		Params: sub.Params,
		Sink:   pipeline.ArtifactSink{Store: o.artifacts},
		OnStage: func(s pipeline.Stage) error {
			_, err := o.store.UpdateJob(ctx, id, func(j *model.Job) error {
				j.Message = s.Message()
				return nil
			})
			if err != nil {
				return fmt.Errorf("record stage %s: %w", s, err)
			}
			o.broker.Publish(id, Event{Kind: EventStage, Data: string(s)})
			o.logger.Debug("job stage", "job_id", id, "stage", s)
			return nil
		},
		LogWriter: logLine,
	}

	res, err := o.pipeline.Run(ctx, req)
	if err != nil {
		o.finishFailed(ctx, id, start, err)
		return
	}
	o.finishCompleted(ctx, id, start, res)
}

func (o *Orchestrator) finishCompleted(ctx context.Context, id string, start time.Time, res pipeline.Result) {
	elapsed := time.Since(start)
	_, err := o.store.UpdateJob(ctx, id, func(j *model.Job) error {
		now := time.Now().UTC()
		j.Status = model.StatusCompleted
		j.Message = MessageCompleted
		j.OutputRef = res.Output
		j.SetDuration(elapsed)
		j.FinishedAt = &now
		return nil
	})
	switch {
	case err == nil:
		jobsFinishedTotal.WithLabelValues(model.StatusCompleted).Inc()
		o.logger.Info("job completed", "job_id", id, "output_ref", res.Output, "duration_ms", elapsed.Milliseconds())
	case errors.Is(err, store.ErrNotFound):
		// Deleted while running; the artifact has no owner left.
		o.logger.Info("job deleted before completion, discarding output", "job_id", id)
		o.discardArtifact(ctx, id, res.Output)
	default:
		o.logger.Error("failed to record completed job", "job_id", id, "error", err)
		o.discardArtifact(ctx, id, res.Output)
		o.finishFailed(ctx, id, start, err)
	}
}

func (o *Orchestrator) finishFailed(ctx context.Context, id string, start time.Time, cause error) {
	elapsed := time.Since(start)
	_, err := o.store.UpdateJob(ctx, id, func(j *model.Job) error {
		now := time.Now().UTC()
		j.Status = model.StatusFailed
		j.Message = cause.Error()
		j.OutputRef = ""
		j.SetDuration(elapsed)
		j.FinishedAt = &now
		return nil
	})
	switch {
	case err == nil:
		jobsFinishedTotal.WithLabelValues(model.StatusFailed).Inc()
		o.logger.Warn("job failed",
			"job_id", id,
			"kind", model.KindOf(cause),
			"error", cause,
			"duration_ms", elapsed.Milliseconds(),
		)
	case errors.Is(err, store.ErrNotFound):
		o.logger.Info("job deleted before failure was recorded", "job_id", id, "error", cause)
	default:
		o.logger.Error("failed to record failed job", "job_id", id, "cause", cause, "error", err)
	}
}

func (o *Orchestrator) discardArtifact(ctx context.Context, id, ref string) {
	if err := o.artifacts.Delete(ctx, ref); err != nil {
		o.logger.Error("failed to delete orphaned artifact", "job_id", id, "output_ref", ref, "error", err)
	}
}

// Status returns a snapshot of the job.
func (o *Orchestrator) Status(ctx context.Context, id string) (*model.Job, error) {
	return o.store.GetJob(ctx, id)
}

// List returns snapshots of every job, newest first.
func (o *Orchestrator) List(ctx context.Context) ([]*model.Job, error) {
	return o.store.ListJobs(ctx)
}

// Download opens the artifact of a completed job.
func (o *Orchestrator) Download(ctx context.Context, id string) (*Download, error) {
	job, err := o.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != model.StatusCompleted {
		return nil, model.NewError(model.KindConflict, fmt.Sprintf("job is %s, not completed", job.Status), nil)
	}

	body, err := o.artifacts.Get(ctx, job.OutputRef)
	if err != nil {
		return nil, err
	}
	return &Download{Name: filepath.Base(job.OutputRef), Body: body}, nil
}

// Delete removes the job's record and then its artifact, if any. The record
// goes first: a run finishing concurrently either finds it gone and discards
// its own output, or has already committed the reference removed here.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	job, err := o.store.DeleteJob(ctx, id)
	if err != nil {
		return err
	}
	o.broker.Close(id)

	if job.OutputRef != "" {
		if err := o.artifacts.Delete(ctx, job.OutputRef); err != nil {
			o.logger.Error("failed to delete output of removed job", "job_id", id, "output_ref", job.OutputRef, "error", err)
			return model.NewError(model.KindIO, "delete output", err)
		}
	}
	o.logger.Info("job deleted", "job_id", id, "status", job.Status)
	return nil
}

// Logs returns the persisted engine output of a job.
func (o *Orchestrator) Logs(ctx context.Context, id string) ([]model.LogLine, error) {
	if _, err := o.store.GetJob(ctx, id); err != nil {
		return nil, err
	}
	return o.store.GetLogLines(ctx, id)
}

// Stats returns aggregate job statistics.
func (o *Orchestrator) Stats(ctx context.Context) (*store.JobStats, error) {
	return o.store.GetJobStats(ctx)
}
