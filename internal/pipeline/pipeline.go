package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/seantiz/vidrestore/internal/backend"
	"github.com/seantiz/vidrestore/internal/model"
	"github.com/seantiz/vidrestore/internal/workspace"
)

// Stage names a pipeline step as reported to OnStage.
type Stage string

// Pipeline stages, in order.
const (
	StageStaging    Stage = "staging"
	StageWaiting    Stage = "waiting"
	StageInference  Stage = "inference"
	StageDelivering Stage = "delivering"
)

// Messages reported with each stage.
var stageMessages = map[Stage]string{
	StageStaging:    "staging input",
	StageWaiting:    "waiting for engine",
	StageInference:  "running inference",
	StageDelivering: "storing output",
}

// Message returns the human-readable progress text for s.
func (s Stage) Message() string {
	return stageMessages[s]
}

// Input is the media payload of a request: embedded bytes or an external
// reference (http(s) URL or local path). Data wins when both are set.
type Input struct {
	Filename    string
	ContentType string
	Data        []byte
	Ref         string
}

// Empty reports whether neither a payload nor a reference is present.
func (in Input) Empty() bool {
	return len(in.Data) == 0 && strings.TrimSpace(in.Ref) == ""
}

// Request is one pipeline run.
type Request struct {
	JobID  string
	Input  Input
	Params model.Params
	Sink   Sink

	// OnStage is called as each stage begins. Returning an error aborts the run.
	OnStage func(stage Stage) error
	// LogWriter receives engine output lines.
	LogWriter func(line string)
}

func (r Request) stage(s Stage) error {
	if r.OnStage == nil {
		return nil
	}
	return r.OnStage(s)
}

// Result is the outcome of a successful run.
type Result struct {
	// Output is the sink's destination form: a durable reference or an
	// encoded payload.
	Output       string
	ArtifactName string
}

// Pipeline runs requests against the engines in a registry.
type Pipeline struct {
	registry   *backend.Registry
	gate       *Gate
	workspaces *workspace.Manager
	client     *http.Client
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHTTPClient sets the client used to download external references.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Pipeline) { p.client = c }
}

// New creates a pipeline. All pipelines sharing an engine must share a gate.
func New(reg *backend.Registry, gate *Gate, ws *workspace.Manager, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry:   reg,
		gate:       gate,
		workspaces: ws,
		client:     &http.Client{Timeout: 10 * time.Minute},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Gate returns the pipeline's engine admission gate.
func (p *Pipeline) Gate() *Gate {
	return p.gate
}

// Serves reports whether an engine is registered for variant.
func (p *Pipeline) Serves(variant string) bool {
	return p.registry.Has(variant)
}

// Run executes req to completion. Every failure is returned as a classified
// *model.Error; panics in any step are recovered and reported as engine errors.
func (p *Pipeline) Run(ctx context.Context, req Request) (res Result, err error) {
	if req.Sink == nil {
		return Result{}, fmt.Errorf("pipeline: request %s has no sink", req.JobID)
	}

	ws, err := p.workspaces.Allocate(req.JobID)
	if err != nil {
		return Result{}, model.NewError(model.KindIO, "allocate workspace", err)
	}
	activeWorkspaces.Inc()
	defer func() {
		if rerr := ws.Release(); rerr != nil {
			p.logger.Error("failed to release workspace", "job_id", req.JobID, "error", rerr)
		}
		activeWorkspaces.Dec()
	}()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline panic recovered", "job_id", req.JobID, "panic", r)
			res = Result{}
			err = model.NewError(model.KindEngine, fmt.Sprintf("unexpected failure: %v", r), nil)
		}
	}()

	if err := req.stage(StageStaging); err != nil {
		return Result{}, err
	}
	inputPath, err := p.materialize(ctx, ws, req.Input)
	if err != nil {
		return Result{}, err
	}

	b, err := p.registry.Resolve(req.Params.Variant)
	if err != nil {
		return Result{}, err
	}

	inv := backend.Invocation{
		JobID:     req.JobID,
		InputPath: inputPath,
		OutputDir: ws.OutputDir,
		Params:    req.Params,
		LogWriter: req.LogWriter,
	}
	reported, err := p.invoke(ctx, b, req, inv)
	if err != nil {
		return Result{}, err
	}

	if err := req.stage(StageDelivering); err != nil {
		return Result{}, err
	}
	artifactPath, err := p.locateArtifact(req.JobID, ws.OutputDir)
	if err != nil {
		return Result{}, err
	}
	if reported != "" && filepath.Clean(reported) != artifactPath {
		p.logger.Debug("engine reported a different artifact path",
			"job_id", req.JobID, "reported", reported, "located", artifactPath)
	}

	out, err := req.Sink.Deliver(ctx, req.JobID, artifactPath)
	if err != nil {
		return Result{}, err
	}
	return Result{Output: out, ArtifactName: filepath.Base(artifactPath)}, nil
}

// invoke runs the engine while holding the admission gate.
func (p *Pipeline) invoke(ctx context.Context, b backend.Backend, req Request, inv backend.Invocation) (path string, err error) {
	if err := req.stage(StageWaiting); err != nil {
		return "", err
	}
	waitStart := time.Now()
	release, err := p.gate.Acquire(ctx)
	if err != nil {
		return "", model.NewError(model.KindEngine, "wait for engine", err)
	}
	defer release()
	engineWaitSeconds.Observe(time.Since(waitStart).Seconds())

	if err := req.stage(StageInference); err != nil {
		return "", err
	}

	start := time.Now()
	defer func() {
		engineInvokeSeconds.Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			p.logger.Error("engine panic recovered", "job_id", inv.JobID, "panic", r)
			path = ""
			err = model.NewError(model.KindEngine, fmt.Sprintf("engine panicked: %v", r), nil)
		}
	}()

	p.logger.Info("engine invocation starting",
		"job_id", inv.JobID,
		"variant", inv.Params.Variant,
		"wait_ms", start.Sub(waitStart).Milliseconds(),
	)
	path, err = b.Invoke(ctx, inv)
	if err != nil {
		if model.KindOf(err) != model.KindEngine {
			err = model.NewError(model.KindEngine, "inference failed", err)
		}
		return "", err
	}
	p.logger.Info("engine invocation finished",
		"job_id", inv.JobID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return path, nil
}

// locateArtifact returns the single regular file in dir. Extra files are
// resolved by taking the lexicographically first name.
func (p *Pipeline) locateArtifact(jobID, dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", model.NewError(model.KindIO, "read output directory", err)
	}

	// os.ReadDir returns entries sorted by name.
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	switch len(names) {
	case 0:
		return "", model.NewError(model.KindEngine, "no output generated", nil)
	case 1:
	default:
		p.logger.Warn("engine produced multiple artifacts, using first",
			"job_id", jobID, "count", len(names), "chosen", names[0])
	}
	return filepath.Join(dir, names[0]), nil
}

// materialize writes the request input into the workspace and returns its path.
func (p *Pipeline) materialize(ctx context.Context, ws *workspace.Workspace, in Input) (string, error) {
	if len(in.Data) > 0 {
		dst := filepath.Join(ws.InputDir, inputName(in.Filename, in.Data))
		if err := os.WriteFile(dst, in.Data, 0o644); err != nil {
			return "", model.NewError(model.KindIO, "stage input", fmt.Errorf("write input: %w", err))
		}
		return dst, nil
	}

	ref := strings.TrimSpace(in.Ref)
	if ref == "" {
		return "", model.NewError(model.KindValidation, "no video_data or video_url provided", nil)
	}

	name := in.Filename
	if name == "" {
		name = refName(ref)
	}
	dst := filepath.Join(ws.InputDir, inputName(name, nil))

	var err error
	if isURL(ref) {
		err = p.download(ctx, ref, dst)
	} else {
		err = copyLocal(ref, dst)
	}
	if err != nil {
		return "", model.NewError(model.KindIO, "stage input", err)
	}
	if err := ValidateMediaFile(dst); err != nil {
		return "", err
	}
	return dst, nil
}

func (p *Pipeline) download(ctx context.Context, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("download %s: unexpected status %d", url, resp.StatusCode)
	}
	return writeFile(dst, resp.Body)
}

func copyLocal(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open reference: %w", err)
	}
	defer f.Close()
	return writeFile(dst, f)
}

func writeFile(dst string, r io.Reader) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("write input: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("write input: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("write input: %w", err)
	}
	return nil
}

func isURL(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// refName derives a file name from a URL or path, ignoring any query string.
func refName(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 && isURL(ref) {
		ref = ref[:i]
	}
	return filepath.Base(ref)
}
