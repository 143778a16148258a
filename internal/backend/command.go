package backend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/seantiz/vidrestore/internal/model"
)

// KindCommand identifies engines that run an external inference command.
const KindCommand = "command"

const (
	// maxLineBytes bounds a single line of engine output.
	maxLineBytes = 1 << 20
	// errorTailLines is how many trailing output lines are kept for error messages.
	errorTailLines = 5
)

// CommandBackend runs one external process per invocation. Arguments may
// contain placeholders that are expanded from the invocation: {job_id},
// {input}, {input_dir}, {output_dir}, {cfg_scale}, {cfg_rescale},
// {sample_steps}, {seed}, {res_h}, {res_w}, {sp_size}, {variant}.
type CommandBackend struct {
	spec   Spec
	logger *slog.Logger
}

// NewCommandBackend validates spec and returns a command engine.
func NewCommandBackend(spec Spec, logger *slog.Logger) (*CommandBackend, error) {
	if strings.TrimSpace(spec.Command) == "" {
		return nil, fmt.Errorf("backend %q: command is required", spec.Variant)
	}
	return &CommandBackend{spec: spec, logger: logger}, nil
}

// Capabilities reports the command engine's identity.
func (b *CommandBackend) Capabilities() Capabilities {
	return Capabilities{Name: b.spec.name(), Variant: b.spec.Variant, Kind: KindCommand}
}

// Invoke runs the configured command and streams its combined output to the
// invocation's LogWriter.
func (b *CommandBackend) Invoke(ctx context.Context, inv Invocation) (string, error) {
	args := expandArgs(b.spec.Args, inv)
	cmd := exec.CommandContext(ctx, b.spec.Command, args...)
	cmd.Dir = b.spec.Dir
	cmd.Env = append(os.Environ(), b.spec.Env...)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	tail := newLineTail(errorTailLines)
	var wg sync.WaitGroup
	wg.Go(func() {
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := scanner.Text()
			tail.add(line)
			emitLog(inv, line)
		}
		// Keep draining so the process never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, pr)
	})

	b.logger.Debug("engine command starting",
		"job_id", inv.JobID,
		"variant", b.spec.Variant,
		"command", b.spec.Command,
		"args", args,
	)

	runErr := cmd.Run()
	pw.Close()
	wg.Wait()

	if runErr != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		msg := fmt.Sprintf("engine command %s failed (exit=%d)", filepath.Base(b.spec.Command), exitCode)
		if last := tail.String(); last != "" {
			msg += ": " + last
		}
		return "", model.NewError(model.KindEngine, msg, runErr)
	}
	return "", nil
}

// expandArgs substitutes invocation values into argument templates.
func expandArgs(templates []string, inv Invocation) []string {
	p := inv.Params
	r := strings.NewReplacer(
		"{job_id}", inv.JobID,
		"{input}", inv.InputPath,
		"{input_dir}", filepath.Dir(inv.InputPath),
		"{output_dir}", inv.OutputDir,
		"{cfg_scale}", strconv.FormatFloat(p.CfgScale, 'g', -1, 64),
		"{cfg_rescale}", strconv.FormatFloat(p.CfgRescale, 'g', -1, 64),
		"{sample_steps}", strconv.Itoa(p.SampleSteps),
		"{seed}", strconv.FormatInt(p.Seed, 10),
		"{res_h}", strconv.Itoa(p.ResH),
		"{res_w}", strconv.Itoa(p.ResW),
		"{sp_size}", strconv.Itoa(p.SPSize),
		"{variant}", p.Variant,
	)
	args := make([]string, len(templates))
	for i, t := range templates {
		args[i] = r.Replace(t)
	}
	return args
}

// lineTail keeps the last n lines written to it.
type lineTail struct {
	mu    sync.Mutex
	n     int
	lines []string
}

func newLineTail(n int) *lineTail {
	return &lineTail{n: n}
}

func (t *lineTail) add(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *lineTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, " | ")
}
