package serverless_test

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantiz/vidrestore/internal/backend"
	"github.com/seantiz/vidrestore/internal/model"
	"github.com/seantiz/vidrestore/internal/pipeline"
	"github.com/seantiz/vidrestore/internal/serverless"
	"github.com/seantiz/vidrestore/internal/workspace"
)

var mp4Header = []byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2', 0, 0, 0, 0, 'm', 'p', '4', '2', 'i', 's', 'o', 'm'}

type countingBackend struct {
	calls atomic.Int32
	last  atomic.Pointer[backend.Invocation]
	err   error
}

func (c *countingBackend) Invoke(_ context.Context, inv backend.Invocation) (string, error) {
	c.calls.Add(1)
	c.last.Store(&inv)
	if c.err != nil {
		return "", c.err
	}
	data, err := os.ReadFile(inv.InputPath)
	if err != nil {
		return "", err
	}
	out := filepath.Join(inv.OutputDir, "restored.mp4")
	return out, os.WriteFile(out, append([]byte("restored:"), data...), 0o644)
}

func (c *countingBackend) Capabilities() backend.Capabilities {
	return backend.Capabilities{Name: "counting", Variant: model.Variant7B, Kind: "test"}
}

func newHandler(t *testing.T, b backend.Backend) (*serverless.Handler, *workspace.Manager, string) {
	t.Helper()
	reg := backend.NewRegistry()
	reg.Register(model.Variant7B, b)
	root := t.TempDir()
	mgr := workspace.NewManager(root)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	p := pipeline.New(reg, pipeline.NewGate(), mgr, logger)
	return serverless.NewHandler(p, model.Variant7B, logger), mgr, root
}

func ptr[T any](v T) *T { return &v }

func TestHandleSuccessEchoesParameters(t *testing.T) {
	b := &countingBackend{}
	h, mgr, root := newHandler(t, b)

	resp := h.Handle(context.Background(), serverless.Request{
		ID: "req-1",
		Input: serverless.Input{
			VideoData:   base64.StdEncoding.EncodeToString(mp4Header),
			Seed:        ptr(int64(42)),
			SampleSteps: ptr(1),
			ResW:        ptr(1280),
			ResH:        ptr(720),
		},
	})

	require.Equal(t, serverless.StatusSuccess, resp.Status, resp.Error)
	decoded, err := base64.StdEncoding.DecodeString(resp.ResultVideo)
	require.NoError(t, err)
	assert.Equal(t, append([]byte("restored:"), mp4Header...), decoded)

	require.NotNil(t, resp.Parameters)
	assert.Equal(t, serverless.Parameters{
		CfgScale:    model.DefaultCfgScale,
		CfgRescale:  model.DefaultCfgRescale,
		SampleSteps: 1,
		Seed:        42,
		Resolution:  "1280x720",
		ModelSize:   model.Variant7B,
	}, *resp.Parameters)

	inv := b.last.Load()
	require.NotNil(t, inv)
	assert.Equal(t, "req-1", inv.JobID)
	assert.Equal(t, "input_video.mp4", filepath.Base(inv.InputPath))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 0, mgr.Active())
}

func TestHandleWithoutVideoIsValidationError(t *testing.T) {
	b := &countingBackend{}
	h, _, root := newHandler(t, b)

	resp := h.Handle(context.Background(), serverless.Request{Input: serverless.Input{Seed: ptr(int64(1))}})

	assert.Equal(t, serverless.StatusError, resp.Status)
	assert.Equal(t, string(model.KindValidation), resp.ErrorType)
	assert.Contains(t, resp.Error, "video_data")
	assert.Nil(t, resp.Parameters)
	assert.Equal(t, int32(0), b.calls.Load())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "no workspace should be allocated")
}

func TestHandleRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		input serverless.Input
		want  string
	}{
		{"invalid base64", serverless.Input{VideoData: "%%%not-base64"}, "not valid base64"},
		{"not a video", serverless.Input{VideoData: base64.StdEncoding.EncodeToString([]byte("hello"))}, "not a recognized video"},
		{"unknown model size", serverless.Input{VideoURL: "https://example.com/a.mp4", ModelSize: "13b"}, "variant"},
		{"zero steps", serverless.Input{VideoURL: "https://example.com/a.mp4", SampleSteps: ptr(0)}, "sample_steps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &countingBackend{}
			h, _, _ := newHandler(t, b)

			resp := h.Handle(context.Background(), serverless.Request{ID: "r", Input: tt.input})
			assert.Equal(t, serverless.StatusError, resp.Status)
			assert.Equal(t, string(model.KindValidation), resp.ErrorType)
			assert.Contains(t, resp.Error, tt.want)
			assert.Equal(t, int32(0), b.calls.Load())
		})
	}
}

func TestHandleEngineFailure(t *testing.T) {
	b := &countingBackend{err: errors.New("no output generated")}
	h, mgr, _ := newHandler(t, b)

	resp := h.Handle(context.Background(), serverless.Request{
		Input: serverless.Input{VideoData: base64.StdEncoding.EncodeToString(mp4Header)},
	})

	assert.Equal(t, serverless.StatusError, resp.Status)
	assert.Equal(t, string(model.KindEngine), resp.ErrorType)
	assert.Contains(t, resp.Error, "no output generated")
	assert.Equal(t, 0, mgr.Active())

	// A missing id is replaced with a generated one.
	inv := b.last.Load()
	require.NotNil(t, inv)
	assert.Len(t, inv.JobID, 36)
}

func TestHandleModelSizeOverride(t *testing.T) {
	b := &countingBackend{}
	h, mgr, root := newHandler(t, b)

	resp := h.Handle(context.Background(), serverless.Request{
		Input: serverless.Input{VideoData: base64.StdEncoding.EncodeToString(mp4Header), ModelSize: "3B"},
	})

	assert.Equal(t, serverless.StatusError, resp.Status)
	assert.Equal(t, string(model.KindValidation), resp.ErrorType)
	assert.Contains(t, resp.Error, `"3b" is not loaded`)

	// Rejected before staging: nothing allocated, engine untouched.
	assert.Equal(t, int32(0), b.calls.Load())
	assert.Equal(t, 0, mgr.Active())
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDecodeRequest(t *testing.T) {
	req, err := serverless.DecodeRequest(strings.NewReader(`{"id":"abc","input":{"video_url":"https://x/y.mp4","seed":7,"cfg_scale":1.5}}`))
	require.NoError(t, err)
	assert.Equal(t, "abc", req.ID)
	assert.Equal(t, "https://x/y.mp4", req.Input.VideoURL)
	require.NotNil(t, req.Input.Seed)
	assert.Equal(t, int64(7), *req.Input.Seed)
	assert.Nil(t, req.Input.SampleSteps)

	_, err = serverless.DecodeRequest(strings.NewReader(`{"id":`))
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestResponseString(t *testing.T) {
	ok := serverless.Response{Status: serverless.StatusSuccess, ResultVideo: "AAAA"}
	assert.Equal(t, "success: 4 bytes encoded", ok.String())

	bad := serverless.Response{Status: serverless.StatusError, Error: "boom", ErrorType: "EngineError"}
	assert.Equal(t, "error: boom (EngineError)", bad.String())
}
