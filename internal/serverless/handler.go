// Package serverless runs the execution pipeline inline for one request and
// returns a single result object. It keeps no job records.
package serverless

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/seantiz/vidrestore/internal/model"
	"github.com/seantiz/vidrestore/internal/pipeline"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Request is one serverless invocation.
type Request struct {
	ID    string `json:"id"`
	Input Input  `json:"input"`
}

// Input carries the video and optional parameter overrides. Absent
// parameters take their defaults.
type Input struct {
	VideoData   string   `json:"video_data,omitempty"`
	VideoURL    string   `json:"video_url,omitempty"`
	CfgScale    *float64 `json:"cfg_scale,omitempty"`
	CfgRescale  *float64 `json:"cfg_rescale,omitempty"`
	SampleSteps *int     `json:"sample_steps,omitempty"`
	Seed        *int64   `json:"seed,omitempty"`
	ResH        *int     `json:"res_h,omitempty"`
	ResW        *int     `json:"res_w,omitempty"`
	SPSize      *int     `json:"sp_size,omitempty"`
	ModelSize   string   `json:"model_size,omitempty"`
}

// Parameters echoes the settings a successful run used.
type Parameters struct {
	CfgScale    float64 `json:"cfg_scale"`
	CfgRescale  float64 `json:"cfg_rescale"`
	SampleSteps int     `json:"sample_steps"`
	Seed        int64   `json:"seed"`
	Resolution  string  `json:"resolution"`
	ModelSize   string  `json:"model_size"`
}

// Response is the single result of a request.
type Response struct {
	Status      string      `json:"status"`
	ResultVideo string      `json:"result_video,omitempty"`
	Parameters  *Parameters `json:"parameters,omitempty"`
	Error       string      `json:"error,omitempty"`
	ErrorType   string      `json:"error_type,omitempty"`
}

// DecodeRequest reads a JSON request.
func DecodeRequest(r io.Reader) (Request, error) {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return Request{}, model.NewError(model.KindValidation, "invalid JSON request body", err)
	}
	return req, nil
}

// Handler serves serverless requests with a shared pipeline.
type Handler struct {
	pipeline *pipeline.Pipeline
	variant  string
	logger   *slog.Logger
}

// NewHandler returns a handler whose requests default to variant.
func NewHandler(p *pipeline.Pipeline, variant string, logger *slog.Logger) *Handler {
	return &Handler{pipeline: p, variant: variant, logger: logger}
}

// Handle runs req to completion. Failures are reported in the response,
// never returned.
func (h *Handler) Handle(ctx context.Context, req Request) Response {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	logger := h.logger.With("request_id", id)

	in, params, err := h.decode(req.Input)
	if err != nil {
		logger.Warn("rejected request", "error", err)
		return errorResponse(err)
	}

	logger.Info("processing request",
		"variant", params.Variant,
		"cfg_scale", params.CfgScale,
		"sample_steps", params.SampleSteps,
		"seed", params.Seed,
	)
	start := time.Now()
	res, err := h.pipeline.Run(ctx, pipeline.Request{
		JobID:  id,
		Input:  in,
		Params: params,
		Sink:   pipeline.EncodeSink{},
		LogWriter: func(line string) {
			logger.Debug("engine output", "line", line)
		},
	})
	if err != nil {
		logger.Error("request failed", "kind", model.KindOf(err), "error", err)
		return errorResponse(err)
	}
	logger.Info("request completed", "duration_ms", time.Since(start).Milliseconds())

	return Response{
		Status:      StatusSuccess,
		ResultVideo: res.Output,
		Parameters: &Parameters{
			CfgScale:    params.CfgScale,
			CfgRescale:  params.CfgRescale,
			SampleSteps: params.SampleSteps,
			Seed:        params.Seed,
			Resolution:  params.Resolution(),
			ModelSize:   params.Variant,
		},
	}
}

// decode validates the input and resolves parameter defaults.
func (h *Handler) decode(raw Input) (pipeline.Input, model.Params, error) {
	var in pipeline.Input
	data := strings.TrimSpace(raw.VideoData)
	switch {
	case data != "":
		b, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return in, model.Params{}, model.NewError(model.KindValidation, "video_data is not valid base64", err)
		}
		if err := pipeline.ValidateMedia("", b); err != nil {
			return in, model.Params{}, err
		}
		in.Data = b
	case strings.TrimSpace(raw.VideoURL) != "":
		in.Ref = strings.TrimSpace(raw.VideoURL)
	default:
		return in, model.Params{}, model.NewError(model.KindValidation,
			"either 'video_data' (base64) or 'video_url' must be provided", nil)
	}

	variant := h.variant
	if raw.ModelSize != "" {
		variant = strings.ToLower(raw.ModelSize)
	}
	p := model.DefaultParams(variant)
	if raw.CfgScale != nil {
		p.CfgScale = *raw.CfgScale
	}
	if raw.CfgRescale != nil {
		p.CfgRescale = *raw.CfgRescale
	}
	if raw.SampleSteps != nil {
		p.SampleSteps = *raw.SampleSteps
	}
	if raw.Seed != nil {
		p.Seed = *raw.Seed
	}
	if raw.ResH != nil {
		p.ResH = *raw.ResH
	}
	if raw.ResW != nil {
		p.ResW = *raw.ResW
	}
	if raw.SPSize != nil {
		p.SPSize = *raw.SPSize
	}
	if err := p.Validate(); err != nil {
		return in, model.Params{}, err
	}
	if !h.pipeline.Serves(p.Variant) {
		return in, model.Params{}, model.NewError(model.KindValidation,
			fmt.Sprintf("engine variant %q is not loaded", p.Variant), nil)
	}
	return in, p, nil
}

func errorResponse(err error) Response {
	return Response{
		Status:    StatusError,
		Error:     err.Error(),
		ErrorType: string(model.KindOf(err)),
	}
}

// String renders a response for logs without its payload.
func (r Response) String() string {
	if r.Status == StatusError {
		return fmt.Sprintf("%s: %s (%s)", r.Status, r.Error, r.ErrorType)
	}
	return fmt.Sprintf("%s: %d bytes encoded", r.Status, len(r.ResultVideo))
}
