package model

import (
	"fmt"
	"slices"
)

// Engine variant constants. The variant selects which loaded model serves a job.
const (
	Variant3B = "3b"
	Variant7B = "7b"
)

// SupportedVariants lists every engine variant a request may name.
var SupportedVariants = []string{Variant3B, Variant7B}

// Default inference parameters.
const (
	DefaultCfgScale    = 1.0
	DefaultCfgRescale  = 0.0
	DefaultSampleSteps = 1
	DefaultSeed        = 666
	DefaultResH        = 720
	DefaultResW        = 1280
	DefaultSPSize      = 1
)

// Params is the immutable inference configuration captured at submission time.
type Params struct {
	CfgScale    float64 `json:"cfg_scale"`
	CfgRescale  float64 `json:"cfg_rescale"`
	SampleSteps int     `json:"sample_steps"`
	Seed        int64   `json:"seed"`
	ResH        int     `json:"res_h"`
	ResW        int     `json:"res_w"`
	SPSize      int     `json:"sp_size"`
	Variant     string  `json:"engine_variant"`
}

// DefaultParams returns the parameter set used when a request omits values.
func DefaultParams(variant string) Params {
	return Params{
		CfgScale:    DefaultCfgScale,
		CfgRescale:  DefaultCfgRescale,
		SampleSteps: DefaultSampleSteps,
		Seed:        DefaultSeed,
		ResH:        DefaultResH,
		ResW:        DefaultResW,
		SPSize:      DefaultSPSize,
		Variant:     variant,
	}
}

// IsSupportedVariant reports whether v is a known engine variant.
func IsSupportedVariant(v string) bool {
	return slices.Contains(SupportedVariants, v)
}

// Resolution formats the output resolution as WxH.
func (p Params) Resolution() string {
	return fmt.Sprintf("%dx%d", p.ResW, p.ResH)
}

// Validate returns a ValidationError describing the first invalid field.
func (p Params) Validate() error {
	switch {
	case !IsSupportedVariant(p.Variant):
		return NewError(KindValidation, fmt.Sprintf("unsupported engine variant %q: must be one of %v", p.Variant, SupportedVariants), nil)
	case p.SampleSteps < 1:
		return NewError(KindValidation, fmt.Sprintf("sample_steps must be >= 1, got %d", p.SampleSteps), nil)
	case p.ResH <= 0 || p.ResW <= 0:
		return NewError(KindValidation, fmt.Sprintf("resolution must be positive, got %s", p.Resolution()), nil)
	case p.SPSize < 1:
		return NewError(KindValidation, fmt.Sprintf("sp_size must be >= 1, got %d", p.SPSize), nil)
	case p.CfgRescale < 0:
		return NewError(KindValidation, fmt.Sprintf("cfg_rescale must be >= 0, got %g", p.CfgRescale), nil)
	}
	return nil
}
