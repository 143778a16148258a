package model

import (
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"
)

// crockfordBase32 matches valid ULID strings (26 chars, Crockford Base32 alphabet).
var crockfordBase32 = regexp.MustCompile(`^[0123456789ABCDEFGHJKMNPQRSTVWXYZ]{26}$`)

func TestNewIDFormat(t *testing.T) {
	id := NewID()
	if !crockfordBase32.MatchString(id) {
		t.Errorf("NewID() = %q, does not match Crockford Base32 ULID format", id)
	}
}

func TestNewIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("NewID() produced duplicate: %s", id)
		}
		seen[id] = true
	}
}

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusFailed, false},
		{StatusPending, StatusCompleted, false},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusPending, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusPending, false},
		{StatusFailed, StatusCompleted, false},
		{"bogus", StatusProcessing, false},
	}
	for _, tt := range tests {
		if got := ValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("ValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCheckInvariants(t *testing.T) {
	dur := 1.5
	tests := []struct {
		name    string
		job     Job
		wantErr bool
	}{
		{"pending", Job{ID: "a", Status: StatusPending}, false},
		{"processing", Job{ID: "a", Status: StatusProcessing}, false},
		{"completed", Job{ID: "a", Status: StatusCompleted, OutputRef: "a_out.mp4", DurationSeconds: &dur}, false},
		{"failed", Job{ID: "a", Status: StatusFailed, DurationSeconds: &dur}, false},
		{"completed without ref", Job{ID: "a", Status: StatusCompleted, DurationSeconds: &dur}, true},
		{"completed without duration", Job{ID: "a", Status: StatusCompleted, OutputRef: "x"}, true},
		{"failed with ref", Job{ID: "a", Status: StatusFailed, OutputRef: "x", DurationSeconds: &dur}, true},
		{"pending with duration", Job{ID: "a", Status: StatusPending, DurationSeconds: &dur}, true},
		{"unknown status", Job{ID: "a", Status: "running"}, true},
		{"missing id", Job{Status: StatusPending}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.CheckInvariants()
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckInvariants() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	j := &Job{ID: "a", Status: StatusFailed, StartedAt: &now}
	j.SetDuration(time.Second)

	c := j.Clone()
	*c.DurationSeconds = 99
	*c.StartedAt = now.Add(time.Hour)

	if *j.DurationSeconds != 1 {
		t.Errorf("original duration mutated: %v", *j.DurationSeconds)
	}
	if !j.StartedAt.Equal(now) {
		t.Error("original started_at mutated")
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Params)
		wantErr bool
	}{
		{"defaults", func(p *Params) {}, false},
		{"3b", func(p *Params) { p.Variant = Variant3B }, false},
		{"unknown variant", func(p *Params) { p.Variant = "13b" }, true},
		{"empty variant", func(p *Params) { p.Variant = "" }, true},
		{"zero steps", func(p *Params) { p.SampleSteps = 0 }, true},
		{"zero height", func(p *Params) { p.ResH = 0 }, true},
		{"negative width", func(p *Params) { p.ResW = -1 }, true},
		{"zero sp size", func(p *Params) { p.SPSize = 0 }, true},
		{"negative rescale", func(p *Params) { p.CfgRescale = -0.5 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams(Variant7B)
			tt.mutate(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("Validate() error kind = %s, want %s", KindOf(err), KindValidation)
			}
		})
	}
}

func TestResolution(t *testing.T) {
	p := DefaultParams(Variant7B)
	if got := p.Resolution(); got != "1280x720" {
		t.Errorf("Resolution() = %q, want %q", got, "1280x720")
	}
}

func TestErrorKinds(t *testing.T) {
	base := errors.New("disk full")
	err := fmt.Errorf("stage input: %w", NewError(KindIO, "write input", base))

	if !errors.Is(err, ErrIO) {
		t.Error("errors.Is(err, ErrIO) = false, want true")
	}
	if errors.Is(err, ErrEngine) {
		t.Error("errors.Is(err, ErrEngine) = true, want false")
	}
	if !errors.Is(err, base) {
		t.Error("wrapped cause not reachable through Unwrap")
	}
	if got := KindOf(err); got != KindIO {
		t.Errorf("KindOf() = %q, want %q", got, KindIO)
	}
	if got := KindOf(base); got != KindInternal {
		t.Errorf("KindOf(plain) = %q, want %q", got, KindInternal)
	}
	if got := err.Error(); got != "stage input: write input: disk full" {
		t.Errorf("Error() = %q", got)
	}
}

func TestErrorMessageWithoutCause(t *testing.T) {
	err := NewError(KindEngine, "no output generated", nil)
	if err.Error() != "no output generated" {
		t.Errorf("Error() = %q, want %q", err.Error(), "no output generated")
	}
}
