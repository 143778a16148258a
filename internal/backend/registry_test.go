package backend_test

import (
	"context"
	"errors"
	"testing"

	"github.com/seantiz/vidrestore/internal/backend"
	"github.com/seantiz/vidrestore/internal/model"
)

// stubBackend is a minimal Backend for registry tests.
type stubBackend struct {
	name    string
	variant string
}

func (s *stubBackend) Invoke(_ context.Context, _ backend.Invocation) (string, error) {
	return "", nil
}

func (s *stubBackend) Capabilities() backend.Capabilities {
	return backend.Capabilities{Name: s.name, Variant: s.variant, Kind: "stub"}
}

func TestRegistryRegisterAndList(t *testing.T) {
	reg := backend.NewRegistry()

	reg.Register(model.Variant7B, &stubBackend{name: "seven", variant: model.Variant7B})
	reg.Register(model.Variant3B, &stubBackend{name: "three", variant: model.Variant3B})

	list := reg.List()
	if len(list) != 2 {
		t.Fatalf("List() returned %d backends, want 2", len(list))
	}
	// Sorted by variant.
	if list[0].Variant != model.Variant3B || list[1].Variant != model.Variant7B {
		t.Errorf("List() order = [%s %s], want [3b 7b]", list[0].Variant, list[1].Variant)
	}
	if list[0].Capabilities.Name != "three" {
		t.Errorf("capabilities name = %q, want %q", list[0].Capabilities.Name, "three")
	}
	if reg.Len() != 2 {
		t.Errorf("Len() = %d, want 2", reg.Len())
	}
}

func TestRegistryResolve(t *testing.T) {
	reg := backend.NewRegistry()
	seven := &stubBackend{name: "seven", variant: model.Variant7B}
	reg.Register(model.Variant7B, seven)

	b, err := reg.Resolve(model.Variant7B)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if b != seven {
		t.Error("Resolve returned a different backend")
	}
	if !reg.Has(model.Variant7B) {
		t.Error("Has(7b) = false, want true")
	}
}

func TestRegistryResolveMissing(t *testing.T) {
	reg := backend.NewRegistry()

	_, err := reg.Resolve(model.Variant3B)
	if err == nil {
		t.Fatal("expected error for unregistered variant")
	}
	if !errors.Is(err, backend.ErrNotRegistered) {
		t.Errorf("error = %v, want ErrNotRegistered", err)
	}
	if model.KindOf(err) != model.KindEngine {
		t.Errorf("KindOf = %q, want %q", model.KindOf(err), model.KindEngine)
	}
	if reg.Has(model.Variant3B) {
		t.Error("Has(3b) = true, want false")
	}
}

func TestRegistryRegisterReplaces(t *testing.T) {
	reg := backend.NewRegistry()
	reg.Register(model.Variant7B, &stubBackend{name: "old", variant: model.Variant7B})
	reg.Register(model.Variant7B, &stubBackend{name: "new", variant: model.Variant7B})

	list := reg.List()
	if len(list) != 1 || list[0].Capabilities.Name != "new" {
		t.Errorf("List() = %+v, want single entry named new", list)
	}
}

func TestRegistryEmptyList(t *testing.T) {
	reg := backend.NewRegistry()
	list := reg.List()
	if list == nil || len(list) != 0 {
		t.Errorf("List() = %v, want empty non-nil slice", list)
	}
}
