package backend

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/seantiz/vidrestore/internal/model"
)

// KindPassthrough identifies engines that copy their input unchanged.
const KindPassthrough = "passthrough"

// PassthroughBackend copies the staged input into the output directory. It
// stands in for a real model in local runs and end-to-end tests.
type PassthroughBackend struct {
	variant string
	delay   time.Duration
}

// NewPassthroughBackend returns a passthrough engine that waits delay before copying.
func NewPassthroughBackend(variant string, delay time.Duration) *PassthroughBackend {
	return &PassthroughBackend{variant: variant, delay: delay}
}

// Capabilities reports the passthrough engine's identity.
func (b *PassthroughBackend) Capabilities() Capabilities {
	return Capabilities{Name: "passthrough-" + b.variant, Variant: b.variant, Kind: KindPassthrough}
}

// Invoke copies the input file to OutputDir under its original name.
func (b *PassthroughBackend) Invoke(ctx context.Context, inv Invocation) (string, error) {
	emitLog(inv, fmt.Sprintf("[passthrough] seed=%d steps=%d resolution=%s",
		inv.Params.Seed, inv.Params.SampleSteps, inv.Params.Resolution()))

	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return "", model.NewError(model.KindEngine, "inference canceled", ctx.Err())
		}
	}

	dst := filepath.Join(inv.OutputDir, filepath.Base(inv.InputPath))
	if err := copyFile(inv.InputPath, dst); err != nil {
		return "", model.NewError(model.KindEngine, "passthrough copy failed", err)
	}
	emitLog(inv, "[passthrough] done")
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
