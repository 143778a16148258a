package backend

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantiz/vidrestore/internal/model"
)

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backends.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadCatalog(t *testing.T) {
	path := writeCatalog(t, `
backends:
  - variant: 7b
    kind: command
    command: python3
    args: ["infer.py", "--seed", "{seed}"]
    dir: /opt/seedvr
    env: ["CUDA_VISIBLE_DEVICES=0"]
  - variant: 3b
    kind: passthrough
    name: fake-3b
    delay: 250ms
`)
	c, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, c.Backends, 2)

	assert.Equal(t, model.Variant7B, c.Backends[0].Variant)
	assert.Equal(t, []string{"infer.py", "--seed", "{seed}"}, c.Backends[0].Args)
	assert.Equal(t, "seedvr2-7b", c.Backends[0].name())
	assert.Equal(t, "fake-3b", c.Backends[1].name())
	assert.Equal(t, 250*time.Millisecond, c.Backends[1].Delay)
}

func TestLoadCatalogErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", "backends: []\n", "catalog is empty"},
		{"bad yaml", "backends: [\n", "failed to parse backend catalog"},
		{"unsupported variant", "backends:\n  - variant: 13b\n    kind: passthrough\n", "unsupported variant"},
		{"duplicate", "backends:\n  - variant: 3b\n    kind: passthrough\n  - variant: 3b\n    kind: passthrough\n", "duplicate variant"},
		{"missing command", "backends:\n  - variant: 3b\n    kind: command\n", "command is required"},
		{"unknown kind", "backends:\n  - variant: 3b\n    kind: grpc\n", "unknown kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCatalog(writeCatalog(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read backend catalog")
}

func TestDefaultCatalogRegister(t *testing.T) {
	c := DefaultCatalog("/opt/seedvr")
	require.NoError(t, c.Validate())

	reg := NewRegistry()
	require.NoError(t, c.Register(reg, discardLogger()))
	assert.Equal(t, len(model.SupportedVariants), reg.Len())

	for _, info := range reg.List() {
		assert.Equal(t, KindCommand, info.Capabilities.Kind)
		assert.Equal(t, "seedvr2-"+info.Variant, info.Capabilities.Name)
	}
}
