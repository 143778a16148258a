package artifact

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantiz/vidrestore/internal/model"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestNewFileStoreRequiresPath(t *testing.T) {
	_, err := NewFileStore("  ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base path is required")
}

func TestPutGetDelete(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	ref, err := s.Put(ctx, "job1_out.mp4", strings.NewReader("restored"))
	require.NoError(t, err)
	assert.Equal(t, "job1_out.mp4", ref)

	ok, err := s.Exists(ctx, ref)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.Get(ctx, ref)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "restored", string(data))

	require.NoError(t, s.Delete(ctx, ref))

	ok, err = s.Exists(ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Get(ctx, ref)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, model.ErrNotFound)

	// Deleting again is a no-op.
	assert.NoError(t, s.Delete(ctx, ref))
}

func TestPutLeavesNoTempFiles(t *testing.T) {
	s := newTestFileStore(t)
	_, err := s.Put(context.Background(), "nested/dir/out.mp4", strings.NewReader("x"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(s.BasePath(), "nested", "dir"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.mp4", entries[0].Name())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }

func TestPutFailedCopyRemovesTemp(t *testing.T) {
	s := newTestFileStore(t)
	_, err := s.Put(context.Background(), "broken.mp4", failingReader{})
	require.Error(t, err)

	entries, err := os.ReadDir(s.BasePath())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{name: "plain", key: "a.mp4", want: "a.mp4"},
		{name: "leading slash", key: "/a.mp4", want: "a.mp4"},
		{name: "dot prefix", key: "./a/b.mp4", want: "a/b.mp4"},
		{name: "backslashes", key: `a\b.mp4`, want: "a/b.mp4"},
		{name: "inner dotdot", key: "a/../b.mp4", want: "b.mp4"},
		{name: "escape", key: "../etc/passwd", wantErr: true},
		{name: "only dotdot", key: "..", wantErr: true},
		{name: "empty", key: " ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sanitizeKey(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanceledContext(t *testing.T) {
	s := newTestFileStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Put(ctx, "a.mp4", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
