// Package workspace allocates isolated per-job staging directories.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

// Staging subdirectory names.
const (
	inputDirName  = "input"
	outputDirName = "output"
)

// Workspace is one job's private pair of input/output staging directories.
// It is owned by exactly one pipeline run.
type Workspace struct {
	Root      string
	InputDir  string
	OutputDir string

	once    sync.Once
	release func() error
	err     error
}

// Release removes the workspace. It is safe to call more than once; only the
// first call does any work.
func (w *Workspace) Release() error {
	w.once.Do(func() {
		w.err = w.release()
	})
	return w.err
}

// Manager creates and destroys workspaces under a root directory.
type Manager struct {
	root      string
	active    atomic.Int64
	mkdirTemp func(dir, pattern string) (string, error)
	mkdirAll  func(path string, perm os.FileMode) error
	removeAll func(path string) error
}

// NewManager returns a Manager that allocates under root. An empty root uses
// the OS temporary directory.
func NewManager(root string) *Manager {
	return &Manager{
		root:      root,
		mkdirTemp: os.MkdirTemp,
		mkdirAll:  os.MkdirAll,
		removeAll: os.RemoveAll,
	}
}

// Active returns the number of allocated, not yet released workspaces.
func (m *Manager) Active() int {
	return int(m.active.Load())
}

// Allocate creates a fresh workspace for jobID. On error nothing is left behind.
func (m *Manager) Allocate(jobID string) (*Workspace, error) {
	if m.root != "" {
		if err := m.mkdirAll(m.root, 0o755); err != nil {
			return nil, fmt.Errorf("ensure workspace root: %w", err)
		}
	}

	root, err := m.mkdirTemp(m.root, "vidrestore-"+safeName(jobID)+"-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	ws := &Workspace{
		Root:      root,
		InputDir:  filepath.Join(root, inputDirName),
		OutputDir: filepath.Join(root, outputDirName),
	}
	for _, dir := range []string{ws.InputDir, ws.OutputDir} {
		if err := m.mkdirAll(dir, 0o755); err != nil {
			rmErr := m.removeAll(root)
			return nil, errors.Join(fmt.Errorf("create staging dir: %w", err), rmErr)
		}
	}

	m.active.Add(1)
	ws.release = func() error {
		defer m.active.Add(-1)
		if err := m.removeAll(root); err != nil {
			return fmt.Errorf("remove workspace %s: %w", root, err)
		}
		return nil
	}
	return ws, nil
}

// safeName keeps an id usable inside a directory name pattern.
func safeName(id string) string {
	id = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return -1
		}
	}, id)
	if id == "" {
		return "job"
	}
	return id
}
