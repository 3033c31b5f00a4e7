package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"hlsbox/logger"
)

const dirPattern = "hls-*"

// Workspace is a directory owned by exactly one request.
type Workspace struct {
	Dir string
}

// ID is the unique directory name.
func (w *Workspace) ID() string {
	return filepath.Base(w.Dir)
}

// Path joins name onto the workspace directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Manager creates and removes per-request workspaces under a root directory.
type Manager struct {
	root string
}

// NewManager creates a Manager rooted at root. The root is created on first use.
func NewManager(root string) *Manager {
	return &Manager{root: root}
}

// Root returns the directory workspaces are created in.
func (m *Manager) Root() string {
	return m.root
}

// Acquire creates a new uniquely named workspace.
func (m *Manager) Acquire() (*Workspace, error) {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace root %s: %w", m.root, err)
	}
	dir, err := os.MkdirTemp(m.root, dirPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	logger.Debug("workspace acquired", logger.String("dir", dir))
	return &Workspace{Dir: dir}, nil
}

// Release deletes the workspace and everything in it. Failures are logged, never returned,
// so they cannot mask the request's own result.
func (m *Manager) Release(ws *Workspace) {
	if ws == nil || ws.Dir == "" {
		return
	}
	if err := os.RemoveAll(ws.Dir); err != nil {
		logger.Warn("failed to remove workspace",
			logger.String("dir", ws.Dir),
			logger.ErrorField(err))
		return
	}
	logger.Debug("workspace released", logger.String("dir", ws.Dir))
}

// With acquires a workspace, runs fn and releases the workspace on every exit path,
// panics included.
func (m *Manager) With(fn func(ws *Workspace) error) error {
	ws, err := m.Acquire()
	if err != nil {
		return err
	}
	defer m.Release(ws)
	return fn(ws)
}
