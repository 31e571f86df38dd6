package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrInvalidWorkspaceName is returned for a render id that cannot be used as a directory name.
var ErrInvalidWorkspaceName = errors.New("invalid workspace name")

// Scratch is the root directory under which per-render workspaces are created.
type Scratch struct {
	root   string
	logger *slog.Logger
}

// NewScratch creates a new Scratch rooted at root.
// If root is empty, a directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewScratch(root string, logger *slog.Logger) (*Scratch, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "yt-render")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}

	return &Scratch{root: root, logger: logger}, nil
}

// Root returns the scratch root path.
func (s *Scratch) Root() string {
	return s.root
}

// NewWorkspace creates the private directory for one render.
// It fails if the directory already exists so two renders never share files.
func (s *Scratch) NewWorkspace(renderID string) (*Workspace, error) {
	if renderID == "" || renderID != filepath.Base(renderID) || strings.HasPrefix(renderID, ".") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidWorkspaceName, renderID)
	}

	dir := filepath.Join(s.root, renderID)
	if err := os.Mkdir(dir, 0750); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	return &Workspace{
		dir:    dir,
		logger: s.logger.With(slog.String("workspace", dir)),
	}, nil
}

// Workspace owns every scratch file of a single render.
// Path is safe for concurrent use by the encode workers.
type Workspace struct {
	dir    string
	logger *slog.Logger

	mu    sync.Mutex
	files []string

	cleanupOnce sync.Once
	cleanupErr  error
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns the path for name inside the workspace and records it as
// owned by the render. Only the base name of name is used.
func (w *Workspace) Path(name string) string {
	p := filepath.Join(w.dir, filepath.Base(name))

	w.mu.Lock()
	w.files = append(w.files, p)
	w.mu.Unlock()

	return p
}

// Files returns the paths handed out so far.
func (w *Workspace) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.files...)
}

// Cleanup removes every tracked file and then the workspace directory.
// It runs once; later calls return the first result. Cleanup never stops
// early: individual failures are logged and the first one is returned.
// ctx is only used for logging and is not checked for cancellation.
func (w *Workspace) Cleanup(ctx context.Context) error {
	w.cleanupOnce.Do(func() {
		var firstErr error
		for _, p := range w.Files() {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				w.logger.WarnContext(ctx, "failed to remove scratch file",
					slog.String("path", p),
					slog.String("error", err.Error()),
				)
				if firstErr == nil {
					firstErr = fmt.Errorf("remove scratch file %s: %w", p, err)
				}
			}
		}

		// Catches anything ffmpeg wrote that was never handed out (e.g. concat lists).
		if err := os.RemoveAll(w.dir); err != nil {
			w.logger.WarnContext(ctx, "failed to remove workspace", slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = fmt.Errorf("remove workspace %s: %w", w.dir, err)
			}
		}
		w.cleanupErr = firstErr
	})
	return w.cleanupErr
}
