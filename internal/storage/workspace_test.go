package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestScratch(t *testing.T) *Scratch {
	t.Helper()
	s, err := NewScratch(filepath.Join(t.TempDir(), "scratch"), nil)
	require.NoError(t, err)
	return s
}

func TestNewScratch(t *testing.T) {
	t.Run("creates directory if not exists", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "nested", "scratch")

		s, err := NewScratch(root, nil)
		require.NoError(t, err)
		assert.Equal(t, root, s.Root())

		info, err := os.Stat(root)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		s, err := NewScratch("", nil)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(os.TempDir(), "yt-render"), s.Root())
	})
}

func TestScratch_NewWorkspace(t *testing.T) {
	s := setupTestScratch(t)

	ws, err := s.NewWorkspace("render-1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "render-1"), ws.Dir())
	assert.DirExists(t, ws.Dir())

	t.Run("rejects a second workspace with the same id", func(t *testing.T) {
		_, err := s.NewWorkspace("render-1")
		assert.Error(t, err)
	})

	t.Run("rejects ids that escape the root", func(t *testing.T) {
		for _, id := range []string{"", "..", "a/b", "../x", ".hidden"} {
			_, err := s.NewWorkspace(id)
			assert.ErrorIs(t, err, ErrInvalidWorkspaceName, "id %q", id)
		}
	})
}

func TestWorkspace_Path(t *testing.T) {
	ws, err := setupTestScratch(t).NewWorkspace("render-2")
	require.NoError(t, err)

	p := ws.Path("seg_000.mp4")
	assert.Equal(t, filepath.Join(ws.Dir(), "seg_000.mp4"), p)

	// Directory components are dropped so files stay inside the workspace.
	p = ws.Path("../../etc/passwd")
	assert.Equal(t, filepath.Join(ws.Dir(), "passwd"), p)

	assert.Len(t, ws.Files(), 2)
}

func TestWorkspace_PathConcurrent(t *testing.T) {
	ws, err := setupTestScratch(t).NewWorkspace("render-3")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ws.Path("file")
		}()
	}
	wg.Wait()

	assert.Len(t, ws.Files(), 50)
}

func TestWorkspace_Cleanup(t *testing.T) {
	s := setupTestScratch(t)
	ws, err := s.NewWorkspace("render-4")
	require.NoError(t, err)

	written := ws.Path("audio.mp3")
	require.NoError(t, os.WriteFile(written, []byte("audio"), 0o600))
	_ = ws.Path("never-written.mp4")

	// A file the render never asked for, like an ffmpeg concat list.
	stray := filepath.Join(ws.Dir(), "concat-123.txt")
	require.NoError(t, os.WriteFile(stray, []byte("file 'x'"), 0o600))

	require.NoError(t, ws.Cleanup(context.Background()))

	assert.NoFileExists(t, written)
	assert.NoFileExists(t, stray)
	assert.NoDirExists(t, ws.Dir())
	assert.DirExists(t, s.Root(), "scratch root must survive")

	// Idempotent
	assert.NoError(t, ws.Cleanup(context.Background()))
}

func TestWorkspace_CleanupIgnoresCancelledContext(t *testing.T) {
	ws, err := setupTestScratch(t).NewWorkspace("render-5")
	require.NoError(t, err)

	p := ws.Path("img_000.jpg")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, ws.Cleanup(ctx))
	assert.NoDirExists(t, ws.Dir())
}
