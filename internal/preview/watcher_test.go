package preview

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, dirs, files []string) *atomic.Int32 {
	t.Helper()
	var changes atomic.Int32
	w, err := NewWatcher(dirs, files, 50*time.Millisecond, func() { changes.Add(1) })
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	t.Cleanup(func() {
		cancel()
		_ = w.Close()
	})
	return &changes
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	src := t.TempDir()
	changes := startWatcher(t, []string{src}, nil)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(src, "main.js"), []byte{byte(i)}, 0o644))
	}
	require.Eventually(t, func() bool { return changes.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), changes.Load())
}

func TestWatcher_WatchesNewSubdirectories(t *testing.T) {
	src := t.TempDir()
	changes := startWatcher(t, []string{src}, nil)

	dir := filepath.Join(src, "styles", "partials")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "styles"), 0o755))
	require.Eventually(t, func() bool { return changes.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.Eventually(t, func() bool { return changes.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)

	// give the watcher time to register the new directory
	time.Sleep(100 * time.Millisecond)
	before := changes.Load()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "_vars.scss"), []byte("$a: 1;"), 0o644))
	assert.Eventually(t, func() bool { return changes.Load() > before }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_SingleFileIgnoresSiblings(t *testing.T) {
	base := t.TempDir()
	post := filepath.Join(base, "postprocess.yaml")
	require.NoError(t, os.WriteFile(post, []byte("minify: true\n"), 0o644))
	changes := startWatcher(t, nil, []string{post})

	require.NoError(t, os.WriteFile(filepath.Join(base, "notes.txt"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, changes.Load())

	require.NoError(t, os.WriteFile(post, []byte("minify: false\n"), 0o644))
	assert.Eventually(t, func() bool { return changes.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestShouldIgnoreEvent(t *testing.T) {
	for _, p := range []string{"/src/.main.js.swp", "/src/main.js~", "/src/#main.js#", "/src/a.swx", "/src/.DS_Store"} {
		assert.True(t, shouldIgnoreEvent(p), p)
	}
	assert.False(t, shouldIgnoreEvent("/src/js/main.js"))
}
