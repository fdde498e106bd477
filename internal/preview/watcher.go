package preview

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

// DefaultQuietPeriod is how long the source tree must stay unchanged before a
// rebuild is requested.
const DefaultQuietPeriod = 300 * time.Millisecond

// Watcher watches source directories recursively (and single files by their
// parent directory) and calls onChange after a quiet period.
type Watcher struct {
	fs      *fsnotify.Watcher
	mu      sync.Mutex
	tree    map[string]bool // directories watched recursively
	files   map[string]bool // individually watched files
	trigger func()
}

// NewWatcher starts watching dirs recursively and files individually.
func NewWatcher(dirs, files []string, quiet time.Duration, onChange func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	debounced := debounce.New(quiet)
	w := &Watcher{
		fs:      fw,
		tree:    make(map[string]bool),
		files:   make(map[string]bool),
		trigger: func() { debounced(onChange) },
	}
	for _, d := range dirs {
		if err := w.addTree(filepath.Clean(d)); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	for _, f := range files {
		f = filepath.Clean(f)
		dir := filepath.Dir(f)
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := fw.Add(dir); err != nil {
			slog.Warn("watch add failed", logfields.Path(dir), logfields.Error(err))
			continue
		}
		w.files[f] = true
	}
	return w, nil
}

// Run dispatches filesystem events until ctx is done or the watcher closes.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher error", logfields.Error(err))
		}
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error { return w.fs.Close() }

func (w *Watcher) handle(ev fsnotify.Event) {
	name := filepath.Clean(ev.Name)
	if shouldIgnoreEvent(name) {
		return
	}
	w.mu.Lock()
	inTree := w.tree[filepath.Dir(name)]
	w.mu.Unlock()
	if !inTree && !w.files[name] {
		return
	}
	if inTree && ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(name); err == nil && fi.IsDir() {
			_ = w.addTree(name)
		}
	}
	slog.Debug("File change detected", logfields.Path(name), slog.String("op", ev.Op.String()))
	w.trigger()
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("watch %s: %w", root, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			slog.Warn("watch add failed", logfields.Path(path), logfields.Error(err))
			return nil
		}
		w.mu.Lock()
		w.tree[path] = true
		w.mu.Unlock()
		return nil
	})
}

// shouldIgnoreEvent returns true for editor temp files and other noise.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"), strings.HasSuffix(base, ".swp"), strings.HasSuffix(base, ".swx"):
		return true
	case strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	case base == "Thumbs.db", base == "4913":
		return true
	}
	return false
}
