package output

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

// Kind classifies an emitted file.
type Kind string

const (
	KindHTML   Kind = "html"
	KindCSS    Kind = "css"
	KindJS     Kind = "js"
	KindMap    Kind = "sourcemap"
	KindImage  Kind = "image"
	KindSprite Kind = "sprite"
	KindFont   Kind = "font"
	KindStatic Kind = "static"
)

// File describes one file written into the tree.
type File struct {
	Path   string `json:"path"` // slash separated, relative to the root
	Kind   Kind   `json:"kind"`
	Size   int64  `json:"size"`
	Source string `json:"source,omitempty"`
}

// Tree is the output directory shared by every stage of one build. A staged
// tree writes into a sibling directory and replaces its final directory only
// on Promote.
type Tree struct {
	root  string
	final string

	mu      sync.Mutex
	emitted map[string]File
}

// NewTree returns a tree rooted at root. Nothing is touched on disk.
func NewTree(root string) *Tree {
	return &Tree{root: root, final: root, emitted: make(map[string]File)}
}

// NewStagedTree returns a tree writing into <final>.tmp-<id>. The staging
// directory is a sibling of final so relative paths computed against it hold
// after promotion.
func NewStagedTree(final, id string) *Tree {
	final = filepath.Clean(final)
	return &Tree{root: final + ".tmp-" + id, final: final, emitted: make(map[string]File)}
}

// Root returns the directory currently written to.
func (t *Tree) Root() string { return t.root }

// Final returns the directory the tree is promoted into.
func (t *Tree) Final() string { return t.final }

// Promote replaces the final directory with the staged one:
//  1. the existing final directory moves to <final>.prev,
//  2. staging is renamed to final,
//  3. the backup is removed.
//
// When the second rename fails the backup is moved back.
func (t *Tree) Promote() error {
	if t.root == t.final {
		return nil
	}
	prev := t.final + ".prev"
	if err := os.RemoveAll(prev); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "remove previous output backup").
			WithContext("path", prev).Fatal().Build()
	}
	hadFinal := false
	if _, err := os.Stat(t.final); err == nil {
		if err := os.Rename(t.final, prev); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "move previous output aside").
				WithContext("path", t.final).Fatal().Build()
		}
		hadFinal = true
	}
	if err := os.Rename(t.root, t.final); err != nil {
		if hadFinal {
			if rerr := os.Rename(prev, t.final); rerr != nil {
				slog.Error("Failed to restore previous output", logfields.Path(t.final), logfields.Error(rerr))
			}
		}
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "promote staged output").
			WithContext("path", t.root).Fatal().Build()
	}
	if hadFinal {
		if err := os.RemoveAll(prev); err != nil {
			slog.Warn("Failed to remove previous output backup", logfields.Path(prev), logfields.Error(err))
		}
	}
	slog.Debug("Promoted staged output", slog.String("staging", t.root), logfields.Output(t.final))
	t.root = t.final
	return nil
}

// Abort removes the staging directory, leaving the final directory untouched.
func (t *Tree) Abort() {
	if t.root == t.final {
		return
	}
	if err := os.RemoveAll(t.root); err != nil {
		slog.Warn("Failed to remove staging directory", logfields.Path(t.root), logfields.Error(err))
	}
}

// Abs maps a slash separated relative path to a path on disk.
func (t *Tree) Abs(rel string) string {
	return filepath.Join(t.root, filepath.FromSlash(rel))
}

// Clean removes every entry below the root, creating the root when missing.
// Running it on an empty or absent directory is not an error.
func (t *Tree) Clean() error {
	entries, err := os.ReadDir(t.root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "read output directory").
			WithContext("path", t.root).Fatal().Build()
	default:
		for _, e := range entries {
			if err := os.RemoveAll(filepath.Join(t.root, e.Name())); err != nil {
				return ferrors.WrapError(err, ferrors.CategoryFileSystem, "clear output directory").
					WithContext("path", filepath.Join(t.root, e.Name())).Fatal().Build()
			}
		}
	}
	if err := os.MkdirAll(t.root, 0o755); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create output directory").
			WithContext("path", t.root).Fatal().Build()
	}

	t.mu.Lock()
	t.emitted = make(map[string]File)
	t.mu.Unlock()
	return nil
}

// Write stores data at rel and records it. Rewriting a path replaces the record.
func (t *Tree) Write(rel string, data []byte, kind Kind, source string) error {
	if err := checkRel(rel); err != nil {
		return err
	}
	dst := t.Abs(rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create output directory").
			WithContext("path", filepath.Dir(dst)).Fatal().Build()
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write output file").
			WithContext("output", rel).Fatal().Build()
	}
	t.Record(File{Path: rel, Kind: kind, Size: int64(len(data)), Source: source})
	return nil
}

// Record registers a file already placed on disk by other means.
func (t *Tree) Record(f File) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emitted[f.Path] = f
}

// Has reports whether rel was emitted during this build.
func (t *Tree) Has(rel string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.emitted[rel]
	return ok
}

// Files returns the emitted files of the given kinds (all kinds when none
// are given) sorted by path.
func (t *Tree) Files(kinds ...Kind) []File {
	want := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}

	t.mu.Lock()
	out := make([]File, 0, len(t.emitted))
	for _, f := range t.emitted {
		if len(want) == 0 || want[f.Kind] {
			out = append(out, f)
		}
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func checkRel(rel string) error {
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(rel)))
	if rel == "" || filepath.IsAbs(rel) || clean == ".." || strings.HasPrefix(clean, "../") {
		return ferrors.InternalError(fmt.Sprintf("output path %q escapes the output root", rel)).Build()
	}
	return nil
}
