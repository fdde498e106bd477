// Package alias maps symbolic import prefixes such as "@img" onto absolute
// directories under the source root.
package alias

import (
	"path/filepath"
	"sort"
	"strings"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// Prefixes and the source-relative directory each one names.
var suffixes = map[string]string{
	"@":          "",
	"@img":       "img",
	"@templates": "templates",
	"@fonts":     "fonts",
	"@styles":    "styles",
	"@modules":   "js/modules",
	"@assets":    "assets",
}

// Entry is one row of the alias table.
type Entry struct {
	Prefix string
	Path   string
}

// Table is the fixed alias table for one source root. It is immutable after New.
type Table struct {
	root    string
	entries []Entry // longest prefix first
}

// New builds the table for srcRoot. The directories are not required to exist.
func New(srcRoot string) (*Table, error) {
	abs, err := filepath.Abs(srcRoot)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "resolve source root").
			WithContext("path", srcRoot).Fatal().Build()
	}

	t := &Table{root: abs}
	for prefix, suffix := range suffixes {
		t.entries = append(t.entries, Entry{Prefix: prefix, Path: filepath.Join(abs, filepath.FromSlash(suffix))})
	}
	sort.Slice(t.entries, func(i, j int) bool {
		if len(t.entries[i].Prefix) != len(t.entries[j].Prefix) {
			return len(t.entries[i].Prefix) > len(t.entries[j].Prefix)
		}
		return t.entries[i].Prefix < t.entries[j].Prefix
	})
	return t, nil
}

// Root returns the absolute source root.
func (t *Table) Root() string { return t.root }

// Resolve rewrites ref when it starts with a known prefix followed by "/" or
// end of string. The longest matching prefix wins.
func (t *Table) Resolve(ref string) (string, bool) {
	for _, e := range t.entries {
		if !strings.HasPrefix(ref, e.Prefix) {
			continue
		}
		rest := ref[len(e.Prefix):]
		switch {
		case rest == "":
			return e.Path, true
		case rest[0] == '/':
			return filepath.Join(e.Path, filepath.FromSlash(rest[1:])), true
		}
	}
	return "", false
}

// Entries returns the table sorted by prefix.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Prefix < out[j].Prefix })
	return out
}
