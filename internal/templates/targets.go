// Package templates renders the HTML documents of the build: the root entry
// template plus one document per identifier in the page list. Pages are
// html/template files or Markdown with a front-matter header, executed inside
// the shared layouts and partials. After rendering, stylesheet and script
// references are injected and production output is minified.
package templates

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/pages"
)

const (
	// EntryID identifies the root document among the targets.
	EntryID = "index"
	// DefaultEntryTemplate is the entry template relative to the templates root.
	DefaultEntryTemplate = "pages/index.html"

	pagesDir    = "pages"
	layoutsDir  = "layouts"
	partialsDir = "partials"
)

// Target maps one page to its source template and output document.
type Target struct {
	ID       string
	Source   string // absolute template path
	Output   string // output-relative, slash separated
	Markdown bool
}

// TargetsFor returns the entry target followed by one target per page in list
// order. A page whose document is the entry's is folded into it. Every
// template is checked before anything is rendered: a missing one is a fatal
// not-found error naming the page.
func TargetsFor(list pages.List, tplRoot, entryTemplate string) ([]Target, error) {
	entry := filepath.Join(tplRoot, filepath.FromSlash(entryTemplate))
	if !exists(entry) {
		return nil, ferrors.NotFoundError("entry template not found").
			WithContext("file", entry).WithContext("page", EntryID).Fatal().Build()
	}
	targets := []Target{{ID: EntryID, Source: entry, Output: "index.html", Markdown: filepath.Ext(entry) == ".md"}}
	seen := map[string]bool{"index.html": true}

	for _, id := range list {
		out := id + ".html"
		if seen[out] {
			continue
		}
		src, markdown, ok := pageSource(tplRoot, id)
		if !ok {
			return nil, ferrors.NotFoundError("no template for page").
				WithContext("page", id).
				WithContext("file", filepath.Join(tplRoot, pagesDir, filepath.FromSlash(id)+".html")).
				Fatal().Build()
		}
		seen[out] = true
		targets = append(targets, Target{ID: id, Source: src, Output: path.Clean(out), Markdown: markdown})
	}
	return targets, nil
}

func pageSource(tplRoot, id string) (string, bool, bool) {
	base := filepath.Join(tplRoot, pagesDir, filepath.FromSlash(id))
	if exists(base + ".html") {
		return base + ".html", false, true
	}
	if exists(base + ".md") {
		return base + ".md", true, true
	}
	return "", false, false
}

func exists(p string) bool {
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) || err != nil {
		return false
	}
	return !info.IsDir()
}
