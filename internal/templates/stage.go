package templates

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/assetbuilder/internal/alias"
	"git.home.luguber.info/inful/assetbuilder/internal/assets"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/frontmatter"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/minifier"
	"git.home.luguber.info/inful/assetbuilder/internal/output"
)

// DefaultLayout is executed for Markdown pages without a layout key.
const DefaultLayout = "base"

// PageData describes the page being rendered.
type PageData struct {
	ID     string
	Title  string
	Params map[string]any
}

// Data is the value templates execute against.
type Data struct {
	Page    PageData
	Mode    string
	Styles  []string // URLs relative to the document
	Scripts []string // URLs relative to the document
	Content template.HTML
}

// Stage renders every target into the output tree.
type Stage struct {
	Root    string // templates root, e.g. <src>/templates
	Aliases *alias.Table
	Router  *assets.Router
	Tree    *output.Tree
	Mode    string
	Minify  bool
}

// Assets are the output-relative URLs injected into every document.
type Assets struct {
	Styles  []string
	Scripts []string
}

// Run renders targets in order. Templates are parsed once; each page gets a
// clone of the shared layouts and partials.
func (s *Stage) Run(ctx context.Context, targets []Target, emitted Assets) ([]string, error) {
	base, err := s.baseSet()
	if err != nil {
		return nil, err
	}

	var written []string
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		doc, err := s.render(base, t, emitted)
		if err != nil {
			return written, err
		}
		if err := s.Tree.Write(t.Output, doc, output.KindHTML, t.Source); err != nil {
			return written, err
		}
		written = append(written, t.Output)
		slog.Debug("Rendered page", logfields.Page(t.ID), logfields.Output(t.Output))
	}
	slog.Info("Rendered documents", slog.Int("count", len(written)))
	return written, nil
}

// baseSet parses every layout and partial into one template set.
func (s *Stage) baseSet() (*template.Template, error) {
	set := template.New("").Funcs(s.placeholderFuncs())
	for _, dir := range []string{layoutsDir, partialsDir} {
		files, err := htmlFiles(filepath.Join(s.Root, dir))
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			content, err := os.ReadFile(f)
			if err != nil {
				return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read template").
					WithContext("file", f).Fatal().Build()
			}
			name := filepath.ToSlash(strings.TrimSuffix(mustRel(s.Root, f), ".html"))
			// Layouts are also addressable by their bare file name.
			if _, err := set.New(name).Parse(string(content)); err != nil {
				return nil, templateError(err, f)
			}
			if short := path.Base(name); short != name && set.Lookup(short) == nil {
				if _, err := set.New(short).Parse(string(content)); err != nil {
					return nil, templateError(err, f)
				}
			}
		}
	}
	return set, nil
}

func (s *Stage) render(base *template.Template, t Target, emitted Assets) ([]byte, error) {
	set, err := base.Clone()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "clone template set").Build()
	}
	dir := path.Dir(t.Output)
	set.Funcs(s.funcs(dir))

	content, err := os.ReadFile(t.Source)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read template").
			WithContext("file", t.Source).WithContext("page", t.ID).Fatal().Build()
	}

	data := Data{
		Page:    PageData{ID: t.ID, Title: t.ID, Params: map[string]any{}},
		Mode:    s.Mode,
		Styles:  relativeAll(emitted.Styles, dir),
		Scripts: relativeAll(emitted.Scripts, dir),
	}

	exec := "page:" + t.ID
	if t.Markdown {
		meta, body, err := frontmatter.Parse(content)
		if err != nil {
			return nil, templateError(err, t.Source)
		}
		html, err := renderMarkdown(body)
		if err != nil {
			return nil, templateError(err, t.Source)
		}
		if meta.Title != "" {
			data.Page.Title = meta.Title
		}
		data.Page.Params = meta.Params
		data.Content = template.HTML(html) // #nosec G203 -- rendered from project sources
		exec = meta.Layout
		if exec == "" {
			exec = DefaultLayout
		}
		if set.Lookup(exec) == nil {
			return nil, ferrors.TemplateError("layout not found").
				WithContext("file", t.Source).WithContext("layout", exec).Build()
		}
	} else if _, err := set.New(exec).Parse(string(content)); err != nil {
		return nil, templateError(err, t.Source)
	}

	var buf bytes.Buffer
	if err := set.ExecuteTemplate(&buf, exec, data); err != nil {
		var ce *ferrors.ClassifiedError
		if errors.As(err, &ce) {
			return nil, ce
		}
		return nil, templateError(err, t.Source)
	}

	doc, err := Inject(buf.Bytes(), data.Styles, data.Scripts)
	if err != nil {
		return nil, templateError(err, t.Source)
	}
	if s.Minify {
		doc, err = minifier.Minify(minifier.MediaHTML, doc)
		if err != nil {
			return nil, templateError(err, t.Source)
		}
	}
	return doc, nil
}

// placeholderFuncs lets the shared set parse before per-page functions exist.
func (s *Stage) placeholderFuncs() template.FuncMap {
	return s.funcs(".")
}

// funcs returns the template helpers for a document living in dir.
func (s *Stage) funcs(dir string) template.FuncMap {
	return template.FuncMap{
		"asset": func(ref string) (string, error) {
			abs, ok := s.Aliases.Resolve(ref)
			if !ok {
				abs = filepath.Join(s.Aliases.Root(), filepath.FromSlash(strings.TrimPrefix(ref, "/")))
			}
			res, err := s.Router.Route(abs)
			if err != nil {
				return "", err
			}
			return assets.RelativeURL(res.URL, dir), nil
		},
		"sprite": func() (string, error) {
			url, ok, err := s.Router.SpriteURL()
			if err != nil || !ok {
				return "", err
			}
			return assets.RelativeURL(url, dir), nil
		},
	}
}

func relativeAll(urls []string, dir string) []string {
	out := make([]string, len(urls))
	for i, u := range urls {
		out[i] = assets.RelativeURL(u, dir)
	}
	return out
}

func htmlFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(p) == ".html" {
			files = append(files, p)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "list templates").
			WithContext("path", dir).Fatal().Build()
	}
	sort.Strings(files)
	return files, nil
}

func mustRel(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return filepath.Base(p)
	}
	return rel
}

func templateError(err error, file string) error {
	return ferrors.WrapError(err, ferrors.CategoryTemplate, fmt.Sprintf("render %s", filepath.Base(file))).
		WithContext("file", file).Fatal().Build()
}
