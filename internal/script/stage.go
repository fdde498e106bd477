// Package script bundles the application entry with esbuild. Alias
// specifiers, binary assets and stylesheet imports are handled by plugins so
// the bundle only contains JavaScript; stylesheets are handed to the style
// stage in import order.
package script

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/tidwall/gjson"

	"git.home.luguber.info/inful/assetbuilder/internal/alias"
	"git.home.luguber.info/inful/assetbuilder/internal/assets"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/output"
)

// OutputDir is the output-relative directory of bundles.
const OutputDir = "js"

// Stage bundles one entry script.
type Stage struct {
	Aliases    *alias.Table
	Router     *assets.Router
	Tree       *output.Tree
	Namer      output.Namer
	Target     api.Target
	Production bool
}

// Result describes the emitted bundle.
type Result struct {
	Entry  string   // output-relative path of the entry bundle
	Chunks []string // output-relative paths of shared chunks
	Styles []string // absolute stylesheet paths in import order
}

// Name returns the bundle name derived from the entry file: js/main.js -> main.
func Name(entry string) string {
	base := filepath.Base(entry)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Run bundles entry (absolute path).
func (s *Stage) Run(ctx context.Context, entry string) (Result, error) {
	if _, err := os.Stat(entry); errors.Is(err, fs.ErrNotExist) {
		return Result{}, ferrors.NotFoundError("script entry not found").
			WithContext("file", entry).Fatal().Build()
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	col := newCollector()
	opts := api.BuildOptions{
		EntryPoints:   []string{entry},
		AbsWorkingDir: s.Aliases.Root(),
		Outdir:        s.Tree.Root(),
		Bundle:        true,
		Splitting:     true,
		Format:        api.FormatESModule,
		Target:        s.Target,
		Write:         false,
		Metafile:      true,
		EntryNames:    OutputDir + "/[name]",
		ChunkNames:    OutputDir + "/[name].[hash]",
		LogLevel:      api.LogLevelSilent,
		Plugins: []api.Plugin{
			assetPlugin(s.Aliases, s.Router, col),
			styleCollector(s.Aliases, col),
			aliasPlugin(s.Aliases),
		},
	}
	if s.Production {
		// Dynamic imports become extra entry points; they keep the bundler's
		// hash since other outputs refer to them by name.
		opts.EntryNames = OutputDir + "/[name].[hash]"
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
		opts.Define = map[string]string{"process.env.NODE_ENV": `"production"`}
	} else {
		opts.Sourcemap = api.SourceMapLinked
		opts.Define = map[string]string{"process.env.NODE_ENV": `"development"`}
	}

	result := api.Build(opts)
	for _, w := range result.Warnings {
		slog.Warn("Script bundler warning", logfields.File(locationFile(w)), slog.String("message", w.Text))
	}
	if len(result.Errors) > 0 {
		if err := col.firstError(); err != nil {
			return Result{}, err
		}
		return Result{}, buildError(result.Errors[0])
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	name := Name(entry)
	res := Result{Styles: orderStyles(result.Metafile, col)}
	mainOut := entryOutput(result.Metafile, s.Aliases.Root(), entry)
	for _, f := range result.OutputFiles {
		rel, err := filepath.Rel(s.Tree.Root(), f.Path)
		if err != nil {
			return Result{}, ferrors.WrapError(err, ferrors.CategoryInternal, "bundle written outside the output root").Build()
		}
		rel = filepath.ToSlash(rel)

		kind := output.KindJS
		switch {
		case strings.HasSuffix(rel, ".map"):
			kind = output.KindMap
		case filepath.Clean(f.Path) == mainOut:
			rel = s.Namer.Name(OutputDir, name+".js", f.Contents)
			res.Entry = rel
		default:
			res.Chunks = append(res.Chunks, rel)
		}
		if err := s.Tree.Write(rel, f.Contents, kind, entry); err != nil {
			return Result{}, err
		}
	}
	if res.Entry == "" {
		return Result{}, ferrors.ScriptError("bundler produced no entry output").WithContext("file", entry).Build()
	}
	sort.Strings(res.Chunks)

	slog.Info("Bundled script", logfields.Output(res.Entry), slog.Int("chunks", len(res.Chunks)), slog.Int("styles", len(res.Styles)))
	return res, nil
}

// entryOutput returns the absolute path of the bundle produced for entry.
func entryOutput(metafile, workDir, entry string) string {
	want, err := filepath.Rel(workDir, entry)
	if err != nil {
		return ""
	}
	want = filepath.ToSlash(want)

	var found string
	gjson.Get(metafile, "outputs").ForEach(func(key, value gjson.Result) bool {
		if value.Get("entryPoint").String() == want && !strings.HasSuffix(key.String(), ".map") {
			found = filepath.Join(workDir, filepath.FromSlash(key.String()))
			return false
		}
		return true
	})
	return found
}

func locationFile(m api.Message) string {
	if m.Location == nil {
		return ""
	}
	return m.Location.File
}

func buildError(m api.Message) error {
	b := ferrors.ScriptError(m.Text)
	if m.Location != nil {
		b = b.WithContext("file", m.Location.File).
			WithContext("line", m.Location.Line).
			WithContext("column", m.Location.Column)
	}
	if m.PluginName != "" {
		b = b.WithContext("plugin", m.PluginName)
	}
	return b.Build()
}

// orderStyles walks the metafile import graph depth first from the entry so
// stylesheets come out in the order they are first imported. Files seen by the
// collector but absent from the graph are appended sorted.
func orderStyles(metafile string, col *collector) []string {
	col.mu.Lock()
	pending := make(map[string]bool, len(col.styles))
	for p := range col.styles {
		pending[p] = true
	}
	col.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}

	meta := gjson.Parse(metafile)
	graph := make(map[string][]string)
	meta.Get("inputs").ForEach(func(key, value gjson.Result) bool {
		var imports []string
		value.Get("imports").ForEach(func(_, imp gjson.Result) bool {
			imports = append(imports, imp.Get("path").String())
			return true
		})
		graph[key.String()] = imports
		return true
	})

	var roots []string
	meta.Get("outputs").ForEach(func(_, value gjson.Result) bool {
		if ep := value.Get("entryPoint"); ep.Exists() {
			roots = append(roots, ep.String())
		}
		return true
	})

	var ordered []string
	visited := make(map[string]bool)
	var visit func(node string)
	visit = func(node string) {
		if visited[node] {
			return
		}
		visited[node] = true
		if p, ok := strings.CutPrefix(node, namespaceStyle+":"); ok && pending[p] {
			ordered = append(ordered, p)
			delete(pending, p)
		}
		for _, next := range graph[node] {
			visit(next)
		}
	}
	for _, r := range roots {
		visit(r)
	}

	rest := make([]string, 0, len(pending))
	for p := range pending {
		rest = append(rest, p)
	}
	sort.Strings(rest)
	if len(rest) > 0 {
		slog.Debug("Stylesheets outside the import graph", slog.String("files", fmt.Sprint(rest)))
	}
	return append(ordered, rest...)
}
