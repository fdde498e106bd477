package style

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/assetbuilder/internal/alias"
	"git.home.luguber.info/inful/assetbuilder/internal/assets"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/minifier"
	"git.home.luguber.info/inful/assetbuilder/internal/output"
)

// OutputDir is the output-relative directory of extracted stylesheets.
const OutputDir = "css"

// Stage compiles and extracts stylesheets.
type Stage struct {
	Aliases     *alias.Table
	Router      *assets.Router
	Tree        *output.Tree
	Namer       output.Namer
	Minify      bool
	Postprocess *PostprocessConfig // nil skips postprocessing

	Sass Preprocessor
	Less Preprocessor
}

// Result describes the extracted stylesheet.
type Result struct {
	Output  string   // output-relative path; empty when there were no sources
	Sources []string // absolute source paths in concatenation order
}

// Run compiles sources in order and writes css/<name>.css (hashed in
// production). Duplicate sources are compiled once.
func (s *Stage) Run(ctx context.Context, name string, sources []string) (Result, error) {
	var res Result
	seen := make(map[string]bool, len(sources))
	var bundle bytes.Buffer

	for _, src := range sources {
		src = filepath.Clean(src)
		if seen[src] {
			continue
		}
		seen[src] = true
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		compiled, err := s.compile(ctx, src)
		if err != nil {
			return Result{}, err
		}
		rewritten, err := RewriteURLs(compiled, src, s.resolveURL)
		if err != nil {
			return Result{}, withFile(err, src)
		}
		if bundle.Len() > 0 && !bytes.HasSuffix(bundle.Bytes(), []byte("\n")) {
			bundle.WriteByte('\n')
		}
		bundle.Write(rewritten)
		res.Sources = append(res.Sources, src)
	}
	if len(res.Sources) == 0 {
		return res, nil
	}

	css := bundle.Bytes()
	if s.Postprocess != nil {
		processed, err := s.Postprocess.Apply(css, name+".css")
		if err != nil {
			return Result{}, ferrors.WrapError(err, ferrors.CategoryStyle, "postprocess failed").
				WithContext("output", name+".css").Fatal().Build()
		}
		css = processed
	}
	if s.Minify {
		minified, err := minifier.Minify(minifier.MediaCSS, css)
		if err != nil {
			return Result{}, ferrors.WrapError(err, ferrors.CategoryStyle, "minify stylesheet").
				WithContext("output", name+".css").Fatal().Build()
		}
		css = minified
	}

	res.Output = s.Namer.Name(OutputDir, name+".css", css)
	if err := s.Tree.Write(res.Output, css, output.KindCSS, ""); err != nil {
		return Result{}, err
	}
	slog.Info("Extracted stylesheet", logfields.Output(res.Output), slog.Int("sources", len(res.Sources)))
	return res, nil
}

func (s *Stage) compile(ctx context.Context, file string) ([]byte, error) {
	dialect, ok := DialectFor(file)
	if !ok {
		return nil, ferrors.StyleError("unsupported stylesheet type").WithContext("file", file).Build()
	}
	var p Preprocessor = plainCSS{}
	switch dialect {
	case DialectSass:
		p = s.Sass
	case DialectLess:
		p = s.Less
	}
	if p == nil {
		return nil, ferrors.StyleError(fmt.Sprintf("no compiler configured for %s", dialect)).
			WithContext("file", file).Build()
	}
	if dialect != DialectCSS {
		// The compiler reports a missing input less clearly than we can.
		if _, err := (plainCSS{}).Compile(ctx, file); err != nil {
			return nil, err
		}
	}
	slog.Debug("Compiling stylesheet", logfields.File(file), slog.String("dialect", string(dialect)))
	return p.Compile(ctx, file)
}

// resolveURL routes a stylesheet reference and returns its URL as seen from
// the css/ directory.
func (s *Stage) resolveURL(ref, fromFile string) (string, bool, error) {
	if IsExternalRef(ref) {
		return "", false, nil
	}
	target, suffix := SplitSuffix(strings.TrimPrefix(ref, "~"))

	abs, ok := s.Aliases.Resolve(target)
	if !ok {
		abs = filepath.Join(filepath.Dir(fromFile), filepath.FromSlash(target))
	}
	routed, err := s.Router.Route(abs)
	if err != nil {
		return "", false, err
	}
	if routed.Inline {
		return routed.URL, true, nil
	}
	return assets.RelativeURL(path.Clean(routed.URL), OutputDir) + suffix, true, nil
}

func withFile(err error, file string) error {
	if ce, ok := ferrors.AsClassified(err); ok {
		if _, has := ce.Context().Get("file"); has {
			return ce
		}
		return ce.WithContext("file", file)
	}
	return ferrors.WrapError(err, ferrors.CategoryStyle, "rewrite stylesheet urls").
		WithContext("file", file).Fatal().Build()
}
