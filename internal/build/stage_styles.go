package build

import (
	"context"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/script"
	"git.home.luguber.info/inful/assetbuilder/internal/style"
)

// stageStyles extracts the stylesheets imported by the script graph, followed
// by configured extra entries, into one file named after the script entry.
func stageStyles(ctx context.Context, bs *BuildState) error {
	post, err := style.LoadPostprocess(bs.Config.PostprocessPath())
	if err != nil {
		return err
	}

	sources := append([]string(nil), bs.Script.Styles...)
	for _, extra := range bs.Config.Styles.Extra {
		abs, ok := bs.Aliases.Resolve(extra)
		if !ok {
			abs = filepath.Join(bs.Aliases.Root(), filepath.FromSlash(extra))
		}
		if !style.IsStyle(abs) {
			return ferrors.ConfigError("styles.extra entry is not a stylesheet").
				WithContext("file", extra).Fatal().Build()
		}
		sources = append(sources, abs)
	}

	st := &style.Stage{
		Aliases:     bs.Aliases,
		Router:      bs.Router,
		Tree:        bs.Tree,
		Namer:       bs.Namer,
		Minify:      bs.production(),
		Postprocess: post,
		Sass:        bs.Options.Sass,
		Less:        bs.Options.Less,
	}
	if st.Sass == nil {
		st.Sass = style.SassCompiler(bs.Config.Styles.SassBinary, bs.Aliases.Root())
	}
	if st.Less == nil {
		st.Less = style.LessCompiler(bs.Config.Styles.LessBinary, bs.Aliases.Root())
	}

	res, err := st.Run(ctx, script.Name(bs.Config.Entry), sources)
	if err != nil {
		return err
	}
	bs.Style = res
	bs.Report.Stylesheet = res.Output
	return nil
}
