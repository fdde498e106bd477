package build

import (
	"context"
	"path/filepath"

	"git.home.luguber.info/inful/assetbuilder/internal/templates"
)

func stageTemplates(ctx context.Context, bs *BuildState) error {
	var emitted templates.Assets
	if bs.Style.Output != "" {
		emitted.Styles = append(emitted.Styles, bs.Style.Output)
	}
	if bs.Script.Entry != "" {
		emitted.Scripts = append(emitted.Scripts, bs.Script.Entry)
	}

	st := &templates.Stage{
		Root:    filepath.Join(bs.Aliases.Root(), TemplatesDir),
		Aliases: bs.Aliases,
		Router:  bs.Router,
		Tree:    bs.Tree,
		Mode:    bs.Mode.String(),
		Minify:  bs.production(),
	}
	written, err := st.Run(ctx, bs.Targets, emitted)
	bs.Report.Documents = written
	return err
}
