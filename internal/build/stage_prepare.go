package build

import (
	"context"
	"log/slog"
	"path/filepath"

	"git.home.luguber.info/inful/assetbuilder/internal/pages"
	"git.home.luguber.info/inful/assetbuilder/internal/templates"
)

// stagePrepareOutput registers page targets and creates an empty staging
// tree. The previous output is replaced only when every stage succeeds.
func stagePrepareOutput(_ context.Context, bs *BuildState) error {
	list, err := pages.Load(filepath.Join(bs.Aliases.Root(), filepath.FromSlash(bs.Config.Pages.Manifest)), bs.Config.Pages.Key)
	if err != nil {
		return err
	}
	targets, err := templates.TargetsFor(list, filepath.Join(bs.Aliases.Root(), TemplatesDir), bs.Config.EntryTemplate)
	if err != nil {
		return err
	}
	bs.Targets = targets
	bs.Report.Pages = []string(list)

	if err := bs.Tree.Clean(); err != nil {
		return err
	}
	slog.Info("Prepared output", slog.String("staging", bs.Tree.Root()), slog.String("dist", bs.Tree.Final()), slog.Int("targets", len(targets)))
	return nil
}
