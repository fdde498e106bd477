package build

import (
	"context"
	"log/slog"
	"path/filepath"
)

func stageStaticCopy(_ context.Context, bs *BuildState) error {
	n, err := bs.Tree.CopyTree(filepath.Join(bs.Aliases.Root(), StaticDir))
	if err != nil {
		return err
	}
	slog.Info("Copied static assets", slog.Int("files", n))
	return nil
}
