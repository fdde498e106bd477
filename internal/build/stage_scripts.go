package build

import (
	"context"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/script"
)

func stageScripts(ctx context.Context, bs *BuildState) error {
	target, ok := script.ParseTarget(bs.Config.Script.Target)
	if !ok {
		return ferrors.ConfigError("unknown script target").
			WithContext("target", bs.Config.Script.Target).Fatal().Build()
	}
	st := &script.Stage{
		Aliases:    bs.Aliases,
		Router:     bs.Router,
		Tree:       bs.Tree,
		Namer:      bs.Namer,
		Target:     target,
		Production: bs.production(),
	}
	res, err := st.Run(ctx, filepath.Join(bs.Aliases.Root(), filepath.FromSlash(bs.Config.Entry)))
	if err != nil {
		return err
	}
	bs.Script = res
	bs.Report.Entry = res.Entry
	bs.Report.Chunks = res.Chunks
	return nil
}
