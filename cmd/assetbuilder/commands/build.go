package commands

import (
	"fmt"

	"git.home.luguber.info/inful/assetbuilder/internal/build"
	"git.home.luguber.info/inful/assetbuilder/internal/config"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Mode    string `name:"mode" help:"Build mode (development|production). Precedence: --mode > ASSETBUILDER_ENV > production."`
	NoCache bool   `name:"no-cache" help:"Recompress every image instead of reusing the compression cache"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	mode, err := config.ResolveMode(b.Mode)
	if err != nil {
		return err
	}
	cfg.Mode = mode

	ctx, cancel := signalContext()
	defer cancel()

	report, err := build.Run(ctx, cfg, build.Options{Mode: mode, DisableCache: b.NoCache})
	if report != nil {
		fmt.Println(report.Summary())
	}
	return err
}
