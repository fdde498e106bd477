package commands

import (
	"git.home.luguber.info/inful/assetbuilder/internal/config"
	"git.home.luguber.info/inful/assetbuilder/internal/preview"
)

// ServeCmd runs the development server with live reload.
type ServeCmd struct {
	Host string `name:"host" help:"Listen host (overrides server.host)"`
	Port int    `short:"p" name:"port" help:"Listen port (overrides server.port)"`
}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	cfg.Mode = config.ModeDevelopment
	if s.Host != "" {
		cfg.Server.Host = s.Host
	}
	if s.Port != 0 {
		cfg.Server.Port = s.Port
	}

	ctx, cancel := signalContext()
	defer cancel()
	return preview.Serve(ctx, preview.Options{Config: cfg})
}
