package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/assetbuilder/internal/alias"
	"git.home.luguber.info/inful/assetbuilder/internal/build"
	"git.home.luguber.info/inful/assetbuilder/internal/config"
	"git.home.luguber.info/inful/assetbuilder/internal/pages"
	"git.home.luguber.info/inful/assetbuilder/internal/templates"
)

// InspectCmd prints what a build would do.
type InspectCmd struct {
	Mode string `name:"mode" help:"Build mode to plan for (development|production)"`
}

func (c *InspectCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	mode, err := config.ResolveMode(c.Mode)
	if err != nil {
		return err
	}
	return Inspect(os.Stdout, cfg, mode)
}

// Inspect writes the alias table, page targets and stage plan for cfg to w.
func Inspect(w io.Writer, cfg *config.Config, mode config.Mode) error {
	src := cfg.SourceRoot()
	table, err := alias.New(src)
	if err != nil {
		return err
	}
	list, err := pages.Load(filepath.Join(src, filepath.FromSlash(cfg.Pages.Manifest)), cfg.Pages.Key)
	if err != nil {
		return err
	}
	targets, err := templates.TargetsFor(list, filepath.Join(src, build.TemplatesDir), cfg.EntryTemplate)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "mode: %s\nsource: %s\noutput: %s\n\n", mode, src, cfg.OutputRoot())
	fmt.Fprintln(w, "aliases:")
	for _, e := range table.Entries() {
		fmt.Fprintf(w, "  %-12s %s\n", e.Prefix, e.Path)
	}
	fmt.Fprintln(w, "\npages:")
	for _, t := range targets {
		rel, relErr := filepath.Rel(src, t.Source)
		if relErr != nil {
			rel = t.Source
		}
		fmt.Fprintf(w, "  %-12s %s -> %s\n", t.ID, filepath.ToSlash(rel), t.Output)
	}
	names := build.StageNames(mode)
	stages := make([]string, len(names))
	for i, n := range names {
		stages[i] = string(n)
	}
	fmt.Fprintf(w, "\nstages: %s\n", strings.Join(stages, " -> "))
	return nil
}
