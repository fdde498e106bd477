package build

import (
	"git.home.luguber.info/inful/assetbuilder/internal/alias"
	"git.home.luguber.info/inful/assetbuilder/internal/assets"
	"git.home.luguber.info/inful/assetbuilder/internal/config"
	"git.home.luguber.info/inful/assetbuilder/internal/output"
	"git.home.luguber.info/inful/assetbuilder/internal/script"
	"git.home.luguber.info/inful/assetbuilder/internal/style"
	"git.home.luguber.info/inful/assetbuilder/internal/templates"
)

// BuildState carries the inputs every stage reads and the results earlier
// stages hand to later ones. It lives for one Run.
type BuildState struct {
	Config  *config.Config
	Options Options
	Mode    config.Mode

	Aliases *alias.Table
	Router  *assets.Router
	Tree    *output.Tree
	Namer   output.Namer

	Targets []templates.Target
	Script  script.Result
	Style   style.Result

	Report *Report
}

// production reports whether mode-dependent optimizations apply.
func (bs *BuildState) production() bool { return bs.Mode.IsProduction() }

func (bs *BuildState) observer() BuildObserver { return observerFor(bs.Options) }

func observerFor(opts Options) BuildObserver {
	obs := multiObserver{RecorderObserver{Recorder: opts.Recorder}}
	if opts.Observer != nil {
		obs = append(obs, opts.Observer)
	}
	return obs
}
