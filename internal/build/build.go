package build

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"git.home.luguber.info/inful/assetbuilder/internal/alias"
	"git.home.luguber.info/inful/assetbuilder/internal/assets"
	"git.home.luguber.info/inful/assetbuilder/internal/compress"
	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/git"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
	"git.home.luguber.info/inful/assetbuilder/internal/output"
	"git.home.luguber.info/inful/assetbuilder/internal/style"
)

// StaticDir is the source directory copied verbatim into the output root.
const StaticDir = "assets"

// TemplatesDir holds pages, layouts and partials below the source root.
const TemplatesDir = "templates"

// Options are the per-invocation switches shared by every stage.
type Options struct {
	// Mode overrides the configuration's mode when set.
	Mode     config.Mode
	Recorder metrics.Recorder
	Observer BuildObserver

	// Sass and Less replace the external compilers named in the configuration.
	Sass style.Preprocessor
	Less style.Preprocessor

	// Compressors replaces the default image compressors.
	Compressors []compress.Compressor
	// DisableCache skips the persistent compression cache.
	DisableCache bool
	// SkipReport disables writing the report to the cache directory.
	SkipReport bool
}

// Run executes one full build. The returned report is never nil; the error is
// the first fatal or canceled StageError.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Report, error) {
	mode := opts.Mode
	if mode == "" {
		mode = cfg.Mode
	}
	if mode == "" {
		mode = config.ModeProduction
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}

	report := NewReport(mode)
	log := slog.With(logfields.BuildID(report.BuildID), logfields.Mode(mode.String()))
	log.Info("Build started", slog.String("src", cfg.SourceRoot()), slog.String("dist", cfg.OutputRoot()))

	bs, err := newBuildState(cfg, opts, mode, report)
	if err == nil {
		err = runStages(ctx, bs, StagesFor(mode))
		if err == nil {
			if perr := bs.Tree.Promote(); perr != nil {
				serr := NewFatalStageError(StagePrepareOutput, perr)
				report.AddError(serr)
				report.RecordStageResult(StagePrepareOutput, StageResultFatal, opts.Recorder)
				err = serr
			}
		}
		if err != nil {
			bs.Tree.Abort()
		}
	} else {
		report.AddError(NewFatalStageError(StagePrepareOutput, err))
		report.RecordStageResult(StagePrepareOutput, StageResultFatal, opts.Recorder)
		err = report.Errors[0]
	}

	if bs != nil {
		report.Files = bs.Tree.Files()
		report.Assets = bs.Router.Routed()
	}
	if rev, rerr := git.ReadRevision(cfg.BaseDir()); rerr == nil {
		report.Revision = &rev
	} else if !errors.Is(rerr, git.ErrNotRepository) {
		log.Debug("Source revision unavailable", logfields.Error(rerr))
	}
	report.Finish()
	report.DeriveOutcome()
	observerFor(opts).OnBuildComplete(report)

	if !opts.SkipReport {
		if perr := report.Persist(cfg.CacheRoot()); perr != nil {
			log.Warn("Failed to persist build report", logfields.Error(perr))
		}
	}

	if err != nil {
		log.Error("Build failed", slog.String("outcome", string(report.Outcome)), logfields.Error(err))
		return report, err
	}
	log.Info("Build finished", slog.String("summary", report.Summary()))
	return report, nil
}

func newBuildState(cfg *config.Config, opts Options, mode config.Mode, report *Report) (*BuildState, error) {
	aliases, err := alias.New(cfg.SourceRoot())
	if err != nil {
		return nil, err
	}
	namer := output.Namer{Hashed: mode.IsProduction()}
	tree := output.NewStagedTree(cfg.OutputRoot(), report.BuildID)
	router, err := assets.NewRouter(assets.Options{
		SrcRoot:   aliases.Root(),
		StaticDir: StaticDir,
		Rules:     assets.DefaultRules(cfg.Fonts.InlineLimit),
		Tree:      tree,
		Namer:     namer,
	})
	if err != nil {
		return nil, err
	}
	if filepath.Clean(tree.Final()) == filepath.Clean(aliases.Root()) {
		return nil, ferrors.ConfigError("output directory must differ from the source root").
			WithContext("path", tree.Final()).Fatal().Build()
	}
	return &BuildState{
		Config:  cfg,
		Options: opts,
		Mode:    mode,
		Aliases: aliases,
		Router:  router,
		Tree:    tree,
		Namer:   namer,
		Report:  report,
	}, nil
}
