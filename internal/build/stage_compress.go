package build

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/assetbuilder/internal/compress"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

// stageCompressImages compresses every emitted image and sprite. Files that
// fail are left as emitted and surface as one warning per file.
func stageCompressImages(ctx context.Context, bs *BuildState) error {
	compressors := bs.Options.Compressors
	if compressors == nil {
		compressors = compress.DefaultCompressors(compress.Settings{
			GIFInterlaced:   bs.Config.Images.GIFInterlaced,
			JPEGProgressive: bs.Config.Images.JPEGProgressive,
			PNGLevel:        bs.Config.Images.PNGLevel,
		})
	}

	opts := compress.Options{Compressors: compressors}
	if !bs.Options.DisableCache {
		cache, err := compress.OpenCache(bs.Config.CacheRoot())
		if err != nil {
			slog.Warn("Image cache unavailable; compressing without it", logfields.Error(err))
		} else {
			defer func() {
				if cerr := cache.Close(); cerr != nil {
					slog.Warn("Failed to close image cache", logfields.Error(cerr))
				}
			}()
			opts.Cache = cache
		}
	}

	stats, failures, err := compress.Run(ctx, bs.Tree, opts)
	bs.Report.Compression = &stats
	if err != nil {
		return err
	}
	slog.Info("Compressed images",
		slog.Int("files", stats.Files),
		slog.Int("compressed", stats.Compressed),
		slog.Int("cache_hits", stats.CacheHits),
		slog.Int64("saved_bytes", stats.BytesBefore-stats.BytesAfter))

	if len(failures) == 0 {
		return nil
	}
	// All but the last failure are recorded directly; the last one becomes the
	// stage's warning so the stage result reads "warning".
	for _, f := range failures[:len(failures)-1] {
		bs.Report.AddWarning(NewWarnStageError(StageCompressImages, failureError(f)))
	}
	return NewWarnStageError(StageCompressImages, failureError(failures[len(failures)-1]))
}

func failureError(f compress.Failure) error {
	return ferrors.WrapError(f.Err, ferrors.CategoryAsset, "image compression failed").
		WithContext("file", f.File).Warning().Build()
}
