package compress

import (
	"context"
	"log/slog"
	"os"
	"path"
	"strings"

	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/output"
)

// Stats summarizes one compression pass.
type Stats struct {
	Files       int   `json:"files"`
	Compressed  int   `json:"compressed"`
	Unchanged   int   `json:"unchanged"`
	CacheHits   int   `json:"cache_hits"`
	Failed      int   `json:"failed"`
	BytesBefore int64 `json:"bytes_before"`
	BytesAfter  int64 `json:"bytes_after"`
}

// Failure records a file that could not be compressed. The file is left as emitted.
type Failure struct {
	File string
	Err  error
}

// Options configures Run.
type Options struct {
	Compressors []Compressor
	Cache       Cache // optional
}

// Run compresses every image and sprite recorded in tree. Per-file failures
// are returned rather than aborting; only context cancellation stops the pass.
func Run(ctx context.Context, tree *output.Tree, opts Options) (Stats, []Failure, error) {
	byExt := make(map[string]Compressor)
	for _, c := range opts.Compressors {
		for _, ext := range c.Extensions() {
			byExt[ext] = c
		}
	}

	var stats Stats
	var failures []Failure
	for _, f := range tree.Files(output.KindImage, output.KindSprite) {
		if err := ctx.Err(); err != nil {
			return stats, failures, err
		}
		c, ok := byExt[strings.ToLower(path.Ext(f.Path))]
		if !ok {
			continue
		}
		stats.Files++

		before, after, hit, err := compressFile(ctx, tree, f, c, opts.Cache)
		stats.BytesBefore += before
		stats.BytesAfter += after
		if hit {
			stats.CacheHits++
		}
		switch {
		case err != nil:
			stats.Failed++
			failures = append(failures, Failure{File: f.Path, Err: err})
			slog.Warn("Image compression failed; keeping original", logfields.File(f.Path), logfields.Error(err))
		case after < before:
			stats.Compressed++
		default:
			stats.Unchanged++
		}
	}
	return stats, failures, nil
}

func compressFile(ctx context.Context, tree *output.Tree, f output.File, c Compressor, cache Cache) (before, after int64, hit bool, err error) {
	abs := tree.Abs(f.Path)
	data, err := os.ReadFile(abs)
	if err != nil {
		return 0, 0, false, err
	}
	before = int64(len(data))
	after = before

	key := Key(data, c.ID())
	var result []byte
	if cache != nil {
		cached, ok, cerr := cache.Get(ctx, key)
		if cerr != nil {
			slog.Warn("Image cache lookup failed", logfields.File(f.Path), logfields.Error(cerr))
		}
		if ok {
			result, hit = cached, true
		}
	}

	if !hit {
		result, err = c.Compress(data)
		if err != nil {
			return before, after, false, err
		}
		if len(result) >= len(data) {
			result = data
		}
		if cache != nil {
			if perr := cache.Put(ctx, key, c.ID(), result); perr != nil {
				slog.Warn("Image cache store failed", logfields.File(f.Path), logfields.Error(perr))
			}
		}
	}

	if len(result) >= len(data) {
		return before, after, hit, nil
	}
	if err := os.WriteFile(abs, result, 0o644); err != nil {
		return before, after, hit, err
	}
	f.Size = int64(len(result))
	tree.Record(f)
	slog.Debug("Compressed image", logfields.File(f.Path), logfields.Bytes(len(result)))
	return before, int64(len(result)), hit, nil
}
