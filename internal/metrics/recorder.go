package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// ImageResultLabel enumerates per-file image compression results.
type ImageResultLabel string

const (
	ImageCompressed ImageResultLabel = "compressed"
	ImageUnchanged  ImageResultLabel = "unchanged"
	ImageCacheHit   ImageResultLabel = "cache_hit"
	ImageFailed     ImageResultLabel = "failed"
)

// Recorder defines observability hooks for build and stage metrics. Implementations
// may forward to Prometheus or anything else. NoopRecorder is the default so callers
// never need nil checks.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncBuildOutcome(outcome string) // outcome: success|warning|failed|canceled
	IncImageResult(result ImageResultLabel, n int)
	AddImageBytes(before, after int64)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncBuildOutcome(string)                     {}
func (NoopRecorder) IncImageResult(ImageResultLabel, int)       {}
func (NoopRecorder) AddImageBytes(int64, int64)                 {}
