package build

import (
	"time"

	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
)

// BuildObserver receives callbacks around stage execution and build lifecycle.
type BuildObserver interface {
	OnStageStart(stage StageName)
	OnStageComplete(stage StageName, duration time.Duration, result StageResult)
	OnBuildComplete(report *Report)
}

// NoopObserver is a no-op implementation.
type NoopObserver struct{}

func (NoopObserver) OnStageStart(_ StageName)                                    {}
func (NoopObserver) OnStageComplete(_ StageName, _ time.Duration, _ StageResult) {}
func (NoopObserver) OnBuildComplete(_ *Report)                                   {}

// RecorderObserver adapts metrics.Recorder into a BuildObserver.
type RecorderObserver struct{ Recorder metrics.Recorder }

func (r RecorderObserver) OnStageStart(_ StageName) {}
func (r RecorderObserver) OnStageComplete(stage StageName, d time.Duration, _ StageResult) {
	if r.Recorder != nil {
		r.Recorder.ObserveStageDuration(string(stage), d)
	}
}

func (r RecorderObserver) OnBuildComplete(report *Report) {
	if r.Recorder == nil {
		return
	}
	r.Recorder.ObserveBuildDuration(report.Duration())
	r.Recorder.IncBuildOutcome(string(report.Outcome))
	if c := report.Compression; c != nil {
		r.Recorder.IncImageResult(metrics.ImageCompressed, c.Compressed)
		r.Recorder.IncImageResult(metrics.ImageUnchanged, c.Unchanged)
		r.Recorder.IncImageResult(metrics.ImageCacheHit, c.CacheHits)
		r.Recorder.IncImageResult(metrics.ImageFailed, c.Failed)
		r.Recorder.AddImageBytes(c.BytesBefore, c.BytesAfter)
	}
}

// multiObserver fans callbacks out in order.
type multiObserver []BuildObserver

func (m multiObserver) OnStageStart(stage StageName) {
	for _, o := range m {
		o.OnStageStart(stage)
	}
}

func (m multiObserver) OnStageComplete(stage StageName, d time.Duration, res StageResult) {
	for _, o := range m {
		o.OnStageComplete(stage, d, res)
	}
}

func (m multiObserver) OnBuildComplete(report *Report) {
	for _, o := range m {
		o.OnBuildComplete(report)
	}
}
