package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

// stageOutcome is the normalized result of one stage execution.
type stageOutcome struct {
	Stage  StageName
	Error  *StageError
	Result StageResult
	Abort  bool
}

// resultFromStageErrorKind maps a StageErrorKind to a StageResult.
func resultFromStageErrorKind(k StageErrorKind) StageResult {
	switch k {
	case StageErrorWarning:
		return StageResultWarning
	case StageErrorCanceled:
		return StageResultCanceled
	default:
		return StageResultFatal
	}
}

// classifyStageResult converts a raw error from a stage into a stageOutcome.
// Errors that are not StageErrors are fatal unless the context was canceled.
func classifyStageResult(ctx context.Context, stage StageName, err error) stageOutcome {
	if err == nil {
		return stageOutcome{Stage: stage, Result: StageResultSuccess}
	}

	var se *StageError
	if !errors.As(err, &se) {
		if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			se = NewCanceledStageError(stage, err)
		} else {
			se = NewFatalStageError(stage, err)
		}
	}
	return stageOutcome{
		Stage:  stage,
		Error:  se,
		Result: resultFromStageErrorKind(se.Kind),
		Abort:  se.Kind != StageErrorWarning,
	}
}

// runStages executes stages in order, recording timing and stopping on the
// first fatal or canceled stage.
func runStages(ctx context.Context, bs *BuildState, stages []StageDef) error {
	obs := bs.observer()
	for _, st := range stages {
		select {
		case <-ctx.Done():
			se := NewCanceledStageError(st.Name, ctx.Err())
			bs.Report.StageErrorKinds[st.Name] = se.Kind
			bs.Report.AddError(se)
			bs.Report.RecordStageResult(st.Name, StageResultCanceled, bs.Options.Recorder)
			obs.OnStageComplete(st.Name, 0, StageResultCanceled)
			return se
		default:
		}

		obs.OnStageStart(st.Name)

		t0 := time.Now()
		err := st.Fn(ctx, bs)
		dur := time.Since(t0)

		bs.Report.StageDurations[st.Name] = dur

		out := classifyStageResult(ctx, st.Name, err)
		if out.Error != nil {
			bs.Report.StageErrorKinds[st.Name] = out.Error.Kind
			if out.Error.Kind == StageErrorWarning {
				bs.Report.AddWarning(out.Error)
				slog.Warn("Stage completed with warnings", logfields.Stage(string(st.Name)), logfields.Error(out.Error.Err))
			} else {
				bs.Report.AddError(out.Error)
			}
		}

		bs.Report.RecordStageResult(st.Name, out.Result, bs.Options.Recorder)
		obs.OnStageComplete(st.Name, dur, out.Result)
		slog.Debug("Stage finished", logfields.Stage(string(st.Name)), logfields.DurationMS(float64(dur.Microseconds())/1000), slog.String("result", string(out.Result)))

		if out.Abort {
			if out.Error != nil {
				return out.Error
			}
			return fmt.Errorf("stage %s aborted", st.Name)
		}
	}
	return nil
}
