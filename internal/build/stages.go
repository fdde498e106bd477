package build

import (
	"context"
	"fmt"
	"slices"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
)

// Stage is a discrete unit of work in the asset build.
type Stage func(ctx context.Context, bs *BuildState) error

// StageName is a strongly-typed identifier for a build stage.
type StageName string

// Canonical stage names.
const (
	StagePrepareOutput  StageName = "prepare_output"
	StageStaticCopy     StageName = "static_copy"
	StageScripts        StageName = "scripts"
	StageStyles         StageName = "styles"
	StageTemplates      StageName = "templates"
	StageCompressImages StageName = "compress_images"
)

// StageErrorKind classifies the outcome of a stage.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Build must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError is a structured error carrying the stage and underlying cause.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// StageResult captures the high-level outcome of a stage.
type StageResult string

const (
	StageResultSuccess  StageResult = "success"
	StageResultWarning  StageResult = "warning"
	StageResultFatal    StageResult = "fatal"
	StageResultCanceled StageResult = "canceled"
)

// NewFatalStageError creates a new fatal stage error.
func NewFatalStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}

func NewWarnStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}

func NewCanceledStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

// StageDef pairs a stage name with its executing function and the modes it
// runs in. An empty Modes list means every mode.
type StageDef struct {
	Name  StageName
	Modes []config.Mode
	Fn    Stage
}

// Enabled reports whether the stage runs in mode.
func (d StageDef) Enabled(mode config.Mode) bool {
	if len(d.Modes) == 0 {
		return true
	}
	if !mode.IsDevelopment() {
		mode = config.ModeProduction
	}
	return slices.Contains(d.Modes, mode)
}

// stageTable is the single ordered pipeline definition.
var stageTable = []StageDef{
	{Name: StagePrepareOutput, Fn: stagePrepareOutput},
	{Name: StageStaticCopy, Fn: stageStaticCopy},
	{Name: StageScripts, Fn: stageScripts},
	{Name: StageStyles, Fn: stageStyles},
	{Name: StageTemplates, Fn: stageTemplates},
	{Name: StageCompressImages, Modes: []config.Mode{config.ModeProduction}, Fn: stageCompressImages},
}

// StagesFor returns the stages that run in mode, in execution order.
func StagesFor(mode config.Mode) []StageDef {
	out := make([]StageDef, 0, len(stageTable))
	for _, d := range stageTable {
		if d.Enabled(mode) {
			out = append(out, d)
		}
	}
	return out
}

// StageNames lists the stage names that run in mode.
func StageNames(mode config.Mode) []StageName {
	defs := StagesFor(mode)
	names := make([]StageName, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}
