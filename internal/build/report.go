package build

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/assetbuilder/internal/assets"
	"git.home.luguber.info/inful/assetbuilder/internal/compress"
	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/git"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
	"git.home.luguber.info/inful/assetbuilder/internal/output"
	"git.home.luguber.info/inful/assetbuilder/internal/version"
)

// ReportFile is the report's file name inside the cache directory.
const ReportFile = "build-report.json"

// SummaryFile holds the one-line Summary next to the JSON report.
const SummaryFile = "build-report.txt"

// BuildOutcome is the typed enumeration of final build result states.
type BuildOutcome string

const (
	OutcomeSuccess  BuildOutcome = "success"
	OutcomeWarning  BuildOutcome = "warning"
	OutcomeFailed   BuildOutcome = "failed"
	OutcomeCanceled BuildOutcome = "canceled"
)

// Report captures what a single build did.
type Report struct {
	SchemaVersion   int
	BuildID         string
	Mode            config.Mode
	Version         string
	Revision        *git.Revision // nil outside a git working tree
	Start           time.Time
	End             time.Time
	Errors          []error // fatal errors causing build abortion (at most one)
	Warnings        []error // non-fatal issues such as per-image compression failures
	StageDurations  map[StageName]time.Duration
	StageErrorKinds map[StageName]StageErrorKind
	StageResults    map[StageName]StageResult
	Pages           []string // page identifiers in manifest order
	Entry           string   // emitted script entry
	Chunks          []string
	Stylesheet      string // emitted stylesheet; empty when there were no styles
	Documents       []string
	Files           []output.File
	Assets          []assets.Result // every asset routed by scripts, styles or templates
	Compression     *compress.Stats // nil when compression did not run
	Outcome         BuildOutcome
}

// NewReport constructs a report for a build starting now.
func NewReport(mode config.Mode) *Report {
	return &Report{
		SchemaVersion:   1,
		BuildID:         uuid.NewString(),
		Mode:            mode,
		Version:         version.Version,
		Start:           time.Now(),
		StageDurations:  make(map[StageName]time.Duration),
		StageErrorKinds: make(map[StageName]StageErrorKind),
		StageResults:    make(map[StageName]StageResult),
	}
}

// AddError records a fatal or canceled stage error.
func (r *Report) AddError(err error) { r.Errors = append(r.Errors, err) }

// AddWarning records a non-fatal issue.
func (r *Report) AddWarning(err error) { r.Warnings = append(r.Warnings, err) }

// Finish sets the end time of the report.
func (r *Report) Finish() { r.End = time.Now() }

// Duration is the wall time between Start and End.
func (r *Report) Duration() time.Duration { return r.End.Sub(r.Start) }

// RecordStageResult stores the stage result and emits a metric when recorder is non-nil.
func (r *Report) RecordStageResult(stage StageName, res StageResult, recorder metrics.Recorder) {
	if r.StageResults == nil {
		r.StageResults = make(map[StageName]StageResult)
	}
	r.StageResults[stage] = res
	if recorder == nil {
		return
	}
	switch res {
	case StageResultSuccess:
		recorder.IncStageResult(string(stage), metrics.ResultSuccess)
	case StageResultWarning:
		recorder.IncStageResult(string(stage), metrics.ResultWarning)
	case StageResultFatal:
		recorder.IncStageResult(string(stage), metrics.ResultFatal)
	case StageResultCanceled:
		recorder.IncStageResult(string(stage), metrics.ResultCanceled)
	}
}

// DeriveOutcome sets the Outcome field based on recorded errors/warnings.
func (r *Report) DeriveOutcome() {
	if len(r.Errors) > 0 {
		for _, e := range r.Errors {
			var se *StageError
			if errors.As(e, &se) && se.Kind == StageErrorCanceled {
				r.Outcome = OutcomeCanceled
				return
			}
		}
		r.Outcome = OutcomeFailed
		return
	}
	if len(r.Warnings) > 0 {
		r.Outcome = OutcomeWarning
		return
	}
	r.Outcome = OutcomeSuccess
}

// Summary returns a human-readable single-line summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("build=%s mode=%s duration=%s files=%d documents=%d errors=%d warnings=%d stages=%d outcome=%s",
		r.BuildID, r.Mode, r.Duration().Truncate(time.Millisecond), len(r.Files), len(r.Documents),
		len(r.Errors), len(r.Warnings), len(r.StageDurations), r.Outcome)
}

// reportIssue is the serialized form of an error or warning.
type reportIssue struct {
	Stage    string `json:"stage,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Category string `json:"category,omitempty"`
	File     string `json:"file,omitempty"`
	Message  string `json:"message"`
}

// reportJSON is the on-disk schema of a Report.
type reportJSON struct {
	SchemaVersion   int                `json:"schema_version"`
	BuildID         string             `json:"build_id"`
	Mode            string             `json:"mode"`
	Version         string             `json:"version"`
	Revision        *git.Revision      `json:"revision,omitempty"`
	Start           time.Time          `json:"start"`
	End             time.Time          `json:"end"`
	DurationMS      int64              `json:"duration_ms"`
	Outcome         string             `json:"outcome"`
	Stages          []string           `json:"stages"`
	StageDurations  map[string]float64 `json:"stage_durations_ms"`
	StageResults    map[string]string  `json:"stage_results"`
	StageErrorKinds map[string]string  `json:"stage_error_kinds,omitempty"`
	Errors          []reportIssue      `json:"errors,omitempty"`
	Warnings        []reportIssue      `json:"warnings,omitempty"`
	Pages           []string           `json:"pages"`
	Entry           string             `json:"entry,omitempty"`
	Chunks          []string           `json:"chunks,omitempty"`
	Stylesheet      string             `json:"stylesheet,omitempty"`
	Documents       []string           `json:"documents"`
	Files           []output.File      `json:"files"`
	Assets          []assets.Result    `json:"assets,omitempty"`
	Compression     *compress.Stats    `json:"compression,omitempty"`
}

func issueFor(err error) reportIssue {
	is := reportIssue{Message: err.Error()}
	var se *StageError
	if errors.As(err, &se) {
		is.Stage = string(se.Stage)
		is.Kind = string(se.Kind)
		is.Message = se.Err.Error()
	}
	if ce, ok := ferrors.AsClassified(err); ok {
		is.Category = string(ce.Category())
		if f, ok := ce.Context().GetString("file"); ok {
			is.File = f
		}
	}
	return is
}

// MarshalJSON renders the report with errors converted to structured issues.
func (r *Report) MarshalJSON() ([]byte, error) {
	out := reportJSON{
		SchemaVersion:   r.SchemaVersion,
		BuildID:         r.BuildID,
		Mode:            r.Mode.String(),
		Version:         r.Version,
		Revision:        r.Revision,
		Start:           r.Start,
		End:             r.End,
		DurationMS:      r.Duration().Milliseconds(),
		Outcome:         string(r.Outcome),
		StageDurations:  make(map[string]float64, len(r.StageDurations)),
		StageResults:    make(map[string]string, len(r.StageResults)),
		StageErrorKinds: make(map[string]string, len(r.StageErrorKinds)),
		Pages:           r.Pages,
		Entry:           r.Entry,
		Chunks:          r.Chunks,
		Stylesheet:      r.Stylesheet,
		Documents:       r.Documents,
		Files:           r.Files,
		Assets:          r.Assets,
		Compression:     r.Compression,
	}
	for _, name := range StageNames(r.Mode) {
		if _, ran := r.StageResults[name]; ran {
			out.Stages = append(out.Stages, string(name))
		}
	}
	for k, v := range r.StageDurations {
		out.StageDurations[string(k)] = float64(v.Microseconds()) / 1000
	}
	for k, v := range r.StageResults {
		out.StageResults[string(k)] = string(v)
	}
	for k, v := range r.StageErrorKinds {
		out.StageErrorKinds[string(k)] = string(v)
	}
	for _, e := range r.Errors {
		out.Errors = append(out.Errors, issueFor(e))
	}
	for _, w := range r.Warnings {
		out.Warnings = append(out.Warnings, issueFor(w))
	}
	if out.Pages == nil {
		out.Pages = []string{}
	}
	if out.Documents == nil {
		out.Documents = []string{}
	}
	if out.Files == nil {
		out.Files = []output.File{}
	}
	return json.Marshal(out)
}

// Persist writes the report atomically into dir (the cache directory, never
// the output tree).
func (r *Report) Persist(dir string) error {
	if r.End.IsZero() {
		r.Finish()
		r.DeriveOutcome()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("ensure dir for report: %w", err)
	}
	jb, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, ReportFile), jb); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, SummaryFile), []byte(r.Summary()+"\n"))
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("atomic rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
