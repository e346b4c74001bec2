// Package pipeline runs an ordered list of dependent workflow stages,
// committing each stage's typed output into a shared run context and
// recording partial failure as degraded data instead of aborting the run.
package pipeline

import (
	"context"
	"fmt"

	"github.com/KhangChau12/scholarship-advisor/internal/coerce"
	"github.com/KhangChau12/scholarship-advisor/internal/schema"
)

// Status tracks a stage's lifecycle within one run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusDegraded  Status = "degraded"
)

// Stage declares one workflow step: a name, the upstream stage names whose
// committed outputs it reads, the schema its output conforms to, and the
// function computing that output from the accumulated run context.
type Stage struct {
	Name     string
	Requires []string
	Schema   schema.Descriptor
	Run      func(ctx context.Context, run *RunContext) (Outcome, error)
}

// Outcome is what a stage hands back on completion. CoercedFields is the
// field count of the schema the coercion conformed to; stages that widen
// their output with locally computed fields keep it at the coerced size so
// the majority-default rule judges the coercion, not the widened mapping.
// Zero falls back to the stage schema's field count.
type Outcome struct {
	Value         map[string]any
	Confidence    coerce.Confidence
	Defaulted     []string
	CoercedFields int
}

// OutcomeOf lifts a coercion result into a stage outcome.
func OutcomeOf(result coerce.Result) Outcome {
	return Outcome{
		Value:         result.Value,
		Confidence:    result.Confidence,
		Defaulted:     result.Defaulted,
		CoercedFields: len(result.Value),
	}
}

// StageResult is the committed, immutable record of one stage's run.
type StageResult struct {
	Stage      string
	Status     Status
	Value      map[string]any
	Confidence coerce.Confidence
	Defaulted  []string
	Reason     string
}

// RunContext accumulates committed stage results over a single run. It grows
// monotonically and is owned by the orchestrator until the run completes.
type RunContext struct {
	results map[string]StageResult
	order   []string
}

func newRunContext() *RunContext {
	return &RunContext{results: map[string]StageResult{}}
}

// NewRunContext returns an empty context. The orchestrator owns commits during
// a run; Seed lets callers preload upstream output when composing stages by
// hand.
func NewRunContext() *RunContext {
	return newRunContext()
}

// Seed commits a succeeded result for the named stage.
func (rc *RunContext) Seed(stage string, value map[string]any) {
	rc.commit(StageResult{
		Stage:      stage,
		Status:     StatusSucceeded,
		Value:      value,
		Confidence: coerce.Exact,
	})
}

func (rc *RunContext) commit(result StageResult) {
	if _, present := rc.results[result.Stage]; !present {
		rc.order = append(rc.order, result.Stage)
	}
	rc.results[result.Stage] = result
}

// Result returns the committed result for a stage.
func (rc *RunContext) Result(stage string) (StageResult, bool) {
	result, present := rc.results[stage]
	return result, present
}

// Status reports a stage's lifecycle state: a committed stage carries its
// committed status, anything else is still pending.
func (rc *RunContext) Status(stage string) Status {
	if result, present := rc.results[stage]; present {
		return result.Status
	}
	return StatusPending
}

// Stages lists committed stage names in commit order.
func (rc *RunContext) Stages() []string {
	out := make([]string, len(rc.order))
	copy(out, rc.order)
	return out
}

// Value returns a stage's committed output mapping, or nil when the stage has
// not committed.
func (rc *RunContext) Value(stage string) map[string]any {
	result, present := rc.results[stage]
	if !present {
		return nil
	}
	return result.Value
}

// String reads a string field from a committed stage output.
func (rc *RunContext) String(stage string, field string) string {
	if value, ok := rc.Value(stage)[field].(string); ok {
		return value
	}
	return ""
}

// Number reads a numeric field from a committed stage output.
func (rc *RunContext) Number(stage string, field string) float64 {
	if value, ok := rc.Value(stage)[field].(float64); ok {
		return value
	}
	return 0
}

// List reads a list field from a committed stage output.
func (rc *RunContext) List(stage string, field string) []any {
	if value, ok := rc.Value(stage)[field].([]any); ok {
		return value
	}
	return nil
}

// Report is what a completed run hands back to the caller: the full context
// plus which stages were degraded, so the consumer can warn the end user.
type Report struct {
	RunID    string
	Results  *RunContext
	Degraded []string
}

// FatalError aborts the whole run: the named stage lacks upstream data that
// has no safe default.
type FatalError struct {
	Stage   string
	Missing string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("stage %s: missing required input %s", e.Stage, e.Missing)
}

// NewFatal builds the non-recoverable condition a stage raises when it cannot
// proceed meaningfully.
func NewFatal(stage string, missing string) *FatalError {
	return &FatalError{Stage: stage, Missing: missing}
}
