package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KhangChau12/scholarship-advisor/internal/coerce"
)

const (
	duplicateStageErrorFormat      = "duplicate stage %s"
	unknownDependencyErrorFormat   = "stage %s requires %s, which is not declared before it"
	missingRunFunctionErrorFormat  = "stage %s has no run function"
	blankStageNameErrorMessage     = "stage name is blank"
	degradedReasonDeadlineExceeded = "run deadline exceeded before the stage started"
)

// Orchestrator owns a declared list of stages and runs them sequentially,
// one run context per run. Stages are declared once at construction.
type Orchestrator struct {
	stages []Stage
	logger *zap.Logger
}

// New validates the declaration: names are unique and non-blank, and every
// dependency refers to a stage declared earlier, matching the sequential
// execution order.
func New(logger *zap.Logger, stages ...Stage) (*Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	declared := map[string]struct{}{}
	for _, stage := range stages {
		if stage.Name == "" {
			return nil, errors.New(blankStageNameErrorMessage)
		}
		if _, duplicate := declared[stage.Name]; duplicate {
			return nil, fmt.Errorf(duplicateStageErrorFormat, stage.Name)
		}
		if stage.Run == nil {
			return nil, fmt.Errorf(missingRunFunctionErrorFormat, stage.Name)
		}
		for _, dependency := range stage.Requires {
			if _, present := declared[dependency]; !present {
				return nil, fmt.Errorf(unknownDependencyErrorFormat, stage.Name, dependency)
			}
		}
		declared[stage.Name] = struct{}{}
	}
	return &Orchestrator{stages: stages, logger: logger}, nil
}

// Run executes the declared stages in order. A stage that fails or whose
// output is majority-default commits as degraded with schema defaults filling
// the gaps; downstream stages still receive a correctly shaped value. Only a
// FatalError aborts the run. When the run deadline expires, every stage not
// yet committed is committed as degraded with an all-default output.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	run := newRunContext()
	report := Report{RunID: uuid.NewString(), Results: run}
	o.logger.Info("pipeline run starting",
		zap.String("run_id", report.RunID),
		zap.Int("stages", len(o.stages)),
	)

	for _, stage := range o.stages {
		if ctx.Err() != nil {
			o.commitDegraded(run, &report, stage, degradedReasonDeadlineExceeded)
			continue
		}

		o.logger.Info("stage transition",
			zap.String("run_id", report.RunID),
			zap.String("stage", stage.Name),
			zap.String("status", string(StatusRunning)),
		)
		outcome, err := stage.Run(ctx, run)
		if err != nil {
			var fatal *FatalError
			if errors.As(err, &fatal) {
				o.logger.Error("stage raised a fatal condition",
					zap.String("run_id", report.RunID),
					zap.String("stage", fatal.Stage),
					zap.String("missing", fatal.Missing),
				)
				return report, err
			}
			o.commitDegraded(run, &report, stage, err.Error())
			continue
		}

		result := StageResult{
			Stage:      stage.Name,
			Status:     StatusSucceeded,
			Value:      outcome.Value,
			Confidence: outcome.Confidence,
			Defaulted:  outcome.Defaulted,
		}
		if degraded, reason := isDegradedOutcome(outcome, stage); degraded {
			result.Status = StatusDegraded
			result.Reason = reason
			report.Degraded = append(report.Degraded, stage.Name)
		}
		run.commit(result)
		o.logger.Info("stage committed",
			zap.String("run_id", report.RunID),
			zap.String("stage", stage.Name),
			zap.String("status", string(result.Status)),
			zap.String("confidence", string(result.Confidence)),
		)
	}

	o.logger.Info("pipeline run complete",
		zap.String("run_id", report.RunID),
		zap.Strings("degraded", report.Degraded),
	)
	return report, nil
}

// isDegradedOutcome applies the majority-default rule: an outcome whose
// coercion defaulted more than half of its fields carries too little
// extracted data to count as a success. The denominator is the coerced field
// count when the stage reports one, so locally computed fields added after
// coercion cannot dilute the ratio.
func isDegradedOutcome(outcome Outcome, stage Stage) (bool, string) {
	if outcome.Confidence == coerce.Default {
		return true, "output is entirely default values"
	}
	fieldTotal := outcome.CoercedFields
	if fieldTotal <= 0 {
		fieldTotal = stage.Schema.Len()
	}
	if fieldTotal > 0 && len(outcome.Defaulted)*2 > fieldTotal {
		return true, fmt.Sprintf("%d of %d fields defaulted", len(outcome.Defaulted), fieldTotal)
	}
	return false, ""
}

func (o *Orchestrator) commitDegraded(run *RunContext, report *Report, stage Stage, reason string) {
	run.commit(StageResult{
		Stage:      stage.Name,
		Status:     StatusDegraded,
		Value:      stage.Schema.Default(),
		Confidence: coerce.Default,
		Defaulted:  stage.Schema.Names(),
		Reason:     reason,
	})
	report.Degraded = append(report.Degraded, stage.Name)
	o.logger.Warn("stage degraded",
		zap.String("run_id", report.RunID),
		zap.String("stage", stage.Name),
		zap.String("reason", reason),
	)
}
