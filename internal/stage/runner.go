package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"voxrecipe/internal/fanout"
	"voxrecipe/internal/logging"
	"voxrecipe/internal/services"
)

// Report describes one finished stage.
type Report struct {
	Stage    Stage
	Started  time.Time
	Elapsed  time.Duration
	Err      error
	Failed   int
	Total    int
	Failures map[string][]int
}

// Observer is notified as the sequencer moves through the registry.
type Observer interface {
	StageStarted(ctx context.Context, s Stage)
	StageSkipped(ctx context.Context, s Stage)
	StageFinished(ctx context.Context, r Report)
}

// Verifier checks a stage's declared inputs before it runs.
type Verifier func(ctx context.Context, s Stage) error

// Error is returned by Run when a stage fails; it names the stage and wraps
// the cause.
type Error struct {
	Index int
	Name  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("stage %d (%s) failed: %v", e.Index, e.Name, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Summary lists what a run did.
type Summary struct {
	Ran     []int
	Skipped []int
	Failed  *Report
}

// Runner sequences stages.
type Runner struct {
	logger    *slog.Logger
	observers []Observer
	verify    Verifier
	now       func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithObservers registers observers notified in order.
func WithObservers(obs ...Observer) RunnerOption {
	return func(r *Runner) {
		for _, o := range obs {
			if o != nil {
				r.observers = append(r.observers, o)
			}
		}
	}
}

// WithVerifier sets the input check run before each selected stage.
func WithVerifier(v Verifier) RunnerOption {
	return func(r *Runner) {
		r.verify = v
	}
}

// NewRunner constructs a sequencer.
func NewRunner(logger *slog.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		logger: logging.NewComponentLogger(logger, "runner"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every stage of reg selected by [start, stop] in ascending
// index order. The first failing stage aborts the run; its error is a *Error.
// An empty selection is not an error.
func (r *Runner) Run(ctx context.Context, reg *Registry, start, stop int) (Summary, error) {
	var summary Summary
	for _, s := range reg.Stages() {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		stageCtx := services.WithStage(ctx, s.Name)
		logger := logging.WithContext(stageCtx, r.logger).With(logging.Int(logging.FieldStageIndex, s.Index))

		if !Selected(s.Index, start, stop) {
			summary.Skipped = append(summary.Skipped, s.Index)
			logger.Debug("stage skipped", logging.String(logging.FieldEventType, "stage_skipped"))
			for _, o := range r.observers {
				o.StageSkipped(stageCtx, s)
			}
			continue
		}

		report := r.runStage(stageCtx, logger, s)
		summary.Ran = append(summary.Ran, s.Index)
		if report.Err != nil {
			summary.Failed = &report
			return summary, &Error{Index: s.Index, Name: s.Name, Err: report.Err}
		}
	}
	if len(summary.Ran) == 0 {
		r.logger.Info("no stages selected",
			logging.Int("stage", start),
			logging.Int("stop_stage", stop),
			logging.String(logging.FieldEventType, "stage_range_empty"),
		)
	}
	return summary, nil
}

func (r *Runner) runStage(ctx context.Context, logger *slog.Logger, s Stage) Report {
	report := Report{Stage: s, Started: r.now()}
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("description", s.Description),
	)
	for _, o := range r.observers {
		o.StageStarted(ctx, s)
	}

	actionCtx, tally := fanout.WithTally(ctx)
	var err error
	if r.verify != nil {
		err = r.verify(actionCtx, s)
	}
	if err == nil {
		err = s.Action(actionCtx)
	}
	report.Elapsed = r.now().Sub(report.Started)
	report.Err = err

	var fe *fanout.FailureError
	switch {
	case errors.As(err, &fe):
		report.Failed = fe.Failed
		report.Total = fe.Total
		report.Failures = fe.Partitions
	case err == nil:
		report.Total = tally.Total()
	}

	if err != nil {
		attrs := []logging.Attr{
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.String("error_kind", services.Kind(err)),
			logging.Duration("elapsed", report.Elapsed),
			logging.String(logging.FieldErrorHint, fmt.Sprintf("fix the cause and rerun with --stage %d", s.Index)),
			logging.Error(err),
		}
		if fe != nil {
			attrs = append(attrs, logging.Int("failed_subjobs", fe.Failed), logging.Int("total_subjobs", fe.Total))
		}
		logging.ErrorWithContext(logger, "stage failed", "stage_failure", attrs...)
	} else {
		logger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Duration("elapsed", report.Elapsed),
			logging.Int("total_subjobs", report.Total),
		)
	}

	for _, o := range r.observers {
		o.StageFinished(ctx, report)
	}
	return report
}
