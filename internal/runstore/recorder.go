package runstore

import (
	"context"
	"log/slog"

	"voxrecipe/internal/logging"
	"voxrecipe/internal/services"
	"voxrecipe/internal/stage"
)

// Recorder persists stage events for one run. Ledger write failures are
// logged and never fail the pipeline.
type Recorder struct {
	store  *Store
	runID  string
	logger *slog.Logger
}

// NewRecorder returns a stage.Observer writing to store under runID.
func NewRecorder(store *Store, runID string, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, runID: runID, logger: logging.NewComponentLogger(logger, "ledger")}
}

func (r *Recorder) StageStarted(ctx context.Context, s stage.Stage) {
	if err := r.store.StageStarted(context.WithoutCancel(ctx), r.runID, s.Index, s.Name, timeNow()); err != nil {
		r.warn(ctx, err)
	}
}

// StageSkipped is a no-op; the ledger only lists stages that ran.
func (r *Recorder) StageSkipped(context.Context, stage.Stage) {}

func (r *Recorder) StageFinished(ctx context.Context, rep stage.Report) {
	finished := rep.Started.Add(rep.Elapsed)
	rec := StageRun{
		RunID:            r.runID,
		Index:            rep.Stage.Index,
		Name:             rep.Stage.Name,
		Status:           StatusSucceeded,
		FailedSubJobs:    rep.Failed,
		TotalSubJobs:     rep.Total,
		FailedPartitions: rep.Failures,
		FinishedAt:       &finished,
	}
	if rep.Err != nil {
		rec.Status = StatusFailed
		rec.ErrorKind = services.Kind(rep.Err)
		rec.Error = rep.Err.Error()
	}
	if err := r.store.StageFinished(context.WithoutCancel(ctx), rec); err != nil {
		r.warn(ctx, err)
	}
}

func (r *Recorder) warn(ctx context.Context, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, r.logger), "run ledger write failed", "ledger_write_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check permissions on "+r.store.Path()),
		logging.String(logging.FieldImpact, "history will be incomplete for this run"),
	)
}
