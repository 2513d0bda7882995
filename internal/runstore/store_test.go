package runstore_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"voxrecipe/internal/fanout"
	"voxrecipe/internal/logging"
	"voxrecipe/internal/runstore"
	"voxrecipe/internal/services"
	"voxrecipe/internal/stage"
	"voxrecipe/internal/testsupport"
)

func TestOpenCreatesSchemaOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	again, err := runstore.Open(cfg)
	if err != nil {
		t.Fatalf("reopen existing ledger: %v", err)
	}
	_ = again.Close()
}

func TestRunLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run := runstore.Run{ID: "6f1c2a9e-0000-4000-8000-000000000001", ExpName: "train_no_dev_pytorch_t", Start: 0, Stop: 5, NJ: 4}
	if err := store.BeginRun(ctx, run); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	started := time.Now()
	if err := store.StageStarted(ctx, run.ID, 4, "decoding", started); err != nil {
		t.Fatalf("StageStarted: %v", err)
	}
	if err := store.StageFinished(ctx, runstore.StageRun{
		RunID:            run.ID,
		Index:            4,
		Name:             "decoding",
		Status:           runstore.StatusFailed,
		FailedSubJobs:    2,
		TotalSubJobs:     8,
		FailedPartitions: map[string][]int{"dev": {2, 4}},
		ErrorKind:        "stage",
		Error:            "2 of 8 sub-jobs failed [dev: 2,4]",
	}); err != nil {
		t.Fatalf("StageFinished: %v", err)
	}
	if err := store.FinishRun(ctx, run.ID, runstore.StatusFailed, "stage 4 (decoding) failed"); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, stages, err := store.GetRun(ctx, "6f1c2a9e")
	if err != nil {
		t.Fatalf("GetRun by prefix: %v", err)
	}
	if got.Status != runstore.StatusFailed || got.FinishedAt == nil || got.NJ != 4 {
		t.Fatalf("unexpected run %+v", got)
	}
	if len(stages) != 1 {
		t.Fatalf("expected one stage record, got %d", len(stages))
	}
	rec := stages[0]
	if rec.FailedSubJobs != 2 || rec.TotalSubJobs != 8 {
		t.Fatalf("unexpected counts %+v", rec)
	}
	if !reflect.DeepEqual(rec.FailedPartitions, map[string][]int{"dev": {2, 4}}) {
		t.Fatalf("unexpected partitions %v", rec.FailedPartitions)
	}

	last, err := store.LastFailure(ctx, run.ExpName)
	if err != nil || last == nil || last.Index != 4 {
		t.Fatalf("LastFailure = %+v, %v", last, err)
	}
	none, err := store.LastFailure(ctx, "other")
	if err != nil || none != nil {
		t.Fatalf("expected no failure for other experiment, got %+v %v", none, err)
	}
}

func TestGetRunNotFound(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	_, _, err := store.GetRun(context.Background(), "missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.FinishRun(context.Background(), "missing", runstore.StatusSucceeded, ""); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found on finish, got %v", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := store.BeginRun(ctx, runstore.Run{ID: id, ExpName: "x", NJ: 1, StartedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("BeginRun %s: %v", id, err)
		}
	}
	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Fatalf("unexpected order %+v", runs)
	}
	if runs[0].Status != runstore.StatusRunning {
		t.Fatalf("unfinished run should be running, got %s", runs[0].Status)
	}
}

func TestRecorderObservesRunner(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	const runID = "rec-1"
	if err := store.BeginRun(ctx, runstore.Run{ID: runID, ExpName: "x", NJ: 2}); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}

	failing := func(ctx context.Context) error {
		return fanout.Run(ctx, fanout.Branch{
			Name: "eval", Partitions: 2,
			Task: func(_ context.Context, p int) error {
				if p == 1 {
					return errors.New("boom")
				}
				return nil
			},
		}).Err()
	}
	reg, err := stage.NewRegistry(
		stage.Stage{Index: 0, Name: "data_prep", Action: func(ctx context.Context) error {
			return fanout.Run(ctx, fanout.Single("", func(context.Context) error { return nil })).Err()
		}},
		stage.Stage{Index: 1, Name: "feature_extraction", Action: failing},
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	rec := runstore.NewRecorder(store, runID, logging.NewNop())
	if _, err := stage.NewRunner(nil, stage.WithObservers(rec)).Run(ctx, reg, 0, 100); err == nil {
		t.Fatal("expected failure")
	}

	_, stages, err := store.GetRun(ctx, runID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if len(stages) != 2 {
		t.Fatalf("expected two stage records, got %d", len(stages))
	}
	if stages[0].Status != runstore.StatusSucceeded || stages[1].Status != runstore.StatusFailed {
		t.Fatalf("unexpected statuses %s %s", stages[0].Status, stages[1].Status)
	}
	if stages[0].TotalSubJobs != 1 || stages[0].FailedSubJobs != 0 {
		t.Fatalf("successful stage should record its sub-jobs: %+v", stages[0])
	}
	if stages[1].FailedSubJobs != 1 || stages[1].TotalSubJobs != 2 || stages[1].ErrorKind != "stage" {
		t.Fatalf("unexpected failure record %+v", stages[1])
	}
}
