package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxrecipe/internal/config"
	"voxrecipe/internal/explock"
	"voxrecipe/internal/paths"
	"voxrecipe/internal/services"
	"voxrecipe/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "train_no_dev_pytorch_train_pytorch_tacotron2")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	_, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected init to refuse an existing file, got %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--force"}, ""); err != nil {
		t.Fatalf("config init --force: %v", err)
	}
}

func TestConfigValidateSummarizesSelection(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"--stage", "4", "--stop-stage", "5", "--nj", "7", "config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "4 to 5")
	requireContains(t, out, "Sub-jobs per split")
	requireContains(t, out, "7")
	requireContains(t, out, "Tools needed")
}

func TestConfigShowPrintsEffectiveValues(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"--nj", "12", "config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[pipeline]")
	requireContains(t, out, "nj = 12")
}

func TestInvalidFlagValueIsConfigurationError(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"--nj", "0", "stages"}, env.configPath)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestStagesShowsSelection(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"--stage", "3", "--stop_stage", "4", "stages"}, env.configPath)
	if err != nil {
		t.Fatalf("stages: %v", err)
	}
	for _, want := range []string{"Data Prep", "Feature Extraction", "Dictionary", "Training", "Decoding", "Synthesis"} {
		requireContains(t, out, want)
	}
	if got := strings.Count(out, "yes"); got != 2 {
		t.Fatalf("expected two selected stages, got %d in\n%s", got, out)
	}
	requireContains(t, out, "Needs")
	requireContains(t, out, "0, 1, 2, 3, 4")
}

func TestStagesDOT(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"stages", "--dot"}, env.configPath)
	if err != nil {
		t.Fatalf("stages --dot: %v", err)
	}
	requireContains(t, out, "digraph")
}

func TestPathsUsesTag(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"--tag", "baseline", "--n_average", "0", "paths"}, env.configPath)
	if err != nil {
		t.Fatalf("paths: %v", err)
	}
	requireContains(t, out, "train_no_dev_pytorch_baseline")
	requireContains(t, out, "outputs_model.loss.best_decode")
}

func TestCheckReportsMissingTool(t *testing.T) {
	env := setupCLITestEnv(t, func(c *config.Config) {
		c.Tools.Train = "voxrecipe-missing-train"
	})
	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected preflight failure, got %v", err)
	}
	requireContains(t, out, "[ERROR]")
	requireContains(t, out, "missing tools: voxrecipe-missing-train")
}

func TestRunRecordsHistoryAndMetrics(t *testing.T) {
	var textfile string
	env := setupCLITestEnv(t, func(c *config.Config) {
		textfile = filepath.Join(testsupport.BaseDir(c), "metrics", "voxrecipe.prom")
		c.Metrics.Textfile = textfile
	})

	out, _, err := runCLI(t, []string{"--stage", "0", "--stop-stage", "0", "run"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "Ran stages 0")

	data, err := os.ReadFile(textfile)
	if err != nil {
		t.Fatalf("read metrics textfile: %v", err)
	}
	requireContains(t, string(data), `stage="data_prep",status="succeeded"`)
	requireContains(t, string(data), `voxrecipe_stage_subjobs{expname="`+paths.ExpName(env.cfg)+`",index="0",stage="data_prep"} 1`)

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "succeeded")

	store := testsupport.MustOpenStore(t, env.cfg)
	runs, err := store.ListRuns(t.Context(), 1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("ListRuns: %v (%d runs)", err, len(runs))
	}
	out, _, err = runCLI(t, []string{"history", "show", runs[0].ID[:8]}, env.configPath)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	requireContains(t, out, runs[0].ID)
	requireContains(t, out, "data_prep")

	_, stages, err := store.GetRun(t.Context(), runs[0].ID)
	if err != nil || len(stages) != 1 {
		t.Fatalf("GetRun: %v (%d stages)", err, len(stages))
	}
	if stages[0].TotalSubJobs != 1 || stages[0].FailedSubJobs != 0 {
		t.Fatalf("successful stage should record its sub-job: %+v", stages[0])
	}
}

func TestRunFailureNamesStageAndCount(t *testing.T) {
	env := setupCLITestEnv(t)
	replaceStub(t, env, env.cfg.Tools.DataPrep, "exit 2")

	_, _, err := runCLI(t, []string{"--stage", "0", "--stop-stage", "2", "run"}, env.configPath)
	if err == nil {
		t.Fatal("expected run failure")
	}
	if got, want := err.Error(), "stage 0 (data_prep) failed: 1 of 1 sub-job failed"; !strings.HasPrefix(got, want) {
		t.Fatalf("unexpected error %q, want prefix %q", got, want)
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool cause, got %v", err)
	}

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "failed")
	requireContains(t, out, "rerun with --stage 0")
}

func TestRunRefusesLockedExperiment(t *testing.T) {
	env := setupCLITestEnv(t)
	lock, err := explock.Acquire(env.cfg)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()

	_, _, err = runCLI(t, []string{"--stage", "0", "--stop-stage", "0", "run"}, env.configPath)
	if !errors.Is(err, explock.ErrHeld) {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestRunEmptyRangeSucceeds(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"--stage", "5", "--stop-stage", "2", "run"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "No stages selected")
}

func TestRunChecksOnlySelectedStageTools(t *testing.T) {
	env := setupCLITestEnv(t)
	removeStub(t, env, env.cfg.Tools.DataPrep)

	out, _, err := runCLI(t, []string{"--stage", "5", "--stop-stage", "2", "run"}, env.configPath)
	if err != nil {
		t.Fatalf("an empty range must succeed without tools: %v", err)
	}
	requireContains(t, out, "No stages selected")

	testsupport.WriteLines(t, paths.DataJSON(env.cfg, env.cfg.Datasets.TrainSet), `{"utts": {}}`)
	testsupport.WriteLines(t, paths.DataJSON(env.cfg, env.cfg.Datasets.DevSet), `{"utts": {}}`)
	out, _, err = runCLI(t, []string{"--stage", "3", "--stop-stage", "3", "run"}, env.configPath)
	if err != nil {
		t.Fatalf("training alone must not need data_prep: %v", err)
	}
	requireContains(t, out, "Ran stages 3")

	_, _, err = runCLI(t, []string{"--stage", "0", "--stop-stage", "0", "run"}, env.configPath)
	if !errors.Is(err, services.ErrConfiguration) || !strings.Contains(err.Error(), "data_prep") {
		t.Fatalf("expected preflight to reject stage 0, got %v", err)
	}
}

func TestHistoryRequiresLedger(t *testing.T) {
	env := setupCLITestEnv(t, func(c *config.Config) { c.Ledger.Enabled = false })
	_, _, err := runCLI(t, []string{"history"}, env.configPath)
	if !errors.Is(err, errLedgerDisabled) {
		t.Fatalf("expected ledger disabled error, got %v", err)
	}
}
