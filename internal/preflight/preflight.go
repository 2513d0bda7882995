package preflight

import (
	"errors"
	"fmt"
	"strings"

	"voxrecipe/internal/config"
	"voxrecipe/internal/deps"
	"voxrecipe/internal/services"
	"voxrecipe/internal/stage"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Warning marks a failed check that does not block a run.
	Warning bool
}

// RunAll executes the preflight checks for the stages cfg selects. Tools and
// config files are only checked for the stages that use them; an empty
// selection runs nothing, so it has nothing to check.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	start, stop := cfg.Pipeline.Stage, cfg.Pipeline.StopStage
	reqs := deps.Select(deps.RecipeRequirements(cfg), start, stop)
	if len(reqs) == 0 {
		return nil
	}

	var results []Result
	for _, status := range deps.CheckBinaries(reqs) {
		results = append(results, toolResult(status))
	}

	roots := []struct{ name, path string }{
		{"Data directory", cfg.Paths.DataRoot},
		{"Dump directory", cfg.Paths.DumpDir},
		{"Experiment directory", cfg.Paths.ExpRoot},
		{"Tensorboard directory", cfg.Paths.TensorboardRoot},
	}
	for _, root := range roots {
		results = append(results, CheckDirectoryAccess(root.name, root.path))
	}
	results = append(results, CheckFreeSpace("Dump free space", cfg.Paths.DumpDir, cfg.Preflight.MinFreeGiB))
	results = append(results, CheckFreeSpace("Experiment free space", cfg.Paths.ExpRoot, cfg.Preflight.MinFreeGiB))

	if stage.Selected(trainingStage, start, stop) {
		results = append(results, CheckFileExists("Train config", cfg.Model.TrainConfig))
	}
	if stage.Selected(decodingStage, start, stop) {
		results = append(results, CheckFileExists("Decode config", cfg.Model.DecodeConfig))
	}
	if stage.Selected(dataPrepStage, start, stop) {
		corpus := CheckDirectoryExists("Corpus", cfg.Datasets.DBRoot)
		// Input verification before stage 0 reports a missing corpus precisely.
		corpus.Warning = !corpus.Passed
		results = append(results, corpus)
	}

	return results
}

// Indices of the stages that read the corpus and the model configs.
const (
	dataPrepStage = 0
	trainingStage = 3
	decodingStage = 4
)

func toolResult(status deps.Status) Result {
	name := fmt.Sprintf("Tool %s (stage %s)", status.Name, status.StageList())
	if status.Available {
		return Result{Name: name, Passed: true, Detail: status.Path}
	}
	return Result{Name: name, Detail: status.Detail, Warning: status.Optional}
}

// Failures returns the blocking failed results.
func Failures(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed && !r.Warning {
			out = append(out, r)
		}
	}
	return out
}

// Err folds blocking failures into one configuration error, or nil.
func Err(results []Result) error {
	failed := Failures(results)
	if len(failed) == 0 {
		return nil
	}
	parts := make([]string, len(failed))
	for i, r := range failed {
		parts[i] = fmt.Sprintf("%s: %s", r.Name, r.Detail)
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "", strings.Join(parts, "; "), errPreflight)
}

var errPreflight = errors.New("preflight checks failed")
