package recipe

import (
	"context"
	"log/slog"

	"voxrecipe/internal/config"
	"voxrecipe/internal/fanout"
	"voxrecipe/internal/jobs"
	"voxrecipe/internal/logging"
	"voxrecipe/internal/stage"
)

const (
	featsListing = "feats.scp"
	wavListing   = "wav.scp"
)

// Recipe binds the stage actions to one configuration and launcher.
type Recipe struct {
	cfg      *config.Config
	launcher jobs.Launcher
	logger   *slog.Logger
}

// New constructs a recipe. cfg is shared read-only by every stage.
func New(cfg *config.Config, launcher jobs.Launcher, logger *slog.Logger) *Recipe {
	return &Recipe{
		cfg:      cfg,
		launcher: launcher,
		logger:   logging.NewComponentLogger(logger, "recipe"),
	}
}

// Registry returns the recipe's stages, indexed 0 through 5.
func (r *Recipe) Registry() (*stage.Registry, error) {
	return stage.NewRegistry(
		r.dataPrepStage(),
		r.featureStage(),
		r.dictionaryStage(),
		r.trainingStage(),
		r.decodingStage(),
		r.synthesisStage(),
	)
}

func (r *Recipe) launch(ctx context.Context, job jobs.Job) error {
	return r.launcher.Launch(ctx, job)
}

// settle logs every failed sub-job of outcome and returns its verdict.
func (r *Recipe) settle(ctx context.Context, outcome fanout.Outcome) error {
	logger := logging.WithContext(ctx, r.logger)
	for _, b := range outcome.Branches {
		for _, res := range b.Results {
			if res.Err == nil {
				continue
			}
			logging.WarnWithContext(logger, "sub-job failed", "subjob_failure",
				logging.String(logging.FieldBranch, res.Branch),
				logging.Int(logging.FieldPartition, res.Partition),
				logging.Duration("elapsed", res.Elapsed),
				logging.Error(res.Err),
				logging.String(logging.FieldErrorHint, "inspect the sub-job log"),
				logging.String(logging.FieldImpact, "stage will fail after all sub-jobs finish"),
			)
		}
	}
	return outcome.Err()
}

// concatAll merges listing name for every branch, folding shard errors into
// the outcome, and returns the final verdict.
func (r *Recipe) concatAll(ctx context.Context, outcome *fanout.Outcome, name string, dirOf func(split string) string) error {
	if err := r.settle(ctx, *outcome); err != nil {
		return err
	}
	_ = outcome.Concat(name, dirOf)
	return r.settle(ctx, *outcome)
}
