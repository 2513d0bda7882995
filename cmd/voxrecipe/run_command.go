package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"voxrecipe/internal/artifacts"
	"voxrecipe/internal/config"
	"voxrecipe/internal/explock"
	"voxrecipe/internal/jobs"
	"voxrecipe/internal/logging"
	"voxrecipe/internal/metrics"
	"voxrecipe/internal/paths"
	"voxrecipe/internal/preflight"
	"voxrecipe/internal/recipe"
	"voxrecipe/internal/runstore"
	"voxrecipe/internal/services"
	"voxrecipe/internal/stage"
)

// newLauncher builds the execution backend for sub-jobs.
var newLauncher = func(cfg *config.Config, logger *slog.Logger) jobs.Launcher {
	return jobs.NewProcessLauncher(
		jobs.WithWrapper(cfg.Jobs.Wrapper),
		jobs.WithLogger(logger),
	)
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the selected stage range",
		Long: `Run every registered stage whose index lies in [--stage, --stop-stage].

The run halts at the first failing stage and exits non-zero; the message names
the stage and how many of its sub-jobs failed. Partial outputs are kept so the
stage can be rerun with --stage.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runPipeline(runCtx, cfg, ctx.configPath, cmd.OutOrStdout())
		},
	}
}

func runPipeline(ctx context.Context, cfg *config.Config, configPath string, out io.Writer) error {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "", "init logging", "", err)
	}

	if err := preflight.Err(preflight.RunAll(cfg)); err != nil {
		return err
	}

	lock, err := explock.Acquire(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("release experiment lock failed", logging.Error(err))
		}
	}()

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger = logging.WithContext(ctx, logger)

	reg, err := recipe.New(cfg, newLauncher(cfg, logger), logger).Registry()
	if err != nil {
		return err
	}
	graph, err := artifacts.Build(reg)
	if err != nil {
		return err
	}

	expname := paths.ExpName(cfg)
	collector := metrics.NewCollector(expname)
	observers := []stage.Observer{collector}

	var store *runstore.Store
	if cfg.Ledger.Enabled {
		store, err = runstore.Open(cfg)
		if err != nil {
			return fmt.Errorf("open run ledger: %w", err)
		}
		defer store.Close()
		err = store.BeginRun(ctx, runstore.Run{
			ID:         runID,
			ExpName:    expname,
			Start:      cfg.Pipeline.Stage,
			Stop:       cfg.Pipeline.StopStage,
			NJ:         cfg.Pipeline.NJ,
			ConfigPath: configPath,
		})
		if err != nil {
			return err
		}
		observers = append(observers, runstore.NewRecorder(store, runID, logger))
	}

	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("expname", expname),
		logging.Int("stage", cfg.Pipeline.Stage),
		logging.Int("stop_stage", cfg.Pipeline.StopStage),
		logging.Int("nj", cfg.Pipeline.NJ),
	)

	runner := stage.NewRunner(logger,
		stage.WithObservers(observers...),
		stage.WithVerifier(graph.Verifier()),
	)
	summary, runErr := runner.Run(ctx, reg, cfg.Pipeline.Stage, cfg.Pipeline.StopStage)

	status := runStatus(ctx, runErr)
	if store != nil {
		message := ""
		if runErr != nil {
			message = runErr.Error()
		}
		if err := store.FinishRun(context.WithoutCancel(ctx), runID, status, message); err != nil {
			logger.Warn("record run outcome failed", logging.Error(err))
		}
	}
	collector.RunFinished(runErr, time.Now())
	if path := strings.TrimSpace(cfg.Metrics.Textfile); path != "" {
		if err := collector.WriteTextfile(path); err != nil {
			logger.Warn("write metrics textfile failed", logging.String("path", path), logging.Error(err))
		}
	}

	if runErr != nil {
		return runErr
	}

	if len(summary.Ran) == 0 {
		fmt.Fprintf(out, "No stages selected by --stage %d --stop-stage %d\n", cfg.Pipeline.Stage, cfg.Pipeline.StopStage)
		return nil
	}
	fmt.Fprintf(out, "Ran stages %s for %s (run %s)\n", joinInts(summary.Ran), expname, shortID(runID))
	return nil
}

func runStatus(ctx context.Context, err error) runstore.Status {
	switch {
	case err == nil:
		return runstore.StatusSucceeded
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		return runstore.StatusInterrupted
	default:
		return runstore.StatusFailed
	}
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
