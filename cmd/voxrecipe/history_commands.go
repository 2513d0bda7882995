package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"voxrecipe/internal/config"
	"voxrecipe/internal/fanout"
	"voxrecipe/internal/paths"
	"voxrecipe/internal/runstore"
)

var errLedgerDisabled = errors.New("run ledger is disabled ([ledger] enabled = false)")

func withStore(ctx *commandContext, fn func(*config.Config, *runstore.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if !cfg.Ledger.Enabled {
		return errLedgerDisabled
	}
	store, err := runstore.Open(cfg)
	if err != nil {
		return fmt.Errorf("open run ledger: %w", err)
	}
	defer store.Close()
	return fn(cfg, store)
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(cfg *config.Config, store *runstore.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, len(runs))
				for i, run := range runs {
					rows[i] = []string{
						shortID(run.ID),
						run.ExpName,
						fmt.Sprintf("%d-%d", run.Start, run.Stop),
						strconv.Itoa(run.NJ),
						string(run.Status),
						run.StartedAt.Local().Format("2006-01-02 15:04:05"),
						formatDuration(run.Duration()),
					}
				}
				fmt.Fprintln(out, renderTable([]column{
					{title: "Run"},
					{title: "Experiment", maxWidth: 48},
					{title: "Stages"},
					{title: "NJ", numeric: true},
					{title: "Status"},
					{title: "Started"},
					{title: "Duration", numeric: true},
				}, rows))
				return printLastFailure(cmd.Context(), cmd, store, paths.ExpName(cfg))
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	cmd.AddCommand(newHistoryShowCommand(ctx))
	return cmd
}

func printLastFailure(ctx context.Context, cmd *cobra.Command, store *runstore.Store, expname string) error {
	failure, err := store.LastFailure(ctx, expname)
	if err != nil || failure == nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nLast failure for %s: stage %d (%s) in run %s; rerun with --stage %d\n",
		expname, failure.Index, failure.Name, shortID(failure.RunID), failure.Index)
	return nil
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show per-stage outcomes of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(_ *config.Config, store *runstore.Store) error {
				run, stages, err := store.GetRun(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run:        %s\n", run.ID)
				fmt.Fprintf(out, "Experiment: %s\n", run.ExpName)
				fmt.Fprintf(out, "Stages:     %d-%d (nj %d)\n", run.Start, run.Stop, run.NJ)
				fmt.Fprintf(out, "Status:     %s\n", run.Status)
				if run.ConfigPath != "" {
					fmt.Fprintf(out, "Config:     %s\n", run.ConfigPath)
				}
				fmt.Fprintf(out, "Duration:   %s\n", formatDuration(run.Duration()))
				if run.Error != "" {
					fmt.Fprintf(out, "Error:      %s\n", run.Error)
				}
				if len(stages) == 0 {
					return nil
				}

				rows := make([][]string, len(stages))
				for i, s := range stages {
					elapsed := "-"
					if s.FinishedAt != nil {
						elapsed = formatDuration(s.FinishedAt.Sub(s.StartedAt))
					}
					rows[i] = []string{
						strconv.Itoa(s.Index),
						s.Name,
						string(s.Status),
						subJobSummary(s),
						elapsed,
					}
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable([]column{
					{title: "#", numeric: true},
					{title: "Stage"},
					{title: "Status"},
					{title: "Sub-jobs", maxWidth: 60},
					{title: "Elapsed", numeric: true},
				}, rows))
				return nil
			})
		},
	}
}

func subJobSummary(s runstore.StageRun) string {
	switch {
	case s.FailedSubJobs > 0:
		fe := &fanout.FailureError{Failed: s.FailedSubJobs, Total: s.TotalSubJobs, Partitions: s.FailedPartitions}
		return fe.Error()
	case s.Error != "":
		return s.Error
	case s.TotalSubJobs > 0:
		return strconv.Itoa(s.TotalSubJobs)
	default:
		return "-"
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
