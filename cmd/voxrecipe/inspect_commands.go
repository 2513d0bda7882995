package main

import (
	"fmt"
	"os/exec"
	"strconv"

	"github.com/spf13/cobra"

	"voxrecipe/internal/artifacts"
	"voxrecipe/internal/config"
	"voxrecipe/internal/logging"
	"voxrecipe/internal/paths"
	"voxrecipe/internal/preflight"
	"voxrecipe/internal/recipe"
	"voxrecipe/internal/stage"
)

// registryFor builds the recipe registry for inspection only; its actions are
// never invoked, so no launcher is needed.
func registryFor(cfg *config.Config) (*stage.Registry, error) {
	return recipe.New(cfg, nil, logging.NewNop()).Registry()
}

func newStagesCommand(ctx *commandContext) *cobra.Command {
	var dot bool
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "List registered stages and the current selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			reg, err := registryFor(cfg)
			if err != nil {
				return err
			}
			graph, err := artifacts.Build(reg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dot {
				return graph.WriteDOT(out)
			}

			order, err := graph.Order()
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(order))
			for _, idx := range order {
				s, ok := reg.Lookup(idx)
				if !ok {
					continue
				}
				upstream, err := graph.Upstream(idx)
				if err != nil {
					return err
				}
				needs := "-"
				if len(upstream) > 0 {
					needs = joinInts(upstream)
				}
				rows = append(rows, []string{
					strconv.Itoa(s.Index),
					s.Label(),
					s.Description,
					needs,
					yesNo(stage.Selected(s.Index, cfg.Pipeline.Stage, cfg.Pipeline.StopStage)),
				})
			}
			fmt.Fprintln(out, renderTable([]column{
				{title: "#", numeric: true},
				{title: "Stage"},
				{title: "Description", maxWidth: 56},
				{title: "Needs"},
				{title: "Selected"},
			}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dot, "dot", false, "Print the stage dependency graph in DOT format")
	return cmd
}

func newPathsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Show the derived experiment layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			entries := paths.Resolve(cfg).Entries()
			rows := make([][]string, len(entries))
			for i, e := range entries {
				rows[i] = []string{e[0], e[1]}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{{title: "Artifact"}, {title: "Path"}}, rows))
			return nil
		},
	}
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify tools, directories and disk space before a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			printer := newStatusPrinter(cmd.OutOrStdout())

			results := preflight.RunAll(cfg)
			printer.section("Preflight")
			for _, r := range results {
				printer.result(r)
			}

			reg, err := registryFor(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout())
			printer.section("Stages")
			for _, s := range reg.Stages() {
				selected := stage.Selected(s.Index, cfg.Pipeline.Stage, cfg.Pipeline.StopStage)
				printer.readiness(s, s.Readiness(exec.LookPath), selected)
			}
			return preflight.Err(results)
		},
	}
}
