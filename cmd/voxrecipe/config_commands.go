package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"voxrecipe/internal/config"
	"voxrecipe/internal/deps"
	"voxrecipe/internal/paths"
	"voxrecipe/internal/services"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create, inspect and validate the recipe configuration",
	}
	cmd.AddCommand(
		newConfigInitCommand(),
		newConfigValidateCommand(ctx),
		newConfigShowCommand(ctx),
	)
	return cmd
}

// initTarget resolves where config init writes, refusing to clobber an
// existing file unless force is set.
func initTarget(path string, force bool) (string, error) {
	var (
		target string
		err    error
	)
	if path = strings.TrimSpace(path); path == "" {
		target, err = config.DefaultConfigPath()
	} else {
		target, err = config.ExpandPath(path)
	}
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "", "config init", "resolve target", err)
	}
	if force {
		return target, nil
	}
	switch _, err := os.Stat(target); {
	case err == nil:
		return "", services.Wrap(services.ErrConfiguration, "", "config init",
			fmt.Sprintf("%s exists; pass --force to replace it", target), nil)
	case !errors.Is(err, fs.ErrNotExist):
		return "", services.Wrap(services.ErrConfiguration, "", "config init", "stat "+target, err)
	}
	return target, nil
}

func newConfigInitCommand() *cobra.Command {
	var (
		path  string
		force bool
	)
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample recipe configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := initTarget(path, force)
			if err != nil {
				return err
			}
			if err := config.CreateSample(target); err != nil {
				return services.Wrap(services.ErrConfiguration, "", "config init", "write sample", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set [datasets] db_root to the corpus and point [tools] at the recipe executables, then run `voxrecipe check`.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "Where to write the configuration")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Replace an existing file")
	cmd.Flags().BoolVar(&force, "overwrite", false, "Alias for --force")
	_ = cmd.Flags().MarkHidden("overwrite")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and summarize the run it describes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source := ctx.configPath
			if !ctx.configExists {
				source += " (missing; built-in defaults)"
			}
			p := cfg.Pipeline
			tools := deps.Select(deps.RecipeRequirements(cfg), p.Stage, p.StopStage)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderFields([][2]string{
				{"Config", source},
				{"Experiment", paths.ExpName(cfg)},
				{"Stages", fmt.Sprintf("%d to %d", p.Stage, p.StopStage)},
				{"Sub-jobs per split", strconv.Itoa(p.NJ)},
				{"GPUs", strconv.Itoa(p.NGPU)},
				{"Splits", strings.Join(cfg.AllSets(), ", ")},
				{"Tools needed", strconv.Itoa(len(tools))},
			}))
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after defaults and flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			data, err := toml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
