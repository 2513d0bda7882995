package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"voxrecipe/internal/config"
)

type commandContext struct {
	configFlag *string
	flags      *recipeFlags
	flagSet    *pflag.FlagSet

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(configFlag *string, flags *recipeFlags, flagSet *pflag.FlagSet) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		flags:      flags,
		flagSet:    flagSet,
	}
}

// ensureConfig loads the configuration once: file values first, then every
// recipe flag the user set explicitly.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		var overrides []config.Override
		if c.flags != nil && c.flagSet != nil {
			overrides = c.flags.overrides(c.flagSet)
		}
		cfg, resolved, exists, err := config.Load(path, overrides...)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
