package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	c.Pipeline.Backend = strings.ToLower(strings.TrimSpace(c.Pipeline.Backend))
	if c.Pipeline.Backend == "" {
		c.Pipeline.Backend = defaultBackend
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeModel()
	c.normalizeDatasets()
	c.normalizeTools()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataRoot, err = expandHome(orDefault(c.Paths.DataRoot, defaultDataRoot)); err != nil {
		return fmt.Errorf("paths.data_root: %w", err)
	}
	if c.Paths.DumpDir, err = expandHome(orDefault(c.Paths.DumpDir, defaultDumpDir)); err != nil {
		return fmt.Errorf("paths.dumpdir: %w", err)
	}
	if c.Paths.ExpRoot, err = expandHome(orDefault(c.Paths.ExpRoot, defaultExpRoot)); err != nil {
		return fmt.Errorf("paths.exp_root: %w", err)
	}
	if c.Paths.TensorboardRoot, err = expandHome(orDefault(c.Paths.TensorboardRoot, defaultTensorboardRoot)); err != nil {
		return fmt.Errorf("paths.tensorboard_root: %w", err)
	}
	if c.Datasets.DBRoot, err = expandHome(c.Datasets.DBRoot); err != nil {
		return fmt.Errorf("datasets.db_root: %w", err)
	}
	if c.Pipeline.Resume, err = expandHome(c.Pipeline.Resume); err != nil {
		return fmt.Errorf("pipeline.resume: %w", err)
	}
	if c.Ledger.Path, err = expandHome(c.Ledger.Path); err != nil {
		return fmt.Errorf("ledger.path: %w", err)
	}
	if c.Metrics.Textfile, err = expandHome(c.Metrics.Textfile); err != nil {
		return fmt.Errorf("metrics.textfile: %w", err)
	}
	if c.Logging.File, err = expandHome(c.Logging.File); err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}
	return nil
}

func (c *Config) normalizeModel() {
	c.Model.TrainConfig = strings.TrimSpace(c.Model.TrainConfig)
	c.Model.DecodeConfig = strings.TrimSpace(c.Model.DecodeConfig)
	c.Model.Model = strings.TrimSpace(c.Model.Model)
	if c.Model.Model == "" {
		c.Model.Model = defaultModel
	}
	c.Model.Tag = strings.TrimSpace(c.Model.Tag)
}

func (c *Config) normalizeDatasets() {
	c.Datasets.TrainSet = strings.TrimSpace(c.Datasets.TrainSet)
	c.Datasets.DevSet = strings.TrimSpace(c.Datasets.DevSet)
	c.Datasets.EvalSet = strings.TrimSpace(c.Datasets.EvalSet)
}

func (c *Config) normalizeTools() {
	defaults := defaultTools()
	c.Tools.DataPrep = orDefault(c.Tools.DataPrep, defaults.DataPrep)
	c.Tools.MakeFbank = orDefault(c.Tools.MakeFbank, defaults.MakeFbank)
	c.Tools.ComputeCMVN = orDefault(c.Tools.ComputeCMVN, defaults.ComputeCMVN)
	c.Tools.MakeDict = orDefault(c.Tools.MakeDict, defaults.MakeDict)
	c.Tools.Data2JSON = orDefault(c.Tools.Data2JSON, defaults.Data2JSON)
	c.Tools.Train = orDefault(c.Tools.Train, defaults.Train)
	c.Tools.Average = orDefault(c.Tools.Average, defaults.Average)
	c.Tools.SplitJSON = orDefault(c.Tools.SplitJSON, defaults.SplitJSON)
	c.Tools.Decode = orDefault(c.Tools.Decode, defaults.Decode)
	c.Tools.ApplyCMVN = orDefault(c.Tools.ApplyCMVN, defaults.ApplyCMVN)
	c.Tools.ConvertFbank = orDefault(c.Tools.ConvertFbank, defaults.ConvertFbank)

	wrapper := make([]string, 0, len(c.Jobs.Wrapper))
	for _, arg := range c.Jobs.Wrapper {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			wrapper = append(wrapper, trimmed)
		}
	}
	c.Jobs.Wrapper = wrapper
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
