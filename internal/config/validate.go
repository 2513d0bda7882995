package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"voxrecipe/internal/services"
)

// Validate ensures the configuration is usable. Every failure is tagged with
// services.ErrConfiguration so the run aborts before any stage starts.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateFeatures(); err != nil {
		return err
	}
	if err := c.validateModel(); err != nil {
		return err
	}
	if err := c.validateDatasets(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Preflight.MinFreeGiB < 0 {
		return configError("preflight.min_free_gib must be >= 0")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	switch c.Pipeline.Backend {
	case "pytorch", "chainer":
	default:
		return configError("pipeline.backend must be pytorch or chainer, got %q", c.Pipeline.Backend)
	}
	if c.Pipeline.NJ < 1 {
		return configError("pipeline.nj must be >= 1, got %d", c.Pipeline.NJ)
	}
	if c.Pipeline.NGPU < 0 {
		return configError("pipeline.ngpu must be >= 0, got %d", c.Pipeline.NGPU)
	}
	if c.Pipeline.Verbose < 0 {
		return configError("pipeline.verbose must be >= 0, got %d", c.Pipeline.Verbose)
	}
	if c.Pipeline.Resume != "" {
		if _, err := os.Stat(c.Pipeline.Resume); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return configError("pipeline.resume snapshot %s does not exist", c.Pipeline.Resume)
			}
			return configError("pipeline.resume: %v", err)
		}
	}
	return nil
}

func (c *Config) validateFeatures() error {
	f := c.Features
	if f.FS <= 0 {
		return configError("features.fs must be positive, got %d", f.FS)
	}
	if f.NMels <= 0 {
		return configError("features.n_mels must be positive, got %d", f.NMels)
	}
	if f.NFFT <= 0 {
		return configError("features.n_fft must be positive, got %d", f.NFFT)
	}
	if f.NShift <= 0 {
		return configError("features.n_shift must be positive, got %d", f.NShift)
	}
	if f.FMin < 0 || f.FMax < 0 || f.WinLength < 0 {
		return configError("features.fmin, features.fmax and features.win_length must be >= 0")
	}
	if f.FMax > 0 && f.FMax <= f.FMin {
		return configError("features.fmax (%d) must exceed features.fmin (%d)", f.FMax, f.FMin)
	}
	if f.FMax > f.FS/2 {
		return configError("features.fmax (%d) exceeds the Nyquist frequency of %d", f.FMax, f.FS/2)
	}
	if f.WinLength > f.NFFT {
		return configError("features.win_length (%d) exceeds features.n_fft (%d)", f.WinLength, f.NFFT)
	}
	return nil
}

func (c *Config) validateModel() error {
	if c.Model.TrainConfig == "" {
		return configError("model.train_config must be set")
	}
	if c.Model.DecodeConfig == "" {
		return configError("model.decode_config must be set")
	}
	if c.Model.NAverage < 0 {
		return configError("model.n_average must be >= 0, got %d", c.Model.NAverage)
	}
	if c.Model.GriffinLimIters < 1 {
		return configError("model.griffin_lim_iters must be >= 1, got %d", c.Model.GriffinLimIters)
	}
	return nil
}

func (c *Config) validateDatasets() error {
	seen := make(map[string]struct{}, 3)
	for _, entry := range []struct{ key, value string }{
		{"datasets.train_set", c.Datasets.TrainSet},
		{"datasets.dev_set", c.Datasets.DevSet},
		{"datasets.eval_set", c.Datasets.EvalSet},
	} {
		if entry.value == "" {
			return configError("%s must be set", entry.key)
		}
		if _, dup := seen[entry.value]; dup {
			return configError("%s duplicates another split name (%q)", entry.key, entry.value)
		}
		seen[entry.value] = struct{}{}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return configError("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", services.ErrConfiguration, fmt.Sprintf(format, args...))
}
