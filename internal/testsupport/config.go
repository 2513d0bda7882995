package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"voxrecipe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config whose recipe layout lives in a fresh temp
// directory. The corpus root and the train/decode configs exist, so input
// verification passes for stage 0 and for the model configs.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Pipeline.NJ = 2
	cfgVal.Datasets.DBRoot = filepath.Join(base, "downloads", "LJSpeech-1.1")
	cfgVal.Paths.DataRoot = filepath.Join(base, "data")
	cfgVal.Paths.DumpDir = filepath.Join(base, "dump")
	cfgVal.Paths.ExpRoot = filepath.Join(base, "exp")
	cfgVal.Paths.TensorboardRoot = filepath.Join(base, "tensorboard")
	cfgVal.Model.TrainConfig = filepath.Join(base, "conf", "train_pytorch_tacotron2.yaml")
	cfgVal.Model.DecodeConfig = filepath.Join(base, "conf", "decode.yaml")

	if err := os.MkdirAll(cfgVal.Datasets.DBRoot, 0o755); err != nil {
		t.Fatalf("mkdir corpus: %v", err)
	}
	WriteLines(t, cfgVal.Model.TrainConfig, "model-module: tacotron2")
	WriteLines(t, cfgVal.Model.DecodeConfig, "threshold: 0.5")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithNJ sets the partition count.
func WithNJ(nj int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.NJ = nj
	}
}

// WithAverage sets the number of checkpoints to average.
func WithAverage(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Model.NAverage = n
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, every configured recipe tool is
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			tools := b.cfg.Tools
			names = []string{
				tools.DataPrep, tools.MakeFbank, tools.ComputeCMVN, tools.MakeDict,
				tools.Data2JSON, tools.Train, tools.Average, tools.SplitJSON,
				tools.Decode, tools.ApplyCMVN, tools.ConvertFbank,
			}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, filepath.Base(name))
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.cfg.Tools = stubTools(b.cfg.Tools)

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// stubTools strips directories so the tools resolve through PATH.
func stubTools(t config.Tools) config.Tools {
	for _, p := range []*string{
		&t.DataPrep, &t.MakeFbank, &t.ComputeCMVN, &t.MakeDict, &t.Data2JSON, &t.Train,
		&t.Average, &t.SplitJSON, &t.Decode, &t.ApplyCMVN, &t.ConvertFbank,
	} {
		*p = filepath.Base(*p)
	}
	return t
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ExpRoot)
}
