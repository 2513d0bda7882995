package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Pipeline contains stage selection and general run parameters.
type Pipeline struct {
	Backend   string `toml:"backend"`
	Stage     int    `toml:"stage"`
	StopStage int    `toml:"stop_stage"`
	NGPU      int    `toml:"ngpu"`
	NJ        int    `toml:"nj"`
	Verbose   int    `toml:"verbose"`
	Seed      int    `toml:"seed"`
	Resume    string `toml:"resume"`
}

// Features contains the filterbank feature parameters shared by feature
// extraction and Griffin-Lim synthesis. Zero values for FMax, FMin and
// WinLength mean "tool default" and are not passed to the tools.
type Features struct {
	FS        int `toml:"fs"`
	FMax      int `toml:"fmax"`
	FMin      int `toml:"fmin"`
	NMels     int `toml:"n_mels"`
	NFFT      int `toml:"n_fft"`
	NShift    int `toml:"n_shift"`
	WinLength int `toml:"win_length"`
}

// Model contains training and decoding configuration references.
type Model struct {
	TrainConfig     string `toml:"train_config"`
	DecodeConfig    string `toml:"decode_config"`
	Model           string `toml:"model"`
	NAverage        int    `toml:"n_average"`
	GriffinLimIters int    `toml:"griffin_lim_iters"`
	Tag             string `toml:"tag"`
}

// Datasets names the corpus location and the dataset splits.
type Datasets struct {
	DBRoot   string `toml:"db_root"`
	TrainSet string `toml:"train_set"`
	DevSet   string `toml:"dev_set"`
	EvalSet  string `toml:"eval_set"`
}

// Paths contains the roots of the persisted recipe layout.
type Paths struct {
	DataRoot        string `toml:"data_root"`
	DumpDir         string `toml:"dumpdir"`
	ExpRoot         string `toml:"exp_root"`
	TensorboardRoot string `toml:"tensorboard_root"`
}

// Tools maps each external collaborator to the executable that implements it.
type Tools struct {
	DataPrep     string `toml:"data_prep"`
	MakeFbank    string `toml:"make_fbank"`
	ComputeCMVN  string `toml:"compute_cmvn"`
	MakeDict     string `toml:"make_dict"`
	Data2JSON    string `toml:"data2json"`
	Train        string `toml:"train"`
	Average      string `toml:"average"`
	SplitJSON    string `toml:"splitjson"`
	Decode       string `toml:"decode"`
	ApplyCMVN    string `toml:"apply_cmvn"`
	ConvertFbank string `toml:"convert_fbank"`
}

// Jobs configures how sub-jobs are handed to the execution backend.
type Jobs struct {
	// Wrapper is an argv prefix placed in front of every tool invocation,
	// e.g. ["slurm.pl", "--mem", "4G"]. Empty runs tools directly.
	Wrapper []string `toml:"wrapper"`
}

// Ledger configures the SQLite run history.
type Ledger struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Metrics configures the Prometheus textfile export.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
}

// Preflight contains thresholds for the environment checks.
type Preflight struct {
	MinFreeGiB int `toml:"min_free_gib"`
}

// Config is the immutable snapshot of every tunable recipe parameter. It is
// built once by Load before any stage runs; stages only read from it.
//
// Configuration sections:
//   - Pipeline: stage range, parallelism, backend, seed, resume snapshot
//   - Features: filterbank parameters
//   - Model: train/decode configs, checkpoint selection, Griffin-Lim iterations, tag
//   - Datasets: corpus root and split names
//   - Paths: data, dump, experiment, and tensorboard roots
//   - Tools: external executables
//   - Jobs: execution backend wrapper
//   - Ledger, Metrics, Logging, Preflight: ambient services
type Config struct {
	Pipeline  Pipeline  `toml:"pipeline"`
	Features  Features  `toml:"features"`
	Model     Model     `toml:"model"`
	Datasets  Datasets  `toml:"datasets"`
	Paths     Paths     `toml:"paths"`
	Tools     Tools     `toml:"tools"`
	Jobs      Jobs      `toml:"jobs"`
	Ledger    Ledger    `toml:"ledger"`
	Metrics   Metrics   `toml:"metrics"`
	Logging   Logging   `toml:"logging"`
	Preflight Preflight `toml:"preflight"`
}

// Override mutates a configuration after the file is decoded and before it is
// normalized and validated. The CLI builds one per explicitly set flag.
type Override func(*Config)

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/voxrecipe/config.toml")
}

// Load locates, parses, and validates a configuration file, then applies the
// overrides. The returned config is normalized and must be treated as read-only.
func Load(path string, overrides ...Override) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, configError("parse %s: %v", resolvedPath, err)
		}
	}

	for _, override := range overrides {
		if override != nil {
			override(&cfg)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, configError("config file %s does not exist", expanded)
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	projectPath, err := filepath.Abs("voxrecipe.toml")
	if err != nil {
		return "", false, err
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	return defaultPath, false, nil
}

// LedgerPath returns the SQLite run ledger location.
func (c *Config) LedgerPath() string {
	if strings.TrimSpace(c.Ledger.Path) != "" {
		return c.Ledger.Path
	}
	return filepath.Join(c.Paths.ExpRoot, "voxrecipe.db")
}

// EvalSets returns the splits that are decoded and synthesized.
func (c *Config) EvalSets() []string {
	return []string{c.Datasets.DevSet, c.Datasets.EvalSet}
}

// AllSets returns every dataset split in canonical order.
func (c *Config) AllSets() []string {
	return []string{c.Datasets.TrainSet, c.Datasets.DevSet, c.Datasets.EvalSet}
}

func expandPath(pathValue string) (string, error) {
	expanded, err := expandHome(pathValue)
	if err != nil || expanded == "" {
		return expanded, err
	}
	absolute, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", expanded, err)
	}
	return absolute, nil
}

// expandHome resolves a leading tilde and cleans the path but keeps relative
// paths relative, so the recipe layout stays anchored at the working directory.
func expandHome(pathValue string) (string, error) {
	pathValue = strings.TrimSpace(pathValue)
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	return filepath.Clean(pathValue), nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
