package paths

import (
	"fmt"
	"path/filepath"
	"strings"

	"voxrecipe/internal/config"
)

const (
	featsListing = "feats.scp"
	wavListing   = "wav.scp"
	dataJSON     = "data.json"
	dictDir      = "lang_1char"
	cmvnFile     = "cmvn.ark"
	logDirName   = "log"
)

// stem returns the base name of path with its final extension removed.
func stem(path string) string {
	base := filepath.Base(strings.TrimSpace(path))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ExpName returns the experiment identity: <train_set>_<backend>_<tag>, or the
// train config basename when no tag is configured.
func ExpName(cfg *config.Config) string {
	suffix := strings.TrimSpace(cfg.Model.Tag)
	if suffix == "" {
		suffix = stem(cfg.Model.TrainConfig)
	}
	return fmt.Sprintf("%s_%s_%s", cfg.Datasets.TrainSet, cfg.Pipeline.Backend, suffix)
}

// ExpDir is the per-experiment output root.
func ExpDir(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.ExpRoot, ExpName(cfg))
}

// ResultsDir holds training snapshots and model checkpoints.
func ResultsDir(cfg *config.Config) string {
	return filepath.Join(ExpDir(cfg), "results")
}

// TensorboardDir is where the trainer writes its event files.
func TensorboardDir(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.TensorboardRoot, ExpName(cfg))
}

// DataDir is the prepared Kaldi-style directory for one split.
func DataDir(cfg *config.Config, split string) string {
	return filepath.Join(cfg.Paths.DataRoot, split)
}

// FeatDir is the feature dump directory for one split.
func FeatDir(cfg *config.Config, split string) string {
	return filepath.Join(cfg.Paths.DumpDir, split)
}

// FeatsScp is the concatenated feature listing for one split.
func FeatsScp(cfg *config.Config, split string) string {
	return filepath.Join(FeatDir(cfg, split), featsListing)
}

// DataJSON is the model input manifest for one split.
func DataJSON(cfg *config.Config, split string) string {
	return filepath.Join(FeatDir(cfg, split), dataJSON)
}

// SplitJSON is partition p of the manifest split into nj parts.
func SplitJSON(cfg *config.Config, split string, p int) string {
	return filepath.Join(FeatDir(cfg, split), fmt.Sprintf("split%dutt", cfg.Pipeline.NJ), fmt.Sprintf("data.%d.json", p))
}

// DictPath is the character dictionary built from the training transcripts.
func DictPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataRoot, dictDir, cfg.Datasets.TrainSet+"_units.txt")
}

// CMVNPath holds the global mean/variance statistics of the training features.
func CMVNPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataRoot, cfg.Datasets.TrainSet, cmvnFile)
}

// ModelName is the checkpoint decoding uses. Averaging the last N snapshots
// yields a synthesized name distinct from the configured single checkpoint.
func ModelName(cfg *config.Config) string {
	if n := cfg.Model.NAverage; n > 0 {
		return fmt.Sprintf("model.last%d.avg.best", n)
	}
	return cfg.Model.Model
}

// ModelPath is the resolved checkpoint file.
func ModelPath(cfg *config.Config) string {
	return filepath.Join(ResultsDir(cfg), ModelName(cfg))
}

// DecodeDir is keyed by checkpoint name and decode config basename.
func DecodeDir(cfg *config.Config) string {
	return filepath.Join(ExpDir(cfg), fmt.Sprintf("outputs_%s_%s", ModelName(cfg), stem(cfg.Model.DecodeConfig)))
}

// DecodeSplitDir holds the decoded features of one split.
func DecodeSplitDir(cfg *config.Config, split string) string {
	return filepath.Join(DecodeDir(cfg), split)
}

// DenormDir holds de-normalized features and synthesized waveforms.
func DenormDir(cfg *config.Config) string {
	return DecodeDir(cfg) + "_denorm"
}

// DenormSplitDir is the synthesis output for one split.
func DenormSplitDir(cfg *config.Config, split string) string {
	return filepath.Join(DenormDir(cfg), split)
}

// WavScp is the concatenated waveform listing for one split.
func WavScp(cfg *config.Config, split string) string {
	return filepath.Join(DenormSplitDir(cfg, split), wavListing)
}

// LogDir is the sub-job log directory beneath dir.
func LogDir(dir string) string {
	return filepath.Join(dir, logDirName)
}

// SplitLayout groups the per-split locations.
type SplitLayout struct {
	Name      string
	DataDir   string
	FeatDir   string
	FeatsScp  string
	DataJSON  string
	DecodeDir string
	DenormDir string
}

// Layout is every derived location for one configuration.
type Layout struct {
	ExpName        string
	ExpDir         string
	ResultsDir     string
	TensorboardDir string
	DictPath       string
	CMVNPath       string
	ModelName      string
	ModelPath      string
	DecodeDir      string
	DenormDir      string
	Splits         []SplitLayout
}

// Resolve gathers the full layout. Two calls with equal configs return equal layouts.
func Resolve(cfg *config.Config) Layout {
	layout := Layout{
		ExpName:        ExpName(cfg),
		ExpDir:         ExpDir(cfg),
		ResultsDir:     ResultsDir(cfg),
		TensorboardDir: TensorboardDir(cfg),
		DictPath:       DictPath(cfg),
		CMVNPath:       CMVNPath(cfg),
		ModelName:      ModelName(cfg),
		ModelPath:      ModelPath(cfg),
		DecodeDir:      DecodeDir(cfg),
		DenormDir:      DenormDir(cfg),
	}
	for _, split := range cfg.AllSets() {
		layout.Splits = append(layout.Splits, SplitLayout{
			Name:      split,
			DataDir:   DataDir(cfg, split),
			FeatDir:   FeatDir(cfg, split),
			FeatsScp:  FeatsScp(cfg, split),
			DataJSON:  DataJSON(cfg, split),
			DecodeDir: DecodeSplitDir(cfg, split),
			DenormDir: DenormSplitDir(cfg, split),
		})
	}
	return layout
}

// Entries flattens the layout into labeled rows for display.
func (l Layout) Entries() [][2]string {
	rows := [][2]string{
		{"expname", l.ExpName},
		{"expdir", l.ExpDir},
		{"results", l.ResultsDir},
		{"tensorboard", l.TensorboardDir},
		{"dict", l.DictPath},
		{"cmvn", l.CMVNPath},
		{"model", l.ModelPath},
		{"decode", l.DecodeDir},
		{"denorm", l.DenormDir},
	}
	for _, s := range l.Splits {
		rows = append(rows,
			[2]string{s.Name + " data", s.DataDir},
			[2]string{s.Name + " feats", s.FeatsScp},
			[2]string{s.Name + " json", s.DataJSON},
		)
	}
	return rows
}
