package recipe

import (
	"fmt"
	"path/filepath"
	"strconv"

	"voxrecipe/internal/config"
	"voxrecipe/internal/jobs"
	"voxrecipe/internal/paths"
)

// argv accumulates --flag value pairs.
type argv []string

func (a *argv) str(flag, value string) {
	*a = append(*a, "--"+flag, value)
}

func (a *argv) num(flag string, value int) {
	*a = append(*a, "--"+flag, strconv.Itoa(value))
}

// optional omits zero values so the tool falls back to its own default.
func (a *argv) optional(flag string, value int) {
	if value != 0 {
		a.num(flag, value)
	}
}

func (a *argv) optionalStr(flag, value string) {
	if value != "" {
		a.str(flag, value)
	}
}

func (a *argv) partition(p, nj int) {
	a.num("job", p)
	a.num("nj", nj)
}

func logFile(dir, tool string, p int) string {
	name := tool + ".log"
	if p > 0 {
		name = fmt.Sprintf("%s.%d.log", tool, p)
	}
	return filepath.Join(paths.LogDir(dir), name)
}

func dataPrepJob(cfg *config.Config) jobs.Job {
	var a argv
	a.str("db-root", cfg.Datasets.DBRoot)
	a.str("data-dir", cfg.Paths.DataRoot)
	a.str("train-set", cfg.Datasets.TrainSet)
	a.str("dev-set", cfg.Datasets.DevSet)
	a.str("eval-set", cfg.Datasets.EvalSet)
	return jobs.Job{Name: "data_prep", Binary: cfg.Tools.DataPrep, Args: a, LogPath: logFile(cfg.Paths.DataRoot, "data_prep", 0)}
}

// featureArgs are the filterbank parameters shared by extraction and synthesis.
func featureArgs(a *argv, f config.Features) {
	a.num("fs", f.FS)
	a.optional("fmax", f.FMax)
	a.optional("fmin", f.FMin)
	a.num("n-mels", f.NMels)
	a.num("n-fft", f.NFFT)
	a.num("n-shift", f.NShift)
	a.optional("win-length", f.WinLength)
}

func makeFbankJob(cfg *config.Config, split string, p int) jobs.Job {
	var a argv
	featureArgs(&a, cfg.Features)
	a.partition(p, cfg.Pipeline.NJ)
	a.str("data-dir", paths.DataDir(cfg, split))
	a.str("out-dir", paths.FeatDir(cfg, split))
	return jobs.Job{Name: "make_fbank", Binary: cfg.Tools.MakeFbank, Args: a, LogPath: logFile(paths.FeatDir(cfg, split), "make_fbank", p)}
}

func computeCMVNJob(cfg *config.Config) jobs.Job {
	var a argv
	a.str("feats", paths.FeatsScp(cfg, cfg.Datasets.TrainSet))
	a.str("out", paths.CMVNPath(cfg))
	return jobs.Job{Name: "compute_cmvn", Binary: cfg.Tools.ComputeCMVN, Args: a, LogPath: logFile(paths.FeatDir(cfg, cfg.Datasets.TrainSet), "compute_cmvn", 0)}
}

func makeDictJob(cfg *config.Config) jobs.Job {
	var a argv
	a.str("text", filepath.Join(paths.DataDir(cfg, cfg.Datasets.TrainSet), "text"))
	a.str("out", paths.DictPath(cfg))
	return jobs.Job{Name: "make_dict", Binary: cfg.Tools.MakeDict, Args: a, LogPath: logFile(filepath.Dir(paths.DictPath(cfg)), "make_dict", 0)}
}

func data2JSONJob(cfg *config.Config, split string) jobs.Job {
	var a argv
	a.str("feats", paths.FeatsScp(cfg, split))
	a.str("dict", paths.DictPath(cfg))
	a.str("data-dir", paths.DataDir(cfg, split))
	a.str("out", paths.DataJSON(cfg, split))
	return jobs.Job{Name: "data2json", Binary: cfg.Tools.Data2JSON, Args: a, LogPath: logFile(paths.FeatDir(cfg, split), "data2json", 0)}
}

func trainJob(cfg *config.Config) jobs.Job {
	var a argv
	a.str("backend", cfg.Pipeline.Backend)
	a.num("ngpu", cfg.Pipeline.NGPU)
	a.str("outdir", paths.ResultsDir(cfg))
	a.str("tensorboard-dir", paths.TensorboardDir(cfg))
	a.num("verbose", cfg.Pipeline.Verbose)
	a.num("seed", cfg.Pipeline.Seed)
	a.optionalStr("resume", cfg.Pipeline.Resume)
	a.str("train-json", paths.DataJSON(cfg, cfg.Datasets.TrainSet))
	a.str("valid-json", paths.DataJSON(cfg, cfg.Datasets.DevSet))
	a.str("config", cfg.Model.TrainConfig)
	return jobs.Job{Name: "tts_train", Binary: cfg.Tools.Train, Args: a, LogPath: logFile(paths.ExpDir(cfg), "train", 0)}
}

func averageJob(cfg *config.Config) jobs.Job {
	var a argv
	a.str("backend", cfg.Pipeline.Backend)
	a.str("snapshots-dir", paths.ResultsDir(cfg))
	a.str("out", paths.ModelPath(cfg))
	a.num("num", cfg.Model.NAverage)
	return jobs.Job{Name: "average_checkpoints", Binary: cfg.Tools.Average, Args: a, LogPath: logFile(paths.ExpDir(cfg), "average_checkpoints", 0)}
}

func splitJSONJob(cfg *config.Config, split string) jobs.Job {
	var a argv
	a.num("parts", cfg.Pipeline.NJ)
	a.str("json", paths.DataJSON(cfg, split))
	return jobs.Job{Name: "splitjson", Binary: cfg.Tools.SplitJSON, Args: a, LogPath: logFile(paths.DecodeSplitDir(cfg, split), "splitjson", 0)}
}

func decodeJob(cfg *config.Config, split string, p int) jobs.Job {
	var a argv
	a.str("backend", cfg.Pipeline.Backend)
	a.num("ngpu", 0)
	a.num("verbose", cfg.Pipeline.Verbose)
	a.str("json", paths.SplitJSON(cfg, split, p))
	a.str("model", paths.ModelPath(cfg))
	a.str("config", cfg.Model.DecodeConfig)
	a.str("out", filepath.Join(paths.DecodeSplitDir(cfg, split), fmt.Sprintf("feats.%d", p)))
	return jobs.Job{Name: "tts_decode", Binary: cfg.Tools.Decode, Args: a, LogPath: logFile(paths.DecodeSplitDir(cfg, split), "decode", p)}
}

func applyCMVNJob(cfg *config.Config, split string) jobs.Job {
	var a argv
	a.str("reverse", "true")
	a.str("cmvn", paths.CMVNPath(cfg))
	a.str("feats", filepath.Join(paths.DecodeSplitDir(cfg, split), featsListing))
	a.str("out", filepath.Join(paths.DenormSplitDir(cfg, split), featsListing))
	return jobs.Job{Name: "apply_cmvn", Binary: cfg.Tools.ApplyCMVN, Args: a, LogPath: logFile(paths.DenormSplitDir(cfg, split), "apply_cmvn", 0)}
}

func convertFbankJob(cfg *config.Config, split string, p int) jobs.Job {
	var a argv
	featureArgs(&a, cfg.Features)
	a.num("iters", cfg.Model.GriffinLimIters)
	a.partition(p, cfg.Pipeline.NJ)
	a.str("in-dir", paths.DenormSplitDir(cfg, split))
	a.str("out-dir", paths.DenormSplitDir(cfg, split))
	return jobs.Job{Name: "convert_fbank", Binary: cfg.Tools.ConvertFbank, Args: a, LogPath: logFile(paths.DenormSplitDir(cfg, split), "convert_fbank", p)}
}
