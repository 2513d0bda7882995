package main

import (
	"github.com/spf13/pflag"

	"voxrecipe/internal/config"
)

// recipeFlags holds the command-line recipe options. Only flags the user
// actually set override the configuration file.
type recipeFlags struct {
	backend   string
	stage     int
	stopStage int
	ngpu      int
	nj        int
	dumpdir   string
	verbose   int
	seed      int
	resume    string

	fs        int
	fmax      int
	fmin      int
	nMels     int
	nFFT      int
	nShift    int
	winLength int

	trainConfig     string
	decodeConfig    string
	model           string
	nAverage        int
	griffinLimIters int
	tag             string
}

func (f *recipeFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.backend, "backend", "", "Training backend (pytorch or chainer)")
	fs.IntVar(&f.stage, "stage", 0, "First stage to run (inclusive)")
	fs.IntVar(&f.stopStage, "stop-stage", 0, "Last stage to run (inclusive)")
	fs.IntVar(&f.ngpu, "ngpu", 0, "GPUs used for training")
	fs.IntVar(&f.nj, "nj", 0, "Parallel sub-jobs per dataset split")
	fs.StringVar(&f.dumpdir, "dumpdir", "", "Directory for dumped features")
	fs.IntVar(&f.verbose, "verbose", 0, "Tool verbosity")
	fs.IntVar(&f.seed, "seed", 0, "Random seed for training")
	fs.StringVar(&f.resume, "resume", "", "Snapshot to resume training from")

	fs.IntVar(&f.fs, "fs", 0, "Sampling frequency")
	fs.IntVar(&f.fmax, "fmax", 0, "Maximum filterbank frequency (0 = tool default)")
	fs.IntVar(&f.fmin, "fmin", 0, "Minimum filterbank frequency (0 = tool default)")
	fs.IntVar(&f.nMels, "n-mels", 0, "Number of mel bins")
	fs.IntVar(&f.nFFT, "n-fft", 0, "FFT size")
	fs.IntVar(&f.nShift, "n-shift", 0, "Frame shift in samples")
	fs.IntVar(&f.winLength, "win-length", 0, "Window length (0 = n_fft)")

	fs.StringVar(&f.trainConfig, "train-config", "", "Training configuration file")
	fs.StringVar(&f.decodeConfig, "decode-config", "", "Decoding configuration file")
	fs.StringVar(&f.model, "model", "", "Model file used when averaging is disabled")
	fs.IntVar(&f.nAverage, "n-average", 0, "Average the last N snapshots (0 disables)")
	fs.IntVar(&f.griffinLimIters, "griffin-lim-iters", 0, "Griffin-Lim iterations")
	fs.StringVar(&f.tag, "tag", "", "Experiment tag")
}

// overrides returns one config.Override per flag set on the command line.
func (f *recipeFlags) overrides(fs *pflag.FlagSet) []config.Override {
	setters := map[string]config.Override{
		"backend":    func(c *config.Config) { c.Pipeline.Backend = f.backend },
		"stage":      func(c *config.Config) { c.Pipeline.Stage = f.stage },
		"stop-stage": func(c *config.Config) { c.Pipeline.StopStage = f.stopStage },
		"ngpu":       func(c *config.Config) { c.Pipeline.NGPU = f.ngpu },
		"nj":         func(c *config.Config) { c.Pipeline.NJ = f.nj },
		"dumpdir":    func(c *config.Config) { c.Paths.DumpDir = f.dumpdir },
		"verbose":    func(c *config.Config) { c.Pipeline.Verbose = f.verbose },
		"seed":       func(c *config.Config) { c.Pipeline.Seed = f.seed },
		"resume":     func(c *config.Config) { c.Pipeline.Resume = f.resume },

		"fs":         func(c *config.Config) { c.Features.FS = f.fs },
		"fmax":       func(c *config.Config) { c.Features.FMax = f.fmax },
		"fmin":       func(c *config.Config) { c.Features.FMin = f.fmin },
		"n-mels":     func(c *config.Config) { c.Features.NMels = f.nMels },
		"n-fft":      func(c *config.Config) { c.Features.NFFT = f.nFFT },
		"n-shift":    func(c *config.Config) { c.Features.NShift = f.nShift },
		"win-length": func(c *config.Config) { c.Features.WinLength = f.winLength },

		"train-config":      func(c *config.Config) { c.Model.TrainConfig = f.trainConfig },
		"decode-config":     func(c *config.Config) { c.Model.DecodeConfig = f.decodeConfig },
		"model":             func(c *config.Config) { c.Model.Model = f.model },
		"n-average":         func(c *config.Config) { c.Model.NAverage = f.nAverage },
		"griffin-lim-iters": func(c *config.Config) { c.Model.GriffinLimIters = f.griffinLimIters },
		"tag":               func(c *config.Config) { c.Model.Tag = f.tag },
	}

	var out []config.Override
	fs.VisitAll(func(flag *pflag.Flag) {
		if !flag.Changed {
			return
		}
		if set, ok := setters[flag.Name]; ok {
			out = append(out, set)
		}
	})
	return out
}
