package config

const (
	defaultBackend         = "pytorch"
	defaultStage           = 0
	defaultStopStage       = 100
	defaultNGPU            = 1
	defaultNJ              = 32
	defaultSeed            = 1
	defaultFS              = 22050
	defaultNMels           = 80
	defaultNFFT            = 1024
	defaultNShift          = 256
	defaultTrainConfig     = "conf/train_pytorch_tacotron2.yaml"
	defaultDecodeConfig    = "conf/decode.yaml"
	defaultModel           = "model.loss.best"
	defaultNAverage        = 1
	defaultGriffinLimIters = 64
	defaultDBRoot          = "downloads/LJSpeech-1.1"
	defaultTrainSet        = "train_no_dev"
	defaultDevSet          = "dev"
	defaultEvalSet         = "eval"
	defaultDataRoot        = "data"
	defaultDumpDir         = "dump"
	defaultExpRoot         = "exp"
	defaultTensorboardRoot = "tensorboard"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultMinFreeGiB      = 10
)

// Default returns a Config populated with recipe defaults. The stage range
// selects every registered stage.
func Default() Config {
	return Config{
		Pipeline: Pipeline{
			Backend:   defaultBackend,
			Stage:     defaultStage,
			StopStage: defaultStopStage,
			NGPU:      defaultNGPU,
			NJ:        defaultNJ,
			Seed:      defaultSeed,
		},
		Features: Features{
			FS:     defaultFS,
			NMels:  defaultNMels,
			NFFT:   defaultNFFT,
			NShift: defaultNShift,
		},
		Model: Model{
			TrainConfig:     defaultTrainConfig,
			DecodeConfig:    defaultDecodeConfig,
			Model:           defaultModel,
			NAverage:        defaultNAverage,
			GriffinLimIters: defaultGriffinLimIters,
		},
		Datasets: Datasets{
			DBRoot:   defaultDBRoot,
			TrainSet: defaultTrainSet,
			DevSet:   defaultDevSet,
			EvalSet:  defaultEvalSet,
		},
		Paths: Paths{
			DataRoot:        defaultDataRoot,
			DumpDir:         defaultDumpDir,
			ExpRoot:         defaultExpRoot,
			TensorboardRoot: defaultTensorboardRoot,
		},
		Tools:  defaultTools(),
		Ledger: Ledger{Enabled: true},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Preflight: Preflight{MinFreeGiB: defaultMinFreeGiB},
	}
}

func defaultTools() Tools {
	return Tools{
		DataPrep:     "local/data_prep.sh",
		MakeFbank:    "make_fbank.sh",
		ComputeCMVN:  "compute-cmvn-stats",
		MakeDict:     "text2token.py",
		Data2JSON:    "data2json.sh",
		Train:        "tts_train.py",
		Average:      "average_checkpoints.py",
		SplitJSON:    "splitjson.py",
		Decode:       "tts_decode.py",
		ApplyCMVN:    "apply-cmvn",
		ConvertFbank: "convert_fbank.sh",
	}
}
