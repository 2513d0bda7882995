package recipe

import (
	"context"
	"path/filepath"

	"voxrecipe/internal/fanout"
	"voxrecipe/internal/fileutil"
	"voxrecipe/internal/paths"
	"voxrecipe/internal/stage"
)

func (r *Recipe) dataPrepStage() stage.Stage {
	cfg := r.cfg
	var outputs []string
	for _, split := range cfg.AllSets() {
		outputs = append(outputs, paths.DataDir(cfg, split))
	}
	return stage.Stage{
		Index:       0,
		Name:        "data_prep",
		Description: "Prepare Kaldi-style data directories for each split",
		Inputs:      []string{cfg.Datasets.DBRoot},
		Outputs:     outputs,
		Tools:       []string{cfg.Tools.DataPrep},
		Action: func(ctx context.Context) error {
			outcome := fanout.Run(ctx, fanout.Single("", func(ctx context.Context) error {
				return r.launch(ctx, dataPrepJob(cfg))
			}))
			return r.settle(ctx, outcome)
		},
	}
}

func (r *Recipe) featureStage() stage.Stage {
	cfg := r.cfg
	var inputs, outputs []string
	for _, split := range cfg.AllSets() {
		inputs = append(inputs, paths.DataDir(cfg, split))
		outputs = append(outputs, paths.FeatsScp(cfg, split))
	}
	outputs = append(outputs, paths.CMVNPath(cfg))
	return stage.Stage{
		Index:       1,
		Name:        "feature_extraction",
		Description: "Extract filterbank features and training-set CMVN statistics",
		Inputs:      inputs,
		Outputs:     outputs,
		Tools:       []string{cfg.Tools.MakeFbank, cfg.Tools.ComputeCMVN},
		Action: func(ctx context.Context) error {
			branches := make([]fanout.Branch, 0, len(cfg.AllSets()))
			for _, split := range cfg.AllSets() {
				branches = append(branches, fanout.Branch{
					Name:       split,
					Partitions: cfg.Pipeline.NJ,
					Prepare: func(context.Context) error {
						return fileutil.EnsureDir(paths.LogDir(paths.FeatDir(cfg, split)))
					},
					Task: func(ctx context.Context, p int) error {
						return r.launch(ctx, makeFbankJob(cfg, split, p))
					},
				})
			}
			outcome := fanout.Run(ctx, branches...)
			if err := r.concatAll(ctx, &outcome, featsListing, func(split string) string {
				return paths.FeatDir(cfg, split)
			}); err != nil {
				return err
			}

			cmvn := fanout.Run(ctx, fanout.Single(cfg.Datasets.TrainSet, func(ctx context.Context) error {
				return r.launch(ctx, computeCMVNJob(cfg))
			}))
			return r.settle(ctx, cmvn)
		},
	}
}

func (r *Recipe) dictionaryStage() stage.Stage {
	cfg := r.cfg
	inputs := []string{paths.DataDir(cfg, cfg.Datasets.TrainSet)}
	outputs := []string{paths.DictPath(cfg)}
	for _, split := range cfg.AllSets() {
		inputs = append(inputs, paths.FeatsScp(cfg, split))
		outputs = append(outputs, paths.DataJSON(cfg, split))
	}
	return stage.Stage{
		Index:       2,
		Name:        "dictionary",
		Description: "Build the character dictionary and JSON manifests",
		Inputs:      inputs,
		Outputs:     outputs,
		Tools:       []string{cfg.Tools.MakeDict, cfg.Tools.Data2JSON},
		Action: func(ctx context.Context) error {
			dict := fanout.Run(ctx, fanout.Single("", func(ctx context.Context) error {
				if err := fileutil.EnsureDir(filepath.Dir(paths.DictPath(cfg))); err != nil {
					return err
				}
				return r.launch(ctx, makeDictJob(cfg))
			}))
			if err := r.settle(ctx, dict); err != nil {
				return err
			}

			branches := make([]fanout.Branch, 0, len(cfg.AllSets()))
			for _, split := range cfg.AllSets() {
				branches = append(branches, fanout.Single(split, func(ctx context.Context) error {
					return r.launch(ctx, data2JSONJob(cfg, split))
				}))
			}
			return r.settle(ctx, fanout.Run(ctx, branches...))
		},
	}
}

func (r *Recipe) trainingStage() stage.Stage {
	cfg := r.cfg
	inputs := []string{
		paths.DataJSON(cfg, cfg.Datasets.TrainSet),
		paths.DataJSON(cfg, cfg.Datasets.DevSet),
		cfg.Model.TrainConfig,
	}
	return stage.Stage{
		Index:       3,
		Name:        "training",
		Description: "Train the acoustic model",
		Inputs:      inputs,
		Outputs:     []string{paths.ResultsDir(cfg)},
		Tools:       []string{cfg.Tools.Train},
		Action: func(ctx context.Context) error {
			outcome := fanout.Run(ctx, fanout.Single("", func(ctx context.Context) error {
				if err := fileutil.EnsureDir(paths.ResultsDir(cfg)); err != nil {
					return err
				}
				return r.launch(ctx, trainJob(cfg))
			}))
			return r.settle(ctx, outcome)
		},
	}
}

func (r *Recipe) decodingStage() stage.Stage {
	cfg := r.cfg
	inputs := []string{paths.ResultsDir(cfg), cfg.Model.DecodeConfig}
	if cfg.Model.NAverage == 0 {
		inputs = append(inputs, paths.ModelPath(cfg))
	}
	var outputs []string
	for _, split := range cfg.EvalSets() {
		inputs = append(inputs, paths.DataJSON(cfg, split))
		outputs = append(outputs, filepath.Join(paths.DecodeSplitDir(cfg, split), featsListing))
	}
	tools := []string{cfg.Tools.SplitJSON, cfg.Tools.Decode}
	if cfg.Model.NAverage > 0 {
		tools = append(tools, cfg.Tools.Average)
	}
	return stage.Stage{
		Index:       4,
		Name:        "decoding",
		Description: "Decode features for the evaluation splits",
		Inputs:      inputs,
		Outputs:     outputs,
		Tools:       tools,
		Action: func(ctx context.Context) error {
			if cfg.Model.NAverage > 0 {
				avg := fanout.Run(ctx, fanout.Single("", func(ctx context.Context) error {
					return r.launch(ctx, averageJob(cfg))
				}))
				if err := r.settle(ctx, avg); err != nil {
					return err
				}
			}

			branches := make([]fanout.Branch, 0, len(cfg.EvalSets()))
			for _, split := range cfg.EvalSets() {
				branches = append(branches, fanout.Branch{
					Name:       split,
					Partitions: cfg.Pipeline.NJ,
					Prepare: func(ctx context.Context) error {
						if err := fileutil.EnsureDir(paths.LogDir(paths.DecodeSplitDir(cfg, split))); err != nil {
							return err
						}
						return r.launch(ctx, splitJSONJob(cfg, split))
					},
					Task: func(ctx context.Context, p int) error {
						return r.launch(ctx, decodeJob(cfg, split, p))
					},
				})
			}
			outcome := fanout.Run(ctx, branches...)
			return r.concatAll(ctx, &outcome, featsListing, func(split string) string {
				return paths.DecodeSplitDir(cfg, split)
			})
		},
	}
}

func (r *Recipe) synthesisStage() stage.Stage {
	cfg := r.cfg
	inputs := []string{paths.CMVNPath(cfg)}
	var outputs []string
	for _, split := range cfg.EvalSets() {
		inputs = append(inputs, filepath.Join(paths.DecodeSplitDir(cfg, split), featsListing))
		outputs = append(outputs, paths.WavScp(cfg, split))
	}
	return stage.Stage{
		Index:       5,
		Name:        "synthesis",
		Description: "De-normalize features and synthesize waveforms with Griffin-Lim",
		Inputs:      inputs,
		Outputs:     outputs,
		Tools:       []string{cfg.Tools.ApplyCMVN, cfg.Tools.ConvertFbank},
		Action: func(ctx context.Context) error {
			branches := make([]fanout.Branch, 0, len(cfg.EvalSets()))
			for _, split := range cfg.EvalSets() {
				branches = append(branches, fanout.Branch{
					Name:       split,
					Partitions: cfg.Pipeline.NJ,
					Prepare: func(ctx context.Context) error {
						if err := fileutil.EnsureDir(paths.LogDir(paths.DenormSplitDir(cfg, split))); err != nil {
							return err
						}
						return r.launch(ctx, applyCMVNJob(cfg, split))
					},
					Task: func(ctx context.Context, p int) error {
						return r.launch(ctx, convertFbankJob(cfg, split, p))
					},
				})
			}
			outcome := fanout.Run(ctx, branches...)
			return r.concatAll(ctx, &outcome, wavListing, func(split string) string {
				return paths.DenormSplitDir(cfg, split)
			})
		},
	}
}
