// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package config

const (
	defaultLabelsFile  = "data/labels.pickle"
	defaultSplitDir    = "data/perssplit"
	defaultField       = "Answer.q7_persuasive"
	defaultThreshold   = 5.5
	defaultImageSize   = 224
	defaultExtension   = ".jpg"
	defaultEpochs      = 1
	defaultBatchSize   = 100
	defaultValFraction = 4
	defaultDateLayout  = "2006-01-02"
)

var (
	// DefaultLearningRates is also the learning rate used when evaluating without training.
	DefaultLearningRates = []float64{0.0001}

	// DefaultChannelMeans are subtracted from channels 0, 1 and 2 respectively.
	DefaultChannelMeans = []float64{103.939, 116.779, 123.68}
)

// Default returns the configuration with the experiment's compiled-in values.
func Default() Config {
	return Config{
		Paths: Paths{
			LabelsFile: defaultLabelsFile,
			SplitDir:   defaultSplitDir,
		},
		Labels: Labels{
			Field:     defaultField,
			Threshold: defaultThreshold,
		},
		Images: Images{
			Size:         defaultImageSize,
			Extension:    defaultExtension,
			ChannelMeans: append([]float64(nil), DefaultChannelMeans...),
		},
		Training: Training{
			LearningRates: append([]float64(nil), DefaultLearningRates...),
			Epochs:        defaultEpochs,
			BatchSize:     defaultBatchSize,
			ValFraction:   defaultValFraction,
		},
		Output: Output{
			DateLayout: defaultDateLayout,
		},
	}
}
