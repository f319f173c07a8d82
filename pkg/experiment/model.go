// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiment

import (
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/persuasion/pkg/batches"
)

// Metrics of a model over one batch or one dataset.
type Metrics struct {
	Loss, Accuracy float64
}

// Model is a trainable binary classifier, owned by one trial.
type Model interface {
	// TrainStep trains the model on one batch and returns the loss and accuracy of the batch.
	TrainStep(batch *batches.Batch) (Metrics, error)

	// Evaluate the model on every batch of ds, until io.EOF, without training.
	// Metrics are averaged over the examples.
	Evaluate(ds train.Dataset) (Metrics, error)

	// SaveCheckpoint saves the full model state, replacing the previous checkpoint.
	SaveCheckpoint() error

	// SaveWeights saves the final weights of the model.
	SaveWeights() error
}

// ModelConfig configures the creation of a Model.
type ModelConfig struct {
	LearningRate float64

	// PretrainedWeights holds the initial weights of the network.
	PretrainedWeights string

	// DefaultArchWeights selects the standard architecture, initialized from the pretrained
	// weights, as opposed to the custom head.
	DefaultArchWeights bool

	// CheckpointDir and WeightsDir are where SaveCheckpoint and SaveWeights write to.
	// If empty, saving is a no-op.
	CheckpointDir, WeightsDir string
}

// ModelFactory creates a fresh Model.
type ModelFactory func(cfg ModelConfig) (Model, error)
