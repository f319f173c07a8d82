// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiment

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gomlx/pkg/ml/train/losses"
	"github.com/gomlx/gomlx/pkg/ml/train/metrics"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/gomlx/persuasion/pkg/batches"
	"github.com/gomlx/persuasion/pkg/vgg"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Short names of the accuracy metrics used by GoMLXModel.
const (
	BatchAccuracyShortName = "acc"
	MeanAccuracyShortName  = "#acc"
)

// NetworkFn returns the configuration of the network for the given architecture choice.
type NetworkFn func(defaultArchWeights bool) vgg.Config

// GoMLXModel is the Model implemented with a GoMLX VGG16 network, trained with Adam on
// the binary cross-entropy of the logits.
type GoMLXModel struct {
	ctx        *context.Context
	trainer    *train.Trainer
	checkpoint *checkpoints.Handler
	weightsDir string

	trainLossIdx, trainAccIdx int
	evalLossIdx, evalAccIdx   int
}

var _ Model = (*GoMLXModel)(nil)

// NewGoMLXFactory returns a ModelFactory of GoMLXModel running on backend.
// If network is nil, vgg.DefaultConfig is used.
func NewGoMLXFactory(backend backends.Backend, network NetworkFn) ModelFactory {
	if network == nil {
		network = vgg.DefaultConfig
	}
	return func(cfg ModelConfig) (Model, error) {
		return NewGoMLXModel(backend, network(cfg.DefaultArchWeights), cfg)
	}
}

// NewGoMLXModel creates a fresh model: a new context holding the pretrained weights (if
// configured) and a trainer at the configured learning rate.
func NewGoMLXModel(backend backends.Backend, network vgg.Config, cfg ModelConfig) (*GoMLXModel, error) {
	if cfg.LearningRate <= 0 {
		return nil, errors.Errorf("invalid learning rate %g", cfg.LearningRate)
	}
	m := &GoMLXModel{
		// Unchecked: pretrained variables are served by the loader as the graph is built.
		ctx:        context.New().Checked(false),
		weightsDir: cfg.WeightsDir,
	}
	if cfg.PretrainedWeights != "" {
		if _, err := vgg.LoadPretrained(m.ctx, cfg.PretrainedWeights); err != nil {
			return nil, err
		}
	}
	if cfg.CheckpointDir != "" {
		// Keep(1): each save replaces the previous checkpoint.
		var err error
		m.checkpoint, err = checkpoints.Build(m.ctx).Dir(cfg.CheckpointDir).ExcludeAllParams().Keep(1).Done()
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to create checkpoint in %q", cfg.CheckpointDir)
		}
	}

	err := exceptions.TryCatch[error](func() {
		m.trainer = train.NewTrainer(backend, m.ctx, network.ModelFn(),
			losses.BinaryCrossentropyLogits,
			optimizers.Adam().LearningRate(cfg.LearningRate).Done(),
			[]metrics.Interface{metrics.NewBaseMetric("Batch Accuracy", BatchAccuracyShortName,
				metrics.AccuracyMetricType, metrics.BinaryLogitsAccuracyGraph, nil)}, // trainMetrics
			[]metrics.Interface{metrics.NewMeanBinaryLogitsAccuracy("Mean Accuracy", MeanAccuracyShortName)}) // evalMetrics
	})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create trainer")
	}

	if m.trainLossIdx, m.trainAccIdx, err = lossAndAccuracyIndices(m.trainer.TrainMetrics(), BatchAccuracyShortName); err != nil {
		return nil, err
	}
	if m.evalLossIdx, m.evalAccIdx, err = lossAndAccuracyIndices(m.trainer.EvalMetrics(), MeanAccuracyShortName); err != nil {
		return nil, err
	}
	klog.V(1).Infof("created model with learning rate %g (default architecture=%v)", cfg.LearningRate, network.DefaultArchWeights)
	return m, nil
}

// lossAndAccuracyIndices finds the positions of the loss and of the accuracy metrics: the trainer
// includes its own loss metrics before the ones given.
func lossAndAccuracyIndices(metricsList []metrics.Interface, accShortName string) (lossIdx, accIdx int, err error) {
	lossIdx, accIdx = -1, -1
	for ii, metric := range metricsList {
		if lossIdx == -1 && metric.MetricType() == metrics.LossMetricType {
			lossIdx = ii
		}
		if accIdx == -1 && metric.ShortName() == accShortName {
			accIdx = ii
		}
	}
	if lossIdx == -1 || accIdx == -1 {
		return 0, 0, errors.Errorf("trainer is missing the loss or the %q metrics", accShortName)
	}
	return lossIdx, accIdx, nil
}

// TrainStep implements Model.
func (m *GoMLXModel) TrainStep(batch *batches.Batch) (result Metrics, err error) {
	err = exceptions.TryCatch[error](func() {
		values, err := m.trainer.TrainStep(nil, []*tensors.Tensor{batch.Images}, []*tensors.Tensor{batch.Labels})
		if err != nil {
			panic(err)
		}
		result = m.readMetrics(values, m.trainLossIdx, m.trainAccIdx)
	})
	if err != nil {
		return Metrics{}, errors.WithMessagef(err, "train step failed on batch of %d images", batch.Len())
	}
	return
}

// Evaluate implements Model.
func (m *GoMLXModel) Evaluate(ds train.Dataset) (result Metrics, err error) {
	err = exceptions.TryCatch[error](func() {
		values, err := m.trainer.Eval(ds)
		if err != nil {
			panic(err)
		}
		result = m.readMetrics(values, m.evalLossIdx, m.evalAccIdx)
	})
	if err != nil {
		return Metrics{}, errors.WithMessagef(err, "evaluation on %q failed", ds.Name())
	}
	return
}

func (m *GoMLXModel) readMetrics(values []*tensors.Tensor, lossIdx, accIdx int) Metrics {
	if len(values) <= max(lossIdx, accIdx) {
		exceptions.Panicf("trainer returned %d metrics, expected at least %d", len(values), max(lossIdx, accIdx)+1)
	}
	return Metrics{
		Loss:     scalarValue(values[lossIdx]),
		Accuracy: scalarValue(values[accIdx]),
	}
}

// scalarValue converts a float scalar tensor to float64.
func scalarValue(t *tensors.Tensor) float64 {
	switch v := t.Value().(type) {
	case float32:
		return float64(v)
	case float64:
		return v
	default:
		exceptions.Panicf("metric is not a float scalar: %s", t.Shape())
	}
	return 0
}

// SaveCheckpoint implements Model.
func (m *GoMLXModel) SaveCheckpoint() error {
	if m.checkpoint == nil {
		return nil
	}
	return errors.WithMessagef(m.checkpoint.Save(), "failed to save checkpoint to %q", m.checkpoint.Dir())
}

// SaveWeights implements Model.
func (m *GoMLXModel) SaveWeights() error {
	if m.weightsDir == "" {
		return nil
	}
	handler, err := checkpoints.Build(m.ctx).Dir(m.weightsDir).ExcludeAllParams().Done()
	if err != nil {
		return errors.WithMessagef(err, "failed to create weights directory %q", m.weightsDir)
	}
	return errors.WithMessagef(handler.Save(), "failed to save weights to %q", m.weightsDir)
}
