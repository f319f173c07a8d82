// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiment

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/persuasion/pkg/batches"
	"github.com/gomlx/persuasion/pkg/batches/batchestest"
	"github.com/gomlx/persuasion/pkg/splits"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// fakeModel predicts always 1 if its learning rate is >= predictOneLR, and always 0 otherwise.
// Its loss is 0.25 when predicting 1 and 0.75 when predicting 0.
type fakeModel struct {
	cfg          ModelConfig
	predictOneLR float64

	numTrainSteps, numCheckpoints, numWeights int
	evaluatedSamples                          []int
}

func (m *fakeModel) loss() float64 {
	if m.cfg.LearningRate >= m.predictOneLR {
		return 0.25
	}
	return 0.75
}

func (m *fakeModel) accuracy(labels []float32) float64 {
	var correct int
	for _, label := range labels {
		if (label == 1) == (m.cfg.LearningRate >= m.predictOneLR) {
			correct++
		}
	}
	return float64(correct) / float64(len(labels))
}

func (m *fakeModel) TrainStep(batch *batches.Batch) (Metrics, error) {
	m.numTrainSteps++
	labels := tensors.MustCopyFlatData[float32](batch.Labels)
	return Metrics{Loss: m.loss(), Accuracy: m.accuracy(labels)}, nil
}

func (m *fakeModel) Evaluate(ds train.Dataset) (Metrics, error) {
	var all []float32
	for {
		_, _, labels, err := ds.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Metrics{}, err
		}
		all = append(all, tensors.MustCopyFlatData[float32](labels[0])...)
	}
	if len(all) == 0 {
		return Metrics{}, errors.Errorf("dataset %q is empty", ds.Name())
	}
	m.evaluatedSamples = append(m.evaluatedSamples, len(all))
	return Metrics{Loss: m.loss(), Accuracy: m.accuracy(all)}, nil
}

func touch(dir, name string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), nil, 0o644)
}

func (m *fakeModel) SaveCheckpoint() error {
	m.numCheckpoints++
	return touch(m.cfg.CheckpointDir, "checkpoint")
}

func (m *fakeModel) SaveWeights() error {
	m.numWeights++
	return touch(m.cfg.WeightsDir, "weights")
}

// fakeFactory creates fakeModels and keeps them in creation order.
type fakeFactory struct {
	predictOneLR float64
	models       []*fakeModel
}

func (f *fakeFactory) New(cfg ModelConfig) (Model, error) {
	m := &fakeModel{cfg: cfg, predictOneLR: f.predictOneLR}
	f.models = append(f.models, m)
	return m, nil
}

// newTestData creates 6 training, 5 validation and 5 test images of 4x4 pixels.
// Labels alternate 1, 0, 1, ..., so the accuracy of always predicting 1 on the
// validation and test splits is 0.6.
func newTestData(t *testing.T) *Data {
	ds := batchestest.New(t, 4, map[splits.Name]int{splits.Train: 6, splits.Validation: 5, splits.Test: 5})
	assembler, err := batches.NewAssembler(ds.Store, batches.AssemblerOptions{
		Field:        batchestest.Field,
		Threshold:    5.5,
		Size:         ds.Size,
		ChannelMeans: []float64{103.939, 116.779, 123.68},
	})
	require.NoError(t, err)
	return &Data{
		Manifest:  ds.Manifest,
		ImDir:     ds.ImDir,
		Extension: batchestest.Extension,
		Assembler: assembler,
	}
}
