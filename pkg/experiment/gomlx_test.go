// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiment

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/simplego"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/gomlx/persuasion/pkg/batches"
	"github.com/gomlx/persuasion/pkg/splits"
	"github.com/gomlx/persuasion/pkg/vgg"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tinyNetwork works on the 4x4 test images: 2 blocks of mean-pooling, since the SimpleGo
// backend has no max-pooling gradient.
func tinyNetwork(defaultArchWeights bool) vgg.Config {
	cfg := vgg.DefaultConfig(defaultArchWeights)
	cfg.Blocks = [][]int{{2}, {3}}
	cfg.TopUnits = 4
	cfg.HeadUnits = 3
	cfg.Pooling = vgg.MeanPooling
	return cfg
}

// tinyMaxPoolNetwork is tinyNetwork with the VGG16 max-pooling, for evaluation only.
func tinyMaxPoolNetwork(defaultArchWeights bool) vgg.Config {
	cfg := tinyNetwork(defaultArchWeights)
	cfg.Pooling = vgg.MaxPooling
	return cfg
}

func TestGoMLXModel(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}
	backend := must.M1(backends.NewWithConfig("go"))
	defer backend.Finalize()
	data := newTestData(t)
	dir := t.TempDir()

	for _, defaultArch := range []bool{true, false} {
		trialDir := filepath.Join(dir, TrialDirName(0.001))
		if defaultArch {
			trialDir += "_default_arch"
		}
		model, err := NewGoMLXFactory(backend, tinyNetwork)(ModelConfig{
			LearningRate:       0.001,
			DefaultArchWeights: defaultArch,
			CheckpointDir:      filepath.Join(trialDir, CheckpointDirName),
			WeightsDir:         filepath.Join(trialDir, WeightsDirName),
		})
		require.NoError(t, err)

		gen, err := data.Generator([]splits.Name{splits.Train}, 2, true, true, nil)
		require.NoError(t, err)
		for range 3 {
			batch, err := gen.NextBatch()
			require.NoError(t, err)
			m, err := model.TrainStep(batch)
			require.NoError(t, err)
			_ = batch.Finalize()
			assert.GreaterOrEqual(t, m.Accuracy, 0.0)
			assert.LessOrEqual(t, m.Accuracy, 1.0)
			assert.Greater(t, m.Loss, 0.0)
		}

		testGen, err := data.Generator([]splits.Name{splits.Test}, 2, false, false, nil)
		require.NoError(t, err)
		m, err := model.Evaluate(batches.FullPass(testGen))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, m.Accuracy, 0.0)
		assert.LessOrEqual(t, m.Accuracy, 1.0)

		require.NoError(t, model.SaveCheckpoint())
		require.NoError(t, model.SaveWeights())
		for _, sub := range []string{CheckpointDirName, WeightsDirName} {
			entries, err := os.ReadDir(filepath.Join(trialDir, sub))
			require.NoError(t, err)
			assert.NotEmpty(t, entries)
		}
	}

	_, err := NewGoMLXModel(backend, tinyNetwork(false), ModelConfig{LearningRate: 0})
	require.Error(t, err)
	_, err = NewGoMLXModel(backend, tinyNetwork(false), ModelConfig{LearningRate: 0.1, PretrainedWeights: filepath.Join(dir, "missing")})
	require.Error(t, err)
}

func TestGoMLXModelPretrained(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}
	backend := must.M1(backends.NewWithConfig("go"))
	defer backend.Finalize()
	data := newTestData(t)
	dir := t.TempDir()
	factory := NewGoMLXFactory(backend, tinyMaxPoolNetwork)
	evaluate := func(model Model) Metrics {
		testGen, err := data.Generator([]splits.Name{splits.Test}, 2, false, false, nil)
		require.NoError(t, err)
		m, err := model.Evaluate(batches.FullPass(testGen))
		require.NoError(t, err)
		return m
	}

	for _, defaultArch := range []bool{true, false} {
		// The "pretrained" weights: a first evaluation creates the variables to save.
		weightsDir := filepath.Join(dir, fmt.Sprintf("pretrained_%v", defaultArch))
		source, err := factory(ModelConfig{LearningRate: 0.001, DefaultArchWeights: defaultArch, WeightsDir: weightsDir})
		require.NoError(t, err)
		want := evaluate(source)
		require.NoError(t, source.SaveWeights())

		// Evaluation only, as with --train=false.
		model, err := factory(ModelConfig{LearningRate: 0.001, DefaultArchWeights: defaultArch, PretrainedWeights: weightsDir})
		require.NoError(t, err)
		got := evaluate(model)
		assert.InDelta(t, want.Loss, got.Loss, 1e-4)
		assert.Equal(t, want.Accuracy, got.Accuracy)
	}

	// Weights saved under another scope are not VGG16 weights.
	otherDir := filepath.Join(dir, "other")
	ctx := context.New()
	context.MustExecOnce(backend, ctx, func(ctx *context.Context, x *graph.Node) *graph.Node {
		return graph.ReduceAllSum(ctx.In("other").VariableWithValue("w", []float32{1, 2}).ValueGraph(x.Graph()))
	}, float32(0))
	handler, err := checkpoints.Build(ctx).Dir(otherDir).Done()
	require.NoError(t, err)
	require.NoError(t, handler.Save())
	_, err = factory(ModelConfig{LearningRate: 0.001, PretrainedWeights: otherDir})
	require.ErrorContains(t, err, "not a VGG16 checkpoint")
}
