// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "avimg.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "data/labels.pickle", cfg.Paths.LabelsFile)
	assert.Equal(t, "data/perssplit", cfg.Paths.SplitDir)
	assert.Equal(t, "Answer.q7_persuasive", cfg.Labels.Field)
	assert.Equal(t, 5.5, cfg.Labels.Threshold)
	assert.Equal(t, 224, cfg.Images.Size)
	assert.Equal(t, []float64{103.939, 116.779, 123.68}, cfg.Images.ChannelMeans)
	assert.Equal(t, []float64{0.0001}, cfg.Training.LearningRates)
	assert.Equal(t, 1, cfg.Training.Epochs)
	assert.Equal(t, 100, cfg.Training.BatchSize)
	assert.Equal(t, 4, cfg.Training.ValFraction)
}

func TestDefaultIsNotShared(t *testing.T) {
	cfg := Default()
	cfg.Training.LearningRates[0] = 1
	cfg.Images.ChannelMeans[0] = 0
	assert.Equal(t, 0.0001, DefaultLearningRates[0])
	assert.Equal(t, 103.939, DefaultChannelMeans[0])
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
[paths]
labels_file = "/data/labels.csv"
split_dir = "/data/splits"

[images]
size = 32
extension = "png"

[training]
learning_rates = [0.01, 0.001]
batch_size = 8

[output]
plots = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/labels.csv", cfg.Paths.LabelsFile)
	assert.Equal(t, "/data/splits", cfg.Paths.SplitDir)
	assert.Equal(t, 32, cfg.Images.Size)
	assert.Equal(t, ".png", cfg.Images.Extension)
	assert.Equal(t, []float64{0.01, 0.001}, cfg.Training.LearningRates)
	assert.Equal(t, 8, cfg.Training.BatchSize)
	assert.True(t, cfg.Output.Plots)

	// Untouched values keep their defaults.
	assert.Equal(t, "Answer.q7_persuasive", cfg.Labels.Field)
	assert.Equal(t, 1, cfg.Training.Epochs)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	for name, contents := range map[string]string{
		"syntax":        "[paths\n",
		"unknown field": "[paths]\nlabel_file = \"x\"\n",
		"means":         "[images]\nchannel_means = [1.0, 2.0]\n",
		"size":          "[images]\nsize = 0\n",
		"lr":            "[training]\nlearning_rates = [0.1, -0.1]\n",
		"no lr":         "[training]\nlearning_rates = []\n",
		"batch":         "[training]\nbatch_size = 0\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, contents))
			require.Error(t, err)
		})
	}
}
