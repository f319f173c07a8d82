// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package plots

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointsRoundTrip(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), TrainingPlotFileName)
	first := []Point{
		{MetricName: "Batch Loss", Short: "loss", MetricType: "loss", Step: 0, Value: 0.7},
		{MetricName: "Batch Accuracy", Short: "acc", MetricType: "accuracy", Step: 0, Value: 0.5},
	}
	second := []Point{{MetricName: "Batch Loss", Short: "loss", MetricType: "loss", Step: 1, Value: 0.6}}
	require.NoError(t, WritePoints(filePath, first))
	require.NoError(t, WritePoints(filePath, second))

	points, err := LoadPoints(filePath)
	require.NoError(t, err)
	assert.Equal(t, append(first, second...), points)

	losses := SeriesFromPoints(points, "loss")
	assert.Equal(t, "Batch Loss", losses.Name)
	assert.Equal(t, []float64{0.7, 0.6}, losses.Values)

	_, err = LoadPoints(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestSavePNG(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "batch_losses.png")
	require.NoError(t, SavePNG(filePath, "Batch losses", "batch", "loss",
		Series{Name: "loss", Values: []float64{0.9, 0.7, 0.65, 0.5}}))
	info, err := os.Stat(filePath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	require.Error(t, SavePNG(filepath.Join(t.TempDir(), "plot.txt"), "x", "x", "y"))
}
