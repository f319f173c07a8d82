// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiment

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFloat(t *testing.T) {
	for v, want := range map[float64]string{
		1:            "1.0",
		0:            "0.0",
		0.25:         "0.25",
		0.001:        "0.001",
		0.0001:       "0.0001",
		0.00001:      "1e-05",
		-2.5:         "-2.5",
		0.7333333333: "0.7333333333",
		1e16:         "1e+16",
	} {
		assert.Equal(t, want, FormatFloat(v), "FormatFloat(%g)", v)
	}
	assert.Equal(t, "nan", FormatFloat(math.NaN()))
	assert.Equal(t, "inf", FormatFloat(math.Inf(1)))
}

func TestFormatCollections(t *testing.T) {
	assert.Equal(t, "[]", FormatList(nil))
	assert.Equal(t, "[0.5, 1.0, 0.125]", FormatList([]float64{0.5, 1, 0.125}))
	assert.Equal(t, "{0.0001: 0.5, 0.001: 0.9, 0.01: 0.7}",
		FormatDict(map[float64]float64{0.01: 0.7, 0.001: 0.9, 0.0001: 0.5}))
	assert.Equal(t, "{'batch_size': 100, 'best_lr': 0.001, 'epochs': 1, 'test_accuracy': 0.73}",
		Summary{BestLR: 0.001, Epochs: 1, BatchSize: 100, TestAccuracy: 0.73}.String())
}

func TestTrialDirName(t *testing.T) {
	assert.Equal(t, "lr0.001", TrialDirName(0.001))
	assert.Equal(t, "lr1e-05", TrialDirName(0.00001))
	assert.Equal(t, "lr1", TrialDirName(1))
}

func TestCreateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "save", "2026-10-14")
	require.NoError(t, createDir(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	require.ErrorContains(t, createDir(dir), "already exists")

	require.NoError(t, writeLine(dir, "values.txt", "[1.0]"))
	contents, err := os.ReadFile(filepath.Join(dir, "values.txt"))
	require.NoError(t, err)
	assert.Equal(t, "[1.0]\n", string(contents))
}
