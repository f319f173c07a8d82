// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.23s", FormatDuration(1234567890*time.Nanosecond))
	assert.Equal(t, "12.35ms", FormatDuration(12345678*time.Nanosecond))
	assert.Equal(t, "0.00s", FormatDuration(0))
	assert.Equal(t, "1m31s", FormatDuration(90*time.Second+700*time.Millisecond))
}

func TestRenderSweep(t *testing.T) {
	out := RenderSweep([]SweepRow{
		{LearningRate: 0.01, TrainAcc: 0.8, ValAcc: 0.7},
		{LearningRate: 0.0001, TrainAcc: 0.6, ValAcc: 0.5},
		{LearningRate: 0.001, TrainAcc: 0.95, ValAcc: 0.9, Best: true},
	})
	lines := strings.Split(out, "\n")
	var dataLines []string
	for _, line := range lines {
		if strings.Contains(line, "%") {
			dataLines = append(dataLines, line)
		}
	}
	require.Len(t, dataLines, 3)
	assert.Contains(t, dataLines[0], "0.0001")
	assert.Contains(t, dataLines[1], "0.001")
	assert.Contains(t, dataLines[1], "90.00%")
	assert.Contains(t, dataLines[1], "best")
	assert.Contains(t, dataLines[2], "0.01")
	assert.NotContains(t, dataLines[2], "best")
}

func TestNilEpochProgress(t *testing.T) {
	var p *EpochProgress
	p.Update(0, 10, Stat{Name: "loss", Value: "0.5"})
	p.Done()

	// Pipes are not terminals.
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer func() { _ = r.Close(); _ = w.Close() }()
	assert.False(t, IsTerminal(w))
	assert.False(t, IsTerminal(nil))
}
