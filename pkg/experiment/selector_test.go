// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiment

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectBest(t *testing.T) {
	best, err := SelectBest(map[float64]float64{0.01: 0.7, 0.001: 0.9, 0.0001: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0.001, best)

	// Ties go to the smallest learning rate.
	best, err = SelectBest(map[float64]float64{0.1: 0.8, 0.01: 0.8, 0.001: 0.6})
	require.NoError(t, err)
	assert.Equal(t, 0.01, best)

	best, err = SelectBest(map[float64]float64{0.01: math.NaN(), 0.1: 0.2})
	require.NoError(t, err)
	assert.Equal(t, 0.1, best)

	best, err = SelectBest(map[float64]float64{0.5: 0})
	require.NoError(t, err)
	assert.Equal(t, 0.5, best)

	_, err = SelectBest(nil)
	require.ErrorIs(t, err, ErrNoTrials)
}
