// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiment

import (
	"math"
	"slices"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrNoTrials is returned by SelectBest when there is nothing to select from.
var ErrNoTrials = errors.New("no trials to select from")

// SelectBest returns the learning rate with the highest validation accuracy.
// If more than one learning rate reaches the maximum, the smallest of them is returned.
// NaN accuracies are never selected, unless all of them are NaN.
func SelectBest(valAccs map[float64]float64) (float64, error) {
	if len(valAccs) == 0 {
		return 0, ErrNoTrials
	}
	lrs := make([]float64, 0, len(valAccs))
	for lr := range valAccs {
		lrs = append(lrs, lr)
	}
	slices.Sort(lrs)

	best := lrs[0]
	numTies := 1
	for _, lr := range lrs[1:] {
		acc, bestAcc := valAccs[lr], valAccs[best]
		switch {
		case math.IsNaN(acc):
		case math.IsNaN(bestAcc) || acc > bestAcc:
			best, numTies = lr, 1
		case acc == bestAcc:
			numTies++
		}
	}
	if numTies > 1 {
		klog.Warningf("%d learning rates reached validation accuracy %g, selecting the smallest one %g",
			numTies, valAccs[best], best)
	}
	return best, nil
}
