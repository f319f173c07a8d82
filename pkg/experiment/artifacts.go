// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiment

import (
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// File names of the run artifacts.
const (
	CheckpointDirName = "checkpoint"
	WeightsDirName    = "weights"
	BestLRDirName     = "best_lr"

	EpochTrainAccsFile   = "epoch_train_accs.txt"
	EpochTrainLossesFile = "epoch_train_losses.txt"
	EpochValAccsFile     = "epoch_val_accs.txt"
	EpochValLossesFile   = "epoch_val_losses.txt"
	BatchAccsFile        = "batch_accs.txt"
	BatchLossesFile      = "batch_losses.txt"
	BatchLossesPlotFile  = "batch_losses.png"

	FinalTrainAccsFile = "final_train_accs.txt"
	FinalValAccsFile   = "final_val_accs.txt"
	SummaryFile        = "summary.txt"
)

// TrialDirName returns the name of the directory of the trial with the given learning rate.
func TrialDirName(lr float64) string {
	return "lr" + strconv.FormatFloat(lr, 'g', -1, 64)
}

// FormatFloat formats v the way the metric logs are written: the shortest representation
// that reads back to the same value, always with a decimal point or an exponent
// (e.g. "1.0", "0.25", "1e-05").
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// FormatList renders values as a list: "[v1, v2, ...]".
func FormatList(values []float64) string {
	parts := make([]string, len(values))
	for ii, v := range values {
		parts[ii] = FormatFloat(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// FormatDict renders a map as "{k1: v1, k2: v2, ...}", sorted by key.
func FormatDict(values map[float64]float64) string {
	keys := make([]float64, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for ii, k := range keys {
		parts[ii] = FormatFloat(k) + ": " + FormatFloat(values[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Summary of a training run.
type Summary struct {
	BestLR       float64
	Epochs       int
	BatchSize    int
	TestAccuracy float64
}

// String renders the summary as a dict with sorted keys.
func (s Summary) String() string {
	return "{'batch_size': " + strconv.Itoa(s.BatchSize) +
		", 'best_lr': " + FormatFloat(s.BestLR) +
		", 'epochs': " + strconv.Itoa(s.Epochs) +
		", 'test_accuracy': " + FormatFloat(s.TestAccuracy) + "}"
}

// writeLine writes content followed by a new line to dir/name.
func writeLine(dir, name, content string) error {
	filePath := filepath.Join(dir, name)
	if err := os.WriteFile(filePath, []byte(content+"\n"), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %q", filePath)
	}
	return nil
}

// createDir creates dir, which must not exist yet. Its parent is created if needed.
func createDir(dir string) error {
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %q", filepath.Dir(dir))
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		if os.IsExist(err) {
			return errors.Errorf("directory %q already exists, refusing to overwrite it", dir)
		}
		return errors.Wrapf(err, "failed to create %q", dir)
	}
	return nil
}
