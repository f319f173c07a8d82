// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiment

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/gomlx/persuasion/pkg/batches"
	"github.com/gomlx/persuasion/pkg/splits"
	"github.com/gomlx/persuasion/ui/commandline"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultDateLayout names the directory of a run after the day it started.
const DefaultDateLayout = "2006-01-02"

// Config of a complete run.
type Config struct {
	// SavePath is the parent of the dated run directory.
	SavePath string

	// Now returns the time used to name the run directory, time.Now if nil.
	Now func() time.Time

	// DateLayout of the run directory name, DefaultDateLayout if empty.
	DateLayout string

	// LearningRates to sweep in training mode.
	LearningRates []float64

	// DefaultLearningRate of the model evaluated when Train is false.
	DefaultLearningRate float64

	Epochs, BatchSize int
	ValFraction       int

	// Train runs the sweep and the final retraining. Otherwise the pretrained model is only
	// evaluated on the test split.
	Train bool

	Augment            bool
	DefaultArchWeights bool
	PretrainedWeights  string

	Data     *Data
	NewModel ModelFactory

	Plots bool
	Rand  *rand.Rand

	// Out is where progress messages are printed, os.Stdout if nil.
	Out io.Writer
}

func (cfg *Config) validate() error {
	if cfg.SavePath == "" {
		return errors.New("run requires a save path")
	}
	if cfg.Data == nil || cfg.NewModel == nil {
		return errors.New("run requires Data and NewModel")
	}
	if cfg.BatchSize <= 0 {
		return errors.Errorf("invalid batch size %d", cfg.BatchSize)
	}
	if !cfg.Train {
		if cfg.DefaultLearningRate <= 0 {
			return errors.Errorf("invalid default learning rate %g", cfg.DefaultLearningRate)
		}
		return nil
	}
	if len(cfg.LearningRates) == 0 {
		return ErrNoTrials
	}
	seen := make(map[string]bool, len(cfg.LearningRates))
	for _, lr := range cfg.LearningRates {
		if lr <= 0 {
			return errors.Errorf("invalid learning rate %g", lr)
		}
		name := TrialDirName(lr)
		if seen[name] {
			return errors.Errorf("learning rate %g given more than once", lr)
		}
		seen[name] = true
	}
	return nil
}

// RunDir returns the directory of the run started at now.
func (cfg *Config) RunDir(now time.Time) string {
	layout := cfg.DateLayout
	if layout == "" {
		layout = DefaultDateLayout
	}
	return filepath.Join(cfg.SavePath, now.Format(layout))
}

// Run executes the experiment.
//
// In training mode it runs one trial per learning rate, selects the one with the best final
// validation accuracy, retrains a fresh model with it on train and validation combined, and
// evaluates that model on the test split. The returned Summary is also written to the run directory.
//
// Without training it evaluates the pretrained model on the test split and returns a Summary
// with only the test accuracy set; nothing but the run directory is written.
func Run(ctx context.Context, cfg Config) (*Summary, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	runDir := cfg.RunDir(now())
	if err := createDir(runDir); err != nil {
		return nil, err
	}
	klog.Infof("run directory %q", runDir)

	if !cfg.Train {
		return evaluatePretrained(&cfg)
	}
	return trainAndSelect(ctx, &cfg, runDir)
}

func evaluatePretrained(cfg *Config) (*Summary, error) {
	fmt.Fprintln(cfg.Out, "Building model")
	model, err := cfg.NewModel(ModelConfig{
		LearningRate:       cfg.DefaultLearningRate,
		PretrainedWeights:  cfg.PretrainedWeights,
		DefaultArchWeights: cfg.DefaultArchWeights,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to build model")
	}
	fmt.Fprintln(cfg.Out, "Model built")
	acc, err := evaluateTest(cfg, model)
	if err != nil {
		return nil, err
	}
	return &Summary{BatchSize: cfg.BatchSize, TestAccuracy: acc}, nil
}

func trainAndSelect(ctx context.Context, cfg *Config, runDir string) (*Summary, error) {
	trialConfig := func(lr float64, dir string) TrialConfig {
		return TrialConfig{
			LearningRate:       lr,
			Dir:                dir,
			Epochs:             cfg.Epochs,
			BatchSize:          cfg.BatchSize,
			TrainSplits:        []splits.Name{splits.Train},
			Validate:           true,
			ValFraction:        cfg.ValFraction,
			Augment:            cfg.Augment,
			PretrainedWeights:  cfg.PretrainedWeights,
			DefaultArchWeights: cfg.DefaultArchWeights,
			Data:               cfg.Data,
			NewModel:           cfg.NewModel,
			Plots:              cfg.Plots,
			Rand:               cfg.Rand,
			Out:                cfg.Out,
		}
	}

	// Sweep.
	trainAccs := make(map[float64]float64, len(cfg.LearningRates))
	valAccs := make(map[float64]float64, len(cfg.LearningRates))
	for _, lr := range cfg.LearningRates {
		fmt.Fprintf(cfg.Out, "LR: %s\n", FormatFloat(lr))
		result, err := RunTrial(ctx, trialConfig(lr, filepath.Join(runDir, TrialDirName(lr))))
		if err != nil {
			return nil, err
		}
		trainAccs[lr] = result.FinalTrain.Accuracy
		valAccs[lr] = result.FinalVal.Accuracy
	}
	if err := writeLine(runDir, FinalTrainAccsFile, FormatDict(trainAccs)); err != nil {
		return nil, err
	}
	if err := writeLine(runDir, FinalValAccsFile, FormatDict(valAccs)); err != nil {
		return nil, err
	}

	// Select.
	bestLR, err := SelectBest(valAccs)
	if err != nil {
		return nil, err
	}
	rows := make([]commandline.SweepRow, 0, len(valAccs))
	for lr, valAcc := range valAccs {
		rows = append(rows, commandline.SweepRow{LearningRate: lr, TrainAcc: trainAccs[lr], ValAcc: valAcc, Best: lr == bestLR})
	}
	fmt.Fprintln(cfg.Out, commandline.RenderSweep(rows))
	fmt.Fprintf(cfg.Out, "Best learning rate: %s\n", FormatFloat(bestLR))

	// Retrain on train+validation.
	fmt.Fprintln(cfg.Out, "Training best model on training and validation set")
	final := trialConfig(bestLR, filepath.Join(runDir, BestLRDirName))
	final.TrainSplits = []splits.Name{splits.Train, splits.Validation}
	final.Validate = false
	result, err := RunTrial(ctx, final)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to train the best model")
	}

	// Test.
	acc, err := evaluateTest(cfg, result.Model)
	if err != nil {
		return nil, err
	}
	summary := &Summary{BestLR: bestLR, Epochs: cfg.Epochs, BatchSize: cfg.BatchSize, TestAccuracy: acc}
	if err = writeLine(runDir, SummaryFile, summary.String()); err != nil {
		return nil, err
	}
	return summary, nil
}

// evaluateTest evaluates model once over the test split and prints its accuracy.
func evaluateTest(cfg *Config, model Model) (float64, error) {
	gen, err := cfg.Data.Generator([]splits.Name{splits.Test}, cfg.BatchSize, false, false, nil)
	if err != nil {
		return 0, err
	}
	m, err := model.Evaluate(batches.FullPass(gen))
	if err != nil {
		return 0, errors.WithMessage(err, "test evaluation failed")
	}
	fmt.Fprintf(cfg.Out, "Test acc: %s\n", FormatFloat(m.Accuracy))
	return m.Accuracy, nil
}
