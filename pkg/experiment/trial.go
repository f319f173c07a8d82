// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiment

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/gomlx/gomlx/pkg/ml/train/metrics"
	"github.com/gomlx/persuasion/pkg/batches"
	"github.com/gomlx/persuasion/pkg/splits"
	"github.com/gomlx/persuasion/ui/commandline"
	"github.com/gomlx/persuasion/ui/plots"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Data is where the images and their labels are read from.
type Data struct {
	Manifest  *splits.Manifest
	ImDir     string
	Extension string
	Assembler *batches.Assembler
}

// Generator creates a batch generator over the given splits.
func (d *Data) Generator(names []splits.Name, batchSize int, augment, randomize bool, rng *rand.Rand) (*batches.Generator, error) {
	return batches.NewGenerator(d.Manifest, names, d.ImDir, d.Assembler, batches.GeneratorOptions{
		BatchSize: batchSize,
		Augment:   augment,
		Randomize: randomize,
		Rand:      rng,
		Extension: d.Extension,
	})
}

// TrialConfig configures one training trial.
type TrialConfig struct {
	LearningRate float64

	// Dir of the trial. It is created by RunTrial and must not exist.
	Dir string

	Epochs, BatchSize int

	// TrainSplits are the splits the training generator is built over, usually {train}.
	TrainSplits []splits.Name

	// Validate after each epoch on len(val)/ValFraction samples of the validation split, and
	// evaluate the final model on the full train and validation splits.
	Validate    bool
	ValFraction int

	Augment bool

	PretrainedWeights  string
	DefaultArchWeights bool

	Data     *Data
	NewModel ModelFactory

	// Plots saves the training plot points and a plot of the batch losses.
	Plots bool

	// Rand is the random source of the generators. Optional.
	Rand *rand.Rand

	// Out is where progress messages are printed, os.Stdout if nil.
	Out io.Writer
}

// History of the metrics of a trial, in the order they were measured.
type History struct {
	EpochTrainAccs, EpochTrainLosses []float64
	EpochValAccs, EpochValLosses     []float64
	BatchAccs, BatchLosses           []float64
}

// TrialResult is the outcome of RunTrial.
type TrialResult struct {
	LearningRate float64
	History      History

	// FinalTrain and FinalVal are only set if TrialConfig.Validate.
	FinalTrain, FinalVal Metrics

	// Model trained, it can still be evaluated.
	Model Model
}

func (cfg *TrialConfig) validate() error {
	switch {
	case cfg.Data == nil || cfg.NewModel == nil:
		return errors.New("trial requires Data and NewModel")
	case cfg.Dir == "":
		return errors.New("trial requires a directory")
	case cfg.Epochs < 0:
		return errors.Errorf("invalid number of epochs %d", cfg.Epochs)
	case cfg.BatchSize <= 0:
		return errors.Errorf("invalid batch size %d", cfg.BatchSize)
	case len(cfg.TrainSplits) == 0:
		return errors.New("trial requires at least one training split")
	case cfg.Validate && cfg.ValFraction <= 0:
		return errors.Errorf("invalid validation fraction %d", cfg.ValFraction)
	}
	return nil
}

// RunTrial builds a fresh model at the trial's learning rate, trains it, optionally evaluates it,
// and persists its weights and metric logs into the trial directory.
//
// ctx is checked between batches: if it is cancelled the trial is aborted with its error.
func RunTrial(ctx context.Context, cfg TrialConfig) (*TrialResult, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	if err := createDir(cfg.Dir); err != nil {
		return nil, err
	}
	klog.Infof("trial lr=%g in %q", cfg.LearningRate, cfg.Dir)

	// Build.
	fmt.Fprintln(out, "Building model")
	model, err := cfg.NewModel(ModelConfig{
		LearningRate:       cfg.LearningRate,
		PretrainedWeights:  cfg.PretrainedWeights,
		DefaultArchWeights: cfg.DefaultArchWeights,
		CheckpointDir:      filepath.Join(cfg.Dir, CheckpointDirName),
		WeightsDir:         filepath.Join(cfg.Dir, WeightsDirName),
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to build model for lr=%g", cfg.LearningRate)
	}
	fmt.Fprintln(out, "Model built")
	result := &TrialResult{LearningRate: cfg.LearningRate, Model: model}

	// Train.
	t := &trialTrainer{cfg: &cfg, model: model, history: &result.History}
	if err = t.train(ctx); err != nil {
		return nil, errors.WithMessagef(err, "training lr=%g", cfg.LearningRate)
	}

	// Evaluate.
	if cfg.Validate {
		if result.FinalTrain, err = t.evaluateFullPass([]splits.Name{splits.Train}); err != nil {
			return nil, err
		}
		if result.FinalVal, err = t.evaluateFullPass([]splits.Name{splits.Validation}); err != nil {
			return nil, err
		}
		fmt.Fprintf(out, "LR %s final train acc: %s; final val acc: %s\n", FormatFloat(cfg.LearningRate),
			FormatFloat(result.FinalTrain.Accuracy), FormatFloat(result.FinalVal.Accuracy))
	}

	// Persist.
	if err = model.SaveWeights(); err != nil {
		return nil, err
	}
	if err = t.persist(); err != nil {
		return nil, err
	}
	return result, nil
}

// trialTrainer holds the state of the training of one trial.
type trialTrainer struct {
	cfg     *TrialConfig
	model   Model
	history *History
	points  []plots.Point
}

func (t *trialTrainer) train(ctx context.Context) error {
	cfg := t.cfg
	trainGen, err := cfg.Data.Generator(cfg.TrainSplits, cfg.BatchSize, cfg.Augment, true, cfg.Rand)
	if err != nil {
		return err
	}
	var valGen *batches.Generator
	var numValSamples int
	if cfg.Validate {
		valGen, err = cfg.Data.Generator([]splits.Name{splits.Validation}, cfg.BatchSize, cfg.Augment, true, cfg.Rand)
		if err != nil {
			return err
		}
		numValSamples = max(1, valGen.Len()/cfg.ValFraction)
	}

	epochDS := batches.Epoch(trainGen, trainGen.Len())
	for epoch := range cfg.Epochs {
		klog.V(1).Infof("epoch %d/%d: %d batches of %d images from %s", epoch+1, cfg.Epochs,
			epochDS.NumBatches(), cfg.BatchSize, trainGen)
		progress := commandline.NewEpochProgress(fmt.Sprintf("Epoch %d/%d", epoch+1, cfg.Epochs), epochDS.NumBatches())
		epochDS.Reset()
		var lossSum, accSum float64
		var numExamples int
		for batchIdx := 0; ; batchIdx++ {
			if err := ctx.Err(); err != nil {
				progress.Done()
				return errors.Wrapf(err, "interrupted at epoch %d, batch %d", epoch+1, batchIdx)
			}
			batch, err := epochDS.NextBatch()
			if err == io.EOF {
				break
			}
			if err != nil {
				progress.Done()
				return err
			}
			n := batch.Len()
			m, err := t.model.TrainStep(batch)
			if freeErr := batch.Finalize(); freeErr != nil {
				klog.Warningf("failed to free batch %d of epoch %d: %v", batchIdx, epoch+1, freeErr)
			}
			if err != nil {
				progress.Done()
				return err
			}
			t.recordBatch(m)
			lossSum += m.Loss * float64(n)
			accSum += m.Accuracy * float64(n)
			numExamples += n
			klog.V(2).Infof("batch %d: loss=%g acc=%g", batchIdx, m.Loss, m.Accuracy)
			progress.Update(batchIdx, n,
				commandline.Stat{Name: "Batch loss", Value: fmt.Sprintf("%.4f", m.Loss)},
				commandline.Stat{Name: "Batch accuracy", Value: fmt.Sprintf("%.2f%%", 100*m.Accuracy)},
				commandline.Stat{Name: "Epoch accuracy", Value: fmt.Sprintf("%.2f%%", 100*accSum/float64(numExamples))})
		}
		progress.Done()
		if numExamples > 0 {
			t.history.EpochTrainLosses = append(t.history.EpochTrainLosses, lossSum/float64(numExamples))
			t.history.EpochTrainAccs = append(t.history.EpochTrainAccs, accSum/float64(numExamples))
		}

		if valGen != nil {
			m, err := t.model.Evaluate(batches.Epoch(valGen, numValSamples))
			if err != nil {
				return err
			}
			t.history.EpochValLosses = append(t.history.EpochValLosses, m.Loss)
			t.history.EpochValAccs = append(t.history.EpochValAccs, m.Accuracy)
			klog.Infof("epoch %d: loss=%g acc=%g val_loss=%g val_acc=%g", epoch+1,
				lastOf(t.history.EpochTrainLosses), lastOf(t.history.EpochTrainAccs), m.Loss, m.Accuracy)
		} else {
			klog.Infof("epoch %d: loss=%g acc=%g", epoch+1,
				lastOf(t.history.EpochTrainLosses), lastOf(t.history.EpochTrainAccs))
		}

		if err := t.model.SaveCheckpoint(); err != nil {
			return err
		}
	}
	return nil
}

func (t *trialTrainer) recordBatch(m Metrics) {
	step := float64(len(t.history.BatchLosses))
	t.history.BatchLosses = append(t.history.BatchLosses, m.Loss)
	t.history.BatchAccs = append(t.history.BatchAccs, m.Accuracy)
	if t.cfg.Plots {
		t.points = append(t.points,
			plots.Point{MetricName: "Batch Loss", Short: "loss", MetricType: metrics.LossMetricType, Step: step, Value: m.Loss},
			plots.Point{MetricName: "Batch Accuracy", Short: "acc", MetricType: metrics.AccuracyMetricType, Step: step, Value: m.Accuracy})
	}
}

// evaluateFullPass evaluates the model once over every image of the splits, in order and without augmentation.
func (t *trialTrainer) evaluateFullPass(names []splits.Name) (Metrics, error) {
	gen, err := t.cfg.Data.Generator(names, t.cfg.BatchSize, false, false, nil)
	if err != nil {
		return Metrics{}, err
	}
	return t.model.Evaluate(batches.FullPass(gen))
}

func (t *trialTrainer) persist() error {
	dir := t.cfg.Dir
	logs := []struct {
		name   string
		values []float64
	}{
		{EpochTrainAccsFile, t.history.EpochTrainAccs},
		{EpochTrainLossesFile, t.history.EpochTrainLosses},
		{EpochValAccsFile, t.history.EpochValAccs},
		{EpochValLossesFile, t.history.EpochValLosses},
		{BatchAccsFile, t.history.BatchAccs},
		{BatchLossesFile, t.history.BatchLosses},
	}
	for _, log := range logs {
		if !t.cfg.Validate && (log.name == EpochValAccsFile || log.name == EpochValLossesFile) {
			continue
		}
		if err := writeLine(dir, log.name, FormatList(log.values)); err != nil {
			return err
		}
	}

	if t.cfg.Plots {
		if err := plots.WritePoints(filepath.Join(dir, plots.TrainingPlotFileName), t.points); err != nil {
			return err
		}
		if err := plots.SavePNG(filepath.Join(dir, BatchLossesPlotFile), "Batch losses, lr="+FormatFloat(t.cfg.LearningRate),
			"batch", "loss", plots.Series{Name: "loss", Values: t.history.BatchLosses}); err != nil {
			return err
		}
	}
	return nil
}

func lastOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}
