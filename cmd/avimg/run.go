// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/default"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/gomlx/persuasion/internal/config"
	"github.com/gomlx/persuasion/pkg/batches"
	"github.com/gomlx/persuasion/pkg/experiment"
	"github.com/gomlx/persuasion/pkg/labels"
	"github.com/gomlx/persuasion/pkg/splits"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// LockFileName is created in the save path while a run holds it.
const LockFileName = ".avimg.lock"

// applyOverrides sets the configuration values given in the command line.
func applyOverrides(cfg *config.Config, opts *options, changed func(name string) bool) error {
	if changed("lrs") || opts.lrs.changed {
		cfg.Training.LearningRates = opts.lrs.values
	}
	if changed("epochs") {
		cfg.Training.Epochs = opts.epochs
	}
	if changed("batch-size") {
		cfg.Training.BatchSize = opts.batchSize
	}
	if changed("plots") {
		cfg.Output.Plots = opts.plots
	}
	return cfg.Training.Validate()
}

func newBackend(backendConfig string) (backend backends.Backend, err error) {
	if backendConfig != "" {
		backend, err = backends.NewWithConfig(backendConfig)
		return backend, errors.WithMessagef(err, "failed to create backend %q", backendConfig)
	}
	err = exceptions.TryCatch[error](func() { backend = backends.MustNew() })
	return backend, errors.WithMessage(err, "failed to create default backend")
}

// lockSavePath takes the advisory lock of the save path, so two runs never write into the same directory.
func lockSavePath(savePath string) (*flock.Flock, error) {
	if err := os.MkdirAll(savePath, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create save path %q", savePath)
	}
	lock := flock.New(filepath.Join(savePath, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to lock %q", lock.Path())
	}
	if !ok {
		return nil, errors.Errorf("another avimg run is using save path %q", savePath)
	}
	return lock, nil
}

func run(ctx context.Context, opts *options, changed func(name string) bool) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if err = applyOverrides(cfg, opts, changed); err != nil {
		return err
	}
	var paths [3]string
	for ii, p := range []string{opts.imDir, opts.vggWeights, opts.savePath} {
		if paths[ii], err = fsutil.ReplaceTildeInDir(p); err != nil {
			return err
		}
	}
	imDir, vggWeights, savePath := paths[0], paths[1], paths[2]

	lock, err := lockSavePath(savePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			klog.Warningf("failed to release lock %q: %v", lock.Path(), err)
		}
	}()

	store, err := labels.Load(cfg.Paths.LabelsFile)
	if err != nil {
		return err
	}
	klog.Infof("loaded labels of %s images from %q", humanize.Comma(int64(store.Len())), cfg.Paths.LabelsFile)
	manifest, err := splits.Read(cfg.Paths.SplitDir, splits.All...)
	if err != nil {
		return err
	}
	for _, split := range splits.All {
		klog.V(1).Infof("split %q: %s images", split, humanize.Comma(int64(manifest.Len(split))))
	}
	assembler, err := batches.NewAssembler(store, batches.AssemblerOptions{
		Field:        cfg.Labels.Field,
		Threshold:    cfg.Labels.Threshold,
		Size:         cfg.Images.Size,
		ChannelMeans: cfg.Images.ChannelMeans,
	})
	if err != nil {
		return err
	}

	backend, err := newBackend(opts.backend)
	if err != nil {
		return err
	}
	defer backend.Finalize()
	klog.Infof("backend: %s", backend.Description())

	summary, err := experiment.Run(ctx, experiment.Config{
		SavePath:            savePath,
		DateLayout:          cfg.Output.DateLayout,
		LearningRates:       cfg.Training.LearningRates,
		DefaultLearningRate: config.DefaultLearningRates[0],
		Epochs:              cfg.Training.Epochs,
		BatchSize:           cfg.Training.BatchSize,
		ValFraction:         cfg.Training.ValFraction,
		Train:               opts.train.value,
		Augment:             opts.augment.value,
		DefaultArchWeights:  opts.defaultArchWeights.value,
		PretrainedWeights:   vggWeights,
		Data: &experiment.Data{
			Manifest:  manifest,
			ImDir:     imDir,
			Extension: cfg.Images.Extension,
			Assembler: assembler,
		},
		NewModel: experiment.NewGoMLXFactory(backend, nil),
		Plots:    cfg.Output.Plots,
		Out:      os.Stdout,
	})
	if err != nil {
		return err
	}
	if opts.train.value {
		fmt.Printf("Summary: %s\n", summary)
	}
	return nil
}
