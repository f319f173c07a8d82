// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package config holds the fixed locations and constants of the avimg experiment, optionally
// overridden by a TOML file.
package config

import (
	"math"
	"os"

	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Paths to the experiment inputs that are not given in the command line.
type Paths struct {
	// LabelsFile is the serialized identifier -> {annotation field -> score} mapping.
	LabelsFile string `toml:"labels_file"`

	// SplitDir holds one "<split>.txt" manifest per split.
	SplitDir string `toml:"split_dir"`
}

// Labels configures how annotation scores become binary labels.
type Labels struct {
	Field     string  `toml:"field"`
	Threshold float64 `toml:"threshold"`
}

// Images configures the image files and their conversion to tensors.
type Images struct {
	Size         int       `toml:"size"`
	Extension    string    `toml:"extension"`
	ChannelMeans []float64 `toml:"channel_means"`
}

// Training holds the default hyperparameters, the command line can override them.
type Training struct {
	LearningRates []float64 `toml:"learning_rates"`
	Epochs        int       `toml:"epochs"`
	BatchSize     int       `toml:"batch_size"`

	// ValFraction: the per-epoch validation during a trial uses len(validation)/ValFraction samples.
	ValFraction int `toml:"val_fraction"`
}

// Output configures what is written under the save path.
type Output struct {
	Plots      bool   `toml:"plots"`
	DateLayout string `toml:"date_layout"`
}

// Config is the complete configuration of one run.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Labels   Labels   `toml:"labels"`
	Images   Images   `toml:"images"`
	Training Training `toml:"training"`
	Output   Output   `toml:"output"`
}

// Load returns Default overridden by the TOML file at path. An empty path returns the defaults.
// The returned configuration is normalized and validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		path, err := fsutil.ReplaceTildeInDir(path)
		if err != nil {
			return nil, err
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open config file %q", path)
		}
		defer func() { _ = f.Close() }()
		if err = toml.NewDecoder(f).DisallowUnknownFields().Decode(&cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse config file %q", path)
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.LabelsFile, err = fsutil.ReplaceTildeInDir(c.Paths.LabelsFile); err != nil {
		return err
	}
	if c.Paths.SplitDir, err = fsutil.ReplaceTildeInDir(c.Paths.SplitDir); err != nil {
		return err
	}
	if c.Images.Extension != "" && c.Images.Extension[0] != '.' {
		c.Images.Extension = "." + c.Images.Extension
	}
	return nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	switch {
	case c.Paths.LabelsFile == "":
		return errors.New("paths.labels_file must be set")
	case c.Paths.SplitDir == "":
		return errors.New("paths.split_dir must be set")
	case c.Labels.Field == "":
		return errors.New("labels.field must be set")
	case math.IsNaN(c.Labels.Threshold) || math.IsInf(c.Labels.Threshold, 0):
		return errors.Errorf("labels.threshold must be a finite number, got %g", c.Labels.Threshold)
	case c.Images.Size <= 0:
		return errors.Errorf("images.size must be > 0, got %d", c.Images.Size)
	case len(c.Images.ChannelMeans) != 3:
		return errors.Errorf("images.channel_means must have 3 values (one per channel), got %v",
			c.Images.ChannelMeans)
	case c.Images.Extension == "":
		return errors.New("images.extension must be set")
	}
	if err := c.Training.Validate(); err != nil {
		return err
	}
	if c.Output.DateLayout == "" {
		return errors.New("output.date_layout must be set")
	}
	return nil
}

// Validate checks the training hyperparameters. It is also used after command line overrides.
func (t *Training) Validate() error {
	if len(t.LearningRates) == 0 {
		return errors.New("at least one learning rate is required")
	}
	for _, lr := range t.LearningRates {
		if !(lr > 0) || math.IsInf(lr, 0) {
			return errors.Errorf("learning rates must be positive, got %g", lr)
		}
	}
	if t.Epochs <= 0 {
		return errors.Errorf("epochs must be > 0, got %d", t.Epochs)
	}
	if t.BatchSize <= 0 {
		return errors.Errorf("batch size must be > 0, got %d", t.BatchSize)
	}
	if t.ValFraction <= 0 {
		return errors.Errorf("training.val_fraction must be > 0, got %d", t.ValFraction)
	}
	return nil
}
