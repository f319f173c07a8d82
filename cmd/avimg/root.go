// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"

	"github.com/gomlx/persuasion/internal/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

// options set in the command line.
type options struct {
	imDir, vggWeights, savePath string
	configPath, backend         string

	lrs               floatList
	epochs, batchSize int
	plots             bool

	train, defaultArchWeights, augment strictBool
}

func newRootCommand() *cobra.Command {
	defaults := config.Default()
	opts := &options{
		lrs:       floatList{values: defaults.Training.LearningRates},
		epochs:    defaults.Training.Epochs,
		batchSize: defaults.Training.BatchSize,
	}

	cmd := &cobra.Command{
		Use:           "avimg [flags] [learning rates...]",
		Short:         "Learning rate sweep of a VGG16 persuasive image classifier",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.lrs.Append(args); err != nil {
				return err
			}
			for _, name := range []string{"train", "default-arch-weights", "augment"} {
				if !cmd.Flags().Changed(name) {
					return errors.Errorf("--%s=true|false is required", name)
				}
			}
			return run(cmd.Context(), opts, cmd.Flags().Changed)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.imDir, "imdir", "", "Directory with the images, named <id>.jpg.")
	flags.StringVar(&opts.vggWeights, "vgg-weights", "",
		"Checkpoint directory with the pretrained VGG16 weights.")
	flags.StringVar(&opts.savePath, "save-path", "",
		"Directory where the run directory, named after the date, is created.")
	flags.Var(&opts.lrs, "lrs",
		"Learning rates to try, comma-separated or space-separated at the end of the command line.")
	flags.IntVar(&opts.epochs, "epochs", opts.epochs, "Number of training epochs of each trial.")
	flags.IntVar(&opts.batchSize, "batch-size", opts.batchSize, "Batch size used for training and evaluation.")
	flags.Var(&opts.train, "train",
		"If true, runs the learning rate sweep and retrains the best. Otherwise only evaluates the pretrained model.")
	flags.Var(&opts.defaultArchWeights, "default-arch-weights",
		"If true, trains the standard VGG16 top layers. Otherwise trains a new head over frozen features.")
	flags.Var(&opts.augment, "augment", "If true, training images are randomly mirrored.")
	flags.StringVar(&opts.configPath, "config", "", "TOML configuration file overriding the default paths and constants.")
	flags.BoolVar(&opts.plots, "plots", false, "Saves a plot of the batch losses of each trial.")
	flags.StringVar(&opts.backend, "backend", "",
		"GoMLX backend configuration, e.g. \"go\" or \"xla:cuda\". Defaults to $GOMLX_BACKEND or the best available.")
	for _, name := range []string{"imdir", "vgg-weights", "save-path"} {
		_ = cmd.MarkFlagRequired(name)
	}

	goFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(goFlags)
	flags.AddGoFlagSet(goFlags)
	return cmd
}
