// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package experiment runs the persuasiveness classifier experiment: one training trial per
// candidate learning rate, the selection of the best one on the validation split, and the
// retraining of a fresh model on train and validation combined, evaluated on the test split.
//
// Every trial writes its checkpoint, final weights and metric logs under its own directory
// of the dated run directory:
//
//	<save-path>/<date>/lr<lr>/...
//	<save-path>/<date>/best_lr/...
//	<save-path>/<date>/summary.txt
//
// The model is abstracted by the Model interface. GoMLXModel implements it with the VGG16
// network of package vgg.
package experiment
