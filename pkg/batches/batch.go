// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package batches builds the training and evaluation batches of the experiment: it reads the
// image files named by a split manifest, converts them to normalized tensors, and pairs them
// with their binary labels.
//
// The main types are:
//
//   - Assembler: converts a list of image paths to a Batch.
//   - Generator: an endless source of batches over one split, randomized or sequential, with
//     optional mirror augmentation. It implements train.Dataset.
//   - EpochDataset: bounds a Generator to a number of samples, so it can be used for one
//     epoch of training or for one full evaluation pass.
package batches

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Batch of images and their labels.
type Batch struct {
	// IDs of the items, in batch order.
	IDs []string

	// Images shaped [len(IDs), 3, size, size], float32, channels first, means subtracted.
	Images *tensors.Tensor

	// Labels shaped [len(IDs), 1], float32, with values 0 or 1.
	Labels *tensors.Tensor
}

// Len returns the number of examples in the batch.
func (b *Batch) Len() int { return len(b.IDs) }

// Finalize frees the tensors of the batch. The Batch should not be used afterward.
func (b *Batch) Finalize() error {
	for _, t := range []*tensors.Tensor{b.Images, b.Labels} {
		if t == nil {
			continue
		}
		if err := t.FinalizeAll(); err != nil {
			return errors.WithMessagef(err, "failed to finalize batch tensor")
		}
	}
	b.Images, b.Labels = nil, nil
	return nil
}
