// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package batches

import (
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"k8s.io/klog/v2"
)

// BatchesPerEpoch returns how many batches of batchSize are needed to cover numSamples.
func BatchesPerEpoch(numSamples, batchSize int) int {
	if numSamples <= 0 || batchSize <= 0 {
		return 0
	}
	return (numSamples + batchSize - 1) / batchSize
}

// EpochDataset yields batches from a Generator until at least NumSamples examples were
// yielded, and then returns io.EOF. Reset rearms it, but the Generator is not reset: a
// sequential Generator continues from its current position.
//
// Tensors returned by Yield are owned by the EpochDataset: they are valid until the next
// call to Yield or Reset.
type EpochDataset struct {
	gen                 *Generator
	numSamples, yielded int
	last                *Batch
}

var (
	_ train.Dataset                = (*EpochDataset)(nil)
	_ train.DatasetCustomOwnership = (*EpochDataset)(nil)
)

// releaseBatch frees *batch, if any, and clears it.
func releaseBatch(batch **Batch) {
	if *batch == nil {
		return
	}
	if err := (*batch).Finalize(); err != nil {
		klog.Warningf("failed to free batch of %d images: %v", (*batch).Len(), err)
	}
	*batch = nil
}

// Epoch creates an EpochDataset over gen.
func Epoch(gen *Generator, numSamples int) *EpochDataset {
	return &EpochDataset{gen: gen, numSamples: numSamples}
}

// FullPass creates an EpochDataset that covers every image of gen once (for a sequential Generator
// starting at its first image).
func FullPass(gen *Generator) *EpochDataset {
	return Epoch(gen, gen.Len())
}

// Name implements train.Dataset.
func (e *EpochDataset) Name() string { return e.gen.Name() }

// Reset implements train.Dataset.
func (e *EpochDataset) Reset() {
	releaseBatch(&e.last)
	e.yielded = 0
}

// IsOwnershipTransferred implements train.DatasetCustomOwnership: yielded batches are freed
// by the EpochDataset.
func (e *EpochDataset) IsOwnershipTransferred() bool { return false }

// NumSamples is the number of examples after which the EpochDataset ends.
func (e *EpochDataset) NumSamples() int { return e.numSamples }

// NumBatches is the expected number of batches until the end (exact for full batches).
func (e *EpochDataset) NumBatches() int { return BatchesPerEpoch(e.numSamples, e.gen.BatchSize()) }

// NextBatch returns the next batch of the Generator, or io.EOF if the epoch is over.
// The caller owns the returned batch.
func (e *EpochDataset) NextBatch() (*Batch, error) {
	if e.yielded >= e.numSamples {
		return nil, io.EOF
	}
	batch, err := e.gen.NextBatch()
	if err != nil {
		return nil, err
	}
	e.yielded += batch.Len()
	return batch, nil
}

// Yield implements train.Dataset.
func (e *EpochDataset) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	releaseBatch(&e.last)
	e.last, err = e.NextBatch()
	if err != nil {
		return nil, nil, nil, err
	}
	return nil, []*tensors.Tensor{e.last.Images}, []*tensors.Tensor{e.last.Labels}, nil
}
