// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package batches

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/persuasion/pkg/splits"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultExtension of the image files.
const DefaultExtension = ".jpg"

// ErrBatchTooLarge is returned when a randomized Generator is asked for more distinct images
// than the split holds.
var ErrBatchTooLarge = errors.New("batch size larger than the number of images")

// GeneratorOptions configures a Generator.
type GeneratorOptions struct {
	BatchSize int

	// Augment images with random mirroring.
	Augment bool

	// Randomize: each batch is a fresh uniform sample (without replacement within the batch).
	// Otherwise, batches are consecutive slices of the manifest, wrapping around at the end.
	Randomize bool

	// Rand is the random source for sampling and augmentation. If nil one seeded with
	// the current time is created.
	Rand *rand.Rand

	// Extension of the image files, DefaultExtension if empty.
	Extension string
}

// Generator yields an endless sequence of batches from the images of one split.
//
// It never runs out of data: see Epoch to bound it. It is not safe for concurrent use.
type Generator struct {
	name      string
	split     splits.Name
	paths     []string
	assembler *Assembler
	augmenter *MirrorAugmenter

	batchSize int
	randomize bool
	rng       *rand.Rand

	// perm is a permutation of the indices of paths, partially reshuffled for each random batch.
	perm []int

	// idx is the cursor of the sequential mode.
	idx int

	// last batch returned by Yield.
	last *Batch
}

var (
	_ train.Dataset                = (*Generator)(nil)
	_ train.DatasetCustomOwnership = (*Generator)(nil)
)

// NewGenerator creates a Generator over the images of the given split(s) of manifest, found
// in imDir as "<id><extension>".
//
// splitNames are taken as a set (duplicates removed, first occurrence order) and the images of
// each are listed in turn, but only the list of the last one is kept: passing {train, val}
// yields batches of val only. Use Generator.Split to know which one was kept.
func NewGenerator(manifest *splits.Manifest, splitNames []splits.Name, imDir string,
	assembler *Assembler, opts GeneratorOptions) (*Generator, error) {
	if opts.BatchSize <= 0 {
		return nil, errors.Errorf("invalid batch size %d", opts.BatchSize)
	}
	if len(splitNames) == 0 {
		return nil, errors.New("at least one split is required")
	}
	ext := opts.Extension
	if ext == "" {
		ext = DefaultExtension
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UTC().UnixNano()))
	}
	g := &Generator{
		assembler: assembler,
		batchSize: opts.BatchSize,
		randomize: opts.Randomize,
		rng:       rng,
	}

	seen := make(map[splits.Name]bool, len(splitNames))
	var unique []splits.Name
	for _, split := range splitNames {
		if !seen[split] {
			seen[split] = true
			unique = append(unique, split)
		}
	}
	for _, split := range unique {
		ids, err := manifest.IDs(split)
		if err != nil {
			return nil, err
		}
		g.paths = make([]string, len(ids))
		for ii, id := range ids {
			g.paths[ii] = filepath.Join(imDir, id+ext)
		}
		g.split = split
	}
	if len(unique) > 1 {
		klog.Warningf("batch generator over splits %q uses only the images of %q (%d images)",
			unique, g.split, len(g.paths))
	}
	var nameParts []string
	for _, split := range unique {
		nameParts = append(nameParts, string(split))
	}
	g.name = strings.Join(nameParts, "+")

	if len(g.paths) == 0 {
		return nil, errors.Errorf("split %q has no images", g.split)
	}
	if g.randomize {
		if g.batchSize > len(g.paths) {
			return nil, errors.Wrapf(ErrBatchTooLarge, "batch size %d, split %q has %d images",
				g.batchSize, g.split, len(g.paths))
		}
		g.perm = make([]int, len(g.paths))
		for ii := range g.perm {
			g.perm[ii] = ii
		}
	}
	if opts.Augment {
		g.augmenter = NewMirrorAugmenter(rng)
	}
	return g, nil
}

// Name implements train.Dataset. It is the "+" joined list of the split names given.
func (g *Generator) Name() string { return g.name }

// Split returns the split whose images are used.
func (g *Generator) Split() splits.Name { return g.split }

// Len returns the number of images the Generator samples from.
func (g *Generator) Len() int { return len(g.paths) }

// BatchSize returns the configured batch size.
func (g *Generator) BatchSize() int { return g.batchSize }

// Paths returns the image paths the Generator samples from. Owned by the Generator.
func (g *Generator) Paths() []string { return g.paths }

// String implements fmt.Stringer.
func (g *Generator) String() string {
	mode := "sequential"
	if g.randomize {
		mode = "randomized"
	}
	return fmt.Sprintf("Generator(%s: %d images, batch %d, %s, augment=%v)",
		g.name, len(g.paths), g.batchSize, mode, g.augmenter != nil)
}

// Reset implements train.Dataset. It moves the sequential cursor back to the start.
// The Generator never ends, so there is normally no need to call it.
func (g *Generator) Reset() { g.idx = 0 }

// nextPaths selects the images of the next batch.
func (g *Generator) nextPaths() []string {
	if g.randomize {
		// Partial Fisher-Yates: the first batchSize positions of perm become a uniform sample.
		n := len(g.perm)
		batch := make([]string, g.batchSize)
		for ii := 0; ii < g.batchSize; ii++ {
			jj := ii + g.rng.Intn(n-ii)
			g.perm[ii], g.perm[jj] = g.perm[jj], g.perm[ii]
			batch[ii] = g.paths[g.perm[ii]]
		}
		return batch
	}

	// Sequential: the last slice before wrapping around may be shorter than batchSize.
	end := min(g.idx+g.batchSize, len(g.paths))
	batch := g.paths[g.idx:end]
	g.idx += g.batchSize
	if g.idx >= len(g.paths) {
		g.idx = 0
	}
	return batch
}

// NextBatch reads and returns the next batch, owned by the caller. It never returns io.EOF.
func (g *Generator) NextBatch() (*Batch, error) {
	paths := g.nextPaths()
	var transform Transform
	if g.augmenter != nil {
		transform = g.augmenter.Transform
	}
	batch, err := g.assembler.AssembleWith(paths, transform)
	if err != nil {
		return nil, errors.WithMessagef(err, "generator %q", g.name)
	}
	return batch, nil
}

// Yield implements train.Dataset: inputs are the images, labels the binary labels.
// The tensors are valid until the next call to Yield.
func (g *Generator) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	releaseBatch(&g.last)
	g.last, err = g.NextBatch()
	if err != nil {
		return nil, nil, nil, err
	}
	return nil, []*tensors.Tensor{g.last.Images}, []*tensors.Tensor{g.last.Labels}, nil
}

// IsOwnershipTransferred implements train.DatasetCustomOwnership: yielded batches are freed
// by the Generator.
func (g *Generator) IsOwnershipTransferred() bool { return false }
