// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package batches

import (
	"image"
	"math/rand"

	"github.com/disintegration/imaging"
)

// MirrorAugmenter randomly mirrors images: horizontally with probability 1/2 and, independently,
// vertically with probability 1/2. No other transformation (rotation, shift, shear, whitening)
// is applied, so labels are unaffected.
type MirrorAugmenter struct {
	rng                  *rand.Rand
	horizontal, vertical bool
}

// NewMirrorAugmenter creates a MirrorAugmenter that flips on both axes, drawing from rng.
func NewMirrorAugmenter(rng *rand.Rand) *MirrorAugmenter {
	return &MirrorAugmenter{rng: rng, horizontal: true, vertical: true}
}

// WithAxes selects which mirrorings are enabled. Returns itself, to allow chaining.
func (m *MirrorAugmenter) WithAxes(horizontal, vertical bool) *MirrorAugmenter {
	m.horizontal, m.vertical = horizontal, vertical
	return m
}

// Transform implements the Transform function type, see Assembler.AssembleWith.
func (m *MirrorAugmenter) Transform(img image.Image) image.Image {
	if m.horizontal && m.rng.Intn(2) == 1 {
		img = imaging.FlipH(img)
	}
	if m.vertical && m.rng.Intn(2) == 1 {
		img = imaging.FlipV(img)
	}
	return img
}
