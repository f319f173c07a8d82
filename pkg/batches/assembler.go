// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package batches

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/persuasion/pkg/labels"
	"github.com/pkg/errors"
)

// NumChannels of the image tensors.
const NumChannels = 3

// AssemblerOptions configures an Assembler.
type AssemblerOptions struct {
	// Field is the annotation field used as the label score.
	Field string

	// Threshold binarizes the score: score >= Threshold is label 1.
	Threshold float64

	// Size is the width and height expected of every image.
	Size int

	// ChannelMeans are subtracted from each channel, in channel order.
	ChannelMeans []float64
}

// Transform is applied to each decoded image before it is converted to a tensor.
type Transform func(img image.Image) image.Image

// Assembler converts image files to batches of tensors and labels.
type Assembler struct {
	store *labels.Store
	opts  AssemblerOptions
	means [NumChannels]float32
}

// NewAssembler creates an Assembler that takes the labels from store.
func NewAssembler(store *labels.Store, opts AssemblerOptions) (*Assembler, error) {
	if store == nil {
		return nil, errors.New("batches.NewAssembler requires a labels.Store")
	}
	if opts.Size <= 0 {
		return nil, errors.Errorf("invalid image size %d", opts.Size)
	}
	if len(opts.ChannelMeans) != NumChannels {
		return nil, errors.Errorf("%d channel means required, got %v", NumChannels, opts.ChannelMeans)
	}
	a := &Assembler{store: store, opts: opts}
	for ii, mean := range opts.ChannelMeans {
		a.means[ii] = float32(mean)
	}
	return a, nil
}

// Size of the images, both width and height.
func (a *Assembler) Size() int { return a.opts.Size }

// IDFromPath returns the item identifier of an image path: the file name without the
// directory and without anything from the first ".".
func IDFromPath(path string) string {
	name := filepath.Base(path)
	if idx := strings.Index(name, "."); idx >= 0 {
		name = name[:idx]
	}
	return name
}

// Assemble the images in paths into one Batch, in the same order.
func (a *Assembler) Assemble(paths []string) (*Batch, error) {
	return a.AssembleWith(paths, nil)
}

// AssembleWith is like Assemble, but applies transform (if not nil) to every image after decoding.
func (a *Assembler) AssembleWith(paths []string, transform Transform) (*Batch, error) {
	numImages := len(paths)
	if numImages == 0 {
		return nil, errors.New("cannot assemble an empty batch")
	}
	size := a.opts.Size
	imageSize := NumChannels * size * size
	imagesFlat := make([]float32, numImages*imageSize)
	labelsFlat := make([]float32, numImages)
	ids := make([]string, numImages)
	for ii, imgPath := range paths {
		id := IDFromPath(imgPath)
		ids[ii] = id
		score, err := a.store.Score(id, a.opts.Field)
		if err != nil {
			return nil, errors.WithMessagef(err, "labeling image %q", imgPath)
		}
		labelsFlat[ii] = labels.Binarize(score, a.opts.Threshold)

		img, err := imaging.Open(imgPath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read image %q", imgPath)
		}
		if transform != nil {
			img = transform(img)
		}
		if err = a.imageToFlat(img, imagesFlat[ii*imageSize:(ii+1)*imageSize]); err != nil {
			return nil, errors.WithMessagef(err, "image %q", imgPath)
		}
	}
	return &Batch{
		IDs:    ids,
		Images: tensors.FromFlatDataAndDimensions(imagesFlat, numImages, NumChannels, size, size),
		Labels: tensors.FromFlatDataAndDimensions(labelsFlat, numImages, 1),
	}, nil
}

// imageToFlat writes img in channels-first order with the means subtracted.
func (a *Assembler) imageToFlat(img image.Image, flat []float32) error {
	size := a.opts.Size
	bounds := img.Bounds()
	if bounds.Dx() != size || bounds.Dy() != size {
		return errors.Errorf("image is %dx%d, expected %dx%d", bounds.Dx(), bounds.Dy(), size, size)
	}
	nrgba := imaging.Clone(img)
	planeSize := size * size
	for y := 0; y < size; y++ {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := 0; x < size; x++ {
			pixel := row[x*4 : x*4+NumChannels]
			pos := y*size + x
			for channel := 0; channel < NumChannels; channel++ {
				flat[channel*planeSize+pos] = float32(pixel[channel]) - a.means[channel]
			}
		}
	}
	return nil
}
