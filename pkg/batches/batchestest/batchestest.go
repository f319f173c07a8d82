// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package batchestest creates small on-disk datasets (images, labels and split manifests) for
// tests of packages that read them.
package batchestest

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/persuasion/pkg/labels"
	"github.com/gomlx/persuasion/pkg/splits"
	"github.com/stretchr/testify/require"
)

// Field used for the scores of the generated labels.
const Field = "Answer.q7_persuasive"

// Extension of the generated image files.
const Extension = ".png"

// Dataset describes a generated dataset.
type Dataset struct {
	ImDir, SplitDir string
	Size            int
	Store           *labels.Store
	Manifest        *splits.Manifest
	IDs             map[splits.Name][]string
}

// Path of the image file for id.
func (ds *Dataset) Path(id string) string {
	return filepath.Join(ds.ImDir, id+Extension)
}

// WriteImage writes a size×size PNG to path, where every pixel is (r, g, b).
func WriteImage(t testing.TB, path string, size int, r, g, b uint8) {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := range size {
		for x := range size {
			img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

// WriteQuadrantImage writes a size×size PNG to path with distinct values on each quadrant,
// so mirrorings can be told apart: the red channel holds 10 (top-left),
// 20 (top-right), 30 (bottom-left) or 40 (bottom-right).
func WriteQuadrantImage(t testing.TB, path string, size int) {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	half := size / 2
	for y := range size {
		for x := range size {
			v := uint8(10)
			if x >= half {
				v += 10
			}
			if y >= half {
				v += 20
			}
			img.SetNRGBA(x, y, color.NRGBA{R: v, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

// New creates a dataset under t.TempDir() with numPerSplit[split] images per split.
//
// Image ids are "<split>_<nnn>". Their score alternates between 7 (label 1) and 3
// (label 0), starting with 7, and the pixel color encodes the index of the image in its split.
func New(t testing.TB, size int, numPerSplit map[splits.Name]int) *Dataset {
	root := t.TempDir()
	ds := &Dataset{
		ImDir:    filepath.Join(root, "images"),
		SplitDir: filepath.Join(root, "perssplit"),
		Size:     size,
		IDs:      make(map[splits.Name][]string),
	}
	require.NoError(t, os.MkdirAll(ds.ImDir, 0o755))
	require.NoError(t, os.MkdirAll(ds.SplitDir, 0o755))

	records := make(map[string]labels.Record)
	for split, count := range numPerSplit {
		ids := make([]string, count)
		for ii := range count {
			id := fmt.Sprintf("%s_%03d", split, ii)
			ids[ii] = id
			score := 7.0
			if ii%2 == 1 {
				score = 3.0
			}
			records[id] = labels.Record{Field: score}
			WriteImage(t, ds.Path(id), size, uint8(ii), uint8(ii), uint8(ii))
		}
		ds.IDs[split] = ids
		content := strings.Join(ids, "\n") + "\n"
		require.NoError(t, os.WriteFile(splits.ManifestPath(ds.SplitDir, split), []byte(content), 0o644))
	}
	ds.Store = labels.New(records)
	manifest, err := splits.Read(ds.SplitDir, sortedSplits(numPerSplit)...)
	require.NoError(t, err)
	ds.Manifest = manifest
	return ds
}

func sortedSplits(numPerSplit map[splits.Name]int) []splits.Name {
	var names []splits.Name
	for _, split := range splits.All {
		if _, found := numPerSplit[split]; found {
			names = append(names, split)
		}
	}
	return names
}
