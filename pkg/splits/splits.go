// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package splits reads the split manifests: for each split, the ordered list of the identifiers
// of the images that belong to it.
//
// Manifests are text files named "<split>.txt" in a split directory, one identifier per line.
package splits

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Name of a split.
type Name string

const (
	Train      Name = "train"
	Validation Name = "val"
	Test       Name = "test"
)

// All splits, in the order they are used.
var All = []Name{Train, Validation, Test}

// ManifestExtension is the suffix of the manifest file of each split.
const ManifestExtension = ".txt"

// Manifest holds the identifiers of each split. It is immutable after being read.
type Manifest struct {
	dir string
	ids map[Name][]string
}

// ManifestPath returns the path of the manifest file for the split in dir.
func ManifestPath(dir string, split Name) string {
	return filepath.Join(dir, string(split)+ManifestExtension)
}

// Read the manifests of the given splits from dir. A missing manifest is an error.
func Read(dir string, splits ...Name) (*Manifest, error) {
	m := &Manifest{dir: dir, ids: make(map[Name][]string, len(splits))}
	for _, split := range splits {
		if _, found := m.ids[split]; found {
			continue
		}
		ids, err := ReadFile(ManifestPath(dir, split))
		if err != nil {
			return nil, errors.WithMessagef(err, "split %q", split)
		}
		m.ids[split] = ids
	}
	return m, nil
}

// FromIDs creates a Manifest directly from the identifiers, keyed by split.
func FromIDs(ids map[Name][]string) *Manifest {
	m := &Manifest{ids: make(map[Name][]string, len(ids))}
	for split, list := range ids {
		m.ids[split] = append([]string(nil), list...)
	}
	return m
}

// ReadFile reads one manifest file: one identifier per line, surrounding whitespace trimmed.
// Every line counts, except a final empty line.
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open manifest")
	}
	defer func() { _ = f.Close() }()
	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		ids = append(ids, strings.TrimSpace(scanner.Text()))
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read manifest %q", path)
	}
	return ids, nil
}

// IDs returns the identifiers of the split, in manifest order.
// The returned slice is owned by the Manifest and must not be changed.
func (m *Manifest) IDs(split Name) ([]string, error) {
	ids, found := m.ids[split]
	if !found {
		return nil, errors.Errorf("split %q not in manifest (read from %q)", split, m.dir)
	}
	return ids, nil
}

// Len returns the number of identifiers in the split, or 0 if it was not read.
func (m *Manifest) Len(split Name) int {
	return len(m.ids[split])
}
