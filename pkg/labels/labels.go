// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package labels holds the annotation scores of every image, keyed by the image identifier.
//
// The Store is loaded once at start up and is read-only afterward: it is passed explicitly
// to whoever needs the scores (see batches.Assembler).
package labels

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrUnknownItem is returned (wrapped) by Store.Score when the identifier has no record.
	ErrUnknownItem = errors.New("item not found in labels")

	// ErrUnknownField is returned (wrapped) by Store.Score when the record has no such annotation field.
	ErrUnknownField = errors.New("annotation field not found in labels")
)

// Record maps annotation field names to scores.
type Record map[string]float64

// Store is a read-only mapping of item identifier to its annotation Record.
type Store struct {
	records map[string]Record
}

// New creates a Store with the given records. The Store takes ownership of the map.
func New(records map[string]Record) *Store {
	if records == nil {
		records = make(map[string]Record)
	}
	return &Store{records: records}
}

// Load the labels file, with the format selected by the file extension:
//
//   - ".pickle" or ".pkl": a Python pickle of a dict of identifier to a dict of field name to score.
//   - ".csv": a header with an "id" column plus one column per annotation field.
func Load(path string) (*Store, error) {
	ext := strings.ToLower(filepath.Ext(path))
	var (
		records map[string]Record
		err     error
	)
	switch ext {
	case ".pickle", ".pkl":
		records, err = loadPickle(path)
	case ".csv":
		records, err = loadCSV(path)
	default:
		return nil, errors.Errorf("labels file %q: unsupported extension %q, use .pickle, .pkl or .csv", path, ext)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load labels from %q", path)
	}
	return New(records), nil
}

// Len returns the number of items in the Store.
func (s *Store) Len() int { return len(s.records) }

// Has returns whether there is a record for id.
func (s *Store) Has(id string) bool {
	_, found := s.records[id]
	return found
}

// Score returns the score of the annotation field for the item id.
func (s *Store) Score(id, field string) (float64, error) {
	record, found := s.records[id]
	if !found {
		return 0, errors.Wrapf(ErrUnknownItem, "item %q", id)
	}
	score, found := record[field]
	if !found {
		return 0, errors.Wrapf(ErrUnknownField, "item %q, field %q", id, field)
	}
	return score, nil
}

// IDs returns the sorted identifiers in the Store.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Binarize converts a score to a binary label: 1 if score >= threshold, 0 otherwise.
func Binarize(score, threshold float64) float32 {
	if score >= threshold {
		return 1
	}
	return 0
}
