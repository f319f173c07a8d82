// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package labels

import (
	"math"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
)

// IDColumn is the name of the identifier column in CSV labels files.
const IDColumn = "id"

func loadCSV(path string) (map[string]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	// Identifiers may look like numbers ("00123"): they must be kept verbatim.
	df := dataframe.ReadCSV(f, dataframe.WithTypes(map[string]series.Type{IDColumn: series.String}))
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "failed to parse CSV")
	}
	names := df.Names()
	hasID := false
	for _, name := range names {
		if name == IDColumn {
			hasID = true
			break
		}
	}
	if !hasID {
		return nil, errors.Errorf("CSV has no %q column, columns are %q", IDColumn, names)
	}

	ids := df.Col(IDColumn).Records()
	records := make(map[string]Record, len(ids))
	for _, id := range ids {
		if _, dup := records[id]; dup {
			return nil, errors.Errorf("item %q appears more than once", id)
		}
		records[id] = make(Record, len(names)-1)
	}
	for _, name := range names {
		if name == IDColumn {
			continue
		}
		col := df.Col(name)
		values := col.Float()
		raw := col.Records()
		for row, id := range ids {
			if math.IsNaN(values[row]) {
				if raw[row] == "" || raw[row] == "NaN" {
					// Missing annotation: the field is simply absent for this item.
					continue
				}
				return nil, errors.Errorf("item %q, field %q: %q is not a number", id, name, raw[row])
			}
			records[id][name] = values[row]
		}
	}
	return records, nil
}
