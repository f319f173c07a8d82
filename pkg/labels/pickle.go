// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package labels

import (
	"math/big"
	"os"

	"github.com/nlpodyssey/gopickle/pickle"
	"github.com/nlpodyssey/gopickle/types"
	"github.com/pkg/errors"
)

func loadPickle(path string) (map[string]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	u := pickle.NewUnpickler(f)
	obj, err := u.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to unpickle")
	}
	return recordsFromPickle(obj)
}

// recordsFromPickle converts the unpickled dict-of-dicts.
func recordsFromPickle(obj any) (map[string]Record, error) {
	outer, ok := obj.(*types.Dict)
	if !ok {
		return nil, errors.Errorf("expected a pickled dict at the top level, got %T", obj)
	}
	records := make(map[string]Record, outer.Len())
	for _, key := range outer.Keys() {
		id, ok := key.(string)
		if !ok {
			return nil, errors.Errorf("expected string identifiers, got %T (%v)", key, key)
		}
		value, _ := outer.Get(key)
		inner, ok := value.(*types.Dict)
		if !ok {
			return nil, errors.Errorf("item %q: expected a dict of annotations, got %T", id, value)
		}
		record := make(Record, inner.Len())
		for _, fieldKey := range inner.Keys() {
			field, ok := fieldKey.(string)
			if !ok {
				return nil, errors.Errorf("item %q: expected string field names, got %T", id, fieldKey)
			}
			fieldValue, _ := inner.Get(fieldKey)
			score, err := toFloat(fieldValue)
			if err != nil {
				return nil, errors.WithMessagef(err, "item %q, field %q", id, field)
			}
			record[field] = score
		}
		records[id] = record
	}
	return records, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case *big.Int:
		f, _ := new(big.Float).SetInt(n).Float64()
		return f, nil
	}
	return 0, errors.Errorf("score of type %T is not a number", v)
}
