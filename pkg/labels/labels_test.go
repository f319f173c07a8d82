// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package labels

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const field = "Answer.q7_persuasive"

// protocol0Pickle is the protocol 0 serialization of
// {'img1': {'Answer.q7_persuasive': 6.0}, 'img2': {'Answer.q7_persuasive': 5, 'other': 1.5}}.
const protocol0Pickle = "(dp0\n" +
	"S'img1'\np1\n(dp2\nS'Answer.q7_persuasive'\np3\nF6.0\nss" +
	"S'img2'\np4\n(dp5\ng3\nI5\nsS'other'\np6\nF1.5\nss."

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestBinarize(t *testing.T) {
	assert.Equal(t, float32(1), Binarize(5.5, 5.5))
	assert.Equal(t, float32(0), Binarize(5.4999, 5.5))
	assert.Equal(t, float32(1), Binarize(9, 5.5))
	assert.Equal(t, float32(0), Binarize(0, 5.5))
}

func TestStoreScore(t *testing.T) {
	store := New(map[string]Record{"a": {field: 7}})
	assert.Equal(t, 1, store.Len())
	assert.True(t, store.Has("a"))
	assert.False(t, store.Has("b"))

	score, err := store.Score("a", field)
	require.NoError(t, err)
	assert.Equal(t, 7.0, score)

	_, err = store.Score("b", field)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownItem))

	_, err = store.Score("a", "unknown")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownField))
}

func TestLoadPickle(t *testing.T) {
	store, err := Load(writeFile(t, "labels.pickle", protocol0Pickle))
	require.NoError(t, err)
	assert.Equal(t, []string{"img1", "img2"}, store.IDs())

	score, err := store.Score("img1", field)
	require.NoError(t, err)
	assert.Equal(t, 6.0, score)

	score, err = store.Score("img2", field)
	require.NoError(t, err)
	assert.Equal(t, 5.0, score)

	score, err = store.Score("img2", "other")
	require.NoError(t, err)
	assert.Equal(t, 1.5, score)
}

func TestLoadPickleErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.pickle"))
	require.Error(t, err)

	// Truncated: no STOP opcode.
	_, err = Load(writeFile(t, "truncated.pkl", protocol0Pickle[:20]))
	require.Error(t, err)

	// Top-level list instead of dict.
	_, err = Load(writeFile(t, "list.pkl", "(lp0\nI1\na."))
	require.Error(t, err)
}

func TestLoadCSV(t *testing.T) {
	path := writeFile(t, "labels.csv", "id,Answer.q7_persuasive,other\n"+
		"00017,5.5,1\n"+
		"00018,3,\n")
	store, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"00017", "00018"}, store.IDs())

	score, err := store.Score("00017", field)
	require.NoError(t, err)
	assert.Equal(t, 5.5, score)

	score, err = store.Score("00018", field)
	require.NoError(t, err)
	assert.Equal(t, 3.0, score)

	_, err = store.Score("00018", "other")
	assert.True(t, errors.Is(err, ErrUnknownField))
}

func TestLoadCSVErrors(t *testing.T) {
	_, err := Load(writeFile(t, "noid.csv", "name,score\na,1\n"))
	require.Error(t, err)

	_, err = Load(writeFile(t, "dup.csv", "id,score\na,1\na,2\n"))
	require.Error(t, err)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	_, err := Load(writeFile(t, "labels.json", "{}"))
	require.Error(t, err)
}
