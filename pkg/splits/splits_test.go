// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package splits

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(ManifestPath(dir, Train), []byte("a\nb \n c\n"), 0o644))
	require.NoError(t, os.WriteFile(ManifestPath(dir, Validation), []byte("d\ne"), 0o644))

	m, err := Read(dir, Train, Validation, Train)
	require.NoError(t, err)

	ids, err := m.IDs(Train)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, 3, m.Len(Train))

	ids, err = m.IDs(Validation)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "e"}, ids)

	_, err = m.IDs(Test)
	require.Error(t, err)
	assert.Equal(t, 0, m.Len(Test))
}

func TestReadMissing(t *testing.T) {
	_, err := Read(t.TempDir(), Test)
	require.Error(t, err)
}

func TestFromIDsCopies(t *testing.T) {
	list := []string{"x", "y"}
	m := FromIDs(map[Name][]string{Test: list})
	list[0] = "changed"
	ids, err := m.IDs(Test)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, ids)
}
