package model

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type archived struct {
	Name  string    `json:"name"`
	Value []float64 `json:"value"`
}

func TestWriteReadArchive(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "Model.zip")

	entry, err := JSONEntry("model.json", archived{Name: "trees", Value: []float64{1.5, -2}})
	require.NoError(t, err)

	require.NoError(t, WriteArchive(ctx, path, []ArchiveEntry{
		entry,
		{Name: "manifest.yaml", Data: []byte("format_version: 1\n")},
	}))

	entries, err := ReadArchive(ctx, path)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, "format_version: 1\n", string(entries["manifest.yaml"]))

	var got archived
	require.NoError(t, DecodeJSONEntry(entries, "model.json", &got))
	assert.Equal(t, archived{Name: "trees", Value: []float64{1.5, -2}}, got)

	err = DecodeJSONEntry(entries, "featurizer.json", &got)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "featurizer.json")

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestWriteArchive_CancelledKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Model.zip")
	require.NoError(t, WriteArchive(context.Background(), path, []ArchiveEntry{{Name: "a", Data: []byte("old")}}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WriteArchive(ctx, path, []ArchiveEntry{{Name: "a", Data: []byte("new")}})
	require.Error(t, err)

	entries, err := ReadArchive(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(entries["a"]))
}

func TestReadArchive_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadArchive(context.Background(), filepath.Join(dir, "missing.zip"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.zip")
	require.NoError(t, os.WriteFile(bad, []byte("not a zip"), 0o644))
	_, err = ReadArchive(context.Background(), bad)
	assert.Error(t, err)
}
