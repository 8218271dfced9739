package recovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "order.json"))
	id, err := f.Load()
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestSaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "order.json")
	f := NewFile(path)

	require.NoError(t, f.Save("TL-1"))
	require.NoError(t, f.Save("TL-2"))

	id, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, "TL-2", id)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"orderId":"TL-2"}`, string(raw))

	require.NoError(t, f.Clear())
	require.NoError(t, f.Clear())
	id, err = f.Load()
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestSaveEmptyClears(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "order.json"))
	require.NoError(t, f.Save("TL-1"))
	require.NoError(t, f.Save(""))
	id, err := f.Load()
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "order.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err := NewFile(path).Load()
	assert.Error(t, err)
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(filepath.Join(dir, "order.json"))
	require.NoError(t, f.Save("TL-1"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "order.json", entries[0].Name())
}
