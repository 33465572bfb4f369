package ioutils

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_WriteFileAtomic(t *testing.T) {
	store := NewStore(afero.NewMemMapFs())
	dir := filepath.Join("/root", "OfficialDiscordSchematic")
	require.NoError(t, store.EnsureDir(dir))

	path := filepath.Join(dir, "1-a.msch")
	require.NoError(t, store.WriteFileAtomic(path, []byte("first")))
	require.NoError(t, store.WriteFileAtomic(path, []byte("second")))

	data, err := store.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := store.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
	assert.Equal(t, "1-a.msch", entries[0].Name())
}

func TestStore_WriteFileAtomicMissingDir(t *testing.T) {
	store := NewStore(afero.NewReadOnlyFs(afero.NewMemMapFs()))

	err := store.WriteFileAtomic("/missing/file.msch", []byte("x"))
	assert.ErrorIs(t, err, ErrFilesystem)
}

func TestStore_Move(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store := NewStore(fsys)

	require.NoError(t, store.EnsureDir("/root/cat/V6"))
	require.NoError(t, afero.WriteFile(fsys, "/root/cat/a.msch", []byte("new"), 0644))
	require.NoError(t, afero.WriteFile(fsys, "/root/cat/V6/a.msch", []byte("old"), 0644))

	require.NoError(t, store.Move("/root/cat/a.msch", "/root/cat/V6/a.msch"))

	assert.False(t, store.Exists("/root/cat/a.msch"))
	data, err := store.ReadFile("/root/cat/V6/a.msch")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestStore_MoveMissingSource(t *testing.T) {
	store := NewStore(afero.NewMemMapFs())

	err := store.Move("/nope.msch", "/dst.msch")
	assert.ErrorIs(t, err, ErrFilesystem)
}

func TestStore_ExistsAndSize(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store := NewStore(fsys)
	require.NoError(t, afero.WriteFile(fsys, "/f.msch", []byte("12345"), 0644))
	require.NoError(t, store.EnsureDir("/dir"))

	assert.True(t, store.Exists("/f.msch"))
	assert.False(t, store.Exists("/dir"), "directories are not files")
	assert.False(t, store.Exists("/none"))
	assert.EqualValues(t, 5, store.Size("/f.msch"))
	assert.EqualValues(t, -1, store.Size("/none"))
}
