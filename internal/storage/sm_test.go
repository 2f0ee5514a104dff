package storage

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*StorageManager, afero.Fs) {
	t.Helper()
	mem := afero.NewMemMapFs()
	return NewStorageManager(mem), mem
}

func TestStorageManager_CreatePageFile_OneZeroPage(t *testing.T) {
	sm, mem := newTestManager(t)

	require.NoError(t, sm.CreatePageFile("test.bin"))

	info, err := mem.Stat("test.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(PageSize), info.Size())

	raw, err := afero.ReadFile(mem, "test.bin")
	require.NoError(t, err)
	assert.Equal(t, make([]byte, PageSize), raw)
}

func TestStorageManager_CreatePageFile_TruncatesExisting(t *testing.T) {
	sm, mem := newTestManager(t)
	require.NoError(t, afero.WriteFile(mem, "test.bin", make([]byte, 3*PageSize), FileMode0644))

	require.NoError(t, sm.CreatePageFile("test.bin"))

	n, err := sm.CountPages("test.bin")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStorageManager_CreatePageFile_EmptyName(t *testing.T) {
	sm, _ := newTestManager(t)
	require.ErrorIs(t, sm.CreatePageFile(""), ErrFileNotFound)
}

func TestStorageManager_CreatePageFile_ReadOnlyFs(t *testing.T) {
	sm := NewStorageManager(afero.NewReadOnlyFs(afero.NewMemMapFs()))
	require.ErrorIs(t, sm.CreatePageFile("test.bin"), ErrFileNotFound)
}

func TestStorageManager_OpenPageFile(t *testing.T) {
	sm, mem := newTestManager(t)
	require.NoError(t, afero.WriteFile(mem, "test.bin", make([]byte, 5*PageSize), FileMode0644))

	pf, err := sm.OpenPageFile("test.bin")
	require.NoError(t, err)
	defer func() { _ = pf.Close() }()

	assert.Equal(t, "test.bin", pf.FileName())
	assert.Equal(t, 5, pf.TotalPages())
	assert.Equal(t, 0, pf.PagePos())
}

func TestStorageManager_OpenPageFile_Missing(t *testing.T) {
	sm, _ := newTestManager(t)

	_, err := sm.OpenPageFile("missing.bin")
	require.ErrorIs(t, err, ErrFileNotFound)

	_, err = sm.OpenPageFile("")
	require.ErrorIs(t, err, ErrFileNotFound)
}

func TestStorageManager_OpenPageFile_Directory(t *testing.T) {
	sm, mem := newTestManager(t)
	require.NoError(t, mem.MkdirAll("data", FileMode0755))

	_, err := sm.OpenPageFile("data")
	require.ErrorIs(t, err, ErrFileNotFound)
}

func TestStorageManager_DestroyPageFile(t *testing.T) {
	sm, mem := newTestManager(t)
	require.NoError(t, sm.CreatePageFile("test.bin"))

	require.NoError(t, sm.DestroyPageFile("test.bin"))

	exists, err := afero.Exists(mem, "test.bin")
	require.NoError(t, err)
	assert.False(t, exists)

	// A second destroy has nothing to remove.
	require.ErrorIs(t, sm.DestroyPageFile("test.bin"), ErrFileNotFound)
	require.ErrorIs(t, sm.DestroyPageFile(""), ErrFileNotFound)
}

func TestStorageManager_CountPages_Missing(t *testing.T) {
	sm, _ := newTestManager(t)
	_, err := sm.CountPages("missing.bin")
	require.ErrorIs(t, err, ErrFileNotFound)
}

func TestNewStorageManager_DefaultsToOsFs(t *testing.T) {
	sm := NewStorageManager(nil)
	require.IsType(t, &afero.OsFs{}, sm.Fs())
}
