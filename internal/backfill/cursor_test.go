package backfill

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorManager_LoadMissingFile(t *testing.T) {
	manager := NewCursorManager(filepath.Join(t.TempDir(), "cursor.json"))

	cursor, err := manager.Load()
	require.NoError(t, err)
	assert.True(t, cursor.IsEmpty())
	assert.Equal(t, CursorVersion, cursor.Version)
}

func TestCursorManager_SaveAndLoad(t *testing.T) {
	manager := NewCursorManager(filepath.Join(t.TempDir(), "cursor.json"))

	err := manager.Save(Cursor{LastFile: "b.md", ProcessedCount: 2})
	require.NoError(t, err)

	cursor, err := manager.Load()
	require.NoError(t, err)
	assert.Equal(t, "b.md", cursor.LastFile)
	assert.Equal(t, 2, cursor.ProcessedCount)
	assert.Equal(t, CursorVersion, cursor.Version)
	assert.False(t, cursor.UpdatedAt.IsZero())
}

func TestCursorManager_Reset(t *testing.T) {
	manager := NewCursorManager(filepath.Join(t.TempDir(), "cursor.json"))

	require.NoError(t, manager.Save(Cursor{LastFile: "a.txt"}))
	require.NoError(t, manager.Reset())

	cursor, err := manager.Load()
	require.NoError(t, err)
	assert.True(t, cursor.IsEmpty())
}

func TestCursorManager_LockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.json")

	first := NewCursorManager(path)
	require.NoError(t, first.Lock())
	defer first.Unlock()

	second := NewCursorManager(path)
	err := second.Lock()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "locked by another process")
}

func TestCursorManager_UnlockWithoutLock(t *testing.T) {
	manager := NewCursorManager(filepath.Join(t.TempDir(), "cursor.json"))
	assert.NoError(t, manager.Unlock())
}
