package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointManager_CreateListDelete(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, seedEntries()))

	cm, err := store.NewCheckpointManager()
	require.NoError(t, err)

	meta, err := cm.Create(ctx, "before-import", "manual snapshot")
	require.NoError(t, err)
	assert.Equal(t, "before-import", meta.ID)
	assert.Equal(t, 3, meta.EntryCount)
	assert.Equal(t, ExpectedSchemaVersion, meta.SchemaVersion)
	assert.False(t, meta.IsAuto)
	assert.FileExists(t, filepath.Join(cm.checkpointsDir, "before-import.db"))

	_, err = cm.Create(ctx, "before-import", "again")
	require.ErrorIs(t, err, ErrCheckpointExists)

	list, err := cm.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, cm.Delete(ctx, "before-import"))
	require.ErrorIs(t, cm.Delete(ctx, "before-import"), ErrCheckpointNotFound)

	_, statErr := os.Stat(filepath.Join(cm.checkpointsDir, "before-import.meta.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCheckpointManager_RejectsTraversal(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	cm, err := store.NewCheckpointManager()
	require.NoError(t, err)

	_, err = cm.Create(context.Background(), "../escape", "")
	require.Error(t, err)
}

func TestCheckpointManager_AutoCheckpointPrunes(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	cm, err := store.NewCheckpointManager()
	require.NoError(t, err)

	for i := 0; i < maxAutoCheckpoints+2; i++ {
		meta, err := cm.AutoCheckpoint(ctx, "learn")
		require.NoError(t, err)
		assert.True(t, meta.IsAuto)
	}

	list, err := cm.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, maxAutoCheckpoints)
}

func TestNewCheckpointManager_MemoryDatabase(t *testing.T) {
	_, err := NewCheckpointManager(nil, ":memory:")
	require.ErrorIs(t, err, ErrCheckpointUnsupported)
}

func TestCheckpointManager_Restore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ref.db")
	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Save(ctx, seedEntries()))

	cm, err := store.NewCheckpointManager()
	require.NoError(t, err)
	_, err = cm.Create(ctx, "good", "")
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, seedEntries()[:1]))
	require.NoError(t, cm.Restore(ctx, "good"))

	reopened, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	count, err := reopened.CountEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoFileExists(t, dbPath+".restore-backup")
}

func TestCheckpointManager_RestoreMissing(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	cm, err := store.NewCheckpointManager()
	require.NoError(t, err)
	require.ErrorIs(t, cm.Restore(context.Background(), "nope"), ErrCheckpointNotFound)
}
