package watermark

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "watermark.json")
	store, err := NewFileStore(path, zerolog.Nop())
	require.NoError(t, err)
	return store, path
}

func TestFileStore_LoadMissingReturnsDefault(t *testing.T) {
	store, _ := newTestFileStore(t)

	w := store.Load(context.Background())

	assert.True(t, w.FirstRun())
	assert.Zero(t, w.TotalRecordsProcessed)
	assert.Empty(t, w.SourceID)
}

func TestFileStore_LoadCorruptReturnsDefault(t *testing.T) {
	store, path := newTestFileStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	w := store.Load(context.Background())

	assert.True(t, w.FirstRun())
}

func TestFileStore_SaveRoundTrip(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()

	saved := Watermark{
		SourceID:               "chan-1",
		SourceName:             "Newsdesk",
		LastProcessedTimestamp: 1500,
		LastRunAt:              "2024-02-10T12:00:00Z",
		TotalRecordsProcessed:  42,
	}
	require.NoError(t, store.Save(ctx, saved))

	assert.Equal(t, saved, store.Load(ctx))
}

func TestFileStore_SaveCreatesMissingDirectory(t *testing.T) {
	store, path := newTestFileStore(t)

	require.NoError(t, store.Save(context.Background(), Watermark{LastProcessedTimestamp: 9}))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestFileStore_SaveFailsOnUncreatableDirectory(t *testing.T) {
	base := t.TempDir()
	// A regular file where a directory is needed makes the path uncreatable.
	blocker := filepath.Join(base, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	store, err := NewFileStore(filepath.Join(blocker, "nested", "watermark.json"), zerolog.Nop())
	require.NoError(t, err)

	err = store.Save(context.Background(), Watermark{LastProcessedTimestamp: 1})
	assert.Error(t, err)
}

func TestFileStore_UpdateMergesPartial(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, Watermark{
		SourceID:               "chan-1",
		SourceName:             "Newsdesk",
		LastProcessedTimestamp: 1000,
		TotalRecordsProcessed:  10,
	}))

	ts := int64(2000)
	total := int64(15)
	require.NoError(t, store.Update(ctx, Update{
		LastProcessedTimestamp: &ts,
		TotalRecordsProcessed:  &total,
	}))

	w := store.Load(ctx)
	assert.Equal(t, "chan-1", w.SourceID, "unset fields must survive the merge")
	assert.Equal(t, "Newsdesk", w.SourceName)
	assert.Equal(t, int64(2000), w.LastProcessedTimestamp)
	assert.Equal(t, int64(15), w.TotalRecordsProcessed)
}

func TestFileStore_UpdateOnEmptyStoreMergesOverDefault(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()

	ts := int64(500)
	require.NoError(t, store.Update(ctx, Update{LastProcessedTimestamp: &ts}))

	w := store.Load(ctx)
	assert.Equal(t, int64(500), w.LastProcessedTimestamp)
	assert.Zero(t, w.TotalRecordsProcessed)
}

func TestUpdate_ApplyLeavesNilFieldsUntouched(t *testing.T) {
	base := Watermark{SourceID: "a", LastProcessedTimestamp: 7, TotalRecordsProcessed: 3}

	name := "Newsdesk"
	merged := Update{SourceName: &name}.Apply(base)

	assert.Equal(t, "a", merged.SourceID)
	assert.Equal(t, "Newsdesk", merged.SourceName)
	assert.Equal(t, int64(7), merged.LastProcessedTimestamp)
	assert.Equal(t, int64(3), merged.TotalRecordsProcessed)
}
