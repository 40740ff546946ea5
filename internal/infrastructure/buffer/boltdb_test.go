package buffer

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "buffer.db"), "contributions")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func item(id string, priority int) Item {
	return Item{
		ID:            id,
		ContributorID: 7,
		Entity:        EntityContribution,
		Operation:     OperationCreate,
		Data:          json.RawMessage(`{"task_id":1}`),
		Priority:      priority,
	}
}

func ids(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestStore_BatchIsFIFOWithinPriority(t *testing.T) {
	store := openStore(t)
	for _, it := range []Item{item("a", 3), item("b", 3), item("urgent", 1), item("c", 0)} {
		require.NoError(t, store.Enqueue(it))
	}

	batch, err := store.GetBatch(10)
	require.NoError(t, err)
	// priority 0 is normalized to the default 3
	assert.Equal(t, []string{"urgent", "a", "b", "c"}, ids(batch))
	assert.Equal(t, 3, batch[3].Priority)

	first, err := store.GetBatch(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"urgent", "a"}, ids(first))

	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 4, size, "GetBatch does not consume")
}

func TestStore_RemoveAndRequeue(t *testing.T) {
	store := openStore(t)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Enqueue(item(id, 3)))
	}

	batch, err := store.GetBatch(1)
	require.NoError(t, err)
	head := batch[0]
	require.NoError(t, store.Remove(head))
	head.Retries++
	require.NoError(t, store.Requeue(head))

	batch, err = store.GetBatch(10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, ids(batch))
	assert.Equal(t, 1, batch[2].Retries)

	// items without a cursor key are removed by id
	require.NoError(t, store.Remove(Item{ID: "c"}))
	batch, err = store.GetBatch(10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(batch))
}

func TestStore_CleanupRemovesExpired(t *testing.T) {
	store := openStore(t)
	now := time.Now()
	for i, age := range []time.Duration{3 * time.Hour, 2 * time.Hour, time.Minute, 5 * time.Hour} {
		it := item(string(rune('a'+i)), 3)
		it.Timestamp = now.Add(-age)
		require.NoError(t, store.Enqueue(it))
	}

	removed, err := store.Cleanup(now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	batch, err := store.GetBatch(10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(batch))
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buffer.db")
	store, err := Open(path, "")
	require.NoError(t, err)
	require.NoError(t, store.Enqueue(item("a", 2)))
	require.NoError(t, store.Close())

	store, err = Open(path, "")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Enqueue(item("b", 2)))

	batch, err := store.GetBatch(10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(batch))
	assert.Equal(t, json.RawMessage(`{"task_id":1}`), batch[0].Data)
}

func TestStore_NilIsClosed(t *testing.T) {
	var store *Store
	assert.Error(t, store.Enqueue(item("a", 1)))
	_, err := store.GetBatch(1)
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}
