package monitor

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/timesheet/internal/infrastructure/buffer"
)

func TestMonitor_MemoryStoreIsOnline(t *testing.T) {
	m := New(nil, nil, nil, 0, nil)
	assert.True(t, m.IsOnline(), "online before the first probe")
	assert.True(t, m.Healthy())

	m.refresh()
	status := m.GetStatus()
	assert.Equal(t, StoreMemory, status.Store)
	assert.False(t, status.PostgreSQL)
	assert.False(t, status.CacheEnabled)
	assert.True(t, m.IsOnline())
}

func TestMonitor_ReportsBufferSize(t *testing.T) {
	store, err := buffer.Open(filepath.Join(t.TempDir(), "buffer.db"), "contributions")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Enqueue(buffer.Item{ID: "a", Entity: buffer.EntityContribution}))

	m := New(nil, nil, store, 0, nil)
	m.refresh()
	status := m.GetStatus()
	assert.True(t, status.Buffer)
	assert.Equal(t, 1, status.BufferSize)
}

func TestStatus_PrimaryOK(t *testing.T) {
	assert.False(t, Status{Store: StorePostgres}.primaryOK())
	assert.True(t, Status{Store: StorePostgres, PostgreSQL: true}.primaryOK())
	assert.True(t, Status{Store: StoreMemory}.primaryOK())
}
