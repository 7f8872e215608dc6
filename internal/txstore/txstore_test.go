package txstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/mevcore/internal/autosubmit"
)

func TestMemoryStore_RecordThenGet(t *testing.T) {
	store := NewMemoryStore()
	hash := [32]byte{0x01}
	raw := []byte{0xde, 0xad}

	store.Record(hash, autosubmit.Polling, raw)

	got, err := store.Get(hash)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, autosubmit.Polling, got.State)
	assert.Equal(t, raw, got.RawTx)
	assert.Zero(t, got.BumpCount)
}

func TestMemoryStore_RecordBumpIncrementsBumpCount(t *testing.T) {
	store := NewMemoryStore()
	hash := [32]byte{0x02}

	store.Record(hash, autosubmit.Polling, []byte{0x01})
	store.Record(hash, autosubmit.Bump, nil)
	store.Record(hash, autosubmit.Bump, nil)

	got, err := store.Get(hash)
	require.NoError(t, err)
	assert.Equal(t, 2, got.BumpCount)
	// RawTx from the first Record call is retained when later calls pass nil.
	assert.Equal(t, []byte{0x01}, got.RawTx)
}

func TestMemoryStore_GetMissingReturnsNil(t *testing.T) {
	store := NewMemoryStore()
	got, err := store.Get([32]byte{0xff})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_GetReturnsACopyNotAlias(t *testing.T) {
	store := NewMemoryStore()
	hash := [32]byte{0x03}
	store.Record(hash, autosubmit.Done, []byte{0x01, 0x02})

	first, err := store.Get(hash)
	require.NoError(t, err)
	first.RawTx[0] = 0xff

	second, err := store.Get(hash)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), second.RawTx[0])
}

func TestMemoryStore_ListByState(t *testing.T) {
	store := NewMemoryStore()
	store.Record([32]byte{0x01}, autosubmit.Done, nil)
	store.Record([32]byte{0x02}, autosubmit.Failed, nil)
	store.Record([32]byte{0x03}, autosubmit.Done, nil)

	done, err := store.ListByState(autosubmit.Done)
	require.NoError(t, err)
	assert.Len(t, done, 2)

	failed, err := store.ListByState(autosubmit.Failed)
	require.NoError(t, err)
	assert.Len(t, failed, 1)
}

func TestMemoryStore_DeleteRemovesEntry(t *testing.T) {
	store := NewMemoryStore()
	hash := [32]byte{0x04}
	store.Record(hash, autosubmit.Done, nil)

	require.NoError(t, store.Delete(hash))

	got, err := store.Get(hash)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_CleanRemovesOnlyStaleEntries(t *testing.T) {
	store := NewMemoryStore()
	fresh := [32]byte{0x05}
	stale := [32]byte{0x06}

	store.Record(stale, autosubmit.Done, nil)
	store.store[stale].FirstSeen = time.Now().Add(-time.Hour)
	store.Record(fresh, autosubmit.Done, nil)

	removed, err := store.Clean(time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Get(stale)
	require.NoError(t, err)
	all, err := store.List()
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, fresh, all[0].TxHash)
}

func TestMemoryStore_SetOverwritesDirectly(t *testing.T) {
	store := NewMemoryStore()
	hash := [32]byte{0x07}
	require.NoError(t, store.Set(hash, &SessionState{TxHash: hash, State: autosubmit.Bump, BumpCount: 3}))

	got, err := store.Get(hash)
	require.NoError(t, err)
	assert.Equal(t, 3, got.BumpCount)
}
