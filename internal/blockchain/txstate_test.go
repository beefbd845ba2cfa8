package blockchain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySendStateStoreSetGetIsACopy(t *testing.T) {
	st := NewMemorySendStateStore()
	require.NoError(t, st.Set("tx1", &SendState{ID: "tx1", Status: SendPending, FirstSeen: time.Now()}))

	got, err := st.Get("tx1")
	require.NoError(t, err)
	require.NotNil(t, got)
	got.Status = SendFailed

	fresh, err := st.Get("tx1")
	require.NoError(t, err)
	assert.Equal(t, SendPending, fresh.Status)
}

func TestMemorySendStateStoreGetMissingReturnsNilNoError(t *testing.T) {
	st := NewMemorySendStateStore()
	got, err := st.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemorySendStateStoreDeleteIsIdempotent(t *testing.T) {
	st := NewMemorySendStateStore()
	require.NoError(t, st.Delete("never-existed"))
}

func TestMemorySendStateStoreListSortsNewestFirst(t *testing.T) {
	st := NewMemorySendStateStore()
	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	require.NoError(t, st.Set("old", &SendState{ID: "old", FirstSeen: older}))
	require.NoError(t, st.Set("new", &SendState{ID: "new", FirstSeen: newer}))

	list, err := st.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
}
