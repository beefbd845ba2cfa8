package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whiteflagprotocol/wfrelay/internal/blockchain"
	"github.com/whiteflagprotocol/wfrelay/internal/datastore"
	"github.com/whiteflagprotocol/wfrelay/internal/datastore/filestore"
	"github.com/whiteflagprotocol/wfrelay/internal/events"
	"github.com/whiteflagprotocol/wfrelay/internal/message"
)

func newTestRetrieval(t *testing.T) (*Retrieval, *datastore.Registry) {
	store := datastore.NewRegistry(nil)
	fs := filestore.New("primary", t.TempDir())
	require.NoError(t, fs.Init(context.Background()))
	store.Register(fs, true)

	return &Retrieval{
		Store:    store,
		Adapters: blockchain.NewRegistry(),
		Bus:      events.New(),
	}, store
}

func TestGetMessageHitsDatastoreFirst(t *testing.T) {
	r, store := newTestRetrieval(t)
	primary, err := store.Primary()
	require.NoError(t, err)
	require.NoError(t, primary.StoreMessage(context.Background(), &message.Message{MetaHeader: message.MetaHeader{
		Blockchain: "ethereum", TransactionHash: "tx1",
	}}))

	got, err := r.GetMessage(context.Background(), "tx1", "ethereum")
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestGetMessageMissReturnsNilWithoutBlockchainContext(t *testing.T) {
	r, _ := newTestRetrieval(t)
	got, err := r.GetMessage(context.Background(), "", "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetAuthMessagesEmptyResultIsDomainError(t *testing.T) {
	r, _ := newTestRetrieval(t)
	_, err := r.GetAuthMessages(context.Background(), "0xabc", "ethereum")
	require.Error(t, err)
}

func TestGetSequenceExpandsReferenceChain(t *testing.T) {
	r, store := newTestRetrieval(t)
	primary, err := store.Primary()
	require.NoError(t, err)

	root := &message.Message{MetaHeader: message.MetaHeader{Blockchain: "ethereum", TransactionHash: "root"}}
	child := &message.Message{
		MetaHeader:    message.MetaHeader{Blockchain: "ethereum", TransactionHash: "child"},
		MessageHeader: message.MessageHeader{ReferencedMessage: "root"},
	}
	require.NoError(t, primary.StoreMessage(context.Background(), root))
	require.NoError(t, primary.StoreMessage(context.Background(), child))

	seq, err := r.GetSequence(context.Background(), "root", "ethereum")
	require.NoError(t, err)
	assert.Len(t, seq, 2)
}
