package confirmation

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
	"github.com/whiteflagprotocol/wfrelay/internal/state"
)

type trackerStubAdapter struct {
	name          string
	canonicalBlk  uint64
}

func (a *trackerStubAdapter) Name() string { return a.name }
func (a *trackerStubAdapter) SendMessage(ctx context.Context, encoded []byte, from, to string) (string, uint64, error) {
	return "", 0, nil
}
func (a *trackerStubAdapter) GetMessage(ctx context.Context, txHash string) ([]byte, uint64, error) {
	return nil, a.canonicalBlk, nil
}
func (a *trackerStubAdapter) RequestSignature(ctx context.Context, address string, payload []byte) (string, error) {
	return "", nil
}
func (a *trackerStubAdapter) RequestKeys(ctx context.Context, pubKeyHex string) ([]byte, error) {
	return nil, nil
}
func (a *trackerStubAdapter) GetBinaryAddress(ctx context.Context, address string) ([]byte, error) {
	return nil, nil
}
func (a *trackerStubAdapter) HighestBlock(ctx context.Context) (uint64, error) { return 0, nil }
func (a *trackerStubAdapter) CreateAccount(ctx context.Context, secret []byte) (string, error) {
	return "", nil
}
func (a *trackerStubAdapter) DeleteAccount(ctx context.Context, address string) error { return nil }

func newTestTracker(t *testing.T, canonicalBlk uint64) (*Tracker, *datastore.Registry) {
	s := state.New()
	s.UpsertBlockchain("ethereum", true)
	s.SetHighestBlock("ethereum", 100)

	adapters := blockchain.NewRegistry()
	adapters.Register("ethereum", &trackerStubAdapter{name: "ethereum", canonicalBlk: canonicalBlk}, true)

	store := datastore.NewRegistry(nil)
	fs := filestore.New("primary", t.TempDir())
	require.NoError(t, fs.Init(context.Background()))
	store.Register(fs, true)

	tracker := &Tracker{
		ConfirmBlockDepth: 8,
		State:             s,
		Store:             store,
		Adapters:          adapters,
		Bus:               events.New(),
	}
	return tracker, store
}

func TestOnMessageProcessedEnqueuesBlockDepth(t *testing.T) {
	tracker, _ := newTestTracker(t, 92)
	tracker.Subscribe()

	tracker.Bus.Publish(events.MessageProcessed, &message.Message{MetaHeader: message.MetaHeader{
		Blockchain: "ethereum", TransactionHash: "tx1", BlockNumber: 92,
	}})

	entries := tracker.State.Queues().BlockDepths()
	require.Len(t, entries, 1)
	assert.Equal(t, "tx1", entries[0].TransactionHash)
}

func TestPollBelowThresholdUpdatesDepthWithoutConfirming(t *testing.T) {
	tracker, _ := newTestTracker(t, 99)
	tracker.State.Queues().UpsertBlockDepth(state.BlockDepthEntry{
		TransactionHash: "tx1", Blockchain: "ethereum", BlockNumber: 98,
	})

	tracker.poll(context.Background(), 8)

	entries := tracker.State.Queues().BlockDepths()
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(2), entries[0].BlockDepth)
	assert.False(t, entries[0].Confirmed)
}

func TestPollAtThresholdConfirmsAndUpdatesStore(t *testing.T) {
	tracker, store := newTestTracker(t, 50)
	primary, err := store.Primary()
	require.NoError(t, err)
	require.NoError(t, primary.StoreMessage(context.Background(), &message.Message{MetaHeader: message.MetaHeader{
		Blockchain: "ethereum", TransactionHash: "tx1", BlockNumber: 50,
	}}))

	tracker.State.Queues().UpsertBlockDepth(state.BlockDepthEntry{
		TransactionHash: "tx1", Blockchain: "ethereum", BlockNumber: 50,
	})

	tracker.poll(context.Background(), 8)

	entries := tracker.State.Queues().BlockDepths()
	assert.Len(t, entries, 0)

	msgs, err := primary.GetMessages(context.Background(), datastore.MessageFilter{TransactionHash: "tx1"})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].MetaHeader.Confirmed)
}

func TestPollDetectsReorgAndResetsDepth(t *testing.T) {
	tracker, _ := newTestTracker(t, 70) // canonical block differs from tracked 50
	tracker.State.Queues().UpsertBlockDepth(state.BlockDepthEntry{
		TransactionHash: "tx1", Blockchain: "ethereum", BlockNumber: 50,
	})

	tracker.poll(context.Background(), 8)

	entries := tracker.State.Queues().BlockDepths()
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(70), entries[0].BlockNumber)
	assert.Equal(t, uint64(0), entries[0].BlockDepth)
}
