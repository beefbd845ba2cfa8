// Package confirmation implements the Whiteflag confirmation tracker
// (spec §4.8): it watches messageProcessed events, tracks block depth for
// each pending message, and promotes them to confirmed once they clear the
// configured depth threshold. New to this repo — the teacher confirms a
// wallet transaction once and stops, it has no ongoing depth-tracking
// loop — built in the teacher's general background-worker style (a
// ticker-driven loop over a bounded queue, same shape as
// internal/blockchain.MemorySendStateStore's bookkeeping).
package confirmation

import (
	"context"
	"time"

	"github.com/whiteflagprotocol/wfrelay/internal/blockchain"
	"github.com/whiteflagprotocol/wfrelay/internal/datastore"
	"github.com/whiteflagprotocol/wfrelay/internal/events"
	"github.com/whiteflagprotocol/wfrelay/internal/logging"
	"github.com/whiteflagprotocol/wfrelay/internal/message"
	"github.com/whiteflagprotocol/wfrelay/internal/state"
)

const (
	// DefaultInterval is the tracker's default polling period (spec §4.8).
	DefaultInterval = 10 * time.Second
	// DefaultConfirmBlockDepth is the default depth at which a message is
	// promoted to confirmed (spec §4.8).
	DefaultConfirmBlockDepth = 8
)

// Tracker polls pending sends/receives for block-depth progress and
// promotes them to confirmed once they clear ConfirmBlockDepth.
type Tracker struct {
	Interval          time.Duration
	ConfirmBlockDepth uint64
	UpdateEachBlock   bool

	State    *state.State
	Store    *datastore.Registry
	Adapters *blockchain.Registry
	Bus      *events.Bus
	Log      *logging.Logger
}

// highestBlock returns the cached tip height for blockchainName, as last
// reported by its adapter via state.SetHighestBlock.
func (t *Tracker) highestBlock(blockchainName string) (uint64, bool) {
	bc := t.State.GetBlockchainData(blockchainName)
	if bc == nil {
		return 0, false
	}
	return bc.Status.HighestBlock, true
}

// Subscribe wires the tracker to both channels' messageProcessed event, as
// spec §4.8 requires.
func (t *Tracker) Subscribe() {
	t.Bus.Subscribe(events.MessageProcessed, t.onMessageProcessed)
}

func (t *Tracker) onMessageProcessed(msg *message.Message) {
	if msg.MetaHeader.BlockNumber == 0 {
		return
	}
	if _, err := t.Adapters.Get(msg.MetaHeader.Blockchain); err != nil {
		return
	}
	t.State.Queues().UpsertBlockDepth(state.BlockDepthEntry{
		TransactionHash: msg.MetaHeader.TransactionHash,
		Blockchain:      msg.MetaHeader.Blockchain,
		BlockNumber:     msg.MetaHeader.BlockNumber,
		BlockDepth:      0,
		Confirmed:       false,
		Direction:       string(msg.MetaHeader.TransceiveDirection),
	})
}

// Run polls the queue on Interval until ctx is cancelled. It also prunes,
// once at startup, any entries for unknown or disabled blockchains (spec
// §4.8).
func (t *Tracker) Run(ctx context.Context) {
	t.pruneDisabled()

	interval := t.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	confirmDepth := t.ConfirmBlockDepth
	if confirmDepth == 0 {
		confirmDepth = DefaultConfirmBlockDepth
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.poll(ctx, confirmDepth)
		}
	}
}

func (t *Tracker) pruneDisabled() {
	for _, entry := range t.State.Queues().BlockDepths() {
		if _, err := t.Adapters.Get(entry.Blockchain); err != nil {
			t.State.Queues().RemoveBlockDepth(entry.TransactionHash)
		}
	}
}

func (t *Tracker) poll(ctx context.Context, confirmDepth uint64) {
	for _, entry := range t.State.Queues().BlockDepths() {
		highest, ok := t.highestBlock(entry.Blockchain)
		if !ok {
			continue
		}

		depth := uint64(0)
		if highest > entry.BlockNumber {
			depth = highest - entry.BlockNumber
		}
		if depth == entry.BlockDepth {
			continue
		}
		entry.BlockDepth = depth

		if depth < confirmDepth {
			t.State.Queues().UpsertBlockDepth(entry)
			if t.UpdateEachBlock {
				t.emitUpdated(entry)
			}
			continue
		}
		t.finalize(ctx, entry)
	}
}

func (t *Tracker) finalize(ctx context.Context, entry state.BlockDepthEntry) {
	adapter, err := t.Adapters.Get(entry.Blockchain)
	if err != nil {
		t.State.Queues().RemoveBlockDepth(entry.TransactionHash)
		return
	}

	_, canonicalBlock, err := adapter.GetMessage(ctx, entry.TransactionHash)
	if err != nil {
		if t.Log != nil {
			t.Log.Errorf("confirmation: re-query %s on %s failed: %v", entry.TransactionHash, entry.Blockchain, err)
		}
		return
	}
	if canonicalBlock != entry.BlockNumber {
		entry.BlockNumber = canonicalBlock
		entry.BlockDepth = 0
		t.State.Queues().UpsertBlockDepth(entry)
		return
	}

	entry.Confirmed = true
	t.State.Queues().UpsertBlockDepth(entry)

	primary, err := t.Store.Primary()
	if err != nil {
		return
	}
	msgs, err := primary.GetMessages(ctx, datastore.MessageFilter{
		TransactionHash: entry.TransactionHash, Blockchain: entry.Blockchain,
	})
	if err != nil || len(msgs) == 0 {
		return
	}
	msg := msgs[0]
	msg.MetaHeader.Confirmed = true
	msg.MetaHeader.BlockDepth = entry.BlockDepth
	if err := primary.StoreMessage(ctx, msg); err != nil {
		return
	}
	t.Bus.Publish(events.MessageUpdated, msg)
	t.State.Queues().RemoveBlockDepth(entry.TransactionHash)
}

func (t *Tracker) emitUpdated(entry state.BlockDepthEntry) {
	t.Bus.Publish(events.MessageUpdated, &message.Message{MetaHeader: message.MetaHeader{
		TransactionHash: entry.TransactionHash,
		Blockchain:      entry.Blockchain,
		BlockNumber:     entry.BlockNumber,
		BlockDepth:      entry.BlockDepth,
		Confirmed:       entry.Confirmed,
	}})
}
