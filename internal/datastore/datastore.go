// Package datastore defines the pluggable message/state persistence
// contract (spec §4.10), a static name-keyed registry distinguishing the
// single primary store from write-only mirrors, and reference drivers.
// Modelled on the teacher's storage-adjacent interfaces
// (internal/services/storage, internal/services/wallet) generalized from
// a single wallet file to an arbitrary number of named stores.
package datastore

import (
	"context"

	"github.com/whiteflagprotocol/wfrelay/internal/message"
)

// Store is the contract every datastore driver MUST implement.
//
// Contract:
//   - Init/Close bracket the driver's lifetime; Init MAY be called once.
//   - StoreMessage/GetMessages/StoreState/GetState MUST be safe for
//     concurrent use.
//   - A non-primary Store is write-only in practice: the registry never
//     routes GetMessages/GetState to it, but nothing stops a caller from
//     calling it directly, so implementations still honor the full
//     contract.
type Store interface {
	Name() string
	Init(ctx context.Context) error
	Close(ctx context.Context) error

	// StoreMessage persists or updates a message record.
	StoreMessage(ctx context.Context, msg *message.Message) error

	// GetMessages returns every stored message matching a non-zero subset
	// of hash/blockchain/referencedMessage/originatorAddress filters.
	GetMessages(ctx context.Context, filter MessageFilter) ([]*message.Message, error)

	// StoreState persists an opaque, already-sealed state snapshot under
	// a logical key (the core treats the envelope format as opaque; see
	// internal/state.Seal).
	StoreState(ctx context.Context, key string, sealed []byte) error

	// GetState retrieves a previously stored sealed snapshot, or
	// (nil, nil) if none exists yet.
	GetState(ctx context.Context, key string) ([]byte, error)
}

// MessageFilter selects messages for GetMessages. Zero-value fields are
// ignored; at least one non-zero field SHOULD be set.
type MessageFilter struct {
	TransactionHash    string
	Blockchain         string
	ReferencedMessage  string
	OriginatorAddress  string
}
