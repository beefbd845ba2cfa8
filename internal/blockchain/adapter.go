// Package blockchain defines the pluggable blockchain-adapter contract
// (spec §4.10), a static name-keyed registry, and the shared adapter error
// taxonomy. Modelled on the teacher's ChainAdapter interface
// (src/chainadapter/adapter.go), trimmed from a wallet's sign/broadcast
// surface to the relay's send/query/address-resolution surface.
package blockchain

import (
	"context"
	"time"
)

// Adapter is the unified interface every blockchain-specific implementation
// (Ethereum, Bitcoin, …) MUST implement.
//
// Contract Guarantees:
//   - All methods are idempotent (safe to retry).
//   - All methods return an *AdapterError for classification.
//   - Context cancellation aborts in-flight RPC calls.
//   - Thread-safe: concurrent calls from multiple pipeline goroutines are
//     expected.
type Adapter interface {
	// Name returns the adapter's configured name, matching the
	// blockchains[].name config entry that selected it.
	Name() string

	// SendMessage submits an encoded message as a transaction.
	//
	// Contract:
	//   - MUST return the transaction hash and the block number it landed
	//     in, or a pending/unknown block number of 0.
	//   - MUST be safe to call again after a Retryable error (the adapter
	//     or its txstate store is responsible for not double-spending).
	SendMessage(ctx context.Context, encoded []byte, from, to string) (txHash string, blockNumber uint64, err error)

	// GetMessage retrieves a previously sent/received transaction's raw
	// message bytes by hash.
	GetMessage(ctx context.Context, txHash string) (encoded []byte, blockNumber uint64, err error)

	// RequestSignature delegates detached-JWS signing to the account
	// holder (spec §4.7 tx-side authentication).
	RequestSignature(ctx context.Context, address string, payload []byte) (jws string, err error)

	// RequestKeys returns ECDH key material associated with a public key,
	// used to seed a negotiated (method 1) encryption session.
	RequestKeys(ctx context.Context, pubKeyHex string) (privateKey []byte, err error)

	// GetBinaryAddress converts a chain-native address string into the
	// binary form used as HKDF info (spec §4.2).
	GetBinaryAddress(ctx context.Context, address string) ([]byte, error)

	// HighestBlock returns the chain's current tip height, used by the
	// confirmation tracker to compute block depth.
	HighestBlock(ctx context.Context) (uint64, error)

	// CreateAccount provisions a new account, optionally from an existing
	// secret (e.g. an imported private key).
	CreateAccount(ctx context.Context, secret []byte) (address string, err error)

	// DeleteAccount removes an account the adapter no longer manages.
	DeleteAccount(ctx context.Context, address string) error
}

// Capabilities describes what an adapter supports, so callers can branch
// without a type switch on the concrete adapter.
type Capabilities struct {
	SupportsSignatures bool
	SupportsECDH       bool
	DefaultTimeout     time.Duration
}
