// Package retrieval implements the unified message-lookup surface (spec
// §4.9): datastore-first queries with a blockchain-adapter fallback, a
// reference-chain lookup, and a BFS walk over a message's reference
// sequence. New to this repo — the teacher only ever reads its own
// wallet's transaction history, it has no cross-store/cross-adapter
// unified lookup — built on top of the already-grounded
// internal/datastore and internal/blockchain packages and
// internal/codec for on-demand decoding of adapter-fetched bytes.
package retrieval

import (
	"context"
	"fmt"

	"github.com/whiteflagprotocol/wfrelay/internal/blockchain"
	"github.com/whiteflagprotocol/wfrelay/internal/codec"
	"github.com/whiteflagprotocol/wfrelay/internal/datastore"
	"github.com/whiteflagprotocol/wfrelay/internal/events"
	"github.com/whiteflagprotocol/wfrelay/internal/message"
	"github.com/whiteflagprotocol/wfrelay/internal/werrors"
)

// Retrieval mediates every message lookup in the core.
type Retrieval struct {
	Store    *datastore.Registry
	Adapters *blockchain.Registry
	Bus      *events.Bus
}

// GetMessage implements spec §4.9's getMessage: query the primary
// datastore first; on a miss, with both blockchain and hash given, fetch
// and decode the raw transaction from the adapter.
func (r *Retrieval) GetMessage(ctx context.Context, hash, blockchainName string) ([]*message.Message, error) {
	primary, err := r.Store.Primary()
	if err != nil {
		return nil, werrors.NewPlainError("retrieval: no primary datastore", err)
	}

	found, err := primary.GetMessages(ctx, datastore.MessageFilter{TransactionHash: hash, Blockchain: blockchainName})
	if err != nil {
		return nil, werrors.NewPlainError("retrieval: datastore query failed", err)
	}
	if len(found) > 0 {
		return found, nil
	}
	if blockchainName == "" || hash == "" {
		return nil, nil
	}

	adapter, err := r.Adapters.Get(blockchainName)
	if err != nil {
		return nil, err
	}
	raw, blockNumber, err := adapter.GetMessage(ctx, hash)
	if err != nil {
		return nil, err
	}

	// Only the cleartext prefix can be parsed here; when the message is
	// encrypted the rest of the header is itself ciphertext and must wait
	// for the rx pipeline, which has the IV and key material to decrypt it
	// (spec §4.1/§4.2).
	prefixHdr, ciphertext, err := codec.DecodeEncryptedBody(raw)
	if err != nil {
		return nil, werrors.NewProtocolError(werrors.CodeFormat, "retrieval: decode adapter message failed").WithCause(err)
	}

	hdr, body := prefixHdr, message.MessageBody{}
	if prefixHdr.EncryptionIndicator == "0" {
		hdr, body, _, err = codec.Decode(raw)
		if err != nil {
			return nil, werrors.NewProtocolError(werrors.CodeFormat, "retrieval: decode adapter message failed").WithCause(err)
		}
	}
	_ = ciphertext // decryption, if required, happens in the rx pipeline once the IV is located

	msg := &message.Message{
		MetaHeader: message.MetaHeader{
			Blockchain:      blockchainName,
			TransactionHash: hash,
			BlockNumber:     blockNumber,
		},
		MessageHeader: hdr,
		MessageBody:   body,
	}

	r.Bus.Publish(events.MessageDecoded, msg)
	return []*message.Message{msg}, nil
}

// GetReferences implements spec §4.9's getReferences: a datastore-only
// query by ReferencedMessage.
func (r *Retrieval) GetReferences(ctx context.Context, hash, blockchainName string) ([]*message.Message, error) {
	primary, err := r.Store.Primary()
	if err != nil {
		return nil, werrors.NewPlainError("retrieval: no primary datastore", err)
	}
	return primary.GetMessages(ctx, datastore.MessageFilter{ReferencedMessage: hash, Blockchain: blockchainName})
}

// GetAuthMessages implements spec §4.9's getAuthMessages: a datastore
// query by originator address, where an empty result is itself a domain
// error (unlike GetMessage/GetReferences, which return empty slices).
func (r *Retrieval) GetAuthMessages(ctx context.Context, address, blockchainName string) ([]*message.Message, error) {
	primary, err := r.Store.Primary()
	if err != nil {
		return nil, werrors.NewPlainError("retrieval: no primary datastore", err)
	}
	found, err := primary.GetMessages(ctx, datastore.MessageFilter{OriginatorAddress: address, Blockchain: blockchainName})
	if err != nil {
		return nil, werrors.NewPlainError("retrieval: datastore query failed", err)
	}
	if len(found) == 0 {
		return nil, werrors.NewProcessingError(werrors.CodeNoData, fmt.Sprintf(
			"no authentication messages found for address %q on %q", address, blockchainName))
	}
	return found, nil
}

// GetSequence implements spec §4.9's getSequence: a breadth-first
// expansion seeded with the message at hash, repeatedly pulling every
// message that references a newly-included transaction, terminating when
// a pass adds nothing. Duplicate entries across passes are possible;
// downstream dedup is left to the caller, matching the spec's own
// documented TODO.
func (r *Retrieval) GetSequence(ctx context.Context, hash, blockchainName string) ([]*message.Message, error) {
	seed, err := r.GetMessage(ctx, hash, blockchainName)
	if err != nil {
		return nil, err
	}
	if len(seed) == 0 {
		return nil, nil
	}

	all := append([]*message.Message(nil), seed...)
	frontier := []string{hash}
	seen := map[string]bool{hash: true}

	for len(frontier) > 0 {
		var next []string
		for _, txHash := range frontier {
			refs, err := r.GetReferences(ctx, txHash, blockchainName)
			if err != nil {
				return nil, err
			}
			for _, ref := range refs {
				all = append(all, ref)
				if !seen[ref.MetaHeader.TransactionHash] {
					seen[ref.MetaHeader.TransactionHash] = true
					next = append(next, ref.MetaHeader.TransactionHash)
				}
			}
		}
		frontier = next
	}
	return all, nil
}
