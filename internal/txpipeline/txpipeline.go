// Package txpipeline implements the outgoing message chain (spec §4.4):
// verify-metadata, verify-reference, encode, send, complete. New to this
// repo — the teacher's closest analogue is a wallet's single send-one-tx
// flow, not a five-stage cooperative chain — built as an explicit ordered
// list of stage functions per spec §9's redesign guidance ("model each
// pipeline as an explicit ordered list of stage functions with typed
// message-in/message-out and a single error sink; keep the named events
// as observable hooks").
package txpipeline

import (
	"context"
	"strings"
	"time"

	"github.com/whiteflagprotocol/wfrelay/internal/blockchain"
	"github.com/whiteflagprotocol/wfrelay/internal/codec"
	"github.com/whiteflagprotocol/wfrelay/internal/events"
	"github.com/whiteflagprotocol/wfrelay/internal/logging"
	"github.com/whiteflagprotocol/wfrelay/internal/message"
	"github.com/whiteflagprotocol/wfrelay/internal/metrics"
	"github.com/whiteflagprotocol/wfrelay/internal/reference"
	"github.com/whiteflagprotocol/wfrelay/internal/state"
	"github.com/whiteflagprotocol/wfrelay/internal/werrors"
	"github.com/whiteflagprotocol/wfrelay/internal/wfcrypto"
)

// Config holds the per-deployment toggles the tx pipeline branches on.
type Config struct {
	ReferenceCheckEnabled bool
	TestOnly              bool
}

// EncryptFunc mirrors wfcrypto.Encrypt's shape so tests can stub it
// without requiring a fully-wired IKM resolver.
type EncryptFunc func(req wfcrypto.EncryptRequest) (*wfcrypto.EncryptResult, error)

// Pipeline runs the five tx stages over a single message at a time;
// concurrent messages are independent (spec §4.4 ordering guarantee —
// callers are responsible for not re-entering the pipeline with the same
// message concurrently).
type Pipeline struct {
	Config    Config
	Policy    *reference.Policy
	Lookup    reference.Lookup
	Keys      *state.Keyring
	Encrypt   EncryptFunc
	Adapters  *blockchain.Registry
	SendState blockchain.SendStateStore
	Bus       *events.Bus
	Log       *logging.Logger
	Metrics   metrics.RelayMetrics
}

// Run drives msg through every stage, returning the first fatal error or
// nil on success. Non-fatal violations are recorded in
// msg.MetaHeader.ValidationErrors rather than returned.
func (p *Pipeline) Run(ctx context.Context, msg *message.Message) error {
	if err := p.verifyMetadata(msg); err != nil {
		return err
	}
	if err := p.verifyReference(msg); err != nil {
		return err
	}
	if err := p.encode(msg); err != nil {
		return err
	}
	if err := p.send(ctx, msg); err != nil {
		return err
	}
	p.complete(msg)
	return nil
}

func (p *Pipeline) verifyMetadata(msg *message.Message) error {
	if msg.MetaHeader.Blockchain == "" || msg.MetaHeader.OriginatorAddress == "" {
		return werrors.NewProcessingError(werrors.CodeMetaHeader, "tx message requires blockchain and originatorAddress")
	}
	msg.MetaHeader.TransceiveDirection = message.TX
	return nil
}

func (p *Pipeline) verifyReference(msg *message.Message) error {
	if !p.Config.ReferenceCheckEnabled || msg.MetaHeader.AutoGenerated {
		p.Bus.Publish(events.ReferenceSkipped, msg)
		return nil
	}

	err := reference.Validate(msg, p.Policy, p.Lookup)
	if err == nil {
		return nil
	}
	if werrors.IsProtocol(err) {
		return err
	}
	// Transient lookup failures are logged and skipped, not fatal.
	if p.Log != nil {
		p.Log.Warn("tx: reference lookup failed, continuing", map[string]any{"error": err.Error()})
	}
	msg.MetaHeader.AddValidationError(err.Error())
	return nil
}

func (p *Pipeline) encode(msg *message.Message) error {
	encoded, err := codec.Encode(msg)
	if err != nil {
		return err
	}

	if msg.MessageHeader.EncryptionIndicator != "0" {
		adapter, err := p.Adapters.Get(msg.MetaHeader.Blockchain)
		if err != nil {
			return err
		}
		originatorAddr, err := adapter.GetBinaryAddress(context.Background(), msg.MetaHeader.OriginatorAddress)
		if err != nil {
			return werrors.NewProcessingError(werrors.CodeEncryption, "resolve originator binary address").WithCause(err)
		}
		// Only bytes after the cleartext prefix (Prefix/Version/
		// EncryptionIndicator) are encrypted; the prefix stays cleartext
		// both ways (spec §4.1/§4.2).
		cleartext, rest := encoded[:codec.ClearHeaderBytes], encoded[codec.ClearHeaderBytes:]
		result, err := p.Encrypt(wfcrypto.EncryptRequest{
			Method:               wfcrypto.Method(msg.MessageHeader.EncryptionIndicator[0]),
			Keys:                 p.Keys,
			Blockchain:           msg.MetaHeader.Blockchain,
			Originator:           msg.MetaHeader.OriginatorAddress,
			Recipient:            msg.MetaHeader.RecipientAddress,
			OriginatorBinaryAddr: originatorAddr,
			MessageLocalKeyInput: msg.MetaHeader.EncryptionKeyInput,
			Plaintext:            rest,
		})
		if err != nil {
			return werrors.NewProcessingError(werrors.CodeEncryption, "encrypt message").WithCause(err)
		}
		encoded = append(append([]byte{}, cleartext...), result.Ciphertext...)
		msg.MetaHeader.EncryptionInitVector = hexEncode(result.IV)
	}

	msg.MetaHeader.EncodedMessage = hexEncode(encoded)
	return nil
}

func (p *Pipeline) send(ctx context.Context, msg *message.Message) error {
	if p.Config.TestOnly && message.Code(msg.MessageHeader.MessageCode[0]) != message.CodeTest {
		return werrors.NewProcessingError(werrors.CodeNotAllowed, "this deployment only accepts test messages")
	}

	adapter, err := p.Adapters.Get(msg.MetaHeader.Blockchain)
	if err != nil {
		return err
	}
	raw, err := hexDecode(msg.MetaHeader.EncodedMessage)
	if err != nil {
		return werrors.NewProcessingError(werrors.CodeFormat, "decode hex encodedMessage").WithCause(err)
	}

	start := time.Now()
	txHash, blockNumber, err := adapter.SendMessage(ctx, raw, msg.MetaHeader.OriginatorAddress, msg.MetaHeader.RecipientAddress)
	if p.Metrics != nil {
		p.Metrics.RecordMessageSend(msg.MetaHeader.Blockchain, time.Since(start), err == nil)
	}
	if err != nil {
		if msg.MetaHeader.AutoGenerated && !msg.MetaHeader.TransmissionSuccess {
			p.scheduleRetry(ctx, msg)
		}
		return err
	}

	msg.MetaHeader.TransactionHash = txHash
	msg.MetaHeader.BlockNumber = blockNumber
	msg.MetaHeader.TransmissionSuccess = true
	p.Bus.Publish(events.MessageSent, msg)
	return nil
}

// scheduleRetry implements spec §4.4's single-retry-after-20s rule for
// auto-generated sends, using blockchain.RetryDelay and SendStateStore for
// idempotency bookkeeping across the retry.
func (p *Pipeline) scheduleRetry(ctx context.Context, msg *message.Message) {
	if p.SendState == nil {
		return
	}
	id := msg.MetaHeader.Blockchain + ":" + msg.MetaHeader.OriginatorAddress + ":" + msg.MetaHeader.EncodedMessage
	existing, _ := p.SendState.Get(id)
	if existing != nil && existing.RetryCount > 0 {
		return // already retried once
	}

	now := time.Now()
	_ = p.SendState.Set(id, &blockchain.SendState{
		ID: id, Blockchain: msg.MetaHeader.Blockchain, RetryCount: 1,
		FirstSeen: now, LastRetry: now, Status: blockchain.SendPending,
	})

	go func() {
		timer := time.NewTimer(blockchain.RetryDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			_ = p.send(context.Background(), msg)
		}
	}()
}

func (p *Pipeline) complete(msg *message.Message) {
	p.Bus.Publish(events.MessageProcessed, msg)
}

func hexEncode(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0x0f]
	}
	return string(out)
}

func hexDecode(s string) ([]byte, error) {
	s = strings.ToLower(strings.TrimPrefix(s, "0x"))
	if len(s)%2 != 0 {
		return nil, werrors.NewProcessingError(werrors.CodeFormat, "odd-length hex string")
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		hi, err := hexNibble(s[i*2])
		if err != nil {
			return nil, err
		}
		lo, err := hexNibble(s[i*2+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	default:
		return 0, werrors.NewProcessingError(werrors.CodeFormat, "invalid hex digit")
	}
}
