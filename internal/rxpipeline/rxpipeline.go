// Package rxpipeline implements the incoming message chain (spec §4.5):
// verify-metadata, decode (with rate-limited decryption key search),
// verify-originator, verify-reference, complete. New to this repo — built
// as an explicit ordered list of stage functions, the same shape as
// internal/txpipeline, wired against internal/codec, internal/wfcrypto,
// internal/auth, internal/reference and internal/ratelimit.
package rxpipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/whiteflagprotocol/wfrelay/internal/auth"
	"github.com/whiteflagprotocol/wfrelay/internal/codec"
	"github.com/whiteflagprotocol/wfrelay/internal/events"
	"github.com/whiteflagprotocol/wfrelay/internal/logging"
	"github.com/whiteflagprotocol/wfrelay/internal/message"
	"github.com/whiteflagprotocol/wfrelay/internal/metrics"
	"github.com/whiteflagprotocol/wfrelay/internal/ratelimit"
	"github.com/whiteflagprotocol/wfrelay/internal/reference"
	"github.com/whiteflagprotocol/wfrelay/internal/state"
	"github.com/whiteflagprotocol/wfrelay/internal/werrors"
	"github.com/whiteflagprotocol/wfrelay/internal/wfcrypto"
)

// Config holds the per-deployment toggles the rx pipeline branches on.
type Config struct {
	ReferenceCheckEnabled bool
	AuthCheckEnabled      bool
	MaxKeySearchAttempts  int
	KeySearchWindow       time.Duration
}

// DefaultMaxKeySearchAttempts and DefaultKeySearchWindow bound the cost of
// a flood of unauthenticatable messages trying every known key (spec §4.5).
const (
	DefaultMaxKeySearchAttempts = 5
	DefaultKeySearchWindow      = time.Minute
)

// IVLocator resolves the out-of-band IV paired with an encrypted message,
// typically via a prior K-type message (spec §4.2).
type IVLocator func(blockchain, originator, recipient string) ([]byte, bool)

// DecryptFunc mirrors wfcrypto.Decrypt's shape so tests can stub it.
type DecryptFunc func(req wfcrypto.DecryptRequest) ([]byte, error)

// Pipeline runs the five rx stages over a single raw message at a time.
type Pipeline struct {
	Config  Config
	Keys    *state.Keyring
	Locate  IVLocator
	Decrypt DecryptFunc
	Limiter *ratelimit.Limiter
	Auth    *auth.Authenticator
	Policy  *reference.Policy
	Lookup  reference.Lookup
	Bus     *events.Bus
	Log     *logging.Logger
	Metrics metrics.RelayMetrics
}

// Run decodes raw (the adapter-fetched on-chain bytes) and drives the
// resulting message through the remaining rx stages.
func (p *Pipeline) Run(raw []byte, blockchainName, originatorAddress, recipientAddress, txHash string, blockNumber uint64) (*message.Message, error) {
	msg := p.verifyMetadata(blockchainName, originatorAddress, recipientAddress, txHash, blockNumber)

	if err := p.decode(msg, raw); err != nil {
		return msg, err
	}
	if err := p.verifyOriginator(msg); err != nil {
		msg.MetaHeader.AddValidationError(err.Error())
	}
	if err := p.verifyReference(msg); err != nil {
		msg.MetaHeader.AddValidationError(err.Error())
	}
	p.complete(msg)
	return msg, nil
}

func (p *Pipeline) verifyMetadata(blockchainName, originatorAddress, recipientAddress, txHash string, blockNumber uint64) *message.Message {
	msg := &message.Message{
		MetaHeader: message.MetaHeader{
			Blockchain:          strings.ToLower(blockchainName),
			OriginatorAddress:   originatorAddress,
			RecipientAddress:    recipientAddress,
			TransactionHash:     strings.ToLower(strings.TrimPrefix(txHash, "0x")),
			BlockNumber:         blockNumber,
			TransactionTime:     time.Now(),
			TransceiveDirection: message.RX,
		},
	}
	p.Bus.Publish(events.MetadataVerified, msg)
	return msg
}

// decode first reads only the cleartext prefix (Prefix/Version/
// EncryptionIndicator) to learn whether the rest of the header is
// encrypted — the duress/code/referenceIndicator/referencedMessage bytes
// that follow are themselves ciphertext when EncryptionIndicator != "0"
// and cannot be parsed as a header until decrypted (spec §4.1/§4.2).
func (p *Pipeline) decode(msg *message.Message, raw []byte) error {
	start := time.Now()
	hdr, ciphertext, err := codec.DecodeEncryptedBody(raw)
	if err != nil {
		p.recordDecode(msg, start, err)
		return err
	}
	msg.MessageHeader = hdr
	msg.MetaHeader.FormatValid = true

	if hdr.EncryptionIndicator == "0" {
		fullHdr, body, _, err := codec.Decode(raw)
		if err != nil {
			p.recordDecode(msg, start, err)
			return err
		}
		msg.MessageHeader = fullHdr
		p.recordDecode(msg, start, nil)
		msg.MessageBody = body
		p.Bus.Publish(events.MessageDecoded, msg)
		return nil
	}

	err = p.decryptWithKeySearch(msg, ciphertext)
	p.recordDecode(msg, start, err)
	return err
}

func (p *Pipeline) recordDecode(msg *message.Message, start time.Time, err error) {
	if p.Metrics == nil {
		return
	}
	p.Metrics.RecordMessageDecode(msg.MetaHeader.Blockchain, time.Since(start), err == nil)
}

// decryptWithKeySearch resolves the IV out-of-band, then attempts
// decryption, rate-limiting failed attempts per originator/recipient pair
// to bound the cost of a flood of unauthenticatable messages (spec §4.5).
// ciphertext is the byte-aligned body remaining after the cleartext header.
func (p *Pipeline) decryptWithKeySearch(msg *message.Message, ciphertext []byte) error {
	key := msg.MetaHeader.Blockchain + ":" + msg.MetaHeader.OriginatorAddress + ":" + msg.MetaHeader.RecipientAddress

	if p.Limiter != nil && !p.Limiter.Allow(key) {
		return werrors.NewProcessingError(werrors.CodeNotAllowed, fmt.Sprintf(
			"key search rate-limited for %q, try again later", key))
	}

	iv, ok := p.Locate(msg.MetaHeader.Blockchain, msg.MetaHeader.OriginatorAddress, msg.MetaHeader.RecipientAddress)
	if !ok {
		return werrors.NewProcessingError(werrors.CodeEncryption, "no initialisation vector available for encrypted message")
	}
	msg.MetaHeader.EncryptionInitVector = fmt.Sprintf("%x", iv)

	plaintext, err := p.Decrypt(wfcrypto.DecryptRequest{
		Method:     wfcrypto.Method(msg.MessageHeader.EncryptionIndicator[0]),
		Keys:       p.Keys,
		Blockchain: msg.MetaHeader.Blockchain,
		Originator: msg.MetaHeader.OriginatorAddress,
		Recipient:  msg.MetaHeader.RecipientAddress,
		IV:         iv,
		Ciphertext: ciphertext,
	})
	if err != nil {
		return werrors.NewProcessingError(werrors.CodeEncryption, "decrypt message").WithCause(err)
	}
	if p.Limiter != nil {
		p.Limiter.Reset(key)
	}

	// The duress indicator, message code, reference indicator and
	// referenced message were themselves encrypted; only now, with
	// plaintext in hand, can the rest of the header be parsed (spec §4.2).
	hdr, body, err := codec.DecodeDecryptedBody(msg.MessageHeader, plaintext)
	if err != nil {
		return err
	}
	msg.MessageHeader = hdr
	msg.MessageBody = body
	p.Bus.Publish(events.MessageDecoded, msg)
	return nil
}

func (p *Pipeline) verifyOriginator(msg *message.Message) error {
	if !p.Config.AuthCheckEnabled || p.Auth == nil {
		return nil
	}

	ok, err := p.Auth.VerifyOriginator(context.Background(), msg)
	if err != nil {
		if p.Log != nil {
			p.Log.Warn("rx: originator verification failed", map[string]any{"error": err.Error()})
		}
		return nil
	}
	msg.MetaHeader.OriginatorValid = ok
	if ok {
		p.Bus.Publish(events.OriginatorUpdated, msg)
	}
	return nil
}

func (p *Pipeline) verifyReference(msg *message.Message) error {
	if !p.Config.ReferenceCheckEnabled {
		p.Bus.Publish(events.ReferenceSkipped, msg)
		return nil
	}
	err := reference.Validate(msg, p.Policy, p.Lookup)
	if err != nil && werrors.IsProtocol(err) {
		return err
	}
	if err != nil && p.Log != nil {
		p.Log.Warn("rx: reference lookup failed, continuing", map[string]any{"error": err.Error()})
	}
	return nil
}

func (p *Pipeline) complete(msg *message.Message) {
	p.Bus.Publish(events.MessageProcessed, msg)
}
