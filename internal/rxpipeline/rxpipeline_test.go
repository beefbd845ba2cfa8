package rxpipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whiteflagprotocol/wfrelay/internal/codec"
	"github.com/whiteflagprotocol/wfrelay/internal/events"
	"github.com/whiteflagprotocol/wfrelay/internal/message"
	"github.com/whiteflagprotocol/wfrelay/internal/ratelimit"
	"github.com/whiteflagprotocol/wfrelay/internal/wfcrypto"
)

const zeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

func testWireMessage(t *testing.T) []byte {
	msg := &message.Message{
		MessageHeader: message.MessageHeader{
			Prefix:              "WF",
			Version:             "1",
			EncryptionIndicator: "0",
			DuressIndicator:     "0",
			MessageCode:         "T",
			ReferenceIndicator:  "0",
			ReferencedMessage:   zeroHash[:64],
		},
		MessageBody: message.MessageBody{
			PseudoMessageCode: "F",
			PseudoBody:        &message.MessageBody{Text: "hi"},
		},
	}
	raw, err := codec.Encode(msg)
	require.NoError(t, err)
	return raw
}

func newTestPipeline() *Pipeline {
	return &Pipeline{
		Config: Config{ReferenceCheckEnabled: false, AuthCheckEnabled: false},
		Bus:    events.New(),
	}
}

func TestRunDecodesUnencryptedMessage(t *testing.T) {
	p := newTestPipeline()
	raw := testWireMessage(t)

	msg, err := p.Run(raw, "ethereum", "0xaaaa", "0xbbbb", "0xDEADBEEF", 10)
	require.NoError(t, err)
	assert.Equal(t, "T", msg.MessageHeader.MessageCode)
	assert.Equal(t, "deadbeef", msg.MetaHeader.TransactionHash)
	assert.Equal(t, message.RX, msg.MetaHeader.TransceiveDirection)
	assert.True(t, msg.MetaHeader.FormatValid)
}

func TestRunEmitsMessageProcessed(t *testing.T) {
	p := newTestPipeline()
	var processed *message.Message
	p.Bus.Subscribe(events.MessageProcessed, func(m *message.Message) { processed = m })

	raw := testWireMessage(t)
	_, err := p.Run(raw, "ethereum", "0xaaaa", "0xbbbb", "tx1", 5)
	require.NoError(t, err)
	require.NotNil(t, processed)
}

func TestRunRateLimitsRepeatedKeySearchFailures(t *testing.T) {
	p := newTestPipeline()
	p.Limiter = ratelimit.New(1, time.Minute)
	p.Locate = func(blockchain, originator, recipient string) ([]byte, bool) { return nil, false }
	p.Decrypt = func(req wfcrypto.DecryptRequest) ([]byte, error) { return nil, nil }

	msg := &message.Message{
		MessageHeader: message.MessageHeader{
			Prefix: "WF", Version: "1", EncryptionIndicator: "1", DuressIndicator: "0",
			MessageCode: "T", ReferenceIndicator: "0", ReferencedMessage: zeroHash[:64],
		},
		MessageBody: message.MessageBody{PseudoMessageCode: "F", PseudoBody: &message.MessageBody{Text: "hi"}},
	}
	raw, err := codec.Encode(msg)
	require.NoError(t, err)

	_, err1 := p.Run(raw, "ethereum", "0xaaaa", "0xbbbb", "tx1", 1)
	require.Error(t, err1)
	_, err2 := p.Run(raw, "ethereum", "0xaaaa", "0xbbbb", "tx2", 1)
	require.Error(t, err2)
}

// TestRunDecodesEncryptedMessageRoundTrip exercises the real tx/rx
// encryption boundary (spec §4.1/§4.2): decode must read only the first
// codec.ClearHeaderBytes as cleartext, hand everything else to Decrypt,
// and parse the rest of the header (duress/code/referenceIndicator/
// referencedMessage) from the decrypted plaintext rather than from raw.
func TestRunDecodesEncryptedMessageRoundTrip(t *testing.T) {
	p := newTestPipeline()
	p.Locate = func(blockchain, originator, recipient string) ([]byte, bool) { return []byte{1, 2, 3, 4}, true }
	p.Decrypt = func(req wfcrypto.DecryptRequest) ([]byte, error) { return req.Ciphertext, nil }

	msg := &message.Message{
		MessageHeader: message.MessageHeader{
			Prefix: "WF", Version: "1", EncryptionIndicator: "1", DuressIndicator: "0",
			MessageCode: "F", ReferenceIndicator: "0", ReferencedMessage: zeroHash[:64],
		},
		MessageBody: message.MessageBody{Text: "hello"},
	}
	raw, err := codec.Encode(msg)
	require.NoError(t, err)

	got, err := p.Run(raw, "ethereum", "0xaaaa", "0xbbbb", "tx1", 1)
	require.NoError(t, err)
	assert.Equal(t, "F", got.MessageHeader.MessageCode)
	assert.Equal(t, "0", got.MessageHeader.DuressIndicator)
	assert.Equal(t, zeroHash[:64], got.MessageHeader.ReferencedMessage)
	assert.Equal(t, "hello", got.MessageBody.Text)
}

func TestRunSkipsReferenceCheckWhenDisabled(t *testing.T) {
	p := newTestPipeline()
	var skipped bool
	p.Bus.Subscribe(events.ReferenceSkipped, func(m *message.Message) { skipped = true })

	raw := testWireMessage(t)
	_, err := p.Run(raw, "ethereum", "0xaaaa", "0xbbbb", "tx1", 1)
	require.NoError(t, err)
	assert.True(t, skipped)
}
