package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whiteflagprotocol/wfrelay/internal/message"
)

// TestUnencryptedAuthRoundTrip reproduces spec §8 scenario 1.
func TestUnencryptedAuthRoundTrip(t *testing.T) {
	msg := &message.Message{
		MessageHeader: message.MessageHeader{
			Prefix:              "WF",
			Version:             "1",
			EncryptionIndicator: "0",
			DuressIndicator:     "0",
			MessageCode:         "A",
			ReferenceIndicator:  "0",
			ReferencedMessage:   strings.Repeat("0", 64),
		},
		MessageBody: message.MessageBody{
			VerificationMethod: "1",
			VerificationData:   "https://example.org/authentication.json",
		},
	}

	raw, err := Encode(msg)
	require.NoError(t, err)

	hdr, body, needsIV, err := Decode(raw)
	require.NoError(t, err)
	assert.False(t, needsIV)
	assert.Equal(t, msg.MessageHeader, hdr)
	assert.Equal(t, msg.MessageBody, body)
}

// TestSignSignalRoundTrip reproduces spec §8 scenario 2.
func TestSignSignalRoundTrip(t *testing.T) {
	msg := &message.Message{
		MessageHeader: message.MessageHeader{
			Prefix:              "WF",
			Version:             "1",
			EncryptionIndicator: "0",
			DuressIndicator:     "0",
			MessageCode:         "P",
			ReferenceIndicator:  "0",
			ReferencedMessage:   strings.Repeat("0", 64),
		},
		MessageBody: message.MessageBody{
			SubjectCode:       "10",
			DateTime:          "2020-07-01T12:34:56Z",
			Duration:          "P00D01H30M",
			ObjectType:        "22",
			ObjectLatitude:    "+39.09350",
			ObjectLongitude:   "-122.34500",
			ObjectSizeDim1:    "0100",
			ObjectSizeDim2:    "0100",
			ObjectOrientation: "045",
		},
	}

	raw, err := Encode(msg)
	require.NoError(t, err)

	hdr, body, needsIV, err := Decode(raw)
	require.NoError(t, err)
	assert.False(t, needsIV)
	assert.Equal(t, msg.MessageHeader, hdr)
	assert.Equal(t, msg.MessageBody, body)
}

func TestDecodeRejectsBadPrefix(t *testing.T) {
	w := NewBitWriter()
	writeUTF8(w, "XX", 16)
	_, _, _, err := Decode(w.Bytes())
	assert.Error(t, err)
}

func TestDecodeFlagsEncryptedMessageNeedsIV(t *testing.T) {
	msg := &message.Message{
		MessageHeader: message.MessageHeader{
			Prefix:              "WF",
			Version:             "1",
			EncryptionIndicator: "2",
			DuressIndicator:     "0",
			MessageCode:         "F",
			ReferenceIndicator:  "0",
			ReferencedMessage:   strings.Repeat("0", 64),
		},
	}
	w := NewBitWriter()
	require.NoError(t, encodeHeader(w, msg.MessageHeader))

	hdr, _, needsIV, err := Decode(w.Bytes())
	require.NoError(t, err)
	assert.True(t, needsIV)
	assert.Equal(t, "2", hdr.EncryptionIndicator)
}

// TestEncryptedBodyRoundTrip exercises the real tx/rx encryption boundary:
// only bytes after ClearHeaderBytes are "encrypted" here (identity, since
// this package doesn't know about wfcrypto), the rest of the header
// (duress/code/referenceIndicator/referencedMessage) travels inside that
// encrypted region, and DecodeEncryptedBody/DecodeDecryptedBody must
// recover the original header and body from it.
func TestEncryptedBodyRoundTrip(t *testing.T) {
	msg := &message.Message{
		MessageHeader: message.MessageHeader{
			Prefix:              "WF",
			Version:             "1",
			EncryptionIndicator: "1",
			DuressIndicator:     "0",
			MessageCode:         "F",
			ReferenceIndicator:  "0",
			ReferencedMessage:   strings.Repeat("0", 64),
		},
		MessageBody: message.MessageBody{
			Text: "situation report: all quiet",
		},
	}

	raw, err := Encode(msg)
	require.NoError(t, err)

	cleartext := append([]byte{}, raw[:ClearHeaderBytes]...)
	wire := append(append([]byte{}, cleartext...), raw[ClearHeaderBytes:]...)

	hdr, ciphertext, err := DecodeEncryptedBody(wire)
	require.NoError(t, err)
	assert.Equal(t, "WF", hdr.Prefix)
	assert.Equal(t, "1", hdr.Version)
	assert.Equal(t, "1", hdr.EncryptionIndicator)
	assert.Equal(t, raw[ClearHeaderBytes:], ciphertext)

	decoded, body, err := DecodeDecryptedBody(hdr, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, msg.MessageHeader, decoded)
	assert.Equal(t, msg.MessageBody.Text, body.Text)
}

func TestQMessageRoundTripWithoutObjectTypeQuants(t *testing.T) {
	msg := &message.Message{
		MessageHeader: message.MessageHeader{
			Prefix:              "WF",
			Version:             "1",
			EncryptionIndicator: "0",
			DuressIndicator:     "0",
			MessageCode:         "Q",
			ReferenceIndicator:  "1",
			ReferencedMessage:   strings.Repeat("a", 64),
		},
		MessageBody: message.MessageBody{
			SubjectCode:       "20",
			DateTime:          "2021-01-01T00:00:00Z",
			Duration:          "P00D00H00M",
			ObjectType:        "10",
			ObjectLatitude:    "+00.00000",
			ObjectLongitude:   "+000.00000",
			ObjectSizeDim1:    "0000",
			ObjectSizeDim2:    "0000",
			ObjectOrientation: "000",
		},
	}

	raw, err := Encode(msg)
	require.NoError(t, err)

	hdr, body, _, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, msg.MessageHeader, hdr)
	assert.Empty(t, body.ObjectTypeQuants)
}

func TestFreeTextRoundTrip(t *testing.T) {
	msg := &message.Message{
		MessageHeader: message.MessageHeader{
			Prefix:              "WF",
			Version:             "1",
			EncryptionIndicator: "0",
			DuressIndicator:     "1",
			MessageCode:         "F",
			ReferenceIndicator:  "0",
			ReferencedMessage:   strings.Repeat("0", 64),
		},
		MessageBody: message.MessageBody{
			Text: "situation report: all quiet",
		},
	}

	raw, err := Encode(msg)
	require.NoError(t, err)

	hdr, body, _, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, msg.MessageHeader, hdr)
	assert.Equal(t, msg.MessageBody.Text, body.Text)
}
