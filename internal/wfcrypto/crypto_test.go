package wfcrypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whiteflagprotocol/wfrelay/internal/state"
)

func TestEncryptDecryptRoundTripMethodPreshared(t *testing.T) {
	s := state.New()
	psk := []byte("a shared secret known to both ends, 32+ bytes!!")
	// The tx and rx sides of a conversation index the same PSK under
	// direction-dependent ids (spec §3); a real deployment provisions both
	// ids on their respective nodes, so the test stores both to exercise
	// both lookup paths against one keyring.
	s.Keys().UpsertKey(state.CategoryPresharedKeys, keyringID("ethereum", "recipientAddr", "originatorAddr"), psk)
	s.Keys().UpsertKey(state.CategoryPresharedKeys, keyringID("ethereum", "originatorAddr", "recipientAddr"), psk)

	plaintext := []byte("WF1 sign/signal payload bytes go here")
	enc, err := Encrypt(EncryptRequest{
		Method:               MethodPresharedKey,
		Keys:                 s.Keys(),
		Blockchain:           "ethereum",
		Originator:           "originatorAddr",
		Recipient:            "recipientAddr",
		OriginatorBinaryAddr: []byte{0x01, 0x02, 0x03, 0x04},
		Plaintext:            plaintext,
	})
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, enc.Ciphertext)
	assert.Len(t, enc.IV, IVLength)

	got, err := Decrypt(DecryptRequest{
		Method:               MethodPresharedKey,
		Keys:                 s.Keys(),
		Blockchain:           "ethereum",
		Originator:           "originatorAddr",
		Recipient:            "recipientAddr",
		OriginatorBinaryAddr: []byte{0x01, 0x02, 0x03, 0x04},
		IV:                   enc.IV,
		Ciphertext:           enc.Ciphertext,
	})
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncryptDecryptRoundTripMethodNegotiated(t *testing.T) {
	s := state.New()
	secret := []byte("ecdh-derived-shared-secret-bytes")
	s.Keys().UpsertKey(state.CategoryNegotiatedKeys, keyringID("bitcoin", "originatorAddr", "recipientAddr"), secret)
	s.Keys().UpsertKey(state.CategoryNegotiatedKeys, keyringID("bitcoin", "recipientAddr", "originatorAddr"), secret)

	plaintext := []byte("another payload")
	enc, err := Encrypt(EncryptRequest{
		Method:               MethodNegotiated,
		Keys:                 s.Keys(),
		Blockchain:           "bitcoin",
		Originator:           "originatorAddr",
		Recipient:            "recipientAddr",
		OriginatorBinaryAddr: []byte{0xaa, 0xbb},
		Plaintext:            plaintext,
	})
	require.NoError(t, err)

	got, err := Decrypt(DecryptRequest{
		Method:               MethodNegotiated,
		Keys:                 s.Keys(),
		Blockchain:           "bitcoin",
		Originator:           "originatorAddr",
		Recipient:            "recipientAddr",
		OriginatorBinaryAddr: []byte{0xaa, 0xbb},
		IV:                   enc.IV,
		Ciphertext:           enc.Ciphertext,
	})
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncryptMethodNoneIsNoOp(t *testing.T) {
	plaintext := []byte("cleartext")
	enc, err := Encrypt(EncryptRequest{Method: MethodNone, Plaintext: plaintext})
	require.NoError(t, err)
	assert.Equal(t, plaintext, enc.Ciphertext)
	assert.Nil(t, enc.IV)
}

func TestDecryptMethodNoneIsNoOp(t *testing.T) {
	ciphertext := []byte("cleartext")
	got, err := Decrypt(DecryptRequest{Method: MethodNone, Ciphertext: ciphertext})
	require.NoError(t, err)
	assert.Equal(t, ciphertext, got)
}

func TestEncryptFailsWithoutKeyMaterial(t *testing.T) {
	s := state.New()
	_, err := Encrypt(EncryptRequest{
		Method:     MethodPresharedKey,
		Keys:       s.Keys(),
		Blockchain: "ethereum",
		Originator: "a",
		Recipient:  "b",
		Plaintext:  []byte("x"),
	})
	assert.Error(t, err)
}

func TestDecryptFailsOnMissingIV(t *testing.T) {
	s := state.New()
	s.Keys().UpsertKey(state.CategoryPresharedKeys, keyringID("eth", "a", "b"), []byte("k"))
	_, err := Decrypt(DecryptRequest{
		Method:     MethodPresharedKey,
		Keys:       s.Keys(),
		Blockchain: "eth",
		Originator: "b",
		Recipient:  "a",
		Ciphertext: []byte("c"),
	})
	assert.Error(t, err)
}

func TestKeyringIDOrderSwapDiffers(t *testing.T) {
	forward := keyringID("eth", "addrA", "addrB")
	reverse := keyringID("eth", "addrB", "addrA")
	assert.NotEqual(t, forward, reverse)
}
