package wfcrypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestECDHSharedSecretAgrees(t *testing.T) {
	alice, err := GenerateECDHKeyPair()
	require.NoError(t, err)
	bob, err := GenerateECDHKeyPair()
	require.NoError(t, err)

	aliceSecret := alice.SharedSecret(bob.X, bob.Y)
	bobSecret := bob.SharedSecret(alice.X, alice.Y)
	assert.Equal(t, aliceSecret, bobSecret)
	assert.Len(t, aliceSecret, 32)
}

func TestMarshalUnmarshalPublicRoundTrip(t *testing.T) {
	kp, err := GenerateECDHKeyPair()
	require.NoError(t, err)

	encoded := kp.MarshalPublic()
	x, y, err := UnmarshalPublic(encoded)
	require.NoError(t, err)
	assert.Equal(t, 0, kp.X.Cmp(x))
	assert.Equal(t, 0, kp.Y.Cmp(y))
}

func TestUnmarshalPublicRejectsGarbage(t *testing.T) {
	_, _, err := UnmarshalPublic([]byte{0x01, 0x02, 0x03})
	assert.Error(t, err)
}
