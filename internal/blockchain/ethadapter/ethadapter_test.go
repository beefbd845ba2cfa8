package ethadapter

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBinaryAddressDecodesHexAddress(t *testing.T) {
	a := &Adapter{name: "ethereum"}
	addr, err := a.GetBinaryAddress(context.Background(), "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	require.NoError(t, err) // 40 hex digits, a 20-byte address
	assert.Equal(t, "5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", hex.EncodeToString(addr))
}

func TestGetBinaryAddressAcceptsValidAddress(t *testing.T) {
	a := &Adapter{name: "ethereum"}
	addr, err := a.GetBinaryAddress(context.Background(), "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	require.NoError(t, err)
	assert.Len(t, addr, 20)
}

func TestGetBinaryAddressRejectsGarbage(t *testing.T) {
	a := &Adapter{name: "ethereum"}
	_, err := a.GetBinaryAddress(context.Background(), "not-an-address")
	require.Error(t, err)
}

func TestRequestSignatureNotImplemented(t *testing.T) {
	a := &Adapter{name: "ethereum"}
	_, err := a.RequestSignature(context.Background(), "0x0", nil)
	require.Error(t, err)
}
