package btcadapter

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBinaryAddressDecodesP2PKH(t *testing.T) {
	a := &Adapter{params: &chaincfg.MainNetParams}
	// well-known mainnet P2PKH address (Bitcoin genesis coinbase payout address)
	addr, err := a.GetBinaryAddress(nil, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa")
	require.NoError(t, err)
	assert.Len(t, addr, 20)
}

func TestGetBinaryAddressRejectsInvalidAddress(t *testing.T) {
	a := &Adapter{params: &chaincfg.MainNetParams}
	_, err := a.GetBinaryAddress(nil, "not-a-bitcoin-address")
	require.Error(t, err)
}

func TestExtractOpReturnRoundTrip(t *testing.T) {
	payload := []byte("WF1AKhello")
	script, err := txscript.NewScriptBuilder().AddOp(txscript.OP_RETURN).AddData(payload).Script()
	require.NoError(t, err)

	data, err := txscriptExtractOpReturn(script)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestExtractOpReturnRejectsNonOpReturnScript(t *testing.T) {
	script, err := txscript.NewScriptBuilder().AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160).Script()
	require.NoError(t, err)

	_, err = txscriptExtractOpReturn(script)
	require.Error(t, err)
}
