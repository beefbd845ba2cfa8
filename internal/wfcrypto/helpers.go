package wfcrypto

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/whiteflagprotocol/wfrelay/internal/state"
)

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic("wfcrypto: invalid fixed hex constant: " + err.Error())
	}
	return b
}

// keyringID computes the id under which PSK/negotiated key material is
// stored: hash(blockchain‖addrA‖addrB, 12 bytes), hex-encoded (spec §3, §4.2).
func keyringID(blockchain, addrA, addrB string) string {
	sum := sha256.Sum256([]byte(blockchain + addrA + addrB))
	return hex.EncodeToString(sum[:12])
}

// Zero scrubs derived keys and intermediate secrets in place; re-exported
// from state so callers outside this module don't need to import both
// packages for one helper.
func Zero(b []byte) {
	state.Zero(b)
}
