package wfcrypto

import (
	"crypto/elliptic"
	"crypto/rand"
	"math/big"

	"github.com/ebfe/brainpool"

	"github.com/whiteflagprotocol/wfrelay/internal/werrors"
)

// curve is the brainpoolP256r1 curve used for method-1 ECDH negotiation
// (spec §4.2).
func curve() elliptic.Curve {
	return brainpool.P256r1()
}

// ECDHKeyPair is an ephemeral (or long-lived, for accounts) brainpoolP256r1
// key pair used to negotiate a shared secret for method-1 encryption.
type ECDHKeyPair struct {
	Private []byte // big-endian scalar
	X, Y    *big.Int
}

// GenerateECDHKeyPair creates a fresh brainpoolP256r1 key pair.
func GenerateECDHKeyPair() (*ECDHKeyPair, error) {
	priv, x, y, err := elliptic.GenerateKey(curve(), rand.Reader)
	if err != nil {
		return nil, werrors.NewPlainError("ecdh key generation", err)
	}
	return &ECDHKeyPair{Private: priv, X: x, Y: y}, nil
}

// MarshalPublic encodes the public point in uncompressed SEC1 form.
func (kp *ECDHKeyPair) MarshalPublic() []byte {
	return elliptic.Marshal(curve(), kp.X, kp.Y)
}

// UnmarshalPublic decodes an uncompressed SEC1 point on brainpoolP256r1.
func UnmarshalPublic(data []byte) (x, y *big.Int, err error) {
	x, y = elliptic.Unmarshal(curve(), data)
	if x == nil {
		return nil, nil, werrors.NewProcessingError(werrors.CodeEncryption, "invalid ECDH public key encoding")
	}
	return x, y, nil
}

// SharedSecret computes the ECDH shared secret (the x-coordinate of
// priv*peerPub, big-endian, fixed width) used as HKDF ikm for method 1.
func (kp *ECDHKeyPair) SharedSecret(peerX, peerY *big.Int) []byte {
	c := curve()
	sx, _ := c.ScalarMult(peerX, peerY, kp.Private)
	secret := sx.Bytes()

	byteLen := (c.Params().BitSize + 7) / 8
	if len(secret) == byteLen {
		return secret
	}
	padded := make([]byte, byteLen)
	copy(padded[byteLen-len(secret):], secret)
	return padded
}
