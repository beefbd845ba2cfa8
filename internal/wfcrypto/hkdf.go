package wfcrypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/whiteflagprotocol/wfrelay/internal/werrors"
)

// deriveKey implements key = HKDF-SHA-256(ikm=secret, salt, info, L=32)
// (spec §4.2). The returned key must be zeroised by the caller once used.
func deriveKey(secret, salt, info []byte, length int) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, salt, info)
	key := make([]byte, length)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, werrors.NewPlainError("hkdf derive", err)
	}
	return key, nil
}

// DeriveMessageKey derives the 32-byte AES-256 key for method m given the
// IKM and the originator's binary address as HKDF info (spec §4.2).
func DeriveMessageKey(m Method, ikm, originatorBinaryAddress []byte) ([]byte, error) {
	if err := checkSupported(m); err != nil {
		return nil, err
	}
	if m == MethodNone {
		return nil, nil
	}
	return deriveKey(ikm, hkdfSalt(m), originatorBinaryAddress, 32)
}

// DeriveAuthToken implements spec §4.7's method-2 authenticator:
// tokenVerificationData = HKDF(authToken, authSalt, binaryAddress, 32).
func DeriveAuthToken(authToken, authSalt, binaryAddress []byte) ([]byte, error) {
	return deriveKey(authToken, authSalt, binaryAddress, 32)
}
