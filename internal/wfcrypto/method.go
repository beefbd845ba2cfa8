// Package wfcrypto implements Whiteflag message encryption (spec §4.2):
// method-indexed key derivation, AES-256-CTR, and ECDH key agreement over
// brainpoolP256r1. Every derived key and intermediate secret is zeroised via
// state.Zero after use, following the teacher's ClearBytes discipline
// (internal/services/crypto/memory.go).
package wfcrypto

import "github.com/whiteflagprotocol/wfrelay/internal/werrors"

// Method is the one-digit encryption method carried in the message header's
// EncryptionIndicator field.
type Method byte

const (
	MethodNone       Method = '0'
	MethodNegotiated Method = '1' // ECDH-negotiated AES-256-CTR
	MethodPresharedKey Method = '2' // pre-shared-key AES-256-CTR
)

// hkdfSalt returns the method's fixed HKDF salt (spec §4.2), or nil for
// MethodNone which performs no derivation.
func hkdfSalt(m Method) []byte {
	switch m {
	case MethodNegotiated:
		return negotiatedSalt
	case MethodPresharedKey:
		return presharedSalt
	}
	return nil
}

// Supported reports whether a method is implemented by this package.
// Methods 3-9 are reserved by the protocol and surface as a processing
// error rather than being silently treated as MethodNone.
func Supported(m Method) bool {
	switch m {
	case MethodNone, MethodNegotiated, MethodPresharedKey:
		return true
	}
	return false
}

func checkSupported(m Method) error {
	if !Supported(m) {
		return werrors.NewProcessingError(werrors.CodeFormat, "unsupported encryption method", string(m))
	}
	return nil
}
