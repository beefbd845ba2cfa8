package wfcrypto

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/whiteflagprotocol/wfrelay/internal/werrors"
)

// ctrXOR runs AES-256-CTR over data starting at the given 16-byte counter
// block, matching crypto/cipher's NewCTR semantics (NIST SP 800-38A). The
// output is the same length as data; encrypt and decrypt are the same
// operation.
func ctrXOR(key, counter, data []byte) ([]byte, error) {
	if len(key) != 32 {
		return nil, werrors.NewProcessingError(werrors.CodeEncryption, "AES-256-CTR requires a 32-byte key")
	}
	if len(counter) != aes.BlockSize {
		return nil, werrors.NewProcessingError(werrors.CodeEncryption, "AES-CTR requires a 16-byte counter block")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, werrors.NewPlainError("aes.NewCipher", err)
	}
	stream := cipher.NewCTR(block, counter)
	out := make([]byte, len(data))
	stream.XORKeyStream(out, data)
	return out, nil
}

// encryptBody encrypts plaintext with key under iv as the initial counter
// block. The CTR keystream begins at the payload's first byte; the
// cleartext "WF1x" header prefix (spec §4.2) is never passed to this
// function — callers skip it before calling encryptBody/decryptBody.
func encryptBody(key, iv, plaintext []byte) ([]byte, error) {
	return ctrXOR(key, iv, plaintext)
}

// decryptBody is the same operation as encryptBody; CTR mode is symmetric.
func decryptBody(key, iv, ciphertext []byte) ([]byte, error) {
	return ctrXOR(key, iv, ciphertext)
}
