package wfcrypto

import (
	"crypto/rand"

	"github.com/whiteflagprotocol/wfrelay/internal/state"
	"github.com/whiteflagprotocol/wfrelay/internal/werrors"
)

// IVLength is the AES-CTR initial counter block size for methods 1 and 2.
const IVLength = 16

// EncryptRequest bundles everything Encrypt needs to derive a key and run
// AES-256-CTR over a message payload.
type EncryptRequest struct {
	Method                Method
	Keys                  *state.Keyring
	Blockchain            string
	Originator             string
	Recipient              string
	OriginatorBinaryAddr  []byte
	MessageLocalKeyInput  []byte // only honoured for method 2
	ConfiguredPSK         []byte
	Plaintext             []byte
}

// EncryptResult is the ciphertext plus the IV that must be transmitted
// out-of-band via a K-type message (spec §4.2).
type EncryptResult struct {
	IV         []byte
	Ciphertext []byte
}

// Encrypt runs the full tx-side crypto path: IKM selection, HKDF key
// derivation, fresh random IV, AES-256-CTR. Method 0 is a no-op that
// returns the plaintext unchanged with a nil IV.
func Encrypt(req EncryptRequest) (*EncryptResult, error) {
	if req.Method == MethodNone {
		return &EncryptResult{Ciphertext: req.Plaintext}, nil
	}

	ikm, err := SelectEncryptIKM(req.Method, req.Keys, req.Blockchain, req.Originator, req.Recipient, req.MessageLocalKeyInput, req.ConfiguredPSK)
	if err != nil {
		return nil, err
	}
	defer Zero(ikm)

	key, err := DeriveMessageKey(req.Method, ikm, req.OriginatorBinaryAddr)
	if err != nil {
		return nil, err
	}
	defer Zero(key)

	iv := make([]byte, IVLength)
	if _, err := rand.Read(iv); err != nil {
		return nil, werrors.NewPlainError("generate IV", err)
	}

	ciphertext, err := encryptBody(key, iv, req.Plaintext)
	if err != nil {
		return nil, err
	}
	return &EncryptResult{IV: iv, Ciphertext: ciphertext}, nil
}

// DecryptRequest bundles everything Decrypt needs. IV must already be known
// (out-of-band K-message paired, or present in the same transaction).
type DecryptRequest struct {
	Method                Method
	Keys                  *state.Keyring
	Blockchain            string
	Originator             string
	Recipient              string
	OriginatorBinaryAddr  []byte
	MessageLocalKeyInput  []byte
	ConfiguredPSK         []byte
	IV                    []byte
	Ciphertext            []byte
}

// Decrypt runs the full rx-side crypto path, symmetric to Encrypt.
func Decrypt(req DecryptRequest) ([]byte, error) {
	if req.Method == MethodNone {
		return req.Ciphertext, nil
	}
	if len(req.IV) != IVLength {
		return nil, werrors.NewProcessingError(werrors.CodeEncryption, "missing or malformed initialisation vector")
	}

	ikm, err := SelectDecryptIKM(req.Method, req.Keys, req.Blockchain, req.Originator, req.Recipient, req.MessageLocalKeyInput, req.ConfiguredPSK)
	if err != nil {
		return nil, err
	}
	defer Zero(ikm)

	key, err := DeriveMessageKey(req.Method, ikm, req.OriginatorBinaryAddr)
	if err != nil {
		return nil, err
	}
	defer Zero(key)

	return decryptBody(key, req.IV, req.Ciphertext)
}
