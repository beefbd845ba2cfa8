package wfcrypto

import (
	"github.com/whiteflagprotocol/wfrelay/internal/state"
	"github.com/whiteflagprotocol/wfrelay/internal/werrors"
)

// AddressResolver turns a blockchain account address into the binary
// address bytes used as HKDF info. Nothing in this repository implements or
// calls it: the blockchain adapters expose GetBinaryAddress(ctx, address),
// and Encrypt/Decrypt take the resolved bytes in OriginatorBinaryAddr, so
// wfcrypto never imports internal/blockchain (spec §4.10 keeps adapters
// pluggable).
type AddressResolver interface {
	BinaryAddress(blockchain, address string) ([]byte, error)
}

// keyCategory maps an encryption method to its keyring bucket.
func keyCategory(m Method) state.Category {
	if m == MethodNegotiated {
		return state.CategoryNegotiatedKeys
	}
	return state.CategoryPresharedKeys
}

// SelectEncryptIKM implements the tx-side IKM selection rule (spec §4.2):
// (a) a message-local encryptionKeyInput for method 2, else (b) the keyring
// entry for hash(blockchain‖originator‖recipient) [method 1] or
// hash(blockchain‖recipient‖originator) [method 2], else (c) the configured
// PSK for method 2, else NoKey.
func SelectEncryptIKM(m Method, keys *state.Keyring, blockchain, originator, recipient string, messageLocalKeyInput, configuredPSK []byte) ([]byte, error) {
	if m == MethodPresharedKey && len(messageLocalKeyInput) > 0 {
		return messageLocalKeyInput, nil
	}

	var id string
	switch m {
	case MethodNegotiated:
		id = keyringID(blockchain, originator, recipient)
	case MethodPresharedKey:
		id = keyringID(blockchain, recipient, originator)
	default:
		return nil, checkSupported(m)
	}

	if ikm := keys.GetKey(keyCategory(m), id); ikm != nil {
		return ikm, nil
	}
	if m == MethodPresharedKey && len(configuredPSK) > 0 {
		return configuredPSK, nil
	}
	return nil, werrors.NewProcessingError(werrors.CodeEncryption, "no key material available for encryption", blockchain, originator, recipient)
}

// SelectDecryptIKM implements the rx-side IKM selection rule: symmetric to
// SelectEncryptIKM but with the id order swapped, since the local node is
// now the recipient (spec §4.2).
func SelectDecryptIKM(m Method, keys *state.Keyring, blockchain, originator, recipient string, messageLocalKeyInput, configuredPSK []byte) ([]byte, error) {
	if m == MethodPresharedKey && len(messageLocalKeyInput) > 0 {
		return messageLocalKeyInput, nil
	}

	var id string
	switch m {
	case MethodNegotiated:
		id = keyringID(blockchain, recipient, originator)
	case MethodPresharedKey:
		id = keyringID(blockchain, originator, recipient)
	default:
		return nil, checkSupported(m)
	}

	if ikm := keys.GetKey(keyCategory(m), id); ikm != nil {
		return ikm, nil
	}
	if m == MethodPresharedKey && len(configuredPSK) > 0 {
		return configuredPSK, nil
	}
	return nil, werrors.NewProcessingError(werrors.CodeEncryption, "no key material available for decryption", blockchain, originator, recipient)
}
