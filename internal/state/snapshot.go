package state

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id + AES-256-GCM sealing parameters for snapshot-at-rest, following
// the teacher's EncryptMnemonic/DecryptMnemonic envelope
// (internal/services/crypto/encryption.go) applied here to the full state
// snapshot instead of a single mnemonic.
const (
	sealArgon2Time    = 4
	sealArgon2Memory  = 256 * 1024
	sealArgon2Threads = 4
	sealKeyLen        = 32
	sealSaltLen       = 16
	sealNonceLen      = 12
)

// Snapshot is the serialisable projection of State persisted by the primary
// datastore between restarts (spec §4.3 Lifecycle).
type Snapshot struct {
	Blockchains []Blockchain           `json:"blockchains"`
	Originators []Originator           `json:"originators"`
	Keys        map[Category][]keyItem `json:"keys"`
}

type keyItem struct {
	ID    string `json:"id"`
	Value []byte `json:"value"`
}

// Sealed is the at-rest envelope: Argon2id-derived AES-256-GCM over a
// JSON-encoded Snapshot.
type Sealed struct {
	Salt          []byte `json:"salt"`
	Nonce         []byte `json:"nonce"`
	Ciphertext    []byte `json:"ciphertext"`
	Argon2Time    uint32 `json:"argon2Time"`
	Argon2Memory  uint32 `json:"argon2Memory"`
	Argon2Threads uint8  `json:"argon2Threads"`
}

// Snapshot captures the current state for persistence. Private keys and
// keyring secrets are included verbatim; callers must seal the result before
// writing it anywhere.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	snap := Snapshot{}
	for _, bc := range s.blockchains {
		cp := *bc
		cp.Accounts = append([]Account(nil), bc.Accounts...)
		snap.Blockchains = append(snap.Blockchains, cp)
	}
	for _, o := range s.originators {
		snap.Originators = append(snap.Originators, *o)
	}
	s.mu.RUnlock()

	snap.Keys = s.keys.snapshot()
	return snap
}

// Restore replaces the blockchains and originators with those of a
// previously sealed-then-unsealed snapshot and adds the snapshot's keyring
// entries over the current ones. It does not fire OnChange.
func (s *State) Restore(snap Snapshot) {
	s.mu.Lock()
	s.blockchains = make(map[string]*Blockchain, len(snap.Blockchains))
	for _, bc := range snap.Blockchains {
		cp := bc
		s.blockchains[bc.Name] = &cp
	}
	s.originators = make(map[string]*Originator, len(snap.Originators))
	for _, o := range snap.Originators {
		cp := o
		s.originators[o.Address] = &cp
	}
	s.mu.Unlock()

	s.keys.restore(snap.Keys)
}

func (k *Keyring) snapshot() map[Category][]keyItem {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make(map[Category][]keyItem, len(k.entries))
	for cat, bucket := range k.entries {
		items := make([]keyItem, 0, len(bucket))
		for id, val := range bucket {
			cp := make([]byte, len(val))
			copy(cp, val)
			items = append(items, keyItem{ID: id, Value: cp})
		}
		out[cat] = items
	}
	return out
}

func (k *Keyring) restore(data map[Category][]keyItem) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for cat, items := range data {
		bucket := k.entries[cat]
		if bucket == nil {
			bucket = map[string][]byte{}
			k.entries[cat] = bucket
		}
		for _, item := range items {
			cp := make([]byte, len(item.Value))
			copy(cp, item.Value)
			bucket[item.ID] = cp
		}
	}
}

// Seal encrypts a Snapshot with a passphrase-derived key for storage by a
// datastore driver that has no transport-level encryption of its own.
func Seal(snap Snapshot, passphrase string) (*Sealed, error) {
	plaintext, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	defer zero(plaintext)

	salt := make([]byte, sealSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(passphrase), salt, sealArgon2Time, sealArgon2Memory, sealArgon2Threads, sealKeyLen)
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}

	nonce := make([]byte, sealNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	return &Sealed{
		Salt:          salt,
		Nonce:         nonce,
		Ciphertext:    ciphertext,
		Argon2Time:    sealArgon2Time,
		Argon2Memory:  sealArgon2Memory,
		Argon2Threads: sealArgon2Threads,
	}, nil
}

// Unseal reverses Seal, returning ErrSealAuth on a wrong passphrase or
// corrupted envelope.
func Unseal(sealed *Sealed, passphrase string) (Snapshot, error) {
	if sealed == nil {
		return Snapshot{}, fmt.Errorf("nil sealed snapshot")
	}
	key := argon2.IDKey([]byte(passphrase), sealed.Salt, sealed.Argon2Time, sealed.Argon2Memory, sealed.Argon2Threads, sealKeyLen)
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return Snapshot{}, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Snapshot{}, fmt.Errorf("new gcm: %w", err)
	}

	plaintext, err := gcm.Open(nil, sealed.Nonce, sealed.Ciphertext, nil)
	if err != nil {
		return Snapshot{}, ErrSealAuth
	}
	defer zero(plaintext)

	var snap Snapshot
	if err := json.Unmarshal(plaintext, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// ErrSealAuth is returned by Unseal when the passphrase is wrong or the
// envelope has been tampered with.
var ErrSealAuth = fmt.Errorf("snapshot authentication failed: wrong passphrase or corrupted data")
