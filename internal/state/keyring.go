package state

import (
	"runtime"
	"sync"
)

// Category names the four keyring buckets (spec §3).
type Category string

const (
	CategoryPresharedKeys  Category = "presharedKeys"
	CategoryNegotiatedKeys Category = "negotiatedKeys"
	CategoryECDHPrivate    Category = "ecdhPrivateKeys"
	CategoryAuthTokens     Category = "authTokens"
)

// Keyring holds opaque secret bytes per category/id (spec §4.3). Writes are
// serialised and removed entries are zeroised in place, matching the
// teacher's ClearBytes discipline (internal/services/crypto/memory.go).
type Keyring struct {
	mu       sync.Mutex
	entries  map[Category]map[string][]byte
	onChange func()
}

func newKeyring() *Keyring {
	return &Keyring{
		entries: map[Category]map[string][]byte{
			CategoryPresharedKeys:  {},
			CategoryNegotiatedKeys: {},
			CategoryECDHPrivate:    {},
			CategoryAuthTokens:     {},
		},
	}
}

func (k *Keyring) setOnChange(fn func()) {
	k.mu.Lock()
	k.onChange = fn
	k.mu.Unlock()
}

func (k *Keyring) notify() {
	k.mu.Lock()
	fn := k.onChange
	k.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// UpsertKey stores value under category/id, idempotently replacing any
// prior value (whose bytes are zeroised first).
func (k *Keyring) UpsertKey(category Category, id string, value []byte) {
	cp := make([]byte, len(value))
	copy(cp, value)

	k.mu.Lock()
	bucket := k.entries[category]
	if bucket == nil {
		bucket = map[string][]byte{}
		k.entries[category] = bucket
	}
	if old, ok := bucket[id]; ok {
		zero(old)
	}
	bucket[id] = cp
	k.mu.Unlock()
	k.notify()
}

// GetKey returns a copy of the stored secret, or nil if absent. The caller
// is responsible for zeroising the returned slice once done with it.
func (k *Keyring) GetKey(category Category, id string) []byte {
	k.mu.Lock()
	defer k.mu.Unlock()
	val, ok := k.entries[category][id]
	if !ok {
		return nil
	}
	cp := make([]byte, len(val))
	copy(cp, val)
	return cp
}

// RemoveKey deletes and zeroises the stored secret. Idempotent.
func (k *Keyring) RemoveKey(category Category, id string) {
	k.mu.Lock()
	bucket := k.entries[category]
	if bucket != nil {
		if old, ok := bucket[id]; ok {
			zero(old)
			delete(bucket, id)
		}
	}
	k.mu.Unlock()
	k.notify()
}

// zero overwrites b with zero bytes in place; runtime.KeepAlive prevents the
// compiler from eliding the writes as dead stores.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// Zero is the exported form of zero, used by callers outside this package
// (wfcrypto, pipelines) to scrub derived keys and IKM after use (spec §9
// "Key material lifetime").
func Zero(b []byte) {
	zero(b)
}
