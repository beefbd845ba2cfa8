// Package state holds the core's in-memory protocol state: blockchains,
// accounts, originators, keyring material, and the working queues (spec
// §4.3). All mutation goes through this package so it can serialise writes
// behind a single mutex, matching the spec's "a single actor or a mutex"
// requirement (§5).
package state

import (
	"math/big"
	"sync"
	"time"
)

// Account is a blockchain account held by this node (spec §3).
type Account struct {
	Address          string
	PublicKey        string
	PrivateKey       []byte // zeroised on removal; never logged
	TransactionCount uint64
	Balance          *big.Int
}

// BlockchainStatus mirrors the live state reported by a blockchain adapter.
type BlockchainStatus struct {
	HighestBlock uint64
	UpdatedAt    time.Time
}

// Blockchain is a configured, possibly-disabled blockchain and its accounts.
type Blockchain struct {
	Name     string
	Enabled  bool
	Status   BlockchainStatus
	Accounts []Account
}

// Originator is an identity bound to a blockchain address (spec §3).
type Originator struct {
	Name        string
	Address     string
	Blockchain  string
	AuthTokenID string
	PubKey      string
}

// State is the process-lifetime protocol state. All fields are guarded by
// mu; callers MUST use the accessor methods rather than reaching into the
// struct directly.
type State struct {
	mu          sync.RWMutex
	blockchains map[string]*Blockchain
	originators map[string]*Originator // keyed by address
	keys        *Keyring
	queues      *Queues

	onChange func() // checkpoint hook invoked after any mutation, set by the owner
}

// New creates an empty State. Load the primary datastore's persisted
// snapshot into it via Restore before serving traffic.
func New() *State {
	s := &State{
		blockchains: make(map[string]*Blockchain),
		originators: make(map[string]*Originator),
		keys:        newKeyring(),
		queues:      newQueues(),
	}
	s.keys.setOnChange(s.notify)
	s.queues.setOnChange(s.notify)
	return s
}

// OnChange registers a checkpoint hook invoked (synchronously, outside the
// lock) after every mutating call. The owner uses this to write a snapshot
// to the primary datastore (spec §4.3 Lifecycle).
func (s *State) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *State) notify() {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// UpsertBlockchain registers or replaces a blockchain's configuration
// envelope (name/enabled), preserving its existing status and accounts if
// any.
func (s *State) UpsertBlockchain(name string, enabled bool) {
	s.mu.Lock()
	bc, ok := s.blockchains[name]
	if !ok {
		bc = &Blockchain{Name: name}
		s.blockchains[name] = bc
	}
	bc.Enabled = enabled
	s.mu.Unlock()
	s.notify()
}

// GetBlockchainData returns the blockchain record or nil if unknown
// (spec §4.3 contract).
func (s *State) GetBlockchainData(name string) *Blockchain {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bc, ok := s.blockchains[name]
	if !ok {
		return nil
	}
	cp := *bc
	cp.Accounts = append([]Account(nil), bc.Accounts...)
	return &cp
}

// SetHighestBlock updates the highest known block height for a blockchain,
// as reported by the blockchain adapter.
func (s *State) SetHighestBlock(blockchain string, height uint64) {
	s.mu.Lock()
	bc, ok := s.blockchains[blockchain]
	if ok {
		bc.Status.HighestBlock = height
		bc.Status.UpdatedAt = time.Now()
	}
	s.mu.Unlock()
	if ok {
		s.notify()
	}
}

// ListBlockchains returns a snapshot of all configured blockchain names.
func (s *State) ListBlockchains() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.blockchains))
	for name := range s.blockchains {
		names = append(names, name)
	}
	return names
}

// UpsertAccount adds or replaces an account on a blockchain, matched by
// Address.
func (s *State) UpsertAccount(blockchain string, acc Account) {
	s.mu.Lock()
	bc, ok := s.blockchains[blockchain]
	if !ok {
		bc = &Blockchain{Name: blockchain, Enabled: true}
		s.blockchains[blockchain] = bc
	}
	replaced := false
	for i := range bc.Accounts {
		if bc.Accounts[i].Address == acc.Address {
			bc.Accounts[i] = acc
			replaced = true
			break
		}
	}
	if !replaced {
		bc.Accounts = append(bc.Accounts, acc)
	}
	s.mu.Unlock()
	s.notify()
}

// Accounts returns a snapshot of a blockchain's accounts.
func (s *State) Accounts(blockchain string) []Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bc, ok := s.blockchains[blockchain]
	if !ok {
		return nil
	}
	return append([]Account(nil), bc.Accounts...)
}

// UpsertOriginator adds or replaces an originator, keyed by address.
func (s *State) UpsertOriginator(o Originator) {
	s.mu.Lock()
	s.originators[o.Address] = &o
	s.mu.Unlock()
	s.notify()
}

// GetOriginator looks up an originator by address.
func (s *State) GetOriginator(address string) *Originator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.originators[address]
	if !ok {
		return nil
	}
	cp := *o
	return &cp
}

// GetOriginatorAuthToken performs the reverse lookup from an auth token id
// to its originator (spec §4.3 contract).
func (s *State) GetOriginatorAuthToken(authTokenID string) *Originator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.originators {
		if o.AuthTokenID == authTokenID {
			cp := *o
			return &cp
		}
	}
	return nil
}

// Keys returns the keyring. The keyring manages its own locking.
func (s *State) Keys() *Keyring {
	return s.keys
}

// Queues returns the working queues. The queues manage their own locking.
func (s *State) Queues() *Queues {
	return s.queues
}
