package datastore

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/whiteflagprotocol/wfrelay/internal/events"
	"github.com/whiteflagprotocol/wfrelay/internal/logging"
	"github.com/whiteflagprotocol/wfrelay/internal/message"
)

// Registry dispatches to one-or-more named stores, designates exactly one
// primary (spec §4.10: "the first initialised-as-primary; later claimants
// are downgraded with a warning"), and wires non-primary stores as
// write-only mirrors subscribed to messageProcessed and messageUpdated. A
// store's configured rxStoreEvent/txStoreEvent lists are not consulted.
type Registry struct {
	mu      sync.RWMutex
	stores  map[string]Store
	primary string
	log     *logging.Logger
}

// NewRegistry returns an empty registry. log may be nil, in which case a
// discarding logger is used.
func NewRegistry(log *logging.Logger) *Registry {
	if log == nil {
		log = logging.New(io.Discard, logging.LevelError)
	}
	return &Registry{stores: make(map[string]Store), log: log}
}

// Register installs store under its name. wantPrimary requests primary
// status; the first caller to request it wins, later claimants are
// downgraded to mirrors with a logged warning.
func (r *Registry) Register(store Store, wantPrimary bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stores[store.Name()] = store
	if !wantPrimary {
		return
	}
	if r.primary == "" {
		r.primary = store.Name()
		return
	}
	r.log.Warn("datastore requested primary but one is already designated", map[string]any{
		"requested": store.Name(), "primary": r.primary,
	})
}

// Primary returns the designated primary store, or an error if none has
// been registered yet.
func (r *Registry) Primary() (Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.primary == "" {
		return nil, fmt.Errorf("datastore: no primary store registered")
	}
	return r.stores[r.primary], nil
}

// Get returns a specific store by name.
func (r *Registry) Get(name string) (Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[name]
	if !ok {
		return nil, fmt.Errorf("datastore: unknown store %q", name)
	}
	return s, nil
}

// InitAll initializes every registered store.
func (r *Registry) InitAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.stores {
		if err := s.Init(ctx); err != nil {
			return fmt.Errorf("datastore %q: %w", s.Name(), err)
		}
	}
	return nil
}

// CloseAll closes every registered store, collecting the first error but
// attempting to close all of them regardless.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var firstErr error
	for _, s := range r.stores {
		if err := s.Close(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("datastore %q: %w", s.Name(), err)
		}
	}
	return firstErr
}

// SubscribeMirror wires store to receive messageProcessed and
// messageUpdated events on bus. cmd/wfrelay calls it for every active
// store, the primary included; neither pipeline writes to a store directly.
func (r *Registry) SubscribeMirror(bus *events.Bus, store Store) {
	write := func(msg *message.Message) {
		if err := store.StoreMessage(context.Background(), msg); err != nil {
			r.log.Errorf("mirror %q failed to store message: %v", store.Name(), err)
		}
	}
	bus.Subscribe(events.MessageProcessed, write)
	bus.Subscribe(events.MessageUpdated, write)
}
