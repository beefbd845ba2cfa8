// Package events implements the pub/sub hooks the tx/rx pipelines and the
// confirmation tracker publish to (spec §9: "keep the named events as
// observable hooks for external subscribers"). Subscribers are plain
// functions invoked synchronously, in registration order, on the
// publisher's goroutine.
package events

import (
	"sync"

	"github.com/whiteflagprotocol/wfrelay/internal/message"
)

// Name enumerates the named lifecycle events a subscriber can attach to.
type Name string

const (
	MessageProcessed  Name = "messageProcessed"
	MessageUpdated    Name = "messageUpdated"
	MessageDecoded    Name = "messageDecoded"
	MessageSent       Name = "messageSent"
	ReferenceSkipped  Name = "referenceSkipped"
	MetadataVerified  Name = "metadataVerified"
	OriginatorUpdated Name = "originatorUpdated"
)

// Handler receives the publisher's message pointer when the event fires;
// every handler for that event shares the same *message.Message.
type Handler func(msg *message.Message)

// Bus is a static, in-process registry of named-event subscribers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Name][]Handler
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[Name][]Handler)}
}

// Subscribe registers fn to run whenever name is published. Subscriptions
// are permanent for the process lifetime; there is no Unsubscribe, matching
// the protocol's static-registration design (spec §9).
func (b *Bus) Subscribe(name Name, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], fn)
}

// Publish invokes every handler registered for name, in registration order,
// on the caller's goroutine. A handler must not block indefinitely: doing
// so stalls the pipeline stage that published the event.
func (b *Bus) Publish(name Name, msg *message.Message) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[name]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
}
