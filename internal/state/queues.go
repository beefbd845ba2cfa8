package state

import "sync"

// Queue names the two working queues (spec §3).
type Queue string

const (
	QueueBlockDepths Queue = "blockDepths"
	QueueInitVectors Queue = "initVectors"
)

// Entry is a generic queue record. Concrete queues use it as a loosely
// typed map so upsertQueueData's "equality on entry[keyField]" contract
// (spec §4.3) can be implemented once and reused by both queues; typed
// accessors (BlockDepthEntry, IVEntry) sit on top for ergonomic use.
type Entry map[string]any

// Queues holds the blockDepths and initVectors working queues. Mutations
// are atomic per (queue, keyField, value) as required by spec §5.
type Queues struct {
	mu       sync.Mutex
	data     map[Queue][]Entry
	onChange func()
}

func newQueues() *Queues {
	return &Queues{data: map[Queue][]Entry{
		QueueBlockDepths: {},
		QueueInitVectors: {},
	}}
}

func (q *Queues) setOnChange(fn func()) {
	q.mu.Lock()
	q.onChange = fn
	q.mu.Unlock()
}

func (q *Queues) notify() {
	q.mu.Lock()
	fn := q.onChange
	q.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Upsert inserts or replaces the entry whose entry[keyField] equals the new
// entry's value for that field.
func (q *Queues) Upsert(queue Queue, keyField string, entry Entry) {
	key := entry[keyField]

	q.mu.Lock()
	entries := q.data[queue]
	replaced := false
	for i := range entries {
		if entries[i][keyField] == key {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	q.data[queue] = entries
	q.mu.Unlock()
	q.notify()
}

// Get returns a snapshot list of a queue's entries.
func (q *Queues) Get(queue Queue) []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Entry(nil), q.data[queue]...)
}

// Find returns the first entry for which entry[keyField] == value, or nil.
func (q *Queues) Find(queue Queue, keyField string, value any) Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.data[queue] {
		if e[keyField] == value {
			return e
		}
	}
	return nil
}

// Remove deletes the entry for which entry[keyField] == value. Idempotent.
func (q *Queues) Remove(queue Queue, keyField string, value any) {
	q.mu.Lock()
	entries := q.data[queue]
	out := entries[:0]
	for _, e := range entries {
		if e[keyField] != value {
			out = append(out, e)
		}
	}
	q.data[queue] = out
	q.mu.Unlock()
	q.notify()
}

// --- Typed views over the blockDepths queue ---

// BlockDepthEntry tracks one outgoing/incoming message awaiting confirmation
// (spec §4.8).
type BlockDepthEntry struct {
	TransactionHash string
	Blockchain      string
	BlockNumber     uint64
	BlockDepth      uint64
	Confirmed       bool
	Direction       string // "TX" or "RX", copied from the message; the tracker publishes messageUpdated on the one bus regardless of it
}

func (e BlockDepthEntry) toEntry() Entry {
	return Entry{
		"transactionHash": e.TransactionHash,
		"blockchain":      e.Blockchain,
		"blockNumber":     e.BlockNumber,
		"blockDepth":      e.BlockDepth,
		"confirmed":       e.Confirmed,
		"direction":       e.Direction,
	}
}

func blockDepthFromEntry(e Entry) BlockDepthEntry {
	bd := BlockDepthEntry{}
	if v, ok := e["transactionHash"].(string); ok {
		bd.TransactionHash = v
	}
	if v, ok := e["blockchain"].(string); ok {
		bd.Blockchain = v
	}
	if v, ok := e["blockNumber"].(uint64); ok {
		bd.BlockNumber = v
	}
	if v, ok := e["blockDepth"].(uint64); ok {
		bd.BlockDepth = v
	}
	if v, ok := e["confirmed"].(bool); ok {
		bd.Confirmed = v
	}
	if v, ok := e["direction"].(string); ok {
		bd.Direction = v
	}
	return bd
}

// UpsertBlockDepth upserts a confirmation-tracking entry keyed by
// transactionHash.
func (q *Queues) UpsertBlockDepth(e BlockDepthEntry) {
	q.Upsert(QueueBlockDepths, "transactionHash", e.toEntry())
}

// BlockDepths returns a typed snapshot of the blockDepths queue.
func (q *Queues) BlockDepths() []BlockDepthEntry {
	raw := q.Get(QueueBlockDepths)
	out := make([]BlockDepthEntry, len(raw))
	for i, e := range raw {
		out[i] = blockDepthFromEntry(e)
	}
	return out
}

// RemoveBlockDepth removes the entry for a given transaction hash.
func (q *Queues) RemoveBlockDepth(transactionHash string) {
	q.Remove(QueueBlockDepths, "transactionHash", transactionHash)
}

// --- Typed views over the initVectors queue ---

// IVEntry caches an initialisation vector, keyed by the transaction hash of
// the encrypted message it belongs to (spec §4.2); it holds no ciphertext.
type IVEntry struct {
	ReferencedMessage string // transactionHash of the ciphertext this IV belongs to
	Blockchain        string
	InitVector        string // hex, 16 bytes
}

func (e IVEntry) toEntry() Entry {
	return Entry{
		"referencedMessage": e.ReferencedMessage,
		"blockchain":        e.Blockchain,
		"initVector":        e.InitVector,
	}
}

func ivFromEntry(e Entry) IVEntry {
	iv := IVEntry{}
	if v, ok := e["referencedMessage"].(string); ok {
		iv.ReferencedMessage = v
	}
	if v, ok := e["blockchain"].(string); ok {
		iv.Blockchain = v
	}
	if v, ok := e["initVector"].(string); ok {
		iv.InitVector = v
	}
	return iv
}

// UpsertIV caches an IV (or the pending ciphertext's reference), keyed by
// referencedMessage (spec §9 "IV-before-ciphertext arrival").
func (q *Queues) UpsertIV(e IVEntry) {
	q.Upsert(QueueInitVectors, "referencedMessage", e.toEntry())
}

// FindIV looks up a cached IV entry by the referenced message hash.
func (q *Queues) FindIV(referencedMessage string) (IVEntry, bool) {
	e := q.Find(QueueInitVectors, "referencedMessage", referencedMessage)
	if e == nil {
		return IVEntry{}, false
	}
	return ivFromEntry(e), true
}

// RemoveIV removes a cached IV entry once it has been paired.
func (q *Queues) RemoveIV(referencedMessage string) {
	q.Remove(QueueInitVectors, "referencedMessage", referencedMessage)
}
