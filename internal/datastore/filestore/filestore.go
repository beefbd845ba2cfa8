// Package filestore implements datastore.Store as a directory holding one
// newline-delimited JSON message file plus one sealed-state file per key.
// Both writers go through Store.writeAtomic, a temp-file-then-rename step
// grounded on the teacher's AtomicWriteFile (internal/services/storage/
// file.go) — the relay's message log needs the same crash-safety as the
// wallet's secret files did.
package filestore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/whiteflagprotocol/wfrelay/internal/datastore"
	"github.com/whiteflagprotocol/wfrelay/internal/message"
)

// Store is an embedded, directory-backed datastore.Store.
type Store struct {
	name string
	dir  string

	mu       sync.RWMutex
	messages []*message.Message
}

// New returns a filestore rooted at dir. Init creates the directory and
// loads any existing messages.
func New(name, dir string) *Store {
	return &Store{name: name, dir: dir}
}

func (s *Store) Name() string { return s.name }

func (s *Store) messagesPath() string { return filepath.Join(s.dir, "messages.ndjson") }
func (s *Store) statePath(key string) string {
	return filepath.Join(s.dir, "state-"+key+".bin")
}

func (s *Store) Init(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("filestore: create directory: %w", err)
	}

	f, err := os.Open(s.messagesPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("filestore: open messages file: %w", err)
	}
	defer f.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		var msg message.Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			return fmt.Errorf("filestore: decode stored message: %w", err)
		}
		s.messages = append(s.messages, &msg)
	}
	return scanner.Err()
}

func (s *Store) Close(ctx context.Context) error { return nil }

// StoreMessage upserts by (Blockchain, TransactionHash) and rewrites the
// whole file atomically — simple and correct at the relay's expected
// message volumes; a high-throughput deployment would want an append log
// with periodic compaction instead.
func (s *Store) StoreMessage(ctx context.Context, msg *message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := false
	for i, existing := range s.messages {
		if existing.MetaHeader.Blockchain == msg.MetaHeader.Blockchain &&
			existing.MetaHeader.TransactionHash == msg.MetaHeader.TransactionHash {
			s.messages[i] = msg
			replaced = true
			break
		}
	}
	if !replaced {
		s.messages = append(s.messages, msg)
	}
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	var buf []byte
	for _, msg := range s.messages {
		encoded, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("filestore: encode message: %w", err)
		}
		buf = append(buf, encoded...)
		buf = append(buf, '\n')
	}
	return s.writeAtomic(s.messagesPath(), buf, 0600)
}

// writeAtomic persists data to path via a sibling temp file and rename, so
// a crash mid-write can never leave messages.ndjson or a sealed state file
// truncated. s.dir is assumed to already exist (Init creates it).
func (s *Store) writeAtomic(path string, data []byte, perm os.FileMode) (err error) {
	tmp, err := os.CreateTemp(s.dir, ".wfrelay-*.tmp")
	if err != nil {
		return fmt.Errorf("filestore: create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: write %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: sync %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: chmod %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("filestore: close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("filestore: rename into place: %w", err)
	}
	return nil
}

func (s *Store) GetMessages(ctx context.Context, filter datastore.MessageFilter) ([]*message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*message.Message
	for _, msg := range s.messages {
		if matches(msg, filter) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func matches(msg *message.Message, f datastore.MessageFilter) bool {
	if f.TransactionHash != "" && msg.MetaHeader.TransactionHash != f.TransactionHash {
		return false
	}
	if f.Blockchain != "" && msg.MetaHeader.Blockchain != f.Blockchain {
		return false
	}
	if f.ReferencedMessage != "" && msg.MessageHeader.ReferencedMessage != f.ReferencedMessage {
		return false
	}
	if f.OriginatorAddress != "" && msg.MetaHeader.OriginatorAddress != f.OriginatorAddress {
		return false
	}
	return true
}

func (s *Store) StoreState(ctx context.Context, key string, sealed []byte) error {
	return s.writeAtomic(s.statePath(key), sealed, 0600)
}

func (s *Store) GetState(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.statePath(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: read state: %w", err)
	}
	return data, nil
}

var _ datastore.Store = (*Store)(nil)
