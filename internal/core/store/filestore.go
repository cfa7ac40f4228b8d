// Package store provides implementations of the registry's backing
// document store: a JSON file store for the daemon and an in-memory store
// for tests and embedders. Both deliver change notifications through the
// in-process event bus, for the registry's own writes included.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/entsync/entsync/internal/core/entity"
	"github.com/entsync/entsync/internal/core/events/bus"
	"github.com/entsync/entsync/internal/core/observability/log"
	"github.com/entsync/entsync/pkg/encoding"
)

// ErrClosed is returned by Modify after Close.
var ErrClosed = errors.New("store is closed")

const eventModified = "store.modified"

var _ entity.Store = (*FileStore)(nil)

// FileStore holds the canonical record sequence in a single JSON array
// document. Writes go to a temp file in the same directory followed by a
// rename, so a crash mid-write never truncates the document. A Modify
// whose encoded snapshot hashes identically to the last written one skips
// both the disk write and the change notification.
type FileStore struct {
	path   string
	log    log.Log
	events bus.EventBus

	mu       sync.Mutex
	records  []entity.Record
	lastHash uint64
	closed   bool
}

// OpenFile loads the document at path, treating a missing file as an empty
// record sequence.
func OpenFile(path string, l log.Log) (*FileStore, error) {
	if l == nil {
		l = log.Nop()
	}
	s := &FileStore{
		path:   path,
		log:    l,
		events: bus.New(),
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.records = nil
	case err != nil:
		return nil, fmt.Errorf("read store document: %w", err)
	default:
		var records []entity.Record
		if err := encoding.UnmarshalJSONStrict(data, &records); err != nil {
			return nil, fmt.Errorf("decode store document %s: %w", path, err)
		}
		s.records = records
	}
	encoded, err := encoding.MarshalJSONStable(s.records)
	if err != nil {
		return nil, fmt.Errorf("encode store document: %w", err)
	}
	s.lastHash = xxhash.Sum64(encoded)
	s.log.Info("store document loaded",
		log.String("path", path), log.Int("records", len(s.records)))
	return s, nil
}

// Data returns a snapshot of the current record sequence. The caller owns
// the returned slice.
func (s *FileStore) Data() []entity.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRecords(s.records)
}

// Modify applies the mutator to a copy of the snapshot, persists the
// result atomically, and notifies subscribers. The mutation and the write
// complete before Modify returns.
func (s *FileStore) Modify(mutate func(records []entity.Record) []entity.Record) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	next := mutate(cloneRecords(s.records))
	encoded, err := encoding.MarshalJSONStable(next)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("encode store document: %w", err)
	}
	hash := xxhash.Sum64(encoded)
	if hash == s.lastHash {
		// Byte-identical snapshot: nothing mutated, nobody to notify.
		s.records = next
		s.mu.Unlock()
		return nil
	}
	if err := writeAtomic(s.path, encoded); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("write store document: %w", err)
	}
	s.records = next
	s.lastHash = hash
	s.mu.Unlock()

	if err := s.events.Publish(bus.NewEvent(eventModified, s.path, nil)); err != nil {
		s.log.Error("store change notification failed", log.Error(err))
	}
	return nil
}

// OnModify subscribes fn to change notifications and returns its cancel.
func (s *FileStore) OnModify(fn func()) (cancel func()) {
	sub, _ := s.events.Subscribe(eventModified, func(bus.Event) error {
		fn()
		return nil
	})
	return func() { _ = sub.Cancel() }
}

// Close rejects further mutations. Reads keep working.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneRecords(records []entity.Record) []entity.Record {
	out := make([]entity.Record, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}
	return out
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
