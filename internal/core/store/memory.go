package store

import (
	"sync"

	"github.com/entsync/entsync/internal/core/entity"
	"github.com/entsync/entsync/internal/core/events/bus"
)

var _ entity.Store = (*Memory)(nil)

// Memory is an in-memory Store with the same contract as FileStore minus
// durability. Every Modify notifies subscribers, even when the mutator
// returned an identical sequence.
type Memory struct {
	events bus.EventBus

	mu      sync.Mutex
	records []entity.Record
}

// NewMemory returns a Memory store seeded with the given records.
func NewMemory(seed ...entity.Record) *Memory {
	return &Memory{
		events:  bus.New(),
		records: cloneRecords(seed),
	}
}

func (s *Memory) Data() []entity.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRecords(s.records)
}

func (s *Memory) Modify(mutate func(records []entity.Record) []entity.Record) error {
	s.mu.Lock()
	s.records = mutate(cloneRecords(s.records))
	s.mu.Unlock()

	return s.events.Publish(bus.NewEvent(eventModified, "memory", nil))
}

func (s *Memory) OnModify(fn func()) (cancel func()) {
	sub, _ := s.events.Subscribe(eventModified, func(bus.Event) error {
		fn()
		return nil
	})
	return func() { _ = sub.Cancel() }
}
