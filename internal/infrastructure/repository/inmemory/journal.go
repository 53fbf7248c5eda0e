package inmemory

import (
	"container/list"
	"context"
	"sync"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
)

const DefaultJournalCapacity = 1000

// Journal keeps the most recent pipeline runs in memory. It is used when no
// database is configured.
type Journal struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
}

func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = DefaultJournalCapacity
	}
	return &Journal{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

func (j *Journal) Record(_ context.Context, entry domain.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if el, ok := j.entries[entry.RequestID]; ok {
		el.Value = entry
		j.order.MoveToFront(el)
		return nil
	}
	j.entries[entry.RequestID] = j.order.PushFront(entry)
	for j.order.Len() > j.capacity {
		oldest := j.order.Back()
		j.order.Remove(oldest)
		delete(j.entries, oldest.Value.(domain.JournalEntry).RequestID)
	}
	return nil
}

func (j *Journal) GetByRequestID(_ context.Context, requestID string) (*domain.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	el, ok := j.entries[requestID]
	if !ok {
		return nil, &domain.DocumentNotFoundError{Resource: "analysis", ID: requestID}
	}
	entry := el.Value.(domain.JournalEntry)
	return &entry, nil
}
