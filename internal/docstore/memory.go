package docstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/heartmarshall/labsim/internal/domain"
)

type memEntry struct {
	data      map[string]any
	createdAt time.Time
	updatedAt time.Time
}

// Memory is an in-process Backend. It backs the emulator mode and tests.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string]*memEntry
	now  func() time.Time
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string]*memEntry), now: time.Now}
}

// Load implements Backend.
func (m *Memory) Load(_ context.Context, ref Ref) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.docs[ref.Collection][ref.ID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, domain.ErrNotFound)
	}
	return e.document(ref), nil
}

// Modify implements Backend.
func (m *Memory) Modify(_ context.Context, ref Ref, fn ModifyFunc) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cur *Document
	e, ok := m.docs[ref.Collection][ref.ID]
	if ok {
		cur = e.document(ref)
	}
	next, err := fn(cur)
	if err != nil || next == nil {
		return false, err
	}

	now := m.now()
	if !ok {
		e = &memEntry{createdAt: now}
		if m.docs[ref.Collection] == nil {
			m.docs[ref.Collection] = make(map[string]*memEntry)
		}
		m.docs[ref.Collection][ref.ID] = e
	}
	e.data = deepCopyMap(next)
	e.updatedAt = now
	return true, nil
}

// Remove implements Backend.
func (m *Memory) Remove(_ context.Context, ref Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs[ref.Collection], ref.ID)
	return nil
}

// Find implements Backend.
func (m *Memory) Find(_ context.Context, q Query) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Document
	for id, e := range m.docs[q.Collection] {
		if q.Matches(e.data) {
			out = append(out, *e.document(Doc(q.Collection, id)))
		}
	}
	return SortDocuments(out, q), nil
}

// Ping implements Backend.
func (m *Memory) Ping(context.Context) error { return nil }

// Close implements Backend.
func (m *Memory) Close() error { return nil }

// Len returns the number of documents in collection.
func (m *Memory) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs[collection])
}

func (e *memEntry) document(ref Ref) *Document {
	return &Document{Ref: ref, Data: deepCopyMap(e.data), CreatedAt: e.createdAt, UpdatedAt: e.updatedAt}
}
