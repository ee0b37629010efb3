package docstore

import (
	"context"
	"sync"
	"time"
)

// Change announces a write to one document.
type Change struct {
	Ref     Ref       `json:"ref"`
	Deleted bool      `json:"deleted,omitempty"`
	At      time.Time `json:"at"`
}

// Feed fans document changes out to subscribers. Delivery is best effort:
// a slow subscriber misses changes rather than blocking writers.
type Feed interface {
	Publish(ctx context.Context, c Change) error
	// Subscribe streams changes to ref. The channel is closed when ctx is done.
	Subscribe(ctx context.Context, ref Ref) (<-chan Change, error)
	Close() error
}

// Hub is an in-process Feed.
type Hub struct {
	mu     sync.Mutex
	subs   map[Ref]map[chan Change]struct{}
	closed bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[Ref]map[chan Change]struct{})}
}

// Publish implements Feed.
func (h *Hub) Publish(_ context.Context, c Change) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[c.Ref] {
		select {
		case ch <- c:
		default:
		}
	}
	return nil
}

// Subscribe implements Feed.
func (h *Hub) Subscribe(ctx context.Context, ref Ref) (<-chan Change, error) {
	ch := make(chan Change, 8)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, nil
	}
	if h.subs[ref] == nil {
		h.subs[ref] = make(map[chan Change]struct{})
	}
	h.subs[ref][ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.remove(ref, ch)
	}()
	return ch, nil
}

// Close implements Feed. Every open subscription channel is closed.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ref, set := range h.subs {
		for ch := range set {
			close(ch)
		}
		delete(h.subs, ref)
	}
	return nil
}

func (h *Hub) remove(ref Ref, ch chan Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ref][ch]; !ok {
		return
	}
	delete(h.subs[ref], ch)
	if len(h.subs[ref]) == 0 {
		delete(h.subs, ref)
	}
	close(ch)
}
