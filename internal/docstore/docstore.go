// Package docstore is a small document database abstraction: JSON documents
// addressed by collection and id, with merge writes, field transforms,
// atomic read-modify-write and simple queries. Drivers implement Backend;
// Store layers the write semantics on top so every driver behaves the same.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/heartmarshall/labsim/internal/domain"
)

// TimestampLayout is the fixed-width UTC layout used for server timestamps,
// so that stored timestamps sort lexicographically.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// ErrInvalidValue is returned when data contains a nil value. Callers drop
// optional fields with StripNil before writing.
var ErrInvalidValue = &domain.DomainError{Msg: "nil values are not supported", Kind: domain.ErrValidation}

// ErrNoFeed is returned by Watch when the store has no change feed.
var ErrNoFeed = errors.New("docstore: no change feed configured")

// Ref addresses a single document.
type Ref struct {
	Collection string
	ID         string
}

// Doc builds a Ref.
func Doc(collection, id string) Ref { return Ref{Collection: collection, ID: id} }

func (r Ref) String() string { return r.Collection + "/" + r.ID }

// Document is a stored document. Data only holds JSON-compatible values:
// map[string]any, []any, string, float64, bool.
type Document struct {
	Ref       Ref
	Data      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ModifyFunc receives the current document (nil when missing) and returns
// the data to store. Returning nil data leaves the document untouched.
type ModifyFunc func(cur *Document) (map[string]any, error)

// Backend is implemented by storage drivers.
type Backend interface {
	// Load returns the document or an error wrapping domain.ErrNotFound.
	Load(ctx context.Context, ref Ref) (*Document, error)
	// Modify runs fn with exclusive access to ref and stores its result.
	Modify(ctx context.Context, ref Ref, fn ModifyFunc) (bool, error)
	// Remove deletes the document. Removing a missing document is not an error.
	Remove(ctx context.Context, ref Ref) error
	Find(ctx context.Context, q Query) ([]Document, error)
	Ping(ctx context.Context) error
	Close() error
}

// Store implements the document write semantics over a Backend.
type Store struct {
	backend Backend
	clock   clockwork.Clock
	feed    Feed
	log     *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for server timestamps.
func WithClock(c clockwork.Clock) Option { return func(s *Store) { s.clock = c } }

// WithFeed publishes a Change after every successful write.
func WithFeed(f Feed) Option { return func(s *Store) { s.feed = f } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.log = l } }

// New creates a Store over backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		clock:   clockwork.NewRealClock(),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "docstore")
	return s
}

// Get returns the document at ref.
func (s *Store) Get(ctx context.Context, ref Ref) (*Document, error) {
	return s.backend.Load(ctx, ref)
}

// Create writes data at ref. It fails with domain.ErrAlreadyExists if the
// document exists.
func (s *Store) Create(ctx context.Context, ref Ref, data map[string]any) error {
	return s.write(ctx, ref, func(cur *Document) (map[string]any, error) {
		if cur != nil {
			return nil, fmt.Errorf("%s: %w", ref, domain.ErrAlreadyExists)
		}
		return resolveMap(data, nil, s.now())
	})
}

// Set replaces the document at ref, creating it if needed.
func (s *Store) Set(ctx context.Context, ref Ref, data map[string]any) error {
	return s.write(ctx, ref, func(cur *Document) (map[string]any, error) {
		return resolveMap(data, currentData(cur), s.now())
	})
}

// Merge deep-merges data into the document at ref, creating it if needed.
// Fields absent from data are left untouched.
func (s *Store) Merge(ctx context.Context, ref Ref, data map[string]any) error {
	return s.write(ctx, ref, func(cur *Document) (map[string]any, error) {
		existing := currentData(cur)
		resolved, err := resolveMap(data, existing, s.now())
		if err != nil {
			return nil, err
		}
		return mergeMaps(deepCopyMap(existing), resolved), nil
	})
}

// Update applies field updates to an existing document. Paths use dots to
// address nested fields. It fails with domain.ErrNotFound when missing.
func (s *Store) Update(ctx context.Context, ref Ref, updates ...Update) error {
	return s.write(ctx, ref, func(cur *Document) (map[string]any, error) {
		if cur == nil {
			return nil, fmt.Errorf("%s: %w", ref, domain.ErrNotFound)
		}
		next := deepCopyMap(cur.Data)
		now := s.now()
		for _, u := range updates {
			if u.Path == "" {
				return nil, fmt.Errorf("%s: empty update path: %w", ref, domain.ErrValidation)
			}
			v, err := resolveValue(u.Value, getPath(next, u.Path), now, u.Path)
			if err != nil {
				return nil, err
			}
			setPath(next, u.Path, v)
		}
		return next, nil
	})
}

// MutateFunc receives a copy of the current data (nil when the document is
// missing) and returns the full replacement. Returning nil skips the write.
// Transforms in the result resolve against the current data.
type MutateFunc func(data map[string]any) (map[string]any, error)

// Mutate performs an atomic read-modify-write of the document at ref.
func (s *Store) Mutate(ctx context.Context, ref Ref, fn MutateFunc) error {
	return s.write(ctx, ref, func(cur *Document) (map[string]any, error) {
		var data map[string]any
		if cur != nil {
			data = deepCopyMap(cur.Data)
		}
		next, err := fn(data)
		if err != nil || next == nil {
			return nil, err
		}
		return resolveMap(next, currentData(cur), s.now())
	})
}

// Delete removes the document at ref.
func (s *Store) Delete(ctx context.Context, ref Ref) error {
	if err := s.backend.Remove(ctx, ref); err != nil {
		return err
	}
	s.publish(ctx, Change{Ref: ref, Deleted: true, At: s.clock.Now()})
	return nil
}

// Query runs q against the backend.
func (s *Store) Query(ctx context.Context, q Query) ([]Document, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("query: collection is required: %w", domain.ErrValidation)
	}
	for _, f := range q.Filters {
		if f.Op != OpEqual && f.Op != OpArrayContains {
			return nil, fmt.Errorf("query: unsupported operator %q: %w", f.Op, domain.ErrValidation)
		}
		if f.Value == nil {
			return nil, fmt.Errorf("query: filter %s: %w", f.Field, ErrInvalidValue)
		}
	}
	return s.backend.Find(ctx, q)
}

// Watch streams changes to ref until ctx is cancelled.
func (s *Store) Watch(ctx context.Context, ref Ref) (<-chan Change, error) {
	if s.feed == nil {
		return nil, ErrNoFeed
	}
	return s.feed.Subscribe(ctx, ref)
}

// Ping checks the backend.
func (s *Store) Ping(ctx context.Context) error { return s.backend.Ping(ctx) }

// Close releases the backend and the feed.
func (s *Store) Close() error {
	var feedErr error
	if s.feed != nil {
		feedErr = s.feed.Close()
	}
	return errors.Join(s.backend.Close(), feedErr)
}

func (s *Store) write(ctx context.Context, ref Ref, fn ModifyFunc) error {
	if ref.Collection == "" || ref.ID == "" {
		return fmt.Errorf("docstore: incomplete ref %q: %w", ref, domain.ErrValidation)
	}
	changed, err := s.backend.Modify(ctx, ref, fn)
	if err != nil {
		return err
	}
	if changed {
		s.publish(ctx, Change{Ref: ref, At: s.clock.Now()})
	}
	return nil
}

func (s *Store) publish(ctx context.Context, c Change) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, c); err != nil {
		s.log.WarnContext(ctx, "publish change", slog.String("ref", c.Ref.String()), slog.String("error", err.Error()))
	}
}

func (s *Store) now() time.Time { return s.clock.Now() }

func currentData(cur *Document) map[string]any {
	if cur == nil {
		return nil
	}
	return cur.Data
}
