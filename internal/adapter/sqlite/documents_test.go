package sqlite_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/labsim/internal/adapter/sqlite"
	"github.com/heartmarshall/labsim/internal/docstore"
	"github.com/heartmarshall/labsim/internal/domain"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) (*docstore.Store, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testNow)
	backend, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "labsim.db"), clock)
	require.NoError(t, err)
	store := docstore.New(backend, docstore.WithClock(clock))
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func TestStore_CreateGetDelete(t *testing.T) {
	t.Parallel()
	store, _ := newStore(t)
	ctx := context.Background()
	ref := docstore.Doc("users", "u1")

	require.NoError(t, store.Create(ctx, ref, map[string]any{"email": "a@example.com", "level": 3}))
	assert.ErrorIs(t, store.Create(ctx, ref, map[string]any{"email": "x"}), domain.ErrAlreadyExists)

	doc, err := store.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", doc.Data["email"])
	assert.Equal(t, float64(3), doc.Data["level"])
	assert.Equal(t, testNow, doc.CreatedAt)

	require.NoError(t, store.Delete(ctx, ref))
	_, err = store.Get(ctx, ref)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_UpdateKeepsCreatedAt(t *testing.T) {
	t.Parallel()
	store, clock := newStore(t)
	ctx := context.Background()
	ref := docstore.Doc("samples", "s1")

	require.NoError(t, store.Create(ctx, ref, map[string]any{"status": "received"}))
	clock.Advance(time.Minute)
	require.NoError(t, store.Update(ctx, ref,
		docstore.Field("status", "preparation"),
		docstore.Field("updatedAt", docstore.ServerTimestamp()),
	))

	doc, err := store.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "preparation", doc.Data["status"])
	assert.Equal(t, docstore.FormatTimestamp(testNow.Add(time.Minute)), doc.Data["updatedAt"])
	assert.Equal(t, testNow, doc.CreatedAt)
	assert.Equal(t, testNow.Add(time.Minute), doc.UpdatedAt)
}

func TestStore_ConcurrentMutate(t *testing.T) {
	t.Parallel()
	store, _ := newStore(t)
	ctx := context.Background()
	ref := docstore.Doc("users", "u1")
	require.NoError(t, store.Create(ctx, ref, map[string]any{"experience": 0}))

	var wg sync.WaitGroup
	for range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Update(ctx, ref, docstore.Field("experience", docstore.Increment(4))))
		}()
	}
	wg.Wait()

	doc, err := store.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, float64(100), doc.Data["experience"])
}

func TestStore_Query(t *testing.T) {
	t.Parallel()
	store, _ := newStore(t)
	ctx := context.Background()

	seed := map[string]map[string]any{
		"l1": {"inviteCode": "AAA111", "ownerId": "u1", "memberIds": []any{"u1", "u2"}, "createdAt": "2026-01-02"},
		"l2": {"inviteCode": "BBB222", "ownerId": "u2", "memberIds": []any{"u2"}, "createdAt": "2026-01-01"},
		"l3": {"inviteCode": "AAA111", "ownerId": "u3", "memberIds": []any{"u3"}, "createdAt": "2026-01-03"},
	}
	for id, data := range seed {
		require.NoError(t, store.Create(ctx, docstore.Doc("laboratories", id), data))
	}

	byCode, err := store.Query(ctx, docstore.From("laboratories").
		Where("inviteCode", docstore.OpEqual, "AAA111").
		Order("createdAt", false))
	require.NoError(t, err)
	require.Len(t, byCode, 2)
	assert.Equal(t, "l1", byCode[0].Ref.ID)
	assert.Equal(t, "l3", byCode[1].Ref.ID)

	byMember, err := store.Query(ctx, docstore.From("laboratories").
		Where("memberIds", docstore.OpArrayContains, "u2").
		Order("createdAt", true).
		Take(1))
	require.NoError(t, err)
	require.Len(t, byMember, 1)
	assert.Equal(t, "l1", byMember[0].Ref.ID)
}

func TestOpen_InMemory(t *testing.T) {
	t.Parallel()

	backend, err := sqlite.Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	defer backend.Close()
	require.NoError(t, backend.Ping(context.Background()))
}
