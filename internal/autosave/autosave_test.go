package autosave

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type fakeWriter struct {
	count   atomic.Int32
	saved   chan struct{}
	started chan struct{}
	release chan struct{}
	mu      sync.Mutex
	err     error
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{saved: make(chan struct{}, 16)}
}

func (w *fakeWriter) save(context.Context) error {
	if w.started != nil {
		w.started <- struct{}{}
	}
	if w.release != nil {
		<-w.release
	}
	w.count.Add(1)
	w.mu.Lock()
	err := w.err
	w.mu.Unlock()
	w.saved <- struct{}{}
	return err
}

func (w *fakeWriter) wait(t *testing.T) {
	t.Helper()
	select {
	case <-w.saved:
	case <-time.After(2 * time.Second):
		t.Fatal("save did not happen")
	}
}

func blockUntil(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n))
}

func newTestSaver(t *testing.T, w *fakeWriter, opts ...Option) (*Saver, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testNow)
	opts = append([]Option{WithInterval(0)}, opts...)
	s := New(slog.Default(), clock, w.save, opts...)
	t.Cleanup(s.Stop)
	return s, clock
}

// ---------------------------------------------------------------------------
// Debounce
// ---------------------------------------------------------------------------

func TestDebounce_BurstProducesOneWrite(t *testing.T) {
	t.Parallel()
	w := newFakeWriter()
	s, clock := newTestSaver(t, w)

	for i := 0; i < 5; i++ {
		s.Notify()
		clock.Advance(500 * time.Millisecond)
	}
	clock.Advance(499 * time.Millisecond)
	assert.Equal(t, int32(0), w.count.Load())

	clock.Advance(time.Millisecond)
	w.wait(t)

	s.Stop()
	assert.Equal(t, int32(1), w.count.Load())
	assert.True(t, s.Status().Saved)
	assert.True(t, s.Status().LastSave.Equal(testNow.Add(3*time.Second)))
}

func TestDebounce_ChangeDuringSaveRearms(t *testing.T) {
	t.Parallel()
	w := newFakeWriter()
	w.started = make(chan struct{}, 4)
	w.release = make(chan struct{}, 4)
	s, clock := newTestSaver(t, w)

	s.Notify()
	clock.Advance(time.Second)
	<-w.started

	s.Notify()
	s.Notify()
	w.release <- struct{}{}
	w.wait(t)

	// The finished save arms exactly one more debounce cycle.
	blockUntil(t, clock, 1)
	clock.Advance(time.Second)
	<-w.started
	w.release <- struct{}{}
	w.wait(t)

	s.Stop()
	assert.Equal(t, int32(2), w.count.Load())
}

func TestDebounce_DisabledSkipsWrite(t *testing.T) {
	t.Parallel()
	w := newFakeWriter()
	var enabled atomic.Bool
	s, clock := newTestSaver(t, w, WithEnabled(enabled.Load))

	s.Notify()
	clock.Advance(time.Second)
	s.Stop()

	assert.Equal(t, int32(0), w.count.Load())
}

func TestDebounce_FailureIsSwallowed(t *testing.T) {
	t.Parallel()
	w := newFakeWriter()
	boom := errors.New("network down")
	w.err = boom

	var observed []error
	var mu sync.Mutex
	s, clock := newTestSaver(t, w, WithObserver(func(err error) {
		mu.Lock()
		observed = append(observed, err)
		mu.Unlock()
	}))

	s.Notify()
	clock.Advance(time.Second)
	w.wait(t)
	s.Stop()

	st := s.Status()
	assert.False(t, st.Saved)
	assert.ErrorIs(t, st.LastErr, boom)
	mu.Lock()
	assert.Equal(t, []error{boom}, observed)
	mu.Unlock()
}

// ---------------------------------------------------------------------------
// Periodic
// ---------------------------------------------------------------------------

func TestPeriodic_SavesOnInterval(t *testing.T) {
	t.Parallel()
	w := newFakeWriter()
	var enabled atomic.Bool
	enabled.Store(true)
	s, clock := newTestSaver(t, w, WithInterval(5*time.Minute), WithEnabled(enabled.Load))

	s.Start()
	s.Start()
	blockUntil(t, clock, 1)

	clock.Advance(5 * time.Minute)
	w.wait(t)

	enabled.Store(false)
	blockUntil(t, clock, 1)
	clock.Advance(5 * time.Minute)
	blockUntil(t, clock, 1)

	s.Stop()
	assert.Equal(t, int32(1), w.count.Load())
}

// ---------------------------------------------------------------------------
// Flush / Stop
// ---------------------------------------------------------------------------

func TestFlush_SavesNowAndCancelsPending(t *testing.T) {
	t.Parallel()
	w := newFakeWriter()
	s, clock := newTestSaver(t, w)

	s.Notify()
	require.NoError(t, s.Flush(context.Background()))
	w.wait(t)

	clock.Advance(2 * time.Second)
	s.Stop()
	assert.Equal(t, int32(1), w.count.Load())
}

func TestFlush_ReturnsError(t *testing.T) {
	t.Parallel()
	w := newFakeWriter()
	boom := errors.New("denied")
	w.err = boom
	s, _ := newTestSaver(t, w, WithEnabled(func() bool { return false }))

	assert.ErrorIs(t, s.Flush(context.Background()), boom)
}

func TestStop_NoWriteAfterStop(t *testing.T) {
	t.Parallel()
	w := newFakeWriter()
	s, clock := newTestSaver(t, w, WithInterval(time.Minute))

	s.Start()
	s.Notify()
	s.Stop()
	s.Stop()
	s.Notify()
	clock.Advance(10 * time.Minute)

	assert.Equal(t, int32(0), w.count.Load())
	assert.ErrorIs(t, s.Flush(context.Background()), ErrStopped)
}

func TestStop_WaitsForInFlightSave(t *testing.T) {
	t.Parallel()
	w := newFakeWriter()
	w.started = make(chan struct{}, 1)
	w.release = make(chan struct{})
	s, clock := newTestSaver(t, w)

	s.Notify()
	clock.Advance(time.Second)
	<-w.started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned before the save finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(w.release)
	<-stopped
	assert.Equal(t, int32(1), w.count.Load())
}
