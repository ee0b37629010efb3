// Package autosave writes game snapshots after a quiet period and on a
// fixed interval.
//
// The debounce path is a small state machine:
//
//	idle --Notify--> pending --timer--> saving --done--> idle
//	                    ^ Notify resets     |
//	                    +------ dirty ------+
//
// A Notify while saving marks the saver dirty; when the save finishes one
// more debounce cycle is armed. All saves, including periodic ones and
// Flush, run one at a time.
package autosave

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Defaults.
const (
	DefaultDebounce = time.Second
	DefaultInterval = 5 * time.Minute
	DefaultTimeout  = 30 * time.Second
)

// ErrStopped is returned by Flush after Stop.
var ErrStopped = errors.New("autosave stopped")

// SaveFunc performs one write.
type SaveFunc func(ctx context.Context) error

type state int

const (
	stateIdle state = iota
	statePending
	stateSaving
)

// Status reports the outcome of the most recent save.
type Status struct {
	Saved    bool      `json:"saved"`
	LastSave time.Time `json:"lastSave"`
	LastErr  error     `json:"-"`
}

// Saver schedules snapshot writes.
type Saver struct {
	save     SaveFunc
	clock    clockwork.Clock
	log      *slog.Logger
	debounce time.Duration
	interval time.Duration
	timeout  time.Duration
	enabled  func() bool
	observe  func(error)

	// saveMu serializes calls to save.
	saveMu sync.Mutex

	mu       sync.Mutex
	state    state
	dirty    bool
	gen      uint64
	timer    clockwork.Timer
	periodic clockwork.Timer
	stopped  bool
	status   Status
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// Option configures a Saver.
type Option func(*Saver)

// WithDebounce sets the quiet period after the last change.
func WithDebounce(d time.Duration) Option { return func(s *Saver) { s.debounce = d } }

// WithInterval sets the periodic save interval. Zero disables it.
func WithInterval(d time.Duration) Option { return func(s *Saver) { s.interval = d } }

// WithTimeout bounds each automatic save.
func WithTimeout(d time.Duration) Option { return func(s *Saver) { s.timeout = d } }

// WithEnabled gates automatic saves. Debounced saves are gated as well as
// periodic ones, so a player with autoSave off only persists through Flush.
func WithEnabled(fn func() bool) Option { return func(s *Saver) { s.enabled = fn } }

// WithObserver is called with the result of every save.
func WithObserver(fn func(error)) Option { return func(s *Saver) { s.observe = fn } }

// New creates a Saver. Nothing is scheduled until Start or Notify.
func New(log *slog.Logger, clock clockwork.Clock, save SaveFunc, opts ...Option) *Saver {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Saver{
		save:     save,
		clock:    clock,
		log:      log.With("component", "autosave"),
		debounce: DefaultDebounce,
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
		enabled:  func() bool { return true },
		observe:  func(error) {},
		status:   Status{Saved: true},
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start arms the periodic timer.
func (s *Saver) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.periodic != nil || s.interval <= 0 {
		return
	}
	s.periodic = s.clock.AfterFunc(s.interval, s.tick)
}

// Notify records a change to persisted state.
func (s *Saver) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.status.Saved = false

	switch s.state {
	case stateIdle, statePending:
		s.armLocked()
	case stateSaving:
		s.dirty = true
	}
}

// armLocked (re)starts the debounce timer. s.mu must be held.
func (s *Saver) armLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.state = statePending
	s.timer = s.clock.AfterFunc(s.debounce, func() { s.fire(gen) })
}

func (s *Saver) fire(gen uint64) {
	s.mu.Lock()
	if s.stopped || gen != s.gen || s.state != statePending {
		s.mu.Unlock()
		return
	}
	s.state = stateSaving
	s.timer = nil
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	if s.enabled() {
		_ = s.run(s.ctx, "debounce")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		s.state = stateIdle
		return
	}
	if s.dirty {
		s.dirty = false
		s.armLocked()
		return
	}
	s.state = stateIdle
}

func (s *Saver) tick() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.periodic = s.clock.AfterFunc(s.interval, s.tick)
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	if s.enabled() {
		_ = s.run(s.ctx, "interval")
	}
}

// Flush saves immediately and returns the result. A pending debounce is
// cancelled since the flush covers it.
func (s *Saver) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.state == statePending {
		s.timer.Stop()
		s.timer = nil
		s.gen++
		s.state = stateIdle
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	return s.run(ctx, "manual")
}

func (s *Saver) run(ctx context.Context, trigger string) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if trigger != "manual" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := s.clock.Now()
	err := s.save(ctx)
	s.observe(err)

	s.mu.Lock()
	s.status.LastErr = err
	if err == nil {
		s.status.LastSave = s.clock.Now()
		if s.state != statePending && !s.dirty {
			s.status.Saved = true
		}
	}
	s.mu.Unlock()

	if err != nil {
		// Automatic saves never surface errors; the next change retries.
		if trigger != "manual" {
			s.log.Warn("autosave failed", slog.String("trigger", trigger), slog.String("error", err.Error()))
		}
		return err
	}
	s.log.Debug("game saved", slog.String("trigger", trigger), slog.Duration("duration", s.clock.Since(start)))
	return nil
}

// Status returns the outcome of the most recent save.
func (s *Saver) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Stop cancels both timers and waits for in-flight saves. No save starts
// after Stop returns.
func (s *Saver) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.periodic != nil {
		s.periodic.Stop()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.cancel()
}
