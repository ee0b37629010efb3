// Package session ties a signed-in player to the client store: it loads
// the player's save on start, keeps it written through autosave and
// exposes the manual profile actions.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/heartmarshall/labsim/internal/auth"
	"github.com/heartmarshall/labsim/internal/autosave"
	"github.com/heartmarshall/labsim/internal/domain"
	"github.com/heartmarshall/labsim/internal/game"
	"github.com/heartmarshall/labsim/internal/service/profile"
)

var (
	// ErrInitialization is returned by Start when the profile or the save
	// could not be loaded.
	ErrInitialization = errors.New("initialization failed")
	// ErrNotStarted is returned by actions called before Start.
	ErrNotStarted = errors.New("session not started")
)

type profileService interface {
	CreateOrUpdateProfile(ctx context.Context, id auth.Identity) (*domain.UserProfile, error)
	UpdateProfile(ctx context.Context, uid string, input profile.UpdateProfileInput) (*domain.UserProfile, error)
	SaveSnapshot(ctx context.Context, uid string, snap domain.SaveGame) error
	LoadSnapshot(ctx context.Context, uid string) (*domain.SaveGame, error)
	UpdateStatistics(ctx context.Context, uid string, partial profile.StatisticsUpdate) (*domain.Statistics, error)
	AddExperience(ctx context.Context, uid string, amount int) (*profile.ExperienceResult, error)
}

// Config tunes autosave.
type Config struct {
	Debounce time.Duration
	Interval time.Duration
	// OnSave observes every snapshot write. Optional.
	OnSave func(error)
}

// Session is one player's play session.
type Session struct {
	log      *slog.Logger
	profiles profileService
	store    *game.Store
	clock    clockwork.Clock
	cfg      Config
	autoSave atomic.Bool

	mu          sync.Mutex
	profile     *domain.UserProfile
	saver       *autosave.Saver
	unsubscribe func()
}

// New creates a session bound to store.
func New(log *slog.Logger, profiles profileService, store *game.Store, clock clockwork.Clock, cfg Config) *Session {
	if cfg.Debounce <= 0 {
		cfg.Debounce = autosave.DefaultDebounce
	}
	if cfg.Interval <= 0 {
		cfg.Interval = autosave.DefaultInterval
	}
	return &Session{
		log:      log.With("component", "session"),
		profiles: profiles,
		store:    store,
		clock:    clock,
		cfg:      cfg,
	}
}

// Start signs the player in: the profile is created or refreshed, the last
// save is loaded into the store and autosave begins.
func (s *Session) Start(ctx context.Context, id auth.Identity) (*domain.UserProfile, error) {
	p, err := s.profiles.CreateOrUpdateProfile(ctx, id)
	if err != nil {
		s.store.SetError(ErrInitialization.Error())
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	save, err := s.profiles.LoadSnapshot(ctx, p.ID)
	if err != nil {
		s.store.SetError(ErrInitialization.Error())
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	// A player without a save starts from a clean store, never from the
	// previous player's state.
	if save != nil {
		s.store.Hydrate(*save)
	} else {
		s.store.Reset()
	}

	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p
	s.autoSave.Store(p.Preferences.AutoSave)
	opts := []autosave.Option{
		autosave.WithDebounce(s.cfg.Debounce),
		autosave.WithInterval(s.cfg.Interval),
		autosave.WithEnabled(s.autoSave.Load),
	}
	if s.cfg.OnSave != nil {
		opts = append(opts, autosave.WithObserver(s.cfg.OnSave))
	}
	s.saver = autosave.New(s.log, s.clock, s.writeSnapshot(p.ID), opts...)
	s.saver.Start()

	saver := s.saver
	s.unsubscribe = s.store.Subscribe(func(_ game.State, c game.Change) {
		if c.Persisted {
			saver.Notify()
		}
	})

	s.log.InfoContext(ctx, "session started",
		slog.String("user_id", p.ID),
		slog.Bool("restored", save != nil),
	)
	return p, nil
}

func (s *Session) writeSnapshot(uid string) autosave.SaveFunc {
	return func(ctx context.Context) error {
		return s.profiles.SaveSnapshot(ctx, uid, s.store.Snapshot())
	}
}

func (s *Session) current() (*domain.UserProfile, *autosave.Saver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return nil, nil, ErrNotStarted
	}
	p := *s.profile
	return &p, s.saver, nil
}

// Profile returns a copy of the signed-in profile, or nil before Start.
func (s *Session) Profile() *domain.UserProfile {
	p, _, err := s.current()
	if err != nil {
		return nil
	}
	return p
}

// Store returns the client store.
func (s *Session) Store() *game.Store { return s.store }

// SaveStatus reports the most recent save.
func (s *Session) SaveStatus() autosave.Status {
	_, saver, err := s.current()
	if err != nil {
		return autosave.Status{}
	}
	return saver.Status()
}

// Save writes the current state now. Failures are shown to the player and
// returned.
func (s *Session) Save(ctx context.Context) error {
	_, saver, err := s.current()
	if err != nil {
		return err
	}
	if err := saver.Flush(ctx); err != nil {
		s.store.SetError("save failed: " + err.Error())
		return fmt.Errorf("session.Save: %w", err)
	}
	s.store.ClearError()
	return nil
}

// Load replaces the store with the last save. Nothing changes when the
// player has no save yet.
func (s *Session) Load(ctx context.Context) error {
	p, _, err := s.current()
	if err != nil {
		return err
	}
	save, err := s.profiles.LoadSnapshot(ctx, p.ID)
	if err != nil {
		s.store.SetError("load failed: " + err.Error())
		return fmt.Errorf("session.Load: %w", err)
	}
	if save != nil {
		s.store.Hydrate(*save)
	}
	s.store.ClearError()
	return nil
}

// UpdateProfile edits the player's profile. Turning autoSave off takes
// effect on the next automatic save.
func (s *Session) UpdateProfile(ctx context.Context, input profile.UpdateProfileInput) (*domain.UserProfile, error) {
	p, _, err := s.current()
	if err != nil {
		return nil, err
	}
	updated, err := s.profiles.UpdateProfile(ctx, p.ID, input)
	if err != nil {
		s.store.SetError("profile update failed: " + err.Error())
		return nil, fmt.Errorf("session.UpdateProfile: %w", err)
	}

	s.mu.Lock()
	s.profile = updated
	s.mu.Unlock()
	s.autoSave.Store(updated.Preferences.AutoSave)

	cp := *updated
	return &cp, nil
}

// UpdateStatistics overwrites the given statistics.
func (s *Session) UpdateStatistics(ctx context.Context, partial profile.StatisticsUpdate) (*domain.Statistics, error) {
	p, _, err := s.current()
	if err != nil {
		return nil, err
	}
	stats, err := s.profiles.UpdateStatistics(ctx, p.ID, partial)
	if err != nil {
		s.store.SetError("statistics update failed: " + err.Error())
		return nil, fmt.Errorf("session.UpdateStatistics: %w", err)
	}

	s.mu.Lock()
	if s.profile != nil {
		s.profile.Statistics = *stats
	}
	s.mu.Unlock()
	return stats, nil
}

// AddExperience credits the player and posts a notification on level-up.
func (s *Session) AddExperience(ctx context.Context, amount int) (*profile.ExperienceResult, error) {
	p, _, err := s.current()
	if err != nil {
		return nil, err
	}
	res, err := s.profiles.AddExperience(ctx, p.ID, amount)
	if err != nil {
		s.store.SetError("experience update failed: " + err.Error())
		return nil, fmt.Errorf("session.AddExperience: %w", err)
	}

	s.mu.Lock()
	if s.profile != nil {
		s.profile.Experience = res.Experience
		s.profile.Level = res.Level
	}
	s.mu.Unlock()

	if res.LeveledUp {
		s.store.AddNotification(game.NotificationInput{
			Type:    domain.NotificationSuccess,
			Title:   "Level up!",
			Message: fmt.Sprintf("You reached level %d", res.Level),
		})
	}
	return res, nil
}

// Stop ends the session. Pending automatic saves are dropped; call Save
// first to keep them.
func (s *Session) Stop() {
	s.mu.Lock()
	unsubscribe, saver := s.unsubscribe, s.saver
	s.unsubscribe, s.saver, s.profile = nil, nil, nil
	s.mu.Unlock()
	s.autoSave.Store(false)

	if unsubscribe != nil {
		unsubscribe()
	}
	if saver != nil {
		saver.Stop()
	}
}
