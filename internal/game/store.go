// Package game holds the client-side state of a play session.
//
// Store is an observable container: every action replaces the whole State
// and then runs the registered listeners synchronously, in action order.
// Actions never fail. Listeners receive the new state and must not dispatch
// actions themselves; reading the store from a listener is allowed.
package game

import (
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/heartmarshall/labsim/internal/domain"
)

// DefaultPlayerID and DefaultRoom describe a fresh avatar.
const (
	DefaultPlayerID = "player-1"
	DefaultRoom     = "main-lab"
)

// Controls is the current input state.
type Controls struct {
	Forward   bool `json:"forward"`
	Backward  bool `json:"backward"`
	Left      bool `json:"left"`
	Right     bool `json:"right"`
	Interact  bool `json:"interact"`
	Inventory bool `json:"inventory"`
	Menu      bool `json:"menu"`
}

// State is everything the client tracks during a session.
type State struct {
	Player            domain.Player
	CurrentLaboratory *domain.Laboratory
	ActiveMissions    []domain.Mission
	Samples           []domain.Sample
	Equipment         []domain.Equipment
	Inventory         []domain.InventoryItem
	CurrentSample     *domain.Sample
	Controls          Controls
	UI                domain.UIState
}

// Change describes the action that produced a state. Persisted is true
// when the action touched data that belongs in a save.
type Change struct {
	Action    Action
	Persisted bool
}

// Listener observes state changes.
type Listener func(State, Change)

// Store is safe for concurrent use.
type Store struct {
	// notifyMu serializes whole dispatches so listeners see actions in
	// order; mu guards state and listeners.
	notifyMu sync.Mutex
	mu       sync.RWMutex

	state     State
	listeners map[int]Listener
	nextID    int

	clock clockwork.Clock
	newID func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for notification timestamps.
func WithClock(c clockwork.Clock) Option { return func(s *Store) { s.clock = c } }

// WithNotificationIDs overrides notification id generation.
func WithNotificationIDs(fn func() string) Option { return func(s *Store) { s.newID = fn } }

// NewStore returns a store holding the initial state.
func NewStore(opts ...Option) *Store {
	s := &Store{
		state:     initialState(),
		listeners: make(map[int]Listener),
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.newID == nil {
		s.newID = func() string { return notificationID(s.clock.Now()) }
	}
	return s
}

func initialState() State {
	return State{
		Player: domain.Player{
			ID:          DefaultPlayerID,
			CurrentRoom: DefaultRoom,
		},
		ActiveMissions: []domain.Mission{},
		Samples:        []domain.Sample{},
		Equipment:      []domain.Equipment{},
		Inventory:      []domain.InventoryItem{},
		UI:             domain.UIState{Notifications: []domain.Notification{}},
	}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Subscribe registers l and returns a func that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// dispatch applies fn to a copy of the state, installs the copy and
// notifies listeners. When fn returns false the copy is dropped and nothing
// is dispatched.
func (s *Store) dispatch(action Action, persisted bool, fn func(*State) bool) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	next := s.state.clone()
	if !fn(&next) {
		s.mu.Unlock()
		return
	}
	s.state = next
	listeners := make([]Listener, 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if l, ok := s.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	view := next.clone()
	s.mu.Unlock()

	change := Change{Action: action, Persisted: persisted}
	for _, l := range listeners {
		l(view, change)
	}
}
