package game

import (
	"github.com/heartmarshall/labsim/internal/domain"
)

// Snapshot builds the save for the current state. Controls and the
// current error are session-only and left out.
func (s *Store) Snapshot() domain.SaveGame {
	st := s.State()
	ui := st.UI
	ui.Error = ""
	return domain.SaveGame{
		Laboratory: st.CurrentLaboratory,
		Missions:   st.ActiveMissions,
		Samples:    st.Samples,
		Equipment:  st.Equipment,
		GameState: domain.GameState{
			Player:        st.Player,
			Inventory:     st.Inventory,
			CurrentSample: st.CurrentSample,
			UI:            ui,
		},
	}
}

// Hydrate replaces the state with a loaded save. Controls are reset and
// listeners see a non-persisted change so loading does not trigger a save.
func (s *Store) Hydrate(save domain.SaveGame) {
	next := State{
		Player:            save.GameState.Player,
		CurrentLaboratory: save.Laboratory,
		ActiveMissions:    save.Missions,
		Samples:           save.Samples,
		Equipment:         save.Equipment,
		Inventory:         save.GameState.Inventory,
		CurrentSample:     save.GameState.CurrentSample,
		UI:                save.GameState.UI,
	}.clone()

	fresh := initialState()
	if next.Player.ID == "" {
		next.Player.ID = fresh.Player.ID
	}
	if next.Player.CurrentRoom == "" {
		next.Player.CurrentRoom = fresh.Player.CurrentRoom
	}
	next.Player.IsMoving = false
	if next.ActiveMissions == nil {
		next.ActiveMissions = fresh.ActiveMissions
	}
	if next.Samples == nil {
		next.Samples = fresh.Samples
	}
	if next.Equipment == nil {
		next.Equipment = fresh.Equipment
	}
	if next.Inventory == nil {
		next.Inventory = fresh.Inventory
	}
	if next.UI.Notifications == nil {
		next.UI.Notifications = fresh.UI.Notifications
	}
	next.UI.Error = ""

	s.dispatch(ActionHydrate, false, always(func(st *State) {
		*st = next
	}))
}

// Reset returns the store to its initial state.
func (s *Store) Reset() {
	s.dispatch(ActionHydrate, false, always(func(st *State) {
		*st = initialState()
	}))
}
