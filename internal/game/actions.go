package game

import (
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/heartmarshall/labsim/internal/domain"
)

// Action names a store mutation.
type Action string

const (
	ActionSetLaboratory         Action = "setCurrentLaboratory"
	ActionSetMissions           Action = "setActiveMissions"
	ActionAddMission            Action = "addMission"
	ActionUpdateMission         Action = "updateMission"
	ActionSetSamples            Action = "setSamples"
	ActionSetEquipment          Action = "setEquipment"
	ActionSetPosition           Action = "updatePlayerPosition"
	ActionSetRotation           Action = "updatePlayerRotation"
	ActionSetMoving             Action = "setPlayerMoving"
	ActionSetInteractionTarget  Action = "setInteractionTarget"
	ActionSetCurrentSample      Action = "setCurrentSample"
	ActionSetInventory          Action = "setInventory"
	ActionAddInventoryItem      Action = "addInventoryItem"
	ActionSetControls           Action = "setControls"
	ActionToggleLIMS            Action = "toggleLIMS"
	ActionToggleInventory       Action = "toggleInventory"
	ActionToggleMissions        Action = "toggleMissions"
	ActionToggleQRScanner       Action = "toggleQRScanner"
	ActionSetEquipmentInterface Action = "setActiveEquipmentInterface"
	ActionAddNotification       Action = "addNotification"
	ActionMarkNotificationRead  Action = "markNotificationRead"
	ActionClearNotifications    Action = "clearNotifications"
	ActionSetError              Action = "setError"
	ActionClearError            Action = "clearError"
	ActionTick                  Action = "tick"
	ActionHydrate               Action = "hydrate"
)

func always(fn func(*State)) func(*State) bool {
	return func(st *State) bool {
		fn(st)
		return true
	}
}

// SetCurrentLaboratory replaces the current laboratory. nil clears it.
func (s *Store) SetCurrentLaboratory(lab *domain.Laboratory) {
	lab = cloneLaboratory(lab)
	s.dispatch(ActionSetLaboratory, true, always(func(st *State) {
		st.CurrentLaboratory = lab
	}))
}

// SetActiveMissions replaces the mission list.
func (s *Store) SetActiveMissions(missions []domain.Mission) {
	missions = cloneMissions(missions)
	if missions == nil {
		missions = []domain.Mission{}
	}
	s.dispatch(ActionSetMissions, true, always(func(st *State) {
		st.ActiveMissions = missions
	}))
}

// AddMission appends a mission.
func (s *Store) AddMission(m domain.Mission) {
	m = m.Clone()
	s.dispatch(ActionAddMission, true, always(func(st *State) {
		st.ActiveMissions = append(st.ActiveMissions, m)
	}))
}

// UpdateMission applies fn to the mission with id. Unknown ids are ignored.
func (s *Store) UpdateMission(id string, fn func(*domain.Mission)) {
	s.dispatch(ActionUpdateMission, true, func(st *State) bool {
		for i := range st.ActiveMissions {
			if st.ActiveMissions[i].ID == id {
				fn(&st.ActiveMissions[i])
				st.ActiveMissions[i].ID = id
				return true
			}
		}
		return false
	})
}

// SetSamples replaces the laboratory's sample list.
func (s *Store) SetSamples(samples []domain.Sample) {
	samples = append([]domain.Sample{}, samples...)
	s.dispatch(ActionSetSamples, true, always(func(st *State) {
		st.Samples = samples
	}))
}

// SetEquipment replaces the equipment list.
func (s *Store) SetEquipment(equipment []domain.Equipment) {
	equipment = cloneEquipment(equipment)
	if equipment == nil {
		equipment = []domain.Equipment{}
	}
	s.dispatch(ActionSetEquipment, true, always(func(st *State) {
		st.Equipment = equipment
	}))
}

// SetPlayerPosition moves the player.
func (s *Store) SetPlayerPosition(p domain.Vector3) {
	s.dispatch(ActionSetPosition, true, always(func(st *State) {
		st.Player.Position = p
	}))
}

// SetPlayerRotation turns the player.
func (s *Store) SetPlayerRotation(r domain.Vector3) {
	s.dispatch(ActionSetRotation, true, always(func(st *State) {
		st.Player.Rotation = r
	}))
}

// SetPlayerMoving sets the moving flag.
func (s *Store) SetPlayerMoving(moving bool) {
	s.dispatch(ActionSetMoving, true, always(func(st *State) {
		st.Player.IsMoving = moving
	}))
}

// SetInteractionTarget sets what the player is facing. Empty clears it.
func (s *Store) SetInteractionTarget(target string) {
	s.dispatch(ActionSetInteractionTarget, true, always(func(st *State) {
		st.Player.InteractionTarget = target
	}))
}

// SetCurrentSample selects a sample. nil clears it.
func (s *Store) SetCurrentSample(sample *domain.Sample) {
	if sample != nil {
		cp := *sample
		sample = &cp
	}
	s.dispatch(ActionSetCurrentSample, true, always(func(st *State) {
		st.CurrentSample = sample
	}))
}

// SetInventory replaces the inventory.
func (s *Store) SetInventory(items []domain.InventoryItem) {
	items = cloneInventory(items)
	if items == nil {
		items = []domain.InventoryItem{}
	}
	s.dispatch(ActionSetInventory, true, always(func(st *State) {
		st.Inventory = items
	}))
}

// AddInventoryItem adds item. An item with the same id has its quantity
// increased instead.
func (s *Store) AddInventoryItem(item domain.InventoryItem) {
	item = cloneInventory([]domain.InventoryItem{item})[0]
	s.dispatch(ActionAddInventoryItem, true, always(func(st *State) {
		for i := range st.Inventory {
			if st.Inventory[i].ID == item.ID {
				st.Inventory[i].Quantity += item.Quantity
				return
			}
		}
		st.Inventory = append(st.Inventory, item)
	}))
}

// SetControls replaces the input state. Controls are never saved.
func (s *Store) SetControls(c Controls) {
	s.dispatch(ActionSetControls, false, always(func(st *State) {
		st.Controls = c
	}))
}

// ToggleLIMS flips the LIMS panel.
func (s *Store) ToggleLIMS() {
	s.dispatch(ActionToggleLIMS, true, always(func(st *State) {
		st.UI.ShowLIMS = !st.UI.ShowLIMS
	}))
}

// ToggleInventory flips the inventory panel.
func (s *Store) ToggleInventory() {
	s.dispatch(ActionToggleInventory, true, always(func(st *State) {
		st.UI.ShowInventory = !st.UI.ShowInventory
	}))
}

// ToggleMissions flips the missions panel.
func (s *Store) ToggleMissions() {
	s.dispatch(ActionToggleMissions, true, always(func(st *State) {
		st.UI.ShowMissions = !st.UI.ShowMissions
	}))
}

// ToggleQRScanner flips the QR scanner.
func (s *Store) ToggleQRScanner() {
	s.dispatch(ActionToggleQRScanner, true, always(func(st *State) {
		st.UI.ShowQRScanner = !st.UI.ShowQRScanner
	}))
}

// SetActiveEquipmentInterface opens the interface of equipmentID. Empty
// closes it.
func (s *Store) SetActiveEquipmentInterface(equipmentID string) {
	s.dispatch(ActionSetEquipmentInterface, true, always(func(st *State) {
		st.UI.ActiveEquipmentInterface = equipmentID
	}))
}

// NotificationInput is the caller-supplied part of a notification.
type NotificationInput struct {
	Type    domain.NotificationType
	Title   string
	Message string
}

// AddNotification appends an unread notification stamped with the current
// time and returns its id.
func (s *Store) AddNotification(in NotificationInput) string {
	n := domain.Notification{
		ID:        s.newID(),
		Type:      in.Type,
		Title:     in.Title,
		Message:   in.Message,
		Timestamp: s.clock.Now(),
	}
	if !n.Type.IsValid() {
		n.Type = domain.NotificationInfo
	}
	s.dispatch(ActionAddNotification, true, always(func(st *State) {
		st.UI.Notifications = append(st.UI.Notifications, n)
	}))
	return n.ID
}

// MarkNotificationRead marks one notification read.
func (s *Store) MarkNotificationRead(id string) {
	s.dispatch(ActionMarkNotificationRead, true, func(st *State) bool {
		for i := range st.UI.Notifications {
			if st.UI.Notifications[i].ID == id {
				st.UI.Notifications[i].Read = true
				return true
			}
		}
		return false
	})
}

// ClearNotifications empties the queue.
func (s *Store) ClearNotifications() {
	s.dispatch(ActionClearNotifications, true, always(func(st *State) {
		st.UI.Notifications = []domain.Notification{}
	}))
}

// SetError surfaces a failure to the player.
func (s *Store) SetError(msg string) {
	s.dispatch(ActionSetError, false, always(func(st *State) {
		st.UI.Error = msg
	}))
}

// ClearError dismisses the current failure.
func (s *Store) ClearError() {
	s.dispatch(ActionClearError, false, func(st *State) bool {
		if st.UI.Error == "" {
			return false
		}
		st.UI.Error = ""
		return true
	})
}

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// notificationID joins the millisecond time with nine random base36
// characters.
func notificationID(now time.Time) string {
	b := make([]byte, 9)
	for i := range b {
		b[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return strconv.FormatInt(now.UnixMilli(), 10) + string(b)
}
