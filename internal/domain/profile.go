package domain

import (
	"math"
	"time"
)

// UserProfile is stored at users/{uid}.
type UserProfile struct {
	ID                  string      `json:"uid"`
	Email               string      `json:"email"`
	DisplayName         string      `json:"displayName"`
	PhotoURL            string      `json:"photoURL,omitempty"`
	Level               int         `json:"level"`
	Experience          int         `json:"experience"`
	Budget              int         `json:"budget"`
	CurrentLaboratoryID string      `json:"currentLaboratoryId"`
	MemberLaboratories  []string    `json:"memberLaboratories"`
	Preferences         Preferences `json:"preferences"`
	Statistics          Statistics  `json:"statistics"`
	CreatedAt           time.Time   `json:"createdAt"`
	LastLogin           time.Time   `json:"lastLogin"`
}

// Preferences are per-player settings.
type Preferences struct {
	Language      string `json:"language"`
	Theme         string `json:"theme"`
	Notifications bool   `json:"notifications"`
	AutoSave      bool   `json:"autoSave"`
}

// Statistics are lifetime counters.
type Statistics struct {
	MissionsCompleted  int `json:"missionsCompleted"`
	SamplesAnalyzed    int `json:"samplesAnalyzed"`
	TotalExperience    int `json:"totalExperience"`
	TotalPlayTime      int `json:"totalPlayTime"`
	EquipmentPurchased int `json:"equipmentPurchased"`
}

// Starting values for a new profile.
const (
	StartingLevel      = 1
	StartingExperience = 0
	DefaultDisplayName = "Utilisateur"
)

// DefaultPreferences returns the preferences given to new profiles.
func DefaultPreferences() Preferences {
	return Preferences{Language: "fr", Theme: "light", Notifications: true, AutoSave: true}
}

// LevelForExperience maps experience to a level: floor(sqrt(xp/100)) + 1.
// Negative experience counts as zero.
func LevelForExperience(experience int) int {
	if experience <= 0 {
		return StartingLevel
	}
	return int(math.Floor(math.Sqrt(float64(experience)/100))) + 1
}

// IsMemberOf reports whether labID is in the profile's membership list.
func (p *UserProfile) IsMemberOf(labID string) bool {
	for _, id := range p.MemberLaboratories {
		if id == labID {
			return true
		}
	}
	return false
}
