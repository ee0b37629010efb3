package domain

import "time"

// Mission is a client job carried out by a laboratory. Rewards are content
// supplied with the mission and are never computed here.
type Mission struct {
	ID                string             `json:"id"`
	LaboratoryID      string             `json:"laboratoryId"`
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	Client            string             `json:"client"`
	Difficulty        MissionDifficulty  `json:"difficulty"`
	Objectives        []MissionObjective `json:"objectives"`
	Rewards           MissionReward      `json:"rewards"`
	RequiredEquipment []string           `json:"requiredEquipment"`
	Deadline          *time.Time         `json:"deadline,omitempty"`
	Status            MissionStatus      `json:"status"`
	AssignedTo        string             `json:"assignedTo,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	AcceptedAt        *time.Time         `json:"acceptedAt,omitempty"`
	CompletedAt       *time.Time         `json:"completedAt,omitempty"`
}

// MissionObjective is a single measurable goal.
type MissionObjective struct {
	ID               string  `json:"id"`
	Description      string  `json:"description"`
	TargetCompound   string  `json:"targetCompound,omitempty"`
	RequiredAccuracy float64 `json:"requiredAccuracy,omitempty"`
	Completed        bool    `json:"completed"`
}

// MissionReward is paid out on completion.
type MissionReward struct {
	Money      int      `json:"money"`
	Experience int      `json:"experience"`
	Unlocks    []string `json:"unlocks,omitempty"`
}

// IsExpired reports whether the deadline has passed at now.
func (m *Mission) IsExpired(now time.Time) bool {
	return m.Deadline != nil && now.After(*m.Deadline)
}

// AllObjectivesCompleted reports whether every objective is done.
func (m *Mission) AllObjectivesCompleted() bool {
	for _, o := range m.Objectives {
		if !o.Completed {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (m Mission) Clone() Mission {
	out := m
	out.Objectives = append([]MissionObjective(nil), m.Objectives...)
	out.RequiredEquipment = append([]string(nil), m.RequiredEquipment...)
	out.Rewards.Unlocks = append([]string(nil), m.Rewards.Unlocks...)
	return out
}
