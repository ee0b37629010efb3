package domain

// Role is a laboratory member's role.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) String() string { return string(r) }

func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// MissionStatus tracks a mission through its lifecycle.
type MissionStatus string

const (
	MissionAvailable  MissionStatus = "available"
	MissionAccepted   MissionStatus = "accepted"
	MissionInProgress MissionStatus = "in_progress"
	MissionCompleted  MissionStatus = "completed"
	MissionFailed     MissionStatus = "failed"
	MissionExpired    MissionStatus = "expired"
)

func (s MissionStatus) String() string { return string(s) }

func (s MissionStatus) IsValid() bool {
	switch s {
	case MissionAvailable, MissionAccepted, MissionInProgress, MissionCompleted, MissionFailed, MissionExpired:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s MissionStatus) IsTerminal() bool {
	return s == MissionCompleted || s == MissionFailed || s == MissionExpired
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s MissionStatus) CanTransitionTo(next MissionStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case MissionAccepted:
		return s == MissionAvailable
	case MissionInProgress:
		return s == MissionAccepted
	case MissionCompleted:
		return s == MissionInProgress
	case MissionFailed:
		return s == MissionAccepted || s == MissionInProgress
	case MissionExpired:
		return true
	}
	return false
}

// MissionDifficulty is content metadata carried by a mission.
type MissionDifficulty string

const (
	DifficultyEasy   MissionDifficulty = "easy"
	DifficultyMedium MissionDifficulty = "medium"
	DifficultyHard   MissionDifficulty = "hard"
	DifficultyExpert MissionDifficulty = "expert"
)

func (d MissionDifficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyExpert:
		return true
	}
	return false
}

// SampleStatus tracks a sample through the lab.
type SampleStatus string

const (
	SampleReceived    SampleStatus = "received"
	SamplePreparation SampleStatus = "preparation"
	SampleAnalysis    SampleStatus = "analysis"
	SampleCompleted   SampleStatus = "completed"
	SampleArchived    SampleStatus = "archived"
	SampleRejected    SampleStatus = "rejected"
)

func (s SampleStatus) String() string { return string(s) }

func (s SampleStatus) IsValid() bool {
	switch s {
	case SampleReceived, SamplePreparation, SampleAnalysis, SampleCompleted, SampleArchived, SampleRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Samples move forward one step at a time; any sample still in the
// pipeline can be rejected.
func (s SampleStatus) CanTransitionTo(next SampleStatus) bool {
	switch next {
	case SamplePreparation:
		return s == SampleReceived
	case SampleAnalysis:
		return s == SamplePreparation
	case SampleCompleted:
		return s == SampleAnalysis
	case SampleArchived:
		return s == SampleCompleted
	case SampleRejected:
		return s == SampleReceived || s == SamplePreparation || s == SampleAnalysis
	}
	return false
}

// NotificationType controls how a notification is rendered.
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationInfo, NotificationSuccess, NotificationWarning, NotificationError:
		return true
	}
	return false
}

// Action is a laboratory operation gated by member permissions.
type Action string

const (
	ActionManageMembers   Action = "manage_members"
	ActionManageEquipment Action = "manage_equipment"
	ActionManageMissions  Action = "manage_missions"
	ActionManageSamples   Action = "manage_samples"
	ActionModifyLayout    Action = "modify_layout"
)
