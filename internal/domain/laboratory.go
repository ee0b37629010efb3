package domain

import "time"

// Laboratory is a shared workspace stored at laboratories/{id}.
//
// Invite codes are not checked for uniqueness when generated, so two
// laboratories may end up sharing one. Lookups by code resolve to the
// oldest match.
type Laboratory struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	OwnerID     string      `json:"ownerId"`
	Members     []Member    `json:"members"`
	MemberIDs   []string    `json:"memberIds"`
	InviteCode  string      `json:"inviteCode"`
	IsPublic    bool        `json:"isPublic"`
	Level       int         `json:"level"`
	Layout      LabLayout   `json:"layout"`
	Equipment   []Equipment `json:"equipment"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Member is an entry of Laboratory.Members.
type Member struct {
	UserID      string      `json:"userId"`
	DisplayName string      `json:"displayName"`
	Email       string      `json:"email"`
	Role        Role        `json:"role"`
	Permissions Permissions `json:"permissions"`
	JoinedAt    time.Time   `json:"joinedAt"`
}

// Permissions gate laboratory actions for non-owners.
type Permissions struct {
	CanManageMembers   bool `json:"canManageMembers"`
	CanManageEquipment bool `json:"canManageEquipment"`
	CanManageMissions  bool `json:"canManageMissions"`
	CanManageSamples   bool `json:"canManageSamples"`
	CanModifyLayout    bool `json:"canModifyLayout"`
}

// OwnerPermissions grants everything.
func OwnerPermissions() Permissions {
	return Permissions{
		CanManageMembers:   true,
		CanManageEquipment: true,
		CanManageMissions:  true,
		CanManageSamples:   true,
		CanModifyLayout:    true,
	}
}

// DefaultMemberPermissions are given to players joining by code.
func DefaultMemberPermissions() Permissions {
	return Permissions{CanManageMissions: true, CanManageSamples: true}
}

// Allows reports whether the permission set covers action.
func (p Permissions) Allows(action Action) bool {
	switch action {
	case ActionManageMembers:
		return p.CanManageMembers
	case ActionManageEquipment:
		return p.CanManageEquipment
	case ActionManageMissions:
		return p.CanManageMissions
	case ActionManageSamples:
		return p.CanManageSamples
	case ActionModifyLayout:
		return p.CanModifyLayout
	}
	return false
}

// LabLayout is the floor plan of a laboratory.
type LabLayout struct {
	Width   int         `json:"width"`
	Height  int         `json:"height"`
	Objects []LabObject `json:"objects"`
}

// LabObject is a placed piece of equipment, furniture or decoration.
type LabObject struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	EquipmentID string  `json:"equipmentId,omitempty"`
	Position    Vector3 `json:"position"`
	Rotation    Vector3 `json:"rotation"`
	Scale       Vector3 `json:"scale"`
}

// Equipment is an instrument owned by a laboratory. Prices and
// capabilities are content and are carried verbatim.
type Equipment struct {
	ID              string         `json:"id"`
	Type            string         `json:"type"`
	Name            string         `json:"name"`
	Brand           string         `json:"brand"`
	Model           string         `json:"model"`
	PurchasePrice   int            `json:"purchasePrice"`
	MaintenanceCost int            `json:"maintenanceCost"`
	Capabilities    []Capability   `json:"capabilities"`
	Status          string         `json:"status"`
	Configuration   map[string]any `json:"configuration"`
	PurchasedAt     time.Time      `json:"purchasedAt"`
	LastMaintenance time.Time      `json:"lastMaintenance"`
}

// Capability describes one analytical technique of an instrument.
type Capability struct {
	Technique      string   `json:"technique"`
	Matrices       []string `json:"matrices"`
	DetectionLimit float64  `json:"detectionLimit"`
	Accuracy       float64  `json:"accuracy"`
	Precision      float64  `json:"precision"`
	AnalysisTime   int      `json:"analysisTime"`
}

// Member returns the member entry for userID.
func (l *Laboratory) Member(userID string) (Member, bool) {
	for _, m := range l.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

// IsMember reports whether userID is in the member list.
func (l *Laboratory) IsMember(userID string) bool {
	_, ok := l.Member(userID)
	return ok
}

// CanPerform reports whether userID may perform action. The owner always can.
func (l *Laboratory) CanPerform(userID string, action Action) bool {
	if userID == l.OwnerID {
		return true
	}
	m, ok := l.Member(userID)
	if !ok {
		return false
	}
	return m.Permissions.Allows(action)
}
