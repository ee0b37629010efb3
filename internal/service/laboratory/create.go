package laboratory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/heartmarshall/labsim/internal/auth"
	"github.com/heartmarshall/labsim/internal/docstore"
	"github.com/heartmarshall/labsim/internal/domain"
)

// Default floor plan of a new laboratory.
const (
	DefaultLayoutWidth  = 20
	DefaultLayoutHeight = 15
)

// Create creates a laboratory owned by owner. The owner gets every
// permission and the laboratory becomes their current one.
func (s *Service) Create(ctx context.Context, owner auth.Identity, input CreateInput) (*domain.Laboratory, error) {
	if owner.UID == "" {
		return nil, domain.ErrUnauthorized
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	lab := domain.Laboratory{
		ID:          s.newID(),
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		OwnerID:     owner.UID,
		Members: []domain.Member{{
			UserID:      owner.UID,
			DisplayName: owner.FallbackDisplayName(domain.DefaultDisplayName),
			Email:       owner.Email,
			Role:        domain.RoleOwner,
			Permissions: domain.OwnerPermissions(),
			JoinedAt:    now,
		}},
		MemberIDs:  []string{owner.UID},
		InviteCode: s.newCode(),
		IsPublic:   input.IsPublic,
		Level:      1,
		Layout:     defaultLayout(),
		Equipment:  starterEquipment(now),
	}

	data, err := docstore.Encode(lab)
	if err != nil {
		return nil, fmt.Errorf("laboratory.Create: %w", err)
	}
	data = docstore.StripNil(data)
	data["createdAt"] = docstore.ServerTimestamp()
	data["updatedAt"] = docstore.ServerTimestamp()

	if err := s.store.Create(ctx, labRef(lab.ID), data); err != nil {
		return nil, fmt.Errorf("laboratory.Create: %w", err)
	}
	if err := s.profiles.AddLaboratory(ctx, owner.UID, lab.ID, true); err != nil {
		return nil, fmt.Errorf("laboratory.Create: link owner: %w", err)
	}

	s.log.InfoContext(ctx, "laboratory created",
		slog.String("lab_id", lab.ID),
		slog.String("owner_id", owner.UID),
	)

	return s.Get(ctx, lab.ID)
}

func defaultLayout() domain.LabLayout {
	return domain.LabLayout{
		Width:  DefaultLayoutWidth,
		Height: DefaultLayoutHeight,
		Objects: []domain.LabObject{{
			ID:       "basic-bench",
			Type:     "furniture",
			Position: domain.Vector3{X: 5, Y: 0, Z: 5},
			Scale:    domain.Vector3{X: 1, Y: 1, Z: 1},
		}},
	}
}

// starterEquipment is the content every new laboratory starts with.
func starterEquipment(now time.Time) []domain.Equipment {
	return []domain.Equipment{{
		ID:              "starter-balance",
		Type:            "balance",
		Name:            "Balance Analytique Basique",
		Brand:           "LabTech",
		Model:           "LT-200",
		PurchasePrice:   2000,
		MaintenanceCost: 50,
		Capabilities: []domain.Capability{{
			Technique:      "pesage",
			Matrices:       []string{"solid", "liquid"},
			DetectionLimit: 0.1,
			Accuracy:       0.01,
			Precision:      0.005,
			AnalysisTime:   1,
		}},
		Status:          "operational",
		Configuration:   map[string]any{},
		PurchasedAt:     now,
		LastMaintenance: now,
	}}
}
