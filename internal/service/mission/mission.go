package mission

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/heartmarshall/labsim/internal/docstore"
	"github.com/heartmarshall/labsim/internal/domain"
	"github.com/heartmarshall/labsim/internal/service/profile"
)

// Create publishes a mission in the laboratory. uid needs
// canManageMissions.
func (s *Service) Create(ctx context.Context, uid string, input CreateInput) (*domain.Mission, error) {
	now := s.clock.Now().UTC()
	if err := input.Validate(now); err != nil {
		return nil, err
	}
	labID := strings.TrimSpace(input.LaboratoryID)
	if err := s.requirePermission(ctx, labID, uid); err != nil {
		return nil, fmt.Errorf("mission.Create: %w", err)
	}

	objectives := make([]domain.MissionObjective, len(input.Objectives))
	for i, o := range input.Objectives {
		objectives[i] = domain.MissionObjective{
			ID:               "obj-" + strconv.Itoa(i+1),
			Description:      strings.TrimSpace(o.Description),
			TargetCompound:   o.TargetCompound,
			RequiredAccuracy: o.RequiredAccuracy,
		}
	}
	equipment := input.RequiredEquipment
	if equipment == nil {
		equipment = []string{}
	}

	m := domain.Mission{
		ID:                newMissionID(),
		LaboratoryID:      labID,
		Title:             strings.TrimSpace(input.Title),
		Description:       strings.TrimSpace(input.Description),
		Client:            strings.TrimSpace(input.Client),
		Difficulty:        input.Difficulty,
		Objectives:        objectives,
		Rewards:           input.Rewards,
		RequiredEquipment: equipment,
		Deadline:          input.Deadline,
		Status:            domain.MissionAvailable,
	}

	data, err := docstore.Encode(m)
	if err != nil {
		return nil, fmt.Errorf("mission.Create: %w", err)
	}
	data = docstore.StripNil(data)
	data["createdAt"] = docstore.ServerTimestamp()

	if err := s.store.Create(ctx, missionRef(m.ID), data); err != nil {
		return nil, fmt.Errorf("mission.Create: %w", err)
	}

	s.log.InfoContext(ctx, "mission created",
		slog.String("mission_id", m.ID),
		slog.String("lab_id", labID),
	)
	return s.Get(ctx, m.ID)
}

// Get returns the mission. A mission whose deadline passed is reported as
// expired.
func (s *Service) Get(ctx context.Context, id string) (*domain.Mission, error) {
	doc, err := s.store.Get(ctx, missionRef(id))
	if err != nil {
		return nil, fmt.Errorf("mission.Get: %w", err)
	}
	m, err := decodeMission(doc)
	if err != nil {
		return nil, fmt.Errorf("mission.Get: %w", err)
	}
	reportExpiry(m, s.clock.Now())
	return m, nil
}

// ListAvailable returns the laboratory's missions that can still be
// accepted, newest first.
func (s *Service) ListAvailable(ctx context.Context, labID string) ([]domain.Mission, error) {
	docs, err := s.store.Query(ctx, docstore.From(Collection).
		Where("laboratoryId", docstore.OpEqual, labID).
		Where("status", docstore.OpEqual, string(domain.MissionAvailable)).
		Order("createdAt", true))
	if err != nil {
		return nil, fmt.Errorf("mission.ListAvailable: %w", err)
	}

	now := s.clock.Now()
	out := make([]domain.Mission, 0, len(docs))
	for i := range docs {
		m, err := decodeMission(&docs[i])
		if err != nil {
			return nil, fmt.Errorf("mission.ListAvailable: %w", err)
		}
		if m.IsExpired(now) {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

// Accept assigns an available mission to uid.
func (s *Service) Accept(ctx context.Context, uid, id string) (*domain.Mission, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requirePermission(ctx, current.LaboratoryID, uid); err != nil {
		return nil, fmt.Errorf("mission.Accept: %w", err)
	}

	m, err := s.transition(ctx, id, func(m *domain.Mission, now time.Time) error {
		if err := move(m, domain.MissionAccepted); err != nil {
			return err
		}
		m.AssignedTo = uid
		m.AcceptedAt = &now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mission.Accept: %w", err)
	}

	s.log.InfoContext(ctx, "mission accepted",
		slog.String("mission_id", id),
		slog.String("user_id", uid),
	)
	return m, nil
}

// Start begins work on an accepted mission.
func (s *Service) Start(ctx context.Context, uid, id string) (*domain.Mission, error) {
	m, err := s.transition(ctx, id, func(m *domain.Mission, _ time.Time) error {
		if err := requireAssignee(m, uid); err != nil {
			return err
		}
		return move(m, domain.MissionInProgress)
	})
	if err != nil {
		return nil, fmt.Errorf("mission.Start: %w", err)
	}
	return m, nil
}

// CompleteObjective marks one objective of an in-progress mission done.
func (s *Service) CompleteObjective(ctx context.Context, uid, id, objectiveID string) (*domain.Mission, error) {
	m, err := s.transition(ctx, id, func(m *domain.Mission, _ time.Time) error {
		if err := requireAssignee(m, uid); err != nil {
			return err
		}
		if m.Status != domain.MissionInProgress {
			return domain.ErrInvalidTransition
		}
		for i := range m.Objectives {
			if m.Objectives[i].ID == objectiveID {
				m.Objectives[i].Completed = true
				return nil
			}
		}
		return domain.ErrObjectiveNotFound
	})
	if err != nil {
		return nil, fmt.Errorf("mission.CompleteObjective: %w", err)
	}
	return m, nil
}

// CompletionResult is returned by Complete.
type CompletionResult struct {
	Mission    domain.Mission            `json:"mission"`
	Experience *profile.ExperienceResult `json:"experience,omitempty"`
}

// Complete finishes an in-progress mission whose objectives are all done,
// pays out the mission's experience reward and counts the completion.
func (s *Service) Complete(ctx context.Context, uid, id string) (*CompletionResult, error) {
	m, err := s.transition(ctx, id, func(m *domain.Mission, now time.Time) error {
		if err := requireAssignee(m, uid); err != nil {
			return err
		}
		if m.Status == domain.MissionInProgress && !m.AllObjectivesCompleted() {
			return domain.ErrObjectivesPending
		}
		if err := move(m, domain.MissionCompleted); err != nil {
			return err
		}
		m.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mission.Complete: %w", err)
	}

	res := &CompletionResult{Mission: *m}
	if m.Rewards.Experience > 0 {
		xp, err := s.rewards.AddExperience(ctx, uid, m.Rewards.Experience)
		if err != nil {
			return nil, fmt.Errorf("mission.Complete: reward: %w", err)
		}
		res.Experience = xp
	}
	if err := s.rewards.IncrementStatistic(ctx, uid, "missionsCompleted", 1); err != nil {
		return nil, fmt.Errorf("mission.Complete: statistics: %w", err)
	}

	s.log.InfoContext(ctx, "mission completed",
		slog.String("mission_id", id),
		slog.String("user_id", uid),
		slog.Int("experience", m.Rewards.Experience),
	)
	return res, nil
}

// Fail abandons an accepted or in-progress mission.
func (s *Service) Fail(ctx context.Context, uid, id string) (*domain.Mission, error) {
	m, err := s.transition(ctx, id, func(m *domain.Mission, _ time.Time) error {
		if err := requireAssignee(m, uid); err != nil {
			return err
		}
		return move(m, domain.MissionFailed)
	})
	if err != nil {
		return nil, fmt.Errorf("mission.Fail: %w", err)
	}

	s.log.InfoContext(ctx, "mission failed",
		slog.String("mission_id", id),
		slog.String("user_id", uid),
	)
	return m, nil
}
