package mission

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/heartmarshall/labsim/internal/docstore"
	"github.com/heartmarshall/labsim/internal/domain"
	"github.com/heartmarshall/labsim/internal/service/profile"
)

// Collection holds mission documents.
const Collection = "missions"

type documentStore interface {
	Get(ctx context.Context, ref docstore.Ref) (*docstore.Document, error)
	Create(ctx context.Context, ref docstore.Ref, data map[string]any) error
	Mutate(ctx context.Context, ref docstore.Ref, fn docstore.MutateFunc) error
	Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error)
}

type permissionChecker interface {
	CanPerform(ctx context.Context, labID, uid string, action domain.Action) (bool, error)
}

type rewarder interface {
	AddExperience(ctx context.Context, uid string, amount int) (*profile.ExperienceResult, error)
	IncrementStatistic(ctx context.Context, uid, name string, delta int) error
}

// Service runs missions through their lifecycle.
type Service struct {
	store   documentStore
	labs    permissionChecker
	rewards rewarder
	clock   clockwork.Clock
	log     *slog.Logger
}

// NewService creates a new mission service.
func NewService(
	log *slog.Logger,
	store documentStore,
	labs permissionChecker,
	rewards rewarder,
	clock clockwork.Clock,
) *Service {
	return &Service{
		store:   store,
		labs:    labs,
		rewards: rewards,
		clock:   clock,
		log:     log.With("service", "mission"),
	}
}

func missionRef(id string) docstore.Ref { return docstore.Doc(Collection, id) }

func newMissionID() string { return uuid.NewString() }

func decodeMission(doc *docstore.Document) (*domain.Mission, error) {
	var m domain.Mission
	if err := docstore.Decode(doc.Data, &m); err != nil {
		return nil, err
	}
	m.ID = doc.Ref.ID
	return &m, nil
}

// reportExpiry marks a mission whose deadline passed as expired without
// persisting it.
func reportExpiry(m *domain.Mission, now time.Time) {
	if !m.Status.IsTerminal() && m.IsExpired(now) {
		m.Status = domain.MissionExpired
	}
}

func (s *Service) requirePermission(ctx context.Context, labID, uid string) error {
	if uid == "" {
		return domain.ErrUnauthorized
	}
	ok, err := s.labs.CanPerform(ctx, labID, uid, domain.ActionManageMissions)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInsufficientPerm
	}
	return nil
}

// transition runs fn on the stored mission in one atomic read-modify-write.
// A mission found past its deadline is persisted as expired and
// domain.ErrMissionExpired is returned instead of running fn.
func (s *Service) transition(ctx context.Context, id string, fn func(m *domain.Mission, now time.Time) error) (*domain.Mission, error) {
	var (
		result  domain.Mission
		expired bool
	)
	err := s.store.Mutate(ctx, missionRef(id), func(data map[string]any) (map[string]any, error) {
		if data == nil {
			return nil, fmt.Errorf("%s: %w", missionRef(id), domain.ErrNotFound)
		}
		var m domain.Mission
		if err := docstore.Decode(data, &m); err != nil {
			return nil, err
		}
		m.ID = id

		now := s.clock.Now().UTC()
		expired = false
		if !m.Status.IsTerminal() && m.IsExpired(now) {
			expired = true
			m.Status = domain.MissionExpired
		} else if err := fn(&m, now); err != nil {
			return nil, err
		}
		result = m

		next, err := docstore.Encode(m)
		if err != nil {
			return nil, err
		}
		next = docstore.StripNil(next)
		if created, ok := data["createdAt"]; ok {
			next["createdAt"] = created
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		s.log.InfoContext(ctx, "mission expired", slog.String("mission_id", id))
		return nil, domain.ErrMissionExpired
	}
	return &result, nil
}

func move(m *domain.Mission, next domain.MissionStatus) error {
	if !m.Status.CanTransitionTo(next) {
		return domain.ErrInvalidTransition
	}
	m.Status = next
	return nil
}

func requireAssignee(m *domain.Mission, uid string) error {
	if uid == "" {
		return domain.ErrUnauthorized
	}
	if m.AssignedTo != uid {
		return domain.ErrNotAssignee
	}
	return nil
}
