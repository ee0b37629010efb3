package laboratory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/heartmarshall/labsim/internal/docstore"
	"github.com/heartmarshall/labsim/internal/domain"
)

// Collection holds laboratory documents.
const Collection = "laboratories"

type documentStore interface {
	Get(ctx context.Context, ref docstore.Ref) (*docstore.Document, error)
	Create(ctx context.Context, ref docstore.Ref, data map[string]any) error
	Mutate(ctx context.Context, ref docstore.Ref, fn docstore.MutateFunc) error
	Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error)
	Watch(ctx context.Context, ref docstore.Ref) (<-chan docstore.Change, error)
}

// profileLinker keeps users/{uid}.memberLaboratories in step with the
// member list.
type profileLinker interface {
	AddLaboratory(ctx context.Context, uid, labID string, makeCurrent bool) error
	RemoveLaboratory(ctx context.Context, uid, labID string) error
}

// Service manages laboratories and their members.
type Service struct {
	store    documentStore
	profiles profileLinker
	clock    clockwork.Clock
	newCode  func() string
	newID    func() string
	log      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithInviteCodes replaces the invite code generator.
func WithInviteCodes(gen func() string) Option { return func(s *Service) { s.newCode = gen } }

// WithIDs replaces the laboratory id generator.
func WithIDs(gen func() string) Option { return func(s *Service) { s.newID = gen } }

// NewService creates a new laboratory service.
func NewService(
	log *slog.Logger,
	store documentStore,
	profiles profileLinker,
	clock clockwork.Clock,
	opts ...Option,
) *Service {
	s := &Service{
		store:    store,
		profiles: profiles,
		clock:    clock,
		newCode:  GenerateInviteCode,
		newID:    newLaboratoryID,
		log:      log.With("service", "laboratory"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func labRef(id string) docstore.Ref { return docstore.Doc(Collection, id) }

func decodeLab(doc *docstore.Document) (*domain.Laboratory, error) {
	var lab domain.Laboratory
	if err := docstore.Decode(doc.Data, &lab); err != nil {
		return nil, err
	}
	lab.ID = doc.Ref.ID
	return &lab, nil
}

// modify runs fn on the decoded laboratory inside one atomic
// read-modify-write and bumps updatedAt. createdAt is written back
// untouched so its stored form keeps sorting.
func (s *Service) modify(ctx context.Context, labID string, fn func(lab *domain.Laboratory) error) error {
	return s.store.Mutate(ctx, labRef(labID), func(data map[string]any) (map[string]any, error) {
		if data == nil {
			return nil, fmt.Errorf("%s: %w", labRef(labID), domain.ErrNotFound)
		}
		var lab domain.Laboratory
		if err := docstore.Decode(data, &lab); err != nil {
			return nil, err
		}
		lab.ID = labID

		if err := fn(&lab); err != nil {
			return nil, err
		}

		next, err := docstore.Encode(lab)
		if err != nil {
			return nil, err
		}
		next = docstore.StripNil(next)
		if created, ok := data["createdAt"]; ok {
			next["createdAt"] = created
		}
		next["updatedAt"] = docstore.ServerTimestamp()
		return next, nil
	})
}

// requireManager returns nil if actorID may manage members of lab.
func requireManager(lab *domain.Laboratory, actorID string) error {
	if !lab.CanPerform(actorID, domain.ActionManageMembers) {
		return domain.ErrInsufficientPerm
	}
	return nil
}
