package sample

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/heartmarshall/labsim/internal/docstore"
	"github.com/heartmarshall/labsim/internal/domain"
)

// Collection holds sample documents.
const Collection = "samples"

type documentStore interface {
	Get(ctx context.Context, ref docstore.Ref) (*docstore.Document, error)
	Create(ctx context.Context, ref docstore.Ref, data map[string]any) error
	Mutate(ctx context.Context, ref docstore.Ref, fn docstore.MutateFunc) error
	Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error)
}

type imageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	URL(ctx context.Context, key string) (string, error)
}

type permissionChecker interface {
	CanPerform(ctx context.Context, labID, uid string, action domain.Action) (bool, error)
}

type qrValidator interface {
	Validate(raw, laboratoryID string) (string, error)
}

type statsRecorder interface {
	IncrementStatistic(ctx context.Context, uid, name string, delta int) error
}

// Service manages QR-tracked samples.
type Service struct {
	store  documentStore
	images imageStore
	labs   permissionChecker
	qr     qrValidator
	stats  statsRecorder
	clock  clockwork.Clock
	log    *slog.Logger
}

// NewService creates a new sample service.
func NewService(
	log *slog.Logger,
	store documentStore,
	images imageStore,
	labs permissionChecker,
	qr qrValidator,
	stats statsRecorder,
	clock clockwork.Clock,
) *Service {
	return &Service{
		store:  store,
		images: images,
		labs:   labs,
		qr:     qr,
		stats:  stats,
		clock:  clock,
		log:    log.With("service", "sample"),
	}
}

func sampleRef(id string) docstore.Ref { return docstore.Doc(Collection, id) }

func decodeSample(doc *docstore.Document) (*domain.Sample, error) {
	var s domain.Sample
	if err := docstore.Decode(doc.Data, &s); err != nil {
		return nil, err
	}
	s.ID = doc.Ref.ID
	return &s, nil
}

func (s *Service) requirePermission(ctx context.Context, labID, uid string) error {
	if uid == "" {
		return domain.ErrUnauthorized
	}
	ok, err := s.labs.CanPerform(ctx, labID, uid, domain.ActionManageSamples)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInsufficientPerm
	}
	return nil
}
