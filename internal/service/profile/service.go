package profile

import (
	"context"
	"log/slog"

	"github.com/heartmarshall/labsim/internal/docstore"
	"github.com/heartmarshall/labsim/internal/domain"
)

// Document collections owned by this service.
const (
	UsersCollection    = "users"
	GameDataCollection = "userGameData"
)

type documentStore interface {
	Get(ctx context.Context, ref docstore.Ref) (*docstore.Document, error)
	Merge(ctx context.Context, ref docstore.Ref, data map[string]any) error
	Update(ctx context.Context, ref docstore.Ref, updates ...docstore.Update) error
	Mutate(ctx context.Context, ref docstore.Ref, fn docstore.MutateFunc) error
	Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error)
}

const DefaultLeaderboardLimit = 10

// Service persists player profiles and save snapshots.
type Service struct {
	store          documentStore
	startingBudget int
	log            *slog.Logger
}

// NewService creates a new profile service. startingBudget is the budget
// given to newly created profiles.
func NewService(log *slog.Logger, store documentStore, startingBudget int) *Service {
	return &Service{
		store:          store,
		startingBudget: startingBudget,
		log:            log.With("service", "profile"),
	}
}

func userRef(uid string) docstore.Ref { return docstore.Doc(UsersCollection, uid) }

func gameDataRef(uid string) docstore.Ref { return docstore.Doc(GameDataCollection, uid) }

func decodeProfile(doc *docstore.Document) (*domain.UserProfile, error) {
	var p domain.UserProfile
	if err := docstore.Decode(doc.Data, &p); err != nil {
		return nil, err
	}
	p.ID = doc.Ref.ID
	return &p, nil
}

func requireUID(uid string) error {
	if uid == "" {
		return domain.NewValidationError("uid", "required")
	}
	return nil
}
