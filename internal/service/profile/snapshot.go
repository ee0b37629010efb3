package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/heartmarshall/labsim/internal/docstore"
	"github.com/heartmarshall/labsim/internal/domain"
)

// SaveSnapshot merge-writes snap to userGameData/{uid}. Fields left out of
// snap keep their stored value. userId and a server-assigned lastSaved are
// always written.
func (s *Service) SaveSnapshot(ctx context.Context, uid string, snap domain.SaveGame) error {
	if err := requireUID(uid); err != nil {
		return err
	}

	data, err := docstore.Encode(snap)
	if err != nil {
		return fmt.Errorf("profile.SaveSnapshot: %w", err)
	}
	data = docstore.StripNil(data)
	data["userId"] = uid
	data["lastSaved"] = docstore.ServerTimestamp()

	if err := s.store.Merge(ctx, gameDataRef(uid), data); err != nil {
		return fmt.Errorf("profile.SaveSnapshot: %w", err)
	}

	s.log.DebugContext(ctx, "snapshot saved", slog.String("uid", uid))
	return nil
}

// LoadSnapshot returns the saved snapshot, or nil when none exists.
func (s *Service) LoadSnapshot(ctx context.Context, uid string) (*domain.SaveGame, error) {
	if err := requireUID(uid); err != nil {
		return nil, err
	}

	doc, err := s.store.Get(ctx, gameDataRef(uid))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("profile.LoadSnapshot: %w", err)
	}

	var snap domain.SaveGame
	if err := docstore.Decode(doc.Data, &snap); err != nil {
		return nil, fmt.Errorf("profile.LoadSnapshot: %w", err)
	}
	return &snap, nil
}
