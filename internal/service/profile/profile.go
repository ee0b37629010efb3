package profile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/heartmarshall/labsim/internal/auth"
	"github.com/heartmarshall/labsim/internal/docstore"
	"github.com/heartmarshall/labsim/internal/domain"
)

// CreateOrUpdateProfile returns the profile for id, creating it with the
// starting values on first sign-in. For an existing profile only lastLogin
// changes.
func (s *Service) CreateOrUpdateProfile(ctx context.Context, id auth.Identity) (*domain.UserProfile, error) {
	if err := requireUID(id.UID); err != nil {
		return nil, err
	}

	created := false
	err := s.store.Mutate(ctx, userRef(id.UID), func(data map[string]any) (map[string]any, error) {
		if data != nil {
			created = false
			data["lastLogin"] = docstore.ServerTimestamp()
			return data, nil
		}

		created = true
		fresh, err := docstore.Encode(s.newProfile(id))
		if err != nil {
			return nil, err
		}
		fresh["createdAt"] = docstore.ServerTimestamp()
		fresh["lastLogin"] = docstore.ServerTimestamp()
		return docstore.StripNil(fresh), nil
	})
	if err != nil {
		return nil, fmt.Errorf("profile.CreateOrUpdateProfile: %w", err)
	}

	p, err := s.GetProfile(ctx, id.UID)
	if err != nil {
		return nil, err
	}

	if created {
		s.log.InfoContext(ctx, "profile created",
			slog.String("uid", id.UID),
			slog.String("display_name", p.DisplayName),
		)
	}
	return p, nil
}

func (s *Service) newProfile(id auth.Identity) domain.UserProfile {
	return domain.UserProfile{
		ID:                 id.UID,
		Email:              id.Email,
		DisplayName:        id.FallbackDisplayName(domain.DefaultDisplayName),
		PhotoURL:           id.PhotoURL,
		Level:              domain.StartingLevel,
		Experience:         domain.StartingExperience,
		Budget:             s.startingBudget,
		MemberLaboratories: []string{},
		Preferences:        domain.DefaultPreferences(),
	}
}

// GetProfile returns the profile for uid or an error wrapping
// domain.ErrNotFound.
func (s *Service) GetProfile(ctx context.Context, uid string) (*domain.UserProfile, error) {
	if err := requireUID(uid); err != nil {
		return nil, err
	}

	doc, err := s.store.Get(ctx, userRef(uid))
	if err != nil {
		return nil, fmt.Errorf("profile.GetProfile: %w", err)
	}
	p, err := decodeProfile(doc)
	if err != nil {
		return nil, fmt.Errorf("profile.GetProfile: %w", err)
	}
	return p, nil
}

// UpdateProfile applies a partial update of the display name and
// preferences.
func (s *Service) UpdateProfile(ctx context.Context, uid string, input UpdateProfileInput) (*domain.UserProfile, error) {
	if err := requireUID(uid); err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	updates := input.updates()
	if len(updates) > 0 {
		if err := s.store.Update(ctx, userRef(uid), updates...); err != nil {
			return nil, fmt.Errorf("profile.UpdateProfile: %w", err)
		}
	}

	return s.GetProfile(ctx, uid)
}

// SetCurrentLaboratory records the laboratory the player is working in.
func (s *Service) SetCurrentLaboratory(ctx context.Context, uid, labID string) error {
	if err := requireUID(uid); err != nil {
		return err
	}
	if err := s.store.Update(ctx, userRef(uid), docstore.Field("currentLaboratoryId", labID)); err != nil {
		return fmt.Errorf("profile.SetCurrentLaboratory: %w", err)
	}
	return nil
}

// AddLaboratory adds labID to the player's memberships. When makeCurrent is
// set the laboratory also becomes the current one.
func (s *Service) AddLaboratory(ctx context.Context, uid, labID string, makeCurrent bool) error {
	if err := requireUID(uid); err != nil {
		return err
	}

	updates := []docstore.Update{docstore.Field("memberLaboratories", docstore.ArrayUnion(labID))}
	if makeCurrent {
		updates = append(updates, docstore.Field("currentLaboratoryId", labID))
	}
	if err := s.store.Update(ctx, userRef(uid), updates...); err != nil {
		return fmt.Errorf("profile.AddLaboratory: %w", err)
	}
	return nil
}

// RemoveLaboratory drops labID from the player's memberships and clears it
// as current laboratory.
func (s *Service) RemoveLaboratory(ctx context.Context, uid, labID string) error {
	if err := requireUID(uid); err != nil {
		return err
	}

	err := s.store.Mutate(ctx, userRef(uid), func(data map[string]any) (map[string]any, error) {
		if data == nil {
			return nil, nil
		}
		data["memberLaboratories"] = docstore.ArrayRemove(labID)
		if data["currentLaboratoryId"] == labID {
			data["currentLaboratoryId"] = ""
		}
		return data, nil
	})
	if err != nil {
		return fmt.Errorf("profile.RemoveLaboratory: %w", err)
	}
	return nil
}

// Leaderboard returns the profiles with the most experience. A limit of
// zero or less uses DefaultLeaderboardLimit.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]domain.UserProfile, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	docs, err := s.store.Query(ctx, docstore.From(UsersCollection).Order("experience", true).Take(limit))
	if err != nil {
		return nil, fmt.Errorf("profile.Leaderboard: %w", err)
	}

	out := make([]domain.UserProfile, 0, len(docs))
	for i := range docs {
		p, err := decodeProfile(&docs[i])
		if err != nil {
			return nil, fmt.Errorf("profile.Leaderboard: %w", err)
		}
		out = append(out, *p)
	}
	return out, nil
}
