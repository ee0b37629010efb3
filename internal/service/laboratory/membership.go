package laboratory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/heartmarshall/labsim/internal/auth"
	"github.com/heartmarshall/labsim/internal/docstore"
	"github.com/heartmarshall/labsim/internal/domain"
)

// JoinByCode adds user to the laboratory holding code as a plain member.
// When several laboratories share the code the oldest one is joined.
func (s *Service) JoinByCode(ctx context.Context, user auth.Identity, code string) (*domain.Laboratory, error) {
	if user.UID == "" {
		return nil, domain.ErrUnauthorized
	}
	code = NormalizeInviteCode(code)
	if !ValidInviteCode(code) {
		return nil, domain.ErrInvalidInviteCode
	}

	docs, err := s.store.Query(ctx, docstore.From(Collection).
		Where("inviteCode", docstore.OpEqual, code).
		Order("createdAt", false))
	if err != nil {
		return nil, fmt.Errorf("laboratory.JoinByCode: %w", err)
	}
	if len(docs) == 0 {
		return nil, domain.ErrInvalidInviteCode
	}
	if len(docs) > 1 {
		s.log.WarnContext(ctx, "invite code shared by several laboratories",
			slog.String("invite_code", code),
			slog.Int("matches", len(docs)),
			slog.String("lab_id", docs[0].Ref.ID),
		)
	}
	labID := docs[0].Ref.ID

	err = s.modify(ctx, labID, func(lab *domain.Laboratory) error {
		if lab.IsMember(user.UID) {
			return domain.ErrAlreadyMember
		}
		lab.Members = append(lab.Members, domain.Member{
			UserID:      user.UID,
			DisplayName: user.FallbackDisplayName(domain.DefaultDisplayName),
			Email:       user.Email,
			Role:        domain.RoleMember,
			Permissions: domain.DefaultMemberPermissions(),
			JoinedAt:    s.clock.Now().UTC(),
		})
		lab.MemberIDs = appendUnique(lab.MemberIDs, user.UID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("laboratory.JoinByCode: %w", err)
	}
	if err := s.profiles.AddLaboratory(ctx, user.UID, labID, true); err != nil {
		return nil, fmt.Errorf("laboratory.JoinByCode: link member: %w", err)
	}

	s.log.InfoContext(ctx, "member joined",
		slog.String("lab_id", labID),
		slog.String("user_id", user.UID),
	)

	return s.Get(ctx, labID)
}

// RemoveMember removes targetID from the laboratory. The owner can never
// be removed; otherwise actorID needs the owner role or canManageMembers.
func (s *Service) RemoveMember(ctx context.Context, labID, actorID, targetID string) error {
	err := s.modify(ctx, labID, func(lab *domain.Laboratory) error {
		if targetID == lab.OwnerID {
			return domain.ErrOwnerProtected
		}
		target, ok := lab.Member(targetID)
		if !ok {
			return domain.ErrMemberNotFound
		}
		if target.Role == domain.RoleOwner {
			return domain.ErrOwnerProtected
		}
		if err := requireManager(lab, actorID); err != nil {
			return err
		}
		removeMember(lab, targetID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("laboratory.RemoveMember: %w", err)
	}
	if err := s.profiles.RemoveLaboratory(ctx, targetID, labID); err != nil {
		return fmt.Errorf("laboratory.RemoveMember: unlink member: %w", err)
	}

	s.log.InfoContext(ctx, "member removed",
		slog.String("lab_id", labID),
		slog.String("actor_id", actorID),
		slog.String("user_id", targetID),
	)
	return nil
}

// UpdatePermissions replaces the permissions of targetID. The owner's
// permissions cannot be changed.
func (s *Service) UpdatePermissions(ctx context.Context, labID, actorID, targetID string, perms domain.Permissions) (*domain.Laboratory, error) {
	err := s.modify(ctx, labID, func(lab *domain.Laboratory) error {
		if err := requireManager(lab, actorID); err != nil {
			return err
		}
		i := slices.IndexFunc(lab.Members, func(m domain.Member) bool { return m.UserID == targetID })
		if i < 0 {
			return domain.ErrMemberNotFound
		}
		if targetID == lab.OwnerID || lab.Members[i].Role == domain.RoleOwner {
			return domain.ErrOwnerImmutable
		}
		lab.Members[i].Permissions = perms
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("laboratory.UpdatePermissions: %w", err)
	}

	s.log.InfoContext(ctx, "permissions updated",
		slog.String("lab_id", labID),
		slog.String("actor_id", actorID),
		slog.String("user_id", targetID),
	)
	return s.Get(ctx, labID)
}

// Leave removes uid from the laboratory. The owner cannot leave.
func (s *Service) Leave(ctx context.Context, labID, uid string) error {
	err := s.modify(ctx, labID, func(lab *domain.Laboratory) error {
		member, ok := lab.Member(uid)
		if !ok {
			return domain.ErrNotMember
		}
		if uid == lab.OwnerID || member.Role == domain.RoleOwner {
			return domain.ErrOwnerCannotLeave
		}
		removeMember(lab, uid)
		return nil
	})
	if err != nil {
		return fmt.Errorf("laboratory.Leave: %w", err)
	}
	if err := s.profiles.RemoveLaboratory(ctx, uid, labID); err != nil {
		return fmt.Errorf("laboratory.Leave: unlink member: %w", err)
	}

	s.log.InfoContext(ctx, "member left",
		slog.String("lab_id", labID),
		slog.String("user_id", uid),
	)
	return nil
}

// RegenerateInviteCode replaces the invite code and returns the new one.
// Like creation, the new code is not checked for uniqueness.
func (s *Service) RegenerateInviteCode(ctx context.Context, labID, actorID string) (string, error) {
	code := s.newCode()
	err := s.modify(ctx, labID, func(lab *domain.Laboratory) error {
		if err := requireManager(lab, actorID); err != nil {
			return err
		}
		lab.InviteCode = code
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("laboratory.RegenerateInviteCode: %w", err)
	}

	s.log.InfoContext(ctx, "invite code regenerated",
		slog.String("lab_id", labID),
		slog.String("actor_id", actorID),
	)
	return code, nil
}

func removeMember(lab *domain.Laboratory, uid string) {
	lab.Members = slices.DeleteFunc(lab.Members, func(m domain.Member) bool { return m.UserID == uid })
	lab.MemberIDs = slices.DeleteFunc(lab.MemberIDs, func(id string) bool { return id == uid })
}

func appendUnique(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}
