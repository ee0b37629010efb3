package laboratory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/heartmarshall/labsim/internal/docstore"
	"github.com/heartmarshall/labsim/internal/domain"
)

// Get returns the laboratory or an error wrapping domain.ErrNotFound.
func (s *Service) Get(ctx context.Context, labID string) (*domain.Laboratory, error) {
	doc, err := s.store.Get(ctx, labRef(labID))
	if err != nil {
		return nil, fmt.Errorf("laboratory.Get: %w", err)
	}
	lab, err := decodeLab(doc)
	if err != nil {
		return nil, fmt.Errorf("laboratory.Get: %w", err)
	}
	return lab, nil
}

// ListForUser returns the laboratories uid belongs to, oldest first.
func (s *Service) ListForUser(ctx context.Context, uid string) ([]domain.Laboratory, error) {
	if uid == "" {
		return nil, domain.ErrUnauthorized
	}

	docs, err := s.store.Query(ctx, docstore.From(Collection).
		Where("memberIds", docstore.OpArrayContains, uid).
		Order("createdAt", false))
	if err != nil {
		return nil, fmt.Errorf("laboratory.ListForUser: %w", err)
	}

	labs := make([]domain.Laboratory, 0, len(docs))
	for i := range docs {
		lab, err := decodeLab(&docs[i])
		if err != nil {
			return nil, fmt.Errorf("laboratory.ListForUser: %w", err)
		}
		labs = append(labs, *lab)
	}
	return labs, nil
}

// CanPerform reports whether uid may perform action in the laboratory.
// A missing laboratory or a non-member yields false.
func (s *Service) CanPerform(ctx context.Context, labID, uid string, action domain.Action) (bool, error) {
	lab, err := s.Get(ctx, labID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return lab.CanPerform(uid, action), nil
}

// Watch streams versions of the laboratory, starting with the current one.
// The channel is closed when ctx is done or the laboratory is deleted.
func (s *Service) Watch(ctx context.Context, labID string) (<-chan domain.Laboratory, error) {
	ctx, cancel := context.WithCancel(ctx)

	changes, err := s.store.Watch(ctx, labRef(labID))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("laboratory.Watch: %w", err)
	}
	first, err := s.Get(ctx, labID)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan domain.Laboratory, 1)
	out <- *first

	go func() {
		defer cancel()
		defer close(out)
		for change := range changes {
			if change.Deleted {
				return
			}
			lab, err := s.Get(ctx, labID)
			if err != nil {
				if ctx.Err() == nil {
					s.log.WarnContext(ctx, "watch reload failed",
						slog.String("lab_id", labID),
						slog.String("error", err.Error()),
					)
				}
				continue
			}
			select {
			case out <- *lab:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
