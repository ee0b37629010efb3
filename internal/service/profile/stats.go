package profile

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/heartmarshall/labsim/internal/docstore"
	"github.com/heartmarshall/labsim/internal/domain"
)

// UpdateStatistics overwrites the statistics counters set in partial and
// keeps the others. The read-modify-write is atomic.
func (s *Service) UpdateStatistics(ctx context.Context, uid string, partial StatisticsUpdate) (*domain.Statistics, error) {
	if err := requireUID(uid); err != nil {
		return nil, err
	}
	if err := partial.Validate(); err != nil {
		return nil, err
	}

	var result domain.Statistics
	err := s.store.Mutate(ctx, userRef(uid), func(data map[string]any) (map[string]any, error) {
		if data == nil {
			return nil, fmt.Errorf("%s: %w", userRef(uid), domain.ErrNotFound)
		}
		var p domain.UserProfile
		if err := docstore.Decode(data, &p); err != nil {
			return nil, err
		}
		result = partial.apply(p.Statistics)

		stats, err := docstore.Encode(result)
		if err != nil {
			return nil, err
		}
		data["statistics"] = stats
		return data, nil
	})
	if err != nil {
		return nil, fmt.Errorf("profile.UpdateStatistics: %w", err)
	}
	return &result, nil
}

// ExperienceResult reports the outcome of AddExperience.
type ExperienceResult struct {
	Experience    int  `json:"experience"`
	PreviousLevel int  `json:"previousLevel"`
	Level         int  `json:"level"`
	LeveledUp     bool `json:"leveledUp"`
}

// AddExperience atomically adds amount to the player's experience,
// recomputes the level and increments statistics.totalExperience.
func (s *Service) AddExperience(ctx context.Context, uid string, amount int) (*ExperienceResult, error) {
	if err := requireUID(uid); err != nil {
		return nil, err
	}
	if amount < 0 {
		return nil, domain.NewValidationError("amount", "must be >= 0")
	}

	var res ExperienceResult
	err := s.store.Mutate(ctx, userRef(uid), func(data map[string]any) (map[string]any, error) {
		if data == nil {
			return nil, fmt.Errorf("%s: %w", userRef(uid), domain.ErrNotFound)
		}
		var p domain.UserProfile
		if err := docstore.Decode(data, &p); err != nil {
			return nil, err
		}

		res.Experience = p.Experience + amount
		res.PreviousLevel = domain.LevelForExperience(p.Experience)
		res.Level = domain.LevelForExperience(res.Experience)
		res.LeveledUp = res.Level > res.PreviousLevel

		stats, _ := data["statistics"].(map[string]any)
		if stats == nil {
			stats = map[string]any{}
		}
		stats["totalExperience"] = docstore.Increment(float64(amount))
		data["statistics"] = stats
		data["experience"] = res.Experience
		data["level"] = res.Level
		return data, nil
	})
	if err != nil {
		return nil, fmt.Errorf("profile.AddExperience: %w", err)
	}

	if res.LeveledUp {
		s.log.InfoContext(ctx, "level up",
			slog.String("uid", uid),
			slog.Int("level", res.Level),
		)
	}
	return &res, nil
}

var statisticFields = []string{
	"missionsCompleted",
	"samplesAnalyzed",
	"totalExperience",
	"totalPlayTime",
	"equipmentPurchased",
}

// IncrementStatistic adds delta to one statistics counter without reading
// the profile first.
func (s *Service) IncrementStatistic(ctx context.Context, uid, name string, delta int) error {
	if err := requireUID(uid); err != nil {
		return err
	}
	if !slices.Contains(statisticFields, name) {
		return domain.NewValidationError("statistic", "unknown counter "+name)
	}

	if err := s.store.Update(ctx, userRef(uid), docstore.Field("statistics."+name, docstore.Increment(float64(delta)))); err != nil {
		return fmt.Errorf("profile.IncrementStatistic: %w", err)
	}
	return nil
}
