package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jasonachkar/persuade/models"
	"github.com/jasonachkar/persuade/repository"
)

// ScenarioSeeder writes the default scenario options into an empty store
type ScenarioSeeder struct {
	repo repository.ScenarioRepository
}

func NewScenarioSeeder(repo repository.ScenarioRepository) *ScenarioSeeder {
	return &ScenarioSeeder{repo: repo}
}

// SeedIfEmpty fills every empty category with its defaults (idempotent).
// Categories that already hold options are left alone.
func (s *ScenarioSeeder) SeedIfEmpty(ctx context.Context) (*models.ScenarioOptions, error) {
	current, err := s.repo.GetScenarioOptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	if !current.NeedsSeed() && len(current.Products) > 0 {
		slog.Debug("Scenario options already seeded, skipping")
		return current, nil
	}

	defaults := models.DefaultScenarioOptions()
	seeded := *current
	for _, category := range []string{models.CategoryDifficulty, models.CategoryEmotion, models.CategoryProduct} {
		if len(current.List(category)) > 0 {
			continue
		}
		options := defaults.List(category)
		if err := s.repo.SaveScenarioOptions(ctx, category, options); err != nil {
			slog.Error("Failed to seed scenario options", "category", category, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrStore, err)
		}
		switch category {
		case models.CategoryDifficulty:
			seeded.Difficulties = options
		case models.CategoryEmotion:
			seeded.Emotions = options
		case models.CategoryProduct:
			seeded.Products = options
		}
		slog.Info("Seeded scenario options", "category", category, "count", len(options))
	}
	return &seeded, nil
}
