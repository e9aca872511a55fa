package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jasonachkar/persuade/models"
	"github.com/jasonachkar/persuade/repository"
	"github.com/patrickmn/go-cache"
)

const scenarioCacheKey = "scenario_options"

// AddOptionRequest is the body of POST /scenarios
type AddOptionRequest struct {
	Category string `json:"category" validate:"required,oneof=difficulty emotion product"`
	Value    string `json:"value" validate:"required"`
	Label    string `json:"label" validate:"required"`
}

// ScenarioCatalog serves scenario options through a short-lived read cache
type ScenarioCatalog struct {
	repo   repository.ScenarioRepository
	seeder *ScenarioSeeder
	cache  *cache.Cache
	mu     sync.Mutex // serializes option list writes with cache fills
}

func NewScenarioCatalog(repo repository.ScenarioRepository) *ScenarioCatalog {
	return &ScenarioCatalog{
		repo:   repo,
		seeder: NewScenarioSeeder(repo),
		cache:  cache.New(5*time.Minute, 10*time.Minute),
	}
}

// Options returns all option lists, seeding defaults when the required lists are empty
func (c *ScenarioCatalog) Options(ctx context.Context) (*models.ScenarioOptions, error) {
	if x, found := c.cache.Get(scenarioCacheKey); found {
		return x.(*models.ScenarioOptions), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if x, found := c.cache.Get(scenarioCacheKey); found {
		return x.(*models.ScenarioOptions), nil
	}

	opts, err := c.repo.GetScenarioOptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	if opts.NeedsSeed() {
		opts, err = c.seeder.SeedIfEmpty(ctx)
		if err != nil {
			return nil, err
		}
	}

	c.cache.Set(scenarioCacheKey, opts, cache.DefaultExpiration)
	return opts, nil
}

// AddOption appends a new option to its category and returns it
func (c *ScenarioCatalog) AddOption(ctx context.Context, req AddOptionRequest) (*models.ScenarioOption, error) {
	req.Value = strings.TrimSpace(req.Value)
	req.Label = strings.TrimSpace(req.Label)
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.repo.GetScenarioOptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	option := models.ScenarioOption{
		ID:       uuid.NewString(),
		Category: req.Category,
		Value:    req.Value,
		Label:    req.Label,
	}
	list := append(current.List(req.Category), option)
	if err := c.repo.SaveScenarioOptions(ctx, req.Category, list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	c.cache.Delete(scenarioCacheKey)

	slog.Info("Scenario option added", "category", option.Category, "value", option.Value)
	return &option, nil
}
