package services

import (
	"context"
	"testing"

	"github.com/jasonachkar/persuade/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedIfEmptyFillsOnlyEmptyCategories(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	custom := []models.ScenarioOption{{ID: "x", Category: models.CategoryEmotion, Value: "skeptical", Label: "Skeptical"}}
	require.NoError(t, store.SaveScenarioOptions(ctx, models.CategoryEmotion, custom))

	opts, err := NewScenarioSeeder(store).SeedIfEmpty(ctx)
	require.NoError(t, err)

	defaults := models.DefaultScenarioOptions()
	assert.Equal(t, custom, opts.Emotions)
	assert.Equal(t, defaults.Difficulties, opts.Difficulties)
	assert.Equal(t, defaults.Products, opts.Products)

	stored, err := store.GetScenarioOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, opts, stored)

	again, err := NewScenarioSeeder(store).SeedIfEmpty(ctx)
	require.NoError(t, err)
	assert.Equal(t, stored, again)
}
