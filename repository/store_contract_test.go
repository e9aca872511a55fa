package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jasonachkar/persuade/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(userID, id string, start int64, duration int64) *models.TrainingSession {
	return &models.TrainingSession{
		ID:           id,
		UserID:       userID,
		StartTime:    start,
		EndTime:      start + duration,
		Duration:     duration,
		OverallScore: 1.85,
		DetailedFeedback: []models.AspectFeedback{
			{Aspect: models.AspectListeningSkills, Score: 1, Comment: "Need to ask more follow-up questions to understand customer needs"},
			{Aspect: models.AspectProductKnowledge, Score: 1, Comment: "Should provide more specific details about product features"},
			{Aspect: models.AspectObjectionHandling, Score: 1, Comment: "Could improve response to pricing concerns"},
			{Aspect: models.AspectCommunicationStyle, Score: 1, Comment: "Need to improve clarity in explaining complex concepts"},
		},
		Scenario: models.ScenarioSelection{Difficulty: "advanced", Emotion: "angry", Product: "crm"},
	}
}

// runStoreContract exercises the behaviour every Store backend must share
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("Session round trip", func(t *testing.T) {
		s := newSession("user-roundtrip", "s1", 1_700_000_000_000, 95_000)
		created, err := store.SaveSession(ctx, s, time.UnixMilli(1_700_000_100_000))
		require.NoError(t, err)
		assert.True(t, created)

		sessions, total, err := store.ListSessions(ctx, "user-roundtrip", 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, sessions, 1)
		assert.Equal(t, *s, sessions[0])

		stats, err := store.GetStats(ctx, "user-roundtrip")
		require.NoError(t, err)
		assert.Equal(t, models.UserStats{
			TotalSimulations:  1,
			TotalTrainingTime: 95_000,
			LastSessionTime:   1_700_000_100_000,
		}, stats)
	})

	t.Run("Sessions listed by start time", func(t *testing.T) {
		user := "user-order"
		for _, s := range []*models.TrainingSession{
			newSession(user, "c", 3000, 10),
			newSession(user, "a", 1000, 10),
			newSession(user, "b", 2000, 10),
		} {
			_, err := store.SaveSession(ctx, s, time.UnixMilli(s.EndTime))
			require.NoError(t, err)
		}

		sessions, _, err := store.ListSessions(ctx, user, 10)
		require.NoError(t, err)
		require.Len(t, sessions, 3)
		for i := 1; i < len(sessions); i++ {
			assert.LessOrEqual(t, sessions[i-1].StartTime, sessions[i].StartTime)
		}
		assert.Equal(t, "a", sessions[0].ID)
	})

	t.Run("Replayed session id does not double count", func(t *testing.T) {
		user := "user-replay"
		s := newSession(user, "dup", 5000, 60_000)

		created, err := store.SaveSession(ctx, s, time.UnixMilli(70_000))
		require.NoError(t, err)
		assert.True(t, created)

		created, err = store.SaveSession(ctx, s, time.UnixMilli(80_000))
		require.NoError(t, err)
		assert.False(t, created)

		stats, err := store.GetStats(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.TotalSimulations)
		assert.Equal(t, int64(60_000), stats.TotalTrainingTime)
		assert.Equal(t, int64(70_000), stats.LastSessionTime)
	})

	t.Run("Reserved and malformed session ids are rejected", func(t *testing.T) {
		user := "user-reserved"
		for _, id := range []string{"sessions", "a:b", ""} {
			created, err := store.SaveSession(ctx, newSession(user, id, 1000, 1000), time.UnixMilli(2000))
			assert.ErrorIs(t, err, ErrInvalidSessionID, id)
			assert.False(t, created)
		}

		stats, err := store.GetStats(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, models.UserStats{}, stats)

		created, err := store.SaveSession(ctx, newSession(user, "s1", 1000, 1000), time.UnixMilli(2000))
		require.NoError(t, err)
		assert.True(t, created)
		sessions, total, err := store.ListSessions(ctx, user, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Len(t, sessions, 1)
	})

	t.Run("Session ids are scoped per user", func(t *testing.T) {
		for _, user := range []string{"user-scope-a", "user-scope-b"} {
			created, err := store.SaveSession(ctx, newSession(user, "shared", 1000, 500), time.UnixMilli(2000))
			require.NoError(t, err)
			assert.True(t, created, user)

			stats, err := store.GetStats(ctx, user)
			require.NoError(t, err)
			assert.Equal(t, int64(1), stats.TotalSimulations)
		}
	})

	t.Run("Fractional scores survive a round trip", func(t *testing.T) {
		s := newSession("user-fraction", "f1", 1000, 500)
		s.OverallScore = 10.0 / 3
		_, err := store.SaveSession(ctx, s, time.UnixMilli(2000))
		require.NoError(t, err)

		sessions, _, err := store.ListSessions(ctx, "user-fraction", 10)
		require.NoError(t, err)
		require.Len(t, sessions, 1)
		assert.Equal(t, 10.0/3, sessions[0].OverallScore)
	})

	t.Run("Limit keeps the most recent window", func(t *testing.T) {
		user := "user-window"
		for i := 0; i < 12; i++ {
			s := newSession(user, fmt.Sprintf("w%02d", i), int64(1000*(i+1)), 100)
			_, err := store.SaveSession(ctx, s, time.UnixMilli(s.EndTime))
			require.NoError(t, err)
		}

		sessions, total, err := store.ListSessions(ctx, user, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(12), total)
		require.Len(t, sessions, 10)
		assert.Equal(t, "w02", sessions[0].ID)
		assert.Equal(t, "w11", sessions[9].ID)
	})

	t.Run("Unknown user has zero stats", func(t *testing.T) {
		stats, err := store.GetStats(ctx, "nobody")
		require.NoError(t, err)
		assert.Equal(t, models.UserStats{}, stats)

		sessions, total, err := store.ListSessions(ctx, "nobody", 10)
		require.NoError(t, err)
		assert.Empty(t, sessions)
		assert.Zero(t, total)
	})

	t.Run("Products", func(t *testing.T) {
		p := &models.Product{
			ID:          "prod-1",
			Name:        "Headsets",
			Description: "Noise-cancelling",
			Image:       models.NoImage(),
			CreatedAt:   1000,
		}
		require.NoError(t, store.CreateProduct(ctx, p))

		products, err := store.ListProducts(ctx)
		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Equal(t, *p, products[0])

		err = store.CreateProduct(ctx, p)
		assert.True(t, errors.Is(err, ErrConflict))

		// Deleting a missing id leaves the catalog unchanged
		require.NoError(t, store.DeleteProduct(ctx, "does-not-exist"))
		products, err = store.ListProducts(ctx)
		require.NoError(t, err)
		assert.Len(t, products, 1)

		newer := &models.Product{
			ID:          "prod-2",
			Name:        "Webcam",
			Description: "4K",
			Image:       models.ImageFromURL("https://cdn.example.com/cam.png"),
			CreatedAt:   2000,
		}
		require.NoError(t, store.CreateProduct(ctx, newer))
		products, err = store.ListProducts(ctx)
		require.NoError(t, err)
		require.Len(t, products, 2)
		assert.Equal(t, "prod-2", products[0].ID)

		require.NoError(t, store.DeleteProduct(ctx, "prod-1"))
		require.NoError(t, store.DeleteProduct(ctx, "prod-2"))
		products, err = store.ListProducts(ctx)
		require.NoError(t, err)
		assert.Empty(t, products)
	})

	t.Run("Scenario options", func(t *testing.T) {
		opts, err := store.GetScenarioOptions(ctx)
		require.NoError(t, err)
		assert.True(t, opts.NeedsSeed())

		defaults := models.DefaultScenarioOptions()
		for _, c := range []string{models.CategoryDifficulty, models.CategoryEmotion, models.CategoryProduct} {
			require.NoError(t, store.SaveScenarioOptions(ctx, c, defaults.List(c)))
		}

		opts, err = store.GetScenarioOptions(ctx)
		require.NoError(t, err)
		assert.False(t, opts.NeedsSeed())
		assert.Equal(t, defaults.Difficulties, opts.Difficulties)
		assert.Equal(t, defaults.Emotions, opts.Emotions)
		assert.Equal(t, defaults.Products, opts.Products)

		assert.Error(t, store.SaveScenarioOptions(ctx, "mood", nil))
	})
}
