package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jasonachkar/persuade/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisRepository(client), mr
}

func TestRedisRepositoryContract(t *testing.T) {
	repo, _ := newTestRedis(t)
	runStoreContract(t, repo)
}

func TestRedisKeyLayout(t *testing.T) {
	repo, mr := newTestRedis(t)
	ctx := context.Background()

	s := newSession("u1", "s1", 1000, 500)
	_, err := repo.SaveSession(ctx, s, time.UnixMilli(2000))
	require.NoError(t, err)

	assert.True(t, mr.Exists("training:u1:s1"))
	assert.True(t, mr.Exists("user:u1:stats"))

	members, err := mr.ZMembers("training:u1:sessions")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, members)

	score, err := mr.ZScore("training:u1:sessions", "s1")
	require.NoError(t, err)
	assert.Equal(t, float64(1000), score)
}

func TestRedisListSkipsDanglingIndexEntries(t *testing.T) {
	repo, mr := newTestRedis(t)
	ctx := context.Background()

	_, err := repo.SaveSession(ctx, newSession("u1", "kept", 1000, 10), time.UnixMilli(1010))
	require.NoError(t, err)
	_, err = mr.ZAdd("training:u1:sessions", 2000, "gone")
	require.NoError(t, err)

	sessions, total, err := repo.ListSessions(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, sessions, 1)
	assert.Equal(t, "kept", sessions[0].ID)
}

func TestRedisStoreErrors(t *testing.T) {
	repo, mr := newTestRedis(t)
	ctx := context.Background()
	mr.Close()

	_, err := repo.SaveSession(ctx, newSession("u1", "s1", 1, 1), time.Now())
	assert.Error(t, err)
	assert.Error(t, repo.Ping(ctx))

	_, err = repo.ListProducts(ctx)
	assert.Error(t, err)
}

func TestRedisScenarioOptionsKeys(t *testing.T) {
	repo, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveScenarioOptions(ctx, models.CategoryEmotion, models.DefaultScenarioOptions().Emotions))
	assert.True(t, mr.Exists("scenarios:emotions"))
	assert.False(t, mr.Exists("scenarios:difficulties"))
}
