package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jasonachkar/persuade/models"
	"github.com/redis/go-redis/v9"
)

const (
	productsKey    = "products"
	maxTxRetries   = 5
	scenarioPrefix = "scenarios:"
)

func statsKey(userID string) string {
	return fmt.Sprintf("user:%s:stats", userID)
}

func sessionIndexKey(userID string) string {
	return fmt.Sprintf("training:%s:%s", userID, sessionIndexSuffix)
}

func sessionKey(userID, sessionID string) string {
	return fmt.Sprintf("training:%s:%s", userID, sessionID)
}

type RedisRepository struct {
	client *redis.Client
}

func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

// NewRedisClient parses a redis:// URL, falling back to a bare address
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		slog.Warn("Failed to parse Redis URL, using direct Addr", "error", err)
		opt = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (r *RedisRepository) Name() string { return "redis" }

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// SaveSession stores the session, indexes it and folds it into the stats
// inside one MULTI/EXEC guarded by WATCH on the session and stats keys.
func (r *RedisRepository) SaveSession(ctx context.Context, session *models.TrainingSession, recordedAt time.Time) (bool, error) {
	if !ValidSessionID(session.ID) {
		return false, fmt.Errorf("session %q: %w", session.ID, ErrInvalidSessionID)
	}
	sKey := sessionKey(session.UserID, session.ID)
	stKey := statsKey(session.UserID)

	payload, err := json.Marshal(session)
	if err != nil {
		return false, fmt.Errorf("failed to marshal session: %w", err)
	}

	var created bool
	txf := func(tx *redis.Tx) error {
		created = false

		exists, err := tx.Exists(ctx, sKey).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return nil
		}

		var stats models.UserStats
		raw, err := tx.Get(ctx, stKey).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(raw, &stats); err != nil {
				return fmt.Errorf("failed to unmarshal stats: %w", err)
			}
		}
		stats.Apply(session, recordedAt.UnixMilli())

		statsPayload, err := json.Marshal(stats)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, sKey, payload, 0)
			pipe.ZAdd(ctx, sessionIndexKey(session.UserID), redis.Z{
				Score:  float64(session.StartTime),
				Member: session.ID,
			})
			pipe.Set(ctx, stKey, statsPayload, 0)
			return nil
		})
		if err == nil {
			created = true
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, sKey, stKey)
		if err == nil {
			if created {
				slog.Info("Training session saved", "session_id", session.ID, "user_id", session.UserID)
			} else {
				slog.Info("Training session already recorded", "session_id", session.ID, "user_id", session.UserID)
			}
			return created, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		slog.Error("Failed to save training session", "error", err, "session_id", session.ID)
		return false, fmt.Errorf("failed to save session: %w", err)
	}
	return false, fmt.Errorf("failed to save session: too much contention on %s", stKey)
}

func (r *RedisRepository) ListSessions(ctx context.Context, userID string, limit int) ([]models.TrainingSession, int64, error) {
	indexKey := sessionIndexKey(userID)

	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	ids, err := r.client.ZRange(ctx, indexKey, start, -1).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read session index: %w", err)
	}
	total, err := r.client.ZCard(ctx, indexKey).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	sessions := make([]models.TrainingSession, 0, len(ids))
	if len(ids) == 0 {
		return sessions, total, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(userID, id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load sessions: %w", err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			slog.Warn("Indexed session missing", "session_id", ids[i], "user_id", userID)
			continue
		}
		var session models.TrainingSession
		if err := json.Unmarshal([]byte(s), &session); err != nil {
			slog.Warn("Skipping unreadable session", "error", err, "session_id", ids[i])
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, total, nil
}

func (r *RedisRepository) GetStats(ctx context.Context, userID string) (models.UserStats, error) {
	var stats models.UserStats
	raw, err := r.client.Get(ctx, statsKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("failed to get stats: %w", err)
	}
	if err := json.Unmarshal(raw, &stats); err != nil {
		return stats, fmt.Errorf("failed to unmarshal stats: %w", err)
	}
	return stats, nil
}

func (r *RedisRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	payload, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}
	ok, err := r.client.HSetNX(ctx, productsKey, product.ID, payload).Result()
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	if !ok {
		return fmt.Errorf("product %s: %w", product.ID, ErrConflict)
	}
	slog.Info("Product created", "product_id", product.ID, "name", product.Name)
	return nil
}

func (r *RedisRepository) ListProducts(ctx context.Context) ([]models.Product, error) {
	entries, err := r.client.HGetAll(ctx, productsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products := make([]models.Product, 0, len(entries))
	for id, raw := range entries {
		var p models.Product
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			slog.Warn("Skipping unreadable product", "error", err, "product_id", id)
			continue
		}
		products = append(products, p)
	}
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].CreatedAt == products[j].CreatedAt {
			return products[i].ID < products[j].ID
		}
		return products[i].CreatedAt > products[j].CreatedAt
	})
	return products, nil
}

func (r *RedisRepository) DeleteProduct(ctx context.Context, id string) error {
	if err := r.client.HDel(ctx, productsKey, id).Err(); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	slog.Info("Product deleted", "product_id", id)
	return nil
}

func (r *RedisRepository) GetScenarioOptions(ctx context.Context) (*models.ScenarioOptions, error) {
	categories := []string{models.CategoryDifficulty, models.CategoryEmotion, models.CategoryProduct}
	keys := make([]string, len(categories))
	for i, c := range categories {
		keys[i] = scenarioPrefix + models.CategoryKey(c)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get scenario options: %w", err)
	}

	lists := make([][]models.ScenarioOption, len(categories))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(s), &lists[i]); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", keys[i], err)
		}
	}

	return &models.ScenarioOptions{
		Difficulties: lists[0],
		Emotions:     lists[1],
		Products:     lists[2],
	}, nil
}

func (r *RedisRepository) SaveScenarioOptions(ctx context.Context, category string, options []models.ScenarioOption) error {
	suffix := models.CategoryKey(category)
	if suffix == "" {
		return fmt.Errorf("unknown scenario category %q", category)
	}
	payload, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("failed to marshal scenario options: %w", err)
	}
	if err := r.client.Set(ctx, scenarioPrefix+suffix, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to save scenario options: %w", err)
	}
	return nil
}
