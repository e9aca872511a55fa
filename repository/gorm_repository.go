package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jasonachkar/persuade/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const uniqueViolation = "23505"

type GORMRepository struct {
	db   *gorm.DB
	pool *pgxpool.Pool
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// OpenPostgres connects a pgx pool and hands it to gorm
func OpenPostgres(ctx context.Context, url, logLevel string, maxIdle, maxOpen int) (*GORMRepository, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetMaxOpenConns(maxOpen)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(logLevel)),
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	return &GORMRepository{db: db, pool: pool}, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	}
	return logger.Silent
}

// AutoMigrate runs database migrations
func (r *GORMRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&models.TrainingSessionRecord{},
		&models.UserStatsRecord{},
		&models.ScenarioOptionRecord{},
		&models.ProductRecord{},
	)
}

func (r *GORMRepository) Name() string { return "postgres" }

func (r *GORMRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *GORMRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	err = sqlDB.Close()
	if r.pool != nil {
		r.pool.Close()
	}
	return err
}

// SaveSession inserts the session and upserts the stats row in one transaction
func (r *GORMRepository) SaveSession(ctx context.Context, session *models.TrainingSession, recordedAt time.Time) (bool, error) {
	if !ValidSessionID(session.ID) {
		return false, fmt.Errorf("session %q: %w", session.ID, ErrInvalidSessionID)
	}
	record, err := models.NewTrainingSessionRecord(session)
	if err != nil {
		return false, err
	}

	var created bool
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(record)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true

		stats := models.UserStatsRecord{
			UserID:            session.UserID,
			TotalSimulations:  1,
			TotalTrainingTime: session.Duration,
			LastSessionTime:   recordedAt.UnixMilli(),
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_simulations":   gorm.Expr("user_stats.total_simulations + 1"),
				"total_training_time": gorm.Expr("user_stats.total_training_time + ?", session.Duration),
				"last_session_time":   recordedAt.UnixMilli(),
				"updated_at":          time.Now(),
			}),
		}).Create(&stats).Error
	})
	if err != nil {
		slog.Error("Failed to save training session", "error", err, "session_id", session.ID)
		return false, fmt.Errorf("failed to save session: %w", err)
	}

	slog.Info("Training session saved", "session_id", session.ID, "user_id", session.UserID, "created", created)
	return created, nil
}

func (r *GORMRepository) ListSessions(ctx context.Context, userID string, limit int) ([]models.TrainingSession, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.TrainingSessionRecord{}).
		Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	var records []models.TrainingSessionRecord
	query := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("start_time DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		slog.Error("Failed to list sessions", "error", err, "user_id", userID)
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	// newest-first window, returned oldest first
	sessions := make([]models.TrainingSession, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		s, err := records[i].ToSession()
		if err != nil {
			slog.Warn("Skipping unreadable session", "error", err, "session_id", records[i].ID)
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, total, nil
}

func (r *GORMRepository) GetStats(ctx context.Context, userID string) (models.UserStats, error) {
	var record models.UserStatsRecord
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.UserStats{}, nil
		}
		return models.UserStats{}, fmt.Errorf("failed to get stats: %w", err)
	}
	return record.ToStats(), nil
}

func (r *GORMRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := r.db.WithContext(ctx).Create(models.NewProductRecord(product)).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("product %s: %w", product.ID, ErrConflict)
		}
		slog.Error("Failed to create product", "error", err)
		return fmt.Errorf("failed to create product: %w", err)
	}
	slog.Info("Product created", "product_id", product.ID, "name", product.Name)
	return nil
}

func (r *GORMRepository) ListProducts(ctx context.Context) ([]models.Product, error) {
	var records []models.ProductRecord
	if err := r.db.WithContext(ctx).Order("created_at DESC, id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	products := make([]models.Product, len(records))
	for i := range records {
		products[i] = records[i].ToProduct()
	}
	return products, nil
}

func (r *GORMRepository) DeleteProduct(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ProductRecord{}).Error; err != nil {
		slog.Error("Failed to delete product", "error", err, "product_id", id)
		return fmt.Errorf("failed to delete product: %w", err)
	}
	slog.Info("Product deleted", "product_id", id)
	return nil
}

func (r *GORMRepository) GetScenarioOptions(ctx context.Context) (*models.ScenarioOptions, error) {
	var records []models.ScenarioOptionRecord
	if err := r.db.WithContext(ctx).Order("category, position").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to get scenario options: %w", err)
	}

	opts := &models.ScenarioOptions{}
	for i := range records {
		o := records[i].ToOption()
		switch o.Category {
		case models.CategoryDifficulty:
			opts.Difficulties = append(opts.Difficulties, o)
		case models.CategoryEmotion:
			opts.Emotions = append(opts.Emotions, o)
		case models.CategoryProduct:
			opts.Products = append(opts.Products, o)
		}
	}
	return opts, nil
}

// SaveScenarioOptions replaces the whole list for a category
func (r *GORMRepository) SaveScenarioOptions(ctx context.Context, category string, options []models.ScenarioOption) error {
	if models.CategoryKey(category) == "" {
		return fmt.Errorf("unknown scenario category %q", category)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("category = ?", category).Delete(&models.ScenarioOptionRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear scenario options: %w", err)
		}
		if len(options) == 0 {
			return nil
		}
		records := make([]models.ScenarioOptionRecord, len(options))
		for i, o := range options {
			records[i] = models.ScenarioOptionRecord{
				Category: category,
				ID:       o.ID,
				Position: i,
				Value:    o.Value,
				Label:    o.Label,
			}
		}
		if err := tx.Create(&records).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("scenario option: %w", ErrConflict)
			}
			return fmt.Errorf("failed to save scenario options: %w", err)
		}
		return nil
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
