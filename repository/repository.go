package repository

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/jasonachkar/persuade/models"
)

// ErrConflict is returned when a create collides with an existing id
var ErrConflict = errors.New("record already exists")

// ErrInvalidSessionID is returned when a session id cannot be stored
var ErrInvalidSessionID = errors.New("invalid session id")

// sessionIndexSuffix names the per-user index; it shares the training:{userId}:
// prefix with session keys, so no session may use it as an id.
const sessionIndexSuffix = "sessions"

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidSessionID reports whether id can be used as a session id
func ValidSessionID(id string) bool {
	return id != sessionIndexSuffix && sessionIDPattern.MatchString(id)
}

// TrainingRepository persists evaluated sessions and the per-user aggregate.
//
// SaveSession writes the session, its index entry and the stats update as one
// atomic unit. Saving an id that already exists is a no-op and reports
// created=false so retries never double-count.
type TrainingRepository interface {
	SaveSession(ctx context.Context, session *models.TrainingSession, recordedAt time.Time) (created bool, err error)
	// ListSessions returns the most recent limit sessions in ascending start
	// time order, plus the total number of sessions for the user.
	ListSessions(ctx context.Context, userID string, limit int) ([]models.TrainingSession, int64, error)
	GetStats(ctx context.Context, userID string) (models.UserStats, error)
}

// ProductRepository stores the global product catalog
type ProductRepository interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	// ListProducts returns products newest first
	ListProducts(ctx context.Context) ([]models.Product, error)
	// DeleteProduct removes a product; deleting a missing id is not an error
	DeleteProduct(ctx context.Context, id string) error
}

// ScenarioRepository stores the selectable scenario option lists
type ScenarioRepository interface {
	GetScenarioOptions(ctx context.Context) (*models.ScenarioOptions, error)
	SaveScenarioOptions(ctx context.Context, category string, options []models.ScenarioOption) error
}

// Store is a complete persistence backend
type Store interface {
	TrainingRepository
	ProductRepository
	ScenarioRepository
	Ping(ctx context.Context) error
	Close() error
	Name() string
}
