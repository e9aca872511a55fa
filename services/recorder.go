package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jasonachkar/persuade/models"
	"github.com/jasonachkar/persuade/repository"
)

const defaultSessionListLimit = 10

// RecordRequest describes a finished call to persist. ID is generated by the
// client once and reused on retry; the server fills it in only when absent.
type RecordRequest struct {
	ID        string                   `json:"id" validate:"omitempty,sessionid"`
	UserID    string                   `json:"userId" validate:"required"`
	StartTime int64                    `json:"startTime" validate:"required,gt=0"`
	EndTime   int64                    `json:"endTime" validate:"required,gtefield=StartTime"`
	Scenario  models.ScenarioSelection `json:"scenario"`
}

// TrainingHistory is the dashboard view of a user's sessions
type TrainingHistory struct {
	Sessions          []models.TrainingSession `json:"sessions"`
	TotalSessions     int64                    `json:"totalSessions"`
	TotalSimulations  int64                    `json:"totalSimulations"`
	TotalTrainingTime int64                    `json:"totalTrainingTime"`
	LastSessionTime   int64                    `json:"lastSessionTime"`
	AverageScore      *float64                 `json:"averageScore"`
}

// Recorder is the single writer of training sessions and user stats
type Recorder struct {
	repo      repository.TrainingRepository
	listLimit int
	now       func() time.Time
}

func NewRecorder(repo repository.TrainingRepository, listLimit int) *Recorder {
	if listLimit <= 0 {
		listLimit = defaultSessionListLimit
	}
	return &Recorder{repo: repo, listLimit: listLimit, now: time.Now}
}

// Record persists the session and folds it into the user's stats atomically.
// created is false when the session id had already been recorded.
func (rec *Recorder) Record(ctx context.Context, req RecordRequest, result *models.EvaluationResult) (*models.TrainingSession, bool, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, false, err
	}
	if result == nil {
		return nil, false, fmt.Errorf("%w: evaluation is required", ErrValidation)
	}
	feedback, err := validateEvaluation(result)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	session := &models.TrainingSession{
		ID:               id,
		UserID:           req.UserID,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		Duration:         req.EndTime - req.StartTime,
		OverallScore:     result.OverallScore,
		DetailedFeedback: feedback,
		Scenario:         req.Scenario,
	}

	ctx, span := tracer.Start(ctx, "Recorder.Record")
	defer span.End()

	created, err := rec.repo.SaveSession(ctx, session, rec.now())
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrStore, err)
	}

	slog.Info("Recorded training session",
		"session_id", session.ID,
		"user_id", session.UserID,
		"duration_ms", session.Duration,
		"created", created)
	return session, created, nil
}

// History returns the recent session window plus aggregate stats
func (rec *Recorder) History(ctx context.Context, userID string) (*TrainingHistory, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: User ID is required", ErrValidation)
	}

	sessions, total, err := rec.repo.ListSessions(ctx, userID, rec.listLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	stats, err := rec.repo.GetStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	return &TrainingHistory{
		Sessions:          sessions,
		TotalSessions:     total,
		TotalSimulations:  stats.TotalSimulations,
		TotalTrainingTime: stats.TotalTrainingTime,
		LastSessionTime:   stats.LastSessionTime,
		AverageScore:      models.AverageScore(sessions),
	}, nil
}

// Stats returns the user's aggregate; zero values when nothing was recorded
func (rec *Recorder) Stats(ctx context.Context, userID string) (models.UserStats, error) {
	if userID == "" {
		return models.UserStats{}, fmt.Errorf("%w: User ID is required", ErrValidation)
	}
	stats, err := rec.repo.GetStats(ctx, userID)
	if err != nil {
		return models.UserStats{}, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return stats, nil
}
