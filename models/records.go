package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// TrainingSessionRecord is the postgres row for a TrainingSession
type TrainingSessionRecord struct {
	UserID           string         `gorm:"primaryKey;index:idx_training_user_start,priority:1" json:"user_id"`
	ID               string         `gorm:"primaryKey" json:"id"`
	StartTime        int64          `gorm:"not null;index:idx_training_user_start,priority:2" json:"start_time"`
	EndTime          int64          `gorm:"not null" json:"end_time"`
	Duration         int64          `gorm:"not null" json:"duration"`
	OverallScore     float64        `gorm:"type:double precision;not null" json:"overall_score"`
	DetailedFeedback datatypes.JSON `gorm:"type:jsonb" json:"detailed_feedback"`
	Difficulty       string         `gorm:"not null" json:"difficulty"`
	Emotion          string         `gorm:"not null" json:"emotion"`
	Product          string         `gorm:"not null" json:"product"`
	CreatedAt        time.Time      `json:"created_at"`
}

func (TrainingSessionRecord) TableName() string { return "training_sessions" }

// NewTrainingSessionRecord converts a session into its row form
func NewTrainingSessionRecord(s *TrainingSession) (*TrainingSessionRecord, error) {
	feedback, err := json.Marshal(s.DetailedFeedback)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feedback: %w", err)
	}
	return &TrainingSessionRecord{
		ID:               s.ID,
		UserID:           s.UserID,
		StartTime:        s.StartTime,
		EndTime:          s.EndTime,
		Duration:         s.Duration,
		OverallScore:     s.OverallScore,
		DetailedFeedback: datatypes.JSON(feedback),
		Difficulty:       s.Scenario.Difficulty,
		Emotion:          s.Scenario.Emotion,
		Product:          s.Scenario.Product,
	}, nil
}

// ToSession converts the row back into the domain type
func (r *TrainingSessionRecord) ToSession() (TrainingSession, error) {
	var feedback []AspectFeedback
	if len(r.DetailedFeedback) > 0 {
		if err := json.Unmarshal(r.DetailedFeedback, &feedback); err != nil {
			return TrainingSession{}, fmt.Errorf("failed to unmarshal feedback: %w", err)
		}
	}
	return TrainingSession{
		ID:               r.ID,
		UserID:           r.UserID,
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		Duration:         r.Duration,
		OverallScore:     r.OverallScore,
		DetailedFeedback: feedback,
		Scenario: ScenarioSelection{
			Difficulty: r.Difficulty,
			Emotion:    r.Emotion,
			Product:    r.Product,
		},
	}, nil
}

// UserStatsRecord stores the per-user aggregate
type UserStatsRecord struct {
	UserID            string    `gorm:"primaryKey" json:"user_id"`
	TotalSimulations  int64     `gorm:"not null;default:0" json:"total_simulations"`
	TotalTrainingTime int64     `gorm:"not null;default:0" json:"total_training_time"`
	LastSessionTime   int64     `gorm:"not null;default:0" json:"last_session_time"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (UserStatsRecord) TableName() string { return "user_stats" }

func (r *UserStatsRecord) ToStats() UserStats {
	return UserStats{
		TotalSimulations:  r.TotalSimulations,
		TotalTrainingTime: r.TotalTrainingTime,
		LastSessionTime:   r.LastSessionTime,
	}
}

// ScenarioOptionRecord stores one selectable option; Position keeps list order
type ScenarioOptionRecord struct {
	Category string `gorm:"primaryKey" json:"category"`
	ID       string `gorm:"primaryKey" json:"id"`
	Position int    `gorm:"not null" json:"position"`
	Value    string `gorm:"not null" json:"value"`
	Label    string `gorm:"not null" json:"label"`
}

func (ScenarioOptionRecord) TableName() string { return "scenario_options" }

func (r *ScenarioOptionRecord) ToOption() ScenarioOption {
	return ScenarioOption{ID: r.ID, Category: r.Category, Value: r.Value, Label: r.Label}
}

// ProductRecord flattens the image variant into columns
type ProductRecord struct {
	ID            string `gorm:"primaryKey" json:"id"`
	Name          string `gorm:"not null" json:"name"`
	Description   string `gorm:"type:text;not null" json:"description"`
	ImageKind     string `json:"image_kind"`
	ImageURL      string `json:"image_url"`
	ImageData     []byte `json:"-"`
	ImageMimeType string `json:"image_mime_type"`
	CreatedAt     int64  `gorm:"not null;index" json:"created_at"`
}

func (ProductRecord) TableName() string { return "products" }

func NewProductRecord(p *Product) *ProductRecord {
	return &ProductRecord{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		ImageKind:     string(p.Image.Kind),
		ImageURL:      p.Image.URL,
		ImageData:     p.Image.Data,
		ImageMimeType: p.Image.MimeType,
		CreatedAt:     p.CreatedAt,
	}
}

func (r *ProductRecord) ToProduct() Product {
	img := NoImage()
	switch ImageKind(r.ImageKind) {
	case ImageURL:
		img = ImageFromURL(r.ImageURL)
	case ImageInline:
		img = InlineImage(r.ImageData, r.ImageMimeType)
	}
	return Product{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Image:       img,
		CreatedAt:   r.CreatedAt,
	}
}
