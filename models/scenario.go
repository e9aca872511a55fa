package models

import "strings"

// Scenario option categories
const (
	CategoryDifficulty = "difficulty"
	CategoryEmotion    = "emotion"
	CategoryProduct    = "product"
)

// ScenarioSelection is the difficulty/emotion/product tuple chosen for one call.
// It is fixed for the duration of the call and embedded into the TrainingSession.
type ScenarioSelection struct {
	Difficulty string `json:"difficulty" validate:"required"`
	Emotion    string `json:"emotion" validate:"required"`
	Product    string `json:"product" validate:"required"`
}

// IsZero reports whether no scenario field was provided
func (s ScenarioSelection) IsZero() bool {
	return strings.TrimSpace(s.Difficulty) == "" &&
		strings.TrimSpace(s.Emotion) == "" &&
		strings.TrimSpace(s.Product) == ""
}

// ScenarioOption is a single selectable entry in one of the option lists
type ScenarioOption struct {
	ID       string `json:"id"`
	Category string `json:"category" validate:"required,oneof=difficulty emotion product"`
	Value    string `json:"value" validate:"required"`
	Label    string `json:"label" validate:"required"`
}

// ScenarioOptions groups the three option lists served to the scenario form
type ScenarioOptions struct {
	Difficulties []ScenarioOption `json:"difficulties"`
	Emotions     []ScenarioOption `json:"emotions"`
	Products     []ScenarioOption `json:"products"`
}

// NeedsSeed reports whether the required lists are missing
func (o *ScenarioOptions) NeedsSeed() bool {
	return o == nil || len(o.Difficulties) == 0 || len(o.Emotions) == 0
}

// List returns the option list for a category
func (o *ScenarioOptions) List(category string) []ScenarioOption {
	switch category {
	case CategoryDifficulty:
		return o.Difficulties
	case CategoryEmotion:
		return o.Emotions
	case CategoryProduct:
		return o.Products
	}
	return nil
}

// CategoryKey maps a category to its plural storage suffix (scenarios:{suffix})
func CategoryKey(category string) string {
	switch category {
	case CategoryDifficulty:
		return "difficulties"
	case CategoryEmotion:
		return "emotions"
	case CategoryProduct:
		return "products"
	}
	return ""
}

// DefaultScenarioOptions returns the seed data written when the store is empty
func DefaultScenarioOptions() ScenarioOptions {
	return ScenarioOptions{
		Difficulties: []ScenarioOption{
			{ID: "1", Category: CategoryDifficulty, Value: "beginner", Label: "Beginner"},
			{ID: "2", Category: CategoryDifficulty, Value: "intermediate", Label: "Intermediate"},
			{ID: "3", Category: CategoryDifficulty, Value: "advanced", Label: "Advanced"},
			{ID: "4", Category: CategoryDifficulty, Value: "veteran", Label: "Veteran"},
		},
		Emotions: []ScenarioOption{
			{ID: "1", Category: CategoryEmotion, Value: "happy", Label: "Happy"},
			{ID: "2", Category: CategoryEmotion, Value: "non-caring", Label: "Non-caring"},
			{ID: "3", Category: CategoryEmotion, Value: "angry", Label: "Angry"},
			{ID: "4", Category: CategoryEmotion, Value: "confused", Label: "Confused"},
		},
		Products: []ScenarioOption{
			{ID: "1", Category: CategoryProduct, Value: "crm", Label: "CRM Software"},
			{ID: "2", Category: CategoryProduct, Value: "erp", Label: "ERP System"},
			{ID: "3", Category: CategoryProduct, Value: "marketing", Label: "Marketing Platform"},
		},
	}
}
