package services

import (
	"strings"
	"testing"

	"github.com/jasonachkar/persuade/models"
	"github.com/stretchr/testify/assert"
)

func TestBuildCustomerPersona(t *testing.T) {
	assert.Equal(t, customerPersona, BuildCustomerPersona(models.ScenarioSelection{}))

	persona := BuildCustomerPersona(angryCRM)
	assert.True(t, strings.HasPrefix(persona, customerPersona))
	assert.Contains(t, persona, "selling CRM Software")
	assert.Contains(t, persona, "angry customer")
	assert.Contains(t, persona, "advanced level")
}

func TestBuildEvaluationPrompt(t *testing.T) {
	messages := []models.Message{
		{Role: models.RoleUser, Content: "Hi, I'd like to tell you about our CRM."},
		{Role: models.RoleAssistant, Content: "I'm not interested, I'm busy."},
	}

	system, prompt := BuildEvaluationPrompt(messages, angryCRM)
	assert.Contains(t, system, "sell a CRM Software")
	assert.Contains(t, system, "Angry emotional state")
	assert.Contains(t, system, "set to Advanced")
	assert.Contains(t, prompt, "user: Hi, I'd like to tell you about our CRM.\nassistant: I'm not interested, I'm busy.")
	for _, aspect := range models.Aspects {
		assert.Contains(t, prompt, aspect)
	}

	system, _ = BuildEvaluationPrompt(nil, models.ScenarioSelection{})
	assert.Contains(t, system, "sell a product")
	assert.Contains(t, system, "neutral emotional state")
	assert.Contains(t, system, "set to standard")
}

func TestOpeningLine(t *testing.T) {
	assert.Equal(t, OpeningLines["angry"], OpeningLine("Angry"))
	assert.Equal(t, defaultOpeningLine, OpeningLine("ecstatic"))
}
