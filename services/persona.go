package services

import (
	"fmt"
	"strings"

	"github.com/jasonachkar/persuade/models"
)

const customerPersona = `You are an AI sales training simulator. You play the role of a potential customer interested in various products/services.
Be natural, conversational, and reflect realistic customer behaviors. Present common objections and concerns.
Maintain consistent character traits and preferences throughout the conversation.
Your responses should be concise and conversational, as they will be converted to speech.`

const evaluationRubric = `Analyze the sales conversation and provide a detailed evaluation with scores in the following format:

{
  "overallScore": (1-5),
  "detailedFeedback": [
    {
      "aspect": "Listening Skills",
      "score": (1-5),
      "comment": "Detailed feedback on how well they listened and responded to customer needs"
    },
    {
      "aspect": "Product Knowledge",
      "score": (1-5),
      "comment": "Evaluation of their product knowledge and ability to explain benefits"
    },
    {
      "aspect": "Objection Handling",
      "score": (1-5),
      "comment": "Assessment of how well they addressed customer concerns"
    },
    {
      "aspect": "Communication Style",
      "score": (1-5),
      "comment": "Feedback on clarity, tone, and professionalism"
    }
  ],
  "summary": "Overall evaluation summary and key improvement areas"
}`

// BuildCustomerPersona returns the system instruction for chunked-mode replies.
// Scenario context is appended when a scenario is known.
func BuildCustomerPersona(scenario models.ScenarioSelection) string {
	if scenario.IsZero() {
		return customerPersona
	}

	var b strings.Builder
	b.WriteString(customerPersona)
	b.WriteString("\n\nSCENARIO:\n")
	if scenario.Product != "" {
		fmt.Fprintf(&b, "- The salesperson is selling %s.\n", scenario.Product)
	}
	if scenario.Emotion != "" {
		fmt.Fprintf(&b, "- You are a %s customer. Let that mood shape every reply.\n", strings.ToLower(scenario.Emotion))
	}
	if scenario.Difficulty != "" {
		fmt.Fprintf(&b, "- This is a %s level conversation; scale how hard you are to convince accordingly.\n", strings.ToLower(scenario.Difficulty))
	}
	return strings.TrimRight(b.String(), "\n")
}

// BuildRealtimeInstructions returns the instruction text sent once with the SDP offer
func BuildRealtimeInstructions(scenario models.ScenarioSelection) string {
	instructions := fmt.Sprintf(
		"You are an AI sales training simulator playing the role of a %s customer. "+
			"This is a %s level conversation. "+
			"Your responses should reflect the emotional state and difficulty level selected. "+
			"Be natural and conversational, presenting realistic objections and concerns.",
		strings.ToLower(scenario.Emotion),
		strings.ToLower(scenario.Difficulty),
	)
	if scenario.Product != "" {
		instructions += fmt.Sprintf(" The salesperson is trying to sell you %s.", scenario.Product)
	}
	return instructions
}

// BuildEvaluationPrompt returns the system text and user prompt for scoring
func BuildEvaluationPrompt(messages []models.Message, scenario models.ScenarioSelection) (string, string) {
	product := orDefault(scenario.Product, "product")
	emotion := orDefault(scenario.Emotion, "neutral")
	difficulty := orDefault(scenario.Difficulty, "standard")

	system := fmt.Sprintf(
		"You are evaluating a sales conversation where the salesperson is trying to sell a %s "+
			"to a customer who is in a %s emotional state. The difficulty level was set to %s.",
		product, emotion, difficulty,
	)
	prompt := evaluationRubric + "\n\nConversation to evaluate:\n" + models.RenderTranscript(messages)
	return system, prompt
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
