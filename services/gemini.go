package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jasonachkar/persuade/models"

	"google.golang.org/genai"
)

const (
	DefaultGeminiModel = "gemini-2.5-flash"
	MaxHistoryTurns    = 20 // turns sent as context for a reply
	EvaluationTemp     = 0.8

	transcribePrompt = "Transcribe this audio to text. Provide only the transcript, no additional commentary. If there is no speech, return an empty response."
)

// GeminiService handles transcription, customer replies and scoring
type GeminiService struct {
	genaiClient *genai.Client
	model       string
}

func NewGeminiService(ctx context.Context, apiKey, model string) (*GeminiService, error) {
	return newGeminiService(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, model)
}

func newGeminiService(ctx context.Context, cfg *genai.ClientConfig, model string) (*GeminiService, error) {
	genaiClient, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiService{genaiClient: genaiClient, model: model}, nil
}

// Transcribe sends the chunk as an inline blob and returns the transcript
func (g *GeminiService) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	parts := []*genai.Part{
		genai.NewPartFromText(transcribePrompt),
		{InlineData: &genai.Blob{MIMEType: mimeType, Data: audio}},
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	result, err := g.genaiClient.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate transcript: %w", err)
	}

	transcript := strings.TrimSpace(result.Text())
	slog.Info("Audio transcribed", "size", len(audio), "transcript_length", len(transcript))
	return transcript, nil
}

// GenerateReply continues the conversation as the customer
func (g *GeminiService) GenerateReply(ctx context.Context, systemInstruction string, history []models.Message) (string, error) {
	contents := buildConversationContents(history)
	if len(contents) == 0 {
		contents = append(contents, genai.NewContentFromText("Hello", genai.RoleUser))
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	}

	result, err := g.genaiClient.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}

	reply := strings.TrimSpace(result.Text())
	slog.Info("Generated customer reply", "turns", len(contents), "response_length", len(reply))
	return reply, nil
}

// ScoreConversation requests a JSON evaluation constrained by evaluationSchema
func (g *GeminiService) ScoreConversation(ctx context.Context, systemInstruction, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr[float32](EvaluationTemp),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    evaluationSchema,
	}

	result, err := g.genaiClient.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("failed to score conversation: %w", err)
	}
	return result.Text(), nil
}

var evaluationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"overallScore": {Type: genai.TypeNumber},
		"detailedFeedback": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"aspect":  {Type: genai.TypeString},
					"score":   {Type: genai.TypeNumber},
					"comment": {Type: genai.TypeString},
				},
				Required: []string{"aspect", "score", "comment"},
			},
		},
		"summary": {Type: genai.TypeString},
	},
	Required: []string{"overallScore", "detailedFeedback", "summary"},
}

func buildConversationContents(history []models.Message) []*genai.Content {
	var contents []*genai.Content

	startIdx := 0
	if len(history) > MaxHistoryTurns {
		startIdx = len(history) - MaxHistoryTurns
	}

	for _, m := range history[startIdx:] {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if m.Role == models.RoleAssistant {
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		} else {
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return contents
}
