package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jasonachkar/persuade/models"
)

const elevenLabsBaseURL = "https://api.elevenlabs.io"

type ElevenLabsService struct {
	apiKey  string
	voiceID string
	baseURL string
	client  *http.Client
}

type ElevenLabsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// NewElevenLabsService creates the client; an empty voiceID lets VoiceFor
// pick a stock voice per scenario.
func NewElevenLabsService(apiKey, voiceID string) *ElevenLabsService {
	return &ElevenLabsService{
		apiKey:  apiKey,
		voiceID: voiceID,
		baseURL: elevenLabsBaseURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (e *ElevenLabsService) VoiceFor(scenario models.ScenarioSelection) string {
	if e.voiceID != "" {
		return e.voiceID
	}
	return PickScenarioVoice(scenario, elevenLabsFemaleVoices, elevenLabsMaleVoices)
}

// Synthesize returns an audio/mpeg stream for text
func (e *ElevenLabsService) Synthesize(ctx context.Context, text, voice string) (io.ReadCloser, error) {
	if voice == "" {
		voice = defaultElevenLabsVoice
	}

	request := ElevenLabsRequest{
		Text:    text,
		ModelID: "eleven_turbo_v2", // Fast model for real-time conversation
		VoiceSettings: VoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.5,
		},
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal request: %v", ErrSynthesis, err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", e.baseURL, voice)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrSynthesis, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to make request: %v", ErrSynthesis, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%w: elevenlabs API error: %d - %s", ErrSynthesis, resp.StatusCode, string(body))
	}

	slog.Info("Generated audio from ElevenLabs", "text_length", len(text), "voice_id", voice)
	return resp.Body, nil
}
