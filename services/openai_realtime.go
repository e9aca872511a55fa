package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultRealtimeBaseURL = "https://api.openai.com"
	DefaultRealtimeModel   = "gpt-4o-realtime-preview-2024-12-17"
	DefaultRealtimeVoice   = "alloy"
)

// EphemeralCredential is the short-lived client secret used for one negotiation
type EphemeralCredential struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expires_at"`
}

type OpenAIRealtimeService struct {
	apiKey  string
	baseURL string
	model   string
	voice   string
	client  *http.Client
}

type realtimeSessionRequest struct {
	Model string `json:"model"`
	Voice string `json:"voice"`
}

type realtimeSessionResponse struct {
	ClientSecret *EphemeralCredential `json:"client_secret"`
	Error        *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewOpenAIRealtimeService(cfg RealtimeConfig) *OpenAIRealtimeService {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultRealtimeBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultRealtimeModel
	}
	voice := cfg.Voice
	if voice == "" {
		voice = DefaultRealtimeVoice
	}
	return &OpenAIRealtimeService{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		model:   model,
		voice:   voice,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateEphemeralCredential requests a client secret for a realtime session
func (o *OpenAIRealtimeService) CreateEphemeralCredential(ctx context.Context) (*EphemeralCredential, error) {
	jsonData, err := json.Marshal(realtimeSessionRequest{Model: o.model, Voice: o.voice})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal request: %v", ErrCredential, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/realtime/sessions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrCredential, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to make request: %v", ErrCredential, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrCredential, err)
	}

	var parsed realtimeSessionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: realtime API error: %d - %s", ErrCredential, resp.StatusCode, string(body))
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return nil, fmt.Errorf("%w: %s", ErrCredential, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: realtime API error: %d - %s", ErrCredential, resp.StatusCode, string(body))
	}
	if parsed.ClientSecret == nil || parsed.ClientSecret.Value == "" {
		return nil, fmt.Errorf("%w: response carried no client secret", ErrCredential)
	}

	slog.Info("Issued realtime credential", "model", o.model, "expires_at", parsed.ClientSecret.ExpiresAt)
	return parsed.ClientSecret, nil
}

// ExchangeSDP posts the offer with the scenario instructions and returns the answer SDP
func (o *OpenAIRealtimeService) ExchangeSDP(ctx context.Context, secret, offer, instructions string) (string, error) {
	q := url.Values{}
	q.Set("model", o.model)
	q.Set("instructions", instructions)
	endpoint := o.baseURL + "/v1/realtime?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(offer))
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %v", ErrNegotiation, err)
	}
	req.Header.Set("Content-Type", "application/sdp")
	req.Header.Set("Authorization", "Bearer "+secret)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: failed to make request: %v", ErrNegotiation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read answer: %v", ErrNegotiation, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: realtime API error: %d - %s", ErrNegotiation, resp.StatusCode, string(body))
	}

	answer := string(body)
	if strings.TrimSpace(answer) == "" {
		return "", fmt.Errorf("%w: empty answer SDP", ErrNegotiation)
	}
	return answer, nil
}
