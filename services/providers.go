package services

import (
	"context"
	"io"

	"github.com/jasonachkar/persuade/models"
)

// Transcriber turns a recorded audio chunk into text
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Replier produces the customer's next turn given the conversation so far
type Replier interface {
	GenerateReply(ctx context.Context, systemInstruction string, history []models.Message) (string, error)
}

// Scorer asks the chat model for a JSON evaluation and returns the raw text
type Scorer interface {
	ScoreConversation(ctx context.Context, systemInstruction, prompt string) (string, error)
}

// Synthesizer renders text as audio/mpeg
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (io.ReadCloser, error)
	// VoiceFor picks the provider voice used for a scenario's customer
	VoiceFor(scenario models.ScenarioSelection) string
}

// RealtimeProvider issues short-lived credentials and answers SDP offers
type RealtimeProvider interface {
	CreateEphemeralCredential(ctx context.Context) (*EphemeralCredential, error)
	ExchangeSDP(ctx context.Context, secret, offer, instructions string) (string, error)
}
