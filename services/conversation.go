package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jasonachkar/persuade/models"
)

// ConversationService runs the chunked call turn: transcribe, reply, synthesize
type ConversationService struct {
	transcriber Transcriber
	replier     Replier
	synthesizer Synthesizer
	audioCache  *AudioCache
}

func NewConversationService(transcriber Transcriber, replier Replier, synthesizer Synthesizer, audioCache *AudioCache) *ConversationService {
	if audioCache == nil {
		audioCache = NewAudioCache()
	}
	return &ConversationService{
		transcriber: transcriber,
		replier:     replier,
		synthesizer: synthesizer,
		audioCache:  audioCache,
	}
}

// Transcribe converts one recorded chunk to text
func (s *ConversationService) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if s.transcriber == nil {
		return "", fmt.Errorf("%w: no transcription provider configured", ErrTranscription)
	}
	text, err := s.transcriber.Transcribe(ctx, audio, mimeType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	return strings.TrimSpace(text), nil
}

// Reply appends the user's turn, asks the customer persona for the next turn
// and returns it together with the extended history.
func (s *ConversationService) Reply(ctx context.Context, history []models.Message, userText string, scenario models.ScenarioSelection) (string, []models.Message, error) {
	if s.replier == nil {
		return "", history, fmt.Errorf("%w: no chat provider configured", ErrReply)
	}

	conv := models.NewConversation(history...)
	conv.Append(models.RoleUser, userText)

	reply, err := s.replier.GenerateReply(ctx, BuildCustomerPersona(scenario), conv.Messages())
	if err != nil {
		return "", history, fmt.Errorf("%w: %v", ErrReply, err)
	}
	if reply == "" {
		return "", history, fmt.Errorf("%w: empty reply", ErrReply)
	}

	conv.Append(models.RoleAssistant, reply)
	return reply, conv.Messages(), nil
}

// CanSynthesize reports whether a speech provider is configured
func (s *ConversationService) CanSynthesize() bool {
	return s.synthesizer != nil
}

// Synthesize renders text fully into memory, serving fixed lines from the cache
func (s *ConversationService) Synthesize(ctx context.Context, text string, scenario models.ScenarioSelection) ([]byte, error) {
	if s.synthesizer == nil {
		return nil, fmt.Errorf("%w: no speech provider configured", ErrSynthesis)
	}
	voice := s.synthesizer.VoiceFor(scenario)
	audio, err := s.audioCache.GetOrGenerate(ctx, text, voice, func() (io.ReadCloser, error) {
		return s.synthesizer.Synthesize(ctx, text, voice)
	})
	if err != nil {
		slog.Error("Speech synthesis failed", "error", err, "text_length", len(text))
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	return audio, nil
}

// Stream returns the provider's audio stream without buffering
func (s *ConversationService) Stream(ctx context.Context, text string, scenario models.ScenarioSelection) (io.ReadCloser, error) {
	if s.synthesizer == nil {
		return nil, fmt.Errorf("%w: no speech provider configured", ErrSynthesis)
	}
	stream, err := s.synthesizer.Synthesize(ctx, text, s.synthesizer.VoiceFor(scenario))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	return stream, nil
}
