package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/jasonachkar/persuade/models"
)

// GoogleTTSService synthesizes speech with Google Cloud Text-to-Speech.
// Credentials come from the ambient application default credentials.
type GoogleTTSService struct {
	client    *texttospeech.Client
	voiceName string
}

func NewGoogleTTSService(ctx context.Context, voiceName string) (*GoogleTTSService, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create texttospeech client: %w", err)
	}
	return &GoogleTTSService{client: client, voiceName: voiceName}, nil
}

func (g *GoogleTTSService) VoiceFor(scenario models.ScenarioSelection) string {
	if g.voiceName != "" {
		return g.voiceName
	}
	return PickScenarioVoice(scenario, googleFemaleVoices, googleMaleVoices)
}

func (g *GoogleTTSService) Synthesize(ctx context.Context, text, voice string) (io.ReadCloser, error) {
	if voice == "" {
		voice = googleFemaleVoices[0]
	}

	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: languageCodeFromVoice(voice),
			Name:         voice,
			SsmlGender:   googleVoiceGender(voice),
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	}

	resp, err := g.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: google tts: %v", ErrSynthesis, err)
	}

	slog.Info("Generated audio from Google TTS", "text_length", len(text), "voice", voice)
	return io.NopCloser(bytes.NewReader(resp.AudioContent)), nil
}

func (g *GoogleTTSService) Close() error {
	return g.client.Close()
}

// en-US-Standard-F -> en-US
func languageCodeFromVoice(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 3 {
		return "en-US"
	}
	return parts[0] + "-" + parts[1]
}

func googleVoiceGender(voice string) texttospeechpb.SsmlVoiceGender {
	for _, v := range googleFemaleVoices {
		if v == voice {
			return texttospeechpb.SsmlVoiceGender_FEMALE
		}
	}
	for _, v := range googleMaleVoices {
		if v == voice {
			return texttospeechpb.SsmlVoiceGender_MALE
		}
	}
	return texttospeechpb.SsmlVoiceGender_SSML_VOICE_GENDER_UNSPECIFIED
}
