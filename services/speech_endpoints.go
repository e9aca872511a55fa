package services

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jasonachkar/persuade/models"
)

const maxAudioUpload = 10 << 20

type SpeechEndpoints struct {
	conversation *ConversationService
}

func NewSpeechEndpoints(conversation *ConversationService) *SpeechEndpoints {
	return &SpeechEndpoints{conversation: conversation}
}

type ConversationRequest struct {
	Messages        []models.Message         `json:"messages"`
	AudioTranscript string                   `json:"audioTranscript"`
	Scenario        models.ScenarioSelection `json:"scenario"`
}

type ConversationResponse struct {
	Reply    string           `json:"reply"`
	Messages []models.Message `json:"messages"`
}

type SpeechRequest struct {
	Text     string                   `json:"text" validate:"required"`
	Scenario models.ScenarioSelection `json:"scenario"`
}

func (e *SpeechEndpoints) RegisterRoutes(r chi.Router) {
	r.Post("/transcribe", e.TranscribeHandler)
	r.Post("/conversation", e.ConversationHandler)
	r.Post("/speech", e.SpeechHandler)
}

// TranscribeHandler converts an uploaded audio chunk (form field "audio") to text
func (e *SpeechEndpoints) TranscribeHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioUpload)
	if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
		writeServiceError(w, fmt.Errorf("%w: invalid form data: %v", ErrValidation, err))
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeServiceError(w, fmt.Errorf("%w: No audio file provided", ErrValidation))
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil || len(audio) == 0 {
		writeServiceError(w, fmt.Errorf("%w: No audio file provided", ErrValidation))
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = defaultChunkMimeType
	}

	text, err := e.conversation.Transcribe(r.Context(), audio, mimeType)
	if err != nil {
		slog.Error("Transcription failed", "error", err, "audio_size", len(audio))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

// ConversationHandler appends the transcribed turn and returns the customer's reply
func (e *SpeechEndpoints) ConversationHandler(w http.ResponseWriter, r *http.Request) {
	var req ConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if strings.TrimSpace(req.AudioTranscript) == "" {
		writeServiceError(w, fmt.Errorf("%w: audioTranscript is required", ErrValidation))
		return
	}

	reply, messages, err := e.conversation.Reply(r.Context(), req.Messages, strings.TrimSpace(req.AudioTranscript), req.Scenario)
	if err != nil {
		slog.Error("Reply generation failed", "error", err, "history", len(req.Messages))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ConversationResponse{Reply: reply, Messages: messages})
}

// SpeechHandler streams synthesized audio for text
func (e *SpeechEndpoints) SpeechHandler(w http.ResponseWriter, r *http.Request) {
	var req SpeechRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := ValidateRequest(req); err != nil {
		writeServiceError(w, err)
		return
	}

	stream, err := e.conversation.Stream(r.Context(), req.Text, req.Scenario)
	if err != nil {
		slog.Error("Speech synthesis failed", "error", err, "text_length", len(req.Text))
		writeServiceError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, stream); err != nil {
		slog.Warn("Audio stream interrupted", "error", err)
	}
}
