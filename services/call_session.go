package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jasonachkar/persuade/models"
	ws "github.com/jasonachkar/persuade/websocket"
)

// Call socket event types
const (
	EventStatus           = "status"
	EventUserMessage      = "user_message"
	EventAssistantMessage = "assistant_message"
	EventAudio            = "audio"
	EventError            = "error"
	EventEvaluation       = "evaluation"
)

const defaultChunkMimeType = "audio/webm"

// messageSender is the outbound half of a call socket
type messageSender interface {
	SendMessage(msg ws.Message) bool
}

// StartPayload is the data of a "start" message
type StartPayload struct {
	Scenario  models.ScenarioSelection `json:"scenario"`
	SessionID string                   `json:"sessionId,omitempty"`
	UserID    string                   `json:"userId,omitempty"`
}

// CallEnd is the data of the final "evaluation" event
type CallEnd struct {
	Evaluation *models.EvaluationResult `json:"evaluation"`
	Session    *models.TrainingSession  `json:"session,omitempty"`
	Saved      bool                     `json:"saved"`
	Messages   []models.Message         `json:"messages"`
}

// CallSession is the state of one chunked call. It is owned by a single
// worker, so turns never overlap and the transcript stays chronological.
type CallSession struct {
	ID     string
	UserID string

	sender       messageSender
	conversation *ConversationService
	evaluator    *Evaluator
	recorder     *Recorder
	now          func() time.Time

	scenario   models.ScenarioSelection
	sessionID  string
	transcript *models.Conversation
	started    bool
	speaking   bool
	startTime  time.Time
	chunkCount int
}

func NewCallSession(id, userID string, sender messageSender, conversation *ConversationService, evaluator *Evaluator, recorder *Recorder) *CallSession {
	return &CallSession{
		ID:           id,
		UserID:       userID,
		sender:       sender,
		conversation: conversation,
		evaluator:    evaluator,
		recorder:     recorder,
		now:          time.Now,
		transcript:   models.NewConversation(),
	}
}

// Start fixes the scenario and has the customer speak the opening line
func (c *CallSession) Start(ctx context.Context, payload StartPayload) {
	if c.started {
		c.sendError("Call already started")
		return
	}
	c.started = true
	c.scenario = payload.Scenario
	c.sessionID = payload.SessionID
	if c.UserID == "" {
		c.UserID = strings.TrimSpace(payload.UserID)
	}
	c.startTime = c.now()

	c.send(ws.Message{Type: EventStatus, Content: "Connected"})

	opening := OpeningLine(c.scenario.Emotion)
	c.transcript.Append(models.RoleAssistant, opening)
	c.send(ws.Message{Type: EventAssistantMessage, Content: opening})
	c.speak(ctx, opening)

	slog.Info("Call started",
		"call_id", c.ID,
		"user_id", c.UserID,
		"difficulty", c.scenario.Difficulty,
		"emotion", c.scenario.Emotion,
		"product", c.scenario.Product)
}

// HandleAudioChunk runs one turn for a recorded chunk. Chunks recorded while
// the customer was speaking are dropped.
func (c *CallSession) HandleAudioChunk(ctx context.Context, audioBase64, mimeType string) {
	if !c.started {
		c.sendError("Call not started")
		return
	}
	c.chunkCount++
	if c.speaking {
		slog.Debug("Dropping chunk recorded during playback", "call_id", c.ID, "chunk", c.chunkCount)
		return
	}

	audio, err := base64.StdEncoding.DecodeString(audioBase64)
	if err != nil || len(audio) == 0 {
		slog.Error("Failed to decode audio chunk", "error", err, "call_id", c.ID)
		c.sendError("Invalid audio chunk")
		return
	}
	if mimeType == "" {
		mimeType = defaultChunkMimeType
	}

	text, err := c.conversation.Transcribe(ctx, audio, mimeType)
	if err != nil {
		slog.Error("Transcription failed", "error", err, "call_id", c.ID)
		c.sendError("Transcription failed")
		return
	}
	if text == "" {
		slog.Debug("Empty transcription, skipping turn", "call_id", c.ID)
		return
	}

	c.HandleText(ctx, text)
}

// HandleText runs one turn for text the salesperson said
func (c *CallSession) HandleText(ctx context.Context, text string) {
	if !c.started {
		c.sendError("Call not started")
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	c.send(ws.Message{Type: EventUserMessage, Content: text})

	reply, history, err := c.conversation.Reply(ctx, c.transcript.Messages(), text, c.scenario)
	if err != nil {
		slog.Error("Reply generation failed", "error", err, "call_id", c.ID)
		c.sendError("Failed to generate a reply")
		return
	}
	c.transcript = models.NewConversation(history...)

	c.send(ws.Message{Type: EventAssistantMessage, Content: reply})
	c.speak(ctx, reply)
}

// SetSpeaking records the client's playback state
func (c *CallSession) SetSpeaking(speaking bool) {
	c.speaking = speaking
}

func (c *CallSession) Speaking() bool {
	return c.speaking
}

// Transcript returns the conversation so far
func (c *CallSession) Transcript() []models.Message {
	return c.transcript.Messages()
}

// End evaluates the call, records it when the caller is known and sends the
// result as the final event.
func (c *CallSession) End(ctx context.Context) *CallEnd {
	messages := c.transcript.Messages()
	if c.started {
		// the sign-off is not part of the evaluated transcript
		c.send(ws.Message{Type: EventAssistantMessage, Content: ClosingLine})
		c.speak(ctx, ClosingLine)
	}

	result := c.evaluator.Evaluate(ctx, messages, c.scenario)
	end := &CallEnd{Evaluation: result, Messages: messages}

	if c.recorder != nil && c.UserID != "" && c.started {
		session, _, err := c.recorder.Record(ctx, RecordRequest{
			ID:        c.sessionID,
			UserID:    c.UserID,
			StartTime: c.startTime.UnixMilli(),
			EndTime:   c.now().UnixMilli(),
			Scenario:  c.scenario,
		}, result)
		if err != nil {
			slog.Error("Failed to record call", "error", err, "call_id", c.ID, "store_error", errors.Is(err, ErrStore))
		} else {
			end.Session = session
			end.Saved = true
		}
	}

	data, err := json.Marshal(end)
	if err != nil {
		slog.Error("Failed to marshal call result", "error", err, "call_id", c.ID)
		return end
	}
	c.send(ws.Message{Type: EventEvaluation, Data: data})

	slog.Info("Call ended",
		"call_id", c.ID,
		"user_id", c.UserID,
		"messages", len(messages),
		"overall_score", result.OverallScore,
		"saved", end.Saved)
	return end
}

// speak synthesizes text; on failure the turn stays text-only
func (c *CallSession) speak(ctx context.Context, text string) {
	if !c.conversation.CanSynthesize() {
		return
	}
	audio, err := c.conversation.Synthesize(ctx, text, c.scenario)
	if err != nil {
		c.sendError("Speech synthesis failed")
		return
	}
	if c.send(ws.Message{
		Type:            EventAudio,
		AudioDataBase64: base64.StdEncoding.EncodeToString(audio),
		MimeType:        "audio/mpeg",
	}) {
		c.speaking = true
	}
}

func (c *CallSession) sendError(message string) {
	c.send(ws.Message{Type: EventError, Content: message})
}

func (c *CallSession) send(msg ws.Message) bool {
	if c.sender == nil {
		return false
	}
	return c.sender.SendMessage(msg)
}

func decodeStartPayload(raw json.RawMessage) (StartPayload, error) {
	var payload StartPayload
	if len(raw) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, fmt.Errorf("%w: invalid start payload: %v", ErrValidation, err)
	}
	return payload, nil
}
