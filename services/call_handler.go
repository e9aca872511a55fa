package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	ws "github.com/jasonachkar/persuade/websocket"
)

// Inbound call socket message types
const (
	MsgStart           = "start"
	MsgAudioChunk      = "audio_chunk"
	MsgText            = "text"
	MsgPlaybackStarted = "playback_started"
	MsgPlaybackEnded   = "playback_ended"
	MsgPlaybackPaused  = "playback_paused"
	MsgEndSession      = "end_session"
)

const (
	turnTimeout = 60 * time.Second
	closeDelay  = 200 * time.Millisecond
)

// CallHandler serves the chunked call websocket
type CallHandler struct {
	hub             *ws.Hub
	upgrader        websocket.Upgrader
	conversation    *ConversationService
	evaluator       *Evaluator
	recorder        *Recorder
	tracker         *CallTracker
	chunkDurationMS int
}

func NewCallHandler(hub *ws.Hub, upgrader websocket.Upgrader, conversation *ConversationService, evaluator *Evaluator, recorder *Recorder, tracker *CallTracker, chunkDurationMS int) *CallHandler {
	return &CallHandler{
		hub:             hub,
		upgrader:        upgrader,
		conversation:    conversation,
		evaluator:       evaluator,
		recorder:        recorder,
		tracker:         tracker,
		chunkDurationMS: chunkDurationMS,
	}
}

func (h *CallHandler) RegisterRoutes(r chi.Router) {
	r.Get("/call/ws", h.ServeWS)
}

// ServeWS upgrades the request and runs the call until the socket closes,
// the caller ends it or it goes idle.
func (h *CallHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := resolveUserID(r, r.URL.Query().Get("userId"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	client := h.hub.RegisterClient(conn, userID)
	slog.Info("WebSocket connection established", "user_id", userID, "call_id", client.CallID)

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	if h.tracker != nil {
		h.tracker.RegisterCall(client.CallID, userID, cancel)
		defer h.tracker.EndCall(client.CallID)
	}

	go client.WritePump()
	go client.ReadPump()

	call := NewCallSession(client.CallID, userID, client, h.conversation, h.evaluator, h.recorder)
	h.run(ctx, client, call)
}

// run is the call's single worker: messages are handled strictly in arrival order
func (h *CallHandler) run(ctx context.Context, client *ws.Client, call *CallSession) {
	defer client.Close()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Closing idle call", "call_id", call.ID)
			client.SendMessage(ws.Message{Type: EventStatus, Content: "Call ended due to inactivity"})
			time.Sleep(closeDelay)
			return

		case raw, ok := <-client.Inbound:
			if !ok {
				slog.Info("Call socket closed", "call_id", call.ID, "messages", len(call.Transcript()))
				return
			}
			if h.tracker != nil {
				h.tracker.Touch(call.ID)
			}
			if done := h.handleMessage(ctx, call, raw); done {
				// let the write pump flush the final event
				time.Sleep(closeDelay)
				return
			}
		}
	}
}

// handleMessage processes one inbound frame; true ends the call
func (h *CallHandler) handleMessage(ctx context.Context, call *CallSession, raw []byte) bool {
	var msg ws.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		slog.Error("Failed to unmarshal WebSocket message", "error", err, "call_id", call.ID)
		call.sendError("Invalid message")
		return false
	}

	slog.Debug("WebSocket message received", "type", msg.Type, "call_id", call.ID)

	switch msg.Type {
	case MsgStart:
		payload, err := decodeStartPayload(msg.Data)
		if err != nil {
			call.sendError(err.Error())
			return false
		}
		turnCtx, cancel := context.WithTimeout(ctx, turnTimeout)
		defer cancel()
		call.Start(turnCtx, payload)
		if h.chunkDurationMS > 0 {
			data, _ := json.Marshal(map[string]int{"chunkDurationMs": h.chunkDurationMS})
			call.send(ws.Message{Type: EventStatus, Content: "Recording", Data: data})
		}

	case MsgAudioChunk:
		turnCtx, cancel := context.WithTimeout(ctx, turnTimeout)
		defer cancel()
		call.HandleAudioChunk(turnCtx, msg.AudioDataBase64, msg.MimeType)

	case MsgText:
		turnCtx, cancel := context.WithTimeout(ctx, turnTimeout)
		defer cancel()
		call.HandleText(turnCtx, msg.Content)

	case MsgPlaybackStarted:
		call.SetSpeaking(true)

	case MsgPlaybackEnded, MsgPlaybackPaused:
		call.SetSpeaking(false)

	case MsgEndSession:
		slog.Info("Received end_session request", "call_id", call.ID)
		// evaluation outlives the socket
		evalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultEvaluationTimeout+10*time.Second)
		defer cancel()
		call.End(evalCtx)
		return true

	default:
		slog.Warn("Unknown message type", "type", msg.Type, "call_id", call.ID)
	}
	return false
}
