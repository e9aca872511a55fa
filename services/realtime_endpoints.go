package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jasonachkar/persuade/models"
)

type RealtimeEndpoints struct {
	provider  RealtimeProvider
	evaluator *Evaluator
	recorder  *Recorder
	tracker   *CallTracker

	mu    sync.Mutex
	calls map[string]*realtimeCall
}

// realtimeCall is a negotiated call whose media runs in the browser
type realtimeCall struct {
	bridge *Bridge
	peer   *relayPeer
	userID string
}

// NewRealtimeEndpoints serves the realtime call lifecycle. recorder and
// tracker may be nil.
func NewRealtimeEndpoints(provider RealtimeProvider, evaluator *Evaluator, recorder *Recorder, tracker *CallTracker) *RealtimeEndpoints {
	return &RealtimeEndpoints{
		provider:  provider,
		evaluator: evaluator,
		recorder:  recorder,
		tracker:   tracker,
		calls:     make(map[string]*realtimeCall),
	}
}

type NegotiateRequest struct {
	OfferSDP string                   `json:"offerSdp" validate:"required"`
	UserID   string                   `json:"userId"`
	Scenario models.ScenarioSelection `json:"scenario"`
}

type NegotiateResponse struct {
	CallID    string `json:"callId"`
	AnswerSDP string `json:"answerSdp"`
	Status    string `json:"status"`
}

// EventsRequest carries data-channel messages forwarded by the browser
type EventsRequest struct {
	Events []json.RawMessage `json:"events" validate:"required"`
}

type HangupRequest struct {
	Record *RecordRequest `json:"record,omitempty"`
}

type HangupResponse struct {
	EvaluateResponse
	Messages []models.Message `json:"messages"`
	Status   string           `json:"status"`
}

func (e *RealtimeEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/realtime", func(r chi.Router) {
		r.Get("/credential", e.CredentialHandler)
		r.Post("/negotiate", e.NegotiateHandler)
		r.Post("/calls/{callID}/events", e.EventsHandler)
		r.Post("/calls/{callID}/hangup", e.HangupHandler)
	})
}

// CredentialHandler hands the browser a short-lived secret for a direct connection
func (e *RealtimeEndpoints) CredentialHandler(w http.ResponseWriter, r *http.Request) {
	cred, err := e.provider.CreateEphemeralCredential(r.Context())
	if err != nil {
		slog.Error("Failed to create ephemeral credential", "error", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"client_secret": cred})
}

// NegotiateHandler relays the browser's offer through a bridge and returns the
// answer. The bridge stays open to collect the transcript until hangup.
func (e *RealtimeEndpoints) NegotiateHandler(w http.ResponseWriter, r *http.Request) {
	var req NegotiateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := ValidateRequest(req); err != nil {
		writeServiceError(w, err)
		return
	}

	peer := newRelayPeer(req.OfferSDP)
	bridge := NewBridge(e.provider, peer)
	answer, err := bridge.Start(r.Context(), req.Scenario)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	callID := uuid.NewString()
	userID := resolveUserID(r, req.UserID)
	e.mu.Lock()
	e.calls[callID] = &realtimeCall{bridge: bridge, peer: peer, userID: userID}
	e.mu.Unlock()
	if e.tracker != nil {
		e.tracker.RegisterCall(callID, userID, func() { e.drop(callID) })
	}

	slog.Info("Realtime call started", "call_id", callID, "user_id", userID)
	writeJSON(w, http.StatusOK, NegotiateResponse{CallID: callID, AnswerSDP: answer, Status: bridge.StatusText()})
}

// EventsHandler feeds forwarded data-channel events into the call transcript
func (e *RealtimeEndpoints) EventsHandler(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")
	call := e.lookup(callID)
	if call == nil {
		writeError(w, http.StatusNotFound, "Call not found")
		return
	}

	var req EventsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	accepted := 0
	for _, raw := range req.Events {
		if err := call.peer.Forward(r.Context(), raw); err != nil {
			slog.Warn("Dropping realtime events", "call_id", callID, "error", err, "dropped", len(req.Events)-accepted)
			break
		}
		accepted++
	}
	if e.tracker != nil {
		e.tracker.Touch(callID)
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": accepted})
}

// HangupHandler ends the call, evaluates the transcript and optionally records it
func (e *RealtimeEndpoints) HangupHandler(w http.ResponseWriter, r *http.Request) {
	var req HangupRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeServiceError(w, err)
			return
		}
	}

	callID := chi.URLParam(r, "callID")
	call := e.take(callID)
	if call == nil {
		writeError(w, http.StatusNotFound, "Call not found")
		return
	}
	if e.tracker != nil {
		e.tracker.EndCall(callID)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), defaultEvaluationTimeout+10*time.Second)
	defer cancel()

	result := call.bridge.Hangup(ctx, e.evaluator)
	resp := HangupResponse{
		EvaluateResponse: EvaluateResponse{EvaluationResult: result},
		Messages:         call.bridge.Transcript(),
		Status:           call.bridge.StatusText(),
	}

	if req.Record != nil {
		rec := *req.Record
		rec.UserID = resolveUserID(r, rec.UserID)
		if rec.UserID == "" {
			rec.UserID = call.userID
		}
		if rec.Scenario.IsZero() {
			rec.Scenario = call.bridge.Scenario()
		}
		if err := recordResult(ctx, e.recorder, rec, &resp.EvaluateResponse); err != nil {
			writeServiceError(w, err)
			return
		}
	}

	slog.Info("Realtime call ended", "call_id", callID, "messages", len(resp.Messages), "saved", resp.Saved)
	writeJSON(w, http.StatusOK, resp)
}

func (e *RealtimeEndpoints) lookup(callID string) *realtimeCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[callID]
}

func (e *RealtimeEndpoints) take(callID string) *realtimeCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	call := e.calls[callID]
	delete(e.calls, callID)
	return call
}

// drop abandons an idle call without evaluating it
func (e *RealtimeEndpoints) drop(callID string) {
	if call := e.take(callID); call != nil {
		call.bridge.Teardown()
		slog.Info("Realtime call abandoned", "call_id", callID)
	}
}
