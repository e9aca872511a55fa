package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jasonachkar/persuade/models"
)

type EvaluationEndpoints struct {
	evaluator *Evaluator
	recorder  *Recorder
}

func NewEvaluationEndpoints(evaluator *Evaluator, recorder *Recorder) *EvaluationEndpoints {
	return &EvaluationEndpoints{evaluator: evaluator, recorder: recorder}
}

type EvaluateRequest struct {
	Messages []models.Message         `json:"messages"`
	Scenario models.ScenarioSelection `json:"scenario"`
	Record   *RecordRequest           `json:"record,omitempty"`
}

type EvaluateResponse struct {
	*models.EvaluationResult
	Saved   bool                    `json:"saved"`
	Session *models.TrainingSession `json:"session,omitempty"`
}

func (e *EvaluationEndpoints) RegisterRoutes(r chi.Router) {
	r.Post("/evaluate", e.EvaluateHandler)
}

// EvaluateHandler scores a transcript and optionally records the session.
// A store failure still returns the evaluation, with saved=false.
func (e *EvaluationEndpoints) EvaluateHandler(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	// not cancelled when the client disconnects
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), defaultEvaluationTimeout+10*time.Second)
	defer cancel()

	result := e.evaluator.Evaluate(ctx, req.Messages, req.Scenario)
	resp := EvaluateResponse{EvaluationResult: result}

	if req.Record != nil {
		rec := *req.Record
		rec.UserID = resolveUserID(r, rec.UserID)
		if rec.Scenario.IsZero() {
			rec.Scenario = req.Scenario
		}
		if err := recordResult(ctx, e.recorder, rec, &resp); err != nil {
			writeServiceError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// recordResult persists an evaluated call into resp. Only validation errors
// are returned; a store failure is logged and leaves resp.Saved false.
func recordResult(ctx context.Context, recorder *Recorder, rec RecordRequest, resp *EvaluateResponse) error {
	if recorder == nil {
		return nil
	}
	session, created, err := recorder.Record(ctx, rec, resp.EvaluationResult)
	switch {
	case err == nil:
		resp.Saved = true
		resp.Session = session
		if !created {
			slog.Info("Session already recorded", "session_id", session.ID)
		}
	case errors.Is(err, ErrValidation):
		return err
	default:
		slog.Error("Failed to record session", "error", err, "user_id", rec.UserID)
	}
	return nil
}
