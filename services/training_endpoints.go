package services

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jasonachkar/persuade/models"
)

type TrainingEndpoints struct {
	recorder  *Recorder
	evaluator *Evaluator
}

func NewTrainingEndpoints(recorder *Recorder, evaluator *Evaluator) *TrainingEndpoints {
	return &TrainingEndpoints{recorder: recorder, evaluator: evaluator}
}

// SaveTrainingRequest records an already evaluated call
type SaveTrainingRequest struct {
	RecordRequest
	OverallScore     float64                 `json:"overallScore"`
	DetailedFeedback []models.AspectFeedback `json:"detailedFeedback"`
	Summary          string                  `json:"summary"`
}

type SaveTrainingResponse struct {
	Success bool                    `json:"success"`
	Created bool                    `json:"created"`
	Session *models.TrainingSession `json:"session"`
}

func (e *TrainingEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/training", func(r chi.Router) {
		r.Post("/", e.SaveTrainingHandler)
		r.Get("/", e.GetTrainingHandler)
	})
	r.Get("/metrics", e.MetricsHandler)
}

func (e *TrainingEndpoints) SaveTrainingHandler(w http.ResponseWriter, r *http.Request) {
	var req SaveTrainingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	req.UserID = resolveUserID(r, req.UserID)

	result := &models.EvaluationResult{
		OverallScore:     req.OverallScore,
		DetailedFeedback: req.DetailedFeedback,
		Summary:          req.Summary,
	}
	session, created, err := e.recorder.Record(r.Context(), req.RecordRequest, result)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	writeJSON(w, status, SaveTrainingResponse{Success: true, Created: created, Session: session})
}

// GetTrainingHandler returns the user's recent sessions and totals
func (e *TrainingEndpoints) GetTrainingHandler(w http.ResponseWriter, r *http.Request) {
	userID := resolveUserID(r, r.URL.Query().Get("userId"))
	history, err := e.recorder.History(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// MetricsHandler is a read-only view over the same stats record
func (e *TrainingEndpoints) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	userID := resolveUserID(r, r.URL.Query().Get("userId"))
	stats, err := e.recorder.Stats(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := map[string]interface{}{
		"totalSimulations":  stats.TotalSimulations,
		"totalTrainingTime": stats.TotalTrainingTime,
		"lastSessionTime":   stats.LastSessionTime,
	}
	if e.evaluator != nil {
		modelCount, fallbackCount := e.evaluator.Counts()
		resp["evaluations"] = map[string]int64{OutcomeModel: modelCount, OutcomeFallback: fallbackCount}
	}
	writeJSON(w, http.StatusOK, resp)
}
