package services

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jasonachkar/persuade/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, config *Config) (*httptest.Server, func()) {
	t.Helper()
	store, mr := newTestStore(t)
	if config == nil {
		config = &Config{}
	}
	s := NewServer(config, store)
	require.NoError(t, s.InitializeServices(context.Background()))
	srv := httptest.NewServer(s.SetupRoutes())
	t.Cleanup(func() {
		srv.Close()
		s.Close()
	})
	return srv, mr.Close
}

func doJSON(t *testing.T, method, url string, body interface{}, headers ...string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestHealth(t *testing.T) {
	srv, stopStore := newTestServer(t, nil)

	resp := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body["status"])

	stopStore()
	resp = doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestScenariosSeededOnFirstRead(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/scenarios", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var opts models.ScenarioOptions
	decodeBody(t, resp, &opts)
	assert.Equal(t, models.DefaultScenarioOptions().Difficulties, opts.Difficulties)
	assert.Len(t, opts.Emotions, 4)
	assert.Len(t, opts.Products, 3)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/scenarios", AddOptionRequest{
		Category: models.CategoryEmotion, Value: "skeptical", Label: "Skeptical",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/scenarios", nil)
	decodeBody(t, resp, &opts)
	require.Len(t, opts.Emotions, 5)
	assert.Equal(t, "skeptical", opts.Emotions[4].Value)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/scenarios", AddOptionRequest{Category: "weather", Value: "x", Label: "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func postProductForm(t *testing.T, url string, fields map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(url, mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestProductLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	url := srv.URL + "/api/v1/products"

	resp := postProductForm(t, url, map[string]string{"name": "Headsets", "description": "Noise-cancelling"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Product
	decodeBody(t, resp, &created)
	assert.NotEmpty(t, created.ID)
	assert.NotZero(t, created.CreatedAt)
	assert.Equal(t, models.ImageKind(""), created.Image.Kind)

	resp = doJSON(t, http.MethodGet, url, nil)
	var products []models.Product
	decodeBody(t, resp, &products)
	require.Len(t, products, 1)
	assert.Equal(t, "Headsets", products[0].Name)
	assert.Equal(t, "Noise-cancelling", products[0].Description)

	resp = doJSON(t, http.MethodDelete, url+"?id=does-not-exist", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &products)
	assert.Len(t, products, 1)

	resp = doJSON(t, http.MethodDelete, url+"?id="+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &products)
	assert.Empty(t, products)

	resp = doJSON(t, http.MethodDelete, url, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProductRequiresFields(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := postProductForm(t, srv.URL+"/api/v1/products", map[string]string{"name": "Headsets"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Contains(t, body["error"], "All fields are required")
}

func TestProductWithImageURL(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := postProductForm(t, srv.URL+"/api/v1/products", map[string]string{
		"name": "Desk", "description": "Standing desk", "imageUrl": "https://cdn.example.com/desk.png",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Product
	decodeBody(t, resp, &created)
	assert.Equal(t, models.ImageFromURL("https://cdn.example.com/desk.png"), created.Image)
}

func TestEvaluateAndRecord(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := EvaluateRequest{
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "Hi, I'd like to tell you about our CRM."},
			{Role: models.RoleAssistant, Content: "I'm not interested, I'm busy."},
		},
		Scenario: angryCRM,
		Record:   &RecordRequest{ID: "s-1", UserID: "u-1", StartTime: 1000, EndTime: 61_000},
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/evaluate", req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body EvaluateResponse
	decodeBody(t, resp, &body)
	assertResultShape(t, body.EvaluationResult)
	assert.Equal(t, FallbackSummary, body.Summary)
	assert.True(t, body.Saved)
	require.NotNil(t, body.Session)
	assert.Equal(t, angryCRM, body.Session.Scenario)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/training?userId=u-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history TrainingHistory
	decodeBody(t, resp, &history)
	require.Len(t, history.Sessions, 1)
	assert.Equal(t, int64(60_000), history.Sessions[0].Duration)
	assert.Equal(t, int64(1), history.TotalSimulations)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/metrics?userId=u-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var metrics map[string]interface{}
	decodeBody(t, resp, &metrics)
	assert.Equal(t, float64(1), metrics["totalSimulations"])
	assert.Equal(t, float64(60_000), metrics["totalTrainingTime"])
}

func TestEvaluateStoreFailureReturnsUnsaved(t *testing.T) {
	srv, stopStore := newTestServer(t, nil)
	stopStore()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/evaluate", EvaluateRequest{
		Scenario: angryCRM,
		Record:   &RecordRequest{UserID: "u-1", StartTime: 1000, EndTime: 2000},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body EvaluateResponse
	decodeBody(t, resp, &body)
	assertResultShape(t, body.EvaluationResult)
	assert.False(t, body.Saved)
}

func TestTrainingRequiresUser(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/training", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/training", SaveTrainingRequest{
		RecordRequest: RecordRequest{StartTime: 1, EndTime: 2, Scenario: angryCRM},
		OverallScore:  3,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSaveTrainingIsIdempotent(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	result := fixedResult(4)
	req := SaveTrainingRequest{
		RecordRequest:    RecordRequest{ID: "s-9", UserID: "u-9", StartTime: 1000, EndTime: 5000, Scenario: angryCRM},
		OverallScore:     result.OverallScore,
		DetailedFeedback: result.DetailedFeedback,
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/training", req)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/training", req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/metrics?userId=u-9", nil)
	var metrics map[string]interface{}
	decodeBody(t, resp, &metrics)
	assert.Equal(t, float64(1), metrics["totalSimulations"])
}

func TestSaveTrainingRejectsMalformedRecords(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	result := fixedResult(3)

	tests := []struct {
		name string
		req  SaveTrainingRequest
	}{
		{
			name: "no feedback",
			req: SaveTrainingRequest{
				RecordRequest: RecordRequest{UserID: "u-5", StartTime: 1000, EndTime: 2000, Scenario: angryCRM},
				OverallScore:  3,
			},
		},
		{
			name: "reserved id",
			req: SaveTrainingRequest{
				RecordRequest:    RecordRequest{ID: "sessions", UserID: "u-5", StartTime: 1000, EndTime: 2000, Scenario: angryCRM},
				OverallScore:     3,
				DetailedFeedback: result.DetailedFeedback,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/training", tt.req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/training?userId=u-5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history TrainingHistory
	decodeBody(t, resp, &history)
	assert.Empty(t, history.Sessions)
}

func TestAuthenticatedRoutes(t *testing.T) {
	srv, _ := newTestServer(t, &Config{JWT: JWTConfig{Secret: "test-secret"}})

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/scenarios", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/scenarios", nil, "Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := NewAuthService("test-secret").IssueToken("user-42", "a@example.com", time.Hour)
	require.NoError(t, err)
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/scenarios", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// the token's user wins over a supplied userId
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/metrics?userId=someone-else", nil, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRealtimeRoutesNeedProvider(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/realtime/credential", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSpeechWithoutProviders(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/conversation", ConversationRequest{AudioTranscript: "Hello"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/speech", SpeechRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
