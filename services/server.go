package services

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/jasonachkar/persuade/repository"
	ws "github.com/jasonachkar/persuade/websocket"
)

// Server holds all server dependencies
type Server struct {
	config *Config
	store  repository.Store

	geminiService  *GeminiService
	realtime       RealtimeProvider
	synthesizer    Synthesizer
	googleTTS      *GoogleTTSService
	conversation   *ConversationService
	evaluator      *Evaluator
	recorder       *Recorder
	scenarios      *ScenarioCatalog
	products       *ProductCatalog
	checkout       CheckoutCreator
	authService    *AuthService
	callTracker    *CallTracker
	wsHub          *ws.Hub
	upgrader       websocket.Upgrader
	stopBackground context.CancelFunc
}

// NewServer creates a new server instance over an opened store
func NewServer(config *Config, store repository.Store) *Server {
	return &Server{
		config: config,
		store:  store,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, config.WebSocket.AllowedOrigins)
			},
		},
	}
}

// InitializeServices builds providers from config; missing keys leave the
// matching feature unconfigured rather than failing startup.
func (s *Server) InitializeServices(ctx context.Context) error {
	if s.config.AI.GeminiAPIKey != "" {
		gemini, err := NewGeminiService(ctx, s.config.AI.GeminiAPIKey, s.config.AI.GeminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini service", "error", err)
		} else {
			s.geminiService = gemini
			slog.Info("Gemini service initialized", "model", s.config.AI.GeminiModel)
		}
	} else {
		slog.Warn("Gemini API key not configured, evaluations will use the fallback")
	}

	if s.config.Realtime.APIKey != "" {
		s.realtime = NewOpenAIRealtimeService(s.config.Realtime)
		slog.Info("Realtime voice service initialized", "model", s.config.Realtime.Model)
	}

	switch strings.ToLower(s.config.Speech.Provider) {
	case "google":
		tts, err := NewGoogleTTSService(ctx, s.config.Speech.GoogleVoiceName)
		if err != nil {
			slog.Error("Failed to initialize Google TTS", "error", err)
		} else {
			s.googleTTS = tts
			s.synthesizer = tts
			slog.Info("Google TTS service initialized")
		}
	default:
		if s.config.Speech.ElevenLabsKey != "" {
			s.synthesizer = NewElevenLabsService(s.config.Speech.ElevenLabsKey, s.config.Speech.ElevenLabsVoiceID)
			slog.Info("ElevenLabs service initialized")
		}
	}

	// typed nils must not leak into the interfaces
	var transcriber Transcriber
	var replier Replier
	var scorer Scorer
	if s.geminiService != nil {
		transcriber, replier, scorer = s.geminiService, s.geminiService, s.geminiService
	}

	s.conversation = NewConversationService(transcriber, replier, s.synthesizer, NewAudioCache())
	s.evaluator = NewEvaluator(scorer)
	s.recorder = NewRecorder(s.store, s.config.Training.SessionListLimit)
	s.scenarios = NewScenarioCatalog(s.store)
	s.products = NewProductCatalog(s.store)

	if s.config.Billing.StripeSecretKey != "" {
		s.checkout = NewStripeCheckout(s.config.Billing.StripeSecretKey)
		slog.Info("Stripe checkout initialized")
	}

	if s.config.JWT.Secret != "" {
		s.authService = NewAuthService(s.config.JWT.Secret)
		slog.Info("Authentication service initialized")
	} else {
		slog.Warn("JWT secret not configured, API routes are unauthenticated")
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	s.stopBackground = cancel

	s.callTracker = NewCallTracker(DefaultCallIdleLimit)
	go s.callTracker.Run(bgCtx)

	s.wsHub = ws.NewHub()
	go s.wsHub.Run()

	return nil
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.healthHandler)

		r.Group(func(r chi.Router) {
			if s.authService != nil {
				r.Use(s.authService.Middleware)
			}

			if s.realtime != nil {
				NewRealtimeEndpoints(s.realtime, s.evaluator, s.recorder, s.callTracker).RegisterRoutes(r)
			}
			NewCallHandler(s.wsHub, s.upgrader, s.conversation, s.evaluator, s.recorder,
				s.callTracker, s.config.Training.ChunkDurationMS).RegisterRoutes(r)
			NewSpeechEndpoints(s.conversation).RegisterRoutes(r)
			NewEvaluationEndpoints(s.evaluator, s.recorder).RegisterRoutes(r)
			NewTrainingEndpoints(s.recorder, s.evaluator).RegisterRoutes(r)
			NewCatalogEndpoints(s.scenarios, s.products).RegisterRoutes(r)
			if s.checkout != nil {
				NewCheckoutEndpoints(s.checkout, s.config.Billing.AppURL).RegisterRoutes(r)
			}
		})
	})

	return r
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM
func (s *Server) Start() {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: s.SetupRoutes(),
	}

	go func() {
		slog.Info("Starting server", "port", port, "store", s.store.Name())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	s.Close()

	slog.Info("Server exited")
}

// Close stops background workers and releases provider clients
func (s *Server) Close() {
	if s.stopBackground != nil {
		s.stopBackground()
	}
	if s.googleTTS != nil {
		if err := s.googleTTS.Close(); err != nil {
			slog.Warn("Failed to close Google TTS client", "error", err)
		}
	}
}

// CheckOrigin validates the origin of WebSocket connections to prevent CSRF attacks
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	// If no allowed origins are configured, deny all requests for security
	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	for _, allowed := range strings.Split(allowedOriginsStr, ",") {
		if strings.TrimSpace(allowed) == origin {
			slog.Info("WebSocket connection accepted", "origin", origin)
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	storeStatus := "up"

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		slog.Error("Store ping failed", "error", err, "store", s.store.Name())
		storeStatus = "down"
		status = "degraded"
	}

	resp := map[string]interface{}{
		"status": status,
		"store":  map[string]string{"backend": s.store.Name(), "status": storeStatus},
	}
	if s.callTracker != nil {
		resp["activeCalls"] = s.callTracker.ActiveCount()
	}
	if s.evaluator != nil {
		modelCount, fallbackCount := s.evaluator.Counts()
		resp["evaluations"] = map[string]int64{OutcomeModel: modelCount, OutcomeFallback: fallbackCount}
	}

	httpStatus := http.StatusOK
	if storeStatus == "down" {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, resp)

	slog.Debug("Health check", "status", status, "store", storeStatus)
}
