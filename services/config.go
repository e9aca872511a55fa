package services

import (
	"log/slog"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Database  DatabaseConfig
	AI        AIConfig
	Realtime  RealtimeConfig
	Speech    SpeechConfig
	JWT       JWTConfig
	WebSocket WebSocketConfig
	Billing   BillingConfig
	Training  TrainingConfig
	Telemetry TelemetryConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port string
}

type StoreConfig struct {
	Backend  string // redis | postgres
	RedisURL string
}

type DatabaseConfig struct {
	URL          string
	LogLevel     string
	MaxIdleConns int
	MaxOpenConns int
}

type AIConfig struct {
	GeminiAPIKey string
	GeminiModel  string
}

type RealtimeConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Voice   string
}

type SpeechConfig struct {
	Provider          string // elevenlabs | google
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	GoogleVoiceName   string
}

type JWTConfig struct {
	Secret string
}

type WebSocketConfig struct {
	AllowedOrigins string
}

type BillingConfig struct {
	StripeSecretKey string
	AppURL          string
}

type TrainingConfig struct {
	SessionListLimit int
	ChunkDurationMS  int
}

type TelemetryConfig struct {
	Enabled  bool
	Endpoint string
}

type LogConfig struct {
	File  string
	Level string
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("websocket.allowed_origins", "")
	viper.SetDefault("store.backend", "redis")
	viper.SetDefault("redis.url", "redis://localhost:6379/0")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.log_level", "silent")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("gemini.model", DefaultGeminiModel)
	viper.SetDefault("openai.api_key", "")
	viper.SetDefault("openai.base_url", DefaultRealtimeBaseURL)
	viper.SetDefault("realtime.model", DefaultRealtimeModel)
	viper.SetDefault("realtime.voice", DefaultRealtimeVoice)
	viper.SetDefault("tts.provider", "elevenlabs")
	viper.SetDefault("elevenlabs.api_key", "")
	viper.SetDefault("elevenlabs.voice_id", "")
	viper.SetDefault("google_tts.voice", "en-US-Standard-F")
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("stripe.secret_key", "")
	viper.SetDefault("app.url", "http://localhost:3000")
	viper.SetDefault("training.session_list_limit", "10")
	viper.SetDefault("training.chunk_duration_ms", "3000")
	viper.SetDefault("otel.enabled", "false")
	viper.SetDefault("otel.endpoint", "localhost:4318")
	viper.SetDefault("log.file", "")
	viper.SetDefault("log.level", "info")

	// Map environment variables to config keys
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")
	viper.BindEnv("store.backend", "STORE_BACKEND")
	viper.BindEnv("redis.url", "REDIS_URL")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("gemini.model", "GEMINI_MODEL")
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	viper.BindEnv("realtime.model", "REALTIME_MODEL")
	viper.BindEnv("realtime.voice", "REALTIME_VOICE")
	viper.BindEnv("tts.provider", "TTS_PROVIDER")
	viper.BindEnv("elevenlabs.api_key", "ELEVENLABS_API_KEY")
	viper.BindEnv("elevenlabs.voice_id", "ELEVENLABS_VOICE_ID")
	viper.BindEnv("google_tts.voice", "GOOGLE_TTS_VOICE")
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("stripe.secret_key", "STRIPE_SECRET_KEY")
	viper.BindEnv("app.url", "APP_URL")
	viper.BindEnv("training.session_list_limit", "SESSION_LIST_LIMIT")
	viper.BindEnv("training.chunk_duration_ms", "CHUNK_DURATION_MS")
	viper.BindEnv("otel.enabled", "OTEL_ENABLED")
	viper.BindEnv("otel.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	viper.BindEnv("log.file", "LOG_FILE")
	viper.BindEnv("log.level", "LOG_LEVEL")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
		},
		Store: StoreConfig{
			Backend:  viper.GetString("store.backend"),
			RedisURL: viper.GetString("redis.url"),
		},
		Database: DatabaseConfig{
			URL:          viper.GetString("database.url"),
			LogLevel:     viper.GetString("database.log_level"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
		},
		AI: AIConfig{
			GeminiAPIKey: viper.GetString("gemini.api_key"),
			GeminiModel:  viper.GetString("gemini.model"),
		},
		Realtime: RealtimeConfig{
			APIKey:  viper.GetString("openai.api_key"),
			BaseURL: viper.GetString("openai.base_url"),
			Model:   viper.GetString("realtime.model"),
			Voice:   viper.GetString("realtime.voice"),
		},
		Speech: SpeechConfig{
			Provider:          viper.GetString("tts.provider"),
			ElevenLabsKey:     viper.GetString("elevenlabs.api_key"),
			ElevenLabsVoiceID: viper.GetString("elevenlabs.voice_id"),
			GoogleVoiceName:   viper.GetString("google_tts.voice"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: viper.GetString("websocket.allowed_origins"),
		},
		Billing: BillingConfig{
			StripeSecretKey: viper.GetString("stripe.secret_key"),
			AppURL:          viper.GetString("app.url"),
		},
		Training: TrainingConfig{
			SessionListLimit: viper.GetInt("training.session_list_limit"),
			ChunkDurationMS:  viper.GetInt("training.chunk_duration_ms"),
		},
		Telemetry: TelemetryConfig{
			Enabled:  viper.GetBool("otel.enabled"),
			Endpoint: viper.GetString("otel.endpoint"),
		},
		Log: LogConfig{
			File:  viper.GetString("log.file"),
			Level: viper.GetString("log.level"),
		},
	}
}
