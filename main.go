package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jasonachkar/persuade/repository"
	svc "github.com/jasonachkar/persuade/services"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	// Setup structured logging with JSON format
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	config := svc.LoadConfig()

	if closer := setupLogger(config.Log); closer != nil {
		defer closer.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := openStore(ctx, config)
	if err != nil {
		cancel()
		slog.Error("Failed to open store", "error", err, "backend", config.Store.Backend)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Connected to store", "backend", store.Name())

	if _, err := svc.NewScenarioSeeder(store).SeedIfEmpty(ctx); err != nil {
		slog.Warn("Failed to seed scenario options", "error", err)
	}
	cancel()

	shutdownTelemetry := svc.InitTelemetry(context.Background(), config.Telemetry)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
		}
	}()

	server := svc.NewServer(config, store)
	if err := server.InitializeServices(context.Background()); err != nil {
		slog.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}
	server.Start()
}

// openStore connects the configured backend; postgres tables are migrated on start
func openStore(ctx context.Context, config *svc.Config) (repository.Store, error) {
	if strings.EqualFold(config.Store.Backend, "postgres") {
		repo, err := repository.OpenPostgres(ctx, config.Database.URL, config.Database.LogLevel,
			config.Database.MaxIdleConns, config.Database.MaxOpenConns)
		if err != nil {
			return nil, err
		}
		if err := repo.AutoMigrate(); err != nil {
			repo.Close()
			return nil, err
		}
		return repo, nil
	}

	client, err := repository.NewRedisClient(ctx, config.Store.RedisURL)
	if err != nil {
		return nil, err
	}
	return repository.NewRedisRepository(client), nil
}

// setupLogger applies LOG_LEVEL and tees logs to a rotating file when LOG_FILE is set
func setupLogger(cfg svc.LogConfig) io.Closer {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}

	if cfg.File == "" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, opts)))
		return nil
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(io.MultiWriter(os.Stdout, rotator), opts)))
	slog.Info("Logging to file", "file", cfg.File)
	return rotator
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
