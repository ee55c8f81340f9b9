package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/vaxassist/vax-web-ui/internal/handlers"
	"github.com/vaxassist/vax-web-ui/internal/services"
)

func main() {
	// A missing .env just means the environment is already set up.
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", slog.String("err", err.Error()))
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	sessions, err := services.NewBoltDB(cfg.DBPath, cfg.sessionTTL())
	if err != nil {
		logger.Error("Failed to open session store", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer sessions.Close()

	m, err := handlers.NewMain(handlers.Config{
		BackendURL: cfg.BackendURL,
		Greeting:   cfg.Greeting,
		Logger:     logger,
	}, sessions)
	if err != nil {
		logger.Error("Failed to initialize handlers", slog.String("err", err.Error()))
		os.Exit(1)
	}

	purgeCtx, purgeCancel := context.WithCancel(context.Background())
	defer purgeCancel()
	go purgeSessions(purgeCtx, sessions, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           m.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String("err", err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port))
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		logger.Error("Server error", slog.String("err", err.Error()))

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String("err", err.Error()))
			}
		}
	}
}

// purgeSessions sweeps expired browser sessions out of the store every hour.
func purgeSessions(ctx context.Context, sessions services.BoltDB, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := sessions.PurgeExpired(ctx)
			if err != nil {
				logger.Error("Failed to purge sessions", slog.String("err", err.Error()))
				continue
			}
			if removed > 0 {
				logger.Info("Purged expired sessions", slog.Int("count", removed))
			}
		}
	}
}
