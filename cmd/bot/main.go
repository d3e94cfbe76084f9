package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ai-khaled/internal/app"
	"ai-khaled/internal/config"
	"ai-khaled/internal/logger"
	"ai-khaled/internal/metrics"
	"ai-khaled/internal/telegram"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Warn().Err(err).Msg(".env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	lg, err := logger.Init(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: cfg.LogOutput, FilePath: cfg.LogFilePath})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init logger")
	}
	if err := run(cfg, lg); err != nil {
		lg.Fatal().Err(err).Msg("bot failed")
	}
}

// run owns every resource so deferred shutdown runs before main exits.
func run(cfg *config.Config, lg zerolog.Logger) error {
	if cfg.TelegramBotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		return fmt.Errorf("failed to init app: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			lg.Warn().Err(err).Msg("shutdown")
		}
	}()

	if err := a.Watch(ctx); err != nil {
		lg.Warn().Err(err).Msg("file watcher disabled")
	}

	sched, err := a.Scheduler()
	if err != nil {
		return fmt.Errorf("failed to init scheduler: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			lg.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				lg.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	bot, err := telegram.New(cfg.TelegramBotToken, a.Conversation, a.Maintenance, a.Trainer, cfg.AdminUserID, lg)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}
	bot.Start(ctx)
	lg.Info().Msg("bot stopped")
	return nil
}
