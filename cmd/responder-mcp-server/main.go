package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ai-khaled/internal/app"
	"ai-khaled/internal/config"
	"ai-khaled/internal/logger"
	"ai-khaled/internal/mcpserver"
)

const version = "1.0.0"

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Warn().Err(err).Msg(".env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	// stdout carries the MCP protocol.
	if cfg.LogOutput == "stdout" {
		cfg.LogOutput = "stderr"
	}
	lg, err := logger.Init(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: cfg.LogOutput, FilePath: cfg.LogFilePath})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init logger")
	}

	if err := run(cfg, lg); err != nil {
		lg.Fatal().Err(err).Msg("MCP server failed")
	}
}

func run(cfg *config.Config, lg zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		return fmt.Errorf("failed to init app: %w", err)
	}
	defer func() { _ = a.Close() }()
	if err := a.Watch(ctx); err != nil {
		lg.Warn().Err(err).Msg("file watcher disabled")
	}

	server := mcpserver.NewServer(mcpserver.NewTools(a.Responder, a.Conversation, a.Maintenance, lg), version)
	lg.Info().Msg("starting responder MCP server on stdin/stdout")

	transport := mcp.NewStdioTransport()
	if err := server.Run(ctx, transport); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
