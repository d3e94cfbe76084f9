package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"ai-khaled/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		DataDir:         dir,
		MemoryPath:      filepath.Join(dir, "memory.json"),
		DatasetPath:     filepath.Join(dir, "dataset.csv"),
		KBPath:          filepath.Join(dir, "kb.json"),
		FlagsPath:       filepath.Join(dir, "config.json"),
		LastSessionPath: filepath.Join(dir, "last_session.txt"),
		BackupDir:       filepath.Join(dir, "backups"),
		ModelPath:       filepath.Join(dir, "model.json"),
		DatasetBackend:  config.DatasetCSV,
		CacheBackend:    config.CacheRedis,
		RedisURL:        "not-a-redis-url",
	}
}

func TestRunRequiresToken(t *testing.T) {
	err := run(testConfig(t), zerolog.Nop())
	if err == nil || !strings.Contains(err.Error(), "TELEGRAM_BOT_TOKEN") {
		t.Fatalf("want token error, got %v", err)
	}
}

func TestRunReturnsInitErrors(t *testing.T) {
	cfg := testConfig(t)
	cfg.TelegramBotToken = "123:abc"
	err := run(cfg, zerolog.Nop())
	if err == nil || !strings.Contains(err.Error(), "failed to init app") {
		t.Fatalf("want init error, got %v", err)
	}
}
