package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"ai-khaled/internal/config"
)

func TestRunReturnsInitErrors(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		DataDir:         dir,
		MemoryPath:      filepath.Join(dir, "memory.json"),
		DatasetPath:     filepath.Join(dir, "dataset.csv"),
		KBPath:          filepath.Join(dir, "kb.json"),
		FlagsPath:       filepath.Join(dir, "config.json"),
		LastSessionPath: filepath.Join(dir, "last_session.txt"),
		ModelPath:       filepath.Join(dir, "model.json"),
		DatasetBackend:  config.DatasetCSV,
		CacheBackend:    config.CacheRedis,
		RedisURL:        "not-a-redis-url",
	}
	err := run(cfg, zerolog.Nop())
	if err == nil || !strings.Contains(err.Error(), "failed to init app") {
		t.Fatalf("want init error, got %v", err)
	}
}
