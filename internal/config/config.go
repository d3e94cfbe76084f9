package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
)

type DatasetBackend string

const (
	DatasetCSV    DatasetBackend = "csv"
	DatasetSQLite DatasetBackend = "sqlite"
)

type CacheBackend string

const (
	CacheMemory CacheBackend = "memory"
	CacheRedis  CacheBackend = "redis"
)

type Config struct {
	// Storage. Empty file paths are derived from DataDir.
	DataDir         string         `env:"DATA_DIR" envDefault:"data"`
	MemoryPath      string         `env:"MEMORY_FILE_PATH"`
	DatasetPath     string         `env:"DATASET_FILE_PATH"`
	KBPath          string         `env:"KB_FILE_PATH"`
	FlagsPath       string         `env:"FLAGS_FILE_PATH"`
	LastSessionPath string         `env:"LAST_SESSION_FILE_PATH"`
	BackupDir       string         `env:"BACKUP_DIR"`
	PendingFilePath string         `env:"PENDING_FILE_PATH"`
	JournalPath     string         `env:"JOURNAL_FILE_PATH"`
	ModelPath       string         `env:"MODEL_PATH" envDefault:"model/khalid_model.json"`
	DatasetBackend  DatasetBackend `env:"DATASET_BACKEND" envDefault:"csv"`
	SQLitePath      string         `env:"SQLITE_PATH"`
	WatchFiles      bool           `env:"WATCH_FILES" envDefault:"true"`

	// Reply cache
	CacheBackend    CacheBackend  `env:"CACHE_BACKEND" envDefault:"memory"`
	CacheMaxEntries int           `env:"CACHE_MAX_ENTRIES" envDefault:"0"`
	CacheTTL        time.Duration `env:"CACHE_TTL" envDefault:"24h"`
	RedisURL        string        `env:"REDIS_URL"`

	// Matching
	RetrieveThreshold    float64 `env:"RETRIEVE_THRESHOLD" envDefault:"0.45"`
	DatasetThreshold     float64 `env:"DATASET_THRESHOLD" envDefault:"0.5"`
	KBAutoLearnMaxTokens int     `env:"KB_AUTOLEARN_MAX_TOKENS" envDefault:"5"`

	// Jobs
	BackupSchedule  string `env:"BACKUP_SCHEDULE" envDefault:"0 3 * * *"`
	RetrainSchedule string `env:"RETRAIN_SCHEDULE"`

	// Observability
	MetricsAddr string `env:"METRICS_ADDR"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"console"`
	LogOutput   string `env:"LOG_OUTPUT" envDefault:"stderr"`
	LogFilePath string `env:"LOG_FILE_PATH" envDefault:"data/ai_engine.log"`

	// Telegram front-end
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	AdminUserID      int64  `env:"ADMIN_USER"`
}

// Load parses the environment and fills in derived paths.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := func(p *string, name string) {
		if *p == "" {
			*p = filepath.Join(c.DataDir, name)
		}
	}
	def(&c.MemoryPath, "memory.json")
	def(&c.DatasetPath, "dataset.csv")
	def(&c.KBPath, "kb.json")
	def(&c.FlagsPath, "config.json")
	def(&c.LastSessionPath, "last_session.txt")
	def(&c.BackupDir, "backups")
	def(&c.PendingFilePath, "pending.json")
	def(&c.JournalPath, "interactions.jsonl")
	def(&c.SQLitePath, "dataset.db")
}

func (c *Config) validate() error {
	switch c.DatasetBackend {
	case DatasetCSV, DatasetSQLite:
	default:
		return fmt.Errorf("unknown dataset backend: %s", c.DatasetBackend)
	}
	switch c.CacheBackend {
	case CacheMemory:
	case CacheRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for cache backend %q", c.CacheBackend)
		}
	default:
		return fmt.Errorf("unknown cache backend: %s", c.CacheBackend)
	}
	if c.RetrieveThreshold < 0 || c.RetrieveThreshold > 1 || c.DatasetThreshold < 0 || c.DatasetThreshold > 1 {
		return fmt.Errorf("similarity thresholds must be within [0,1]")
	}
	return nil
}
