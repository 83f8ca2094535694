package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server configuration, resolved from environment
// variables (prefix SNAPFOLIO_) with an optional local .env file.
type Config struct {
	Addr   string
	DBPath string
	LogDir string

	// AI categorizer settings. An empty APIKey disables the AI backend,
	// which leaves /api/parse unavailable but keeps review and snapshot
	// endpoints working.
	AIBackend string
	AIAPIKey  string
	AIModel   string
	AIBaseURL string

	// Pipeline tuning.
	MaxDocuments        int
	ClassifyConcurrency int
	SessionTTL          time.Duration
	NameWeight          float64
	ValueWeight         float64
	SimilarityThreshold float64
	ValueTolerancePct   float64
	NearWindowDays      int

	// SweepInterval is the cron spec for the expired-session sweeper.
	SweepInterval string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:          envString("SNAPFOLIO_ADDR", ":8000"),
		DBPath:        envString("SNAPFOLIO_DB_PATH", "data/snapfolio.db"),
		LogDir:        envString("SNAPFOLIO_LOG_DIR", "logs"),
		AIBackend:     envString("SNAPFOLIO_AI_BACKEND", "openai"),
		AIAPIKey:      os.Getenv("SNAPFOLIO_AI_API_KEY"),
		AIModel:       envString("SNAPFOLIO_AI_MODEL", ""),
		AIBaseURL:     os.Getenv("SNAPFOLIO_AI_BASE_URL"),
		SweepInterval: envString("SNAPFOLIO_SWEEP_CRON", "@every 1h"),
	}

	var err error
	if cfg.MaxDocuments, err = envInt("SNAPFOLIO_MAX_DOCUMENTS", 10); err != nil {
		return cfg, err
	}
	if cfg.ClassifyConcurrency, err = envInt("SNAPFOLIO_CLASSIFY_CONCURRENCY", 5); err != nil {
		return cfg, err
	}
	if cfg.NearWindowDays, err = envInt("SNAPFOLIO_NEAR_WINDOW_DAYS", 7); err != nil {
		return cfg, err
	}
	if cfg.NameWeight, err = envFloat("SNAPFOLIO_NAME_WEIGHT", 0.7); err != nil {
		return cfg, err
	}
	if cfg.ValueWeight, err = envFloat("SNAPFOLIO_VALUE_WEIGHT", 0.3); err != nil {
		return cfg, err
	}
	if cfg.SimilarityThreshold, err = envFloat("SNAPFOLIO_SIMILARITY_THRESHOLD", 85); err != nil {
		return cfg, err
	}
	if cfg.ValueTolerancePct, err = envFloat("SNAPFOLIO_VALUE_TOLERANCE_PCT", 5); err != nil {
		return cfg, err
	}
	if cfg.SessionTTL, err = envDuration("SNAPFOLIO_SESSION_TTL", 24*time.Hour); err != nil {
		return cfg, err
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.NameWeight < 0 || c.ValueWeight < 0 {
		return fmt.Errorf("similarity weights must be non-negative")
	}
	if sum := c.NameWeight + c.ValueWeight; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("similarity weights must sum to 1, got %v", sum)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 100 {
		return fmt.Errorf("similarity threshold must be in [0, 100]")
	}
	if c.ValueTolerancePct <= 0 {
		return fmt.Errorf("value tolerance must be positive")
	}
	if c.MaxDocuments <= 0 {
		return fmt.Errorf("max documents must be positive")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	return nil
}

func envString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return value, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return value, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return value, nil
}
