package snapfolio

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	gocache "github.com/patrickmn/go-cache"
	_ "modernc.org/sqlite"
)

// PipelineConfig is the single immutable configuration object threaded
// through the parse pipeline stages.
type PipelineConfig struct {
	MaxDocuments        int
	ClassifyConcurrency int
	SessionTTL          time.Duration
	Detector            DetectorConfig
	DateMatcher         DateMatcherConfig
}

// DefaultPipelineConfig returns the shipped pipeline defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MaxDocuments:        10,
		ClassifyConcurrency: 5,
		SessionTTL:          24 * time.Hour,
		Detector:            DefaultDetectorConfig(),
		DateMatcher:         DefaultDateMatcherConfig(),
	}
}

func (c PipelineConfig) normalized() PipelineConfig {
	def := DefaultPipelineConfig()
	if c.MaxDocuments <= 0 {
		c.MaxDocuments = def.MaxDocuments
	}
	if c.ClassifyConcurrency <= 0 {
		c.ClassifyConcurrency = def.ClassifyConcurrency
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = def.SessionTTL
	}
	c.Detector = c.Detector.normalized()
	c.DateMatcher = c.DateMatcher.normalized()
	return c
}

// Options controls Core initialization.
type Options struct {
	DBPath   string
	Logger   *slog.Logger
	Pipeline PipelineConfig

	// Parser extracts raw assets from uploaded documents. Defaults to the
	// built-in CSV parser when nil.
	Parser DocumentParser

	// Categorizer assigns taxonomy pairs to raw assets. Required for Parse;
	// review/finalize operations work without one.
	Categorizer Categorizer

	TaxonomyCacheTTL time.Duration
}

// Core provides access to the statement-ingestion pipeline and storage.
type Core struct {
	db          *sql.DB
	logger      *slog.Logger
	dbPath      string
	pipeline    PipelineConfig
	parser      DocumentParser
	categorizer Categorizer
	taxCache    *gocache.Cache
}

// Open initializes a Core using the provided database path and defaults.
func Open(dbPath string) (*Core, error) {
	return OpenWithOptions(Options{DBPath: dbPath})
}

// OpenWithOptions initializes a Core using the provided options.
func OpenWithOptions(opts Options) (*Core, error) {
	if opts.DBPath == "" {
		return nil, errors.New("db path is required")
	}
	cleanPath := filepath.Clean(opts.DBPath)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", cleanPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite performs best with a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Warn("pragma busy_timeout failed", "err", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logger.Warn("pragma foreign_keys failed", "err", err)
	}

	if err := initDatabase(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init database: %w", err)
	}

	parser := opts.Parser
	if parser == nil {
		parser = newCSVParser()
	}

	cacheTTL := opts.TaxonomyCacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	return &Core{
		db:          db,
		logger:      logger,
		dbPath:      cleanPath,
		pipeline:    opts.Pipeline.normalized(),
		parser:      parser,
		categorizer: opts.Categorizer,
		taxCache:    gocache.New(cacheTTL, 2*cacheTTL),
	}, nil
}

// Close releases database resources.
func (c *Core) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Logger returns the core's logger.
func (c *Core) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// DBPath returns the underlying database path.
func (c *Core) DBPath() string {
	return c.dbPath
}

// Pipeline returns the effective pipeline configuration.
func (c *Core) Pipeline() PipelineConfig {
	return c.pipeline
}
