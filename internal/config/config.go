package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	LLMBaseURL         string
	LLMModelName       string
	LLMTimeout         time.Duration
	EmbeddingBaseURL   string
	EmbeddingModelName string
	ParserBaseURL      string

	QdrantURL         string
	DocsCollection    string
	HistoryCollection string
	FactsCollection   string
	VectorSize        int
	HNSWM             int
	HNSWEF            int

	CorpusDir   string
	StateDir    string
	AuthDBPath  string
	SourcesFile string

	APIPort   string
	LogLevel  slog.Level
	LogFormat string
}

// StateFile returns the path of the durable index state snapshot.
func (c *Config) StateFile() string {
	return filepath.Join(c.StateDir, "state.json")
}

// CacheFile returns the path of the document conversion cache.
func (c *Config) CacheFile() string {
	return filepath.Join(c.StateDir, "cache.db")
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory it is loaded automatically;
// environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:8000"),
		LLMModelName:       getEnv("LLM_MODEL", "microsoft/Phi-4-mini-instruct"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL", "thenlper/gte-large"),
		ParserBaseURL:      getEnv("PARSER_BASE_URL", "http://localhost:8090"),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		DocsCollection:     getEnv("DOCS_COLLECTION", "sage_docs"),
		HistoryCollection:  getEnv("HISTORY_COLLECTION", "sage_history"),
		FactsCollection:    getEnv("FACTS_COLLECTION", "sage_facts"),
		CorpusDir:          getEnv("CORPUS_DIR", ""),
		StateDir:           getEnv("STATE_DIR", "./data"),
		AuthDBPath:         getEnv("AUTH_DB_PATH", "./data/users.db"),
		SourcesFile:        getEnv("SOURCES_FILE", ""),
		APIPort:            getEnv("API_PORT", "8001"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.VectorSize, err = getEnvInt("VECTOR_SIZE", 1024); err != nil {
		return nil, err
	}
	if cfg.VectorSize <= 0 {
		return nil, fmt.Errorf("VECTOR_SIZE must be greater than 0")
	}
	if cfg.HNSWM, err = getEnvInt("HNSW_M", 32); err != nil {
		return nil, err
	}
	if cfg.HNSWEF, err = getEnvInt("HNSW_EF", 50); err != nil {
		return nil, err
	}

	timeoutSecs, err := getEnvInt("LLM_TIMEOUT", 30)
	if err != nil {
		return nil, err
	}
	cfg.LLMTimeout = time.Duration(timeoutSecs) * time.Second

	switch getEnv("LOG_LEVEL", "info") {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "info":
		cfg.LogLevel = slog.LevelInfo
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}

	if cfg.CorpusDir == "" {
		return nil, fmt.Errorf("CORPUS_DIR is required")
	}

	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	if dir := filepath.Dir(cfg.AuthDBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create auth database directory: %w", err)
		}
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return parsed, nil
}
