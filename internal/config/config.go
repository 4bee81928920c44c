package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port         int
	DBPath       string
	CorpusPath   string
	PersonasPath string
	LogLevel     string
	// Embedding
	OllamaBaseURL  string
	EmbeddingModel string
	EmbeddingDim   int
	// Completion
	AnthropicAPIKey string
	AnthropicModel  string
	MaxTokens       int
	// Context composition
	KnowledgeTopK  int
	HistoryWindow  int
	MaxMessageLen  int
	// Memory maintenance
	SummaryInterval  int
	ExtractInterval  int
	SessionWindow    int
	SummaryFreshDays int
	// Transport
	RateLimitPerMin int
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:             envInt("PORT", 8650),
		DBPath:           envStr("SAGE_DB_PATH", "/data/sage.db"),
		CorpusPath:       envStr("KNOWLEDGE_CORPUS_PATH", ""),
		PersonasPath:     envStr("PERSONAS_PATH", ""),
		LogLevel:         envStr("LOG_LEVEL", "info"),
		OllamaBaseURL:    envStr("OLLAMA_BASE_URL", "http://localhost:11434"),
		EmbeddingModel:   envStr("EMBEDDING_MODEL", "nomic-embed-text"),
		EmbeddingDim:     envInt("EMBEDDING_DIM", 768),
		AnthropicAPIKey:  envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:   envStr("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		MaxTokens:        envInt("MAX_TOKENS", 1024),
		KnowledgeTopK:    envInt("KNOWLEDGE_TOP_K", 3),
		HistoryWindow:    envInt("HISTORY_WINDOW", 10),
		MaxMessageLen:    envInt("MAX_MESSAGE_LEN", 8000),
		SummaryInterval:  envInt("SUMMARY_INTERVAL", 5),
		ExtractInterval:  envInt("EXTRACT_INTERVAL", 3),
		SessionWindow:    envInt("SESSION_WINDOW", 10),
		SummaryFreshDays: envInt("SUMMARY_FRESH_DAYS", 7),
		RateLimitPerMin:  envInt("RATE_LIMIT_PER_MIN", 30),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("SAGE_DB_PATH must not be empty")
	}
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY must not be empty")
	}
	if c.EmbeddingDim < 1 {
		return fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	if c.KnowledgeTopK < 1 {
		return fmt.Errorf("KNOWLEDGE_TOP_K must be positive, got %d", c.KnowledgeTopK)
	}
	if c.HistoryWindow < 1 {
		return fmt.Errorf("HISTORY_WINDOW must be positive, got %d", c.HistoryWindow)
	}
	if c.SummaryInterval < 1 || c.ExtractInterval < 1 {
		return fmt.Errorf("maintenance intervals must be positive")
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
