package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	OllamaHost   string
	DefaultModel string

	GitHubToken string

	FetchTimeout time.Duration
	LLMTimeout   time.Duration
	PullTimeout  time.Duration

	SurrealURL  string
	SurrealNS   string
	SurrealDB   string
	SurrealUser string
	SurrealPass string

	EmbeddingModel string

	LogLevel  string
	LogFormat string
}

func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		OllamaHost:   os.Getenv("OLLAMA_HOST"),
		DefaultModel: os.Getenv("REPO_ANALYZER_MODEL"),

		GitHubToken: os.Getenv("GITHUB_TOKEN"),

		FetchTimeout: duration("FETCH_TIMEOUT", 30*time.Second),
		LLMTimeout:   duration("LLM_TIMEOUT", 5*time.Minute),
		PullTimeout:  duration("PULL_TIMEOUT", 30*time.Minute),

		SurrealURL:  os.Getenv("SURREAL_URL"),
		SurrealNS:   os.Getenv("SURREAL_NS"),
		SurrealDB:   os.Getenv("SURREAL_DB"),
		SurrealUser: os.Getenv("SURREAL_USER"),
		SurrealPass: os.Getenv("SURREAL_PASS"),

		EmbeddingModel: os.Getenv("EMBEDDING_MODEL"),

		LogLevel:  os.Getenv("LOG_LEVEL"),
		LogFormat: os.Getenv("LOG_FORMAT"),
	}

	if cfg.OllamaHost == "" {
		cfg.OllamaHost = "http://localhost:11434"
	}
	// Both the native API and the OpenAI-compatible one hang off the bare host
	cfg.OllamaHost = strings.TrimRight(cfg.OllamaHost, "/")
	cfg.OllamaHost = strings.TrimSuffix(cfg.OllamaHost, "/v1")
	if !strings.Contains(cfg.OllamaHost, "://") {
		cfg.OllamaHost = "http://" + cfg.OllamaHost
	}

	// The SDK appends /rpc automatically
	cfg.SurrealURL = strings.TrimSuffix(cfg.SurrealURL, "/rpc")
	cfg.SurrealURL = strings.TrimSuffix(cfg.SurrealURL, "/")

	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "nomic-embed-text"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}

	return cfg
}

// OpenAIBaseURL is the OpenAI-compatible endpoint Ollama serves under /v1.
func (c *Config) OpenAIBaseURL() string {
	return c.OllamaHost + "/v1"
}

// HistoryEnabled reports whether a SurrealDB history store is configured.
func (c *Config) HistoryEnabled() bool {
	return c.SurrealURL != ""
}

func duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("Ignoring invalid duration", "key", key, "value", v)
		return def
	}
	return d
}
