package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/config"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/llm"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/redis"
)

// Config stores environment configuration for the tutor service.
type Config struct {
	Port             string
	DatabaseURL      string
	RedisURL         string
	RedisAddrs       []string
	RedisMasterName  string
	RedisPassword    string
	LLM              llm.Config
	Embedding        llm.Config
	EmbeddingDims    int
	MaxRounds        int
	MaxHistory       int
	MaxResults       int
	MaxQueryRunes    int
	ChunkSize        int
	ChunkOverlap     int
	DocsDir          string
	KafkaBrokers     []string
	KafkaClusterID   string
	EventsTopic      string
	ResolveCacheTTL  time.Duration
	SessionTTL       time.Duration
	MCPEnabled       bool
	SystemPromptFile string
}

// LoadConfig loads the tutor configuration from environment variables.
func LoadConfig() Config {
	return Config{
		Port:             config.GetEnv("PORT", "18030"),
		DatabaseURL:      config.GetEnv("DATABASE_URL", ""),
		RedisURL:         config.GetEnv("REDIS_URL", ""),
		RedisAddrs:       config.GetEnvList("REDIS_ADDRS"),
		RedisMasterName:  config.GetEnv("REDIS_MASTER_NAME", ""),
		RedisPassword:    config.GetEnv("REDIS_PASSWORD", ""),
		LLM:              llm.LoadConfig(),
		Embedding:        llm.LoadEmbeddingConfig(),
		EmbeddingDims:    config.GetEnvInt("EMBEDDING_DIMENSIONS", 0),
		MaxRounds:        config.GetEnvInt("TUTOR_MAX_ROUNDS", 2),
		MaxHistory:       config.GetEnvInt("TUTOR_MAX_HISTORY", 2),
		MaxResults:       config.GetEnvInt("TUTOR_MAX_RESULTS", 5),
		MaxQueryRunes:    config.GetEnvInt("TUTOR_MAX_QUERY_RUNES", 10000),
		ChunkSize:        config.GetEnvInt("CHUNK_SIZE", 800),
		ChunkOverlap:     config.GetEnvInt("CHUNK_OVERLAP", 100),
		DocsDir:          config.GetEnv("DOCS_DIR", ""),
		KafkaBrokers:     config.GetEnvList("KAFKA_BROKERS"),
		KafkaClusterID:   config.GetEnv("KAFKA_CLUSTER_ID", "local"),
		EventsTopic:      config.GetEnv("TUTOR_EVENTS_TOPIC", "tutor.query_events"),
		ResolveCacheTTL:  config.GetEnvDuration("RESOLVE_CACHE_TTL", 10*time.Minute),
		SessionTTL:       config.GetEnvDuration("TUTOR_SESSION_TTL", 24*time.Hour),
		MCPEnabled:       config.GetEnvBool("TUTOR_MCP_ENABLED", true),
		SystemPromptFile: config.GetEnv("TUTOR_SYSTEM_PROMPT_FILE", ""),
	}
}

// Validate reports every missing or inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("LLM_MODEL is required"))
	}
	if c.Embedding.Model == "" {
		errs = append(errs, errors.New("EMBEDDING_MODEL is required"))
	}
	if c.MaxRounds < 1 {
		errs = append(errs, fmt.Errorf("TUTOR_MAX_ROUNDS must be at least 1, got %d", c.MaxRounds))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap))
	}
	return errors.Join(errs...)
}

// Redis returns the session store connection settings. An unconfigured
// result means sessions stay in process memory.
func (c Config) Redis() redis.Config {
	return redis.Config{
		URL:        c.RedisURL,
		Addrs:      c.RedisAddrs,
		MasterName: c.RedisMasterName,
		Password:   c.RedisPassword,
	}
}

// EventsEnabled reports whether answered-query events are published.
func (c Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
