package llm

import (
	"fmt"
	"strings"

	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/config"
)

const (
	defaultMaxTokens   = 800
	defaultTemperature = 0.0
)

type Config struct {
	Provider    string
	Model       string
	APIKey      string
	APIURL      string
	MaxTokens   int
	Temperature float64
}

func LoadConfig() Config {
	return Config{
		Provider:    config.GetEnv("LLM_PROVIDER", "anthropic"),
		Model:       config.GetEnv("LLM_MODEL", ""),
		APIKey:      config.GetEnv("LLM_API_KEY", ""),
		APIURL:      config.GetEnv("LLM_API_URL", ""),
		MaxTokens:   config.GetEnvInt("LLM_MAX_TOKENS", defaultMaxTokens),
		Temperature: config.GetEnvFloat("LLM_TEMPERATURE", defaultTemperature),
	}
}

// LoadEmbeddingConfig loads embedding-specific configuration from EMBEDDING_*
// env vars, falling back to their LLM_* counterparts when unset. Anthropic
// serves no embeddings, so an Anthropic LLM setup lends nothing and the
// provider defaults to openai.
func LoadEmbeddingConfig() Config {
	llmProvider := strings.ToLower(config.GetEnv("LLM_PROVIDER", "anthropic"))
	if llmProvider == "anthropic" {
		return Config{
			Provider: config.GetEnv("EMBEDDING_PROVIDER", "openai"),
			Model:    config.GetEnv("EMBEDDING_MODEL", ""),
			APIKey:   config.GetEnv("EMBEDDING_API_KEY", ""),
			APIURL:   config.GetEnv("EMBEDDING_API_URL", ""),
		}
	}
	return Config{
		Provider: config.GetEnv("EMBEDDING_PROVIDER", llmProvider),
		Model:    config.GetEnv("EMBEDDING_MODEL", config.GetEnv("LLM_MODEL", "")),
		APIKey:   config.GetEnv("EMBEDDING_API_KEY", config.GetEnv("LLM_API_KEY", "")),
		APIURL:   config.GetEnv("EMBEDDING_API_URL", config.GetEnv("LLM_API_URL", "")),
	}
}

func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	case "ollama":
		return NewOllamaProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return defaultMaxTokens
	}
	return n
}
