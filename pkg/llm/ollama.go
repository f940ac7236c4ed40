package llm

import "strings"

const defaultOllamaURL = "http://localhost:11434/v1"

// OllamaProvider serves a local model through Ollama's OpenAI-compatible
// endpoint. Ollama takes no API key, so none is sent.
type OllamaProvider struct {
	*OpenAIProvider
}

func NewOllamaProvider(cfg Config) *OllamaProvider {
	if strings.TrimSpace(cfg.APIURL) == "" {
		cfg.APIURL = defaultOllamaURL
	}
	cfg.APIKey = ""
	return &OllamaProvider{OpenAIProvider: NewOpenAIProvider(cfg)}
}
