package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/clients"
)

// EmbeddingClient turns texts into vectors, one per input and in input order.
type EmbeddingClient interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// EmbeddingProvider talks to an OpenAI-compatible /embeddings endpoint or to
// Ollama's native /api/embed. Both accept a batch of inputs per request.
type EmbeddingProvider struct {
	client   *http.Client
	apiKey   string
	endpoint string
	model    string
	decode   func(body []byte) ([][]float32, error)
}

func NewEmbeddingClient(cfg Config) (EmbeddingClient, error) {
	if cfg.Model == "" {
		return nil, errors.New("embedding model is required")
	}
	apiURL := strings.TrimRight(cfg.APIURL, "/")

	p := &EmbeddingProvider{
		client: clients.NewHTTPClient(120 * time.Second),
		apiKey: cfg.APIKey,
		model:  cfg.Model,
	}
	switch strings.ToLower(cfg.Provider) {
	case "openai", "":
		if apiURL == "" {
			apiURL = "https://api.openai.com/v1"
		}
		p.endpoint = apiURL + "/embeddings"
		p.decode = decodeOpenAIEmbeddings
	case "ollama":
		if apiURL == "" {
			apiURL = "http://localhost:11434"
		}
		// Ollama's OpenAI shim lives under /v1; the native API does not.
		p.endpoint = strings.TrimSuffix(apiURL, "/v1") + "/api/embed"
		p.decode = decodeOllamaEmbeddings
		p.apiKey = ""
	default:
		return nil, fmt.Errorf("embedding provider %q is not supported", cfg.Provider)
	}
	return p, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

func (p *EmbeddingProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, errors.New("inputs are required")
	}
	payload, err := json.Marshal(embeddingRequest{Model: p.model, Input: inputs})
	if err != nil {
		return nil, fmt.Errorf("embed: marshal request: %w", err)
	}

	resp, err := doWithRetry(ctx, p.client, func() (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
		if reqErr != nil {
			return nil, fmt.Errorf("create request: %w", reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		if p.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+p.apiKey)
		}
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("embed: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embed: read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("embed: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	vectors, err := p.decode(body)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(inputs) {
		return nil, fmt.Errorf("embed: got %d vectors for %d inputs", len(vectors), len(inputs))
	}
	for i, vec := range vectors {
		if len(vec) == 0 {
			return nil, fmt.Errorf("embed: empty vector for input %d", i)
		}
		if len(vec) != len(vectors[0]) {
			return nil, fmt.Errorf("embed: inconsistent dimensions %d and %d", len(vectors[0]), len(vec))
		}
	}
	return vectors, nil
}

// OpenAI tags each vector with its input index; order is not guaranteed.
func decodeOpenAIEmbeddings(body []byte) ([][]float32, error) {
	var response struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	sort.SliceStable(response.Data, func(i, j int) bool {
		return response.Data[i].Index < response.Data[j].Index
	})
	vectors := make([][]float32, 0, len(response.Data))
	for _, entry := range response.Data {
		vectors = append(vectors, entry.Embedding)
	}
	return vectors, nil
}

func decodeOllamaEmbeddings(body []byte) ([][]float32, error) {
	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return response.Embeddings, nil
}

// EmbedOne embeds a single text, typically a search query or a course name.
func EmbedOne(ctx context.Context, client EmbeddingClient, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text is required")
	}
	vecs, err := client.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, errors.New("embedding response was empty")
	}
	return vecs[0], nil
}

// ProbeEmbeddingDimensions embeds a fixed string and returns the vector
// length, so the index schema can be sized without a model table.
func ProbeEmbeddingDimensions(ctx context.Context, client EmbeddingClient) (int, error) {
	vec, err := EmbedOne(ctx, client, "dimension probe")
	if err != nil {
		return 0, fmt.Errorf("probe embedding dimensions: %w", err)
	}
	return len(vec), nil
}
