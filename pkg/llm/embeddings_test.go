package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEmbeddingProviderOpenAI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		// Reverse order to check the client sorts by index.
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[`)
		for i := len(req.Input) - 1; i >= 0; i-- {
			if i < len(req.Input)-1 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"index":%d,"embedding":[%d,0.5]}`, i, i+1)
		}
		fmt.Fprint(w, `]}`)
	}))
	defer server.Close()

	client, err := NewEmbeddingClient(Config{Provider: "openai", Model: "text-embedding-3-small", APIURL: server.URL, APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	vecs, err := client.Embed(context.Background(), []string{"Course Title: MCP", "Lesson 1 content: hello"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != 1 || vecs[1][0] != 2 {
		t.Fatalf("unexpected vectors %v", vecs)
	}

	one, err := EmbedOne(context.Background(), client, "what is MCP")
	if err != nil {
		t.Fatalf("embed one: %v", err)
	}
	if len(one) != 2 {
		t.Fatalf("unexpected vector %v", one)
	}

	dims, err := ProbeEmbeddingDimensions(context.Background(), client)
	if err != nil || dims != 2 {
		t.Fatalf("expected 2 dims, got %d (%v)", dims, err)
	}
}

func TestEmbeddingProviderOllamaBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("ollama requests must not carry credentials")
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Model != "nomic-embed-text" || len(req.Input) != 3 {
			t.Errorf("unexpected request %+v", req)
		}
		fmt.Fprint(w, `{"embeddings":[[1,0,0],[0,1,0],[0,0,1]]}`)
	}))
	defer server.Close()

	client, err := NewEmbeddingClient(Config{Provider: "ollama", Model: "nomic-embed-text", APIURL: server.URL + "/v1", APIKey: "ignored"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	vecs, err := client.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vecs) != 3 || vecs[2][2] != 1 {
		t.Fatalf("unexpected vectors %v", vecs)
	}
}

func TestEmbeddingProviderRejectsMismatchedCounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[1,2]}]}`)
	}))
	defer server.Close()

	client, err := NewEmbeddingClient(Config{Model: "m", APIURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Embed(context.Background(), []string{"a", "b"})
	if err == nil || !strings.Contains(err.Error(), "got 1 vectors for 2 inputs") {
		t.Fatalf("expected count mismatch error, got %v", err)
	}
}

func TestEmbeddingProviderStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid model", http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := NewEmbeddingClient(Config{Model: "m", APIURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Embed(context.Background(), []string{"a"})
	if err == nil || !strings.Contains(err.Error(), "invalid model") {
		t.Fatalf("expected status error carrying body, got %v", err)
	}
}

func TestNewEmbeddingClientValidation(t *testing.T) {
	if _, err := NewEmbeddingClient(Config{Provider: "openai"}); err == nil {
		t.Fatal("expected error without model")
	}
	if _, err := NewEmbeddingClient(Config{Provider: "anthropic", Model: "m"}); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestEmbedOneRejectsBlank(t *testing.T) {
	if _, err := EmbedOne(context.Background(), nil, "  "); err == nil {
		t.Fatal("expected error for blank text")
	}
}
