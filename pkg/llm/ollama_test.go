package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaProviderStreamsToolCalls(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "" {
			t.Errorf("ollama requests must not carry credentials, got %q", auth)
		}
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "llama3.1" || len(req.Tools) != 1 || req.Tools[0].Function.Name != "get_course_outline" {
			t.Errorf("unexpected request %+v", req)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"call_1\",\"function\":{\"name\":\"get_course_outline\",\"arguments\":\"{\\\"course_name\\\":\"}}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"function\":{\"arguments\":\"\\\"MCP\\\"}\"}}]}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	provider := NewOllamaProvider(Config{
		APIURL: server.URL + "/v1",
		APIKey: "should-be-dropped",
		Model:  "llama3.1",
	})

	stream, err := provider.Complete(context.Background(), []Message{
		{Role: "user", Content: "What lessons are in the MCP course?"},
	}, []Tool{{Name: "get_course_outline", Parameters: map[string]interface{}{"type": "object"}}})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	defer stream.Close()

	var last ToolCall
	for {
		chunk, err := stream.Recv()
		if err != nil {
			break
		}
		for _, call := range chunk.ToolCalls {
			last = call
		}
	}
	if last.ID != "call_1" || last.Name != "get_course_outline" || last.Arguments != `{"course_name":"MCP"}` {
		t.Fatalf("unexpected tool call %+v", last)
	}
}

func TestOllamaProviderDefaultURL(t *testing.T) {
	provider := NewOllamaProvider(Config{Model: "llama3.1"})
	if provider.apiURL != defaultOllamaURL {
		t.Fatalf("unexpected url %q", provider.apiURL)
	}
}
