package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/christophercallejongarcia/Test-Deeplearning/api_tutor/internal/knowledge"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/llm"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/logging"
)

// reply is one scripted model response.
type reply struct {
	text  string
	calls []llm.ToolCall
	err   error
}

// fakeProvider answers from a script in call order, or from respond when set.
type fakeProvider struct {
	mu       sync.Mutex
	script   []reply
	respond  func(messages []llm.Message) reply
	requests [][]llm.Message
	tools    [][]llm.Tool
}

func (f *fakeProvider) Complete(_ context.Context, messages []llm.Message, tools []llm.Tool) (llm.Stream, error) {
	f.mu.Lock()
	f.requests = append(f.requests, append([]llm.Message(nil), messages...))
	f.tools = append(f.tools, tools)
	n := len(f.requests)
	f.mu.Unlock()

	var r reply
	switch {
	case f.respond != nil:
		r = f.respond(messages)
	case n <= len(f.script):
		r = f.script[n-1]
	default:
		r = reply{err: errors.New("script exhausted")}
	}
	if r.err != nil {
		return nil, r.err
	}
	return newFakeStream(r), nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeProvider) request(i int) []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

// fakeStream splits the text into two chunks and sends each tool call as a
// partial fragment followed by the cumulative arguments.
type fakeStream struct {
	chunks []llm.Chunk
}

func newFakeStream(r reply) *fakeStream {
	var chunks []llm.Chunk
	if r.text != "" {
		runes := []rune(r.text)
		mid := len(runes) / 2
		chunks = append(chunks, llm.Chunk{Content: string(runes[:mid])}, llm.Chunk{Content: string(runes[mid:])})
	}
	for _, call := range r.calls {
		chunks = append(chunks, llm.Chunk{ToolCalls: []llm.ToolCall{{ID: call.ID, Name: call.Name}}})
		chunks = append(chunks, llm.Chunk{ToolCalls: []llm.ToolCall{call}})
	}
	return &fakeStream{chunks: chunks}
}

func (s *fakeStream) Recv() (llm.Chunk, error) {
	if len(s.chunks) == 0 {
		return llm.Chunk{}, io.EOF
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return chunk, nil
}

func (s *fakeStream) Close() error { return nil }

func toolCall(id, name, args string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: name, Arguments: args}
}

// fakeIndex is an in-memory CourseIndex. Course names resolve when they are
// a case-insensitive substring of a stored title.
type fakeIndex struct {
	mu        sync.Mutex
	courses   []knowledge.Course
	passages  map[string][]knowledge.Passage // keyed by query
	searchErr error
	filters   []knowledge.ContentFilter
}

func (f *fakeIndex) ResolveCourse(_ context.Context, name string) (string, bool, error) {
	for _, c := range f.courses {
		if strings.Contains(strings.ToLower(c.Title), strings.ToLower(name)) {
			return c.Title, true, nil
		}
	}
	return "", false, nil
}

func (f *fakeIndex) SearchContent(_ context.Context, query string, filter knowledge.ContentFilter, _ int) ([]knowledge.Passage, error) {
	f.mu.Lock()
	f.filters = append(f.filters, filter)
	f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.passages[query], nil
}

func (f *fakeIndex) CourseOutline(_ context.Context, title string) (knowledge.Course, bool, error) {
	for _, c := range f.courses {
		if c.Title == title {
			return c, true, nil
		}
	}
	return knowledge.Course{}, false, nil
}

func intPtr(n int) *int { return &n }

func mcpIndex() *fakeIndex {
	return &fakeIndex{
		courses: []knowledge.Course{{
			Title:      "MCP: Build Rich-Context AI Apps with Anthropic",
			Link:       "https://example.com/mcp",
			Instructor: "Elie Schoppik",
			Lessons: []knowledge.Lesson{
				{Number: 0, Title: "Introduction", Link: "https://example.com/mcp/0"},
				{Number: 4, Title: "Creating An MCP Client", Link: "https://example.com/mcp/4"},
			},
		}},
		passages: map[string][]knowledge.Passage{
			"MCP client": {{
				Text:         "An MCP client connects to servers.",
				CourseTitle:  "MCP: Build Rich-Context AI Apps with Anthropic",
				LessonNumber: intPtr(4),
				LessonLink:   "https://example.com/mcp/4",
			}},
			"agents": {{
				Text:        "Agents plan and act.",
				CourseTitle: "Building Agents",
			}},
		},
	}
}

func newTestRegistry(index CourseIndex) *Registry {
	registry := NewRegistry()
	registry.Register(NewCourseSearchTool(index, 5))
	registry.Register(NewCourseOutlineTool(index))
	return registry
}

func newTestOrchestrator(provider llm.Provider, registry *Registry, maxRounds int) *Orchestrator {
	return NewOrchestrator(OrchestratorConfig{
		LLMProvider:  provider,
		Registry:     registry,
		Logger:       logging.NewDiscardLogger(),
		MaxRounds:    maxRounds,
		SystemPrompt: "BASE",
		ProviderName: "fake",
		Model:        "fake-model",
	})
}
