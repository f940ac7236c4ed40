package mcpspoke

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/christophercallejongarcia/Test-Deeplearning/api_tutor/internal/chat"
	"github.com/christophercallejongarcia/Test-Deeplearning/api_tutor/internal/knowledge"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/logging"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type fakeIndex struct {
	courses  []knowledge.Course
	passages []knowledge.Passage
}

func (f *fakeIndex) ResolveCourse(_ context.Context, name string) (string, bool, error) {
	for _, c := range f.courses {
		if strings.Contains(strings.ToLower(c.Title), strings.ToLower(name)) {
			return c.Title, true, nil
		}
	}
	return "", false, nil
}

func (f *fakeIndex) SearchContent(_ context.Context, _ string, filter knowledge.ContentFilter, _ int) ([]knowledge.Passage, error) {
	var out []knowledge.Passage
	for _, p := range f.passages {
		if filter.CourseTitle != "" && p.CourseTitle != filter.CourseTitle {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeIndex) CourseOutline(_ context.Context, title string) (knowledge.Course, bool, error) {
	for _, c := range f.courses {
		if c.Title == title {
			return c, true, nil
		}
	}
	return knowledge.Course{}, false, nil
}

type fakeAsker struct {
	answer    chat.Answer
	err       error
	query     string
	sessionID string
}

func (a *fakeAsker) Process(_ context.Context, query, sessionID string) (chat.Answer, error) {
	a.query = query
	a.sessionID = sessionID
	return a.answer, a.err
}

func lesson(n int) *int { return &n }

func testRegistry() *chat.Registry {
	index := &fakeIndex{
		courses: []knowledge.Course{{
			Title:      "Building Towards Computer Use",
			Link:       "https://example.com/computer-use",
			Instructor: "Colt Steele",
			Lessons: []knowledge.Lesson{
				{Number: 1, Title: "Overview"},
				{Number: 2, Title: "Working With The API"},
			},
		}},
		passages: []knowledge.Passage{{
			Text:         "Use the messages endpoint.",
			CourseTitle:  "Building Towards Computer Use",
			LessonNumber: lesson(2),
			LessonLink:   "https://example.com/computer-use/2",
		}},
	}
	registry := chat.NewRegistry()
	registry.Register(chat.NewCourseSearchTool(index, 5))
	registry.Register(chat.NewCourseOutlineTool(index))
	return registry
}

func spokeTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = logging.NewDiscardLogger()
	}
	ts := httptest.NewServer(NewHTTPHandler(NewServer(cfg)))
	t.Cleanup(ts.Close)
	return ts
}

func spokeClient(t *testing.T, url string) *mcp.ClientSession {
	t.Helper()
	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "1.0.0"}, nil)
	session, err := client.Connect(context.Background(), &mcp.StreamableClientTransport{Endpoint: url}, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	return result
}

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("expected content")
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestListTools(t *testing.T) {
	ts := spokeTestServer(t, Config{Registry: testRegistry(), Assistant: &fakeAsker{}})
	session := spokeClient(t, ts.URL)

	result, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	names := make(map[string]bool)
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"search_course_content", "get_course_outline", "ask_tutor"} {
		if !names[want] {
			t.Fatalf("expected tool %q in %v", want, names)
		}
	}
	if len(result.Tools) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(result.Tools))
	}
}

func TestSearchCourseContent(t *testing.T) {
	ts := spokeTestServer(t, Config{Registry: testRegistry()})
	session := spokeClient(t, ts.URL)

	result := callTool(t, session, "search_course_content", map[string]any{
		"query":       "api",
		"course_name": "computer use",
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", extractText(t, result))
	}

	var resp toolResponse
	if err := json.Unmarshal([]byte(extractText(t, result)), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	wantResult := "[Building Towards Computer Use - Lesson 2]\nUse the messages endpoint."
	if resp.Result != wantResult {
		t.Fatalf("result = %q, want %q", resp.Result, wantResult)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Link != "https://example.com/computer-use/2" {
		t.Fatalf("unexpected sources: %+v", resp.Sources)
	}
}

func TestSearchCourseContentUnknownCourse(t *testing.T) {
	ts := spokeTestServer(t, Config{Registry: testRegistry()})
	session := spokeClient(t, ts.URL)

	result := callTool(t, session, "search_course_content", map[string]any{
		"query":       "api",
		"course_name": "Cooking",
	})
	if result.IsError {
		t.Fatalf("unresolved course should not be a tool error")
	}
	var resp toolResponse
	if err := json.Unmarshal([]byte(extractText(t, result)), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Result != "No course found matching 'Cooking'" {
		t.Fatalf("unexpected result %q", resp.Result)
	}
	if len(resp.Sources) != 0 {
		t.Fatalf("expected no sources, got %+v", resp.Sources)
	}
}

func TestSearchCourseContentRequiresQuery(t *testing.T) {
	ts := spokeTestServer(t, Config{Registry: testRegistry()})
	session := spokeClient(t, ts.URL)

	result := callTool(t, session, "search_course_content", map[string]any{"query": "  "})
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if got := extractText(t, result); got != "query is required" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestCourseOutline(t *testing.T) {
	ts := spokeTestServer(t, Config{Registry: testRegistry()})
	session := spokeClient(t, ts.URL)

	result := callTool(t, session, "get_course_outline", map[string]any{"course_name": "computer"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", extractText(t, result))
	}
	var resp toolResponse
	if err := json.Unmarshal([]byte(extractText(t, result)), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, want := range []string{
		"Course Title: Building Towards Computer Use",
		"Course Instructor: Colt Steele",
		"Lessons (2 total):",
		"2. Working With The API",
	} {
		if !strings.Contains(resp.Result, want) {
			t.Fatalf("outline missing %q:\n%s", want, resp.Result)
		}
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Display != "Building Towards Computer Use" {
		t.Fatalf("unexpected sources: %+v", resp.Sources)
	}
}

func TestCourseToolsWithoutRegistry(t *testing.T) {
	ts := spokeTestServer(t, Config{})
	session := spokeClient(t, ts.URL)

	result := callTool(t, session, "get_course_outline", map[string]any{"course_name": "x"})
	if !result.IsError {
		t.Fatal("expected error result")
	}
}

func TestAskTutor(t *testing.T) {
	asker := &fakeAsker{answer: chat.Answer{
		Text:    "Lesson 2 covers the API.",
		Sources: []chat.Source{{Display: "Building Towards Computer Use - Lesson 2"}},
		ToolCalls: []chat.ToolCallRecord{
			{Name: "get_course_outline"},
			{Name: "search_course_content"},
			{Name: "search_course_content"},
		},
	}}
	ts := spokeTestServer(t, Config{Registry: testRegistry(), Assistant: asker})
	session := spokeClient(t, ts.URL)

	result := callTool(t, session, "ask_tutor", map[string]any{
		"question":   "  what does lesson 2 cover?  ",
		"session_id": "s-1",
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", extractText(t, result))
	}
	if asker.query != "what does lesson 2 cover?" || asker.sessionID != "s-1" {
		t.Fatalf("unexpected call: %q %q", asker.query, asker.sessionID)
	}

	var resp askTutorResponse
	if err := json.Unmarshal([]byte(extractText(t, result)), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != "Lesson 2 covers the API." {
		t.Fatalf("unexpected answer %q", resp.Answer)
	}
	if len(resp.ToolsUsed) != 2 || resp.ToolsUsed[0] != "get_course_outline" || resp.ToolsUsed[1] != "search_course_content" {
		t.Fatalf("unexpected tools used: %v", resp.ToolsUsed)
	}
	if resp.SessionID != "s-1" {
		t.Fatalf("unexpected session id %q", resp.SessionID)
	}
}

func TestAskTutorErrors(t *testing.T) {
	asker := &fakeAsker{err: errors.New("session store down")}
	ts := spokeTestServer(t, Config{Assistant: asker})
	session := spokeClient(t, ts.URL)

	result := callTool(t, session, "ask_tutor", map[string]any{"question": ""})
	if !result.IsError || extractText(t, result) != "question is required" {
		t.Fatalf("expected question validation error")
	}

	result = callTool(t, session, "ask_tutor", map[string]any{"question": "hi"})
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if got := extractText(t, result); !strings.Contains(got, "session store down") {
		t.Fatalf("unexpected message %q", got)
	}
}
