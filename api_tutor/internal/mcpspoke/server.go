// Package mcpspoke exposes the course tools and the tutor itself over MCP so
// external agents can use them directly.
package mcpspoke

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/christophercallejongarcia/Test-Deeplearning/api_tutor/internal/chat"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/logging"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/version"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Asker runs a question through the full tutor pipeline.
type Asker interface {
	Process(ctx context.Context, query, sessionID string) (chat.Answer, error)
}

// Config configures the tutor MCP server.
type Config struct {
	Registry  *chat.Registry
	Assistant Asker
	Logger    logging.Logger
}

// NewServer creates an MCP server exposing search_course_content,
// get_course_outline and ask_tutor.
func NewServer(cfg Config) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "tutor",
		Version: version.Version,
	}, nil)

	registerSearchCourseContent(srv, cfg)
	registerCourseOutline(srv, cfg)
	registerAskTutor(srv, cfg)

	return srv
}

// NewHTTPHandler serves srv over stateless streamable HTTP.
func NewHTTPHandler(srv *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return srv },
		&mcp.StreamableHTTPOptions{Stateless: true},
	)
}

// --- search_course_content ---

type searchCourseInput struct {
	Query        string `json:"query" jsonschema:"What to search for in the course content"`
	CourseName   string `json:"course_name,omitempty" jsonschema:"Course title; partial matches work"`
	LessonNumber *int   `json:"lesson_number,omitempty" jsonschema:"Lesson number to search within"`
}

type toolResponse struct {
	Result  string        `json:"result"`
	Sources []chat.Source `json:"sources"`
}

func registerSearchCourseContent(srv *mcp.Server, cfg Config) {
	mcp.AddTool(srv,
		&mcp.Tool{
			Name:        chat.SearchToolName,
			Description: "Search course materials with course name matching and lesson filtering.",
		},
		func(ctx context.Context, _ *mcp.CallToolRequest, args searchCourseInput) (*mcp.CallToolResult, any, error) {
			if strings.TrimSpace(args.Query) == "" {
				return spokeError("query is required")
			}
			return dispatch(ctx, cfg, chat.SearchToolName, args)
		},
	)
}

// --- get_course_outline ---

type courseOutlineInput struct {
	CourseName string `json:"course_name" jsonschema:"Course title; partial matches work"`
}

func registerCourseOutline(srv *mcp.Server, cfg Config) {
	mcp.AddTool(srv,
		&mcp.Tool{
			Name:        chat.OutlineToolName,
			Description: "Get a course outline with title, link, instructor and lesson list.",
		},
		func(ctx context.Context, _ *mcp.CallToolRequest, args courseOutlineInput) (*mcp.CallToolResult, any, error) {
			if strings.TrimSpace(args.CourseName) == "" {
				return spokeError("course_name is required")
			}
			return dispatch(ctx, cfg, chat.OutlineToolName, args)
		},
	)
}

// dispatch runs a registered chat tool with its own provenance collector.
func dispatch(ctx context.Context, cfg Config, name string, args any) (*mcp.CallToolResult, any, error) {
	if cfg.Registry == nil {
		return spokeError("course tools unavailable")
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return spokeError(fmt.Sprintf("encode arguments: %v", err))
	}

	start := time.Now()
	prov := cfg.Registry.NewProvenance()
	defer cfg.Registry.ClearProvenance(prov)
	output, err := cfg.Registry.Dispatch(ctx, name, raw, prov)
	spokeToolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		spokeCallsTotal.WithLabelValues(name, "error").Inc()
		if cfg.Logger != nil {
			cfg.Logger.WithError(err).WithField("tool", name).Warn("MCP tool call failed")
		}
		return spokeError(err.Error())
	}
	spokeCallsTotal.WithLabelValues(name, "success").Inc()

	sources := cfg.Registry.CollectProvenance(prov)
	if sources == nil {
		sources = []chat.Source{}
	}
	return spokeSuccess(toolResponse{Result: output, Sources: sources})
}

// --- ask_tutor ---

type askTutorInput struct {
	Question  string `json:"question" jsonschema:"Question about the course materials"`
	SessionID string `json:"session_id,omitempty" jsonschema:"Session to continue; omit for a one-off question"`
}

type askTutorResponse struct {
	Answer    string        `json:"answer"`
	Sources   []chat.Source `json:"sources"`
	ToolsUsed []string      `json:"tools_used"`
	SessionID string        `json:"session_id,omitempty"`
}

func registerAskTutor(srv *mcp.Server, cfg Config) {
	mcp.AddTool(srv,
		&mcp.Tool{
			Name:        "ask_tutor",
			Description: "Ask the course materials tutor a question. Runs the full retrieval and reasoning pipeline and returns an answer with sources.",
		},
		func(ctx context.Context, _ *mcp.CallToolRequest, args askTutorInput) (*mcp.CallToolResult, any, error) {
			return handleAskTutor(ctx, args, cfg)
		},
	)
}

func handleAskTutor(ctx context.Context, args askTutorInput, cfg Config) (*mcp.CallToolResult, any, error) {
	if cfg.Assistant == nil {
		return spokeError("tutor unavailable")
	}
	question := strings.TrimSpace(args.Question)
	if question == "" {
		return spokeError("question is required")
	}

	answer, err := cfg.Assistant.Process(ctx, question, strings.TrimSpace(args.SessionID))
	if err != nil {
		spokeCallsTotal.WithLabelValues("ask_tutor", "error").Inc()
		if cfg.Logger != nil {
			cfg.Logger.WithError(err).Warn("ask_tutor failed")
		}
		return spokeError(fmt.Sprintf("tutor error: %v", err))
	}
	spokeCallsTotal.WithLabelValues("ask_tutor", "success").Inc()

	toolsUsed := make([]string, 0, len(answer.ToolCalls))
	seen := make(map[string]bool)
	for _, tc := range answer.ToolCalls {
		if !seen[tc.Name] {
			toolsUsed = append(toolsUsed, tc.Name)
			seen[tc.Name] = true
		}
	}
	sources := answer.Sources
	if sources == nil {
		sources = []chat.Source{}
	}
	return spokeSuccess(askTutorResponse{
		Answer:    answer.Text,
		Sources:   sources,
		ToolsUsed: toolsUsed,
		SessionID: args.SessionID,
	})
}

// --- helpers ---

func spokeError(message string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
		IsError: true,
	}, nil, nil
}

func spokeSuccess(result any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return spokeError(fmt.Sprintf("failed to format result: %v", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, result, nil
}
