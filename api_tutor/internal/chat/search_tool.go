package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/christophercallejongarcia/Test-Deeplearning/api_tutor/internal/knowledge"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/llm"
)

const (
	SearchToolName     = "search_course_content"
	defaultSearchLimit = 5
)

// CourseIndex is the retrieval backend the tools read from.
type CourseIndex interface {
	ResolveCourse(ctx context.Context, name string) (string, bool, error)
	SearchContent(ctx context.Context, query string, filter knowledge.ContentFilter, limit int) ([]knowledge.Passage, error)
	CourseOutline(ctx context.Context, title string) (knowledge.Course, bool, error)
}

// CourseSearchTool runs semantic search over course content with optional
// course and lesson filters.
type CourseSearchTool struct {
	index CourseIndex
	limit int
}

func NewCourseSearchTool(index CourseIndex, limit int) *CourseSearchTool {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return &CourseSearchTool{index: index, limit: limit}
}

type searchArgs struct {
	Query        string `json:"query"`
	CourseName   string `json:"course_name,omitempty"`
	LessonNumber *int   `json:"lesson_number,omitempty"`
}

func (t *CourseSearchTool) Definition() llm.Tool {
	return llm.Tool{
		Name:        SearchToolName,
		Description: "Search course materials for specific content, with smart course name matching and lesson filtering.",
		Parameters: toolParams(
			map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What to search for in the course content.",
				},
				"course_name": map[string]any{
					"type":        "string",
					"description": "Course title; partial matches work (e.g. 'MCP', 'Introduction').",
				},
				"lesson_number": map[string]any{
					"type":        "integer",
					"description": "Specific lesson number to search within (e.g. 1, 2, 3).",
				},
			},
			[]string{"query"},
		),
	}
}

func (t *CourseSearchTool) Execute(ctx context.Context, raw json.RawMessage, prov *Provenance) (string, error) {
	var args searchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("decode %s arguments: %w", SearchToolName, err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", errors.New("query is required")
	}

	filter := knowledge.ContentFilter{LessonNumber: args.LessonNumber}
	if args.CourseName != "" {
		title, ok, err := t.index.ResolveCourse(ctx, args.CourseName)
		if err != nil {
			searchCallsTotal.WithLabelValues("error").Inc()
			return err.Error(), nil
		}
		if !ok {
			searchCallsTotal.WithLabelValues("unresolved").Inc()
			return fmt.Sprintf("No course found matching '%s'", args.CourseName), nil
		}
		filter.CourseTitle = title
	}

	start := time.Now()
	passages, err := t.index.SearchContent(ctx, args.Query, filter, t.limit)
	toolSearchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		searchCallsTotal.WithLabelValues("error").Inc()
		return err.Error(), nil
	}
	if len(passages) == 0 {
		searchCallsTotal.WithLabelValues("empty").Inc()
		return "No relevant content found" + filterSuffix(args) + ".", nil
	}
	searchCallsTotal.WithLabelValues("success").Inc()

	blocks := make([]string, 0, len(passages))
	sources := make([]Source, 0, len(passages))
	for _, p := range passages {
		header := passageHeader(p)
		blocks = append(blocks, "["+header+"]\n"+p.Text)
		sources = append(sources, Source{Display: header, Link: p.LessonLink})
	}
	prov.Record(SearchToolName, sources)
	return strings.Join(blocks, "\n\n"), nil
}

func filterSuffix(args searchArgs) string {
	var b strings.Builder
	if args.CourseName != "" {
		b.WriteString(" in course '" + args.CourseName + "'")
	}
	if args.LessonNumber != nil {
		b.WriteString(" in lesson " + strconv.Itoa(*args.LessonNumber))
	}
	return b.String()
}

func passageHeader(p knowledge.Passage) string {
	if p.CourseTitle == "" {
		return "unknown"
	}
	if p.LessonNumber != nil {
		return p.CourseTitle + " - Lesson " + strconv.Itoa(*p.LessonNumber)
	}
	return p.CourseTitle
}
