package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/llm"
)

const OutlineToolName = "get_course_outline"

// CourseOutlineTool reports a course's title, link, instructor and lessons.
type CourseOutlineTool struct {
	index CourseIndex
}

func NewCourseOutlineTool(index CourseIndex) *CourseOutlineTool {
	return &CourseOutlineTool{index: index}
}

func (t *CourseOutlineTool) Definition() llm.Tool {
	return llm.Tool{
		Name:        OutlineToolName,
		Description: "Get a course outline: title, course link, instructor and the numbered list of lessons.",
		Parameters: toolParams(
			map[string]any{
				"course_name": map[string]any{
					"type":        "string",
					"description": "Course title; partial matches work (e.g. 'MCP', 'Introduction').",
				},
			},
			[]string{"course_name"},
		),
	}
}

func (t *CourseOutlineTool) Execute(ctx context.Context, raw json.RawMessage, prov *Provenance) (string, error) {
	var args struct {
		CourseName string `json:"course_name"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("decode %s arguments: %w", OutlineToolName, err)
	}
	if strings.TrimSpace(args.CourseName) == "" {
		return "", errors.New("course_name is required")
	}

	notFound := fmt.Sprintf("No course found matching '%s'", args.CourseName)
	title, ok, err := t.index.ResolveCourse(ctx, args.CourseName)
	if err != nil {
		return err.Error(), nil
	}
	if !ok {
		return notFound, nil
	}
	course, ok, err := t.index.CourseOutline(ctx, title)
	if err != nil {
		return err.Error(), nil
	}
	if !ok {
		return notFound, nil
	}

	lines := []string{
		"Course Title: " + course.Title,
		"Course Link: " + course.Link,
	}
	if course.Instructor != "" {
		lines = append(lines, "Course Instructor: "+course.Instructor)
	}
	lines = append(lines, "", "Lessons ("+strconv.Itoa(len(course.Lessons))+" total):")
	for _, lesson := range course.Lessons {
		lines = append(lines, strconv.Itoa(lesson.Number)+". "+lesson.Title)
	}

	prov.Record(OutlineToolName, []Source{{Display: course.Title, Link: course.Link}})
	return strings.Join(lines, "\n"), nil
}
