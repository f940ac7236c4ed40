package knowledge

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var lessonHeader = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.+)$`)

// LessonText is the raw body of one lesson. Number is nil for text that
// precedes the first lesson header in a document without lessons.
type LessonText struct {
	Number *int
	Text   string
}

// CourseDocument is a parsed course file.
type CourseDocument struct {
	Course Course
	Texts  []LessonText
}

// ParseCourseDocument reads the course file format:
//
//	Course Title: <title>
//	Course Link: <url>
//	Course Instructor: <name>
//
//	Lesson <n>: <title>
//	Lesson Link: <url>
//	<content>
//
// Header lines are optional; a missing title falls back to the file name
// without extension.
func ParseCourseDocument(r io.Reader, filename string) (CourseDocument, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return CourseDocument{}, fmt.Errorf("read %s: %w", filename, err)
	}

	var doc CourseDocument
	i := 0
header:
	for ; i < len(lines) && i < 4; i++ {
		line := strings.TrimSpace(lines[i])
		switch {
		case line == "":
			continue
		case hasFieldPrefix(line, "Course Title:"):
			doc.Course.Title = fieldValue(line, "Course Title:")
		case hasFieldPrefix(line, "Course Link:"):
			doc.Course.Link = fieldValue(line, "Course Link:")
		case hasFieldPrefix(line, "Course Instructor:"):
			doc.Course.Instructor = fieldValue(line, "Course Instructor:")
		default:
			break header
		}
	}
	if doc.Course.Title == "" {
		doc.Course.Title = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}

	var current *Lesson
	var buf []string
	var preamble []string
	flush := func() {
		if current == nil {
			return
		}
		n := current.Number
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		doc.Course.Lessons = append(doc.Course.Lessons, *current)
		if text != "" {
			doc.Texts = append(doc.Texts, LessonText{Number: &n, Text: text})
		}
		buf = nil
	}

	for ; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		if m := lessonHeader.FindStringSubmatch(trimmed); m != nil {
			flush()
			number, _ := strconv.Atoi(m[1])
			current = &Lesson{Number: number, Title: strings.TrimSpace(m[2])}
			if i+1 < len(lines) && hasFieldPrefix(strings.TrimSpace(lines[i+1]), "Lesson Link:") {
				current.Link = fieldValue(strings.TrimSpace(lines[i+1]), "Lesson Link:")
				i++
			}
			continue
		}
		if current == nil {
			preamble = append(preamble, line)
			continue
		}
		buf = append(buf, line)
	}
	flush()

	if len(doc.Course.Lessons) == 0 {
		if text := strings.TrimSpace(strings.Join(preamble, "\n")); text != "" {
			doc.Texts = append(doc.Texts, LessonText{Text: text})
		}
	}
	return doc, nil
}

func hasFieldPrefix(line, prefix string) bool {
	return len(line) >= len(prefix) && strings.EqualFold(line[:len(prefix)], prefix)
}

func fieldValue(line, prefix string) string {
	return strings.TrimSpace(line[len(prefix):])
}
