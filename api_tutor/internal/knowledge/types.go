package knowledge

import "errors"

// ErrCourseNotFound is returned when a title does not exist in the catalog.
var ErrCourseNotFound = errors.New("course not found")

type Lesson struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"lesson_title"`
	Link   string `json:"lesson_link,omitempty"`
}

// Course is a catalog entry. Title is the unique identifier.
type Course struct {
	Title      string   `json:"title"`
	Link       string   `json:"course_link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// LessonLink returns the link stored for lesson n, or "".
func (c Course) LessonLink(n int) string {
	for _, lesson := range c.Lessons {
		if lesson.Number == n {
			return lesson.Link
		}
	}
	return ""
}

// ContentChunk is one embedded slice of course text. LessonNumber is nil for
// course-level text outside any lesson.
type ContentChunk struct {
	CourseTitle  string
	LessonNumber *int
	Index        int
	Text         string
	Embedding    []float32
}

// Passage is a search hit. CourseTitle is empty when the chunk carries no
// course metadata.
type Passage struct {
	Text         string
	CourseTitle  string
	LessonNumber *int
	LessonLink   string
	Distance     float64
}

// ContentFilter narrows a content search. Zero values mean no filter.
type ContentFilter struct {
	CourseTitle  string
	LessonNumber *int
}

// Catalog summarizes the indexed courses.
type Catalog struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}
