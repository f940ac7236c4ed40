package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pgvector/pgvector-go"
)

// Store persists the course catalog and embedded content chunks in Postgres
// using pgvector for cosine-distance search.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// AddCourse replaces a course with its lessons and chunks in one transaction.
func (s *Store) AddCourse(ctx context.Context, course Course, titleEmbedding []float32, chunks []ContentChunk) error {
	if course.Title == "" {
		return errors.New("course title is required")
	}
	if len(titleEmbedding) == 0 {
		return errors.New("course title embedding is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tutor.courses WHERE title = $1`, course.Title); err != nil {
		return fmt.Errorf("delete existing course: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tutor.courses (title, link, instructor, embedding)
		VALUES ($1, $2, $3, $4)
	`, course.Title, course.Link, course.Instructor, pgvector.NewVector(titleEmbedding)); err != nil {
		return fmt.Errorf("insert course: %w", err)
	}

	if len(course.Lessons) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO tutor.lessons (course_title, lesson_number, title, link)
			VALUES ($1, $2, $3, $4)
		`)
		if err != nil {
			return fmt.Errorf("prepare lesson insert: %w", err)
		}
		defer stmt.Close()
		for _, lesson := range course.Lessons {
			if _, err := stmt.ExecContext(ctx, course.Title, lesson.Number, lesson.Title, lesson.Link); err != nil {
				return fmt.Errorf("insert lesson %d: %w", lesson.Number, err)
			}
		}
	}

	if len(chunks) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO tutor.chunks (course_title, lesson_number, chunk_index, content, embedding)
			VALUES ($1, $2, $3, $4, $5)
		`)
		if err != nil {
			return fmt.Errorf("prepare chunk insert: %w", err)
		}
		defer stmt.Close()
		for _, chunk := range chunks {
			var lesson sql.NullInt64
			if chunk.LessonNumber != nil {
				lesson = sql.NullInt64{Int64: int64(*chunk.LessonNumber), Valid: true}
			}
			if _, err := stmt.ExecContext(
				ctx,
				course.Title,
				lesson,
				chunk.Index,
				chunk.Text,
				pgvector.NewVector(chunk.Embedding),
			); err != nil {
				return fmt.Errorf("insert chunk: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) ExistingTitles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT title FROM tutor.courses ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("list course titles: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("scan course title: %w", err)
		}
		titles = append(titles, title)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate course titles: %w", err)
	}
	return titles, nil
}

// ClearAll removes every course, lesson and chunk.
func (s *Store) ClearAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `TRUNCATE tutor.chunks, tutor.lessons, tutor.courses`); err != nil {
		return fmt.Errorf("clear course data: %w", err)
	}
	return nil
}

// SearchContent returns the chunks nearest to embedding, optionally limited
// to one course and/or one lesson.
func (s *Store) SearchContent(ctx context.Context, embedding []float32, filter ContentFilter, limit int) ([]Passage, error) {
	if len(embedding) == 0 {
		return nil, errors.New("embedding is required")
	}
	if limit <= 0 {
		limit = 5
	}

	args := []any{pgvector.NewVector(embedding)}
	var where []string
	if filter.CourseTitle != "" {
		args = append(args, filter.CourseTitle)
		where = append(where, "c.course_title = $"+strconv.Itoa(len(args)))
	}
	if filter.LessonNumber != nil {
		args = append(args, *filter.LessonNumber)
		where = append(where, "c.lesson_number = $"+strconv.Itoa(len(args)))
	}
	args = append(args, limit)

	query := `
		SELECT c.content,
			c.course_title,
			c.lesson_number,
			l.link,
			c.embedding <=> $1 AS distance
		FROM tutor.chunks c
		LEFT JOIN tutor.lessons l
			ON l.course_title = c.course_title AND l.lesson_number = c.lesson_number`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY c.embedding <=> $1\n\t\tLIMIT $" + strconv.Itoa(len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search course content: %w", err)
	}
	defer rows.Close()

	var passages []Passage
	for rows.Next() {
		var (
			p      Passage
			course sql.NullString
			lesson sql.NullInt64
			link   sql.NullString
		)
		if err := rows.Scan(&p.Text, &course, &lesson, &link, &p.Distance); err != nil {
			return nil, fmt.Errorf("scan content chunk: %w", err)
		}
		p.CourseTitle = course.String
		p.LessonLink = link.String
		if lesson.Valid {
			n := int(lesson.Int64)
			p.LessonNumber = &n
		}
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content chunks: %w", err)
	}
	return passages, nil
}

// FindTitle matches name against stored titles ignoring case.
func (s *Store) FindTitle(ctx context.Context, name string) (string, bool, error) {
	var title string
	err := s.db.QueryRowContext(ctx, `
		SELECT title FROM tutor.courses WHERE lower(title) = lower($1) LIMIT 1
	`, name).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find course title: %w", err)
	}
	return title, true, nil
}

// NearestCourse returns the course whose title embedding is closest to
// embedding. ok is false only when the catalog is empty.
func (s *Store) NearestCourse(ctx context.Context, embedding []float32) (string, bool, error) {
	var title string
	err := s.db.QueryRowContext(ctx, `
		SELECT title FROM tutor.courses
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT 1
	`, pgvector.NewVector(embedding)).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("nearest course: %w", err)
	}
	return title, true, nil
}

func (s *Store) CourseByTitle(ctx context.Context, title string) (Course, error) {
	course := Course{Title: title}
	err := s.db.QueryRowContext(ctx, `
		SELECT link, instructor FROM tutor.courses WHERE title = $1
	`, title).Scan(&course.Link, &course.Instructor)
	if errors.Is(err, sql.ErrNoRows) {
		return Course{}, fmt.Errorf("%w: %s", ErrCourseNotFound, title)
	}
	if err != nil {
		return Course{}, fmt.Errorf("load course: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT lesson_number, title, link
		FROM tutor.lessons
		WHERE course_title = $1
		ORDER BY lesson_number
	`, title)
	if err != nil {
		return Course{}, fmt.Errorf("load lessons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var lesson Lesson
		if err := rows.Scan(&lesson.Number, &lesson.Title, &lesson.Link); err != nil {
			return Course{}, fmt.Errorf("scan lesson: %w", err)
		}
		course.Lessons = append(course.Lessons, lesson)
	}
	if err := rows.Err(); err != nil {
		return Course{}, fmt.Errorf("iterate lessons: %w", err)
	}
	return course, nil
}

// ListCourses returns every course with its lessons, ordered by title.
func (s *Store) ListCourses(ctx context.Context) ([]Course, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT title, link, instructor FROM tutor.courses ORDER BY title
	`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	var courses []Course
	byTitle := make(map[string]int)
	for rows.Next() {
		var course Course
		if err := rows.Scan(&course.Title, &course.Link, &course.Instructor); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan course: %w", err)
		}
		byTitle[course.Title] = len(courses)
		courses = append(courses, course)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate courses: %w", err)
	}
	rows.Close()

	if len(courses) == 0 {
		return nil, nil
	}

	lessonRows, err := s.db.QueryContext(ctx, `
		SELECT course_title, lesson_number, title, link
		FROM tutor.lessons
		ORDER BY course_title, lesson_number
	`)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	defer lessonRows.Close()

	for lessonRows.Next() {
		var courseTitle string
		var lesson Lesson
		if err := lessonRows.Scan(&courseTitle, &lesson.Number, &lesson.Title, &lesson.Link); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		if i, ok := byTitle[courseTitle]; ok {
			courses[i].Lessons = append(courses[i].Lessons, lesson)
		}
	}
	if err := lessonRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lessons: %w", err)
	}
	return courses, nil
}
