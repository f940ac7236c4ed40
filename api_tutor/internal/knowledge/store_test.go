package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), mock
}

func TestStoreSearchContentWithFilters(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"content", "course_title", "lesson_number", "link", "distance"}).
		AddRow("Agents call tools.", "Building Agents", int64(2), "https://example.com/2", 0.12).
		AddRow("Intro text.", "Building Agents", nil, nil, 0.3)
	mock.ExpectQuery(`c\.course_title = \$2 AND c\.lesson_number = \$3`).
		WithArgs(sqlmock.AnyArg(), "Building Agents", 2, 5).
		WillReturnRows(rows)

	passages, err := store.SearchContent(context.Background(), []float32{0.1, 0.2},
		ContentFilter{CourseTitle: "Building Agents", LessonNumber: intPtr(2)}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(passages) != 2 {
		t.Fatalf("expected 2 passages, got %d", len(passages))
	}
	if passages[0].LessonNumber == nil || *passages[0].LessonNumber != 2 || passages[0].LessonLink != "https://example.com/2" {
		t.Fatalf("unexpected first passage %+v", passages[0])
	}
	if passages[1].LessonNumber != nil || passages[1].LessonLink != "" {
		t.Fatalf("expected passage without lesson, got %+v", passages[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreSearchContentUnfiltered(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM tutor\.chunks c`).
		WithArgs(sqlmock.AnyArg(), 3).
		WillReturnRows(sqlmock.NewRows([]string{"content", "course_title", "lesson_number", "link", "distance"}))

	passages, err := store.SearchContent(context.Background(), []float32{0.1}, ContentFilter{}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(passages) != 0 {
		t.Fatalf("expected no passages, got %d", len(passages))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreSearchContentError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`FROM tutor\.chunks c`).WillReturnError(errors.New("connection refused"))

	_, err := store.SearchContent(context.Background(), []float32{0.1}, ContentFilter{}, 5)
	if err == nil || err.Error() != "search course content: connection refused" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStoreAddCourse(t *testing.T) {
	store, mock := newMockStore(t)

	course := Course{
		Title:      "Building Agents",
		Link:       "https://example.com/agents",
		Instructor: "Ada",
		Lessons:    []Lesson{{Number: 1, Title: "Intro"}},
	}
	chunks := []ContentChunk{
		{CourseTitle: course.Title, LessonNumber: intPtr(1), Index: 0, Text: "Lesson 1 content: hi", Embedding: []float32{0.1}},
		{CourseTitle: course.Title, Index: 1, Text: "notes", Embedding: []float32{0.2}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM tutor\.courses`).WithArgs(course.Title).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO tutor\.courses`).
		WithArgs(course.Title, course.Link, course.Instructor, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectPrepare(`INSERT INTO tutor\.lessons`)
	mock.ExpectExec(`INSERT INTO tutor\.lessons`).
		WithArgs(course.Title, 1, "Intro", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectPrepare(`INSERT INTO tutor\.chunks`)
	mock.ExpectExec(`INSERT INTO tutor\.chunks`).
		WithArgs(course.Title, sqlmock.AnyArg(), 0, "Lesson 1 content: hi", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO tutor\.chunks`).
		WithArgs(course.Title, sqlmock.AnyArg(), 1, "notes", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	if err := store.AddCourse(context.Background(), course, []float32{0.5}, chunks); err != nil {
		t.Fatalf("add course: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreAddCourseRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM tutor\.courses`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO tutor\.courses`).WillReturnError(errors.New("duplicate"))
	mock.ExpectRollback()

	err := store.AddCourse(context.Background(), Course{Title: "X"}, []float32{0.5}, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreFindTitle(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`lower\(title\) = lower\(\$1\)`).
		WithArgs("building agents").
		WillReturnRows(sqlmock.NewRows([]string{"title"}).AddRow("Building Agents"))
	mock.ExpectQuery(`lower\(title\) = lower\(\$1\)`).
		WithArgs("nothing").
		WillReturnRows(sqlmock.NewRows([]string{"title"}))

	title, ok, err := store.FindTitle(context.Background(), "building agents")
	if err != nil || !ok || title != "Building Agents" {
		t.Fatalf("unexpected result %q %v %v", title, ok, err)
	}
	_, ok, err = store.FindTitle(context.Background(), "nothing")
	if err != nil || ok {
		t.Fatalf("expected not found, got ok=%v err=%v", ok, err)
	}
}

func TestStoreCourseByTitle(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT link, instructor FROM tutor\.courses`).
		WithArgs("Building Agents").
		WillReturnRows(sqlmock.NewRows([]string{"link", "instructor"}).AddRow("https://example.com", "Ada"))
	mock.ExpectQuery(`FROM tutor\.lessons`).
		WithArgs("Building Agents").
		WillReturnRows(sqlmock.NewRows([]string{"lesson_number", "title", "link"}).
			AddRow(0, "Intro", "https://example.com/0").
			AddRow(1, "Tools", ""))

	course, err := store.CourseByTitle(context.Background(), "Building Agents")
	if err != nil {
		t.Fatalf("course by title: %v", err)
	}
	if course.Instructor != "Ada" || len(course.Lessons) != 2 || course.Lessons[1].Title != "Tools" {
		t.Fatalf("unexpected course %+v", course)
	}
}

func TestStoreCourseByTitleNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT link, instructor FROM tutor\.courses`).
		WillReturnRows(sqlmock.NewRows([]string{"link", "instructor"}))

	_, err := store.CourseByTitle(context.Background(), "Missing")
	if !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("expected ErrCourseNotFound, got %v", err)
	}
}

func TestStoreListCourses(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT title, link, instructor FROM tutor\.courses`).
		WillReturnRows(sqlmock.NewRows([]string{"title", "link", "instructor"}).
			AddRow("A", "https://a", "Ann").
			AddRow("B", "https://b", ""))
	mock.ExpectQuery(`FROM tutor\.lessons`).
		WillReturnRows(sqlmock.NewRows([]string{"course_title", "lesson_number", "title", "link"}).
			AddRow("A", 0, "Intro", "").
			AddRow("A", 1, "More", "").
			AddRow("B", 0, "Only", ""))

	courses, err := store.ListCourses(context.Background())
	if err != nil {
		t.Fatalf("list courses: %v", err)
	}
	if len(courses) != 2 || len(courses[0].Lessons) != 2 || len(courses[1].Lessons) != 1 {
		t.Fatalf("unexpected courses %+v", courses)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreClearAll(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`TRUNCATE tutor\.chunks, tutor\.lessons, tutor\.courses`).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.ClearAll(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
