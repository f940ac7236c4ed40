package knowledge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/logging"
)

// CourseWriter is the write side of the course store.
type CourseWriter interface {
	AddCourse(ctx context.Context, course Course, titleEmbedding []float32, chunks []ContentChunk) error
	ExistingTitles(ctx context.Context) ([]string, error)
	ClearAll(ctx context.Context) error
}

type courseEmbedder interface {
	EmbedCourse(ctx context.Context, doc CourseDocument) ([]ContentChunk, []float32, error)
}

var courseExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

type IngestorConfig struct {
	Writer   CourseWriter
	Embedder courseEmbedder
	Logger   logging.Logger
	// OnChange runs after courses were added or cleared.
	OnChange func()
}

// Ingestor loads course documents into the index.
type Ingestor struct {
	writer   CourseWriter
	embedder courseEmbedder
	logger   logging.Logger
	onChange func()
}

func NewIngestor(cfg IngestorConfig) (*Ingestor, error) {
	if cfg.Writer == nil {
		return nil, errors.New("course writer is required")
	}
	if cfg.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Ingestor{
		writer:   cfg.Writer,
		embedder: cfg.Embedder,
		logger:   logger,
		onChange: cfg.OnChange,
	}, nil
}

// AddCourseDocument parses, embeds and stores one course file. It returns
// the parsed course and the number of chunks written.
func (in *Ingestor) AddCourseDocument(ctx context.Context, path string) (Course, int, error) {
	doc, err := parseFile(path)
	if err != nil {
		return Course{}, 0, err
	}
	n, err := in.store(ctx, doc)
	if err != nil {
		return Course{}, 0, err
	}
	in.changed()
	return doc.Course, n, nil
}

// AddCourseFolder ingests every course file in dir. Courses whose title is
// already stored are skipped. A file that fails to load is logged and does
// not stop the rest of the folder.
func (in *Ingestor) AddCourseFolder(ctx context.Context, dir string, clearExisting bool) (int, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("read course folder: %w", err)
	}

	if clearExisting {
		if err := in.writer.ClearAll(ctx); err != nil {
			return 0, 0, err
		}
		in.logger.Info("Cleared existing course data")
		in.changed()
	}

	titles, err := in.writer.ExistingTitles(ctx)
	if err != nil {
		return 0, 0, err
	}
	existing := make(map[string]bool, len(titles))
	for _, title := range titles {
		existing[title] = true
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !courseExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)

	courses, chunks := 0, 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return courses, chunks, err
		}
		log := in.logger.WithField("file", filepath.Base(path))

		doc, err := parseFile(path)
		if err != nil {
			ingestCoursesTotal.WithLabelValues("error").Inc()
			log.WithError(err).Warn("Failed to parse course document")
			continue
		}
		if existing[doc.Course.Title] {
			ingestCoursesTotal.WithLabelValues("skipped").Inc()
			log.WithField("course", doc.Course.Title).Info("Course already indexed, skipping")
			continue
		}

		n, err := in.store(ctx, doc)
		if err != nil {
			ingestCoursesTotal.WithLabelValues("error").Inc()
			log.WithError(err).Warn("Failed to ingest course document")
			continue
		}
		existing[doc.Course.Title] = true
		courses++
		chunks += n
		log.WithFields(logging.Fields{
			"course": doc.Course.Title,
			"chunks": n,
		}).Info("Ingested course")
	}

	if courses > 0 {
		in.changed()
	}
	return courses, chunks, nil
}

func (in *Ingestor) store(ctx context.Context, doc CourseDocument) (int, error) {
	chunks, titleVector, err := in.embedder.EmbedCourse(ctx, doc)
	if err != nil {
		return 0, err
	}
	if err := in.writer.AddCourse(ctx, doc.Course, titleVector, chunks); err != nil {
		return 0, fmt.Errorf("store course %q: %w", doc.Course.Title, err)
	}
	ingestCoursesTotal.WithLabelValues("added").Inc()
	ingestChunksTotal.Add(float64(len(chunks)))
	return len(chunks), nil
}

func (in *Ingestor) changed() {
	if in.onChange != nil {
		in.onChange()
	}
}

func parseFile(path string) (CourseDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return CourseDocument{}, fmt.Errorf("open course document: %w", err)
	}
	defer f.Close()
	return ParseCourseDocument(f, filepath.Base(path))
}
