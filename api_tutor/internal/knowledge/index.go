package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/cache"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/logging"

	"golang.org/x/text/cases"
)

const defaultResolveTTL = 10 * time.Minute

type indexStore interface {
	FindTitle(ctx context.Context, name string) (string, bool, error)
	NearestCourse(ctx context.Context, embedding []float32) (string, bool, error)
	SearchContent(ctx context.Context, embedding []float32, filter ContentFilter, limit int) ([]Passage, error)
	CourseByTitle(ctx context.Context, title string) (Course, error)
	ListCourses(ctx context.Context) ([]Course, error)
	ExistingTitles(ctx context.Context) ([]string, error)
}

type queryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Index is the retrieval backend used by the chat tools. It resolves fuzzy
// course names, runs filtered semantic search and serves the catalog.
type Index struct {
	store    indexStore
	embedder queryEmbedder
	resolver *cache.Cache[string]
	logger   logging.Logger
}

type IndexConfig struct {
	Store      indexStore
	Embedder   queryEmbedder
	Logger     logging.Logger
	ResolveTTL time.Duration
}

func NewIndex(cfg IndexConfig) *Index {
	ttl := cfg.ResolveTTL
	if ttl <= 0 {
		ttl = defaultResolveTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger()
	}
	fold := cases.Fold()
	return &Index{
		store:    cfg.Store,
		embedder: cfg.Embedder,
		logger:   logger,
		resolver: cache.New[string](cache.Options{
			TTL:         ttl,
			NegativeTTL: ttl / 10,
			MaxEntries:  1024,
			KeyFunc: func(s string) string {
				return fold.String(strings.TrimSpace(s))
			},
		}, cache.MetricsHooks{
			OnHit:  func(map[string]string) { resolveTotal.WithLabelValues("hit").Inc() },
			OnMiss: func(map[string]string) { resolveTotal.WithLabelValues("miss").Inc() },
			OnError: func(map[string]string) {
				resolveTotal.WithLabelValues("error").Inc()
			},
		}),
	}
}

// ResolveCourse maps a user-supplied course name to a stored title. An exact
// case-insensitive title match wins; otherwise the course with the nearest
// title embedding is returned. ok is false when the catalog is empty.
func (x *Index) ResolveCourse(ctx context.Context, name string) (string, bool, error) {
	if strings.TrimSpace(name) == "" {
		return "", false, nil
	}
	return x.resolver.Get(ctx, name, x.resolveUncached)
}

func (x *Index) resolveUncached(ctx context.Context, name string) (string, bool, error) {
	name = strings.TrimSpace(name)
	title, ok, err := x.store.FindTitle(ctx, name)
	if err != nil {
		return "", false, err
	}
	if ok {
		return title, true, nil
	}

	vector, err := x.embedder.EmbedQuery(ctx, name)
	if err != nil {
		return "", false, fmt.Errorf("resolve course name: %w", err)
	}
	title, ok, err = x.store.NearestCourse(ctx, vector)
	if err != nil {
		return "", false, err
	}
	if ok {
		x.logger.WithFields(logging.Fields{
			"input": name,
			"title": title,
		}).Debug("Resolved course name by similarity")
	}
	return title, ok, nil
}

// InvalidateResolver drops cached resolutions, e.g. after an ingest.
func (x *Index) InvalidateResolver() {
	x.resolver.Purge()
}

// SearchContent embeds query and returns up to limit passages matching filter.
func (x *Index) SearchContent(ctx context.Context, query string, filter ContentFilter, limit int) ([]Passage, error) {
	start := time.Now()
	filtered := filter.CourseTitle != "" || filter.LessonNumber != nil
	defer func() {
		searchDuration.WithLabelValues(strconv.FormatBool(filtered)).Observe(time.Since(start).Seconds())
	}()

	vector, err := x.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search course content: %w", err)
	}
	passages, err := x.store.SearchContent(ctx, vector, filter, limit)
	if err != nil {
		return nil, err
	}
	return passages, nil
}

// CourseOutline loads a course by its exact stored title.
func (x *Index) CourseOutline(ctx context.Context, title string) (Course, bool, error) {
	course, err := x.store.CourseByTitle(ctx, title)
	if errors.Is(err, ErrCourseNotFound) {
		return Course{}, false, nil
	}
	if err != nil {
		return Course{}, false, err
	}
	return course, true, nil
}

func (x *Index) Catalog(ctx context.Context) (Catalog, error) {
	titles, err := x.store.ExistingTitles(ctx)
	if err != nil {
		return Catalog{}, err
	}
	if titles == nil {
		titles = []string{}
	}
	return Catalog{TotalCourses: len(titles), CourseTitles: titles}, nil
}

// DetailedCatalog returns every course with lessons.
func (x *Index) DetailedCatalog(ctx context.Context) ([]Course, error) {
	return x.store.ListCourses(ctx)
}
