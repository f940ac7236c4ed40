package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/christophercallejongarcia/Test-Deeplearning/api_tutor/internal/knowledge"
	"github.com/christophercallejongarcia/Test-Deeplearning/api_tutor/internal/session"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/logging"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/middleware"

	"github.com/gin-gonic/gin"
)

const defaultMaxQueryRunes = 10000

// Querier answers one query within an optional session.
type Querier interface {
	Process(ctx context.Context, query, sessionID string) (Answer, error)
}

// CatalogReader serves course analytics.
type CatalogReader interface {
	Catalog(ctx context.Context) (knowledge.Catalog, error)
	DetailedCatalog(ctx context.Context) ([]knowledge.Course, error)
}

type Handler struct {
	Assistant     Querier
	Catalog       CatalogReader
	Sessions      session.Store
	Logger        logging.Logger
	MaxQueryRunes int
}

type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

type QueryResponse struct {
	Answer    string   `json:"answer"`
	Sources   []Source `json:"sources"`
	SessionID string   `json:"session_id"`
}

type courseDetail struct {
	Title       string             `json:"title"`
	Instructor  string             `json:"instructor"`
	CourseLink  string             `json:"course_link"`
	LessonCount int                `json:"lesson_count"`
	Lessons     []knowledge.Lesson `json:"lessons"`
}

func NewHandler(assistant Querier, catalog CatalogReader, sessions session.Store, logger logging.Logger) *Handler {
	return &Handler{
		Assistant:     assistant,
		Catalog:       catalog,
		Sessions:      sessions,
		Logger:        logger,
		MaxQueryRunes: defaultMaxQueryRunes,
	}
}

func RegisterRoutes(router gin.IRoutes, handler *Handler) {
	router.GET("/", handler.HandleRoot)
	router.POST("/api/query", handler.HandleQuery)
	router.GET("/api/courses", handler.HandleCourses)
	router.GET("/api/courses/detailed", handler.HandleCoursesDetailed)
	router.DELETE("/api/sessions/:id", handler.HandleClearSession)
}

func (h *Handler) HandleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Course Materials Assistant API", "status": "active"})
}

func (h *Handler) HandleQuery(c *gin.Context) {
	if h == nil || h.Assistant == nil || h.Sessions == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "assistant unavailable"})
		return
	}

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	limit := h.MaxQueryRunes
	if limit <= 0 {
		limit = defaultMaxQueryRunes
	}
	if len([]rune(query)) > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "query too long"})
		return
	}

	ctx := c.Request.Context()
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		var err error
		sessionID, err = h.Sessions.CreateSession(ctx)
		if err != nil {
			h.logError(c, err, "Failed to create session")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
			return
		}
	}
	c.Set("session_id", sessionID)

	answer, err := h.Assistant.Process(ctx, query, sessionID)
	if err != nil {
		h.logError(c, err, "Query processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process query"})
		return
	}
	sources := answer.Sources
	if sources == nil {
		sources = []Source{}
	}
	c.JSON(http.StatusOK, QueryResponse{
		Answer:    answer.Text,
		Sources:   sources,
		SessionID: sessionID,
	})
}

func (h *Handler) HandleCourses(c *gin.Context) {
	if h == nil || h.Catalog == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "catalog unavailable"})
		return
	}
	catalog, err := h.Catalog.Catalog(c.Request.Context())
	if err != nil {
		h.logError(c, err, "Failed to load course catalog")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load courses"})
		return
	}
	c.JSON(http.StatusOK, catalog)
}

func (h *Handler) HandleCoursesDetailed(c *gin.Context) {
	if h == nil || h.Catalog == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "catalog unavailable"})
		return
	}
	courses, err := h.Catalog.DetailedCatalog(c.Request.Context())
	if err != nil {
		h.logError(c, err, "Failed to load detailed course catalog")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load courses"})
		return
	}
	details := make([]courseDetail, 0, len(courses))
	for _, course := range courses {
		lessons := course.Lessons
		if lessons == nil {
			lessons = []knowledge.Lesson{}
		}
		details = append(details, courseDetail{
			Title:       course.Title,
			Instructor:  course.Instructor,
			CourseLink:  course.Link,
			LessonCount: len(lessons),
			Lessons:     lessons,
		})
	}
	c.JSON(http.StatusOK, gin.H{"total_courses": len(details), "courses": details})
}

func (h *Handler) HandleClearSession(c *gin.Context) {
	if h == nil || h.Sessions == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sessions unavailable"})
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if err := h.Sessions.Clear(c.Request.Context(), id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		h.logError(c, err, "Failed to clear session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear session"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) logError(c *gin.Context, err error, msg string) {
	if h.Logger != nil {
		middleware.GetContextLogger(c, h.Logger).WithError(err).Error(msg)
	}
}
