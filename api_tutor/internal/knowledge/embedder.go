package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/llm"
)

const (
	defaultChunkSize    = 800
	defaultChunkOverlap = 100
	maxEmbedBatchSize   = 256
)

type EmbedderOption func(*Embedder)

// Embedder turns parsed course documents into embedded chunks and embeds
// search queries with the same model.
type Embedder struct {
	client       llm.EmbeddingClient
	chunkSize    int
	chunkOverlap int
}

func NewEmbedder(client llm.EmbeddingClient, opts ...EmbedderOption) (*Embedder, error) {
	if client == nil {
		return nil, errors.New("embedding client is required")
	}
	embedder := &Embedder{
		client:       client,
		chunkSize:    defaultChunkSize,
		chunkOverlap: defaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(embedder)
	}
	if embedder.chunkSize <= 0 {
		return nil, errors.New("chunk size must be positive")
	}
	if embedder.chunkOverlap < 0 {
		return nil, errors.New("chunk overlap must be non-negative")
	}
	if embedder.chunkOverlap >= embedder.chunkSize {
		return nil, errors.New("chunk overlap must be less than chunk size")
	}
	return embedder, nil
}

func WithChunkSize(size int) EmbedderOption {
	return func(e *Embedder) {
		e.chunkSize = size
	}
}

func WithChunkOverlap(overlap int) EmbedderOption {
	return func(e *Embedder) {
		e.chunkOverlap = overlap
	}
}

// ChunkCourse splits every lesson body into chunks. The first chunk of each
// lesson is prefixed with "Lesson <n> content: " so the lesson number is
// visible to the embedding model.
func (e *Embedder) ChunkCourse(doc CourseDocument) []ContentChunk {
	var out []ContentChunk
	for _, lesson := range doc.Texts {
		for i, text := range chunkText(lesson.Text, e.chunkSize, e.chunkOverlap) {
			if i == 0 && lesson.Number != nil {
				text = "Lesson " + strconv.Itoa(*lesson.Number) + " content: " + text
			}
			out = append(out, ContentChunk{
				CourseTitle:  doc.Course.Title,
				LessonNumber: lesson.Number,
				Index:        len(out),
				Text:         text,
			})
		}
	}
	return out
}

// EmbedCourse chunks and embeds a course. The returned vector is the course
// title's embedding, used for fuzzy course-name resolution.
func (e *Embedder) EmbedCourse(ctx context.Context, doc CourseDocument) ([]ContentChunk, []float32, error) {
	chunks := e.ChunkCourse(doc)
	texts := make([]string, 0, len(chunks)+1)
	texts = append(texts, doc.Course.Title)
	for _, chunk := range chunks {
		texts = append(texts, chunk.Text)
	}

	embedStart := time.Now()
	vectors, err := e.embedBatched(ctx, texts)
	embedDuration.Observe(time.Since(embedStart).Seconds())
	if err != nil {
		embedCallsTotal.WithLabelValues("error").Inc()
		return nil, nil, fmt.Errorf("embed course %q: %w", doc.Course.Title, err)
	}
	embedCallsTotal.WithLabelValues("success").Inc()
	if len(vectors) != len(texts) {
		return nil, nil, fmt.Errorf("embedding mismatch: %d texts, %d vectors", len(texts), len(vectors))
	}

	for i := range chunks {
		chunks[i].Embedding = vectors[i+1]
	}
	return chunks, vectors[0], nil
}

func (e *Embedder) embedBatched(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) <= maxEmbedBatchSize {
		return e.client.Embed(ctx, texts)
	}
	var all [][]float32
	for i := 0; i < len(texts); i += maxEmbedBatchSize {
		end := min(i+maxEmbedBatchSize, len(texts))
		batch, err := e.client.Embed(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d: %w", i/maxEmbedBatchSize, err)
		}
		all = append(all, batch...)
	}
	return all, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vector, err := llm.EmbedOne(ctx, e.client, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vector, nil
}
