package knowledge

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema creates the tutor schema, its tables and indexes. Vector
// columns are created with the given dimension count; existing tables are
// migrated by EnsureEmbeddingDimensions.
func EnsureSchema(ctx context.Context, db *sql.DB, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("invalid embedding dimensions: %d", dims)
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE SCHEMA IF NOT EXISTS tutor`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS tutor.courses (
			title TEXT PRIMARY KEY,
			link TEXT NOT NULL DEFAULT '',
			instructor TEXT NOT NULL DEFAULT '',
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, dims),
		`CREATE TABLE IF NOT EXISTS tutor.lessons (
			course_title TEXT NOT NULL REFERENCES tutor.courses(title) ON DELETE CASCADE,
			lesson_number INTEGER NOT NULL,
			title TEXT NOT NULL,
			link TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (course_title, lesson_number)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS tutor.chunks (
			id BIGSERIAL PRIMARY KEY,
			course_title TEXT NOT NULL REFERENCES tutor.courses(title) ON DELETE CASCADE,
			lesson_number INTEGER,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d)
		)`, dims),
		`CREATE INDEX IF NOT EXISTS chunks_course_lesson_idx ON tutor.chunks (course_title, lesson_number)`,
		`CREATE INDEX IF NOT EXISTS chunks_embedding_idx ON tutor.chunks USING hnsw (embedding vector_cosine_ops) WITH (m = 24, ef_construction = 256)`,
		`CREATE INDEX IF NOT EXISTS courses_embedding_idx ON tutor.courses USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// EnsureEmbeddingDimensions checks whether the chunk embedding column matches
// the target dimension count. When it differs, all course data is truncated,
// both vector columns are altered and their HNSW indexes rebuilt.
// Returns true when a migration was performed.
func EnsureEmbeddingDimensions(ctx context.Context, db *sql.DB, target int) (bool, error) {
	if target <= 0 {
		return false, fmt.Errorf("invalid embedding dimensions: %d", target)
	}

	// pgvector stores the dimension count in atttypmod for vector(N) columns.
	var current int
	err := db.QueryRowContext(ctx, `
		SELECT atttypmod
		FROM pg_attribute
		WHERE attrelid = 'tutor.chunks'::regclass
		  AND attname = 'embedding'
	`).Scan(&current)
	if err != nil {
		return false, fmt.Errorf("query current embedding dimensions: %w", err)
	}

	if current == target {
		return false, nil
	}

	// Embeddings from another model cannot be searched; re-ingest is required.
	stmts := []string{
		`DROP INDEX IF EXISTS tutor.chunks_embedding_idx`,
		`DROP INDEX IF EXISTS tutor.courses_embedding_idx`,
		`TRUNCATE tutor.chunks, tutor.lessons, tutor.courses`,
		fmt.Sprintf(`ALTER TABLE tutor.chunks ALTER COLUMN embedding TYPE vector(%d)`, target),
		fmt.Sprintf(`ALTER TABLE tutor.courses ALTER COLUMN embedding TYPE vector(%d)`, target),
		`CREATE INDEX chunks_embedding_idx ON tutor.chunks USING hnsw (embedding vector_cosine_ops) WITH (m = 24, ef_construction = 256)`,
		`CREATE INDEX courses_embedding_idx ON tutor.courses USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range stmts {
		if _, execErr := db.ExecContext(ctx, stmt); execErr != nil {
			return false, fmt.Errorf("migrate embedding dimensions (%d to %d): %w", current, target, execErr)
		}
	}

	return true, nil
}
