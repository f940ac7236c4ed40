package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tutorconfig "github.com/christophercallejongarcia/Test-Deeplearning/api_tutor/internal/config"
	"github.com/christophercallejongarcia/Test-Deeplearning/api_tutor/internal/knowledge"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/config"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/database"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/llm"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/logging"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/version"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dir string
	var clearExisting bool

	cmd := &cobra.Command{
		Use:   "tutor-ingest",
		Short: "Load course documents into the tutor index",
		Long: `Load course documents (.txt and .md) from a directory into the tutor
course index. Courses whose title is already indexed are skipped.

Connection settings come from the same environment as the tutor service
(DATABASE_URL, EMBEDDING_*, CHUNK_SIZE, CHUNK_OVERLAP).`,
		Example: `  # Ingest new courses from ./docs
  tutor-ingest --dir ./docs

  # Rebuild the index from scratch
  tutor-ingest --dir ./docs --clear`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd, dir, clearExisting)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", config.GetEnv("DOCS_DIR", ""), "Directory of course documents (default $DOCS_DIR)")
	cmd.Flags().BoolVar(&clearExisting, "clear", false, "Remove all indexed courses before loading")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			info := version.GetInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "tutor-ingest %s (%s, built %s)\n", info.Version, info.GitCommit, info.BuildDate)
		},
	}
}

func runIngest(cmd *cobra.Command, dir string, clearExisting bool) error {
	if dir == "" {
		return fmt.Errorf("--dir is required when DOCS_DIR is not set")
	}

	logger := logging.NewLoggerWithService("tutor-ingest")
	config.LoadEnv(logger)
	cfg := tutorconfig.LoadConfig()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConfig := database.ConfigFromEnv()
	dbConfig.URL = cfg.DatabaseURL
	db, err := database.Connect(ctx, dbConfig, logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	embeddingClient, err := llm.NewEmbeddingClient(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("embedding client: %w", err)
	}
	if err := prepareSchema(ctx, db, embeddingClient, cfg.EmbeddingDims, logger); err != nil {
		return err
	}

	embedder, err := knowledge.NewEmbedder(embeddingClient,
		knowledge.WithChunkSize(cfg.ChunkSize),
		knowledge.WithChunkOverlap(cfg.ChunkOverlap),
	)
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	ingestor, err := knowledge.NewIngestor(knowledge.IngestorConfig{
		Writer:   knowledge.NewStore(db),
		Embedder: embedder,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	courses, chunks, err := ingestor.AddCourseFolder(ctx, dir, clearExisting)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %d courses with %d chunks from %s\n", courses, chunks, dir)
	return nil
}

func prepareSchema(ctx context.Context, db database.PostgresConn, client llm.EmbeddingClient, dims int, logger logging.Logger) error {
	if dims <= 0 {
		probed, err := llm.ProbeEmbeddingDimensions(ctx, client)
		if err != nil {
			return fmt.Errorf("probe embedding dimensions: %w", err)
		}
		dims = probed
	}
	if err := knowledge.EnsureSchema(ctx, db, dims); err != nil {
		return err
	}
	migrated, err := knowledge.EnsureEmbeddingDimensions(ctx, db, dims)
	if err != nil {
		return err
	}
	if migrated {
		logger.WithField("dimensions", dims).Warn("Embedding dimensions changed; course index was cleared")
	}
	return nil
}
