package main

import (
	"context"
	"net/http"

	"github.com/christophercallejongarcia/Test-Deeplearning/api_tutor/internal/chat"
	tutorconfig "github.com/christophercallejongarcia/Test-Deeplearning/api_tutor/internal/config"
	"github.com/christophercallejongarcia/Test-Deeplearning/api_tutor/internal/events"
	"github.com/christophercallejongarcia/Test-Deeplearning/api_tutor/internal/knowledge"
	"github.com/christophercallejongarcia/Test-Deeplearning/api_tutor/internal/mcpspoke"
	"github.com/christophercallejongarcia/Test-Deeplearning/api_tutor/internal/session"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/config"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/database"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/kafka"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/llm"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/logging"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/monitoring"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/redis"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/server"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/version"

	"github.com/gin-gonic/gin"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("tutor")

	// Load environment variables
	config.LoadEnv(logger)

	logger.WithField("version", version.Version).Info("Starting Tutor (Course Materials Assistant API)")

	cfg := tutorconfig.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	ctx := context.Background()

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	dbConfig.URL = cfg.DatabaseURL
	db := database.MustConnect(ctx, dbConfig, logger)
	defer func() { _ = db.Close() }()

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("tutor", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("tutor", version.Version, version.GitCommit)

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL":    cfg.DatabaseURL,
		"LLM_MODEL":       cfg.LLM.Model,
		"EMBEDDING_MODEL": cfg.Embedding.Model,
	}))

	llmProvider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize LLM provider")
	}
	embeddingClient, err := llm.NewEmbeddingClient(cfg.Embedding)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize embedding client")
	}

	dims := cfg.EmbeddingDims
	if dims <= 0 {
		dims, err = llm.ProbeEmbeddingDimensions(ctx, embeddingClient)
		if err != nil {
			logger.WithError(err).Fatal("Failed to probe embedding dimensions; set EMBEDDING_DIMENSIONS")
		}
	}
	if err := knowledge.EnsureSchema(ctx, db, dims); err != nil {
		logger.WithError(err).Fatal("Failed to ensure course index schema")
	}
	migrated, err := knowledge.EnsureEmbeddingDimensions(ctx, db, dims)
	if err != nil {
		logger.WithError(err).Fatal("Failed to migrate embedding dimensions")
	}
	if migrated {
		logger.WithField("dimensions", dims).Warn("Embedding dimensions changed; course index was cleared")
	}

	embedder, err := knowledge.NewEmbedder(embeddingClient,
		knowledge.WithChunkSize(cfg.ChunkSize),
		knowledge.WithChunkOverlap(cfg.ChunkOverlap),
	)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize knowledge embedder")
	}
	store := knowledge.NewStore(db)
	index := knowledge.NewIndex(knowledge.IndexConfig{
		Store:      store,
		Embedder:   embedder,
		Logger:     logger,
		ResolveTTL: cfg.ResolveCacheTTL,
	})
	ingestor, err := knowledge.NewIngestor(knowledge.IngestorConfig{
		Writer:   store,
		Embedder: embedder,
		Logger:   logger,
		OnChange: index.InvalidateResolver,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize ingestor")
	}

	// Sessions live in Redis when configured, otherwise in process memory.
	var sessions session.Store
	redisClient, err := redis.Connect(ctx, cfg.Redis())
	switch {
	case err != nil:
		logger.WithError(err).Fatal("Failed to connect to Redis")
	case redisClient != nil:
		defer func() { _ = redisClient.Close() }()
		sessions = session.NewRedisStore(redisClient, cfg.MaxHistory, cfg.SessionTTL)
		healthChecker.AddCheck("redis", monitoring.RedisHealthCheck(redisClient))
		logger.Info("Using Redis session store")
	default:
		sessions = session.NewMemoryStore(cfg.MaxHistory)
		logger.Info("REDIS_URL not set - using in-memory session store")
	}

	var publisher chat.EventPublisher
	if cfg.EventsEnabled() {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:   cfg.KafkaBrokers,
			ClientID:  "tutor",
			ClusterID: cfg.KafkaClusterID,
			Logger:    logger,
		})
		if err != nil {
			logger.WithError(err).Warn("Failed to create Kafka producer - query events disabled")
		} else {
			defer func() { _ = producer.Close() }()
			eventPublisher, err := events.NewPublisher(producer, cfg.EventsTopic, logger)
			if err != nil {
				logger.WithError(err).Warn("Failed to create query event publisher - query events disabled")
			} else {
				publisher = eventPublisher
				healthChecker.AddCheck("kafka", monitoring.OptionalHealthCheck(monitoring.KafkaProducerHealthCheck(producer.Client())))
			}
		}
	} else {
		logger.Warn("KAFKA_BROKERS not set - query events disabled")
	}

	systemPrompt, err := chat.LoadSystemPrompt(cfg.SystemPromptFile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load system prompt")
	}

	registry := chat.NewRegistry()
	registry.Register(chat.NewCourseSearchTool(index, cfg.MaxResults))
	registry.Register(chat.NewCourseOutlineTool(index))

	orchestrator := chat.NewOrchestrator(chat.OrchestratorConfig{
		LLMProvider:  llmProvider,
		Registry:     registry,
		Logger:       logger,
		MaxRounds:    cfg.MaxRounds,
		SystemPrompt: systemPrompt,
		ProviderName: cfg.LLM.Provider,
		Model:        cfg.LLM.Model,
	})
	assistant, err := chat.NewAssistant(chat.AssistantConfig{
		Orchestrator: orchestrator,
		Registry:     registry,
		Sessions:     sessions,
		Publisher:    publisher,
		Logger:       logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize assistant")
	}

	if cfg.DocsDir != "" {
		courses, chunks, err := ingestor.AddCourseFolder(ctx, cfg.DocsDir, false)
		if err != nil {
			logger.WithError(err).WithField("dir", cfg.DocsDir).Warn("Startup ingest failed")
		} else {
			logger.WithFields(logging.Fields{
				"dir":     cfg.DocsDir,
				"courses": courses,
				"chunks":  chunks,
			}).Info("Startup ingest complete")
		}
	}

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "tutor", healthChecker, metricsCollector)
	handler := chat.NewHandler(assistant, index, sessions, logger)
	handler.MaxQueryRunes = cfg.MaxQueryRunes
	chat.RegisterRoutes(router, handler)

	if cfg.MCPEnabled {
		mcpServer := mcpspoke.NewServer(mcpspoke.Config{
			Registry:  registry,
			Assistant: assistant,
			Logger:    logger,
		})
		mcpHandler := mcpspoke.NewHTTPHandler(mcpServer)
		router.Any("/mcp/*path", gin.WrapH(http.Handler(mcpHandler)))
	}

	serverConfig := server.DefaultConfig("tutor", cfg.Port)
	logger.WithFields(logging.Fields{
		"port":        serverConfig.Port,
		"max_rounds":  orchestrator.MaxRounds(),
		"tools":       registry.Names(),
		"mcp_enabled": cfg.MCPEnabled,
	}).Info("Tutor ready")

	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
