package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"ai-plugin-engine/internal/config"
	"ai-plugin-engine/internal/controller"
	"ai-plugin-engine/internal/handler"
	"ai-plugin-engine/internal/pkg/logger"
	"ai-plugin-engine/internal/repository/cache"
	"ai-plugin-engine/internal/repository/memory"
	"ai-plugin-engine/internal/repository/unitofwork"
	"ai-plugin-engine/internal/service"
	"ai-plugin-engine/internal/websocket"
	"ai-plugin-engine/pkg/embedding"
	"ai-plugin-engine/pkg/events"
	"ai-plugin-engine/pkg/llm"
	"ai-plugin-engine/pkg/llm/factory"
	"ai-plugin-engine/pkg/lock"
	pktNats "ai-plugin-engine/pkg/nats"
	"ai-plugin-engine/pkg/rag/chunker"
	"ai-plugin-engine/pkg/rag/collab"
	"ai-plugin-engine/pkg/rag/decision"
	"ai-plugin-engine/pkg/rag/executor"
	"ai-plugin-engine/pkg/rag/retriever"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	PluginController        controller.IPluginController
	CollaborationController controller.ICollaborationController
	StreamHandler           *handler.CollaborationStreamHandler

	// Services, also used by the CLI
	QueryService         service.IQueryService
	CollaborationService service.ICollaborationService
	IngestionService     service.IIngestionService

	// Background Services (Exposed for main.go to run)
	ConsumerService      service.IConsumerService
	DocumentEventService service.IDocumentEventService
	WebSocketHub         *websocket.Hub

	Logger logger.ILogger

	closers []func()
}

// Close releases the connections opened by NewContainer.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func apiKey(cfg *config.Config, provider string) string {
	switch strings.ToLower(provider) {
	case "anthropic":
		return cfg.Ai.AnthropicAPIKey
	case "gemini":
		return cfg.Ai.GeminiAPIKey
	default:
		return cfg.Ai.OpenAIAPIKey
	}
}

func newRedis(ctx context.Context, url string, log logger.ILogger) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Warn("BOOTSTRAP", "Failed to parse Redis URL, using it as address", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("BOOTSTRAP", "Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
	}
	return rdb
}

func NewContainer(db *gorm.DB, cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	ctx := context.Background()
	c := &Container{Logger: sysLogger}

	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)

	// 2. Infrastructure
	rdb := newRedis(ctx, cfg.App.RedisURL, sysLogger)
	c.closers = append(c.closers, func() { _ = rdb.Close() })

	var eventPublisher events.Publisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
	if err != nil {
		sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS publisher, events disabled", map[string]interface{}{"error": err.Error()})
	} else {
		eventPublisher = natsPub
		c.closers = append(c.closers, natsPub.Close)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
	if err != nil {
		sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS subscriber, document events disabled", map[string]interface{}{"error": err.Error()})
	} else {
		c.closers = append(c.closers, natsSub.Close)
	}

	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NopLogger{})
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	policy := cfg.CallPolicy()

	// 3. Model providers
	embeddingProvider, err := embedding.NewProvider(ctx, embedding.ProviderConfig{
		Provider:   cfg.Ai.EmbeddingProvider,
		Model:      cfg.Ai.EmbeddingModel,
		BaseURL:    cfg.Ai.EmbeddingBaseURL,
		APIKey:     apiKey(cfg, cfg.Ai.EmbeddingProvider),
		Dimensions: cfg.Ai.EmbeddingDimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	embedder := embedding.NewEmbedder(embeddingProvider, cfg.Ai.EmbeddingDimensions,
		embedding.WithBatchSize(cfg.Ai.EmbeddingBatchSize),
		embedding.WithPolicy(policy),
		embedding.WithQueryCache(cache.NewEmbeddingCache(rdb, cfg.Engine.EmbeddingCacheTTL)),
		embedding.WithLogger(sysLogger),
	)
	sysLogger.Info("BOOTSTRAP", "Embedding provider ready", map[string]interface{}{
		"provider": cfg.Ai.EmbeddingProvider,
		"model":    cfg.Ai.EmbeddingModel,
	})

	llmProvider, err := factory.NewLLMProvider(factory.Config{
		Provider: cfg.Ai.LLMProvider,
		Model:    cfg.Ai.LLMModel,
		BaseURL:  cfg.Ai.LLMBaseURL,
		APIKey:   apiKey(cfg, cfg.Ai.LLMProvider),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM provider: %w", err)
	}
	sysLogger.Info("BOOTSTRAP", "LLM provider ready", map[string]interface{}{
		"provider": cfg.Ai.LLMProvider,
		"model":    cfg.Ai.LLMModel,
	})

	// 4. Engine
	eventService := service.NewEventService(eventPublisher, sysLogger)
	auditWriter := service.NewAuditWriter(uowFactory, eventService)
	chunkSearcher := uowFactory.NewUnitOfWork(ctx).ChunkRepository()

	settings := executor.Settings{
		Policy:            policy,
		Retrieval:         retriever.Options{TopK: cfg.Retrieval.TopK, Threshold: cfg.Retrieval.Threshold},
		Generation:        []llm.Option{llm.WithTemperature(cfg.Ai.Temperature), llm.WithMaxTokens(cfg.Ai.MaxTokens)},
		ReviewConcurrency: cfg.Engine.ReviewConcurrency,
		SegmentSize:       cfg.Engine.ReviewSegmentSize,
	}
	vectorRetriever := retriever.New(embedder, chunkSearcher, sysLogger)
	evaluator := decision.NewEvaluator(decision.ParseMatchMode(cfg.Engine.ConditionMatchMode))
	queryExecutor := executor.NewQueryExecutor(vectorRetriever, evaluator, llmProvider, auditWriter, settings, sysLogger)
	reviewExecutor := executor.NewReviewExecutor(vectorRetriever, evaluator, llmProvider, auditWriter, settings, sysLogger)

	profileService := service.NewProfileService(uowFactory, memory.NewProfileCache(cfg.Engine.ProfileCacheTTL), sysLogger)
	orchestrator := collab.New(
		service.NewExpertRunner(profileService, queryExecutor),
		service.NewSessionStore(uowFactory, eventService),
		cfg.ExpertPolicy(),
		sysLogger,
	)

	c.QueryService = service.NewQueryService(profileService, queryExecutor, reviewExecutor)
	c.CollaborationService = service.NewCollaborationService(uowFactory, profileService, orchestrator)

	// 5. Ingestion
	docChunker := chunker.New(chunker.Options{
		TargetSize: cfg.Engine.ChunkTargetSize,
		MinSize:    cfg.Engine.ChunkMinSize,
		MaxSize:    cfg.Engine.ChunkMaxSize,
	})
	c.IngestionService = service.NewIngestionService(uowFactory, docChunker, embedder, lock.New(rdb), cfg.Engine.IngestLockTTL, eventService, sysLogger)
	publisherService := service.NewPublisherService(cfg.App.IngestTopic, pubSub)
	c.ConsumerService = service.NewConsumerService(pubSub, cfg.App.IngestTopic, c.IngestionService, sysLogger)
	if natsSub != nil {
		c.DocumentEventService = service.NewDocumentEventService(natsSub, publisherService, c.IngestionService, sysLogger)
	}

	// 6. Transport
	wsLogger := logger.NewIsolatedLogger("logs/stream.log")
	c.WebSocketHub = websocket.NewHub(rdb, wsLogger)
	c.StreamHandler = handler.NewCollaborationStreamHandler(websocket.NewHandler(c.WebSocketHub, c.CollaborationService, wsLogger))
	c.PluginController = controller.NewPluginController(c.QueryService, profileService, publisherService, c.IngestionService)
	c.CollaborationController = controller.NewCollaborationController(c.CollaborationService)

	return c, nil
}
