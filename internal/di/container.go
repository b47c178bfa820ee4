package di

import (
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"retrieval-engine/internal/adapter/feedstream"
	"retrieval-engine/internal/adapter/httpapi"
	"retrieval-engine/internal/adapter/repository"
	"retrieval-engine/internal/adapter/rerank"
	"retrieval-engine/internal/domain"
	"retrieval-engine/internal/index"
	"retrieval-engine/internal/infra/config"
	"retrieval-engine/internal/infra/httpclient"
	"retrieval-engine/internal/usecase"
	"retrieval-engine/internal/worker"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	// Repositories
	DocRepo         domain.DocumentRepository
	ChunkRepo       domain.ChunkRepository
	InteractionRepo domain.InteractionRepository
	RegistryRepo    domain.RegistryRepository

	// Index
	IndexManager *index.Manager

	// Usecases
	IngestUsecase   usecase.IngestUsecase
	QueryUsecase    usecase.StreamQueryUsecase
	FeedbackUsecase usecase.FeedbackUsecase
	AdminUsecase    usecase.AdminUsecase

	// Aggregation
	Aggregator *usecase.FeedbackAggregator

	// Workers
	DrainWorker    *worker.DrainWorker
	SnapshotWorker *worker.SnapshotWorker
	IndexWorker    *worker.IndexWorker

	// Handler
	Handler *httpapi.Handler

	// Stream driver, exposed for shutdown
	Stream *feedstream.RedisDriver
}

// NewApplicationComponents wires all dependencies from config, database
// pool, and the feedback stream driver.
func NewApplicationComponents(cfg *config.Config, pool *pgxpool.Pool, stream *feedstream.RedisDriver, log *slog.Logger) *ApplicationComponents {
	// Repositories
	docRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	interactionRepo := repository.NewInteractionRepository(pool)
	registryRepo := repository.NewRegistryRepository(pool)
	telemetryRepo := repository.NewTelemetryRepository(pool)
	txManager := repository.NewPostgresTransactionManager(pool)

	// Index manager
	indexManager := index.NewManager(pool, log)

	// Pipeline config from environment
	pipelineCfg := usecase.PipelineConfig{
		MaxResults:          cfg.MaxResults,
		AssemblyParallelism: cfg.AssemblyParallelism,
		Deadlines: usecase.PhaseDeadlines{
			Phase0: time.Duration(cfg.Phase0DeadlineMs) * time.Millisecond,
			Phase1: time.Duration(cfg.Phase1DeadlineMs) * time.Millisecond,
			Phase2: time.Duration(cfg.Phase2DeadlineMs) * time.Millisecond,
		},
		Rerank: usecase.RerankConfig{
			Enabled:       cfg.RerankEnabled,
			Timeout:       time.Duration(cfg.RerankTimeoutSecs) * time.Second,
			MaxCandidates: cfg.RerankMaxCandidates,
		},
		DenseRescore: usecase.DenseRescoreConfig{
			Enabled: cfg.DenseRescoreEnabled,
			Alpha:   cfg.DenseRescoreAlpha,
		},
		SnapshotSampleRate: cfg.SnapshotSampleRate,
	}

	// Engagement aggregation
	halfLife := time.Duration(cfg.EngagementHalfLifeHours) * time.Hour
	aggregator := usecase.NewFeedbackAggregator(interactionRepo, halfLife, log)

	// Feature assembly and registry resolution
	assembler := usecase.NewFeatureAssembler(chunkRepo, aggregator, cfg.AssemblyParallelism, log)
	resolver := usecase.NewRegistryResolver(registryRepo, log)
	telemetry := usecase.NewTelemetryRecorder(telemetryRepo, cfg.SnapshotSampleRate, log)

	// Rerank model client
	var reranker domain.Reranker
	if cfg.RerankEnabled {
		rerankHTTP := httpclient.NewPooledClient(time.Duration(cfg.RerankTimeoutSecs) * time.Second)
		client := rerank.NewClient(
			cfg.RerankURL,
			cfg.RerankModel,
			time.Duration(cfg.RerankTimeoutSecs)*time.Second,
			log,
			rerankHTTP,
		)
		reranker = client
		log.Info("reranker_enabled",
			slog.String("url", cfg.RerankURL),
			slog.String("model", cfg.RerankModel))
	}

	// Usecases
	ingestUsecase := usecase.NewIngestUsecase(docRepo, chunkRepo, txManager, domain.NewChecksumPolicy(), log)
	queryUsecase := usecase.NewStreamQueryUsecase(
		indexManager, assembler, resolver, reranker, chunkRepo, telemetry, pipelineCfg, log,
	)
	feedbackUsecase := usecase.NewFeedbackUsecase(stream, log)
	adminUsecase := usecase.NewAdminUsecase(registryRepo, resolver, log)

	// Workers
	drainWorker := worker.NewDrainWorker(stream, interactionRepo, cfg.DrainConsumer, cfg.DrainBatchSize, cfg.DrainRatePerSec, log)
	snapshotWorker := worker.NewSnapshotWorker(aggregator, time.Duration(cfg.SnapshotRefreshIntervalSecs)*time.Second, log)
	indexWorker := worker.NewIndexWorker(indexManager, time.Duration(cfg.IndexEnsureIntervalSecs)*time.Second, log)

	// Handler
	handler := httpapi.NewHandler(queryUsecase, ingestUsecase, feedbackUsecase, adminUsecase)

	return &ApplicationComponents{
		DocRepo:         docRepo,
		ChunkRepo:       chunkRepo,
		InteractionRepo: interactionRepo,
		RegistryRepo:    registryRepo,
		IndexManager:    indexManager,
		IngestUsecase:   ingestUsecase,
		QueryUsecase:    queryUsecase,
		FeedbackUsecase: feedbackUsecase,
		AdminUsecase:    adminUsecase,
		Aggregator:      aggregator,
		DrainWorker:     drainWorker,
		SnapshotWorker:  snapshotWorker,
		IndexWorker:     indexWorker,
		Handler:         handler,
		Stream:          stream,
	}
}
