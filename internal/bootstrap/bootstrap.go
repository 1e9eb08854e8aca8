package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/kirillkom/document-intelligence/internal/config"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
	"github.com/kirillkom/document-intelligence/internal/core/usecase"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/events/nats"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/extractor"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/extractor/tika"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/fuzzy"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/llm/anthropic"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/resilience"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/storage/cache"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/storage/minio"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/storage/s3"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/zeroshot/huggingface"
	"github.com/kirillkom/document-intelligence/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *zap.Logger

	Metrics *metrics.HTTPServerMetrics

	IngestUC  ports.DocumentIngestor
	QueryUC   ports.DocumentQueryService
	CatalogUC ports.DocumentCatalog

	closers []func()
}

type options struct {
	withEvents bool
}

type Option func(*options)

// WithoutEvents skips the NATS connection. Uploads are then not announced.
func WithoutEvents() Option {
	return func(o *options) {
		o.withEvents = false
	}
}

// New wires every component of the document pipeline from cfg.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	o := options{withEvents: true}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewHTTPServerMetrics("api"),
	}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.onClose(func() { _ = db.Close() })
	records, err := newRecordRepository(ctx, db)
	if err != nil {
		return nil, err
	}

	storage, err := newObjectStorage(ctx, cfg, logger, app)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	model := newModelClient(cfg, logger)
	zeroShot := huggingface.New(cfg.ZeroShotURL, huggingface.Options{
		Token:              cfg.ZeroShotToken,
		MaxChars:           cfg.ZeroShotMaxChars,
		Timeout:            cfg.ZeroShotTimeout,
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig(), logger.Named("zeroshot")),
	})

	observer := metrics.NewPipelineMetrics("api", app.Metrics.Registry())

	classifier := usecase.NewDocumentClassifier(zeroShot, model, logger,
		usecase.WithConfidenceThreshold(cfg.ClassifierThreshold),
		usecase.WithClassifierObserver(observer),
	)
	fieldExtractor := usecase.NewFieldExtractor(model, observer, logger)

	ingestOpts := []usecase.IngestOption{
		usecase.WithIngestObserver(observer),
		usecase.WithMaxUploadBytes(cfg.MaxUploadBytes),
	}
	if o.withEvents {
		bus, err := NewEventBus(cfg, logger)
		if err != nil {
			return nil, err
		}
		app.onClose(bus.Close)
		ingestOpts = append(ingestOpts, usecase.WithEventPublisher(bus))
	}

	app.IngestUC = usecase.NewIngestDocumentUseCase(
		newTextExtractor(cfg),
		classifier,
		fieldExtractor,
		storage,
		records,
		logger,
		ingestOpts...,
	)

	retriever := usecase.NewRetrievalEngine(storage, fuzzy.NewScorer(), cfg.RetrievalMinScore, observer, logger)
	generator := usecase.NewAnswerGenerator(model, observer, logger)
	app.QueryUC = usecase.NewQueryUseCase(retriever, generator, logger)
	app.CatalogUC = usecase.NewCatalogUseCase(storage, records, xlsx.NewExporter(), logger)

	ok = true
	return app, nil
}

// NewEventBus connects to NATS with the subject and queue group from cfg.
func NewEventBus(cfg config.Config, logger *zap.Logger) (*nats.Bus, error) {
	bus, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		QueueGroup:         cfg.NATSQueueGroup,
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig(), logger.Named("nats")),
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init event bus: %w", err)
	}
	return bus, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func newRecordRepository(ctx context.Context, db *sql.DB) (*postgres.RecordRepository, error) {
	repo := postgres.NewRecordRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, nil
}

func newObjectStorage(ctx context.Context, cfg config.Config, logger *zap.Logger, app *App) (ports.ObjectStorage, error) {
	var (
		storage ports.ObjectStorage
		err     error
	)
	switch cfg.StorageDriver {
	case "s3":
		storage, err = s3.New(ctx, cfg.S3Bucket, s3.Options{
			Region:             cfg.S3Region,
			Endpoint:           cfg.S3Endpoint,
			AccessKeyID:        cfg.S3AccessKeyID,
			SecretAccessKey:    cfg.S3SecretAccessKey,
			UsePathStyle:       cfg.S3UsePathStyle,
			PublicBaseURL:      cfg.S3PublicBaseURL,
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig(), logger.Named("s3")),
		})
	case "minio":
		storage, err = minio.New(ctx, cfg.MinioEndpoint, cfg.MinioBucket, minio.Options{
			AccessKeyID:        cfg.MinioAccessKey,
			SecretAccessKey:    cfg.MinioSecretKey,
			UseSSL:             cfg.MinioUseSSL,
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig(), logger.Named("minio")),
			Logger:             logger,
		})
	default:
		storage, err = localfs.New(cfg.StoragePath)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RedisAddr == "" {
		return storage, nil
	}
	backend, closeFn, err := cache.NewRedisBackend(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	app.onClose(func() { _ = closeFn() })
	logger.Info("object_cache_enabled", zap.String("redis_addr", cfg.RedisAddr), zap.Duration("ttl", cfg.RedisTTL))
	return cache.New(storage, backend, cfg.RedisTTL, []string{usecase.TextsFolder + "/"}, logger), nil
}

func newModelClient(cfg config.Config, logger *zap.Logger) ports.ModelClient {
	executor := resilience.NewExecutor(resilience.SingleAttemptConfig(), logger.Named("llm"))
	if cfg.LLMProvider == "ollama" {
		return ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, ollama.Options{
			Timeout:            cfg.LLMTimeout,
			ResilienceExecutor: executor,
		})
	}
	return anthropic.New(cfg.AnthropicAPIKey, cfg.AnthropicModel, anthropic.Options{
		BaseURL:            cfg.AnthropicBaseURL,
		Timeout:            cfg.LLMTimeout,
		ResilienceExecutor: executor,
	})
}

func newTextExtractor(cfg config.Config) ports.TextExtractor {
	text := plaintext.NewExtractor()
	if cfg.ExtractorDriver == "tika" {
		return extractor.NewDispatcher(tika.New(cfg.TikaURL, 0), text)
	}
	return extractor.NewDispatcher(pdftext.NewExtractor(), text)
}
