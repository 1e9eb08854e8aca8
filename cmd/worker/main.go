package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kirillkom/document-intelligence/internal/bootstrap"
	"github.com/kirillkom/document-intelligence/internal/config"
	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/observability/logging"
	"github.com/kirillkom/document-intelligence/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := logging.NewLogger(serviceName, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus, err := bootstrap.NewEventBus(cfg, logger)
	if err != nil {
		logger.Fatal("bootstrap_failed", zap.Error(err))
	}
	defer bus.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed",
		zap.String("subject", cfg.NATSSubject),
		zap.String("queue_group", cfg.NATSQueueGroup),
	)
	err = bus.SubscribeDocumentProcessed(ctx, func(_ context.Context, event domain.DocumentProcessedEvent) error {
		started := time.Now()
		workerMetrics.StartEvent()
		workerMetrics.ObserveEventLag(serviceName, started.Sub(event.OccurredAt))

		logger.Info("document_processed",
			zap.String("event_id", event.EventID),
			zap.String("email", event.Email),
			zap.String("document_name", event.DocumentName),
			zap.String("document_type", string(event.DocumentType)),
			zap.Int("extracted_fields", event.ExtractedFields),
			zap.Bool("record_persisted", event.RecordPersisted),
		)
		if !event.RecordPersisted && event.ExtractedFields > 0 {
			logger.Warn("document_record_missing",
				zap.String("event_id", event.EventID),
				zap.String("document_name", event.DocumentName),
			)
		}

		workerMetrics.FinishEvent(serviceName, string(event.DocumentType), event.RecordPersisted, time.Since(started), nil)
		return nil
	})
	if err != nil {
		logger.Fatal("worker_subscribe_failed", zap.Error(err))
	}
}
