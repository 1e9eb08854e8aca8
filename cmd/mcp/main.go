package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	mcpadapter "github.com/kirillkom/document-intelligence/internal/adapters/mcp"
	"github.com/kirillkom/document-intelligence/internal/bootstrap"
	"github.com/kirillkom/document-intelligence/internal/config"
	"github.com/kirillkom/document-intelligence/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	// stdout carries the MCP protocol.
	logger, err := logging.NewLoggerTo("mcp", cfg.LogLevel, "stderr")
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.WithoutEvents())
	if err != nil {
		logger.Fatal("bootstrap_failed", zap.Error(err))
	}
	defer app.Close()

	s := mcpadapter.NewServer(mcpadapter.NewHandler(app.QueryUC, app.CatalogUC, logger))
	logger.Info("mcp_serving_stdio")
	if err := server.ServeStdio(s); err != nil {
		logger.Error("mcp_server_failed", zap.Error(err))
	}
}
