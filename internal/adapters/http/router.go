package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kirillkom/document-intelligence/internal/config"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
	"github.com/kirillkom/document-intelligence/internal/observability/metrics"
)

type Router struct {
	cfg     config.Config
	ingest  ports.DocumentIngestor
	query   ports.DocumentQueryService
	catalog ports.DocumentCatalog

	logger      *zap.Logger
	metrics     *metrics.HTTPServerMetrics
	openAPIJSON []byte
}

type RouterOption func(*Router)

func WithLogger(logger *zap.Logger) RouterOption {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) {
		rt.metrics = m
	}
}

// WithOpenAPIDocument serves doc, already rendered as JSON, at /openapi.json.
func WithOpenAPIDocument(doc []byte) RouterOption {
	return func(rt *Router) {
		rt.openAPIJSON = doc
	}
}

func NewRouter(
	cfg config.Config,
	ingest ports.DocumentIngestor,
	query ports.DocumentQueryService,
	catalog ports.DocumentCatalog,
	opts ...RouterOption,
) *Router {
	rt := &Router{
		cfg:     cfg,
		ingest:  ingest,
		query:   query,
		catalog: catalog,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.MaxMultipartMemory = 8 << 20
	engine.HandleMethodNotAllowed = true

	engine.Use(requestIDMiddleware(), recoveryMiddleware(rt.logger), accessLogMiddleware(rt.logger))
	if rt.metrics != nil {
		engine.Use(rt.metrics.Middleware())
	}

	engine.NoRoute(func(c *gin.Context) {
		writeErrorMessage(c, http.StatusNotFound, "route not found")
	})
	engine.NoMethod(func(c *gin.Context) {
		writeErrorMessage(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	engine.GET("/", rt.root)
	engine.GET("/healthz", rt.healthz)
	if rt.metrics != nil {
		engine.GET("/metrics", gin.WrapH(rt.metrics.Handler()))
	}
	if len(rt.openAPIJSON) > 0 {
		engine.GET("/openapi.json", rt.openAPI)
	}

	api := engine.Group("", rateLimitMiddleware(rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.rejected("rate_limit")),
		backpressureMiddleware(rt.cfg.APIMaxInFlight, rt.cfg.APIQueueTimeout, rt.rejected("backpressure")))
	{
		v1 := api.Group("/v1")
		v1.POST("/documents", rt.uploadDocument)
		v1.GET("/documents", rt.listDocuments)
		v1.GET("/records", rt.listRecords)
		v1.GET("/records/export", rt.exportRecords)
		v1.POST("/search/answer", rt.searchAnswer)

		// Routes of the first release, kept for existing clients.
		api.POST("/upload_document/", rt.uploadDocument)
		api.GET("/documents", rt.listDocuments)
		api.GET("/get_key_details", rt.listRecords)
		api.POST("/search_answer/", rt.searchAnswer)
	}

	return engine
}

func (rt *Router) rejected(reason string) func() {
	return func() {
		if rt.metrics != nil {
			rt.metrics.RecordRejection(reason)
		}
	}
}

func (rt *Router) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to the Document Intelligence API"})
}

func (rt *Router) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (rt *Router) openAPI(c *gin.Context) {
	c.Data(http.StatusOK, "application/json", rt.openAPIJSON)
}

func (rt *Router) logFailure(ctx context.Context, operation string, err error) {
	if mapErrorToHTTPStatus(err) < http.StatusInternalServerError {
		return
	}
	rt.logger.Error(operation+"_failed",
		zap.String("request_id", requestIDFromContext(ctx)),
		zap.Error(err),
	)
}

func emailParam(c *gin.Context) string {
	if email := strings.TrimSpace(c.Query("email")); email != "" {
		return email
	}
	return strings.TrimSpace(c.PostForm("email"))
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
