package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

const (
	serverName    = "document-intelligence"
	serverVersion = "1.0.0"
)

// Handler exposes the read side of the pipeline as MCP tools.
type Handler struct {
	query   ports.DocumentQueryService
	catalog ports.DocumentCatalog
	logger  *zap.Logger
}

func NewHandler(query ports.DocumentQueryService, catalog ports.DocumentCatalog, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{query: query, catalog: catalog, logger: logger}
}

// NewServer registers every tool of h on a fresh MCP server.
func NewServer(h *Handler) *server.MCPServer {
	s := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("search_answer",
		mcp.WithDescription("Answers a question from the documents uploaded by one user."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Question to answer.")),
		mcp.WithString("email", mcp.Required(), mcp.Description("Email of the document owner.")),
	), h.HandleSearchAnswer)

	s.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("Lists the documents uploaded by one user."),
		mcp.WithString("email", mcp.Required(), mcp.Description("Email of the document owner.")),
	), h.HandleListDocuments)

	s.AddTool(mcp.NewTool("list_records",
		mcp.WithDescription("Returns the invoice and purchase order fields extracted for one user."),
		mcp.WithString("email", mcp.Required(), mcp.Description("Email of the document owner.")),
	), h.HandleListRecords)

	return s
}

func (h *Handler) HandleSearchAnswer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	email, err := req.RequireString("email")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	answer, err := h.query.Answer(ctx, query, email)
	if err != nil {
		return h.toolError("search_answer", err, "No relevant documents found for this query."), nil
	}

	var b strings.Builder
	b.WriteString(answer.Text)
	if len(answer.SourceDocuments) > 0 {
		b.WriteString("\n\nSources: ")
		b.WriteString(strings.Join(answer.SourceDocuments, ", "))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (h *Handler) HandleListDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	email, err := req.RequireString("email")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	docs, err := h.catalog.ListDocuments(ctx, email)
	if err != nil {
		return h.toolError("list_documents", err, "No documents found for this user."), nil
	}
	return jsonResult(map[string]any{"documents": docs})
}

func (h *Handler) HandleListRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	email, err := req.RequireString("email")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	set, err := h.catalog.ListRecords(ctx, email)
	if err != nil {
		return h.toolError("list_records", err, "No documents found for this email."), nil
	}
	return jsonResult(set)
}

// toolError reports failures inside the tool result so the calling model
// can read them. Only caller errors keep their detail.
func (h *Handler) toolError(tool string, err error, notFoundMessage string) *mcp.CallToolResult {
	switch {
	case domain.IsKind(err, domain.ErrNotFound):
		return mcp.NewToolResultError(notFoundMessage)
	case domain.IsKind(err, domain.ErrInvalidInput):
		return mcp.NewToolResultError(err.Error())
	case domain.IsKind(err, domain.ErrGeneration):
		return mcp.NewToolResultError(domain.FallbackAnswer)
	}
	h.logger.Error("mcp_tool_failed", zap.String("tool", tool), zap.Error(err))
	return mcp.NewToolResultError(fmt.Sprintf("%s failed, retry later", tool))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
