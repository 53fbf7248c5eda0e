package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
	"github.com/kirillkom/docflow-ai/internal/core/ports"
)

const serverVersion = "1.0.0"

// Server exposes the analysis pipeline as MCP tools.
type Server struct {
	analyzer  ports.DocumentAnalyzer
	providers ports.ProviderAdmin
}

func NewServer(analyzer ports.DocumentAnalyzer, providers ports.ProviderAdmin) *Server {
	return &Server{analyzer: analyzer, providers: providers}
}

func (s *Server) MCPServer(name string) *server.MCPServer {
	srv := server.NewMCPServer(name, serverVersion, server.WithToolCapabilities(false))

	documentArgs := []mcp.ToolOption{
		mcp.WithString("file_url", mcp.Description("http(s) URL of the document to fetch")),
		mcp.WithString("text", mcp.Description("Inline document text, used when file_url is empty")),
		mcp.WithNumber("file_size", mcp.Description("Declared size of the file in bytes")),
		mcp.WithString("mime_type", mcp.Description("Declared MIME type of the file")),
		mcp.WithString("provider", mcp.Description("LLM provider override: mock, gemini, groq or ollama")),
	}

	srv.AddTool(mcp.NewTool("analyze_document",
		append([]mcp.ToolOption{
			mcp.WithDescription("Classify a document and extract its key fields as JSON."),
		}, documentArgs...)...,
	), s.analyzeDocument)

	srv.AddTool(mcp.NewTool("review_document",
		append([]mcp.ToolOption{
			mcp.WithDescription("Review a document for risks and weaknesses."),
			mcp.WithString("topic", mcp.Description("Optional focus of the review")),
		}, documentArgs...)...,
	), s.reviewDocument)

	srv.AddTool(mcp.NewTool("list_providers",
		mcp.WithDescription("List LLM providers with the active one and their availability."),
	), s.listProviders)

	return srv
}

func (s *Server) analyzeDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.analyzer.Analyze(ctx, uuid.NewString(), analysisRequest(request))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(result)
}

func (s *Server) reviewDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := analysisRequest(request)
	req.Topic = request.GetString("topic", "")
	result, err := s.analyzer.Review(ctx, uuid.NewString(), req)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(result)
}

func (s *Server) listProviders(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := s.providers.Config()
	return jsonResult(map[string]any{
		"current_provider": cfg.CurrentProvider,
		"providers":        s.providers.Status(ctx),
	})
}

func analysisRequest(request mcp.CallToolRequest) domain.AnalysisRequest {
	return domain.AnalysisRequest{
		URL:      request.GetString("file_url", ""),
		Text:     request.GetString("text", ""),
		FileSize: int64(request.GetFloat("file_size", 0)),
		MimeType: request.GetString("mime_type", ""),
		Provider: request.GetString("provider", ""),
	}
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", domain.ErrorCode(err), err))
}
