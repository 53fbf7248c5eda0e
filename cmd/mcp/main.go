package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/docflow-ai/internal/adapters/mcp"
	"github.com/kirillkom/docflow-ai/internal/bootstrap"
	"github.com/kirillkom/docflow-ai/internal/config"
	"github.com/kirillkom/docflow-ai/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "docflow-mcp", cfg.LogLevel))

	app, err := bootstrap.New(context.Background(), cfg, nil)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := mcpadapter.NewServer(app.Analyzer, app.Providers).MCPServer(cfg.AppName)
	if err := server.ServeStdio(srv); err != nil {
		slog.Error("mcp_server_failed", "error", err)
	}
}
