package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/trade-compliance-engine/internal/adapters/mcp"
	"github.com/kirillkom/trade-compliance-engine/internal/bootstrap"
	"github.com/kirillkom/trade-compliance-engine/internal/config"
	"github.com/kirillkom/trade-compliance-engine/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	// stdout carries the MCP protocol, so logs go to stderr.
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)
	slog.SetDefault(logger)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	tools := mcpadapter.NewTools(mcpadapter.Services{
		Analyzer:     app.DocumentUC,
		Cases:        app.CaseUC,
		Associations: app.AssociationUC,
	}, logger)

	logger.Info("mcp_serving_stdio")
	if err := server.ServeStdio(mcpadapter.NewServer(tools)); err != nil {
		logger.Error("mcp_server_failed", "error", err)
	}
}
