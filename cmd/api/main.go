package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/trade-compliance-engine/internal/adapters/http"
	"github.com/kirillkom/trade-compliance-engine/internal/bootstrap"
	"github.com/kirillkom/trade-compliance-engine/internal/config"
	"github.com/kirillkom/trade-compliance-engine/internal/observability/logging"
	"github.com/kirillkom/trade-compliance-engine/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Ingestor:     app.IngestUC,
		Submissions:  app.IngestUC,
		Analyzer:     app.DocumentUC,
		Documents:    app.DocumentUC,
		Cases:        app.CaseUC,
		Associations: app.AssociationUC,
	}, httpadapter.WithMetrics(metrics.NewHTTPServerMetrics("api")),
		httpadapter.WithLogger(logger),
	)
	handler, err := router.Handler()
	if err != nil {
		logger.Error("router_init_failed", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
