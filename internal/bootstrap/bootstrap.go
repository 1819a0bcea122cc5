package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/trade-compliance-engine/internal/config"
	"github.com/kirillkom/trade-compliance-engine/internal/core/engine"
	"github.com/kirillkom/trade-compliance-engine/internal/core/ports"
	"github.com/kirillkom/trade-compliance-engine/internal/core/usecase"
	"github.com/kirillkom/trade-compliance-engine/internal/infrastructure/cache/redis"
	"github.com/kirillkom/trade-compliance-engine/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/trade-compliance-engine/internal/infrastructure/extractor"
	"github.com/kirillkom/trade-compliance-engine/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/trade-compliance-engine/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/trade-compliance-engine/internal/infrastructure/queue/nats"
	"github.com/kirillkom/trade-compliance-engine/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/trade-compliance-engine/internal/infrastructure/resilience"
	"github.com/kirillkom/trade-compliance-engine/internal/infrastructure/rules"
	"github.com/kirillkom/trade-compliance-engine/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config
	Logger *slog.Logger
	Engine *engine.Engine

	Queue         ports.MessageQueue
	IngestUC      *usecase.IngestSubmissionUseCase
	ProcessUC     *usecase.ProcessSubmissionUseCase
	DocumentUC    *usecase.DocumentUseCase
	CaseUC        *usecase.CaseUseCase
	AssociationUC *usecase.AssociationUseCase

	executor *resilience.Executor
	closers  []func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	eng, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("rules_loaded", "version", eng.RulesVersion(), "path", cfg.RulesPath)

	app := &App{Config: cfg, Logger: logger, Engine: eng}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.closers = append(app.closers, func() { _ = db.Close() })
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		app.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	app.executor = resilience.NewExecutor(
		resilience.ForExternalCalls(cfg.RetryMaxAttempts, cfg.BreakerEnabled),
		logger,
	)
	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: app.executor,
		Logger:             logger,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	app.closers = append(app.closers, queue.Close)
	app.Queue = queue

	app.wireUseCases(db, storage, queue)
	return app, nil
}

func (a *App) wireUseCases(db *sql.DB, storage ports.ObjectStorage, queue ports.MessageQueue) {
	submissions := postgres.NewSubmissionRepository(db)
	records := postgres.NewRecordRepository(db)
	cases := postgres.NewCaseRepository(db)

	textExtractor := extractor.NewDispatcher(
		plaintext.NewExtractor(storage),
		pdftext.NewExtractor(storage),
	)
	exporter := xlsx.NewExporter(a.Logger)
	knownIDs := a.Config.KnownInternalIDs

	a.IngestUC = usecase.NewIngestSubmissionUseCase(submissions, storage, queue)
	a.ProcessUC = usecase.NewProcessSubmissionUseCase(submissions, records, textExtractor, a.Engine, knownIDs)
	a.DocumentUC = usecase.NewDocumentUseCase(records, a.Engine, knownIDs)
	a.CaseUC = usecase.NewCaseUseCase(records, cases, exporter, a.Engine)
	a.AssociationUC = usecase.NewAssociationUseCase(records, cases, a.Engine)
}

// DeliveryGuard connects to Redis for the worker's redelivery claims.
func (a *App) DeliveryGuard(ctx context.Context) (ports.DeliveryGuard, error) {
	client, err := redis.NewClient(ctx, a.Config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("init delivery guard: %w", err)
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	ttl := time.Duration(a.Config.DedupTTLSeconds) * time.Second
	return redis.NewGuard(client, ttl, a.executor), nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// newEngine loads the rule tables and applies the INTERNAL_MARKER override.
func newEngine(cfg config.Config) (*engine.Engine, error) {
	rs, err := rules.Load(cfg.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	if marker := strings.TrimSpace(cfg.InternalMarker); marker != "" {
		rs.InternalMarker = marker
	}
	eng, err := engine.New(rs)
	if err != nil {
		return nil, fmt.Errorf("init engine: %w", err)
	}
	return eng, nil
}
