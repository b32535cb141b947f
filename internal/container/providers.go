package container

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/garyjia/fbr-submission/internal/application/dispatcher"
	"github.com/garyjia/fbr-submission/internal/application/port"
	"github.com/garyjia/fbr-submission/internal/application/service"
	"github.com/garyjia/fbr-submission/internal/application/submission"
	"github.com/garyjia/fbr-submission/internal/config"
	"github.com/garyjia/fbr-submission/internal/infrastructure/export"
	"github.com/garyjia/fbr-submission/internal/infrastructure/external/fbr"
	"github.com/garyjia/fbr-submission/internal/infrastructure/external/lark"
	"github.com/garyjia/fbr-submission/internal/infrastructure/metrics"
	"github.com/garyjia/fbr-submission/internal/infrastructure/persistence/repository"
	"github.com/garyjia/fbr-submission/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/fbr-submission/internal/infrastructure/storage"
	"github.com/garyjia/fbr-submission/internal/infrastructure/worker"
	"github.com/garyjia/fbr-submission/migrations"
	"github.com/garyjia/fbr-submission/pkg/database"
)

// DatabaseBundle groups the raw connection and the transaction manager built on it
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the database and applies the embedded migrations
func ProvideDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg.Path != database.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.NewMigrator(db, logger).RunMigrations(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// RepositoryBundle groups all repositories for convenient access
type RepositoryBundle struct {
	Invoice *repository.InvoiceRepository
	Seller  *repository.SellerRepository
	Run     *repository.RunRepository
}

// ProvideRepositories creates all repositories on one connection pool
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &RepositoryBundle{
		Invoice: repository.NewInvoiceRepository(sqlDB, logger),
		Seller:  repository.NewSellerRepository(sqlDB, logger),
		Run:     repository.NewRunRepository(sqlDB, logger),
	}, nil
}

// ProvideMetrics registers the submission collectors and the process collectors on a fresh registry
func ProvideMetrics() (*prometheus.Registry, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.New(reg)
}

// ProvideGateway creates the FBR HTTP client wrapped with latency metrics
func ProvideGateway(cfg *config.FBRConfig, m *metrics.Metrics, logger *zap.Logger) (port.ComplianceGateway, error) {
	client, err := fbr.NewClient(fbr.Config{
		BaseURL:   cfg.BaseURL,
		Token:     cfg.Token,
		Sandbox:   cfg.Sandbox,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
	}, logger)
	if err != nil {
		return nil, err
	}
	return m.InstrumentGateway(client), nil
}

// ProvideNotifier creates the Lark run notifier, or nil when Lark is not configured
func ProvideNotifier(cfg *config.LarkConfig, logger *zap.Logger) port.RunNotifier {
	larkCfg := lark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		ChatID:    cfg.ChatID,
	}
	if !larkCfg.Enabled() {
		logger.Info("Lark notifications disabled")
		return nil
	}
	return lark.NewMessenger(lark.NewSDKClient(larkCfg, logger), larkCfg.ChatID, logger)
}

// ProvideStorage creates the file storage and the results exporter on it
func ProvideStorage(cfg *config.ExportConfig, logger *zap.Logger) (port.FileStorage, *export.Exporter) {
	fs := storage.NewLocalFileStorage(cfg.Dir, logger)
	return fs, export.NewExporter(fs, logger)
}

// ProvideDispatcher creates the event dispatcher
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(dispatcher.WithLogger(logger.Sugar()))
}

// SubmissionDeps holds what the submission service needs
type SubmissionDeps struct {
	Repos      *RepositoryBundle
	Gateway    port.ComplianceGateway
	Dispatcher dispatcher.Dispatcher
	Config     *config.SubmissionConfig
	Logger     *zap.Logger
}

// ProvideWorkers registers the background workers that keep the service tidy
func ProvideWorkers(svc service.SubmissionService, cfg *config.SubmissionConfig, logger *zap.Logger) *worker.Manager {
	m := worker.NewManager(logger)
	m.Register(worker.NewRunSweeper(svc, cfg.SweepInterval, logger))
	return m
}

// ProvideSubmissionService creates the run registry
func ProvideSubmissionService(deps *SubmissionDeps) (service.SubmissionService, error) {
	if deps.Repos == nil || deps.Gateway == nil {
		return nil, fmt.Errorf("repositories and gateway are required")
	}

	return service.NewSubmissionService(
		submission.Dependencies{
			Invoices: deps.Repos.Invoice,
			Sellers:  deps.Repos.Seller,
			Gateway:  deps.Gateway,
			Builder:  submission.NewPayloadBuilder(),
		},
		deps.Repos.Run,
		service.WithDispatcher(deps.Dispatcher),
		service.WithCacheExpiry(deps.Config.CacheExpiry),
		service.WithAbandonAfter(deps.Config.AbandonAfter),
		service.WithLogger(deps.Logger),
	), nil
}
