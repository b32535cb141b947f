package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/garyjia/fbr-submission/internal/application/dispatcher"
	"github.com/garyjia/fbr-submission/internal/application/port"
	"github.com/garyjia/fbr-submission/internal/application/service"
	"github.com/garyjia/fbr-submission/internal/config"
	"github.com/garyjia/fbr-submission/internal/infrastructure/export"
	"github.com/garyjia/fbr-submission/internal/infrastructure/metrics"
	"github.com/garyjia/fbr-submission/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/fbr-submission/internal/infrastructure/worker"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure - Data
	sqlDB        *sql.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - Observability
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	// Infrastructure - External
	gateway  port.ComplianceGateway
	notifier port.RunNotifier

	// Infrastructure - Storage
	fileStorage port.FileStorage
	exporter    *export.Exporter

	// Application
	dispatcher dispatcher.Dispatcher
	submission service.SubmissionService
	workers    *worker.Manager

	// Overrides applied instead of the configured clients
	gatewayOverride  port.ComplianceGateway
	notifierOverride port.RunNotifier

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Option configures the container
type Option func(*Container)

// WithGateway replaces the FBR HTTP client, e.g. with a stub in tests
func WithGateway(gw port.ComplianceGateway) Option {
	return func(c *Container) {
		c.gatewayOverride = gw
	}
}

// WithNotifier replaces the Lark notifier
func WithNotifier(n port.RunNotifier) Option {
	return func(c *Container) {
		c.notifierOverride = n
	}
}

// NewContainer creates a new container from configuration.
// It does not initialize components; call Start to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	c := &Container{
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start initializes all components:
// 1. Database and repositories
// 2. Metrics
// 3. External clients (FBR gateway, Lark)
// 4. Storage and exporter
// 5. Event dispatcher and handlers
// 6. Submission service
// 7. Background workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	c.registry, c.metrics = ProvideMetrics()

	if err := c.initExternalClients(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.logger.Info("External clients initialized")

	c.fileStorage, c.exporter = ProvideStorage(&c.config.Export, c.logger)

	c.dispatcher = ProvideDispatcher(c.logger)
	RegisterHandlers(c.dispatcher, &HandlerDeps{
		Invoices: c.repositories.Invoice,
		Runs:     c.repositories.Run,
		Metrics:  c.metrics,
		Notifier: c.notifier,
		Logger:   c.logger,
	})

	svc, err := ProvideSubmissionService(&SubmissionDeps{
		Repos:      c.repositories,
		Gateway:    c.gateway,
		Dispatcher: c.dispatcher,
		Config:     &c.config.Submission,
		Logger:     c.logger,
	})
	if err != nil {
		c.dispatcher.Close()
		c.closeDatabase()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.submission = svc

	c.workers = ProvideWorkers(svc, &c.config.Submission, c.logger)
	if err := c.workers.StartAll(ctx); err != nil {
		c.dispatcher.Close()
		c.closeDatabase()
		return fmt.Errorf("failed to start workers: %w", err)
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close shuts down components in reverse order.
// The dispatcher drains async handlers before the database goes away.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	var errs []error

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if err := c.closeDatabase(); err != nil {
		c.logger.Error("Failed to close database", zap.Error(err))
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready reports whether Start completed
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health reports the state of each component
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.sqlDB == nil:
		set("database", false, "not initialized")
	default:
		if err := c.sqlDB.Ping(); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("database", true, "")
		}
	}

	set("gateway", c.gateway != nil, initMessage(c.gateway != nil))
	set("dispatcher", c.dispatcher != nil, initMessage(c.dispatcher != nil))
	set("workers", c.workers != nil && c.workers.Running(), initMessage(c.workers != nil && c.workers.Running()))

	if c.notifier != nil {
		status.Components["notifier"] = ComponentHealth{Healthy: true}
	} else {
		status.Components["notifier"] = ComponentHealth{Healthy: true, Message: "disabled"}
	}

	return status
}

func initMessage(ok bool) string {
	if ok {
		return ""
	}
	return "not initialized"
}

func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.sqlDB = bundle.SqlDB
	c.db = bundle.TransactionMgr

	repos, err := ProvideRepositories(c.sqlDB, c.logger)
	if err != nil {
		c.closeDatabase()
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initExternalClients() error {
	if c.gatewayOverride != nil {
		c.gateway = c.metrics.InstrumentGateway(c.gatewayOverride)
	} else {
		gw, err := ProvideGateway(&c.config.FBR, c.metrics, c.logger)
		if err != nil {
			return err
		}
		c.gateway = gw
	}

	if c.notifierOverride != nil {
		c.notifier = c.notifierOverride
	} else {
		c.notifier = ProvideNotifier(&c.config.Lark, c.logger)
	}
	return nil
}

func (c *Container) closeDatabase() error {
	if c.sqlDB == nil {
		return nil
	}
	err := c.sqlDB.Close()
	c.sqlDB = nil
	return err
}

// DB returns the transaction manager
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns the repository bundle
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// SubmissionService returns the run registry
func (c *Container) SubmissionService() service.SubmissionService {
	return c.submission
}

// Exporter returns the results workbook exporter
func (c *Container) Exporter() *export.Exporter {
	return c.exporter
}

// Registry returns the prometheus registry served on /metrics
func (c *Container) Registry() *prometheus.Registry {
	return c.registry
}

// Dispatcher returns the event dispatcher
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}
