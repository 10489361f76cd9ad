package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/po-authorization/internal/application/dispatcher"
	"github.com/garyjia/po-authorization/internal/application/port"
	"github.com/garyjia/po-authorization/internal/application/service"
	"github.com/garyjia/po-authorization/internal/application/workflow"
	"github.com/garyjia/po-authorization/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/po-authorization/internal/infrastructure/worker"
	"github.com/garyjia/po-authorization/pkg/database"
)

// Container owns every component of the service and their lifecycle.
// Components start in dependency order and close in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	db           *database.DB
	txManager    *sqlite.DB
	repositories *RepositoryBundle
	external     *ExternalBundle
	dispatcher   dispatcher.Dispatcher
	services     *ServiceBundle
	workers      *worker.Manager

	mu     sync.Mutex
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Rule       port.RuleRepository
	Header     port.HeaderRepository
	Step       port.StepRepository
	History    port.HistoryRepository
	Assignment port.AssignmentRepository
	Catalog    port.CatalogRepository
}

// ServiceBundle groups all application services. ERPSync is nil when ERP sync is disabled.
type ServiceBundle struct {
	Directory    port.AuthorizerDirectory
	Rules        service.RuleService
	Generator    service.StepGenerator
	Aggregator   service.HeaderAggregator
	Submission   service.SubmissionService
	Query        service.QueryService
	Notification service.NotificationService
	ERPSync      service.ERPSyncService
	Engine       workflow.ApprovalEngine
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// Nothing is opened until Start.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{config: cfg, logger: logger}, nil
}

// Start initializes components in this order:
// database, repositories (plus the one-time category backfill), external
// adapters, dispatcher, services, event subscriptions, workers.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.logger.Info("Starting container initialization")

	if err := c.start(runCtx); err != nil {
		c.logger.Error("Container start failed, releasing resources", zap.Error(err))
		c.teardown()
		cancel()
		return err
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

func (c *Container) start(ctx context.Context) error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.db = dbBundle.DB
	c.txManager = dbBundle.TransactionMgr

	if c.repositories, err = ProvideRepositories(c.db, c.logger); err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}

	classified, err := c.repositories.Catalog.BackfillCategoryTypes(ctx, service.ClassifyCategoryName)
	if err != nil {
		return fmt.Errorf("failed to backfill category types: %w", err)
	}
	if classified > 0 {
		c.logger.Info("Category types backfilled", zap.Int("count", classified))
	}

	if c.external, err = ProvideExternal(c.config, c.logger); err != nil {
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}

	if c.dispatcher, err = ProvideDispatcher(c.logger); err != nil {
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}

	c.services, err = ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.txManager,
		External:   c.external,
		Dispatcher: c.dispatcher,
		Engine:     c.config.Engine,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := ProvideSubscriptions(c.dispatcher, c.services); err != nil {
		return fmt.Errorf("failed to subscribe handlers: %w", err)
	}

	if c.workers, err = ProvideWorkers(&c.config.Digest, c.services, c.logger); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	if err := c.workers.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}

	return nil
}

// Close shuts components down in reverse start order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	if c.cancel != nil {
		c.cancel()
	}

	errs := c.teardown()
	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors: %v", len(errs), errs[0])
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// teardown releases whatever was started; the dispatcher drains before the
// database closes so in-flight handlers can still read.
func (c *Container) teardown() []error {
	var errs []error

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		c.db = nil
	}

	for _, err := range errs {
		c.logger.Error("Shutdown step failed", zap.Error(err))
	}
	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{Overall: true, Components: make(map[string]ComponentHealth)}
	set := func(name string, h ComponentHealth) {
		status.Components[name] = h
		if !h.Healthy {
			status.Overall = false
		}
	}

	if c.db == nil {
		set("database", ComponentHealth{Message: "not initialized"})
	} else if err := c.db.PingContext(ctx); err != nil {
		set("database", ComponentHealth{Message: fmt.Sprintf("ping failed: %v", err)})
	} else {
		set("database", ComponentHealth{Healthy: true})
	}

	if c.dispatcher == nil {
		set("dispatcher", ComponentHealth{Message: "not initialized"})
	} else {
		set("dispatcher", ComponentHealth{Healthy: true})
	}

	if c.workers == nil {
		set("workers", ComponentHealth{Message: "not initialized"})
	} else {
		set("workers", ComponentHealth{
			Healthy: c.workers.IsRunning(),
			Message: fmt.Sprintf("running: %v", c.workers.Running()),
		})
	}

	return status
}

// HTTPHealth adapts Health to the shape the HTTP server reports
func (c *Container) HTTPHealth(ctx context.Context) (map[string]string, error) {
	status := c.Health(ctx)
	out := make(map[string]string, len(status.Components))
	for name, h := range status.Components {
		switch {
		case h.Healthy:
			out[name] = "ok"
		case h.Message != "":
			out[name] = h.Message
		default:
			out[name] = "unhealthy"
		}
	}
	if !status.Overall {
		return out, fmt.Errorf("one or more components are unhealthy")
	}
	return out, nil
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() port.TransactionManager {
	return c.txManager
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// ServiceLogger returns the key/value logger used by services and the HTTP layer.
func (c *Container) ServiceLogger() service.Logger {
	return &zapLoggerAdapter{logger: c.logger}
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the key/value Logger interfaces.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
