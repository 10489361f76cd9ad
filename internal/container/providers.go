package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/po-authorization/internal/application/dispatcher"
	"github.com/garyjia/po-authorization/internal/application/port"
	"github.com/garyjia/po-authorization/internal/application/service"
	"github.com/garyjia/po-authorization/internal/application/workflow"
	"github.com/garyjia/po-authorization/internal/domain/event"
	"github.com/garyjia/po-authorization/internal/infrastructure/excel"
	"github.com/garyjia/po-authorization/internal/infrastructure/external/erp"
	infraLark "github.com/garyjia/po-authorization/internal/infrastructure/external/lark"
	"github.com/garyjia/po-authorization/internal/infrastructure/persistence/repository"
	"github.com/garyjia/po-authorization/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/po-authorization/internal/infrastructure/storage"
	"github.com/garyjia/po-authorization/internal/infrastructure/worker"
	"github.com/garyjia/po-authorization/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// ExternalBundle holds the outbound adapters. ERP is nil when sync is disabled.
type ExternalBundle struct {
	Lark      *infraLark.SDKClient
	Messenger port.MessageSender
	ERP       port.ERPClient
	RuleSheet port.RuleSheetCodec
	Archive   port.WorkbookArchive
}

// ProvideDatabase opens the database and applies the embedded migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunEmbedded(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories on one connection pool.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Rule:       repository.NewRuleRepository(db.DB, logger),
		Header:     repository.NewHeaderRepository(db.DB, logger),
		Step:       repository.NewStepRepository(db.DB, logger),
		History:    repository.NewHistoryRepository(db.DB, logger),
		Assignment: repository.NewAssignmentRepository(db.DB, logger),
		Catalog:    repository.NewCatalogRepository(db.DB, logger),
	}, nil
}

// ProvideExternal creates the Lark, ERP, workbook and archive adapters.
func ProvideExternal(cfg *Config, logger *zap.Logger) (*ExternalBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	bundle := &ExternalBundle{
		RuleSheet: excel.NewRuleSheet(logger),
		Archive:   storage.NewWorkbookArchive(cfg.Storage.ArchiveDir, logger),
	}

	if cfg.Lark.Enabled {
		bundle.Lark = infraLark.NewSDKClient(infraLark.Config{
			AppID:     cfg.Lark.AppID,
			AppSecret: cfg.Lark.AppSecret,
			BaseURL:   cfg.Lark.BaseURL,
		}, logger)
		bundle.Messenger = infraLark.NewMessenger(bundle.Lark, logger)
	} else {
		logger.Info("Lark disabled, notifications will only be logged")
		bundle.Messenger = &logSender{logger: logger}
	}

	if cfg.ERP.Enabled {
		bundle.ERP = erp.NewClient(erp.Config{
			BaseURL:  cfg.ERP.BaseURL,
			APIToken: cfg.ERP.APIToken,
			Timeout:  cfg.ERP.Timeout,
		}, logger)
	}

	return bundle, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(dispatcher.WithLogger(&zapLoggerAdapter{logger: logger})), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	External   *ExternalBundle
	Dispatcher dispatcher.Dispatcher
	Engine     EngineConfig
	Logger     *zap.Logger
}

// ProvideServices creates the application services and the approval engine.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.External == nil {
		return nil, fmt.Errorf("external adapters are required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	log := &zapLoggerAdapter{logger: deps.Logger}
	repos := deps.Repos

	directory := service.NewAuthorizerDirectory(repos.Assignment, log)
	rules := service.NewRuleService(repos.Rule, repos.Catalog, deps.External.RuleSheet, deps.External.Archive, deps.Dispatcher, log)
	generator := service.NewStepGenerator(repos.Step, repos.History, directory, log)
	aggregator := service.NewHeaderAggregator(repos.Header, repos.Step, log)

	bundle := &ServiceBundle{
		Directory:  directory,
		Rules:      rules,
		Generator:  generator,
		Aggregator: aggregator,
		Submission: service.NewSubmissionService(
			repos.Header, repos.Step, repos.Catalog, deps.TxManager,
			rules, generator, aggregator, deps.Dispatcher, log,
		),
		Query:        service.NewQueryService(repos.Header, repos.Step, repos.History, directory),
		Notification: service.NewNotificationService(repos.Header, repos.Step, repos.Assignment, directory, deps.External.Messenger, log),
		Engine: workflow.NewEngine(
			repos.Header, repos.Step, repos.History, deps.TxManager,
			directory, rules, generator, aggregator, log,
			workflow.WithPublisher(deps.Dispatcher),
			workflow.WithPrivilegedActors(deps.Engine.PrivilegedActors...),
			workflow.WithMaxCascadeIterations(deps.Engine.MaxCascadeIterations),
		),
	}

	if deps.External.ERP != nil {
		bundle.ERPSync = service.NewERPSyncService(deps.External.ERP, repos.History, log)
	}

	return bundle, nil
}

// ProvideSubscriptions attaches the post-commit collaborators to the dispatcher.
func ProvideSubscriptions(d dispatcher.Dispatcher, services *ServiceBundle) error {
	if d == nil || services == nil {
		return fmt.Errorf("dispatcher and services are required")
	}

	d.SubscribeNamed(event.TypeLevelOpened, "lark_notifier", services.Notification.HandleLevelOpened)
	d.SubscribeNamed(event.TypeInfoRequested, "lark_notifier", services.Notification.HandleInfoRequested)

	if services.ERPSync != nil {
		d.SubscribeNamed(event.TypeHeaderApproved, "erp_sync", services.ERPSync.HandleDecision)
		d.SubscribeNamed(event.TypeHeaderRejected, "erp_sync", services.ERPSync.HandleDecision)
	}
	return nil
}

// ProvideWorkers creates the worker manager with every enabled worker registered.
func ProvideWorkers(cfg *DigestConfig, services *ServiceBundle, logger *zap.Logger) (*worker.Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("digest config is required")
	}
	if services == nil {
		return nil, fmt.Errorf("services are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewManager(logger)
	if cfg.Enabled {
		manager.Register(worker.NewDigestWorker(worker.DigestWorkerConfig{
			Schedule: cfg.Schedule,
			Timeout:  cfg.Timeout,
		}, services.Notification, logger))
	}
	return manager, nil
}

// logSender stands in for Lark when it is disabled
type logSender struct {
	logger *zap.Logger
}

func (s *logSender) SendText(ctx context.Context, openID string, content string) error {
	s.logger.Info("Notification (lark disabled)", zap.String("open_id", openID), zap.String("content", content))
	return nil
}
