package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nishant-gupta/smartkosh-sub000/internal/domain/statement/handler"
	"github.com/nishant-gupta/smartkosh-sub000/internal/domain/statement/notify"
	"github.com/nishant-gupta/smartkosh-sub000/internal/domain/statement/parser"
	"github.com/nishant-gupta/smartkosh-sub000/internal/domain/statement/repository"
	"github.com/nishant-gupta/smartkosh-sub000/internal/domain/statement/service"
	"github.com/nishant-gupta/smartkosh-sub000/internal/jobs"
	"github.com/nishant-gupta/smartkosh-sub000/internal/jobs/dbqueue"
	"github.com/nishant-gupta/smartkosh-sub000/internal/jobs/inline"
	"github.com/nishant-gupta/smartkosh-sub000/pkg/config"
	"github.com/nishant-gupta/smartkosh-sub000/pkg/db"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	StatementRepo *repository.PostgresStatementRepository

	// Services
	Parser     *parser.Parser
	Notifier   *notify.Notifier
	Processor  *service.Processor
	Dispatcher jobs.Dispatcher
	Intake     service.IntakeService

	// Handlers
	StatementHandler *handler.StatementHandler

	inlineDispatcher *inline.Dispatcher
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initServices wires the import pipeline and picks the scheduling shape.
func (d *Dependencies) initServices() error {
	d.StatementRepo = repository.NewPostgresStatementRepository(d.DB.Pool, repository.DefaultBatchTxConfig)
	d.Parser = parser.New()
	d.Notifier = notify.New(d.StatementRepo, d.Logger)
	d.Processor = service.NewProcessor(d.StatementRepo, d.Notifier, d.Parser, d.Logger)

	switch d.Config.Import.Mode {
	case config.ImportModeQueue:
		d.Dispatcher = dbqueue.NewDispatcher(d.Logger)
	case config.ImportModeInline:
		d.inlineDispatcher = inline.New(d.Processor.Handler(), d.Config.Import.JobTimeout, d.Logger)
		d.Dispatcher = d.inlineDispatcher
	default:
		return fmt.Errorf("unknown import mode %q", d.Config.Import.Mode)
	}

	d.Intake = service.NewIntakeService(d.StatementRepo, d.Parser, d.Dispatcher, d.Logger)

	d.Logger.Info("services initialized", "import_mode", d.Config.Import.Mode)
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	d.StatementHandler = handler.NewStatementHandler(
		d.Intake,
		d.StatementRepo,
		d.StatementRepo,
		d.Config.Import.MaxUploadBytes,
		d.Logger,
	)
	d.Logger.Info("handlers initialized")
}

// Cleanup drains in-flight inline jobs and closes all resources.
func (d *Dependencies) Cleanup() {
	if d.inlineDispatcher != nil {
		d.Logger.Info("waiting for in-flight import jobs")
		d.inlineDispatcher.Wait()
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
