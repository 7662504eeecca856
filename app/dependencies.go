package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/butekinselcuk/sepettakip/auth"
	"github.com/butekinselcuk/sepettakip/config"
	"github.com/butekinselcuk/sepettakip/handlers"
	engine "github.com/butekinselcuk/sepettakip/internal/policy"
	"github.com/butekinselcuk/sepettakip/middleware"
	"github.com/butekinselcuk/sepettakip/repositories"
	"github.com/butekinselcuk/sepettakip/repositories/postgres"
	"github.com/butekinselcuk/sepettakip/services/audit"
	"github.com/butekinselcuk/sepettakip/services/policy"
	"github.com/butekinselcuk/sepettakip/services/ratelimit"
	"github.com/butekinselcuk/sepettakip/services/requests"
)

// auditStopTimeout bounds how long Close waits for queued audit events
const auditStopTimeout = 5 * time.Second

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Repos     *repositories.Repositories
	TxManager repositories.TransactionManager

	// Services
	Evaluator *engine.Evaluator
	Audit     *audit.AuditService
	Policies  *policy.PolicyService
	Limiter   *ratelimit.RateLimitService
	Requests  *requests.RequestService

	// Auth
	TokenValidator *auth.Validator
	AuthMiddleware *middleware.AuthMiddleware

	// Handlers
	HealthHandler  *handlers.HealthHandler
	PolicyHandler  *handlers.PolicyHandler
	RequestHandler *handlers.RequestHandler
	AuditHandler   *handlers.AuditHandler
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if cfg.Database.InitSchema {
		if err := factory.GetDB().InitSchema(ctx); err != nil {
			_ = factory.Close()
			return nil, fmt.Errorf("failed to initialize database schema: %w", err)
		}
		logger.Info("database schema initialized")
	}

	deps, err := NewDependenciesFromFactory(cfg, factory, logger)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}
	return deps, nil
}

// NewDependenciesFromFactory wires services and handlers over an existing repository factory
func NewDependenciesFromFactory(cfg *config.Config, factory *postgres.RepositoryFactory, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		RepoFactory: factory,
		DB:          factory.GetDB(),
	}

	deps.initRepositories()

	if err := deps.initServices(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.initAuth(cfg)
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	d.Repos = d.RepoFactory.NewRepositories()
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initServices builds the evaluator, the audit worker pool and the domain services
func (d *Dependencies) initServices(cfg *config.Config) error {
	d.Evaluator = engine.NewEvaluator(
		engine.WithRefundAutoApproveCeiling(cfg.Policy.RefundAutoApproveCeiling),
	)

	d.Audit = audit.NewAuditService(d.Repos.AuditLogs, d.Logger.Named("audit"), audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.Workers,
		HistorySize: cfg.Audit.HistorySize,
	})
	if err := d.Audit.Start(); err != nil {
		return fmt.Errorf("failed to start audit service: %w", err)
	}

	d.Policies = policy.NewPolicyService(
		d.Repos.Policies,
		d.Repos.Orders,
		d.TxManager,
		d.Evaluator,
		d.Audit,
		d.Logger.Named("policy"),
	)

	d.Limiter = ratelimit.NewRateLimitService(d.DB, ratelimit.Limits{
		CancellationsPerHour: cfg.RateLimit.CancellationsPerHour,
		RefundsPerDay:        cfg.RateLimit.RefundsPerDay,
	}, d.Logger.Named("ratelimit"))

	d.Requests = requests.NewRequestService(
		d.Policies,
		d.Evaluator,
		d.Repos,
		d.TxManager,
		d.Audit,
		d.Limiter,
		cfg.Policy.MaxApplyAttempts,
		d.Logger.Named("requests"),
	)

	d.Logger.Info("services initialized",
		zap.String("refund_auto_approve_ceiling", cfg.Policy.RefundAutoApproveCeiling.String()),
		zap.Int("max_apply_attempts", cfg.Policy.MaxApplyAttempts),
		zap.Int("cancellations_per_hour", cfg.RateLimit.CancellationsPerHour),
		zap.Int("refunds_per_day", cfg.RateLimit.RefundsPerDay))
	return nil
}

// initAuth builds the bearer token validator and the auth middleware
func (d *Dependencies) initAuth(cfg *config.Config) {
	d.TokenValidator = auth.NewValidator(auth.Config{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.JWTIssuer,
		Leeway: 30 * time.Second,
	})
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.TokenValidator, d.Logger.Named("auth"))
}

// initHandlers builds the HTTP handlers
func (d *Dependencies) initHandlers() {
	d.HealthHandler = handlers.NewHealthHandler(d.DB, d.Logger)
	d.PolicyHandler = handlers.NewPolicyHandler(d.Policies, d.Logger)
	d.RequestHandler = handlers.NewRequestHandler(d.Requests, d.Logger)
	d.AuditHandler = handlers.NewAuditHandler(d.Audit, d.Logger)
}

// Close gracefully shuts down all dependencies.
// Queued audit events are flushed before the database closes.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs error

	if d.Audit != nil && d.Audit.GetStats().Started {
		timeout := auditStopTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Audit.Stop(timeout); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
	}

	_ = d.Logger.Sync()

	return errs
}
