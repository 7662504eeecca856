package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"

	"github.com/butekinselcuk/sepettakip/config"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	dsn := cfg.DSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return NewDBFromConn(db, logger), nil
}

// NewDBFromConn wraps an already open pool
func NewDBFromConn(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{
		DB:     db,
		logger: logger,
	}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	// Check if we can query
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// Schema is the DDL applied by InitSchema
const Schema = `
	CREATE TABLE IF NOT EXISTS business_policies (
		id UUID PRIMARY KEY,
		business_id UUID NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT false,
		auto_approve_timeline INTEGER CHECK (auto_approve_timeline >= 0),
		time_limit INTEGER CHECK (time_limit >= 0),
		cancellation_fees JSONB NOT NULL DEFAULT '[]',
		order_status_rules JSONB NOT NULL DEFAULT '{}',
		product_rules JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- At most one active policy per business
	CREATE UNIQUE INDEX IF NOT EXISTS uq_business_policies_active
		ON business_policies(business_id) WHERE is_active;

	CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		business_id UUID NOT NULL,
		customer_id UUID,
		status VARCHAR(32) NOT NULL,
		total_price NUMERIC(12, 2) NOT NULL CHECK (total_price >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		actual_delivered_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS order_items (
		id UUID PRIMARY KEY,
		order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id UUID NOT NULL,
		category_id VARCHAR(100) NOT NULL,
		unit_price NUMERIC(12, 2) NOT NULL CHECK (unit_price >= 0),
		quantity INTEGER NOT NULL CHECK (quantity > 0)
	);

	CREATE TABLE IF NOT EXISTS cancellation_requests (
		id UUID PRIMARY KEY,
		order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		business_id UUID NOT NULL,
		requested_by UUID,
		reason TEXT NOT NULL DEFAULT '',
		order_status VARCHAR(32) NOT NULL,
		status VARCHAR(32) NOT NULL,
		auto_processed BOOLEAN NOT NULL,
		fee NUMERIC(12, 2),
		message TEXT NOT NULL,
		rule VARCHAR(64) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS refund_requests (
		id UUID PRIMARY KEY,
		order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		business_id UUID NOT NULL,
		requested_by UUID,
		reason TEXT NOT NULL DEFAULT '',
		requested_amount NUMERIC(12, 2) NOT NULL CHECK (requested_amount >= 0),
		approved_amount NUMERIC(12, 2),
		item_ids UUID[] NOT NULL DEFAULT '{}',
		status VARCHAR(32) NOT NULL,
		auto_processed BOOLEAN NOT NULL,
		message TEXT NOT NULL,
		rule VARCHAR(64) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS audit_logs (
		id UUID PRIMARY KEY,
		business_id UUID NOT NULL,
		actor_id UUID,
		action VARCHAR(100) NOT NULL,
		resource_type VARCHAR(100) NOT NULL,
		resource_id UUID,
		outcome VARCHAR(32),
		rule VARCHAR(64),
		details JSONB,
		ip_address VARCHAR(45),
		user_agent TEXT,
		request_id VARCHAR(255),
		timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_business_policies_business_id ON business_policies(business_id);
	CREATE INDEX IF NOT EXISTS idx_orders_business_id ON orders(business_id);
	CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);

	CREATE INDEX IF NOT EXISTS idx_cancellation_requests_business ON cancellation_requests(business_id, status, created_at);
	CREATE INDEX IF NOT EXISTS idx_refund_requests_business ON refund_requests(business_id, status, created_at);
	CREATE INDEX IF NOT EXISTS idx_cancellation_requests_requester ON cancellation_requests(requested_by, created_at);
	CREATE INDEX IF NOT EXISTS idx_refund_requests_requester ON refund_requests(requested_by, created_at);

	CREATE INDEX IF NOT EXISTS idx_audit_logs_business_id ON audit_logs(business_id);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_action ON audit_logs(action);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_request_id ON audit_logs(request_id);
`

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}
