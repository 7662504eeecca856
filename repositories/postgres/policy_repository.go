package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/butekinselcuk/sepettakip/models"
	"github.com/butekinselcuk/sepettakip/repositories"
)

const policyColumns = `id, business_id, is_active, auto_approve_timeline, time_limit,
		       cancellation_fees, order_status_rules, product_rules, created_at, updated_at`

// PolicyRepository implements the repositories.PolicyRepository interface
type PolicyRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *DB, logger *zap.Logger) repositories.PolicyRepository {
	return &PolicyRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new policy
func (r *PolicyRepository) Create(ctx context.Context, p *models.BusinessPolicy) error {
	query := `
		INSERT INTO business_policies (
			id, business_id, is_active, auto_approve_timeline, time_limit,
			cancellation_fees, order_status_rules, product_rules, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		p.ID,
		p.BusinessID,
		p.IsActive,
		p.AutoApproveTimeline,
		p.TimeLimit,
		jsonArg(p.CancellationFees),
		jsonArg(p.OrderStatusRules),
		jsonArg(p.ProductRules),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repositories.ErrActivePolicyExists
		}
		return fmt.Errorf("failed to create policy: %w", err)
	}

	r.logger.Debug("policy created",
		zap.String("id", p.ID.String()),
		zap.String("business_id", p.BusinessID.String()))
	return nil
}

// GetByID retrieves a policy by ID
func (r *PolicyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.BusinessPolicy, error) {
	query := `SELECT ` + policyColumns + ` FROM business_policies WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	p, err := scanPolicy(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}
	return p, nil
}

// GetActiveByBusinessID retrieves the active policy of a business
func (r *PolicyRepository) GetActiveByBusinessID(ctx context.Context, businessID uuid.UUID) (*models.BusinessPolicy, error) {
	query := `SELECT ` + policyColumns + ` FROM business_policies WHERE business_id = $1 AND is_active`

	executor := GetExecutor(ctx, r.db)
	p, err := scanPolicy(executor.QueryRowContext(ctx, query, businessID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get active policy: %w", err)
	}
	return p, nil
}

// ListByBusinessID retrieves all policies of a business, newest first
func (r *PolicyRepository) ListByBusinessID(ctx context.Context, businessID uuid.UUID) ([]*models.BusinessPolicy, error) {
	query := `SELECT ` + policyColumns + `
		FROM business_policies
		WHERE business_id = $1
		ORDER BY created_at DESC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}
	defer rows.Close()

	var policies []*models.BusinessPolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		policies = append(policies, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policy rows: %w", err)
	}

	return policies, nil
}

// Update replaces the rule content of a policy. Activation is changed only through SetActive.
func (r *PolicyRepository) Update(ctx context.Context, p *models.BusinessPolicy) error {
	query := `
		UPDATE business_policies
		SET auto_approve_timeline = $2,
		    time_limit = $3,
		    cancellation_fees = $4,
		    order_status_rules = $5,
		    product_rules = $6,
		    updated_at = $7
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		p.ID,
		p.AutoApproveTimeline,
		p.TimeLimit,
		jsonArg(p.CancellationFees),
		jsonArg(p.OrderStatusRules),
		jsonArg(p.ProductRules),
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}

	if err := expectRow(result); err != nil {
		return err
	}

	r.logger.Debug("policy updated", zap.String("id", p.ID.String()))
	return nil
}

// DeactivateAll deactivates every policy of a business
func (r *PolicyRepository) DeactivateAll(ctx context.Context, businessID uuid.UUID) error {
	query := `
		UPDATE business_policies
		SET is_active = false, updated_at = CURRENT_TIMESTAMP
		WHERE business_id = $1 AND is_active
	`

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, query, businessID); err != nil {
		return fmt.Errorf("failed to deactivate policies: %w", err)
	}
	return nil
}

// SetActive marks a single policy active
func (r *PolicyRepository) SetActive(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE business_policies
		SET is_active = true, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		if isUniqueViolation(err) {
			return repositories.ErrActivePolicyExists
		}
		return fmt.Errorf("failed to activate policy: %w", err)
	}

	if err := expectRow(result); err != nil {
		return err
	}

	r.logger.Debug("policy activated", zap.String("id", id.String()))
	return nil
}

// Delete deletes a policy
func (r *PolicyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM business_policies WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}

	if err := expectRow(result); err != nil {
		return err
	}

	r.logger.Debug("policy deleted", zap.String("id", id.String()))
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPolicy(row rowScanner) (*models.BusinessPolicy, error) {
	p := &models.BusinessPolicy{}
	var fees, statusRules, productRules []byte

	err := row.Scan(
		&p.ID,
		&p.BusinessID,
		&p.IsActive,
		&p.AutoApproveTimeline,
		&p.TimeLimit,
		&fees,
		&statusRules,
		&productRules,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.CancellationFees = json.RawMessage(fees)
	p.OrderStatusRules = json.RawMessage(statusRules)
	if productRules != nil {
		p.ProductRules = json.RawMessage(productRules)
	}
	return p, nil
}

// jsonArg passes an empty blob as SQL NULL
func jsonArg(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// expectRow maps zero affected rows to repositories.ErrNotFound
func expectRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
