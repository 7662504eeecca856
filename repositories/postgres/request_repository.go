package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/butekinselcuk/sepettakip/internal/policy"
	"github.com/butekinselcuk/sepettakip/models"
	"github.com/butekinselcuk/sepettakip/repositories"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// page applies the default and maximum page size
func page(opts repositories.ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// statusArg passes a nil filter as SQL NULL, which matches every status
func statusArg(status *policy.DecisionStatus) interface{} {
	if status == nil {
		return nil
	}
	return string(*status)
}

// CancellationRequestRepository implements the repositories.CancellationRequestRepository interface
type CancellationRequestRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCancellationRequestRepository creates a new cancellation request repository
func NewCancellationRequestRepository(db *DB, logger *zap.Logger) repositories.CancellationRequestRepository {
	return &CancellationRequestRepository{
		db:     db,
		logger: logger,
	}
}

const cancellationColumns = `id, order_id, business_id, requested_by, reason, order_status,
		       status, auto_processed, fee, message, rule, created_at`

// Create stores a new cancellation request
func (r *CancellationRequestRepository) Create(ctx context.Context, req *models.CancellationRequest) error {
	query := `
		INSERT INTO cancellation_requests (
			id, order_id, business_id, requested_by, reason, order_status,
			status, auto_processed, fee, message, rule, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		req.ID,
		req.OrderID,
		req.BusinessID,
		req.RequestedBy,
		req.Reason,
		req.OrderStatus,
		req.Status,
		req.AutoProcessed,
		req.Fee,
		req.Message,
		req.Rule,
		req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create cancellation request: %w", err)
	}

	r.logger.Debug("cancellation request created",
		zap.String("id", req.ID.String()),
		zap.String("order_id", req.OrderID.String()),
		zap.String("status", string(req.Status)))
	return nil
}

// GetByID retrieves a cancellation request by ID
func (r *CancellationRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.CancellationRequest, error) {
	query := `SELECT ` + cancellationColumns + ` FROM cancellation_requests WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	req, err := scanCancellation(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cancellation request: %w", err)
	}
	return req, nil
}

// ListByBusiness retrieves requests of a business, newest first
func (r *CancellationRequestRepository) ListByBusiness(ctx context.Context, businessID uuid.UUID, status *policy.DecisionStatus, opts repositories.ListOptions) ([]*models.CancellationRequest, error) {
	query := `SELECT ` + cancellationColumns + `
		FROM cancellation_requests
		WHERE business_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	limit, offset := page(opts)
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, businessID, statusArg(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query cancellation requests: %w", err)
	}
	defer rows.Close()

	requests := []*models.CancellationRequest{}
	for rows.Next() {
		req, err := scanCancellation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cancellation request: %w", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cancellation request rows: %w", err)
	}

	return requests, nil
}

func scanCancellation(row rowScanner) (*models.CancellationRequest, error) {
	req := &models.CancellationRequest{}
	err := row.Scan(
		&req.ID,
		&req.OrderID,
		&req.BusinessID,
		&req.RequestedBy,
		&req.Reason,
		&req.OrderStatus,
		&req.Status,
		&req.AutoProcessed,
		&req.Fee,
		&req.Message,
		&req.Rule,
		&req.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// RefundRequestRepository implements the repositories.RefundRequestRepository interface
type RefundRequestRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewRefundRequestRepository creates a new refund request repository
func NewRefundRequestRepository(db *DB, logger *zap.Logger) repositories.RefundRequestRepository {
	return &RefundRequestRepository{
		db:     db,
		logger: logger,
	}
}

const refundColumns = `id, order_id, business_id, requested_by, reason, requested_amount, approved_amount,
		       item_ids, status, auto_processed, message, rule, created_at`

// Create stores a new refund request
func (r *RefundRequestRepository) Create(ctx context.Context, req *models.RefundRequest) error {
	query := `
		INSERT INTO refund_requests (
			id, order_id, business_id, requested_by, reason, requested_amount, approved_amount,
			item_ids, status, auto_processed, message, rule, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		req.ID,
		req.OrderID,
		req.BusinessID,
		req.RequestedBy,
		req.Reason,
		req.RequestedAmount,
		req.ApprovedAmount,
		uuidArray(req.ItemIDs),
		req.Status,
		req.AutoProcessed,
		req.Message,
		req.Rule,
		req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create refund request: %w", err)
	}

	r.logger.Debug("refund request created",
		zap.String("id", req.ID.String()),
		zap.String("order_id", req.OrderID.String()),
		zap.String("status", string(req.Status)))
	return nil
}

// GetByID retrieves a refund request by ID
func (r *RefundRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RefundRequest, error) {
	query := `SELECT ` + refundColumns + ` FROM refund_requests WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	req, err := scanRefund(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get refund request: %w", err)
	}
	return req, nil
}

// ListByBusiness retrieves requests of a business, newest first
func (r *RefundRequestRepository) ListByBusiness(ctx context.Context, businessID uuid.UUID, status *policy.DecisionStatus, opts repositories.ListOptions) ([]*models.RefundRequest, error) {
	query := `SELECT ` + refundColumns + `
		FROM refund_requests
		WHERE business_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	limit, offset := page(opts)
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, businessID, statusArg(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query refund requests: %w", err)
	}
	defer rows.Close()

	requests := []*models.RefundRequest{}
	for rows.Next() {
		req, err := scanRefund(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan refund request: %w", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating refund request rows: %w", err)
	}

	return requests, nil
}

func scanRefund(row rowScanner) (*models.RefundRequest, error) {
	req := &models.RefundRequest{}
	var itemIDs pq.StringArray
	err := row.Scan(
		&req.ID,
		&req.OrderID,
		&req.BusinessID,
		&req.RequestedBy,
		&req.Reason,
		&req.RequestedAmount,
		&req.ApprovedAmount,
		&itemIDs,
		&req.Status,
		&req.AutoProcessed,
		&req.Message,
		&req.Rule,
		&req.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.ItemIDs = make([]uuid.UUID, 0, len(itemIDs))
	for _, s := range itemIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid item id %q: %w", s, err)
		}
		req.ItemIDs = append(req.ItemIDs, id)
	}
	return req, nil
}

func uuidArray(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
