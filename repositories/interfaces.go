package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/butekinselcuk/sepettakip/internal/policy"
	"github.com/butekinselcuk/sepettakip/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist
	ErrNotFound = errors.New("record not found")

	// ErrActivePolicyExists is returned when a write would leave a business with two active policies
	ErrActivePolicyExists = errors.New("business already has an active policy")
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction.
	// The ctx passed to fn carries the transaction, so repositories called
	// with it join the transaction. Commits if fn succeeds, rolls back on
	// error or panic.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// ListOptions carries pagination for list queries
type ListOptions struct {
	Limit  int
	Offset int
}

// PolicyRepository handles business policy data operations
type PolicyRepository interface {
	// Create creates a new policy
	Create(ctx context.Context, p *models.BusinessPolicy) error

	// GetByID retrieves a policy by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.BusinessPolicy, error)

	// GetActiveByBusinessID retrieves the active policy of a business
	GetActiveByBusinessID(ctx context.Context, businessID uuid.UUID) (*models.BusinessPolicy, error)

	// ListByBusinessID retrieves all policies of a business, newest first
	ListByBusinessID(ctx context.Context, businessID uuid.UUID) ([]*models.BusinessPolicy, error)

	// Update replaces the rule content of a policy
	Update(ctx context.Context, p *models.BusinessPolicy) error

	// DeactivateAll deactivates every policy of a business
	DeactivateAll(ctx context.Context, businessID uuid.UUID) error

	// SetActive marks a single policy active
	SetActive(ctx context.Context, id uuid.UUID) error

	// Delete deletes a policy
	Delete(ctx context.Context, id uuid.UUID) error
}

// OrderRepository handles order data operations
type OrderRepository interface {
	// GetByID retrieves an order with its items
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)

	// UpdateStatusIfCurrent moves the order to next only if its status is still expected.
	// It reports whether a row was updated.
	UpdateStatusIfCurrent(ctx context.Context, id uuid.UUID, expected, next policy.OrderStatus) (bool, error)
}

// CancellationRequestRepository handles cancellation request records
type CancellationRequestRepository interface {
	// Create stores a new cancellation request
	Create(ctx context.Context, req *models.CancellationRequest) error

	// GetByID retrieves a cancellation request by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.CancellationRequest, error)

	// ListByBusiness retrieves requests of a business, optionally filtered by decision status
	ListByBusiness(ctx context.Context, businessID uuid.UUID, status *policy.DecisionStatus, opts ListOptions) ([]*models.CancellationRequest, error)
}

// RefundRequestRepository handles refund request records
type RefundRequestRepository interface {
	// Create stores a new refund request
	Create(ctx context.Context, req *models.RefundRequest) error

	// GetByID retrieves a refund request by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.RefundRequest, error)

	// ListByBusiness retrieves requests of a business, optionally filtered by decision status
	ListByBusiness(ctx context.Context, businessID uuid.UUID, status *policy.DecisionStatus, opts ListOptions) ([]*models.RefundRequest, error)
}

// AuditRepository handles audit log data operations
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// ListByBusiness retrieves audit logs for a business, newest first
	ListByBusiness(ctx context.Context, businessID uuid.UUID, opts ListOptions) ([]*models.AuditLog, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Policies             PolicyRepository
	Orders               OrderRepository
	CancellationRequests CancellationRequestRepository
	RefundRequests       RefundRequestRepository
	AuditLogs            AuditRepository
}
