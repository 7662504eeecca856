// Package ratelimit caps how many cancellation and refund requests a single
// customer may file within a sliding window. Usage is counted from the
// request tables themselves, so no separate event log is kept.
package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/butekinselcuk/sepettakip/repositories/postgres"
)

// Kind is the type of request being limited
type Kind string

const (
	KindCancellation Kind = "cancellation"
	KindRefund       Kind = "refund"
)

// Window is the length of a rate limit window
type Window string

const (
	WindowHour Window = "hour"
	WindowDay  Window = "day"
)

// Duration returns the length of the window
func (w Window) Duration() time.Duration {
	if w == WindowDay {
		return 24 * time.Hour
	}
	return time.Hour
}

// Limits configures the per-requester quotas. Zero disables a quota.
type Limits struct {
	CancellationsPerHour int
	RefundsPerDay        int
}

// LimitRequest identifies the requester being checked
type LimitRequest struct {
	Kind   Kind
	UserID uuid.UUID
}

// LimitResult represents the result of a rate limit check
type LimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	Window    Window
	ResetAt   time.Time
}

const (
	lockRequesterQuery = `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`

	countCancellationsQuery = `
		SELECT COUNT(*), MIN(created_at)
		FROM cancellation_requests
		WHERE requested_by = $1
		  AND created_at >= $2
	`
	countRefundsQuery = `
		SELECT COUNT(*), MIN(created_at)
		FROM refund_requests
		WHERE requested_by = $1
		  AND created_at >= $2
	`
)

// RateLimitService checks request quotas using PostgreSQL
type RateLimitService struct {
	db     *postgres.DB
	limits Limits
	now    func() time.Time
	logger *zap.Logger
}

// NewRateLimitService creates a new RateLimitService instance
func NewRateLimitService(db *postgres.DB, limits Limits, logger *zap.Logger) *RateLimitService {
	return &RateLimitService{
		db:     db,
		limits: limits,
		now:    time.Now,
		logger: logger,
	}
}

// CheckLimit reports whether the requester may file one more request of req.Kind.
// The window slides: ResetAt is when the oldest counted request leaves it.
//
// When ctx carries a transaction the count runs inside it, after taking an
// advisory lock on the requester that is held until the transaction ends.
// Concurrent checks for one requester therefore see each other's inserts.
func (s *RateLimitService) CheckLimit(ctx context.Context, req LimitRequest) (*LimitResult, error) {
	limit, window, query, err := s.rule(req.Kind)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return &LimitResult{Allowed: true, Window: window}, nil
	}

	now := s.now().UTC()
	start := now.Add(-window.Duration())

	exec := postgres.GetExecutor(ctx, s.db)
	if _, inTx := postgres.GetTransactionFromContext(ctx); inTx {
		if _, err := exec.ExecContext(ctx, lockRequesterQuery, req.UserID); err != nil {
			return nil, fmt.Errorf("failed to lock requester %s: %w", req.UserID, err)
		}
	}

	var count int
	var oldest sql.NullTime
	if err := exec.QueryRowContext(ctx, query, req.UserID, start).Scan(&count, &oldest); err != nil {
		return nil, fmt.Errorf("failed to count %s requests: %w", req.Kind, err)
	}

	result := &LimitResult{
		Allowed:   count < limit,
		Limit:     limit,
		Remaining: limit - count,
		Window:    window,
		ResetAt:   now.Add(window.Duration()),
	}
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	if oldest.Valid {
		result.ResetAt = oldest.Time.UTC().Add(window.Duration())
	}

	if !result.Allowed {
		s.logger.Info("request limit reached",
			zap.String("kind", string(req.Kind)),
			zap.String("user_id", req.UserID.String()),
			zap.Int("limit", limit),
			zap.String("window", string(window)),
			zap.Time("reset_at", result.ResetAt))
	}
	return result, nil
}

func (s *RateLimitService) rule(kind Kind) (int, Window, string, error) {
	switch kind {
	case KindCancellation:
		return s.limits.CancellationsPerHour, WindowHour, countCancellationsQuery, nil
	case KindRefund:
		return s.limits.RefundsPerDay, WindowDay, countRefundsQuery, nil
	}
	return 0, "", "", fmt.Errorf("unknown request kind %q", kind)
}
