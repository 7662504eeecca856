package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/butekinselcuk/sepettakip/internal/history"
	"github.com/butekinselcuk/sepettakip/internal/policy"
	"github.com/butekinselcuk/sepettakip/internal/redact"
	"github.com/butekinselcuk/sepettakip/models"
	"github.com/butekinselcuk/sepettakip/repositories"
)

// AuditEvent represents an event to be audited
type AuditEvent struct {
	Log *models.AuditLog
}

// Actor identifies who triggered an audited action and from where
type Actor struct {
	UserID    *uuid.UUID
	RequestID string
	IPAddress string
	UserAgent string
}

func (a Actor) apply(log *models.AuditLog) *models.AuditLog {
	return log.WithActor(a.UserID).WithRequest(a.RequestID, a.IPAddress, a.UserAgent)
}

// AuditService handles asynchronous audit logging and keeps recent decisions in memory
type AuditService struct {
	auditRepo   repositories.AuditRepository
	history     *history.Log
	logger      *zap.Logger
	eventChan   chan *AuditEvent
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	mu          sync.RWMutex
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
	HistorySize int // Decisions kept for Recent
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1000,
		WorkerCount: 5,
		HistorySize: 500,
	}
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repositories.AuditRepository, logger *zap.Logger, config Config) *AuditService {
	ctx, cancel := context.WithCancel(context.Background())

	return &AuditService{
		auditRepo:   auditRepo,
		history:     history.New(config.HistorySize),
		logger:      logger,
		eventChan:   make(chan *AuditEvent, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}
	if s.ctx.Err() != nil {
		return fmt.Errorf("audit service stopped")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop gracefully stops the audit service.
// Waits for queued events to be written, up to timeout.
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	s.started = false
	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))
	close(s.eventChan)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// LogEvent queues an event without blocking; it fails when the buffer is full
func (s *AuditService) LogEvent(event *AuditEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return fmt.Errorf("audit service not started")
	}

	select {
	case s.eventChan <- event:
		return nil
	default:
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("action", string(event.Log.Action)),
			zap.String("business_id", event.Log.BusinessID.String()))
		return fmt.Errorf("audit event buffer full")
	}
}

// LogEventBlocking queues an event, waiting until there is room or ctx is cancelled
func (s *AuditService) LogEventBlocking(ctx context.Context, event *AuditEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return fmt.Errorf("audit service not started")
	}

	select {
	case s.eventChan <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return fmt.Errorf("audit service stopped")
	}
}

// worker processes events from the channel
func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for event := range s.eventChan {
		if err := s.processEvent(event); err != nil {
			s.logger.Error("failed to process audit event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("action", string(event.Log.Action)),
				zap.String("business_id", event.Log.BusinessID.String()))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

// processEvent processes a single audit event
func (s *AuditService) processEvent(event *AuditEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.auditRepo.Insert(ctx, event.Log); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// GetStats returns statistics about the audit service
func (s *AuditService) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started,
		History:       s.history.Stats(),
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int           `json:"buffer_size"`
	PendingEvents int           `json:"pending_events"`
	WorkerCount   int           `json:"worker_count"`
	Started       bool          `json:"started"`
	History       history.Stats `json:"history"`
}

// Recent returns up to n recent decisions, newest first
func (s *AuditService) Recent(n int) []history.Entry {
	return s.history.Recent(n)
}

// RecentForBusiness returns up to n recent decisions of one business, newest first
func (s *AuditService) RecentForBusiness(businessID uuid.UUID, n int) []history.Entry {
	return s.history.RecentForBusiness(businessID, n)
}

// ListByBusiness reads persisted audit logs of a business
func (s *AuditService) ListByBusiness(ctx context.Context, businessID uuid.UUID, opts repositories.ListOptions) ([]*models.AuditLog, error) {
	return s.auditRepo.ListByBusiness(ctx, businessID, opts)
}

// Convenience methods for logging common events

// LogCancellationDecision records a cancellation decision in history and the audit log
func (s *AuditService) LogCancellationDecision(req *models.CancellationRequest, d policy.Decision, actor Actor) error {
	s.history.Add(history.Entry{
		Kind:       history.KindCancellation,
		OrderID:    req.OrderID,
		BusinessID: req.BusinessID,
		Decision:   d,
	})

	log := models.NewAuditLog(req.BusinessID, models.AuditActionCancellationRequested, "cancellation_request").
		WithResource(req.ID).
		WithDecision(string(d.Status), string(d.Rule))
	actor.apply(log)

	details := map[string]interface{}{
		"order_id":       req.OrderID,
		"order_status":   req.OrderStatus,
		"reason":         redact.Text(req.Reason),
		"auto_processed": d.AutoProcessed,
		"message":        d.Message,
	}
	if d.Fee != nil {
		details["fee"] = d.Fee.String()
	}
	log.WithDetails(details)

	return s.LogEvent(&AuditEvent{Log: log})
}

// LogRefundDecision records a refund decision in history and the audit log
func (s *AuditService) LogRefundDecision(req *models.RefundRequest, d policy.Decision, actor Actor) error {
	s.history.Add(history.Entry{
		Kind:       history.KindRefund,
		OrderID:    req.OrderID,
		BusinessID: req.BusinessID,
		Decision:   d,
	})

	log := models.NewAuditLog(req.BusinessID, models.AuditActionRefundRequested, "refund_request").
		WithResource(req.ID).
		WithDecision(string(d.Status), string(d.Rule))
	actor.apply(log)

	details := map[string]interface{}{
		"order_id":         req.OrderID,
		"reason":           redact.Text(req.Reason),
		"requested_amount": req.RequestedAmount.String(),
		"item_count":       len(req.ItemIDs),
		"auto_processed":   d.AutoProcessed,
		"message":          d.Message,
	}
	if d.ApprovedAmount != nil {
		details["approved_amount"] = d.ApprovedAmount.String()
	}
	log.WithDetails(details)

	return s.LogEvent(&AuditEvent{Log: log})
}

// LogOrderCancelled logs the status transition applied for an approved cancellation
func (s *AuditService) LogOrderCancelled(order *models.Order, from policy.OrderStatus, actor Actor) error {
	log := models.NewAuditLog(order.BusinessID, models.AuditActionOrderCancelled, "order").
		WithResource(order.ID).
		WithDetails(map[string]interface{}{
			"from": from,
			"to":   policy.OrderStatusCancelled,
		})
	actor.apply(log)

	return s.LogEvent(&AuditEvent{Log: log})
}

// LogPolicyChange logs a policy lifecycle action
func (s *AuditService) LogPolicyChange(p *models.BusinessPolicy, action models.AuditAction, actor Actor) error {
	log := models.NewAuditLog(p.BusinessID, action, "policy").
		WithResource(p.ID).
		WithDetails(map[string]interface{}{
			"is_active": p.IsActive,
		})
	actor.apply(log)

	return s.LogEvent(&AuditEvent{Log: log})
}

// LogPolicyRejected logs a stored policy that failed validation when loaded
func (s *AuditService) LogPolicyRejected(p *models.BusinessPolicy, reason error) error {
	log := models.NewAuditLog(p.BusinessID, models.AuditActionPolicyRejected, "policy").
		WithResource(p.ID).
		WithDetails(map[string]interface{}{
			"error": reason.Error(),
		})

	return s.LogEvent(&AuditEvent{Log: log})
}
