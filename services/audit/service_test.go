package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/butekinselcuk/sepettakip/internal/money"
	"github.com/butekinselcuk/sepettakip/internal/policy"
	"github.com/butekinselcuk/sepettakip/models"
	"github.com/butekinselcuk/sepettakip/repositories"
)

// MockAuditRepository is a mock implementation of AuditRepository
type MockAuditRepository struct {
	mock.Mock
	mu           sync.Mutex
	insertedLogs []*models.AuditLog
}

func (m *MockAuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	args := m.Called(ctx, log)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertedLogs = append(m.insertedLogs, log)
	return args.Error(0)
}

func (m *MockAuditRepository) ListByBusiness(ctx context.Context, businessID uuid.UUID, opts repositories.ListOptions) ([]*models.AuditLog, error) {
	args := m.Called(ctx, businessID, opts)
	if logs := args.Get(0); logs != nil {
		return logs.([]*models.AuditLog), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditRepository) GetInsertedLogs() []*models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.AuditLog, len(m.insertedLogs))
	copy(out, m.insertedLogs)
	return out
}

func startedService(t *testing.T, repo *MockAuditRepository, config Config) *AuditService {
	t.Helper()
	service := NewAuditService(repo, zap.NewNop(), config)
	require.NoError(t, service.Start())
	return service
}

func TestAuditService_StartStop(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	service := startedService(t, mockRepo, Config{BufferSize: 10, WorkerCount: 2})

	stats := service.GetStats()
	assert.True(t, stats.Started)
	assert.Equal(t, 2, stats.WorkerCount)
	assert.Equal(t, 10, stats.BufferSize)

	// Cannot start again
	assert.Error(t, service.Start())

	require.NoError(t, service.Stop(5*time.Second))

	// Stopped service rejects events and cannot restart
	err := service.LogEvent(&AuditEvent{Log: models.NewAuditLog(uuid.New(), models.AuditActionPolicyCreated, "policy")})
	assert.Error(t, err)
	assert.Error(t, service.Start())
	assert.Error(t, service.Stop(time.Second))
}

func TestAuditService_LogEvent(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	service := startedService(t, mockRepo, Config{BufferSize: 100, WorkerCount: 2})

	businessID := uuid.New()
	err := service.LogEvent(&AuditEvent{Log: models.NewAuditLog(businessID, models.AuditActionPolicyCreated, "policy")})
	require.NoError(t, err)

	// Stop drains the queue
	require.NoError(t, service.Stop(5*time.Second))

	insertedLogs := mockRepo.GetInsertedLogs()
	require.Len(t, insertedLogs, 1)
	assert.Equal(t, businessID, insertedLogs[0].BusinessID)
	assert.Equal(t, models.AuditActionPolicyCreated, insertedLogs[0].Action)
}

func TestAuditService_LogEventNotStarted(t *testing.T) {
	service := NewAuditService(new(MockAuditRepository), zap.NewNop(), DefaultConfig())
	err := service.LogEvent(&AuditEvent{Log: models.NewAuditLog(uuid.New(), models.AuditActionPolicyCreated, "policy")})
	assert.Error(t, err)
}

func TestAuditService_LogEventBlocking(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	service := startedService(t, mockRepo, Config{BufferSize: 100, WorkerCount: 2})

	err := service.LogEventBlocking(context.Background(), &AuditEvent{Log: models.NewAuditLog(uuid.New(), models.AuditActionPolicyUpdated, "policy")})
	require.NoError(t, err)

	require.NoError(t, service.Stop(5*time.Second))
	assert.Len(t, mockRepo.GetInsertedLogs(), 1)
}

func TestAuditService_LogEventBlockingCancelled(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	release := make(chan struct{})
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		<-release
	})
	service := startedService(t, mockRepo, Config{BufferSize: 1, WorkerCount: 1})

	// one event held by the worker, one filling the buffer
	require.NoError(t, service.LogEvent(&AuditEvent{Log: models.NewAuditLog(uuid.New(), models.AuditActionPolicyCreated, "policy")}))
	assert.Eventually(t, func() bool { return service.GetStats().PendingEvents == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, service.LogEvent(&AuditEvent{Log: models.NewAuditLog(uuid.New(), models.AuditActionPolicyCreated, "policy")}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := service.LogEventBlocking(ctx, &AuditEvent{Log: models.NewAuditLog(uuid.New(), models.AuditActionPolicyCreated, "policy")})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, service.Stop(5*time.Second))
}

func TestAuditService_ConcurrentLogging(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	service := startedService(t, mockRepo, Config{BufferSize: 1000, WorkerCount: 5})

	businessID := uuid.New()
	goroutineCount := 10
	eventsPerGoroutine := 10
	var wg sync.WaitGroup

	for i := 0; i < goroutineCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				log := models.NewAuditLog(businessID, models.AuditActionCancellationRequested, "cancellation_request")
				assert.NoError(t, service.LogEvent(&AuditEvent{Log: log}))
			}
		}()
	}
	wg.Wait()

	require.NoError(t, service.Stop(5*time.Second))
	assert.Len(t, mockRepo.GetInsertedLogs(), goroutineCount*eventsPerGoroutine)
}

func TestAuditService_InsertFailureIsLogged(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(errors.New("db down"))
	service := startedService(t, mockRepo, Config{BufferSize: 10, WorkerCount: 1})

	require.NoError(t, service.LogEvent(&AuditEvent{Log: models.NewAuditLog(uuid.New(), models.AuditActionPolicyCreated, "policy")}))
	require.NoError(t, service.Stop(5*time.Second))
	mockRepo.AssertNumberOfCalls(t, "Insert", 1)
}

func TestAuditService_LogCancellationDecision(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	service := startedService(t, mockRepo, DefaultConfig())

	fee := money.MustParse("4.00")
	order := &models.Order{ID: uuid.New(), BusinessID: uuid.New(), Status: policy.OrderStatusProcessing}
	d := policy.Decision{Status: policy.StatusPending, Fee: &fee, Message: "fee applies", Rule: policy.RuleFeeWindow}
	req := models.NewCancellationRequest(order, "late", d)
	userID := uuid.New()

	err := service.LogCancellationDecision(req, d, Actor{UserID: &userID, RequestID: "req-1", IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	require.NoError(t, service.Stop(5*time.Second))

	insertedLogs := mockRepo.GetInsertedLogs()
	require.Len(t, insertedLogs, 1)
	log := insertedLogs[0]
	assert.Equal(t, models.AuditActionCancellationRequested, log.Action)
	assert.Equal(t, req.ID, *log.ResourceID)
	assert.Equal(t, userID, *log.ActorID)
	assert.Equal(t, "PENDING", *log.Outcome)
	assert.Equal(t, "FEE_WINDOW", *log.Rule)
	assert.Equal(t, "req-1", log.RequestID)
	assert.Contains(t, string(log.Details), `"fee":"4.00"`)

	recent := service.Recent(10)
	require.Len(t, recent, 1)
	assert.Equal(t, order.ID, recent[0].OrderID)
	assert.Equal(t, policy.RuleFeeWindow, recent[0].Decision.Rule)
}

func TestAuditService_LogRefundDecision(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	service := startedService(t, mockRepo, DefaultConfig())

	amount := money.MustParse("30.00")
	order := &models.Order{ID: uuid.New(), BusinessID: uuid.New()}
	d := policy.Decision{Status: policy.StatusAutoApproved, AutoProcessed: true, ApprovedAmount: &amount, Rule: policy.RuleReasonFastPath}
	req := models.NewRefundRequest(order, policy.ReasonMissingItems, amount, []uuid.UUID{uuid.New()}, d)

	require.NoError(t, service.LogRefundDecision(req, d, Actor{}))
	require.NoError(t, service.Stop(5*time.Second))

	insertedLogs := mockRepo.GetInsertedLogs()
	require.Len(t, insertedLogs, 1)
	assert.Equal(t, models.AuditActionRefundRequested, insertedLogs[0].Action)
	assert.Nil(t, insertedLogs[0].ActorID)
	assert.Contains(t, string(insertedLogs[0].Details), `"approved_amount":"30.00"`)

	assert.Len(t, service.RecentForBusiness(order.BusinessID, 0), 1)
	assert.Empty(t, service.RecentForBusiness(uuid.New(), 0))
}

func TestAuditService_RedactsReason(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	service := startedService(t, mockRepo, DefaultConfig())

	order := &models.Order{ID: uuid.New(), BusinessID: uuid.New(), Status: policy.OrderStatusConfirmed}
	d := policy.Decision{Status: policy.StatusPending, Rule: policy.RuleNoMatch}
	req := models.NewCancellationRequest(order, "wrong address, call 0532 123 45 67", d)

	require.NoError(t, service.LogCancellationDecision(req, d, Actor{}))
	require.NoError(t, service.Stop(5*time.Second))

	insertedLogs := mockRepo.GetInsertedLogs()
	require.Len(t, insertedLogs, 1)
	assert.Contains(t, string(insertedLogs[0].Details), `"reason":"wrong address, call [PHONE_REDACTED]"`)
	assert.Equal(t, "wrong address, call 0532 123 45 67", req.Reason)
}

func TestAuditService_LogPolicyChange(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	service := startedService(t, mockRepo, DefaultConfig())

	p := models.NewBusinessPolicy(policy.Document{BusinessID: uuid.New()})
	userID := uuid.New()

	require.NoError(t, service.LogPolicyChange(p, models.AuditActionPolicyActivated, Actor{UserID: &userID}))
	require.NoError(t, service.LogPolicyRejected(p, errors.New("malformed")))
	require.NoError(t, service.Stop(5*time.Second))

	insertedLogs := mockRepo.GetInsertedLogs()
	require.Len(t, insertedLogs, 2)
	actions := []models.AuditAction{insertedLogs[0].Action, insertedLogs[1].Action}
	assert.ElementsMatch(t, []models.AuditAction{models.AuditActionPolicyActivated, models.AuditActionPolicyRejected}, actions)

	// policy events are not decisions
	assert.Empty(t, service.Recent(0))
}

func TestAuditService_BufferFull(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	release := make(chan struct{})
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		<-release
	})
	service := startedService(t, mockRepo, Config{BufferSize: 5, WorkerCount: 1})

	successCount := 0
	for i := 0; i < 20; i++ {
		log := models.NewAuditLog(uuid.New(), models.AuditActionPolicyCreated, "policy")
		if err := service.LogEvent(&AuditEvent{Log: log}); err == nil {
			successCount++
		}
	}

	// At most buffer + the one held by the worker
	assert.LessOrEqual(t, successCount, 6)
	assert.GreaterOrEqual(t, successCount, 5)

	close(release)
	require.NoError(t, service.Stop(5*time.Second))
}

func TestAuditService_StopTimeout(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	release := make(chan struct{})
	defer close(release)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		<-release
	})
	service := startedService(t, mockRepo, Config{BufferSize: 100, WorkerCount: 1})

	require.NoError(t, service.LogEvent(&AuditEvent{Log: models.NewAuditLog(uuid.New(), models.AuditActionPolicyCreated, "policy")}))

	err := service.Stop(50 * time.Millisecond)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestAuditService_ListByBusiness(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	businessID := uuid.New()
	opts := repositories.ListOptions{Limit: 10}
	logs := []*models.AuditLog{models.NewAuditLog(businessID, models.AuditActionPolicyCreated, "policy")}
	mockRepo.On("ListByBusiness", mock.Anything, businessID, opts).Return(logs, nil)

	service := NewAuditService(mockRepo, zap.NewNop(), DefaultConfig())
	got, err := service.ListByBusiness(context.Background(), businessID, opts)

	require.NoError(t, err)
	assert.Equal(t, logs, got)
	mockRepo.AssertExpectations(t)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, 1000, config.BufferSize)
	assert.Equal(t, 5, config.WorkerCount)
	assert.Equal(t, 500, config.HistorySize)
}
