package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/zapdesk/golang_services/internal/queue_consumer_service/domain"
	processordomain "github.com/zapdesk/golang_services/internal/webhook_processor_service/domain"
)

// --- Mocks ---

type MockQueueRepository struct {
	mock.Mock
}

func (m *MockQueueRepository) Enqueue(ctx context.Context, payload []byte) (uuid.UUID, error) {
	args := m.Called(ctx, payload)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockQueueRepository) PendingPage(ctx context.Context, limit int) ([]uuid.UUID, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockQueueRepository) Claim(ctx context.Context, id uuid.UUID, claimedBy string) (*domain.ClaimedItem, error) {
	args := m.Called(ctx, id, claimedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ClaimedItem), args.Error(1)
}

func (m *MockQueueRepository) MarkProcessed(ctx context.Context, id uuid.UUID, processedBy string) error {
	args := m.Called(ctx, id, processedBy)
	return args.Error(0)
}

func (m *MockQueueRepository) MarkRetry(ctx context.Context, id uuid.UUID, lastError string) error {
	args := m.Called(ctx, id, lastError)
	return args.Error(0)
}

func (m *MockQueueRepository) MarkError(ctx context.Context, id uuid.UUID, lastError string) error {
	args := m.Called(ctx, id, lastError)
	return args.Error(0)
}

type MockPayloadProcessor struct {
	mock.Mock
}

func (m *MockPayloadProcessor) ProcessWebhookPayload(ctx context.Context, payload []byte) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

// --- Helpers ---

func setupConsumerTest(t *testing.T) (*Consumer, *MockQueueRepository, *MockPayloadProcessor) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := new(MockQueueRepository)
	proc := new(MockPayloadProcessor)
	consumer := NewConsumer(repo, proc, nil, logger, ConsumerConfig{
		PollInterval: time.Second,
		BatchSize:    10,
		MaxAttempts:  3,
	})
	return consumer, repo, proc
}

var validPayload = []byte(`{"messages": [{"id": "wamid.X", "from": "5511999990000", "type": "text", "text": {"body": "oi"}}]}`)

// --- Tests ---

func TestConsumerTick_SuccessfulItemMarkedProcessed(t *testing.T) {
	consumer, repo, proc := setupConsumerTest(t)
	itemID := uuid.New()

	repo.On("PendingPage", mock.Anything, 10).Return([]uuid.UUID{itemID}, nil).Once()
	repo.On("Claim", mock.Anything, itemID, consumer.Identity()).Return(&domain.ClaimedItem{
		ID: itemID, Payload: validPayload, Attempts: 1,
	}, nil).Once()
	proc.On("ProcessWebhookPayload", mock.Anything, []byte(validPayload)).Return(nil).Once()
	repo.On("MarkProcessed", mock.Anything, itemID, consumer.Identity()).Return(nil).Once()

	full := consumer.tick(context.Background())
	assert.False(t, full)

	repo.AssertExpectations(t)
	proc.AssertExpectations(t)
}

func TestConsumerTick_ClaimLostSkipsItem(t *testing.T) {
	consumer, repo, proc := setupConsumerTest(t)
	itemID := uuid.New()

	repo.On("PendingPage", mock.Anything, 10).Return([]uuid.UUID{itemID}, nil).Once()
	repo.On("Claim", mock.Anything, itemID, consumer.Identity()).Return(nil, domain.ErrClaimLost).Once()

	consumer.tick(context.Background())

	proc.AssertNotCalled(t, "ProcessWebhookPayload", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "MarkError", mock.Anything, mock.Anything, mock.Anything)
}

func TestConsumerTick_TransientFailureRequeues(t *testing.T) {
	consumer, repo, proc := setupConsumerTest(t)
	itemID := uuid.New()
	procErr := errors.New("db connection refused")

	repo.On("PendingPage", mock.Anything, 10).Return([]uuid.UUID{itemID}, nil).Once()
	repo.On("Claim", mock.Anything, itemID, consumer.Identity()).Return(&domain.ClaimedItem{
		ID: itemID, Payload: validPayload, Attempts: 1,
	}, nil).Once()
	proc.On("ProcessWebhookPayload", mock.Anything, mock.Anything).Return(procErr).Once()
	repo.On("MarkRetry", mock.Anything, itemID, procErr.Error()).Return(nil).Once()

	consumer.tick(context.Background())

	repo.AssertNotCalled(t, "MarkError", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestConsumerTick_ExhaustedAttemptsMarkedError(t *testing.T) {
	consumer, repo, proc := setupConsumerTest(t)
	itemID := uuid.New()
	procErr := errors.New("db connection refused")

	repo.On("PendingPage", mock.Anything, 10).Return([]uuid.UUID{itemID}, nil).Once()
	// Attempts already at the configured maximum after the claim increment.
	repo.On("Claim", mock.Anything, itemID, consumer.Identity()).Return(&domain.ClaimedItem{
		ID: itemID, Payload: validPayload, Attempts: 3,
	}, nil).Once()
	proc.On("ProcessWebhookPayload", mock.Anything, mock.Anything).Return(procErr).Once()
	repo.On("MarkError", mock.Anything, itemID, procErr.Error()).Return(nil).Once()

	consumer.tick(context.Background())

	repo.AssertNotCalled(t, "MarkRetry", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

// Structurally-invalid payloads are a permanent failure class: no retry even
// on the first attempt.
func TestConsumerTick_InvalidPayloadNeverRetried(t *testing.T) {
	consumer, repo, proc := setupConsumerTest(t)
	itemID := uuid.New()
	procErr := fmt.Errorf("%w: no entry present", processordomain.ErrInvalidPayload)

	repo.On("PendingPage", mock.Anything, 10).Return([]uuid.UUID{itemID}, nil).Once()
	repo.On("Claim", mock.Anything, itemID, consumer.Identity()).Return(&domain.ClaimedItem{
		ID: itemID, Payload: validPayload, Attempts: 1,
	}, nil).Once()
	proc.On("ProcessWebhookPayload", mock.Anything, mock.Anything).Return(procErr).Once()
	repo.On("MarkError", mock.Anything, itemID, procErr.Error()).Return(nil).Once()

	consumer.tick(context.Background())

	repo.AssertNotCalled(t, "MarkRetry", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestConsumerTick_MalformedStoredPayloadSkipsProcessor(t *testing.T) {
	consumer, repo, proc := setupConsumerTest(t)
	itemID := uuid.New()

	repo.On("PendingPage", mock.Anything, 10).Return([]uuid.UUID{itemID}, nil).Once()
	repo.On("Claim", mock.Anything, itemID, consumer.Identity()).Return(&domain.ClaimedItem{
		ID: itemID, Payload: []byte("{broken"), Attempts: 1,
	}, nil).Once()
	repo.On("MarkError", mock.Anything, itemID, "missing or invalid payload").Return(nil).Once()

	consumer.tick(context.Background())

	proc.AssertNotCalled(t, "ProcessWebhookPayload", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestConsumerTick_FullPageReportsBacklog(t *testing.T) {
	consumer, repo, proc := setupConsumerTest(t)
	consumer.config.BatchSize = 2

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	repo.On("PendingPage", mock.Anything, 2).Return(ids, nil).Once()
	for _, id := range ids {
		repo.On("Claim", mock.Anything, id, consumer.Identity()).Return(&domain.ClaimedItem{
			ID: id, Payload: validPayload, Attempts: 1,
		}, nil).Once()
		repo.On("MarkProcessed", mock.Anything, id, consumer.Identity()).Return(nil).Once()
	}
	proc.On("ProcessWebhookPayload", mock.Anything, mock.Anything).Return(nil).Twice()

	full := consumer.tick(context.Background())
	assert.True(t, full)
}

func TestConsumerTick_PollErrorIsNonFatal(t *testing.T) {
	consumer, repo, proc := setupConsumerTest(t)

	repo.On("PendingPage", mock.Anything, 10).Return(nil, errors.New("db down")).Once()

	full := consumer.tick(context.Background())
	assert.False(t, full)
	proc.AssertNotCalled(t, "ProcessWebhookPayload", mock.Anything, mock.Anything)
}

func TestConsumerKick_Coalesces(t *testing.T) {
	consumer, _, _ := setupConsumerTest(t)

	consumer.Kick()
	consumer.Kick()
	consumer.Kick()

	assert.Len(t, consumer.kick, 1)
}

func TestConsumerRun_StopsOnContextCancel(t *testing.T) {
	consumer, repo, _ := setupConsumerTest(t)
	consumer.config.PollInterval = 5 * time.Millisecond
	repo.On("PendingPage", mock.Anything, 10).Return([]uuid.UUID{}, nil).Maybe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after context cancellation")
	}
}
