package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zapdesk/golang_services/internal/queue_consumer_service/domain"
	processordomain "github.com/zapdesk/golang_services/internal/webhook_processor_service/domain"
)

// PendingQueueSubject is published whenever a new pending item lands in the
// queue store; consumers use it to schedule an immediate tick instead of
// waiting out the poll interval.
const PendingQueueSubject = "webhook.queue.pending"

// PayloadProcessor is the single entry point both the queue consumer and the
// webhook HTTP endpoint call.
type PayloadProcessor interface {
	ProcessWebhookPayload(ctx context.Context, payload []byte) error
}

// PendingListener is the broker-side filtered subscription for new pending items.
type PendingListener interface {
	SubscribeToSubjectWithQueue(ctx context.Context, subject string, queueGroup string, handler func(msg *nats.Msg)) error
}

// ConsumerConfig holds the tunables of one consumer instance.
type ConsumerConfig struct {
	PollInterval    time.Duration `mapstructure:"QUEUE_POLL_INTERVAL"`
	BatchSize       int           `mapstructure:"QUEUE_BATCH_SIZE"`
	MaxAttempts     int           `mapstructure:"QUEUE_MAX_ATTEMPTS"`
	ListenerEnabled bool          `mapstructure:"QUEUE_LISTENER_ENABLED"`
}

// Consumer drains the webhook queue. It is safe to run many instances
// concurrently: claims are atomic at the store level, so no instance-to-
// instance coordination exists. Within one instance, ticks run on a single
// goroutine, which is the one-tick-at-a-time guard.
type Consumer struct {
	repo     domain.QueueRepository
	proc     PayloadProcessor
	listener PendingListener
	logger   *slog.Logger
	config   ConsumerConfig
	identity string

	// kick has capacity 1: scheduled-but-not-yet-run immediate ticks coalesce.
	kick chan struct{}
}

// NewConsumer creates a Consumer with a unique instance identity used as the
// processing_by owner tag.
func NewConsumer(
	repo domain.QueueRepository,
	proc PayloadProcessor,
	listener PendingListener,
	logger *slog.Logger,
	cfg ConsumerConfig,
) *Consumer {
	hostname, _ := os.Hostname()
	identity := fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), uuid.NewString()[:8])
	return &Consumer{
		repo:     repo,
		proc:     proc,
		listener: listener,
		logger:   logger.With("component", "queue_consumer", "identity", identity),
		config:   cfg,
		identity: identity,
		kick:     make(chan struct{}, 1),
	}
}

// Identity returns the owner tag this instance writes into processing_by.
func (c *Consumer) Identity() string { return c.identity }

// Kick schedules an out-of-band immediate tick. Multiple kicks before the
// next tick coalesce into one.
func (c *Consumer) Kick() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// Run polls the queue until ctx is cancelled. Stop is cooperative: cancelling
// ctx halts future ticks and detaches the listener, but an in-flight tick
// finishes so partially-claimed items are resolved correctly.
func (c *Consumer) Run(ctx context.Context) error {
	if c.config.ListenerEnabled && c.listener != nil {
		go func() {
			err := c.listener.SubscribeToSubjectWithQueue(ctx, PendingQueueSubject, "queue_consumer_group", func(msg *nats.Msg) {
				queuePendingNotifyCounter.Inc()
				c.Kick()
			})
			if err != nil {
				c.logger.ErrorContext(ctx, "Pending-item subscription failed; polling continues on the timer alone", "error", err)
			}
		}()
	}

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	c.logger.InfoContext(ctx, "Queue consumer started",
		"poll_interval", c.config.PollInterval,
		"batch_size", c.config.BatchSize,
		"max_attempts", c.config.MaxAttempts,
		"listener_enabled", c.config.ListenerEnabled,
	)

	for {
		trigger := "timer"
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Queue consumer stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
		case <-c.kick:
			trigger = "kick"
		}

		timer := prometheus.NewTimer(queueTickDurationHist.WithLabelValues(trigger))
		full := c.tick(ctx)
		timer.ObserveDuration()

		// A full page means backlog remains; drain without waiting a full interval.
		if full {
			c.Kick()
		}
	}
}

// tick processes one bounded page of pending items sequentially. It reports
// whether the page was full. Transient store errors are logged and left for
// the next tick; they never crash the consumer.
func (c *Consumer) tick(ctx context.Context) bool {
	ids, err := c.repo.PendingPage(ctx, c.config.BatchSize)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to poll pending queue items", "error", err)
		return false
	}
	if len(ids) == 0 {
		return false
	}

	c.logger.DebugContext(ctx, "Polled pending queue items", "count", len(ids))

	for _, id := range ids {
		claimed, err := c.repo.Claim(ctx, id, c.identity)
		if err != nil {
			if errors.Is(err, domain.ErrClaimLost) {
				queueItemsProcessedCounter.WithLabelValues("claim_lost").Inc()
				c.logger.DebugContext(ctx, "Queue item claimed elsewhere", "item_id", id)
				continue
			}
			c.logger.ErrorContext(ctx, "Failed to claim queue item", "error", err, "item_id", id)
			continue
		}
		c.processItem(ctx, claimed)
	}

	return len(ids) == c.config.BatchSize
}

// processItem resolves one claimed item. Only the claimant ever writes the
// terminal or retry state back.
func (c *Consumer) processItem(ctx context.Context, item *domain.ClaimedItem) {
	if len(item.Payload) == 0 || !json.Valid(item.Payload) {
		c.resolvePermanent(ctx, item.ID, "missing or invalid payload")
		return
	}

	err := c.proc.ProcessWebhookPayload(ctx, item.Payload)
	if err == nil {
		if markErr := c.repo.MarkProcessed(ctx, item.ID, c.identity); markErr != nil {
			c.logger.ErrorContext(ctx, "Failed to mark queue item processed", "error", markErr, "item_id", item.ID)
			return
		}
		queueItemsProcessedCounter.WithLabelValues("processed").Inc()
		c.logger.InfoContext(ctx, "Queue item processed", "item_id", item.ID, "attempts", item.Attempts)
		return
	}

	if errors.Is(err, processordomain.ErrInvalidPayload) {
		c.resolvePermanent(ctx, item.ID, err.Error())
		return
	}

	if item.Attempts < c.config.MaxAttempts {
		if markErr := c.repo.MarkRetry(ctx, item.ID, err.Error()); markErr != nil {
			c.logger.ErrorContext(ctx, "Failed to revert queue item for retry", "error", markErr, "item_id", item.ID)
			return
		}
		queueItemsProcessedCounter.WithLabelValues("retried").Inc()
		c.logger.WarnContext(ctx, "Queue item processing failed, re-queued",
			"item_id", item.ID, "attempts", item.Attempts, "max_attempts", c.config.MaxAttempts, "error", err)
		return
	}

	if markErr := c.repo.MarkError(ctx, item.ID, err.Error()); markErr != nil {
		c.logger.ErrorContext(ctx, "Failed to mark queue item as failed", "error", markErr, "item_id", item.ID)
		return
	}
	queueItemsProcessedCounter.WithLabelValues("error_exhausted").Inc()
	c.logger.ErrorContext(ctx, "Queue item failed after max attempts, surfaced for manual replay",
		"item_id", item.ID, "attempts", item.Attempts, "error", err)
}

func (c *Consumer) resolvePermanent(ctx context.Context, id uuid.UUID, reason string) {
	if err := c.repo.MarkError(ctx, id, reason); err != nil {
		c.logger.ErrorContext(ctx, "Failed to mark queue item as permanently failed", "error", err, "item_id", id)
		return
	}
	queueItemsProcessedCounter.WithLabelValues("error_permanent").Inc()
	c.logger.ErrorContext(ctx, "Queue item failed permanently", "item_id", id, "reason", reason)
}
