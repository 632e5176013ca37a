package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrClaimLost is returned by Claim when the item was no longer pending,
// meaning another consumer instance won the claim or the item was already
// resolved.
var ErrClaimLost = errors.New("queue item claim lost")

// ErrNotFound is returned when a queue item does not exist.
var ErrNotFound = errors.New("queue item not found")

// QueueRepository is the persisted queue store. Claim must be atomic at the
// store level: at most one consumer may move a given item to processing.
type QueueRepository interface {
	// Enqueue inserts a new pending item carrying the raw webhook payload.
	Enqueue(ctx context.Context, payload []byte) (uuid.UUID, error)
	// PendingPage returns up to limit pending item IDs, oldest first.
	PendingPage(ctx context.Context, limit int) ([]uuid.UUID, error)
	// Claim atomically transitions a pending item to processing, increments
	// its attempt count and records the claimant. Returns ErrClaimLost when
	// the item's status was not pending.
	Claim(ctx context.Context, id uuid.UUID, claimedBy string) (*ClaimedItem, error)
	// MarkProcessed resolves a claimed item as successfully applied.
	MarkProcessed(ctx context.Context, id uuid.UUID, processedBy string) error
	// MarkRetry reverts a claimed item to pending so a later tick retries it.
	MarkRetry(ctx context.Context, id uuid.UUID, lastError string) error
	// MarkError resolves a claimed item as permanently failed.
	MarkError(ctx context.Context, id uuid.UUID, lastError string) error
}
