package domain

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QueueStatus is the lifecycle state of a webhook queue item.
type QueueStatus string

const (
	// QueueStatusPending means the item is waiting to be claimed.
	QueueStatusPending QueueStatus = "pending"
	// QueueStatusProcessing means a consumer instance holds the item.
	QueueStatusProcessing QueueStatus = "processing"
	// QueueStatusProcessed means the payload was applied successfully.
	QueueStatusProcessed QueueStatus = "processed"
	// QueueStatusError means the item failed permanently and awaits manual replay.
	QueueStatusError QueueStatus = "error"
)

// legalTransitions encodes the queue item state machine:
// pending -> processing -> {processed | pending (retry) | error}.
var legalTransitions = map[QueueStatus][]QueueStatus{
	QueueStatusPending:    {QueueStatusProcessing},
	QueueStatusProcessing: {QueueStatusProcessed, QueueStatusPending, QueueStatusError},
	QueueStatusProcessed:  {},
	QueueStatusError:      {},
}

// CanTransition reports whether moving from one queue status to another is legal.
func CanTransition(from, to QueueStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// QueueItem is one durable record of a webhook delivery. Items are never
// deleted; terminal rows remain as an audit trail.
type QueueItem struct {
	ID                  uuid.UUID       `json:"id"`
	Status              QueueStatus     `json:"status"`
	Payload             json.RawMessage `json:"payload"`
	Attempts            int             `json:"attempts"`
	ProcessingBy        sql.NullString  `json:"processing_by,omitempty"`
	ProcessingStartedAt sql.NullTime    `json:"processing_started_at,omitempty"`
	ProcessedAt         sql.NullTime    `json:"processed_at,omitempty"`
	ProcessedBy         sql.NullString  `json:"processed_by,omitempty"`
	LastError           sql.NullString  `json:"last_error,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// ClaimedItem is the result of a successful claim: the pre-claim payload and
// the attempt count after the claim incremented it.
type ClaimedItem struct {
	ID       uuid.UUID
	Payload  json.RawMessage
	Attempts int
}
