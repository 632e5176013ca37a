package domain

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageSender identifies who authored a timeline entry.
type MessageSender string

const (
	SenderClient MessageSender = "client"
	SenderAgent  MessageSender = "agent"
	SenderSystem MessageSender = "system"
)

// MessageType classifies the provider message payload.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeVideo    MessageType = "video"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeSticker  MessageType = "sticker"
	MessageTypeDocument MessageType = "document"
	MessageTypeOther    MessageType = "other"
)

// DeliveryStatus is the provider-reported delivery state of an outbound
// message. The zero value means no status has been reported yet.
type DeliveryStatus string

const (
	DeliveryStatusNone      DeliveryStatus = ""
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusRead      DeliveryStatus = "read"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// ParseDeliveryStatus maps a provider status string to a DeliveryStatus.
// Unknown values return false.
func ParseDeliveryStatus(s string) (DeliveryStatus, bool) {
	switch DeliveryStatus(s) {
	case DeliveryStatusSent, DeliveryStatusDelivered, DeliveryStatusRead, DeliveryStatusFailed:
		return DeliveryStatus(s), true
	default:
		return DeliveryStatusNone, false
	}
}

// Priority orders the forward-only statuses: sent(1) < delivered(2) < read(3).
func (s DeliveryStatus) Priority() int {
	switch s {
	case DeliveryStatusSent:
		return 1
	case DeliveryStatusDelivered:
		return 2
	case DeliveryStatusRead:
		return 3
	default:
		return 0
	}
}

// ShouldOverwrite decides whether an incoming status replaces the current one.
// failed always overwrites; an existing failed is always overwritten by any
// new status (recovery); otherwise the status only moves forward. This defends
// against webhook re-delivery and out-of-order arrival.
func ShouldOverwrite(current, incoming DeliveryStatus) bool {
	if incoming == DeliveryStatusFailed {
		return true
	}
	if current == DeliveryStatusFailed {
		return true
	}
	return incoming.Priority() >= current.Priority()
}

// Message is one ticket timeline entry.
type Message struct {
	ID                uuid.UUID       `json:"id"`
	TicketID          uuid.UUID       `json:"ticket_id"`
	Sender            MessageSender   `json:"sender"`
	Content           string          `json:"content"`
	MessageType       MessageType     `json:"message_type"`
	MediaURL          sql.NullString  `json:"media_url,omitempty"`
	WhatsAppMessageID sql.NullString  `json:"whatsapp_message_id,omitempty"`
	WhatsAppMessage   json.RawMessage `json:"whatsapp_message,omitempty"` // serialized provider envelope, used to build reply contexts
	ReplyToID         uuid.NullUUID   `json:"reply_to_id,omitempty"`
	MessageStatus     DeliveryStatus  `json:"message_status,omitempty"`
	StatusUpdatedAt   sql.NullTime    `json:"message_status_updated_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
