package domain

import (
	"strconv"
	"time"
)

// Provider webhook payload DTOs, following the Cloud API envelope:
// entry[].changes[].value, where each value group optionally carries
// contacts[], messages[] and/or statuses[].

type WebhookEnvelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string     `json:"field"`
	Value ValueGroup `json:"value"`
}

// ValueGroup is one coherent batch of inbound events.
type ValueGroup struct {
	MessagingProduct string           `json:"messaging_product,omitempty"`
	Metadata         *ValueMetadata   `json:"metadata,omitempty"`
	Contacts         []ContactInfo    `json:"contacts,omitempty"`
	Messages         []InboundMessage `json:"messages,omitempty"`
	Statuses         []StatusEvent    `json:"statuses,omitempty"`
}

type ValueMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number,omitempty"`
	PhoneNumberID      string `json:"phone_number_id,omitempty"`
}

type ContactInfo struct {
	WaID    string         `json:"wa_id"`
	Profile ContactProfile `json:"profile"`
}

type ContactProfile struct {
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// InboundMessage is one provider message. The provider-assigned ID is the
// idempotency key for inbound processing.
type InboundMessage struct {
	ID        string          `json:"id"`
	From      string          `json:"from"`
	Timestamp string          `json:"timestamp,omitempty"`
	Type      string          `json:"type"`
	Text      *TextBody       `json:"text,omitempty"`
	Image     *MediaBody      `json:"image,omitempty"`
	Video     *MediaBody      `json:"video,omitempty"`
	Audio     *MediaBody      `json:"audio,omitempty"`
	Sticker   *MediaBody      `json:"sticker,omitempty"`
	Document  *MediaBody      `json:"document,omitempty"`
	Context   *MessageContext `json:"context,omitempty"`
}

type TextBody struct {
	Body string `json:"body"`
}

type MediaBody struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// MessageContext carries the quoted-message reference for replies.
type MessageContext struct {
	From string `json:"from,omitempty"`
	ID   string `json:"id,omitempty"`
}

// StatusEvent is one delivery-status update for an outbound message.
type StatusEvent struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp,omitempty"`
	RecipientID string `json:"recipient_id,omitempty"`
}

// EventTime parses the provider's unix-seconds timestamp, falling back to now.
func (s StatusEvent) EventTime(now time.Time) time.Time {
	if s.Timestamp == "" {
		return now
	}
	secs, err := strconv.ParseInt(s.Timestamp, 10, 64)
	if err != nil {
		return now
	}
	return time.Unix(secs, 0).UTC()
}
