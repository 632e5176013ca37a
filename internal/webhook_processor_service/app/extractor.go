package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zapdesk/golang_services/internal/webhook_processor_service/domain"
)

// Extraction is the canonical form every accepted payload shape normalizes
// into before any state-machine logic runs. A value group carrying both
// messages and statuses appears in both slices.
type Extraction struct {
	MessageGroups []domain.ValueGroup
	StatusGroups  []domain.ValueGroup
}

// rawShape covers every payload shape the provider has historically sent:
// the full entry[].changes[].value envelope, a bare value object, and the
// legacy unwrapped {messages:[...]} / {statuses:[...]} forms.
type rawShape struct {
	Entry    []domain.Entry          `json:"entry"`
	Value    *domain.ValueGroup      `json:"value"`
	Contacts []domain.ContactInfo    `json:"contacts"`
	Messages []domain.InboundMessage `json:"messages"`
	Statuses []domain.StatusEvent    `json:"statuses"`
}

// ExtractPayload sniffs the payload shape and returns the normalized
// extraction. Structurally unrecognizable payloads return ErrInvalidPayload.
func ExtractPayload(raw []byte) (*Extraction, error) {
	var shape rawShape
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	var groups []domain.ValueGroup
	switch {
	case len(shape.Entry) > 0:
		for _, entry := range shape.Entry {
			for _, change := range entry.Changes {
				groups = append(groups, change.Value)
			}
		}
	case shape.Value != nil:
		groups = append(groups, *shape.Value)
	case len(shape.Messages) > 0 || len(shape.Statuses) > 0:
		groups = append(groups, domain.ValueGroup{
			Contacts: shape.Contacts,
			Messages: shape.Messages,
			Statuses: shape.Statuses,
		})
	default:
		return nil, fmt.Errorf("%w: no entry, value, messages or statuses present", domain.ErrInvalidPayload)
	}

	extraction := &Extraction{}
	for _, g := range groups {
		if len(g.Messages) > 0 {
			extraction.MessageGroups = append(extraction.MessageGroups, g)
		}
		if len(g.Statuses) > 0 {
			extraction.StatusGroups = append(extraction.StatusGroups, g)
		}
	}
	return extraction, nil
}

// NormalizePhone reduces a sender identifier to a canonical digit string.
// Returns "" when no plausible phone remains.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 8 {
		return ""
	}
	return digits
}

// ClassifyMessage maps the provider message type onto the local taxonomy and
// derives the content/caption string plus, for media, a locally-addressable
// reference. The raw media blob is fetched lazily elsewhere.
func ClassifyMessage(msg domain.InboundMessage) (domain.MessageType, string, string) {
	mediaRef := func(m *domain.MediaBody) string {
		if m == nil || m.ID == "" {
			return ""
		}
		return "wamedia://" + m.ID
	}

	switch msg.Type {
	case "text":
		content := ""
		if msg.Text != nil {
			content = msg.Text.Body
		}
		return domain.MessageTypeText, content, ""
	case "image":
		return domain.MessageTypeImage, captionOf(msg.Image), mediaRef(msg.Image)
	case "video":
		return domain.MessageTypeVideo, captionOf(msg.Video), mediaRef(msg.Video)
	case "audio":
		return domain.MessageTypeAudio, captionOf(msg.Audio), mediaRef(msg.Audio)
	case "sticker":
		return domain.MessageTypeSticker, captionOf(msg.Sticker), mediaRef(msg.Sticker)
	case "document":
		content := captionOf(msg.Document)
		if content == "" && msg.Document != nil {
			content = msg.Document.Filename
		}
		return domain.MessageTypeDocument, content, mediaRef(msg.Document)
	default:
		return domain.MessageTypeOther, "", ""
	}
}

func captionOf(m *domain.MediaBody) string {
	if m == nil {
		return ""
	}
	return m.Caption
}
