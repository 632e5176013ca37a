package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdesk/golang_services/internal/webhook_processor_service/domain"
)

func TestExtractPayload_FullEnvelope(t *testing.T) {
	payload := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "1234",
			"changes": [{
				"field": "messages",
				"value": {
					"contacts": [{"wa_id": "5511999990000", "profile": {"name": "Maria"}}],
					"messages": [{"id": "wamid.A", "from": "5511999990000", "type": "text", "text": {"body": "oi"}}]
				}
			}]
		}]
	}`)

	extraction, err := ExtractPayload(payload)
	require.NoError(t, err)
	require.Len(t, extraction.MessageGroups, 1)
	assert.Empty(t, extraction.StatusGroups)

	group := extraction.MessageGroups[0]
	require.Len(t, group.Messages, 1)
	assert.Equal(t, "wamid.A", group.Messages[0].ID)
	assert.Equal(t, "Maria", group.Contacts[0].Profile.Name)
}

func TestExtractPayload_BareValue(t *testing.T) {
	payload := []byte(`{
		"value": {
			"statuses": [{"id": "wamid.B", "status": "delivered", "timestamp": "1700000000"}]
		}
	}`)

	extraction, err := ExtractPayload(payload)
	require.NoError(t, err)
	assert.Empty(t, extraction.MessageGroups)
	require.Len(t, extraction.StatusGroups, 1)
	assert.Equal(t, "delivered", extraction.StatusGroups[0].Statuses[0].Status)
}

func TestExtractPayload_LegacyUnwrapped(t *testing.T) {
	payload := []byte(`{
		"contacts": [{"wa_id": "5511888887777", "profile": {"name": "João"}}],
		"messages": [{"id": "wamid.C", "from": "5511888887777", "type": "text", "text": {"body": "bom dia"}}],
		"statuses": [{"id": "wamid.D", "status": "read"}]
	}`)

	extraction, err := ExtractPayload(payload)
	require.NoError(t, err)
	require.Len(t, extraction.MessageGroups, 1)
	require.Len(t, extraction.StatusGroups, 1)
	// Both views refer to the same group so contacts travel with the message.
	assert.Equal(t, "João", extraction.MessageGroups[0].Contacts[0].Profile.Name)
}

func TestExtractPayload_MixedGroup(t *testing.T) {
	payload := []byte(`{
		"entry": [{"changes": [{"value": {
			"messages": [{"id": "wamid.E", "from": "5511777776666", "type": "text", "text": {"body": "?"}}],
			"statuses": [{"id": "wamid.F", "status": "sent"}]
		}}]}]
	}`)

	extraction, err := ExtractPayload(payload)
	require.NoError(t, err)
	assert.Len(t, extraction.MessageGroups, 1)
	assert.Len(t, extraction.StatusGroups, 1)
}

func TestExtractPayload_Invalid(t *testing.T) {
	testCases := []struct {
		name    string
		payload []byte
	}{
		{"not json", []byte(`not json at all`)},
		{"empty object", []byte(`{}`)},
		{"unrelated shape", []byte(`{"foo": "bar"}`)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ExtractPayload(tc.payload)
			assert.ErrorIs(t, err, domain.ErrInvalidPayload)
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"5511999990000", "5511999990000"},
		{"+55 (11) 99999-0000", "5511999990000"},
		{"55-11-99999.0000", "5511999990000"},
		{"12345678", "12345678"},
		{"1234567", ""},
		{"abc", ""},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, NormalizePhone(tc.input))
		})
	}
}

func TestClassifyMessage(t *testing.T) {
	testCases := []struct {
		name          string
		msg           domain.InboundMessage
		expectedType  domain.MessageType
		expectedText  string
		expectedMedia string
	}{
		{
			name:         "text message",
			msg:          domain.InboundMessage{Type: "text", Text: &domain.TextBody{Body: "oi"}},
			expectedType: domain.MessageTypeText,
			expectedText: "oi",
		},
		{
			name:         "text message without body",
			msg:          domain.InboundMessage{Type: "text"},
			expectedType: domain.MessageTypeText,
		},
		{
			name:          "image with caption",
			msg:           domain.InboundMessage{Type: "image", Image: &domain.MediaBody{ID: "media-1", Caption: "foto"}},
			expectedType:  domain.MessageTypeImage,
			expectedText:  "foto",
			expectedMedia: "wamedia://media-1",
		},
		{
			name:          "audio without caption",
			msg:           domain.InboundMessage{Type: "audio", Audio: &domain.MediaBody{ID: "media-2"}},
			expectedType:  domain.MessageTypeAudio,
			expectedMedia: "wamedia://media-2",
		},
		{
			name:          "document falls back to filename",
			msg:           domain.InboundMessage{Type: "document", Document: &domain.MediaBody{ID: "media-3", Filename: "nota.pdf"}},
			expectedType:  domain.MessageTypeDocument,
			expectedText:  "nota.pdf",
			expectedMedia: "wamedia://media-3",
		},
		{
			name:          "sticker",
			msg:           domain.InboundMessage{Type: "sticker", Sticker: &domain.MediaBody{ID: "media-4"}},
			expectedType:  domain.MessageTypeSticker,
			expectedMedia: "wamedia://media-4",
		},
		{
			name:         "unknown type",
			msg:          domain.InboundMessage{Type: "reaction"},
			expectedType: domain.MessageTypeOther,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msgType, content, mediaRef := ClassifyMessage(tc.msg)
			assert.Equal(t, tc.expectedType, msgType)
			assert.Equal(t, tc.expectedText, content)
			assert.Equal(t, tc.expectedMedia, mediaRef)
		})
	}
}
