package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/google/uuid"
)

// MockClient is a simulated WhatsApp sender for development environments
// without provider credentials.
type MockClient struct {
	logger   *slog.Logger
	failRate float64 // chance to simulate a send failure (0.0 to 1.0)
}

func NewMockClient(logger *slog.Logger, failRate float64) *MockClient {
	return &MockClient{
		logger:   logger.With("provider", "mock-whatsapp"),
		failRate: failRate,
	}
}

func (m *MockClient) SendText(ctx context.Context, phone string, body string) (string, error) {
	if rand.Float64() < m.failRate {
		err := fmt.Errorf("mock whatsapp: simulated send failure for %s", phone)
		m.logger.WarnContext(ctx, "MockClient: simulated failure", "phone", phone)
		return "", err
	}
	id := "wamid.mock." + uuid.NewString()
	m.logger.InfoContext(ctx, "MockClient: text sent (simulated)",
		"phone", phone, "content_len", len(body), "provider_message_id", id)
	return id, nil
}

func (m *MockClient) SendImage(ctx context.Context, phone string, mediaURL string, caption string) (string, error) {
	return m.SendText(ctx, phone, caption)
}

func (m *MockClient) SendAudio(ctx context.Context, phone string, mediaURL string) (string, error) {
	return m.SendText(ctx, phone, mediaURL)
}
