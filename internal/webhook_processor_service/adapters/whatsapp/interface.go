package whatsapp

import "context"

// Sender is the outbound WhatsApp capability used by the ingestion engine.
// The engine only sends auto-reply texts; the richer agent send path lives in
// the (separate) admin surface and reuses the same client.
type Sender interface {
	// SendText sends a text message and returns the provider message id.
	SendText(ctx context.Context, phone string, body string) (string, error)
}

// MediaSender extends Sender with the media sends used by the agent surface.
type MediaSender interface {
	Sender
	SendImage(ctx context.Context, phone string, mediaURL string, caption string) (string, error)
	SendAudio(ctx context.Context, phone string, mediaURL string) (string, error)
}

var (
	_ MediaSender = (*CloudClient)(nil)
	_ MediaSender = (*MockClient)(nil)
)
