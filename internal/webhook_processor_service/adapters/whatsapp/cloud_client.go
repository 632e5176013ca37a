package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// CloudClient talks to a Cloud-API-style /{phone_number_id}/messages endpoint.
type CloudClient struct {
	logger        *slog.Logger
	httpClient    *http.Client
	baseURL       string
	token         string
	phoneNumberID string
}

func NewCloudClient(logger *slog.Logger, baseURL, token, phoneNumberID string, httpClient *http.Client) *CloudClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &CloudClient{
		logger:        logger.With("provider", "whatsapp_cloud"),
		httpClient:    httpClient,
		baseURL:       baseURL,
		token:         token,
		phoneNumberID: phoneNumberID,
	}
}

type sendRequest struct {
	MessagingProduct string     `json:"messaging_product"`
	To               string     `json:"to"`
	Type             string     `json:"type"`
	Text             *textBody  `json:"text,omitempty"`
	Image            *mediaBody `json:"image,omitempty"`
	Audio            *mediaBody `json:"audio,omitempty"`
}

type textBody struct {
	Body string `json:"body"`
}

type mediaBody struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (c *CloudClient) SendText(ctx context.Context, phone string, body string) (string, error) {
	return c.send(ctx, phone, sendRequest{
		MessagingProduct: "whatsapp",
		To:               phone,
		Type:             "text",
		Text:             &textBody{Body: body},
	})
}

func (c *CloudClient) SendImage(ctx context.Context, phone string, mediaURL string, caption string) (string, error) {
	return c.send(ctx, phone, sendRequest{
		MessagingProduct: "whatsapp",
		To:               phone,
		Type:             "image",
		Image:            &mediaBody{Link: mediaURL, Caption: caption},
	})
}

func (c *CloudClient) SendAudio(ctx context.Context, phone string, mediaURL string) (string, error) {
	return c.send(ctx, phone, sendRequest{
		MessagingProduct: "whatsapp",
		To:               phone,
		Type:             "audio",
		Audio:            &mediaBody{Link: mediaURL},
	})
}

func (c *CloudClient) send(ctx context.Context, phone string, req sendRequest) (string, error) {
	reqBytes, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal send request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create send request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.ErrorContext(ctx, "WhatsApp send request failed", "error", err, "to", phone, "type", req.Type)
		return "", fmt.Errorf("whatsapp send: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read send response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		_ = json.Unmarshal(respBody, &apiErr)
		c.logger.ErrorContext(ctx, "WhatsApp send rejected",
			"status_code", resp.StatusCode, "to", phone, "api_error", apiErr.Error.Message)
		return "", fmt.Errorf("whatsapp send: status %d: %s", resp.StatusCode, apiErr.Error.Message)
	}

	var parsed sendResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse send response: %w", err)
	}
	if len(parsed.Messages) == 0 {
		return "", fmt.Errorf("whatsapp send: response carried no message id")
	}

	c.logger.InfoContext(ctx, "WhatsApp message sent", "to", phone, "type", req.Type, "provider_message_id", parsed.Messages[0].ID)
	return parsed.Messages[0].ID, nil
}

// ProfilePictureURL fetches the contact's profile-picture URL. Providers do
// not expose this uniformly; a 404 is reported as an error the avatar cache
// treats as best-effort.
func (c *CloudClient) ProfilePictureURL(ctx context.Context, phone string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/contacts/%s/profile", c.baseURL, c.phoneNumberID, url.PathEscape(phone))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create profile request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("profile fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("profile fetch: status %d", resp.StatusCode)
	}

	var parsed struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to parse profile response: %w", err)
	}
	return parsed.URL, nil
}
