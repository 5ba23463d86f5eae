package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/Sternrassler/skyfi-gateway/pkg/cache"
)

// Webhook is a registered event callback.
type Webhook struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events,omitempty"`
	AOIID     string    `json:"aoiId,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// WebhookRequest registers a webhook.
type WebhookRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events,omitempty"`
	AOIID  string   `json:"aoiId,omitempty"`
	Secret string   `json:"secret,omitempty"`
}

// ListWebhooks returns all registered webhooks.
func (c *Client) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	list, err := doList[Webhook](ctx, c, request{
		operation: "list_webhooks",
		method:    http.MethodGet,
		endpoint:  "webhooks",
		ttl:       cache.TTLWebhooks,
	}, "webhooks")
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

// CreateWebhook registers a webhook.
func (c *Client) CreateWebhook(ctx context.Context, req WebhookRequest) (*Webhook, error) {
	if err := validateCallbackURL(req.URL); err != nil {
		return nil, err
	}

	var webhook Webhook
	if err := c.do(ctx, request{
		operation:  "create_webhook",
		method:     http.MethodPost,
		endpoint:   "webhooks",
		body:       req,
		invalidate: []string{"webhooks"},
	}, &webhook); err != nil {
		return nil, err
	}
	return &webhook, nil
}

// DeleteWebhook removes a webhook.
func (c *Client) DeleteWebhook(ctx context.Context, webhookID string) error {
	id, err := pathID("webhook", webhookID)
	if err != nil {
		return err
	}

	return c.do(ctx, request{
		operation:  "delete_webhook",
		method:     http.MethodDelete,
		endpoint:   "webhooks/" + id,
		invalidate: []string{"webhooks/" + id, "webhooks"},
	}, nil)
}

// validateCallbackURL requires an absolute http(s) URL.
func validateCallbackURL(raw string) error {
	if raw == "" {
		return NewValidationError("webhook url is required", nil)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return NewValidationError("webhook url must be an absolute http(s) URL", err)
	}
	return nil
}
