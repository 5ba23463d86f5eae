package client

import (
	"context"
	"net/http"
	"time"

	"github.com/Sternrassler/skyfi-gateway/pkg/cache"
)

// Notification is a standing request to be told about new imagery over an AOI.
type Notification struct {
	ID          string    `json:"id"`
	AOI         string    `json:"aoi"`
	GSDMin      *float64  `json:"gsdMin,omitempty"`
	GSDMax      *float64  `json:"gsdMax,omitempty"`
	ProductType string    `json:"productType,omitempty"`
	WebhookURL  string    `json:"webhookUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NotificationRequest creates a notification.
type NotificationRequest struct {
	AOI         string    `json:"aoi"`
	Geometry    *Geometry `json:"-"`
	GSDMin      *float64  `json:"gsdMin,omitempty"`
	GSDMax      *float64  `json:"gsdMax,omitempty"`
	ProductType string    `json:"productType,omitempty"`
	WebhookURL  string    `json:"webhookUrl"`
}

// NotificationList is one page of notifications.
type NotificationList struct {
	Notifications []Notification `json:"notifications"`
	Total         *int           `json:"total,omitempty"`
}

// ListNotifications returns notifications, paged by pageNumber/pageSize
// when non-zero.
func (c *Client) ListNotifications(ctx context.Context, pageNumber, pageSize int) (*NotificationList, error) {
	if pageNumber < 0 || pageSize < 0 {
		return nil, NewValidationError("page number and size must not be negative", nil)
	}

	params := map[string]any{}
	if pageNumber > 0 {
		params["pageNumber"] = pageNumber
	}
	if pageSize > 0 {
		params["pageSize"] = pageSize
	}

	list, err := doList[Notification](ctx, c, request{
		operation: "list_notifications",
		method:    http.MethodGet,
		endpoint:  "notifications",
		query:     encodeQuery(params),
		ttl:       cache.TTLOrders,
	}, "notifications")
	if err != nil {
		return nil, err
	}
	return &NotificationList{Notifications: list.Items, Total: list.Total}, nil
}

// GetNotification returns a single notification.
func (c *Client) GetNotification(ctx context.Context, notificationID string) (*Notification, error) {
	id, err := pathID("notification", notificationID)
	if err != nil {
		return nil, err
	}

	var n Notification
	if err := c.do(ctx, request{
		operation: "get_notification",
		method:    http.MethodGet,
		endpoint:  "notifications/" + id,
		ttl:       cache.TTLOrders,
	}, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateNotification registers a notification.
func (c *Client) CreateNotification(ctx context.Context, req NotificationRequest) (*Notification, error) {
	aoi, err := normalizeAOI(req.AOI, req.Geometry)
	if err != nil {
		return nil, err
	}
	if err := validateCallbackURL(req.WebhookURL); err != nil {
		return nil, err
	}
	if req.GSDMin != nil && req.GSDMax != nil && *req.GSDMin > *req.GSDMax {
		return nil, NewValidationError("gsdMin must not exceed gsdMax", nil)
	}
	req.AOI = aoi

	var n Notification
	if err := c.do(ctx, request{
		operation:  "create_notification",
		method:     http.MethodPost,
		endpoint:   "notifications",
		body:       req,
		invalidate: []string{"notifications"},
	}, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// DeleteNotification removes a notification.
func (c *Client) DeleteNotification(ctx context.Context, notificationID string) error {
	id, err := pathID("notification", notificationID)
	if err != nil {
		return err
	}

	return c.do(ctx, request{
		operation:  "delete_notification",
		method:     http.MethodDelete,
		endpoint:   "notifications/" + id,
		invalidate: []string{"notifications/" + id, "notifications"},
	}, nil)
}
