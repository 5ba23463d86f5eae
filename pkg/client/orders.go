package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/skyfi-gateway/pkg/cache"
)

// OrderSummary is an order as returned by the order listing.
type OrderSummary struct {
	ID          string         `json:"id"`
	Status      string         `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   *time.Time     `json:"updatedAt,omitempty"`
	Price       *float64       `json:"price,omitempty"`
	Currency    string         `json:"currency,omitempty"`
	DeliveryURL string         `json:"deliveryUrl,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// OrderList is one page of the order listing.
type OrderList struct {
	Orders []OrderSummary `json:"orders"`

	// Total is the upstream total when reported.
	Total *int `json:"total,omitempty"`
}

// UnmarshalJSON accepts a bare array or an object holding "orders".
func (l *OrderList) UnmarshalJSON(b []byte) error {
	list, err := decodeListPayload[OrderSummary](b, "orders")
	if err != nil {
		return err
	}
	l.Orders = list.Items
	l.Total = list.Total
	return nil
}

// OrderEvent is a status transition of an order.
type OrderEvent struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
}

// Order is the detailed view of an order.
type Order struct {
	ID          string         `json:"id"`
	OrderType   string         `json:"orderType,omitempty"`
	Status      string         `json:"status"`
	AOI         string         `json:"aoi,omitempty"`
	ArchiveID   string         `json:"archiveId,omitempty"`
	Label       string         `json:"label,omitempty"`
	OrderCost   *float64       `json:"orderCost,omitempty"`
	Currency    string         `json:"currency,omitempty"`
	DeliveryURL string         `json:"deliveryUrl,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   *time.Time     `json:"updatedAt,omitempty"`
	Events      []OrderEvent   `json:"events,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// DeliveryParams configures where imagery is delivered.
type DeliveryParams struct {
	Driver string         `json:"deliveryDriver,omitempty"`
	Params map[string]any `json:"deliveryParams,omitempty"`
}

// ArchiveOrderRequest orders an existing archive image.
type ArchiveOrderRequest struct {
	AOI       string    `json:"aoi"`
	Geometry  *Geometry `json:"-"`
	ArchiveID string    `json:"archiveId"`
	DeliveryParams
	Label      string         `json:"label,omitempty"`
	WebhookURL string         `json:"webhookUrl,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// TaskingOrderRequest orders a new capture.
type TaskingOrderRequest struct {
	AOI                     string    `json:"aoi"`
	Geometry                *Geometry `json:"-"`
	WindowStart             time.Time `json:"windowStart"`
	WindowEnd               time.Time `json:"windowEnd"`
	ProductType             string    `json:"productType"`
	Resolution              string    `json:"resolution"`
	PriorityItem            bool      `json:"priorityItem,omitempty"`
	MaxCloudCoveragePercent *int      `json:"maxCloudCoveragePercent,omitempty"`
	MaxOffNadirAngle        *int      `json:"maxOffNadirAngle,omitempty"`
	RequiredProvider        string    `json:"requiredProvider,omitempty"`
	DeliveryParams
	Label      string         `json:"label,omitempty"`
	WebhookURL string         `json:"webhookUrl,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// RedeliveryRequest asks for an order to be delivered again.
type RedeliveryRequest struct {
	DeliveryParams
}

// ListOrders returns one page of orders. filters are sent as query
// parameters (typically status, startDate, endDate, satellite, limit, offset);
// empty values are dropped.
func (c *Client) ListOrders(ctx context.Context, filters map[string]any) (*OrderList, error) {
	var list OrderList
	err := c.do(ctx, request{
		operation: "list_orders",
		method:    http.MethodGet,
		endpoint:  "orders",
		query:     encodeQuery(filters),
		ttl:       cache.TTLOrders,
	}, &list)
	if err != nil {
		return nil, err
	}
	if list.Orders == nil {
		list.Orders = []OrderSummary{}
	}
	return &list, nil
}

// GetOrder returns a single order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	id, err := pathID("order", orderID)
	if err != nil {
		return nil, err
	}

	var order Order
	if err := c.do(ctx, request{
		operation: "get_order",
		method:    http.MethodGet,
		endpoint:  "orders/" + id,
		ttl:       cache.TTLOrders,
	}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateArchiveOrder places an order for an archive image. A successful
// order clears the entire response cache.
func (c *Client) CreateArchiveOrder(ctx context.Context, req ArchiveOrderRequest) (*Order, error) {
	aoi, err := normalizeAOI(req.AOI, req.Geometry)
	if err != nil {
		return nil, err
	}
	if req.ArchiveID == "" {
		return nil, NewValidationError("archive id is required", nil)
	}
	req.AOI = aoi

	var order Order
	if err := c.do(ctx, request{
		operation:  "create_archive_order",
		method:     http.MethodPost,
		endpoint:   "order-archive",
		body:       req,
		clearCache: true,
	}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateTaskingOrder places a tasking order. A successful order clears the
// entire response cache.
func (c *Client) CreateTaskingOrder(ctx context.Context, req TaskingOrderRequest) (*Order, error) {
	aoi, err := normalizeAOI(req.AOI, req.Geometry)
	if err != nil {
		return nil, err
	}
	if req.WindowStart.IsZero() || req.WindowEnd.IsZero() {
		return nil, NewValidationError("tasking window start and end are required", nil)
	}
	if !req.WindowEnd.After(req.WindowStart) {
		return nil, NewValidationError(fmt.Sprintf("tasking window end %s must be after start %s",
			req.WindowEnd.Format(time.RFC3339), req.WindowStart.Format(time.RFC3339)), nil)
	}
	if req.ProductType == "" || req.Resolution == "" {
		return nil, NewValidationError("product type and resolution are required", nil)
	}
	req.AOI = aoi

	var order Order
	if err := c.do(ctx, request{
		operation:  "create_tasking_order",
		method:     http.MethodPost,
		endpoint:   "order-tasking",
		body:       req,
		clearCache: true,
	}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// RedeliverOrder triggers a new delivery of an order.
func (c *Client) RedeliverOrder(ctx context.Context, orderID string, req RedeliveryRequest) (*Order, error) {
	id, err := pathID("order", orderID)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := c.do(ctx, request{
		operation:  "redeliver_order",
		method:     http.MethodPost,
		endpoint:   "orders/" + id + "/redelivery",
		body:       req,
		invalidate: []string{"orders/" + id, "orders"},
	}, &raw); err != nil {
		return nil, err
	}

	order := Order{ID: orderID}
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &order); err != nil {
			return nil, &APIError{Class: ClassUnknown, Message: "unexpected redelivery payload", Err: err}
		}
	}
	return &order, nil
}
