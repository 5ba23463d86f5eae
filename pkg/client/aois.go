package client

import (
	"context"
	"net/http"
	"time"

	"github.com/Sternrassler/skyfi-gateway/pkg/cache"
)

// AOI is an area of interest registered for recurring imagery monitoring.
type AOI struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	AOI         string         `json:"aoi"`
	Description string         `json:"description,omitempty"`
	WebhookURL  string         `json:"webhookUrl,omitempty"`
	Active      bool           `json:"active"`
	Criteria    map[string]any `json:"criteria,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   *time.Time     `json:"updatedAt,omitempty"`
}

// AOIRequest creates or updates an AOI.
type AOIRequest struct {
	Name        string         `json:"name"`
	AOI         string         `json:"aoi"`
	Geometry    *Geometry      `json:"-"`
	Description string         `json:"description,omitempty"`
	WebhookURL  string         `json:"webhookUrl,omitempty"`
	Active      *bool          `json:"active,omitempty"`
	Criteria    map[string]any `json:"criteria,omitempty"`
}

func (r *AOIRequest) normalize() error {
	if r.Name == "" {
		return NewValidationError("aoi name is required", nil)
	}
	aoi, err := normalizeAOI(r.AOI, r.Geometry)
	if err != nil {
		return err
	}
	r.AOI = aoi
	return nil
}

// ListAOIs returns all monitored AOIs.
func (c *Client) ListAOIs(ctx context.Context) ([]AOI, error) {
	list, err := doList[AOI](ctx, c, request{
		operation: "list_aois",
		method:    http.MethodGet,
		endpoint:  "aois",
		ttl:       cache.TTLArchive,
	}, "aois")
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

// GetAOI returns a single AOI.
func (c *Client) GetAOI(ctx context.Context, aoiID string) (*AOI, error) {
	id, err := pathID("aoi", aoiID)
	if err != nil {
		return nil, err
	}

	var aoi AOI
	if err := c.do(ctx, request{
		operation: "get_aoi",
		method:    http.MethodGet,
		endpoint:  "aois/" + id,
		ttl:       cache.TTLArchive,
	}, &aoi); err != nil {
		return nil, err
	}
	return &aoi, nil
}

// CreateAOI registers a new AOI.
func (c *Client) CreateAOI(ctx context.Context, req AOIRequest) (*AOI, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	var aoi AOI
	if err := c.do(ctx, request{
		operation:  "create_aoi",
		method:     http.MethodPost,
		endpoint:   "aois",
		body:       req,
		invalidate: []string{"aois"},
	}, &aoi); err != nil {
		return nil, err
	}
	return &aoi, nil
}

// UpdateAOI replaces an AOI.
func (c *Client) UpdateAOI(ctx context.Context, aoiID string, req AOIRequest) (*AOI, error) {
	id, err := pathID("aoi", aoiID)
	if err != nil {
		return nil, err
	}
	if err := req.normalize(); err != nil {
		return nil, err
	}

	var aoi AOI
	if err := c.do(ctx, request{
		operation:  "update_aoi",
		method:     http.MethodPut,
		endpoint:   "aois/" + id,
		body:       req,
		invalidate: []string{"aois/" + id, "aois"},
	}, &aoi); err != nil {
		return nil, err
	}
	return &aoi, nil
}

// DeleteAOI removes an AOI.
func (c *Client) DeleteAOI(ctx context.Context, aoiID string) error {
	id, err := pathID("aoi", aoiID)
	if err != nil {
		return err
	}

	return c.do(ctx, request{
		operation:  "delete_aoi",
		method:     http.MethodDelete,
		endpoint:   "aois/" + id,
		invalidate: []string{"aois/" + id, "aois"},
	}, nil)
}
