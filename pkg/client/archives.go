package client

import (
	"context"
	"net/http"
	"time"

	"github.com/Sternrassler/skyfi-gateway/pkg/cache"
)

// Archive is a catalog image available for ordering.
type Archive struct {
	ArchiveID            string     `json:"archiveId"`
	Provider             string     `json:"provider"`
	Constellation        string     `json:"constellation,omitempty"`
	ProductType          string     `json:"productType"`
	PlatformResolution   float64    `json:"platformResolution,omitempty"`
	Resolution           string     `json:"resolution,omitempty"`
	CaptureTimestamp     time.Time  `json:"captureTimestamp"`
	CloudCoveragePercent *float64   `json:"cloudCoveragePercent,omitempty"`
	OffNadirAngle        *float64   `json:"offNadirAngle,omitempty"`
	Footprint            string     `json:"footprint,omitempty"`
	MinSqKm              float64    `json:"minSqKm,omitempty"`
	MaxSqKm              float64    `json:"maxSqKm,omitempty"`
	TotalAreaSquareKm    float64    `json:"totalAreaSquareKm,omitempty"`
	PriceForOneSquareKm  *float64   `json:"priceForOneSquareKm,omitempty"`
	PriceFullScene       *float64   `json:"priceFullScene,omitempty"`
	DeliveryTimeHours    *float64   `json:"deliveryTimeHours,omitempty"`
	OpenData             bool       `json:"openData,omitempty"`
	ThumbnailURLs        []string   `json:"thumbnailUrls,omitempty"`
	GSD                  *float64   `json:"gsd,omitempty"`
	ExpiresAt            *time.Time `json:"expiresAt,omitempty"`
}

// SearchArchivesRequest filters the archive catalog.
type SearchArchivesRequest struct {
	AOI                     string     `json:"aoi"`
	Geometry                *Geometry  `json:"-"`
	FromDate                *time.Time `json:"fromDate,omitempty"`
	ToDate                  *time.Time `json:"toDate,omitempty"`
	MaxCloudCoveragePercent *float64   `json:"maxCloudCoveragePercent,omitempty"`
	MaxOffNadirAngle        *float64   `json:"maxOffNadirAngle,omitempty"`
	Resolutions             []string   `json:"resolutions,omitempty"`
	ProductTypes            []string   `json:"productTypes,omitempty"`
	Providers               []string   `json:"providers,omitempty"`
	OpenData                *bool      `json:"openData,omitempty"`
	MinOverlapRatio         *float64   `json:"minOverlapRatio,omitempty"`
	PageNumber              int        `json:"pageNumber,omitempty"`
	PageSize                int        `json:"pageSize,omitempty"`
}

// SearchArchivesResponse is one page of archive search results.
type SearchArchivesResponse struct {
	Archives []Archive `json:"archives"`
	NextPage string    `json:"nextPage,omitempty"`
	Total    *int      `json:"total,omitempty"`
}

// SearchArchives searches the image catalog.
func (c *Client) SearchArchives(ctx context.Context, req SearchArchivesRequest) (*SearchArchivesResponse, error) {
	aoi, err := normalizeAOI(req.AOI, req.Geometry)
	if err != nil {
		return nil, err
	}
	req.AOI = aoi

	if req.FromDate != nil && req.ToDate != nil && req.ToDate.Before(*req.FromDate) {
		return nil, NewValidationError("toDate must not be before fromDate", nil)
	}
	if req.MaxCloudCoveragePercent != nil && (*req.MaxCloudCoveragePercent < 0 || *req.MaxCloudCoveragePercent > 100) {
		return nil, NewValidationError("maxCloudCoveragePercent must be within [0, 100]", nil)
	}
	if req.PageSize < 0 || req.PageNumber < 0 {
		return nil, NewValidationError("page number and size must not be negative", nil)
	}

	var resp SearchArchivesResponse
	if err := c.do(ctx, request{
		operation: "search_archives",
		method:    http.MethodPost,
		endpoint:  "archives",
		body:      req,
		ttl:       cache.TTLArchive,
	}, &resp); err != nil {
		return nil, err
	}
	if resp.Archives == nil {
		resp.Archives = []Archive{}
	}
	return &resp, nil
}

// GetArchive returns a single archive image.
func (c *Client) GetArchive(ctx context.Context, archiveID string) (*Archive, error) {
	id, err := pathID("archive", archiveID)
	if err != nil {
		return nil, err
	}

	var archive Archive
	if err := c.do(ctx, request{
		operation: "get_archive",
		method:    http.MethodGet,
		endpoint:  "archives/" + id,
		ttl:       cache.TTLArchive,
	}, &archive); err != nil {
		return nil, err
	}
	return &archive, nil
}
