package client

import (
	"context"
	"net/http"
	"time"

	"github.com/Sternrassler/skyfi-gateway/pkg/cache"
)

// PricingRequest asks for prices, optionally scoped to an AOI.
type PricingRequest struct {
	AOI      string    `json:"aoi,omitempty"`
	Geometry *Geometry `json:"-"`
}

// PricingOption is the price of one product at one resolution.
type PricingOption struct {
	ProductType         string   `json:"productType"`
	Resolution          string   `json:"resolution"`
	Provider            string   `json:"provider,omitempty"`
	PricePerSquareKm    *float64 `json:"pricePerSquareKm,omitempty"`
	MinimumAreaSquareKm *float64 `json:"minimumAreaSquareKm,omitempty"`
	TotalPrice          *float64 `json:"totalPrice,omitempty"`
	Currency            string   `json:"currency,omitempty"`
}

// PricingResponse lists available pricing options.
type PricingResponse struct {
	Options []PricingOption `json:"productTypes"`
}

// UnmarshalJSON accepts a bare array or an object holding "productTypes".
func (r *PricingResponse) UnmarshalJSON(b []byte) error {
	list, err := decodeListPayload[PricingOption](b, "productTypes")
	if err != nil {
		return err
	}
	r.Options = list.Items
	return nil
}

// GetPricing returns pricing information. The AOI is optional.
func (c *Client) GetPricing(ctx context.Context, req PricingRequest) (*PricingResponse, error) {
	if req.AOI != "" || req.Geometry != nil {
		aoi, err := normalizeAOI(req.AOI, req.Geometry)
		if err != nil {
			return nil, err
		}
		req.AOI = aoi
	}

	var resp PricingResponse
	if err := c.do(ctx, request{
		operation: "get_pricing",
		method:    http.MethodPost,
		endpoint:  "pricing",
		body:      req,
		ttl:       cache.TTLArchive,
	}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FeasibilityRequest checks whether a tasking capture is possible.
type FeasibilityRequest struct {
	AOI                     string    `json:"aoi"`
	Geometry                *Geometry `json:"-"`
	ProductType             string    `json:"productType"`
	Resolution              string    `json:"resolution"`
	StartDate               time.Time `json:"startDate"`
	EndDate                 time.Time `json:"endDate"`
	MaxCloudCoveragePercent *int      `json:"maxCloudCoveragePercent,omitempty"`
	PriorityItem            bool      `json:"priorityItem,omitempty"`
	RequiredProvider        string    `json:"requiredProvider,omitempty"`
}

// FeasibilityOpportunity is a capture window reported by a provider.
type FeasibilityOpportunity struct {
	Provider    string    `json:"provider"`
	WindowStart time.Time `json:"windowStart"`
	WindowEnd   time.Time `json:"windowEnd"`
	Score       *float64  `json:"score,omitempty"`
}

// FeasibilityResult is the outcome of a feasibility check.
type FeasibilityResult struct {
	ID            string                   `json:"id"`
	Status        string                   `json:"status,omitempty"`
	Feasible      *bool                    `json:"feasible,omitempty"`
	Score         *float64                 `json:"overallScore,omitempty"`
	Opportunities []FeasibilityOpportunity `json:"opportunities,omitempty"`
	CreatedAt     *time.Time               `json:"createdAt,omitempty"`
}

// CheckFeasibility submits a feasibility check. Results are never cached.
func (c *Client) CheckFeasibility(ctx context.Context, req FeasibilityRequest) (*FeasibilityResult, error) {
	aoi, err := normalizeAOI(req.AOI, req.Geometry)
	if err != nil {
		return nil, err
	}
	if err := checkWindow(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	req.AOI = aoi

	var result FeasibilityResult
	if err := c.do(ctx, request{
		operation: "check_feasibility",
		method:    http.MethodPost,
		endpoint:  "feasibility",
		body:      req,
	}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetFeasibility returns a previously submitted feasibility check.
func (c *Client) GetFeasibility(ctx context.Context, feasibilityID string) (*FeasibilityResult, error) {
	id, err := pathID("feasibility", feasibilityID)
	if err != nil {
		return nil, err
	}

	var result FeasibilityResult
	if err := c.do(ctx, request{
		operation: "get_feasibility",
		method:    http.MethodGet,
		endpoint:  "feasibility/" + id,
		ttl:       cache.TTLVolatile,
	}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PassPredictionRequest asks which satellites pass over an AOI in a window.
type PassPredictionRequest struct {
	AOI         string    `json:"aoi"`
	Geometry    *Geometry `json:"-"`
	FromDate    time.Time `json:"fromDate"`
	ToDate      time.Time `json:"toDate"`
	ProductType string    `json:"productType,omitempty"`
	Resolution  string    `json:"resolution,omitempty"`
}

// SatellitePass is one predicted overpass.
type SatellitePass struct {
	Provider            string    `json:"provider"`
	Satellite           string    `json:"satname,omitempty"`
	PassDate            time.Time `json:"passDate"`
	OffNadirAngle       *float64  `json:"offNadirAngle,omitempty"`
	SolarElevation      *float64  `json:"solarElevationAngle,omitempty"`
	PriceForOneSquareKm *float64  `json:"priceForOneSquareKm,omitempty"`
}

// PassPredictionResponse lists predicted passes.
type PassPredictionResponse struct {
	Passes []SatellitePass `json:"passes"`
}

// PredictPasses predicts satellite passes over an AOI.
func (c *Client) PredictPasses(ctx context.Context, req PassPredictionRequest) (*PassPredictionResponse, error) {
	aoi, err := normalizeAOI(req.AOI, req.Geometry)
	if err != nil {
		return nil, err
	}
	if err := checkWindow(req.FromDate, req.ToDate); err != nil {
		return nil, err
	}
	req.AOI = aoi

	list, err := doList[SatellitePass](ctx, c, request{
		operation: "predict_passes",
		method:    http.MethodPost,
		endpoint:  "feasibility/pass-prediction",
		body:      req,
		ttl:       cache.TTLVolatile,
	}, "passes")
	if err != nil {
		return nil, err
	}
	return &PassPredictionResponse{Passes: list.Items}, nil
}

func checkWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return NewValidationError("window start and end are required", nil)
	}
	if !end.After(start) {
		return NewValidationError("window end must be after start", nil)
	}
	return nil
}
