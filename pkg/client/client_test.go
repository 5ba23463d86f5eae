package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/skyfi-gateway/internal/testutil"
)

// newTestClient creates a client against mock with fast retries and a generous bucket.
func newTestClient(t *testing.T, mock *testutil.MockSkyFi, modify ...func(*Config)) *Client {
	t.Helper()

	cfg := DefaultConfig("test-key")
	cfg.BaseURL = mock.URL()
	cfg.BackoffBase = time.Millisecond
	cfg.RateLimit = RateLimitConfig{Capacity: 100, RefillPerSecond: 1000}
	for _, m := range modify {
		m(&cfg)
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		errorMsg string
	}{
		{
			name:   "valid config",
			config: DefaultConfig("key"),
		},
		{
			name:   "zero values use defaults",
			config: Config{APIKey: "key"},
		},
		{
			name:     "missing api key",
			config:   DefaultConfig(" "),
			errorMsg: "api key is required",
		},
		{
			name:     "relative base url",
			config:   Config{APIKey: "key", BaseURL: "platform-api"},
			errorMsg: `base url must be an absolute http(s) URL (got "platform-api")`,
		},
		{
			name:     "negative retries",
			config:   Config{APIKey: "key", Retries: -1},
			errorMsg: "retries must be >= 1 (got -1)",
		},
		{
			name:     "invalid rate limit",
			config:   Config{APIKey: "key", RateLimit: RateLimitConfig{Capacity: -5}},
			errorMsg: "rate limiter: capacity must be >= 1 (got -5)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.errorMsg != "" {
				if err == nil {
					t.Fatalf("Expected error but got nil")
				}
				if err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client.retry.MaxAttempts != 3 {
				t.Errorf("MaxAttempts = %d, want 3", client.retry.MaxAttempts)
			}
			if client.httpClient.Timeout != 30*time.Second {
				t.Errorf("Timeout = %v, want 30s", client.httpClient.Timeout)
			}
		})
	}
}

func TestClient_SendsHeaders(t *testing.T) {
	mock := testutil.NewMockSkyFi()
	defer mock.Close()
	mock.SetResponse("/auth/whoami", testutil.NewJSONResponse(map[string]any{"id": "u-1", "email": "ops@example.com"}))

	c := newTestClient(t, mock)
	account, err := c.WhoAmI(context.Background())
	if err != nil {
		t.Fatalf("WhoAmI() error = %v", err)
	}
	if account.Email != "ops@example.com" {
		t.Errorf("Email = %q, want ops@example.com", account.Email)
	}

	req, ok := mock.LastRequest()
	if !ok {
		t.Fatal("no request recorded")
	}
	if got := req.Header.Get(APIKeyHeader); got != "test-key" {
		t.Errorf("%s = %q, want test-key", APIKeyHeader, got)
	}
	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
	if got := req.Header.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q, want application/json", got)
	}
}

func TestClient_UnwrapsEnvelope(t *testing.T) {
	mock := testutil.NewMockSkyFi()
	defer mock.Close()
	mock.SetResponse("/orders/o-1", testutil.NewEnvelopeResponse(map[string]any{
		"id":        "o-1",
		"status":    "completed",
		"createdAt": "2024-01-01T00:00:00Z",
	}))

	c := newTestClient(t, mock)
	order, err := c.GetOrder(context.Background(), "o-1")
	if err != nil {
		t.Fatalf("GetOrder() error = %v", err)
	}
	if order.ID != "o-1" || order.Status != "completed" {
		t.Errorf("order = %+v", order)
	}
}

func TestClient_ErrorEnvelope(t *testing.T) {
	mock := testutil.NewMockSkyFi()
	defer mock.Close()
	mock.SetResponse("/orders/o-1", testutil.NewErrorEnvelopeResponse("NOT_FOUND", "order o-1 does not exist"))

	c := newTestClient(t, mock)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.GetOrder(ctx, "o-1")
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("GetOrder() error = %v, want *APIError", err)
		}
		if apiErr.Class != ClassNotFound {
			t.Errorf("Class = %q, want %q", apiErr.Class, ClassNotFound)
		}
		if apiErr.Message != "order o-1 does not exist" {
			t.Errorf("Message = %q", apiErr.Message)
		}
	}

	// Failures are never cached
	if got := mock.GetPathCount("/orders/o-1"); got != 2 {
		t.Errorf("upstream calls = %d, want 2", got)
	}
}

func TestClient_ErrorEnvelopeWithExtraKeys(t *testing.T) {
	mock := testutil.NewMockSkyFi()
	defer mock.Close()
	mock.SetResponse("/orders", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"success":false,"error":{"code":"INTERNAL","message":"orders backend down"},"requestId":"req-1"}`,
	})

	c := newTestClient(t, mock)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		list, err := c.ListOrders(ctx, nil)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("ListOrders() = %+v, %v; want *APIError", list, err)
		}
		if apiErr.Message != "orders backend down" {
			t.Errorf("Message = %q", apiErr.Message)
		}
		if apiErr.Code != "INTERNAL" {
			t.Errorf("Code = %q, want INTERNAL", apiErr.Code)
		}
	}

	if got := mock.GetPathCount("/orders"); got != 2 {
		t.Errorf("upstream calls = %d, want 2 (failure must not be cached)", got)
	}
}

func TestClient_CachesReads(t *testing.T) {
	mock := testutil.NewMockSkyFi()
	defer mock.Close()
	mock.SetResponse("/orders", testutil.NewJSONResponse(map[string]any{
		"orders": testutil.OrderFixtures("o", 0, 3),
		"total":  3,
	}))

	c := newTestClient(t, mock)
	ctx := context.Background()
	filters := map[string]any{"status": "completed", "limit": 20, "offset": 0}

	for i := 0; i < 2; i++ {
		list, err := c.ListOrders(ctx, filters)
		if err != nil {
			t.Fatalf("ListOrders() error = %v", err)
		}
		if len(list.Orders) != 3 {
			t.Errorf("len(Orders) = %d, want 3", len(list.Orders))
		}
		if list.Total == nil || *list.Total != 3 {
			t.Errorf("Total = %v, want 3", list.Total)
		}
	}
	if got := mock.GetPathCount("/orders"); got != 1 {
		t.Errorf("upstream calls after identical reads = %d, want 1", got)
	}

	// Different parameters are a different key
	if _, err := c.ListOrders(ctx, map[string]any{"status": "completed", "limit": 20, "offset": 20}); err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	if got := mock.GetPathCount("/orders"); got != 2 {
		t.Errorf("upstream calls after new offset = %d, want 2", got)
	}

	// Empty filter values do not change the key or the query
	if _, err := c.ListOrders(ctx, map[string]any{"status": "completed", "limit": 20, "offset": 0, "satellite": ""}); err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	if got := mock.GetPathCount("/orders"); got != 2 {
		t.Errorf("upstream calls after stripped filter = %d, want 2", got)
	}
}

func TestClient_CreateOrderClearsCache(t *testing.T) {
	mock := testutil.NewMockSkyFi()
	defer mock.Close()
	mock.SetResponse("/orders", testutil.NewJSONResponse(testutil.OrderFixtures("o", 0, 1)))
	mock.SetResponse("/webhooks", testutil.NewJSONResponse([]any{}))
	mock.SetResponse("/order-archive", testutil.NewJSONResponse(map[string]any{
		"id":        "o-new",
		"status":    "created",
		"createdAt": "2024-02-01T00:00:00Z",
	}))

	c := newTestClient(t, mock)
	ctx := context.Background()

	if _, err := c.ListOrders(ctx, nil); err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	if _, err := c.ListWebhooks(ctx); err != nil {
		t.Fatalf("ListWebhooks() error = %v", err)
	}

	order, err := c.CreateArchiveOrder(ctx, ArchiveOrderRequest{
		AOI:       "POLYGON((0 0,1 0,1 1,0 0))",
		ArchiveID: "arch-1",
	})
	if err != nil {
		t.Fatalf("CreateArchiveOrder() error = %v", err)
	}
	if order.ID != "o-new" {
		t.Errorf("order.ID = %q, want o-new", order.ID)
	}

	if _, err := c.ListOrders(ctx, nil); err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	if _, err := c.ListWebhooks(ctx); err != nil {
		t.Fatalf("ListWebhooks() error = %v", err)
	}

	if got := mock.GetPathCount("/orders"); got != 2 {
		t.Errorf("orders upstream calls = %d, want 2", got)
	}
	if got := mock.GetPathCount("/webhooks"); got != 2 {
		t.Errorf("webhooks upstream calls = %d, want 2", got)
	}
}

func TestClient_AOIMutationInvalidatesSelectively(t *testing.T) {
	mock := testutil.NewMockSkyFi()
	defer mock.Close()
	mock.SetResponse("/aois", testutil.NewJSONResponse(map[string]any{"aois": []any{map[string]any{"id": "a-1", "name": "port"}}}))
	mock.SetResponse("GET /aois/a-1", testutil.NewJSONResponse(map[string]any{"id": "a-1", "name": "port"}))
	mock.SetResponse("DELETE /aois/a-1", testutil.MockResponse{StatusCode: http.StatusNoContent})
	mock.SetResponse("/webhooks", testutil.NewJSONResponse([]any{}))

	c := newTestClient(t, mock)
	ctx := context.Background()

	aois, err := c.ListAOIs(ctx)
	if err != nil {
		t.Fatalf("ListAOIs() error = %v", err)
	}
	if len(aois) != 1 || aois[0].ID != "a-1" {
		t.Errorf("aois = %+v", aois)
	}
	if _, err := c.GetAOI(ctx, "a-1"); err != nil {
		t.Fatalf("GetAOI() error = %v", err)
	}
	if _, err := c.ListWebhooks(ctx); err != nil {
		t.Fatalf("ListWebhooks() error = %v", err)
	}

	if err := c.DeleteAOI(ctx, "a-1"); err != nil {
		t.Fatalf("DeleteAOI() error = %v", err)
	}

	if _, err := c.ListAOIs(ctx); err != nil {
		t.Fatalf("ListAOIs() error = %v", err)
	}
	if _, err := c.GetAOI(ctx, "a-1"); err != nil {
		t.Fatalf("GetAOI() error = %v", err)
	}
	if _, err := c.ListWebhooks(ctx); err != nil {
		t.Fatalf("ListWebhooks() error = %v", err)
	}

	if got := mock.GetPathCount("/aois"); got != 2 {
		t.Errorf("aois list upstream calls = %d, want 2", got)
	}
	// GET twice, DELETE once
	if got := mock.GetPathCount("/aois/a-1"); got != 3 {
		t.Errorf("aoi upstream calls = %d, want 3", got)
	}
	if got := mock.GetPathCount("/webhooks"); got != 1 {
		t.Errorf("webhooks upstream calls = %d, want 1 (unaffected)", got)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	mock := testutil.NewMockSkyFi()
	defer mock.Close()
	mock.SetSequence("/orders/o-1",
		testutil.NewServerErrorResponse(),
		testutil.NewStatusResponse(http.StatusBadGateway, "bad gateway"),
		testutil.NewJSONResponse(map[string]any{"id": "o-1", "status": "completed", "createdAt": "2024-01-01T00:00:00Z"}),
	)

	c := newTestClient(t, mock)
	order, err := c.GetOrder(context.Background(), "o-1")
	if err != nil {
		t.Fatalf("GetOrder() error = %v", err)
	}
	if order.ID != "o-1" {
		t.Errorf("order.ID = %q, want o-1", order.ID)
	}
	if got := mock.GetPathCount("/orders/o-1"); got != 3 {
		t.Errorf("upstream calls = %d, want 3", got)
	}
}

func TestClient_RetriesExhausted(t *testing.T) {
	mock := testutil.NewMockSkyFi()
	defer mock.Close()
	mock.SetResponse("/ping", testutil.NewServerErrorResponse())

	c := newTestClient(t, mock, func(cfg *Config) { cfg.Retries = 4 })
	err := c.Health(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Health() error = %v, want *APIError", err)
	}
	if apiErr.Class != ClassServerError || apiErr.StatusCode != 500 {
		t.Errorf("got class %q status %d, want server_error 500", apiErr.Class, apiErr.StatusCode)
	}
	if apiErr.Attempts != 4 {
		t.Errorf("Attempts = %d, want 4", apiErr.Attempts)
	}
	if got := mock.GetPathCount("/ping"); got != 4 {
		t.Errorf("upstream calls = %d, want 4", got)
	}
}

func TestClient_NonRetryableStatuses(t *testing.T) {
	tests := []struct {
		name      string
		resp      testutil.MockResponse
		wantClass ErrorClass
	}{
		{"unauthorized", testutil.NewStatusResponse(http.StatusUnauthorized, "invalid key"), ClassAuth},
		{"not found", testutil.NewStatusResponse(http.StatusNotFound, "missing"), ClassNotFound},
		{"bad request", testutil.NewStatusResponse(http.StatusBadRequest, "bad aoi"), ClassValidation},
		{"rate limited", testutil.NewRateLimitResponse(7), ClassRateLimited},
		{"forbidden", testutil.NewStatusResponse(http.StatusForbidden, "nope"), ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockSkyFi()
			defer mock.Close()
			mock.SetResponse("/ping", tt.resp)

			c := newTestClient(t, mock)
			err := c.Health(context.Background())

			if got := ClassOf(err); got != tt.wantClass {
				t.Errorf("ClassOf(err) = %q, want %q", got, tt.wantClass)
			}
			if got := mock.GetPathCount("/ping"); got != 1 {
				t.Errorf("upstream calls = %d, want 1", got)
			}

			var apiErr *APIError
			if errors.As(err, &apiErr) && tt.wantClass == ClassRateLimited && apiErr.RetryAfterSeconds != 7 {
				t.Errorf("RetryAfterSeconds = %d, want 7", apiErr.RetryAfterSeconds)
			}
		})
	}
}

func TestClient_TimeoutIsRetried(t *testing.T) {
	mock := testutil.NewMockSkyFi()
	defer mock.Close()
	mock.SetResponse("/ping", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{}`,
		Delay:      500 * time.Millisecond,
	})

	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.Timeout = 50 * time.Millisecond
		cfg.Retries = 2
	})

	err := c.Health(context.Background())
	if got := ClassOf(err); got != ClassTimeout {
		t.Fatalf("ClassOf(err) = %q, want %q (err = %v)", got, ClassTimeout, err)
	}
	if got := mock.GetPathCount("/ping"); got != 2 {
		t.Errorf("upstream calls = %d, want 2", got)
	}
}

func TestClient_ConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	cfg := DefaultConfig("test-key")
	cfg.BaseURL = baseURL
	cfg.BackoffBase = time.Millisecond
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = c.Health(context.Background())
	if got := ClassOf(err); got != ClassConnectionFailure {
		t.Errorf("ClassOf(err) = %q, want %q (err = %v)", got, ClassConnectionFailure, err)
	}
}

func TestClient_ValidationBeforeRequest(t *testing.T) {
	mock := testutil.NewMockSkyFi()
	defer mock.Close()

	c := newTestClient(t, mock)
	ctx := context.Background()

	checks := map[string]error{}
	_, checks["GetOrder"] = c.GetOrder(ctx, "")
	_, checks["SearchArchives"] = c.SearchArchives(ctx, SearchArchivesRequest{})
	_, checks["CreateTaskingOrder"] = c.CreateTaskingOrder(ctx, TaskingOrderRequest{AOI: "POLYGON((0 0,1 0,1 1,0 0))"})
	_, checks["CreateWebhook"] = c.CreateWebhook(ctx, WebhookRequest{URL: "ftp://example.com"})
	checks["DeleteAOI"] = c.DeleteAOI(ctx, " ")
	_, checks["CreateAOI"] = c.CreateAOI(ctx, AOIRequest{Name: "x", Geometry: &Geometry{Type: "LineString"}})

	for name, err := range checks {
		if !IsClass(err, ClassValidation) {
			t.Errorf("%s error = %v, want validation error", name, err)
		}
	}
	if got := mock.GetRequestCount(); got != 0 {
		t.Errorf("upstream calls = %d, want 0", got)
	}
}

func TestClient_SearchArchivesSendsWKT(t *testing.T) {
	mock := testutil.NewMockSkyFi()
	defer mock.Close()
	mock.SetResponse("POST /archives", testutil.NewJSONResponse(map[string]any{
		"archives": []any{map[string]any{"archiveId": "arch-1", "provider": "SIWEI", "productType": "DAY", "captureTimestamp": "2024-01-01T00:00:00Z"}},
	}))

	c := newTestClient(t, mock)
	point := PointGeometry(10, 20)
	resp, err := c.SearchArchives(context.Background(), SearchArchivesRequest{Geometry: &point})
	if err != nil {
		t.Fatalf("SearchArchives() error = %v", err)
	}
	if len(resp.Archives) != 1 || resp.Archives[0].ArchiveID != "arch-1" {
		t.Errorf("archives = %+v", resp.Archives)
	}

	req, _ := mock.LastRequest()
	var body map[string]any
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("request body is not JSON: %v", err)
	}
	if got := body["aoi"]; got != "POLYGON((9.99 19.99,10.01 19.99,10.01 20.01,9.99 20.01,9.99 19.99))" {
		t.Errorf("aoi = %v", got)
	}
	if _, ok := body["Geometry"]; ok {
		t.Error("geometry leaked into request body")
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	mock := testutil.NewMockSkyFi()
	defer mock.Close()
	mock.SetResponse("/ping", testutil.MockResponse{StatusCode: http.StatusOK, Delay: time.Second})

	c := newTestClient(t, mock)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := c.Health(ctx)
	if err == nil {
		t.Fatal("Health() error = nil, want error")
	}
	if time.Since(start) > 900*time.Millisecond {
		t.Errorf("Health() took %v, want prompt return after cancellation", time.Since(start))
	}
	if got := mock.GetPathCount("/ping"); got != 1 {
		t.Errorf("upstream calls = %d, want 1 (no retry after deadline)", got)
	}
}

func TestClient_RateLimiterGatesRequests(t *testing.T) {
	mock := testutil.NewMockSkyFi()
	defer mock.Close()

	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.RateLimit = RateLimitConfig{Capacity: 1, RefillPerSecond: 20}
	})

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := c.Health(context.Background()); err != nil {
			t.Fatalf("Health() error = %v", err)
		}
	}

	// One token up front, then two refills at 50ms each
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 80ms", elapsed)
	}
	if state := c.RateLimitState(); state.Capacity != 1 {
		t.Errorf("Capacity = %d, want 1", state.Capacity)
	}
}

func TestClient_RedeliverInvalidatesOrder(t *testing.T) {
	mock := testutil.NewMockSkyFi()
	defer mock.Close()
	mock.SetResponse("/orders/o-1", testutil.NewJSONResponse(map[string]any{"id": "o-1", "status": "delivered", "createdAt": "2024-01-01T00:00:00Z"}))
	mock.SetResponse("/orders/o-1/redelivery", testutil.MockResponse{StatusCode: http.StatusAccepted})

	c := newTestClient(t, mock)
	ctx := context.Background()

	if _, err := c.GetOrder(ctx, "o-1"); err != nil {
		t.Fatalf("GetOrder() error = %v", err)
	}
	order, err := c.RedeliverOrder(ctx, "o-1", RedeliveryRequest{})
	if err != nil {
		t.Fatalf("RedeliverOrder() error = %v", err)
	}
	if order.ID != "o-1" {
		t.Errorf("order.ID = %q, want o-1", order.ID)
	}
	if _, err := c.GetOrder(ctx, "o-1"); err != nil {
		t.Fatalf("GetOrder() error = %v", err)
	}

	if got := mock.GetPathCount("/orders/o-1"); got != 2 {
		t.Errorf("order upstream calls = %d, want 2", got)
	}
	if !strings.HasSuffix(mock.Requests()[1].Path, "/redelivery") {
		t.Errorf("second request path = %q, want redelivery", mock.Requests()[1].Path)
	}
}

// countRequests counts recorded requests matching method and path.
func countRequests(mock *testutil.MockSkyFi, method, path string) int {
	n := 0
	for _, r := range mock.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func TestClient_CachedReads(t *testing.T) {
	const aoi = "POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))"
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(72 * time.Hour)

	tests := []struct {
		name  string
		path  string
		setup func(*testutil.MockSkyFi)
		read  func(context.Context, *Client) error
	}{
		{
			name: "pricing",
			path: "/pricing",
			setup: func(m *testutil.MockSkyFi) {
				m.SetResponse("/pricing", testutil.NewJSONResponse(map[string]any{
					"productTypes": []any{map[string]any{"productType": "DAY", "resolution": "HIGH"}},
				}))
			},
			read: func(ctx context.Context, c *Client) error {
				_, err := c.GetPricing(ctx, PricingRequest{AOI: aoi})
				return err
			},
		},
		{
			name: "feasibility lookup",
			path: "/feasibility/f-1",
			setup: func(m *testutil.MockSkyFi) {
				m.SetResponse("/feasibility/f-1", testutil.NewJSONResponse(map[string]any{"id": "f-1", "status": "COMPLETE"}))
			},
			read: func(ctx context.Context, c *Client) error {
				_, err := c.GetFeasibility(ctx, "f-1")
				return err
			},
		},
		{
			name: "pass prediction",
			path: "/feasibility/pass-prediction",
			setup: func(m *testutil.MockSkyFi) {
				m.SetResponse("/feasibility/pass-prediction", testutil.NewJSONResponse(map[string]any{
					"passes": []any{map[string]any{"provider": "PLANET", "passDate": "2024-06-02T10:00:00Z"}},
				}))
			},
			read: func(ctx context.Context, c *Client) error {
				_, err := c.PredictPasses(ctx, PassPredictionRequest{AOI: aoi, FromDate: from, ToDate: to})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockSkyFi()
			defer mock.Close()
			tt.setup(mock)

			c := newTestClient(t, mock)
			ctx := context.Background()

			for i := 0; i < 3; i++ {
				if err := tt.read(ctx, c); err != nil {
					t.Fatalf("read %d error = %v", i, err)
				}
			}

			if got := mock.GetPathCount(tt.path); got != 1 {
				t.Errorf("upstream calls = %d, want 1", got)
			}
		})
	}
}

func TestClient_PricingCachedPerAOI(t *testing.T) {
	mock := testutil.NewMockSkyFi()
	defer mock.Close()
	mock.SetResponse("/pricing", testutil.NewJSONResponse([]any{}))

	c := newTestClient(t, mock)
	ctx := context.Background()

	for _, aoi := range []string{"", "POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))", ""} {
		if _, err := c.GetPricing(ctx, PricingRequest{AOI: aoi}); err != nil {
			t.Fatalf("GetPricing(%q) error = %v", aoi, err)
		}
	}

	if got := mock.GetPathCount("/pricing"); got != 2 {
		t.Errorf("upstream calls = %d, want 2", got)
	}
}

func TestClient_MutationsInvalidateCachedReads(t *testing.T) {
	const aoi = "POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))"

	tests := []struct {
		name   string
		setup  func(*testutil.MockSkyFi)
		reads  []func(context.Context, *Client) error
		mutate func(context.Context, *Client) error
		// want counts GETs per path after read, mutate, read
		want map[string]int
	}{
		{
			name: "create webhook",
			setup: func(m *testutil.MockSkyFi) {
				m.SetResponse("GET /webhooks", testutil.NewJSONResponse([]any{}))
				m.SetResponse("POST /webhooks", testutil.NewJSONResponse(map[string]any{"id": "w-1", "url": "https://example.com/hook", "active": true}))
				m.SetResponse("/aois", testutil.NewJSONResponse([]any{}))
			},
			reads: []func(context.Context, *Client) error{
				func(ctx context.Context, c *Client) error { _, err := c.ListWebhooks(ctx); return err },
				func(ctx context.Context, c *Client) error { _, err := c.ListAOIs(ctx); return err },
			},
			mutate: func(ctx context.Context, c *Client) error {
				_, err := c.CreateWebhook(ctx, WebhookRequest{URL: "https://example.com/hook"})
				return err
			},
			want: map[string]int{"/webhooks": 2, "/aois": 1},
		},
		{
			name: "delete webhook",
			setup: func(m *testutil.MockSkyFi) {
				m.SetResponse("GET /webhooks", testutil.NewJSONResponse([]any{map[string]any{"id": "w-1", "url": "https://example.com/hook"}}))
				m.SetResponse("DELETE /webhooks/w-1", testutil.MockResponse{StatusCode: http.StatusNoContent})
				m.SetResponse("/aois", testutil.NewJSONResponse([]any{}))
			},
			reads: []func(context.Context, *Client) error{
				func(ctx context.Context, c *Client) error { _, err := c.ListWebhooks(ctx); return err },
				func(ctx context.Context, c *Client) error { _, err := c.ListAOIs(ctx); return err },
			},
			mutate: func(ctx context.Context, c *Client) error {
				return c.DeleteWebhook(ctx, "w-1")
			},
			want: map[string]int{"/webhooks": 2, "/aois": 1},
		},
		{
			name: "create notification",
			setup: func(m *testutil.MockSkyFi) {
				m.SetResponse("GET /notifications", testutil.NewJSONResponse(map[string]any{"notifications": []any{}}))
				m.SetResponse("POST /notifications", testutil.NewJSONResponse(map[string]any{"id": "n-2", "aoi": aoi, "webhookUrl": "https://example.com/hook"}))
				m.SetResponse("GET /notifications/n-1", testutil.NewJSONResponse(map[string]any{"id": "n-1", "aoi": aoi}))
			},
			reads: []func(context.Context, *Client) error{
				func(ctx context.Context, c *Client) error { _, err := c.ListNotifications(ctx, 0, 0); return err },
				func(ctx context.Context, c *Client) error { _, err := c.GetNotification(ctx, "n-1"); return err },
			},
			mutate: func(ctx context.Context, c *Client) error {
				_, err := c.CreateNotification(ctx, NotificationRequest{AOI: aoi, WebhookURL: "https://example.com/hook"})
				return err
			},
			want: map[string]int{"/notifications": 2, "/notifications/n-1": 1},
		},
		{
			name: "delete notification",
			setup: func(m *testutil.MockSkyFi) {
				m.SetResponse("GET /notifications", testutil.NewJSONResponse(map[string]any{"notifications": []any{}}))
				m.SetResponse("GET /notifications/n-1", testutil.NewJSONResponse(map[string]any{"id": "n-1", "aoi": aoi}))
				m.SetResponse("GET /notifications/n-2", testutil.NewJSONResponse(map[string]any{"id": "n-2", "aoi": aoi}))
				m.SetResponse("DELETE /notifications/n-1", testutil.MockResponse{StatusCode: http.StatusNoContent})
			},
			reads: []func(context.Context, *Client) error{
				func(ctx context.Context, c *Client) error { _, err := c.ListNotifications(ctx, 0, 0); return err },
				func(ctx context.Context, c *Client) error { _, err := c.GetNotification(ctx, "n-1"); return err },
				func(ctx context.Context, c *Client) error { _, err := c.GetNotification(ctx, "n-2"); return err },
			},
			mutate: func(ctx context.Context, c *Client) error {
				return c.DeleteNotification(ctx, "n-1")
			},
			want: map[string]int{"/notifications": 2, "/notifications/n-1": 2, "/notifications/n-2": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockSkyFi()
			defer mock.Close()
			tt.setup(mock)

			c := newTestClient(t, mock)
			ctx := context.Background()

			readAll := func() {
				t.Helper()
				for i, read := range tt.reads {
					if err := read(ctx, c); err != nil {
						t.Fatalf("read %d error = %v", i, err)
					}
				}
			}

			readAll()
			readAll()
			if err := tt.mutate(ctx, c); err != nil {
				t.Fatalf("mutation error = %v", err)
			}
			readAll()

			for path, want := range tt.want {
				if got := countRequests(mock, http.MethodGet, path); got != want {
					t.Errorf("GET %s upstream calls = %d, want %d", path, got, want)
				}
			}
		})
	}
}
