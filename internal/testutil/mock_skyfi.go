// Package testutil provides testing utilities for the SkyFi gateway.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock SkyFi endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is a request seen by the mock server.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// MockSkyFi is a configurable mock SkyFi platform API for testing.
type MockSkyFi struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	RequestCount int
	pathCounts   map[string]int
	requests     []RecordedRequest
}

// NewMockSkyFi creates a new mock SkyFi server.
func NewMockSkyFi() *MockSkyFi {
	mock := &MockSkyFi{
		handlers:   make(map[string]http.HandlerFunc),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		mock.mu.Lock()
		mock.RequestCount++
		mock.pathCounts[r.URL.Path]++
		mock.requests = append(mock.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   body,
		})
		handler, exists := mock.handlers[r.Method+" "+r.URL.Path]
		if !exists {
			handler, exists = mock.handlers[r.URL.Path]
		}
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		// Default handler
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockSkyFi) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockSkyFi) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockSkyFi) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.pathCounts = make(map[string]int)
	m.requests = nil
}

// SetHandler sets a custom handler for a path. The key is either a path
// ("/orders") or a method and path ("POST /orders").
func (m *MockSkyFi) SetHandler(key string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[key] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockSkyFi) SetResponse(key string, resp MockResponse) {
	m.SetHandler(key, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, r, resp)
	})
}

// SetSequence configures responses served in order; the last one repeats.
func (m *MockSkyFi) SetSequence(key string, resps ...MockResponse) {
	var (
		mu sync.Mutex
		n  int
	)
	m.SetHandler(key, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := resps[len(resps)-1]
		if n < len(resps) {
			resp = resps[n]
		}
		n++
		mu.Unlock()
		writeResponse(w, r, resp)
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockSkyFi) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPathCount returns the number of requests made to path.
func (m *MockSkyFi) GetPathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// Requests returns a copy of every recorded request.
func (m *MockSkyFi) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent request, or false when none was made.
func (m *MockSkyFi) LastRequest() (RecordedRequest, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return RecordedRequest{}, false
	}
	return m.requests[len(m.requests)-1], true
}

// defaultHandler answers unknown paths like the platform does.
func (m *MockSkyFi) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if r.URL.Path == "/ping" {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message": "pong"}`))
		return
	}
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"detail": "Not Found"}`))
}

func writeResponse(w http.ResponseWriter, r *http.Request, resp MockResponse) {
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}

	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewJSONResponse creates a 200 OK response with v encoded as the raw payload.
func NewJSONResponse(v any) MockResponse {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return MockResponse{StatusCode: http.StatusOK, Body: string(b)}
}

// NewEnvelopeResponse creates a 200 OK response wrapping v in {success, data}.
func NewEnvelopeResponse(v any) MockResponse {
	return NewJSONResponse(map[string]any{"success": true, "data": v})
}

// NewErrorEnvelopeResponse creates a 200 OK response carrying {success:false, error}.
func NewErrorEnvelopeResponse(code, message string) MockResponse {
	return NewJSONResponse(map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
// A negative retryAfter omits the Retry-After header.
func NewRateLimitResponse(retryAfter int) MockResponse {
	resp := MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message": "Rate limit exceeded"}`,
		Headers:    map[string]string{},
	}
	if retryAfter >= 0 {
		resp.Headers["Retry-After"] = strconv.Itoa(retryAfter)
	}
	return resp
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message": "Internal server error"}`,
	}
}

// NewStatusResponse creates a response with status and a {"message"} body.
func NewStatusResponse(status int, message string) MockResponse {
	b, _ := json.Marshal(map[string]string{"message": message})
	return MockResponse{StatusCode: status, Body: string(b)}
}

// OrderFixtures returns n order summaries with ids prefix-<start+i>.
func OrderFixtures(prefix string, start, n int) []map[string]any {
	orders := make([]map[string]any, n)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		orders[i] = map[string]any{
			"id":        prefix + "-" + strconv.Itoa(start+i),
			"status":    "completed",
			"createdAt": created.Add(time.Duration(start+i) * time.Hour).Format(time.RFC3339),
		}
	}
	return orders
}
