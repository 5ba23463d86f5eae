package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// KeyNamespace prefixes every key written by this package.
const KeyNamespace = "skyfi:cache"

// CacheKey represents a unique identifier for a cached SkyFi response.
type CacheKey struct {
	// Method is the HTTP method (e.g., "GET", "POST" for archive search)
	Method string

	// Endpoint is the API path relative to the base URL (e.g., "orders/abc123")
	Endpoint string

	// Query are the query parameters (e.g., {"status": "completed"})
	Query url.Values

	// Body is the serialized request body for POST-shaped reads
	Body []byte
}

// String generates a deterministic cache key string.
// Format: skyfi:cache:endpoint:METHOD[:encoded-query][:body=digest]
//
// Example:
//
//	skyfi:cache:orders:GET:limit=20&offset=0&status=completed
func (k CacheKey) String() string {
	parts := []string{KeyNamespace, normalizeEndpoint(k.Endpoint), strings.ToUpper(k.Method)}

	// url.Values.Encode sorts by key
	if len(k.Query) > 0 {
		parts = append(parts, k.Query.Encode())
	}

	if len(k.Body) > 0 {
		sum := sha256.Sum256(k.Body)
		parts = append(parts, "body="+hex.EncodeToString(sum[:8]))
	}

	return strings.Join(parts, ":")
}

// EndpointPrefix returns the prefix shared by every key of exactly this
// endpoint, across methods and parameters. Sub-resources are not matched:
// the prefix for "orders" does not cover "orders/abc123".
func EndpointPrefix(endpoint string) string {
	return KeyNamespace + ":" + normalizeEndpoint(endpoint) + ":"
}

func normalizeEndpoint(endpoint string) string {
	return strings.Trim(endpoint, "/")
}
