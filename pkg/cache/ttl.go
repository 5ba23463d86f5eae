package cache

import "time"

// TTL policy for cacheable SkyFi reads.
const (
	// TTLVolatile covers feasibility lookups and pass predictions.
	TTLVolatile = 30 * time.Second

	// TTLOrders covers order reads and notifications.
	TTLOrders = 60 * time.Second

	// TTLArchive covers archive search, archive details, pricing and AOI reads.
	TTLArchive = 5 * time.Minute

	// TTLWebhooks covers webhook listings.
	TTLWebhooks = time.Hour
)
