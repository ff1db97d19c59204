package redisx

import "time"

const (
	// Cached order summary: order:{order_id} -> marshaled order JSON
	KeyOrder = "order:%s"

	// Cached catalog listing: catalog:products -> marshaled product list
	KeyCatalog = "catalog:products"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLOrderCache   = 5 * time.Minute
	TTLCatalogCache = 1 * time.Minute
	TTLDedup        = 48 * time.Hour
)
