package redisx

import "time"

const (
	// Idempotency create sale: idem:sale:create:{idempotency_key} -> sale_id
	KeyIdemSaleCreate = "idem:sale:create:%s"

	// Catalog search results: catalog:search:{active|all}:{term} -> JSON []catalog.Item
	KeyCatalogSearch = "catalog:search:%s:%s"

	// Pattern matching every catalog search entry, used for invalidation.
	PatternCatalogSearch = "catalog:search:*"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLCatalog     = 30 * time.Second
	TTLDedup       = 48 * time.Hour
)
