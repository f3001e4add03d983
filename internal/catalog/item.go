package catalog

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Item is a point-in-time copy of a sellable catalog entry.
type Item struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Stock     int             `json:"stock"`
	Active    bool            `json:"active"`
}

// Source answers catalog searches. The Sale Ledger HTTP client and the
// Postgres repository both implement it.
type Source interface {
	SearchCatalog(ctx context.Context, term string, activeOnly bool) ([]Item, error)
}

// NormalizeTerm is the canonical form used for cache keys and queries.
func NormalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

func onlyActive(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Active {
			out = append(out, it)
		}
	}
	return out
}
