package pos

import (
	"context"

	"github.com/ariefcatur/go-realtime-pos/internal/sales"
)

// Ledger is the authoritative sale store. It owns stock: CreateSale is
// all-or-nothing and returns *sales.RejectionError when any line cannot be
// fulfilled; AnnulSale restores stock for every line.
type Ledger interface {
	CreateSale(ctx context.Context, p sales.PendingSale) (*sales.Sale, error)
	AnnulSale(ctx context.Context, saleID string) (*sales.Sale, error)
	FetchTicket(ctx context.Context, saleID string) ([]byte, error)
}

// Actor identifies who rings up sales. Opaque to the core.
type Actor string
