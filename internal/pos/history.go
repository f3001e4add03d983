package pos

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-realtime-pos/internal/logx"
	"github.com/ariefcatur/go-realtime-pos/internal/sales"
	"go.uber.org/zap"
)

// History acts on already persisted sales, outside any checkout session.
// Stock is restored by the ledger; History never touches stock itself.
type History struct {
	Ledger Ledger
	Log    *zap.Logger
}

// Annul voids a completed sale. It refuses to call the ledger unless the
// operator confirmed.
func (h *History) Annul(ctx context.Context, saleID string, confirmed bool) (*sales.Sale, error) {
	if !confirmed {
		return nil, ErrAnnulmentNotConfirmed
	}
	log := logx.OrNop(h.Log).With(zap.String("sale_id", saleID))

	sale, err := h.Ledger.AnnulSale(ctx, saleID)
	if err != nil {
		log.Warn("annul sale failed", zap.Error(err))
		return nil, errors.Join(fmt.Errorf("%w: sale %s", ErrAnnulmentFailed, saleID), err)
	}
	log.Info("sale annulled", zap.Int("lines_restored", len(sale.Items)))
	return sale, nil
}

// Ticket fetches the receipt of any sale, completed or annulled.
func (h *History) Ticket(ctx context.Context, saleID string) ([]byte, error) {
	doc, err := h.Ledger.FetchTicket(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("fetch ticket %s: %w", saleID, err)
	}
	return doc, nil
}
