package pos

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/sales"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSale(l *fakeLedger, id string, itemID string, qty int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	it := l.items[itemID]
	l.sales[id] = &sales.Sale{
		ID:            id,
		ActorID:       "cashier-1",
		Status:        sales.StatusCompleted,
		PaymentMethod: sales.PaymentCash,
		Total:         it.UnitPrice.Mul(decimal.NewFromInt(int64(qty))),
		Items:         []sales.SaleItem{{ItemID: itemID, SKU: it.SKU, Name: it.Name, Quantity: qty, UnitPrice: it.UnitPrice}},
		CreatedAt:     time.Date(2026, 9, 30, 18, 0, 0, 0, time.UTC),
	}
}

func TestHistory_AnnulKeepsTicket(t *testing.T) {
	l := newFakeLedger(product("42", "10.00", 3))
	seedSale(l, "77", "42", 2)
	h := &History{Ledger: l}
	ctx := context.Background()

	sale, err := h.Annul(ctx, "77", true)
	require.NoError(t, err)
	assert.Equal(t, sales.StatusAnnulled, sale.Status)
	assert.Equal(t, 5, l.stock("42"), "ledger restored the sold units")

	doc, err := h.Ticket(ctx, "77")
	require.NoError(t, err)
	assert.Contains(t, string(doc), "ANNULLED")
	assert.Contains(t, string(doc), "20.00")
}

func TestHistory_AnnulRequiresConfirmation(t *testing.T) {
	l := newFakeLedger(product("42", "10.00", 3))
	seedSale(l, "77", "42", 2)
	h := &History{Ledger: l}

	_, err := h.Annul(context.Background(), "77", false)

	require.ErrorIs(t, err, ErrAnnulmentNotConfirmed)
	_, annuls, _ := l.counts()
	assert.Zero(t, annuls)
	assert.Equal(t, 3, l.stock("42"))
}

func TestHistory_AnnulTwiceFails(t *testing.T) {
	l := newFakeLedger(product("42", "10.00", 3))
	seedSale(l, "77", "42", 2)
	h := &History{Ledger: l}
	ctx := context.Background()

	_, err := h.Annul(ctx, "77", true)
	require.NoError(t, err)
	_, err = h.Annul(ctx, "77", true)

	require.ErrorIs(t, err, ErrAnnulmentFailed)
	require.ErrorIs(t, err, sales.ErrAlreadyAnnulled)
	assert.Equal(t, 5, l.stock("42"), "stock restored once")
}

func TestHistory_AnnulUnknownSale(t *testing.T) {
	h := &History{Ledger: newFakeLedger()}

	_, err := h.Annul(context.Background(), "nope", true)

	require.ErrorIs(t, err, ErrAnnulmentFailed)
	require.ErrorIs(t, err, sales.ErrSaleNotFound)
}
