package sales

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusCompleted, StatusAnnulled))
	assert.False(t, CanTransition(StatusAnnulled, StatusCompleted))
	assert.False(t, CanTransition(StatusAnnulled, StatusAnnulled))
	assert.False(t, CanTransition("bogus", StatusAnnulled))
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := ParsePaymentMethod(" Card ")
	require.NoError(t, err)
	assert.Equal(t, PaymentCard, m)

	_, err = ParsePaymentMethod("crypto")
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
}

func TestToCents(t *testing.T) {
	c, err := ToCents(decimal.RequireFromString("12.30"))
	require.NoError(t, err)
	assert.Equal(t, int64(1230), c)

	_, err = ToCents(decimal.RequireFromString("0.001"))
	assert.Error(t, err)

	assert.Equal(t, "12.30", FromCents(1230).StringFixed(2))
}

func TestPendingSale_Validate(t *testing.T) {
	ok := PendingSale{
		ActorID:       "a",
		PaymentMethod: PaymentCash,
		Items:         []LineInput{{ItemID: "1", Quantity: 1, UnitPrice: decimal.NewFromInt(3)}},
	}
	require.NoError(t, ok.Validate())

	cases := map[string]func(p *PendingSale){
		"no actor":      func(p *PendingSale) { p.ActorID = "" },
		"no items":      func(p *PendingSale) { p.Items = nil },
		"bad payment":   func(p *PendingSale) { p.PaymentMethod = "iou" },
		"zero qty":      func(p *PendingSale) { p.Items[0].Quantity = 0 },
		"missing id":    func(p *PendingSale) { p.Items[0].ItemID = "" },
		"neg price":     func(p *PendingSale) { p.Items[0].UnitPrice = decimal.NewFromInt(-1) },
		"sub-cent":      func(p *PendingSale) { p.Items[0].UnitPrice = decimal.RequireFromString("1.005") },
		"duplicate ids": func(p *PendingSale) { p.Items = append(p.Items, p.Items[0]) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := ok
			p.Items = append([]LineInput(nil), ok.Items...)
			mutate(&p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestPendingSale_Total(t *testing.T) {
	p := PendingSale{Items: []LineInput{
		{ItemID: "42", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
		{ItemID: "7", Quantity: 3, UnitPrice: decimal.RequireFromString("0.10")},
	}}
	assert.Equal(t, "20.30", p.Total().StringFixed(2))
}

func TestRejectionError_Message(t *testing.T) {
	err := NewRejection([]Shortage{
		{ItemID: "42", SKU: "COLA", Reason: RejectOutOfStock, Required: 2, Available: 0},
		{ItemID: "9", Reason: RejectPriceChanged},
	})
	assert.Equal(t, RejectOutOfStock, err.Code)
	assert.Equal(t, "sale rejected: COLA: requested 2, only 0 in stock; 9: price changed", err.Error())
}

func TestRenderTicket(t *testing.T) {
	annulledAt := time.Date(2026, 1, 2, 4, 0, 0, 0, time.UTC)
	s := &Sale{
		ID:            "77",
		ActorID:       "cashier-1",
		Status:        StatusCompleted,
		PaymentMethod: PaymentCard,
		Total:         decimal.RequireFromString("20"),
		CreatedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Items: []SaleItem{
			{ItemID: "42", Name: "Cola 330ml", Quantity: 2, UnitPrice: decimal.RequireFromString("10")},
		},
	}

	out := string(RenderTicket(s, "Corner Shop"))
	assert.Contains(t, out, "Sale:    77")
	assert.Contains(t, out, "  2 x 10.00")
	assert.Contains(t, out, "TOTAL")
	assert.Contains(t, out, "20.00")
	assert.Contains(t, out, "card")
	assert.NotContains(t, out, "ANNULLED")

	s.Status = StatusAnnulled
	s.AnnulledAt = &annulledAt
	out = string(RenderTicket(s, "Corner Shop"))
	assert.Contains(t, out, "*** ANNULLED ***")
	for _, l := range strings.Split(strings.TrimSpace(out), "\n") {
		assert.LessOrEqual(t, len(l), ticketWidth, l)
	}
}
