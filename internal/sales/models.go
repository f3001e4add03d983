package sales

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentOther    PaymentMethod = "other"
)

var PaymentMethods = []PaymentMethod{PaymentCash, PaymentCard, PaymentTransfer, PaymentOther}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentOther:
		return true
	}
	return false
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, s)
	}
	return m, nil
}

// LineInput is one line of a PendingSale, copied verbatim from the cart.
type LineInput struct {
	ItemID    string          `json:"item_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// PendingSale is the snapshot submitted to the ledger on payment confirmation.
type PendingSale struct {
	IdempotencyKey string        `json:"-"`
	ActorID        string        `json:"actor_id"`
	PaymentMethod  PaymentMethod `json:"payment_method"`
	Items          []LineInput   `json:"items"`
}

func (p PendingSale) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range p.Items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

type Sale struct {
	ID            string          `json:"id"`
	ExternalID    string          `json:"external_id,omitempty"`
	ActorID       string          `json:"actor_id"`
	Status        Status          `json:"status"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Total         decimal.Decimal `json:"total"`
	Items         []SaleItem      `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
	AnnulledAt    *time.Time      `json:"annulled_at,omitempty"`
}

type SaleItem struct {
	ItemID    string          `json:"item_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (i SaleItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// StockMovement is one row of the stock ledger: sales, annulments and
// manual adjustments all write here.
type StockMovement struct {
	ItemID    string    `json:"item_id"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	Ref       string    `json:"ref,omitempty"`
	StockNow  int       `json:"stock_now"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	MovementSale     = "sale"
	MovementAnnul    = "annulment"
	MovementRestock  = "restock"
	MovementWriteOff = "write_off"
)

// ToCents converts a money amount with at most two decimals.
func ToCents(d decimal.Decimal) (int64, error) {
	shifted := d.Shift(2)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than two decimals", d)
	}
	return shifted.IntPart(), nil
}

func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}
