package sales

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventSaleCompleted = "SaleCompleted"
	EventSaleAnnulled  = "SaleAnnulled"
	EventStockAdjusted = "StockAdjusted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // sale_id or item_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads ----

type ItemQty struct {
	ItemID string `json:"item_id"`
	Qty    int    `json:"qty"`
}

type SaleCompletedPayload struct {
	SaleID        string          `json:"sale_id"`
	ActorID       string          `json:"actor_id"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Items         []ItemQty       `json:"items"`
	Total         decimal.Decimal `json:"total"`
}

type SaleAnnulledPayload struct {
	SaleID   string    `json:"sale_id"`
	Restored []ItemQty `json:"restored"`
}

type StockAdjustedPayload struct {
	ItemID   string `json:"item_id"`
	Delta    int    `json:"delta"`
	Reason   string `json:"reason"`
	StockNow int    `json:"stock_now"`
}

// NewEnvelope wraps an already-marshalled payload in a v1 envelope.
func NewEnvelope(eventType, producer, correlationID, traceID string, payload []byte) Envelope {
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       payload,
	}
}

func itemQtys(items []SaleItem) []ItemQty {
	out := make([]ItemQty, 0, len(items))
	for _, it := range items {
		out = append(out, ItemQty{ItemID: it.ItemID, Qty: it.Quantity})
	}
	return out
}

func (s *Sale) CompletedPayload() SaleCompletedPayload {
	return SaleCompletedPayload{
		SaleID:        s.ID,
		ActorID:       s.ActorID,
		PaymentMethod: s.PaymentMethod,
		Items:         itemQtys(s.Items),
		Total:         s.Total,
	}
}

func (s *Sale) AnnulledPayload() SaleAnnulledPayload {
	return SaleAnnulledPayload{SaleID: s.ID, Restored: itemQtys(s.Items)}
}
