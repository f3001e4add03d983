// Package salestest provides an in-memory sale ledger with the same
// validation and all-or-nothing rules as the Postgres repository.
package salestest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/catalog"
	"github.com/ariefcatur/go-realtime-pos/internal/sales"
	"github.com/shopspring/decimal"
)

type MemStore struct {
	mu    sync.Mutex
	items map[string]catalog.Item
	sales map[string]*sales.Sale
	byKey map[string]string
	order []string
	seq   int
	now   func() time.Time
	Moves []sales.StockMovement
	Err   error // returned by every call when set
}

func NewMemStore(items ...catalog.Item) *MemStore {
	m := &MemStore{
		items: map[string]catalog.Item{},
		sales: map[string]*sales.Sale{},
		byKey: map[string]string{},
		now:   func() time.Time { return time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC) },
	}
	for _, it := range items {
		m.items[it.ID] = it
	}
	return m
}

// Item builds an active catalog item.
func Item(id, name, price string, stock int) catalog.Item {
	return catalog.Item{
		ID:        id,
		Name:      name,
		SKU:       strings.ToUpper(name),
		UnitPrice: decimal.RequireFromString(price),
		Stock:     stock,
		Active:    true,
	}
}

func (m *MemStore) Stock(itemID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[itemID].Stock
}

func (m *MemStore) SetStock(itemID string, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := m.items[itemID]
	it.Stock = stock
	m.items[itemID] = it
}

func (m *MemStore) SearchCatalog(_ context.Context, term string, activeOnly bool) ([]catalog.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	term = catalog.NormalizeTerm(term)
	var out []catalog.Item
	for _, it := range m.items {
		if activeOnly && !it.Active {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(it.Name), term) && !strings.Contains(strings.ToLower(it.SKU), term) {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemStore) CreateSale(_ context.Context, p sales.PendingSale) (*sales.Sale, bool, error) {
	if err := p.Validate(); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, false, m.Err
	}
	if id, ok := m.byKey[p.IdempotencyKey]; ok && p.IdempotencyKey != "" {
		return cloneSale(m.sales[id]), true, nil
	}

	var short []sales.Shortage
	for _, l := range p.Items {
		it, ok := m.items[l.ItemID]
		switch {
		case !ok:
			short = append(short, sales.Shortage{ItemID: l.ItemID, Reason: sales.RejectItemUnknown, Required: l.Quantity})
		case !it.Active:
			short = append(short, sales.Shortage{ItemID: it.ID, SKU: it.SKU, Reason: sales.RejectItemInactive, Required: l.Quantity, Available: it.Stock})
		case !it.UnitPrice.Equal(l.UnitPrice):
			short = append(short, sales.Shortage{ItemID: it.ID, SKU: it.SKU, Reason: sales.RejectPriceChanged, Required: l.Quantity, Available: it.Stock})
		case it.Stock < l.Quantity:
			short = append(short, sales.Shortage{ItemID: it.ID, SKU: it.SKU, Reason: sales.RejectOutOfStock, Required: l.Quantity, Available: it.Stock})
		}
	}
	if len(short) > 0 {
		return nil, false, sales.NewRejection(short)
	}

	m.seq++
	s := &sales.Sale{
		ID:            fmt.Sprintf("sale-%d", m.seq),
		ExternalID:    p.IdempotencyKey,
		ActorID:       p.ActorID,
		Status:        sales.StatusCompleted,
		PaymentMethod: p.PaymentMethod,
		Total:         p.Total(),
		CreatedAt:     m.now(),
	}
	for _, l := range p.Items {
		it := m.items[l.ItemID]
		it.Stock -= l.Quantity
		m.items[l.ItemID] = it
		m.Moves = append(m.Moves, sales.StockMovement{ItemID: it.ID, Delta: -l.Quantity, Reason: sales.MovementSale, Ref: s.ID, StockNow: it.Stock, CreatedAt: s.CreatedAt})
		s.Items = append(s.Items, sales.SaleItem{ItemID: it.ID, SKU: it.SKU, Name: it.Name, Quantity: l.Quantity, UnitPrice: it.UnitPrice})
	}
	m.sales[s.ID] = s
	m.order = append(m.order, s.ID)
	if p.IdempotencyKey != "" {
		m.byKey[p.IdempotencyKey] = s.ID
	}
	return cloneSale(s), false, nil
}

func (m *MemStore) GetSale(_ context.Context, saleID string) (*sales.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	s, ok := m.sales[saleID]
	if !ok {
		return nil, sales.ErrSaleNotFound
	}
	return cloneSale(s), nil
}

// ListSales returns newest first.
func (m *MemStore) ListSales(_ context.Context, limit int) ([]sales.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if limit <= 0 {
		limit = 50
	}
	var out []sales.Sale
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *cloneSale(m.sales[m.order[i]]))
	}
	return out, nil
}

func (m *MemStore) AnnulSale(_ context.Context, saleID string) (*sales.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	s, ok := m.sales[saleID]
	if !ok {
		return nil, sales.ErrSaleNotFound
	}
	if !sales.CanTransition(s.Status, sales.StatusAnnulled) {
		return nil, sales.ErrAlreadyAnnulled
	}
	now := m.now()
	for _, l := range s.Items {
		it := m.items[l.ItemID]
		it.Stock += l.Quantity
		m.items[l.ItemID] = it
		m.Moves = append(m.Moves, sales.StockMovement{ItemID: it.ID, Delta: l.Quantity, Reason: sales.MovementAnnul, Ref: s.ID, StockNow: it.Stock, CreatedAt: now})
	}
	s.Status = sales.StatusAnnulled
	s.AnnulledAt = &now
	return cloneSale(s), nil
}

func (m *MemStore) AdjustStock(_ context.Context, itemID string, delta int, reason string) (sales.StockMovement, error) {
	if delta == 0 {
		return sales.StockMovement{}, fmt.Errorf("%w: zero delta", sales.ErrInvalidAdjustment)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return sales.StockMovement{}, m.Err
	}
	it, ok := m.items[itemID]
	if !ok {
		return sales.StockMovement{}, sales.ErrItemNotFound
	}
	if it.Stock+delta < 0 {
		return sales.StockMovement{}, fmt.Errorf("%w: %s has %d, adjustment %d", sales.ErrNegativeStock, itemID, it.Stock, delta)
	}
	if reason == "" {
		reason = sales.MovementRestock
		if delta < 0 {
			reason = sales.MovementWriteOff
		}
	}
	it.Stock += delta
	m.items[itemID] = it
	mv := sales.StockMovement{ItemID: itemID, Delta: delta, Reason: reason, StockNow: it.Stock, CreatedAt: m.now()}
	m.Moves = append(m.Moves, mv)
	return mv, nil
}

func cloneSale(s *sales.Sale) *sales.Sale {
	c := *s
	c.Items = append([]sales.SaleItem(nil), s.Items...)
	if s.AnnulledAt != nil {
		t := *s.AnnulledAt
		c.AnnulledAt = &t
	}
	return &c
}
