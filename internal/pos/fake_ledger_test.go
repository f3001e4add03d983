package pos

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/catalog"
	"github.com/ariefcatur/go-realtime-pos/internal/sales"
	"github.com/shopspring/decimal"
)

// fakeLedger is an in-memory ledger with the same all-or-nothing rules as
// the Postgres one. It also serves as the catalog source.
type fakeLedger struct {
	mu       sync.Mutex
	items    map[string]catalog.Item
	sales    map[string]*sales.Sale
	byKey    map[string]*sales.Sale
	keys     []string
	seq      int
	creates  int
	annuls   int
	tickets  int
	createEr error
	ticketEr error

	// when set, CreateSale signals entered and waits for release or ctx
	entered chan struct{}
	release chan struct{}
}

func newFakeLedger(items ...catalog.Item) *fakeLedger {
	f := &fakeLedger{
		items: map[string]catalog.Item{},
		sales: map[string]*sales.Sale{},
		byKey: map[string]*sales.Sale{},
	}
	for _, it := range items {
		f.items[it.ID] = it
	}
	return f
}

func product(id, price string, stock int) catalog.Item {
	return catalog.Item{
		ID:        id,
		Name:      "item " + id,
		SKU:       "SKU-" + id,
		UnitPrice: decimal.RequireFromString(price),
		Stock:     stock,
		Active:    true,
	}
}

func (f *fakeLedger) setStock(id string, stock int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it := f.items[id]
	it.Stock = stock
	f.items[id] = it
}

func (f *fakeLedger) stock(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id].Stock
}

func (f *fakeLedger) counts() (creates, annuls, tickets int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates, f.annuls, f.tickets
}

func (f *fakeLedger) SearchCatalog(_ context.Context, term string, activeOnly bool) ([]catalog.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	term = catalog.NormalizeTerm(term)
	var out []catalog.Item
	for _, it := range f.items {
		if activeOnly && !it.Active {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(it.Name), term) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (f *fakeLedger) CreateSale(ctx context.Context, p sales.PendingSale) (*sales.Sale, error) {
	f.mu.Lock()
	f.creates++
	f.keys = append(f.keys, p.IdempotencyKey)
	entered, release := f.entered, f.release
	f.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createEr != nil {
		return nil, f.createEr
	}
	if s, ok := f.byKey[p.IdempotencyKey]; ok {
		return s, nil
	}
	var short []sales.Shortage
	for _, l := range p.Items {
		it, ok := f.items[l.ItemID]
		switch {
		case !ok:
			short = append(short, sales.Shortage{ItemID: l.ItemID, Reason: sales.RejectItemUnknown, Required: l.Quantity})
		case it.Stock < l.Quantity:
			short = append(short, sales.Shortage{ItemID: l.ItemID, SKU: it.SKU, Reason: sales.RejectOutOfStock, Required: l.Quantity, Available: it.Stock})
		}
	}
	if len(short) > 0 {
		msgs := make([]string, 0, len(short))
		for _, s := range short {
			msgs = append(msgs, s.String())
		}
		return nil, &sales.RejectionError{Code: short[0].Reason, Message: "sale rejected: " + strings.Join(msgs, "; "), Shortages: short}
	}

	f.seq++
	s := &sales.Sale{
		ID:            fmt.Sprintf("sale-%d", f.seq),
		ExternalID:    p.IdempotencyKey,
		ActorID:       p.ActorID,
		Status:        sales.StatusCompleted,
		PaymentMethod: p.PaymentMethod,
		Total:         p.Total(),
		CreatedAt:     time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
	}
	for _, l := range p.Items {
		it := f.items[l.ItemID]
		it.Stock -= l.Quantity
		f.items[l.ItemID] = it
		s.Items = append(s.Items, sales.SaleItem{ItemID: it.ID, SKU: it.SKU, Name: it.Name, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	f.sales[s.ID] = s
	f.byKey[p.IdempotencyKey] = s
	return s, nil
}

func (f *fakeLedger) AnnulSale(_ context.Context, saleID string) (*sales.Sale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.annuls++
	s, ok := f.sales[saleID]
	if !ok {
		return nil, sales.ErrSaleNotFound
	}
	if !sales.CanTransition(s.Status, sales.StatusAnnulled) {
		return nil, sales.ErrAlreadyAnnulled
	}
	for _, l := range s.Items {
		it := f.items[l.ItemID]
		it.Stock += l.Quantity
		f.items[l.ItemID] = it
	}
	now := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)
	s.Status = sales.StatusAnnulled
	s.AnnulledAt = &now
	return s, nil
}

func (f *fakeLedger) FetchTicket(_ context.Context, saleID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets++
	if f.ticketEr != nil {
		return nil, f.ticketEr
	}
	s, ok := f.sales[saleID]
	if !ok {
		return nil, sales.ErrSaleNotFound
	}
	return sales.RenderTicket(s, "TEST SHOP"), nil
}
