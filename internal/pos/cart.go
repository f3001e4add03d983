package pos

import (
	"github.com/ariefcatur/go-realtime-pos/internal/catalog"
	"github.com/ariefcatur/go-realtime-pos/internal/sales"
	"github.com/shopspring/decimal"
)

// Line is one cart entry: a catalog snapshot plus the requested quantity.
// Quantity stays within [1, Stock].
type Line struct {
	ItemID    string
	Name      string
	SKU       string
	UnitPrice decimal.Decimal
	Stock     int // available stock as last observed
	Quantity  int
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the provisional order of one checkout session. It is not safe for
// concurrent use; Session serializes access.
type Cart struct {
	order []string
	lines map[string]*Line
}

func NewCart() *Cart {
	return &Cart{lines: map[string]*Line{}}
}

// AddItem puts one unit of item in the cart, merging with an existing line.
func (c *Cart) AddItem(item catalog.Item) error {
	if !item.Active {
		return ErrItemInactive
	}
	l, ok := c.lines[item.ID]
	if item.Stock <= 0 {
		requested := 1
		if ok {
			requested = l.Quantity + 1
		}
		return &StockError{ItemID: item.ID, Requested: requested, Available: item.Stock, Err: ErrOutOfStock}
	}
	if ok {
		// item is the freshest observation of stock for this line
		if l.Quantity+1 > item.Stock {
			return &StockError{ItemID: item.ID, Requested: l.Quantity + 1, Available: item.Stock, Err: ErrStockExceeded}
		}
		l.Quantity++
		l.Stock = item.Stock
		return nil
	}
	c.order = append(c.order, item.ID)
	c.lines[item.ID] = &Line{
		ItemID:    item.ID,
		Name:      item.Name,
		SKU:       item.SKU,
		UnitPrice: item.UnitPrice,
		Stock:     item.Stock,
		Quantity:  1,
	}
	return nil
}

// RemoveItem drops the whole line. Removing an absent item is a no-op.
func (c *Cart) RemoveItem(itemID string) {
	if _, ok := c.lines[itemID]; !ok {
		return
	}
	delete(c.lines, itemID)
	for i, id := range c.order {
		if id == itemID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// ChangeQuantity applies delta to a line. A result of zero or less leaves the
// line untouched; use RemoveItem to delete it.
func (c *Cart) ChangeQuantity(itemID string, delta int) error {
	l, ok := c.lines[itemID]
	if !ok {
		return ErrLineNotFound
	}
	next := l.Quantity + delta
	if next <= 0 {
		return nil
	}
	if next > l.Stock {
		return &StockError{ItemID: itemID, Requested: next, Available: l.Stock, Err: ErrStockExceeded}
	}
	l.Quantity = next
	return nil
}

func (c *Cart) Clear() {
	c.order = nil
	c.lines = map[string]*Line{}
}

// Total is recomputed from the lines on every call.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, id := range c.order {
		total = total.Add(c.lines[id].Subtotal())
	}
	return total
}

// Lines returns copies in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.lines[id])
	}
	return out
}

func (c *Cart) Line(itemID string) (Line, bool) {
	l, ok := c.lines[itemID]
	if !ok {
		return Line{}, false
	}
	return *l, true
}

func (c *Cart) Quantity(itemID string) int {
	if l, ok := c.lines[itemID]; ok {
		return l.Quantity
	}
	return 0
}

func (c *Cart) Len() int      { return len(c.order) }
func (c *Cart) IsEmpty() bool { return len(c.order) == 0 }

// Adjustment reports a line changed by Reconcile.
type Adjustment struct {
	ItemID      string
	OldQuantity int
	NewQuantity int // 0 means the line was removed
	OldStock    int
	NewStock    int
	PriceChange bool
}

// Reconcile refreshes cached stock and price from a newer catalog snapshot.
// Lines missing from items are left alone. Lines over the new stock are
// clamped, lines whose item is gone or inactive or out of stock are removed.
func (c *Cart) Reconcile(items []catalog.Item) []Adjustment {
	var adj []Adjustment
	for _, it := range items {
		l, ok := c.lines[it.ID]
		if !ok {
			continue
		}
		a := Adjustment{
			ItemID:      it.ID,
			OldQuantity: l.Quantity,
			NewQuantity: l.Quantity,
			OldStock:    l.Stock,
			NewStock:    it.Stock,
			PriceChange: !l.UnitPrice.Equal(it.UnitPrice),
		}
		switch {
		case !it.Active || it.Stock <= 0:
			a.NewQuantity = 0
			c.RemoveItem(it.ID)
		default:
			l.Stock = it.Stock
			l.UnitPrice = it.UnitPrice
			l.Name = it.Name
			if l.Quantity > it.Stock {
				l.Quantity = it.Stock
				a.NewQuantity = it.Stock
			}
		}
		if a.NewQuantity != a.OldQuantity || a.NewStock != a.OldStock || a.PriceChange {
			adj = append(adj, a)
		}
	}
	return adj
}

// pendingLines copies the cart verbatim into ledger request lines.
func (c *Cart) pendingLines() []sales.LineInput {
	out := make([]sales.LineInput, 0, len(c.order))
	for _, id := range c.order {
		l := c.lines[id]
		out = append(out, sales.LineInput{ItemID: l.ItemID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return out
}
