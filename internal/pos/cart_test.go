package pos

import (
	"math/rand"
	"testing"

	"github.com/ariefcatur/go-realtime-pos/internal/catalog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCart_AddTwiceWithSingleUnitInStock(t *testing.T) {
	c := NewCart()
	it := product("7", "3.50", 1)

	require.NoError(t, c.AddItem(it))
	assert.Equal(t, 1, c.Quantity("7"))

	err := c.AddItem(it)
	require.ErrorIs(t, err, ErrStockExceeded)
	var se *StockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 2, se.Requested)
	assert.Equal(t, 1, se.Available)
	assert.Equal(t, 1, c.Quantity("7"))
	assert.Equal(t, 1, c.Len())
}

func TestCart_AddOutOfStockNeverCreatesLine(t *testing.T) {
	c := NewCart()

	err := c.AddItem(product("9", "1.00", 0))

	require.ErrorIs(t, err, ErrOutOfStock)
	assert.True(t, c.IsEmpty())
}

func TestCart_AddOutOfStockKeepsExistingLine(t *testing.T) {
	c := NewCart()
	require.NoError(t, c.AddItem(product("9", "1.00", 4)))
	require.NoError(t, c.AddItem(product("9", "1.00", 4)))

	err := c.AddItem(product("9", "1.00", 0))

	require.ErrorIs(t, err, ErrOutOfStock)
	assert.Equal(t, 2, c.Quantity("9"))
}

func TestCart_AddInactiveRefused(t *testing.T) {
	c := NewCart()
	it := product("3", "2.00", 10)
	it.Active = false

	require.ErrorIs(t, c.AddItem(it), ErrItemInactive)
	assert.True(t, c.IsEmpty())
}

func TestCart_RepeatedAddsMerge(t *testing.T) {
	c := NewCart()
	for i := 0; i < 3; i++ {
		require.NoError(t, c.AddItem(product("1", "2.00", 5)))
	}
	require.NoError(t, c.AddItem(product("2", "1.00", 5)))

	lines := c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "1", lines[0].ItemID, "insertion order is display order")
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, "2", lines[1].ItemID)
}

func TestCart_ChangeQuantityFloorIsNoop(t *testing.T) {
	c := NewCart()
	it := product("5", "4.00", 10)
	for i := 0; i < 3; i++ {
		require.NoError(t, c.AddItem(it))
	}

	require.NoError(t, c.ChangeQuantity("5", -10))
	assert.Equal(t, 3, c.Quantity("5"))

	require.NoError(t, c.ChangeQuantity("5", -3))
	assert.Equal(t, 3, c.Quantity("5"), "line is never deleted by a decrement")
}

func TestCart_ChangeQuantity(t *testing.T) {
	c := NewCart()
	require.NoError(t, c.AddItem(product("5", "4.00", 4)))

	require.NoError(t, c.ChangeQuantity("5", 3))
	assert.Equal(t, 4, c.Quantity("5"))

	err := c.ChangeQuantity("5", 1)
	require.ErrorIs(t, err, ErrStockExceeded)
	assert.Equal(t, 4, c.Quantity("5"))

	require.NoError(t, c.ChangeQuantity("5", -2))
	assert.Equal(t, 2, c.Quantity("5"))

	require.ErrorIs(t, c.ChangeQuantity("nope", 1), ErrLineNotFound)
}

func TestCart_RemoveIsIdempotent(t *testing.T) {
	c := NewCart()
	require.NoError(t, c.AddItem(product("1", "1.00", 3)))
	require.NoError(t, c.AddItem(product("2", "1.00", 3)))

	c.RemoveItem("1")
	c.RemoveItem("1")
	c.RemoveItem("missing")

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "2", lines[0].ItemID)
}

func TestCart_TotalAndClear(t *testing.T) {
	c := NewCart()
	require.NoError(t, c.AddItem(product("1", "10.00", 5)))
	require.NoError(t, c.ChangeQuantity("1", 1))
	require.NoError(t, c.AddItem(product("2", "0.35", 5)))

	assert.Equal(t, "20.35", c.Total().StringFixed(2))
	assert.True(t, c.Total().Equal(c.Total()))

	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.True(t, c.Total().IsZero())
}

func TestCart_LinesAreCopies(t *testing.T) {
	c := NewCart()
	require.NoError(t, c.AddItem(product("1", "1.00", 3)))

	lines := c.Lines()
	lines[0].Quantity = 99

	assert.Equal(t, 1, c.Quantity("1"))
}

func TestCart_Reconcile(t *testing.T) {
	c := NewCart()
	require.NoError(t, c.AddItem(product("1", "1.00", 5)))
	require.NoError(t, c.ChangeQuantity("1", 3))
	require.NoError(t, c.AddItem(product("2", "2.00", 5)))
	require.NoError(t, c.AddItem(product("3", "3.00", 5)))

	gone := product("3", "3.00", 5)
	gone.Active = false
	adj := c.Reconcile([]catalog.Item{
		product("1", "1.00", 2),
		product("2", "2.50", 5),
		gone,
		product("99", "1.00", 1),
	})

	require.Len(t, adj, 3)
	assert.Equal(t, Adjustment{ItemID: "1", OldQuantity: 4, NewQuantity: 2, OldStock: 5, NewStock: 2}, adj[0])
	assert.True(t, adj[1].PriceChange)
	assert.Equal(t, 0, adj[2].NewQuantity)

	assert.Equal(t, 2, c.Quantity("1"))
	l, ok := c.Line("2")
	require.True(t, ok)
	assert.Equal(t, "2.50", l.UnitPrice.StringFixed(2))
	_, ok = c.Line("3")
	assert.False(t, ok)
	_, ok = c.Line("99")
	assert.False(t, ok, "reconcile never adds lines")
}

// Random sequences of mutations never break the line invariants.
func TestCart_InvariantsUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	items := []catalog.Item{
		product("a", "1.10", 0),
		product("b", "2.20", 1),
		product("c", "3.30", 3),
		product("d", "4.40", 7),
	}
	c := NewCart()

	for i := 0; i < 5000; i++ {
		it := items[rng.Intn(len(items))]
		switch rng.Intn(3) {
		case 0:
			_ = c.AddItem(it)
		case 1:
			c.RemoveItem(it.ID)
		case 2:
			_ = c.ChangeQuantity(it.ID, rng.Intn(9)-4)
		}

		seen := map[string]bool{}
		want := decimal.Zero
		for _, l := range c.Lines() {
			require.False(t, seen[l.ItemID], "duplicate line %s", l.ItemID)
			seen[l.ItemID] = true
			require.GreaterOrEqual(t, l.Quantity, 1)
			require.LessOrEqual(t, l.Quantity, l.Stock)
			want = want.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
		require.True(t, want.Equal(c.Total()), "total drifted at step %d", i)
		require.False(t, seen["a"], "out of stock item got a line")
	}
}
