package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ariefcatur/go-realtime-pos/internal/catalog"
	"github.com/ariefcatur/go-realtime-pos/internal/httpx"
	"github.com/ariefcatur/go-realtime-pos/internal/ledger"
	"github.com/ariefcatur/go-realtime-pos/internal/pos"
	"github.com/ariefcatur/go-realtime-pos/internal/sales/salestest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTerminal(t *testing.T, store *salestest.MemStore, script string) (*terminal, *bytes.Buffer) {
	t.Helper()
	r := httpx.NewRouter(nil)
	(&httpx.SalesHandler{Store: store, Service: "test", Shop: "TEST SHOP"}).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	client := ledger.New(srv.URL)
	cache := catalog.NewCache(client, nil)
	out := &bytes.Buffer{}
	return &terminal{
		session: pos.NewSession(client, cache, "cashier-1"),
		catalog: cache,
		history: &pos.History{Ledger: client},
		ledger:  client,
		in:      strings.NewReader(script),
		out:     out,
	}, out
}

func TestTerminal_SaleAnnulAndRestock(t *testing.T) {
	store := salestest.NewMemStore(salestest.Item("42", "Cola", "10.00", 5))
	term, out := newTerminal(t, store, strings.Join([]string{
		"search cola",
		"add 42",
		"qty 42 1",
		"checkout",
		"pay card",
		"confirm",
		"ticket",
		"new",
		"sales",
		"annul sale-1",
		"y",
		"restock 42 3",
		"quit",
	}, "\n"))

	require.NoError(t, term.run(context.Background()))

	got := out.String()
	assert.NotContains(t, got, "error:")
	assert.Contains(t, got, "sale sale-1 recorded, total 20.00")
	assert.Contains(t, got, "TOTAL")
	assert.Contains(t, got, "sale sale-1 annulled")
	assert.Contains(t, got, "42 stock now 8")
	assert.Equal(t, pos.StateIdle, term.session.State())
	assert.Equal(t, 8, store.Stock("42"))
}

func TestTerminal_AnnulNeedsConfirmation(t *testing.T) {
	store := salestest.NewMemStore(salestest.Item("42", "Cola", "10.00", 5))
	term, out := newTerminal(t, store, "search cola\nadd 42\ncheckout\nconfirm\nnew\nannul sale-1\nn\nquit\n")

	require.NoError(t, term.run(context.Background()))

	assert.Contains(t, out.String(), "error: annulment requires confirmation")
	assert.Equal(t, 4, store.Stock("42"))
}

func TestTerminal_Errors(t *testing.T) {
	store := salestest.NewMemStore(salestest.Item("42", "Cola", "10.00", 5))
	term, out := newTerminal(t, store, "add 42\nqty 42 x\nfly\ncheckout\n")

	require.NoError(t, term.run(context.Background()))

	got := out.String()
	assert.Contains(t, got, "error: item not in current catalog results")
	assert.Contains(t, got, "error: bad arguments, type help")
	assert.Contains(t, got, `error: unknown command "fly"`)
	assert.Equal(t, pos.StateIdle, term.session.State())
}
