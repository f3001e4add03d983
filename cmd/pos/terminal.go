package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ariefcatur/go-realtime-pos/internal/catalog"
	"github.com/ariefcatur/go-realtime-pos/internal/pos"
	"github.com/ariefcatur/go-realtime-pos/internal/sales"
)

// Backoffice is the part of the ledger the terminal uses outside checkout.
type Backoffice interface {
	ListSales(ctx context.Context, limit int) ([]sales.Sale, error)
	AdjustStock(ctx context.Context, itemID string, delta int, reason string) (sales.StockMovement, error)
}

type terminal struct {
	session *pos.Session
	catalog *catalog.Cache
	history *pos.History
	ledger  Backoffice
	in      io.Reader
	out     io.Writer
}

const help = `commands:
  search <term>        find items
  add <item-id>        add one unit
  rm <item-id>         remove the line
  qty <item-id> <+/-n> change quantity
  clear | cart | sync
  checkout | pay <cash|card|transfer|other> | cancel | confirm
  ticket | new
  sales [n] | annul <sale-id> | reticket <sale-id>
  restock <item-id> <n> | writeoff <item-id> <n>
  quit`

func (t *terminal) run(ctx context.Context) error {
	sc := bufio.NewScanner(t.in)
	t.printf("%s\n", help)
	for {
		t.printf("[%s] > ", t.session.State())
		if !sc.Scan() {
			return sc.Err()
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}
		if err := t.exec(ctx, sc, fields[0], fields[1:]); err != nil {
			t.printf("error: %v\n", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (t *terminal) exec(ctx context.Context, sc *bufio.Scanner, cmd string, args []string) error {
	switch cmd {
	case "help":
		t.printf("%s\n", help)
	case "search":
		items, err := t.catalog.Search(ctx, strings.Join(args, " "))
		if err != nil {
			if len(items) > 0 {
				t.printf("(showing stale results)\n")
				t.printItems(items)
			}
			return err
		}
		t.printItems(items)
	case "add":
		if len(args) != 1 {
			return errUsage
		}
		if err := t.session.AddItemByID(args[0]); err != nil {
			return err
		}
		t.printCart()
	case "rm":
		if len(args) != 1 {
			return errUsage
		}
		if err := t.session.RemoveItem(args[0]); err != nil {
			return err
		}
		t.printCart()
	case "qty":
		if len(args) != 2 {
			return errUsage
		}
		delta, err := strconv.Atoi(args[1])
		if err != nil {
			return errUsage
		}
		if err := t.session.ChangeQuantity(args[0], delta); err != nil {
			return err
		}
		t.printCart()
	case "clear":
		return t.session.ClearCart()
	case "cart":
		t.printCart()
	case "sync":
		adj, err := t.session.SyncStock()
		if err != nil {
			return err
		}
		for _, a := range adj {
			t.printf("  %s: qty %d -> %d (stock %d -> %d)\n", a.ItemID, a.OldQuantity, a.NewQuantity, a.OldStock, a.NewStock)
		}
		t.printCart()
	case "checkout":
		if err := t.session.InitiateCheckout(); err != nil {
			return err
		}
		t.printf("total %s, payment %s\n", t.session.Total().StringFixed(2), t.session.PaymentMethod())
	case "pay":
		if len(args) != 1 {
			return errUsage
		}
		return t.session.SelectPayment(sales.PaymentMethod(args[0]))
	case "cancel":
		return t.session.CancelPayment()
	case "confirm":
		sale, err := t.session.Confirm(ctx)
		if err != nil {
			return err
		}
		t.printf("sale %s recorded, total %s\n", sale.ID, sale.Total.StringFixed(2))
	case "ticket":
		doc, err := t.session.Ticket(ctx)
		if err != nil {
			return err
		}
		t.printf("%s\n", doc)
	case "new":
		return t.session.NewSale()
	case "sales":
		limit := 20
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return errUsage
			}
			limit = n
		}
		list, err := t.ledger.ListSales(ctx, limit)
		if err != nil {
			return err
		}
		for _, s := range list {
			t.printf("  %-10s %-9s %-5s %10s  %s\n", s.ID, s.Status, s.PaymentMethod, s.Total.StringFixed(2), s.CreatedAt.Format("2006-01-02 15:04"))
		}
	case "annul":
		if len(args) != 1 {
			return errUsage
		}
		t.printf("annul sale %s and restore its stock? [y/N] ", args[0])
		confirmed := sc.Scan() && strings.EqualFold(strings.TrimSpace(sc.Text()), "y")
		sale, err := t.history.Annul(ctx, args[0], confirmed)
		if err != nil {
			return err
		}
		t.printf("sale %s %s\n", sale.ID, sale.Status)
	case "reticket":
		if len(args) != 1 {
			return errUsage
		}
		doc, err := t.history.Ticket(ctx, args[0])
		if err != nil {
			return err
		}
		t.printf("%s\n", doc)
	case "restock", "writeoff":
		if len(args) != 2 {
			return errUsage
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return errUsage
		}
		reason := sales.MovementRestock
		if cmd == "writeoff" {
			n, reason = -n, sales.MovementWriteOff
		}
		mv, err := t.ledger.AdjustStock(ctx, args[0], n, reason)
		if err != nil {
			return err
		}
		t.catalog.Invalidate()
		t.printf("%s stock now %d\n", mv.ItemID, mv.StockNow)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

var errUsage = errors.New("bad arguments, type help")

func (t *terminal) printItems(items []catalog.Item) {
	for _, it := range items {
		t.printf("  %-8s %-24s %10s  stock %d\n", it.ID, it.Name, it.UnitPrice.StringFixed(2), it.Stock)
	}
}

func (t *terminal) printCart() {
	lines := t.session.Lines()
	if len(lines) == 0 {
		t.printf("  (cart empty)\n")
		return
	}
	for _, l := range lines {
		t.printf("  %-8s %-24s %3d x %8s = %10s\n", l.ItemID, l.Name, l.Quantity, l.UnitPrice.StringFixed(2), l.Subtotal().StringFixed(2))
	}
	t.printf("  TOTAL %s\n", t.session.Total().StringFixed(2))
}

func (t *terminal) printf(format string, a ...any) {
	_, _ = fmt.Fprintf(t.out, format, a...)
}
