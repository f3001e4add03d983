package sales

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

const ticketWidth = 48

// RenderTicket prints a fixed-width receipt. Annulled sales stay printable
// and carry an ANNULLED banner.
func RenderTicket(s *Sale, shop string) []byte {
	var b bytes.Buffer
	line := strings.Repeat("-", ticketWidth)

	fmt.Fprintln(&b, center(shop))
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "Sale:    %s\n", s.ID)
	fmt.Fprintf(&b, "Date:    %s\n", s.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Cashier: %s\n", s.ActorID)
	if s.Status == StatusAnnulled {
		fmt.Fprintln(&b, center("*** ANNULLED ***"))
		if s.AnnulledAt != nil {
			fmt.Fprintf(&b, "Annulled: %s\n", s.AnnulledAt.UTC().Format(time.RFC3339))
		}
	}
	fmt.Fprintln(&b, line)
	for _, it := range s.Items {
		fmt.Fprintln(&b, truncate(it.Name, ticketWidth))
		qty := fmt.Sprintf("  %d x %s", it.Quantity, it.UnitPrice.StringFixed(2))
		fmt.Fprintln(&b, leftRight(qty, it.Subtotal().StringFixed(2)))
	}
	fmt.Fprintln(&b, line)
	fmt.Fprintln(&b, leftRight("TOTAL", s.Total.StringFixed(2)))
	fmt.Fprintln(&b, leftRight("Paid by", string(s.PaymentMethod)))
	return b.Bytes()
}

func leftRight(l, r string) string {
	pad := ticketWidth - len(l) - len(r)
	if pad < 1 {
		pad = 1
	}
	return l + strings.Repeat(" ", pad) + r
}

func center(s string) string {
	s = truncate(s, ticketWidth)
	return strings.Repeat(" ", (ticketWidth-len(s))/2) + s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
