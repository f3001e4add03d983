package sales

import "fmt"

// Validate checks the request shape only; stock and prices are the
// repository's business.
func (p PendingSale) Validate() error {
	if p.ActorID == "" {
		return fmt.Errorf("%w: missing actor", ErrInvalidSale)
	}
	if !p.PaymentMethod.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, p.PaymentMethod)
	}
	if len(p.Items) == 0 {
		return fmt.Errorf("%w: no items", ErrInvalidSale)
	}
	seen := make(map[string]bool, len(p.Items))
	for _, it := range p.Items {
		if it.ItemID == "" {
			return fmt.Errorf("%w: missing item id", ErrInvalidSale)
		}
		if seen[it.ItemID] {
			return fmt.Errorf("%w: duplicate item %s", ErrInvalidSale, it.ItemID)
		}
		seen[it.ItemID] = true
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: invalid qty for item %s", ErrInvalidSale, it.ItemID)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: negative price for item %s", ErrInvalidSale, it.ItemID)
		}
		if _, err := ToCents(it.UnitPrice); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSale, err)
		}
	}
	return nil
}
