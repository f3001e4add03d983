package pos

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfStock            = errors.New("item is out of stock")
	ErrStockExceeded         = errors.New("quantity exceeds available stock")
	ErrItemInactive          = errors.New("item is not active")
	ErrLineNotFound          = errors.New("item is not in the cart")
	ErrUnknownItem           = errors.New("item not in current catalog results")
	ErrEmptyCart             = errors.New("cart is empty, nothing to checkout")
	ErrInvalidPaymentMethod  = errors.New("invalid payment method")
	ErrSubmissionInProgress  = errors.New("sale submission already in progress")
	ErrSubmissionRejected    = errors.New("sale submission rejected")
	ErrTimeout               = errors.New("sale submission timed out")
	ErrSaleComplete          = errors.New("sale complete, start a new sale first")
	ErrNoSale                = errors.New("no completed sale in this session")
	ErrAnnulmentNotConfirmed = errors.New("annulment requires confirmation")
	ErrAnnulmentFailed       = errors.New("sale annulment failed")
	ErrIllegalTransition     = errors.New("illegal checkout transition")
)

// StockError is a recoverable, line-level stock violation. The cart is
// unchanged when one is returned.
type StockError struct {
	ItemID    string
	Requested int
	Available int
	Err       error // ErrOutOfStock or ErrStockExceeded
}

func (e *StockError) Error() string {
	return fmt.Sprintf("%v: item %s requested %d, available %d", e.Err, e.ItemID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return e.Err }

// SubmissionError is a failed Confirm. The cart was preserved.
type SubmissionError struct {
	// Reason is the ledger's message verbatim, or a generic one.
	Reason string
	Err    error // ErrSubmissionRejected or ErrTimeout
	Cause  error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Reason)
}

func (e *SubmissionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}
