package sales

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSaleNotFound         = errors.New("sale not found")
	ErrItemNotFound         = errors.New("item not found")
	ErrAlreadyAnnulled      = errors.New("sale already annulled")
	ErrNegativeStock        = errors.New("stock cannot go below zero")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidSale          = errors.New("invalid sale")
)

// Rejection codes reported by the ledger when a sale cannot be fulfilled.
const (
	RejectOutOfStock   = "OUT_OF_STOCK"
	RejectItemInactive = "ITEM_INACTIVE"
	RejectItemUnknown  = "ITEM_NOT_FOUND"
	RejectPriceChanged = "PRICE_CHANGED"
)

// Shortage explains why one line could not be fulfilled.
type Shortage struct {
	ItemID    string `json:"item_id"`
	SKU       string `json:"sku,omitempty"`
	Reason    string `json:"reason"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

func (s Shortage) String() string {
	name := s.ItemID
	if s.SKU != "" {
		name = s.SKU
	}
	switch s.Reason {
	case RejectOutOfStock:
		return fmt.Sprintf("%s: requested %d, only %d in stock", name, s.Required, s.Available)
	case RejectItemInactive:
		return fmt.Sprintf("%s: item is no longer sold", name)
	case RejectItemUnknown:
		return fmt.Sprintf("%s: item does not exist", name)
	case RejectPriceChanged:
		return fmt.Sprintf("%s: price changed", name)
	}
	return fmt.Sprintf("%s: %s", name, s.Reason)
}

// RejectionError is the ledger refusing a whole sale. Nothing was written.
type RejectionError struct {
	Code      string     `json:"error"`
	Message   string     `json:"message"`
	Shortages []Shortage `json:"details,omitempty"`
}

func (e *RejectionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "sale rejected: " + e.Code
}

func NewRejection(shortages []Shortage) *RejectionError {
	parts := make([]string, 0, len(shortages))
	for _, s := range shortages {
		parts = append(parts, s.String())
	}
	return &RejectionError{
		Code:      shortages[0].Reason,
		Message:   "sale rejected: " + strings.Join(parts, "; "),
		Shortages: shortages,
	}
}
