package ledger

import (
	"errors"
	"fmt"

	"github.com/ledgerpos/ledgerpos/internal/entitystore"
)

var (
	// ErrInvalidAmount covers non-positive amounts and amounts above the debt.
	ErrInvalidAmount = errors.New("ledger: invalid amount")
	// ErrInvalidMethod indicates a missing or unknown payment method.
	ErrInvalidMethod = errors.New("ledger: invalid payment method")
	// ErrInsufficientStock indicates a sale asked for more than is in stock.
	ErrInsufficientStock = errors.New("ledger: insufficient stock")
	// ErrNoOutstandingDebt indicates there is nothing left to pay.
	ErrNoOutstandingDebt = errors.New("ledger: no outstanding debt")
	// ErrAmountOverflow indicates a price, total or sum outside [-MaxAmount, MaxAmount].
	ErrAmountOverflow = errors.New("ledger: amount out of range")
	// ErrConflict indicates the store rejected a commit due to a concurrent change.
	ErrConflict = entitystore.ErrConflict

	ErrEmptySale        = errors.New("ledger: sale has no items")
	ErrInvalidQuantity  = errors.New("ledger: quantity must be at least 1")
	ErrProductNotFound  = errors.New("ledger: product not found")
	ErrCustomerNotFound = errors.New("ledger: customer not found")
	ErrSaleNotFound     = errors.New("ledger: sale not found")
)

// StockError reports the product that could not cover a sale.
type StockError struct {
	ProductID string
	Requested int64
	Available int64
}

func (e *StockError) Error() string {
	return fmt.Sprintf("ledger: insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

// Unwrap lets errors.Is match ErrInsufficientStock.
func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}

// IsRetryable reports whether err may succeed when replanned from fresh data.
// Only store conflicts qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
