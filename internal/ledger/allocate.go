package ledger

import (
	"fmt"
	"sort"
)

// Allocation is the part of a payment applied to one sale. Version is the
// sale version the allocation was computed from.
type Allocation struct {
	SaleID  string
	Version int64
	Balance int64
	Amount  int64
}

// Remaining returns the sale balance after the allocation is applied.
func (a Allocation) Remaining() int64 {
	return a.Balance - a.Amount
}

// OutstandingSales keeps sales with a positive balance, oldest first. Sales
// created at the same instant are ordered by id.
func OutstandingSales(sales []Sale) []Sale {
	open := make([]Sale, 0, len(sales))
	for _, s := range sales {
		if s.Balance > 0 {
			open = append(open, s)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		if !open[i].CreatedAt.Equal(open[j].CreatedAt) {
			return open[i].CreatedAt.Before(open[j].CreatedAt)
		}
		return open[i].ID < open[j].ID
	})
	return open
}

// TotalOutstanding sums the positive balances of sales. It fails with
// ErrAmountOverflow when the sum leaves the supported range.
func TotalOutstanding(sales []Sale) (int64, error) {
	var total int64
	for _, s := range sales {
		if s.Balance <= 0 {
			continue
		}
		var err error
		if total, err = addAmounts(total, s.Balance); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// Allocate spreads amount over the outstanding sales, oldest first, applying
// min(remaining, balance) to each until nothing remains. The allocated
// amounts always sum to amount.
func Allocate(sales []Sale, amount int64) ([]Allocation, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: %d must be positive", ErrInvalidAmount, amount)
	}
	open := OutstandingSales(sales)
	if len(open) == 0 {
		return nil, ErrNoOutstandingDebt
	}
	total, err := TotalOutstanding(open)
	if err != nil {
		return nil, err
	}
	if amount > total {
		return nil, fmt.Errorf("%w: %d exceeds outstanding debt %d", ErrInvalidAmount, amount, total)
	}

	allocations := make([]Allocation, 0, len(open))
	remaining := amount
	for _, s := range open {
		if remaining == 0 {
			break
		}
		applied := min(remaining, s.Balance)
		allocations = append(allocations, Allocation{SaleID: s.ID, Version: s.Version, Balance: s.Balance, Amount: applied})
		remaining -= applied
	}
	return allocations, nil
}
