package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledgerpos/ledgerpos/internal/entitystore"
)

// Violation kinds reported by CheckIntegrity.
const (
	ViolationBalanceMismatch = "balance_mismatch"
	ViolationBalanceRange    = "balance_out_of_range"
	ViolationTotalMismatch   = "total_mismatch"
	ViolationNegativeStock   = "negative_stock"
	ViolationOrphanPayment   = "orphan_payment"
	ViolationInvalidPayment  = "invalid_payment_amount"
)

// Violation is one ledger inconsistency.
type Violation struct {
	Kind       string `json:"kind"`
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Detail     string `json:"detail"`
}

// Audit is the result of AuditStore.
type Audit struct {
	Sales      int
	Payments   int
	Violations []Violation
}

// AuditStore loads tenant from one consistent read and runs CheckIntegrity
// over it.
func AuditStore(ctx context.Context, store entitystore.Store, tenant string, logger *slog.Logger) (Audit, error) {
	mirror := NewMirror(store, tenant, logger)
	if err := mirror.RefreshCollections(ctx, CollectionSales, CollectionPayments, CollectionProducts); err != nil {
		return Audit{}, err
	}
	sales, payments := mirror.Sales(), mirror.Payments()
	return Audit{
		Sales:      len(sales),
		Payments:   len(payments),
		Violations: CheckIntegrity(sales, payments, mirror.Products()),
	}, nil
}

// CheckIntegrity verifies that every sale balance equals its total minus the
// payments recorded against it, that totals match their line items and that
// stock and payment amounts are within range.
func CheckIntegrity(sales []Sale, payments []Payment, products []Product) []Violation {
	violations := make([]Violation, 0)
	paid := make(map[string]int64, len(sales))
	known := make(map[string]struct{}, len(sales))
	for _, s := range sales {
		known[s.ID] = struct{}{}
	}

	for _, p := range payments {
		if p.Amount <= 0 {
			violations = append(violations, Violation{
				Kind: ViolationInvalidPayment, Collection: CollectionPayments, ID: p.ID,
				Detail: fmt.Sprintf("amount %d is not positive", p.Amount),
			})
		}
		if _, ok := known[p.SaleID]; !ok {
			violations = append(violations, Violation{
				Kind: ViolationOrphanPayment, Collection: CollectionPayments, ID: p.ID,
				Detail: fmt.Sprintf("sale %s does not exist", p.SaleID),
			})
			continue
		}
		sum, err := addAmounts(paid[p.SaleID], p.Amount)
		if err != nil {
			violations = append(violations, Violation{
				Kind: ViolationInvalidPayment, Collection: CollectionPayments, ID: p.ID,
				Detail: err.Error(),
			})
			continue
		}
		paid[p.SaleID] = sum
	}

	for _, s := range sales {
		itemsTotal, err := lineItemsTotal(s.Items)
		switch {
		case err != nil:
			violations = append(violations, Violation{
				Kind: ViolationTotalMismatch, Collection: CollectionSales, ID: s.ID,
				Detail: fmt.Sprintf("total %d, line items: %v", s.Total, err),
			})
		case itemsTotal != s.Total:
			violations = append(violations, Violation{
				Kind: ViolationTotalMismatch, Collection: CollectionSales, ID: s.ID,
				Detail: fmt.Sprintf("total %d, line items sum to %d", s.Total, itemsTotal),
			})
		}
		if s.Balance < 0 || s.Balance > s.Total {
			violations = append(violations, Violation{
				Kind: ViolationBalanceRange, Collection: CollectionSales, ID: s.ID,
				Detail: fmt.Sprintf("balance %d outside [0, %d]", s.Balance, s.Total),
			})
		}
		if want := s.Total - paid[s.ID]; want != s.Balance {
			violations = append(violations, Violation{
				Kind: ViolationBalanceMismatch, Collection: CollectionSales, ID: s.ID,
				Detail: fmt.Sprintf("balance %d, total minus payments is %d", s.Balance, want),
			})
		}
	}

	for _, p := range products {
		if p.Stock < 0 {
			violations = append(violations, Violation{
				Kind: ViolationNegativeStock, Collection: CollectionProducts, ID: p.ID,
				Detail: fmt.Sprintf("stock %d", p.Stock),
			})
		}
	}
	return violations
}

func lineItemsTotal(items []LineItem) (int64, error) {
	var total int64
	for _, it := range items {
		sub, err := it.Subtotal()
		if err != nil {
			return 0, err
		}
		if total, err = addAmounts(total, sub); err != nil {
			return 0, err
		}
	}
	return total, nil
}
