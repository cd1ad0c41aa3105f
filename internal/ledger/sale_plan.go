package ledger

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/ledgerpos/ledgerpos/internal/entitystore"
)

// SalePlan is the validated write set of a sale commit.
type SalePlan struct {
	Sale   Sale
	Writes []entitystore.Write
}

// PlanSale validates input against the customer and product snapshot and
// builds one sale create plus one version-guarded stock decrement per
// product. Prices and names are captured from the product snapshot.
func PlanSale(input SaleInput, customer Customer, products map[string]Product) (SalePlan, error) {
	if len(input.Items) == 0 {
		return SalePlan{}, ErrEmptySale
	}

	requested := make(map[string]int64, len(input.Items))
	order := make([]string, 0, len(input.Items))
	items := make([]LineItem, 0, len(input.Items))
	var total int64
	for _, in := range input.Items {
		if in.Quantity < 1 {
			return SalePlan{}, fmt.Errorf("%w: product %s quantity %d", ErrInvalidQuantity, in.ProductID, in.Quantity)
		}
		p, ok := products[in.ProductID]
		if !ok {
			return SalePlan{}, fmt.Errorf("%w: %s", ErrProductNotFound, in.ProductID)
		}
		if _, seen := requested[p.ID]; !seen {
			order = append(order, p.ID)
		}
		if requested[p.ID] > math.MaxInt64-in.Quantity {
			return SalePlan{}, fmt.Errorf("%w: product %s quantity overflows", ErrInvalidQuantity, p.ID)
		}
		requested[p.ID] += in.Quantity
		item := LineItem{ProductID: p.ID, Name: p.Name, UnitPrice: p.UnitPrice, Quantity: in.Quantity}
		subtotal, err := item.Subtotal()
		if err != nil {
			return SalePlan{}, fmt.Errorf("product %s: %w", p.ID, err)
		}
		if total, err = addAmounts(total, subtotal); err != nil {
			return SalePlan{}, fmt.Errorf("sale total: %w", err)
		}
		items = append(items, item)
	}

	for _, id := range order {
		if p := products[id]; requested[id] > p.Stock {
			return SalePlan{}, &StockError{ProductID: id, Requested: requested[id], Available: p.Stock}
		}
	}

	name := input.CustomerName
	if name == "" {
		name = customer.Name
	}
	sale := Sale{
		ID:           uuid.NewString(),
		CustomerID:   customer.ID,
		CustomerName: name,
		Items:        items,
		Total:        total,
		Balance:      total,
	}

	writes := make([]entitystore.Write, 0, len(order)+1)
	writes = append(writes, entitystore.Create(CollectionSales, sale.ID, SaleFields(sale)))
	for _, id := range order {
		p := products[id]
		writes = append(writes, entitystore.Update(CollectionProducts, id, p.Version, map[string]any{"stock": p.Stock - requested[id]}))
	}
	return SalePlan{Sale: sale, Writes: writes}, nil
}
