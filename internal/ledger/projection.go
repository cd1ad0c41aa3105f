package ledger

import (
	"sort"
)

// GroupPayments folds payments into payment groups keyed by group id. The
// customer of a group is taken from the sale of its first payment; groups
// whose sale is unknown are labelled UnknownCustomer. Groups are returned
// newest first, ties broken by group id. The function keeps no state.
func GroupPayments(payments []Payment, sales []Sale) []PaymentGroup {
	saleIndex := make(map[string]Sale, len(sales))
	for _, s := range sales {
		saleIndex[s.ID] = s
	}

	ordered := make([]Payment, len(payments))
	copy(ordered, payments)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	groups := make(map[string]*PaymentGroup)
	keys := make([]string, 0)
	for _, p := range ordered {
		g, ok := groups[p.GroupID]
		if !ok {
			g = &PaymentGroup{
				ID:                p.GroupID,
				Date:              p.CreatedAt,
				CustomerName:      UnknownCustomer,
				PaymentMethodID:   p.PaymentMethodID,
				PaymentMethodName: p.PaymentMethodName,
				Applications:      []Application{},
			}
			if sale, found := saleIndex[p.SaleID]; found {
				g.CustomerID = sale.CustomerID
				g.CustomerName = sale.CustomerName
			}
			groups[p.GroupID] = g
			keys = append(keys, p.GroupID)
		}
		g.TotalAmount += p.Amount
		g.Applications = append(g.Applications, Application{SaleID: p.SaleID, Amount: p.Amount})
	}

	out := make([]PaymentGroup, 0, len(keys))
	for _, k := range keys {
		out = append(out, *groups[k])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
