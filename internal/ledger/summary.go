package ledger

import (
	"sort"
)

// Summary holds the dashboard figures of a store.
type Summary struct {
	Revenue    int64  `json:"revenue"`
	Receivable int64  `json:"receivable"`
	SalesCount int    `json:"sales_count"`
	OpenSales  int    `json:"open_sales"`
	Recent     []Sale `json:"recent"`
}

// Summarize computes collected revenue, open receivables and the most recent
// sales, newest first, capped at recent. Sums saturate instead of wrapping.
func Summarize(sales []Sale, recent int) Summary {
	sum := Summary{SalesCount: len(sales), Recent: []Sale{}}
	for _, s := range sales {
		sum.Revenue = saturatingAdd(sum.Revenue, s.Paid())
		sum.Receivable = saturatingAdd(sum.Receivable, s.Balance)
		if !s.Closed() {
			sum.OpenSales++
		}
	}
	if recent <= 0 {
		return sum
	}
	ordered := make([]Sale, len(sales))
	copy(ordered, sales)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
		}
		return ordered[i].ID > ordered[j].ID
	})
	if len(ordered) > recent {
		ordered = ordered[:recent]
	}
	sum.Recent = ordered
	return sum
}

// Debtor is a customer with an outstanding balance.
type Debtor struct {
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	Outstanding  int64  `json:"outstanding"`
	OpenSales    int    `json:"open_sales"`
}

// Debtors aggregates open balances per customer, largest debt first. The
// customer's current name is used when known, otherwise the sale snapshot.
func Debtors(sales []Sale, customers []Customer) []Debtor {
	names := make(map[string]string, len(customers))
	for _, c := range customers {
		names[c.ID] = c.Name
	}
	byCustomer := make(map[string]*Debtor)
	for _, s := range sales {
		if s.Closed() {
			continue
		}
		d, ok := byCustomer[s.CustomerID]
		if !ok {
			name, known := names[s.CustomerID]
			if !known {
				name = s.CustomerName
			}
			d = &Debtor{CustomerID: s.CustomerID, CustomerName: name}
			byCustomer[s.CustomerID] = d
		}
		d.Outstanding = saturatingAdd(d.Outstanding, s.Balance)
		d.OpenSales++
	}
	out := make([]Debtor, 0, len(byCustomer))
	for _, d := range byCustomer {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Outstanding != out[j].Outstanding {
			return out[i].Outstanding > out[j].Outstanding
		}
		if out[i].CustomerName != out[j].CustomerName {
			return out[i].CustomerName < out[j].CustomerName
		}
		return out[i].CustomerID < out[j].CustomerID
	})
	return out
}
