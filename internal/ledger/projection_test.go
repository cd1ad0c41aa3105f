package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func payment(id, saleID, group string, amount int64, at time.Time) Payment {
	return Payment{ID: id, SaleID: saleID, Amount: amount, GroupID: group, PaymentMethodID: "cash", PaymentMethodName: "Cash", CreatedAt: at}
}

func TestGroupPaymentsSingleGroup(t *testing.T) {
	sales := []Sale{{ID: "s1", CustomerID: "c1", CustomerName: "Ana"}, {ID: "s2", CustomerID: "c1", CustomerName: "Ana"}}
	payments := []Payment{
		payment("p2", "s2", "g1", 20, base),
		payment("p1", "s1", "g1", 100, base),
	}

	groups := GroupPayments(payments, sales)
	require.Len(t, groups, 1)
	g := groups[0]
	require.Equal(t, "g1", g.ID)
	require.Equal(t, "Ana", g.CustomerName)
	require.Equal(t, "c1", g.CustomerID)
	require.Equal(t, "Cash", g.PaymentMethodName)
	require.EqualValues(t, 120, g.TotalAmount)
	require.Equal(t, base, g.Date)
	require.Equal(t, []Application{{SaleID: "s1", Amount: 100}, {SaleID: "s2", Amount: 20}}, g.Applications)
}

func TestGroupPaymentsNewestFirst(t *testing.T) {
	sales := []Sale{{ID: "s1", CustomerName: "Ana"}}
	payments := []Payment{
		payment("p1", "s1", "old", 10, base),
		payment("p2", "s1", "new", 10, base.Add(time.Hour)),
		payment("p3", "s1", "b-same", 10, base.Add(time.Hour)),
	}

	groups := GroupPayments(payments, sales)
	ids := make([]string, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
	}
	require.Equal(t, []string{"b-same", "new", "old"}, ids)
}

func TestGroupPaymentsUnknownSale(t *testing.T) {
	groups := GroupPayments([]Payment{payment("p1", "deleted", "g1", 5, base)}, nil)
	require.Len(t, groups, 1)
	require.Equal(t, UnknownCustomer, groups[0].CustomerName)
	require.Empty(t, groups[0].CustomerID)
}

func TestGroupPaymentsIsIdempotent(t *testing.T) {
	sales := []Sale{{ID: "s1", CustomerName: "Ana"}, {ID: "s2", CustomerName: "Budi"}}
	payments := []Payment{
		payment("p1", "s1", "g1", 10, base),
		payment("p2", "s2", "g2", 15, base.Add(time.Minute)),
		payment("p3", "s1", "g2", 5, base.Add(time.Minute)),
	}
	snapshot := append([]Payment(nil), payments...)

	first := GroupPayments(payments, sales)
	second := GroupPayments(payments, sales)
	require.Equal(t, first, second)
	require.Equal(t, snapshot, payments)
}

func TestGroupPaymentsEmpty(t *testing.T) {
	require.Empty(t, GroupPayments(nil, nil))
}
