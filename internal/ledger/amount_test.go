package ledger

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerpos/ledgerpos/internal/entitystore"
)

func TestAmountArithmeticBounds(t *testing.T) {
	sum, err := addAmounts(MaxAmount-1, 1)
	require.NoError(t, err)
	require.Equal(t, MaxAmount, sum)

	_, err = addAmounts(MaxAmount, 1)
	require.ErrorIs(t, err, ErrAmountOverflow)
	_, err = addAmounts(math.MaxInt64, math.MaxInt64)
	require.ErrorIs(t, err, ErrAmountOverflow)
	_, err = addAmounts(math.MinInt64, -1)
	require.ErrorIs(t, err, ErrAmountOverflow)

	p, err := mulAmount(25, 4)
	require.NoError(t, err)
	require.EqualValues(t, 100, p)
	_, err = mulAmount(math.MaxInt64/2+1, 2)
	require.ErrorIs(t, err, ErrAmountOverflow)
	_, err = mulAmount(MaxAmount, 2)
	require.ErrorIs(t, err, ErrAmountOverflow)
	_, err = mulAmount(math.MinInt64, -1)
	require.ErrorIs(t, err, ErrAmountOverflow)

	require.EqualValues(t, int64(math.MaxInt64), saturatingAdd(math.MaxInt64, 1))
	require.EqualValues(t, int64(math.MinInt64), saturatingAdd(math.MinInt64, -1))
}

func TestCommitSaleRejectsOverflowingTotals(t *testing.T) {
	store, _ := newMemoryFixture(t)
	ctx := context.Background()
	_, err := store.Commit(ctx, testStore, []entitystore.Write{
		{Op: entitystore.OpPut, Collection: CollectionProducts, ID: "gold", Fields: ProductFields(Product{Name: "Gold", UnitPrice: math.MaxInt64/2 + 1, Stock: 2})},
		{Op: entitystore.OpPut, Collection: CollectionProducts, ID: "bar", Fields: ProductFields(Product{Name: "Bar", UnitPrice: MaxAmount, Stock: 5})},
		{Op: entitystore.OpPut, Collection: CollectionProducts, ID: "sample", Fields: ProductFields(Product{Name: "Sample", UnitPrice: 0, Stock: 1})},
	})
	require.NoError(t, err)
	svc := newTestService(t, store, ServiceConfig{})

	_, err = svc.CommitSale(ctx, SaleInput{CustomerID: "ana", Items: []ItemInput{{ProductID: "gold", Quantity: 2}}})
	require.ErrorIs(t, err, ErrAmountOverflow)

	_, err = svc.CommitSale(ctx, SaleInput{CustomerID: "ana", Items: []ItemInput{
		{ProductID: "bar", Quantity: 1},
		{ProductID: "bar", Quantity: 1},
	}})
	require.ErrorIs(t, err, ErrAmountOverflow)

	_, err = svc.CommitSale(ctx, SaleInput{CustomerID: "ana", Items: []ItemInput{
		{ProductID: "sample", Quantity: math.MaxInt64},
		{ProductID: "sample", Quantity: 1},
	}})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	sales, err := store.List(ctx, testStore, CollectionSales)
	require.NoError(t, err)
	require.Empty(t, sales)
	require.EqualValues(t, 2, storedProduct(t, store, "gold").Stock)
	require.EqualValues(t, 5, storedProduct(t, store, "bar").Stock)

	sale, err := svc.CommitSale(ctx, SaleInput{CustomerID: "ana", Items: []ItemInput{{ProductID: "bar", Quantity: 1}}})
	require.NoError(t, err)
	require.Equal(t, MaxAmount, sale.Total)
	require.Equal(t, MaxAmount, sale.Balance)
}

func TestTotalOutstandingOverflow(t *testing.T) {
	sales := []Sale{openSale("a", MaxAmount, 0), openSale("b", 1, 0)}
	_, err := TotalOutstanding(sales)
	require.ErrorIs(t, err, ErrAmountOverflow)

	_, err = Allocate(sales, 10)
	require.ErrorIs(t, err, ErrAmountOverflow)
}

func TestIntegrityFlagsOverflowingLineItems(t *testing.T) {
	sale := Sale{
		ID:      "s1",
		Items:   []LineItem{{ProductID: "gold", UnitPrice: math.MaxInt64/2 + 1, Quantity: 2}},
		Total:   math.MinInt64,
		Balance: math.MinInt64,
		Version: 1,
	}
	violations := CheckIntegrity([]Sale{sale}, nil, nil)
	kinds := make(map[string]bool)
	for _, v := range violations {
		kinds[v.Kind] = true
	}
	require.True(t, kinds[ViolationTotalMismatch])
	require.True(t, kinds[ViolationBalanceRange])
}
