package ledger

import (
	"fmt"
	"math"
)

// MaxAmount bounds prices, sale totals, balances and their sums, in minor
// currency units.
const MaxAmount int64 = 1_000_000_000_000_000

// addAmounts returns a+b, failing with ErrAmountOverflow when the result
// leaves [-MaxAmount, MaxAmount].
func addAmounts(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, fmt.Errorf("%w: %d + %d", ErrAmountOverflow, a, b)
	}
	sum := a + b
	if sum > MaxAmount || sum < -MaxAmount {
		return 0, fmt.Errorf("%w: %d + %d", ErrAmountOverflow, a, b)
	}
	return sum, nil
}

// mulAmount returns a*b under the same bound as addAmounts.
func mulAmount(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	p := a * b
	if p/b != a || p > MaxAmount || p < -MaxAmount {
		return 0, fmt.Errorf("%w: %d x %d", ErrAmountOverflow, a, b)
	}
	return p, nil
}

// saturatingAdd clamps instead of failing. Used for display aggregates only.
func saturatingAdd(a, b int64) int64 {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return math.MaxInt64
	case b < 0 && a < math.MinInt64-b:
		return math.MinInt64
	}
	return a + b
}
