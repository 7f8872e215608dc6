package simulator

import (
	"math"
	"math/big"

	"github.com/yourusername/mevcore/internal/node"
)

// revertSentinel is the score a reverted bundle receives: a sentinel near
// the quarter-minimum of int64, the score domain this module operates in
// (see DESIGN.md's int64-vs-i128 decision).
const revertSentinel = math.MinInt64 / 4

// Scorer is a pluggable scoring capability: higher is better.
// expectedPnLPerTx may be nil when no PnL model is wired for the bundle.
type Scorer interface {
	Score(receipts []*node.Receipt, signedBundle [][]byte, expectedPnLPerTx []*big.Int) int64
}

// GasCostScorer returns -total gas cost, or revertSentinel if any
// receipt reverted.
type GasCostScorer struct{}

func (GasCostScorer) Score(receipts []*node.Receipt, _ [][]byte, _ []*big.Int) int64 {
	for _, r := range receipts {
		if r == nil || r.Status == 0 {
			return revertSentinel
		}
	}

	total := new(big.Int)
	for _, r := range receipts {
		cost := new(big.Int).Mul(big.NewInt(int64(r.GasUsed)), r.EffectiveGasPrice)
		total.Add(total, cost)
	}

	return saturateNegate(total)
}

// ConfigurableScorer is a weighted scorer:
// score = sum_i [ -revertPenalty*1{status=0} - gasWeight*cost_i + pnlWeight*pnl_i ].
type ConfigurableScorer struct {
	RevertPenalty int64
	GasWeight     int64
	PnLWeight     int64
}

func (c ConfigurableScorer) Score(receipts []*node.Receipt, _ [][]byte, expectedPnLPerTx []*big.Int) int64 {
	var total int64
	for i, r := range receipts {
		if r == nil {
			total = saturateAddI64(total, -c.RevertPenalty)
			continue
		}
		if r.Status == 0 {
			total = saturateAddI64(total, -c.RevertPenalty)
		}

		cost := new(big.Int).Mul(big.NewInt(int64(r.GasUsed)), r.EffectiveGasPrice)
		costI64 := saturateInt64(cost)
		total = saturateAddI64(total, -saturateMulI64(c.GasWeight, costI64))

		if expectedPnLPerTx != nil && i < len(expectedPnLPerTx) && expectedPnLPerTx[i] != nil {
			pnl := saturateInt64(expectedPnLPerTx[i])
			total = saturateAddI64(total, saturateMulI64(c.PnLWeight, pnl))
		}
	}
	return total
}

// saturateInt64 clamps a big.Int into the int64 range.
func saturateInt64(v *big.Int) int64 {
	if v.IsInt64() {
		return v.Int64()
	}
	if v.Sign() < 0 {
		return math.MinInt64
	}
	return math.MaxInt64
}

// saturateNegate computes -v, saturated into int64 bounds.
func saturateNegate(v *big.Int) int64 {
	neg := new(big.Int).Neg(v)
	return saturateInt64(neg)
}

func saturateAddI64(a, b int64) int64 {
	sum := a + b
	// Overflow check: same-sign operands whose sum changed sign.
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		if b > 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return sum
}

func saturateMulI64(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	result := a * b
	if result/b != a {
		if (a > 0) == (b > 0) {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return result
}
