package autosubmit

import (
	"math/big"

	"github.com/yourusername/mevcore/internal/coreerr"
	"github.com/yourusername/mevcore/internal/txtypes"
)

// evaluateKillSwitches checks the gas-cost and projected-loss guardrails
// before a bump is applied. Go's math/big.Int is exact and arbitrary
// precision, so no saturation clamp is needed here the way the
// int64-scored simulator.Scorer requires one — big.Int simply never
// overflows.
func evaluateKillSwitches(bumped []*txtypes.Transaction, expectedPnLPerTx []*big.Int, maxGasWei, maxLossWei *big.Int) error {
	worstCase := worstCaseCost(bumped)

	if maxGasWei != nil && worstCase.Cmp(maxGasWei) > 0 {
		return coreerr.NewPolicy(coreerr.CodeKillSwitchGas, "worst-case gas cost exceeds kill switch threshold", nil)
	}

	if maxLossWei != nil {
		totalPnL := new(big.Int)
		for _, pnl := range expectedPnLPerTx {
			if pnl != nil {
				totalPnL.Add(totalPnL, pnl)
			}
		}
		projectedLoss := new(big.Int).Sub(worstCase, totalPnL)
		if projectedLoss.Cmp(maxLossWei) > 0 {
			return coreerr.NewPolicy(coreerr.CodeKillSwitchLoss, "projected loss exceeds kill switch threshold", nil)
		}
	}

	return nil
}

// worstCaseCost sums gas_limit * bumped_gas_price across the bundle,
// reading the price from whichever fee field the transaction's variant
// carries (max_fee for EIP-1559, gas_price for Legacy).
func worstCaseCost(txs []*txtypes.Transaction) *big.Int {
	total := new(big.Int)
	for _, tx := range txs {
		price := tx.GasPrice
		if tx.Variant == txtypes.DynamicFee {
			price = tx.GasFeeCap
		}
		if price == nil {
			continue
		}
		cost := new(big.Int).Mul(big.NewInt(int64(tx.Gas)), price)
		total.Add(total, cost)
	}
	return total
}
