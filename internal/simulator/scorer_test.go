package simulator

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yourusername/mevcore/internal/node"
)

func TestGasCostScorer_RevertSentinel(t *testing.T) {
	receipts := []*node.Receipt{{Status: 0, GasUsed: 21000, EffectiveGasPrice: big.NewInt(1)}}
	score := GasCostScorer{}.Score(receipts, nil, nil)
	assert.Equal(t, int64(revertSentinel), score)
}

func TestGasCostScorer_NegativeCost(t *testing.T) {
	receipts := []*node.Receipt{{Status: 1, GasUsed: 21000, EffectiveGasPrice: big.NewInt(1_000_000_000)}}
	score := GasCostScorer{}.Score(receipts, nil, nil)
	assert.Equal(t, -int64(21000*1_000_000_000), score)
}

func TestConfigurableScorer_WeighsPnLAgainstGasAndReverts(t *testing.T) {
	scorer := ConfigurableScorer{RevertPenalty: 1000, GasWeight: 1, PnLWeight: 1}
	receipts := []*node.Receipt{
		{Status: 1, GasUsed: 100, EffectiveGasPrice: big.NewInt(1)},
		{Status: 0, GasUsed: 50, EffectiveGasPrice: big.NewInt(1)},
	}
	pnl := []*big.Int{big.NewInt(500), nil}

	score := scorer.Score(receipts, nil, pnl)
	// tx0: -100*1 + 500 = 400; tx1: -1000 (revert penalty) - 50*1 (gas)
	assert.Equal(t, int64(400-1000-50), score)
}

func TestSaturateMulI64_ClampsOnOverflow(t *testing.T) {
	assert.Equal(t, int64(9223372036854775807), saturateMulI64(1<<40, 1<<40))
	assert.Equal(t, int64(-9223372036854775808), saturateMulI64(-(1 << 40), 1<<40))
	assert.Equal(t, int64(0), saturateMulI64(0, 12345))
}

func TestSaturateAddI64_ClampsOnOverflow(t *testing.T) {
	maxI64 := int64(9223372036854775807)
	assert.Equal(t, maxI64, saturateAddI64(maxI64, 10))
	minI64 := int64(-9223372036854775808)
	assert.Equal(t, minI64, saturateAddI64(minI64, -10))
}
