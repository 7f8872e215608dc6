package simulator

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/mevcore/internal/node"
	"github.com/yourusername/mevcore/internal/txtypes"
)

// fakeNode implements node.Client entirely in memory: every sent raw
// transaction immediately has a successful receipt available, so tests
// exercise the simulator's orchestration logic without a real fork.
type fakeNode struct {
	mu           sync.Mutex
	snapshots    int
	reverts      []string
	sent         [][]byte
	revertAddr   map[[32]byte]bool // hashes configured to revert
	failSnapshot bool
}

func newFakeNode() *fakeNode {
	return &fakeNode{revertAddr: make(map[[32]byte]bool)}
}

func (f *fakeNode) Snapshot(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSnapshot {
		return "", assert.AnError
	}
	f.snapshots++
	return "snap-1", nil
}

func (f *fakeNode) Revert(ctx context.Context, snapshotID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reverts = append(f.reverts, snapshotID)
	return nil
}

func (f *fakeNode) SetNextBlockBaseFee(ctx context.Context, baseFee *big.Int) error { return nil }

func (f *fakeNode) SendRawTransaction(ctx context.Context, raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, raw)
	return nil
}

func (f *fakeNode) ReceiptFor(ctx context.Context, txHash [32]byte) (*node.Receipt, error) {
	status := uint64(1)
	if f.revertAddr[txHash] {
		status = 0
	}
	return &node.Receipt{Status: status, GasUsed: 21000, EffectiveGasPrice: big.NewInt(1_000_000_000)}, nil
}

func (f *fakeNode) ChainID(ctx context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (f *fakeNode) NonceAt(ctx context.Context, address string) (uint64, error) { return 0, nil }

// fakeSigner returns a deterministic "signed" payload tagging the nonce so
// tests can assert on ordering without real ECDSA signing.
type fakeSigner struct{}

func (fakeSigner) SignBytes(payload []byte) ([]byte, error) { return payload, nil }

func (fakeSigner) SignTyped(_ context.Context, tx *txtypes.Transaction) ([]byte, error) {
	return []byte{byte(tx.Nonce)}, nil
}

func (fakeSigner) Address() common.Address { return common.Address{} }

func TestSimulateSigned_RevertsOnSuccess(t *testing.T) {
	n := newFakeNode()
	sim := New(n, nil)

	receipts, err := sim.SimulateSigned(context.Background(), [][]byte{{0x01}, {0x02}}, nil)
	require.NoError(t, err)
	assert.Len(t, receipts, 2)
	assert.Equal(t, 1, n.snapshots)
	assert.Equal(t, []string{"snap-1"}, n.reverts)
}

func TestSimulateSigned_RevertsOnceWithBaseFee(t *testing.T) {
	n := newFakeNode()
	sim := New(n, nil)

	_, err := sim.SimulateSigned(context.Background(), [][]byte{{0x01}}, big.NewInt(1_000_000_000))
	require.NoError(t, err)
	// still reverted exactly once even on the success path with a base fee set
	assert.Equal(t, []string{"snap-1"}, n.reverts)
}

func TestSweep_SortsByNonceAscending(t *testing.T) {
	n := newFakeNode()
	sim := New(n, nil)

	unsigned := []*txtypes.Transaction{{Variant: txtypes.Legacy, Gas: 21000, GasPrice: big.NewInt(1)}}

	outcomes, err := sim.Sweep(context.Background(), unsigned, fakeSigner{}, 100, 3, 2, GasCostScorer{}, nil, nil)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, []uint64{100, 101, 102}, []uint64{outcomes[0].Nonce, outcomes[1].Nonce, outcomes[2].Nonce})
}

func TestSimulateSigned_SnapshotFailureAborts(t *testing.T) {
	n := newFakeNode()
	n.failSnapshot = true
	sim := New(n, nil)

	_, err := sim.SimulateSigned(context.Background(), [][]byte{{0x01}}, nil)
	assert.Error(t, err)
	assert.Empty(t, n.reverts)
}

func TestSweep_EmptyRangeContactsNothing(t *testing.T) {
	n := newFakeNode()
	sim := New(n, nil)

	outcomes, err := sim.Sweep(context.Background(), nil, fakeSigner{}, 100, 0, 1, GasCostScorer{}, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	assert.Equal(t, 0, n.snapshots)
}

func TestChooseBest_ReturnsHighestScore(t *testing.T) {
	n := newFakeNode()
	sim := New(n, nil)

	unsigned := []*txtypes.Transaction{{Variant: txtypes.Legacy, Gas: 21000, GasPrice: big.NewInt(1)}}
	best, ok, err := sim.ChooseBest(context.Background(), unsigned, fakeSigner{}, 0, 2, 2, GasCostScorer{}, nil, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.GreaterOrEqual(t, best.Score, int64(revertSentinel))
}
