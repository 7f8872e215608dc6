package autosubmit

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/mevcore/internal/node"
	"github.com/yourusername/mevcore/internal/relaypkg"
	"github.com/yourusername/mevcore/internal/txtypes"
)

// fakeNode implements node.Client, tracking broadcast hashes and letting
// tests control which hashes become "included" and when.
type fakeNode struct {
	mu       sync.Mutex
	included map[[32]byte]bool
	sent     [][32]byte
}

func newFakeNode() *fakeNode { return &fakeNode{included: make(map[[32]byte]bool)} }

func (f *fakeNode) Snapshot(ctx context.Context) (string, error)       { return "", nil }
func (f *fakeNode) Revert(ctx context.Context, snapshotID string) error { return nil }
func (f *fakeNode) SetNextBlockBaseFee(ctx context.Context, baseFee *big.Int) error {
	return nil
}

func (f *fakeNode) SendRawTransaction(ctx context.Context, raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, node.TxHashOf(raw))
	return nil
}

func (f *fakeNode) ReceiptFor(ctx context.Context, txHash [32]byte) (*node.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.included[txHash] {
		return &node.Receipt{Status: 1, GasUsed: 21000, EffectiveGasPrice: big.NewInt(1)}, nil
	}
	return nil, nil
}

func (f *fakeNode) ChainID(ctx context.Context) (*big.Int, error)              { return big.NewInt(1), nil }
func (f *fakeNode) NonceAt(ctx context.Context, address string) (uint64, error) { return 0, nil }

func (f *fakeNode) markIncluded(raw []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.included[node.TxHashOf(raw)] = true
}

func TestSubmitAndMonitor_SucceedsWithoutRelay(t *testing.T) {
	n := newFakeNode()
	raw := []byte{0x01, 0x02}
	n.markIncluded(raw)

	relay := relaypkg.New("", nil) // not configured
	config := Config{PollInterval: 10 * time.Millisecond, MaxWait: 200 * time.Millisecond, MaxRetries: 1}
	sub := New(relay, n, config, nil, nil)

	result, err := sub.SubmitAndMonitor(context.Background(), [][]byte{raw}, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Done, result.State)
	assert.Len(t, result.Receipts, 1)
}

func TestSubmitAndMonitor_NoSignerFallsBackToRebroadcastOnly(t *testing.T) {
	// max_bumps = 0 and no signer means only direct re-broadcasts up to
	// max_retries, never the re-bid path.
	n := newFakeNode()
	raw := []byte{0x03, 0x04}

	relay := relaypkg.New("", nil)
	config := Config{PollInterval: 5 * time.Millisecond, MaxWait: 20 * time.Millisecond, MaxRetries: 1}
	sub := New(relay, n, config, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err := sub.SubmitAndMonitor(ctx, [][]byte{raw}, nil, nil, nil)
	assert.Error(t, err)
}

func TestSubmitAndMonitor_RelayFailureIsNonFatal(t *testing.T) {
	n := newFakeNode()
	raw := []byte{0x05}
	n.markIncluded(raw)

	relay := relaypkg.New("http://127.0.0.1:1", nil) // nothing listening; POST fails
	config := Config{PollInterval: 5 * time.Millisecond, MaxWait: 200 * time.Millisecond, MaxRetries: 1}
	sub := New(relay, n, config, nil, nil)

	result, err := sub.SubmitAndMonitor(context.Background(), [][]byte{raw}, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Done, result.State)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "INITIAL", Initial.String())
	assert.Equal(t, "DONE", Done.String())
	assert.Equal(t, "FAILED", Failed.String())
}

var _ = txtypes.Legacy // keep txtypes imported for future re-bid path tests
