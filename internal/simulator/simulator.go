// Package simulator provides snapshot-based simulation of a signed bundle
// against a forked node, and a parallel nonce-sweep that
// signs-and-simulates across a contiguous offset range, scored by a
// pluggable Scorer.
//
// The snapshot/run/revert shape runs against an Anvil-style fork, and
// ethereum.FeeEstimator (src/chainadapter/ethereum/fee.go) supplies the
// struct-holds-an-RPC-helper, context-first method style. The
// concurrency-bounded sweep uses golang.org/x/sync/errgroup and
// /semaphore (already reachable via go-ethereum's own dependency graph)
// rather than a hand-rolled worker pool.
package simulator

import (
	"context"
	"math/big"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/yourusername/mevcore/internal/coreerr"
	"github.com/yourusername/mevcore/internal/metrics"
	"github.com/yourusername/mevcore/internal/node"
	"github.com/yourusername/mevcore/internal/signer"
	"github.com/yourusername/mevcore/internal/txtypes"
)

// Simulator orchestrates simulation against a single execution-node
// Client. Simulators are not safe to use concurrently against the SAME
// node endpoint without external serialization: concurrent sweeps
// against the same node interfere with each other's snapshots.
type Simulator struct {
	node    node.Client
	log     *zap.SugaredLogger
	metrics metrics.Recorder
}

// New builds a Simulator over client, recording no metrics.
func New(client node.Client, log *zap.SugaredLogger) *Simulator {
	return NewWithMetrics(client, log, metrics.NoOp{})
}

// NewWithMetrics builds a Simulator that records sign/simulate outcomes
// through rec.
func NewWithMetrics(client node.Client, log *zap.SugaredLogger, rec metrics.Recorder) *Simulator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if rec == nil {
		rec = metrics.NoOp{}
	}
	return &Simulator{node: client, log: log, metrics: rec}
}

// snapshot is a scoped resource: its Close issues evm_revert on every
// exit path (success, timeout, cancellation), so a single revert site
// serves all three.
type snapshot struct {
	id   string
	node node.Client
	log  *zap.SugaredLogger
}

func acquireSnapshot(ctx context.Context, n node.Client, log *zap.SugaredLogger) (*snapshot, error) {
	id, err := n.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &snapshot{id: id, node: n, log: log}, nil
}

// Close reverts the snapshot. Revert failures are logged, not returned:
// once results have been collected a failed revert is not fatal.
func (s *snapshot) Close(ctx context.Context) {
	if err := s.node.Revert(ctx, s.id); err != nil {
		s.log.Warnw("snapshot revert failed", "snapshot_id", s.id, "error", err)
	}
}

// SimulateSigned runs a fixed protocol: snapshot, optional base-fee
// override, broadcast+await-receipt per transaction in order, guaranteed
// revert on every exit path, receipts returned in submission order.
func (s *Simulator) SimulateSigned(ctx context.Context, signedBundle [][]byte, baseFee *big.Int) (receipts []*node.Receipt, err error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordSimulate(time.Since(start), err == nil)
	}()

	snap, err := acquireSnapshot(ctx, s.node, s.log)
	if err != nil {
		return nil, coreerr.New(coreerr.CodeSnapshotFailed, "failed to acquire snapshot", coreerr.Retryable, err)
	}
	defer snap.Close(context.WithoutCancel(ctx))

	if baseFee != nil {
		if err := s.node.SetNextBlockBaseFee(ctx, baseFee); err != nil {
			return nil, coreerr.NewRetryable(coreerr.CodeRPCUnavailable, "failed to set next block base fee", nil, err)
		}
	}

	receipts = make([]*node.Receipt, len(signedBundle))
	for i, raw := range signedBundle {
		txHash := node.TxHashOf(raw)

		if err := s.node.SendRawTransaction(ctx, raw); err != nil {
			return nil, coreerr.New(coreerr.CodeBroadcastFailed, "broadcast failed", coreerr.Retryable, err)
		}

		receipt, err := node.WaitForReceipt(ctx, s.node, txHash)
		if err != nil {
			return nil, err
		}
		receipts[i] = receipt
	}

	return receipts, nil
}

// Outcome is a single nonce offset's sweep result.
type Outcome struct {
	Nonce        uint64
	Score        int64
	Receipts     []*node.Receipt
	SignedBundle [][]byte
}

// Sweep evaluates a range of candidate nonces: for each offset in
// [0, nonceRange), clone
// unsigned, overwrite nonces starting at baseNonce+offset, sign, simulate,
// and score. Concurrency is bounded by the concurrency permit count. A
// failing offset is logged and skipped, never aborts the sweep. Results
// are returned sorted ascending by nonce.
func (s *Simulator) Sweep(
	ctx context.Context,
	unsigned []*txtypes.Transaction,
	sign signer.Signer,
	baseNonce uint64,
	nonceRange int,
	concurrency int,
	scorer Scorer,
	baseFee *big.Int,
	expectedPnLPerTx []*big.Int,
) ([]Outcome, error) {
	if nonceRange <= 0 {
		return nil, nil
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	sem := semaphore.NewWeighted(int64(concurrency))
	group, groupCtx := errgroup.WithContext(ctx)

	outcomes := make([]*Outcome, nonceRange)

	for offset := 0; offset < nonceRange; offset++ {
		offset := offset
		group.Go(func() error {
			if err := sem.Acquire(groupCtx, 1); err != nil {
				return nil // context cancelled; treat as a skipped offset
			}
			defer sem.Release(1)

			outcome, err := s.evalOffset(groupCtx, unsigned, sign, baseNonce, offset, scorer, baseFee, expectedPnLPerTx)
			if err != nil {
				s.log.Warnw("sweep offset failed, skipping", "offset", offset, "error", err)
				return nil
			}
			outcomes[offset] = outcome
			return nil
		})
	}

	// errgroup's Wait only returns non-nil if a goroutine itself returned
	// an error; evalOffset failures are swallowed above so the sweep never
	// aborts on a single bad offset.
	_ = group.Wait()

	results := make([]Outcome, 0, nonceRange)
	for _, o := range outcomes {
		if o != nil {
			results = append(results, *o)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Nonce < results[j].Nonce })
	return results, nil
}

func (s *Simulator) evalOffset(
	ctx context.Context,
	unsigned []*txtypes.Transaction,
	sign signer.Signer,
	baseNonce uint64,
	offset int,
	scorer Scorer,
	baseFee *big.Int,
	expectedPnLPerTx []*big.Int,
) (*Outcome, error) {
	nonce := baseNonce + uint64(offset)
	signedBundle := make([][]byte, len(unsigned))

	for i, tx := range unsigned {
		clone := tx.Clone()
		clone.Nonce = nonce + uint64(i)

		start := time.Now()
		raw, err := sign.SignTyped(ctx, clone)
		s.metrics.RecordSign(time.Since(start), err == nil)
		if err != nil {
			return nil, err
		}
		signedBundle[i] = raw
	}

	receipts, err := s.SimulateSigned(ctx, signedBundle, baseFee)
	if err != nil {
		return nil, err
	}

	score := scorer.Score(receipts, signedBundle, expectedPnLPerTx)
	return &Outcome{Nonce: nonce, Score: score, Receipts: receipts, SignedBundle: signedBundle}, nil
}

// ChooseBest runs Sweep and returns the outcome with the maximum score,
// or ok=false if every offset failed.
func (s *Simulator) ChooseBest(
	ctx context.Context,
	unsigned []*txtypes.Transaction,
	sign signer.Signer,
	baseNonce uint64,
	nonceRange int,
	concurrency int,
	scorer Scorer,
	baseFee *big.Int,
	expectedPnLPerTx []*big.Int,
) (Outcome, bool, error) {
	outcomes, err := s.Sweep(ctx, unsigned, sign, baseNonce, nonceRange, concurrency, scorer, baseFee, expectedPnLPerTx)
	if err != nil {
		return Outcome{}, false, err
	}
	if len(outcomes) == 0 {
		return Outcome{}, false, nil
	}

	best := outcomes[0]
	for _, o := range outcomes[1:] {
		if o.Score > best.Score {
			best = o
		}
	}
	return best, true, nil
}
