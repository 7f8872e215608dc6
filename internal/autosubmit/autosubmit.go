// Package autosubmit submits a chosen signed bundle via relay, falls back
// to direct broadcast, polls for inclusion, and performs bounded gas-bump
// re-signing on timeout subject to kill-switch guardrails.
//
// Grounded on the original autosubmit module's relay-then-fallback,
// poll-then-resubmit shape, generalized with a re-bid path, and on
// ethereum.FeeEstimator (src/chainadapter/ethereum/fee.go) for the
// constructor-holds-config, context-first method style.
package autosubmit

import (
	"context"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/mevcore/internal/coreerr"
	"github.com/yourusername/mevcore/internal/metrics"
	"github.com/yourusername/mevcore/internal/node"
	"github.com/yourusername/mevcore/internal/relaypkg"
	"github.com/yourusername/mevcore/internal/signer"
	"github.com/yourusername/mevcore/internal/txtypes"
)

// State names the autosubmit session's position in its state machine.
type State int

const (
	Initial State = iota
	Polling
	Bump
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Initial:
		return "INITIAL"
	case Polling:
		return "POLLING"
	case Bump:
		return "BUMP"
	case Done:
		return "DONE"
	default:
		return "FAILED"
	}
}

// Config tunes an Autosubmitter's polling, retry, and kill-switch behavior.
type Config struct {
	MaxRetries           int
	PollInterval         time.Duration
	MaxWait              time.Duration
	BumpFactor           float64 // f ∈ (1.0, ∞)
	MaxBumps             int
	KillSwitchMaxGasWei  *big.Int
	KillSwitchMaxLossWei *big.Int
}

// Result is what a submission session settles to.
type Result struct {
	State    State
	Receipts map[[32]byte]*node.Receipt
}

// Ledger is the narrow idempotency-tracking capability the Autosubmitter
// consults; a persistent store can implement it without this package
// depending on any particular storage backend.
type Ledger interface {
	Record(txHash [32]byte, state State, rawTx []byte)
}

// Autosubmitter owns the node/relay handles a submission session drives.
type Autosubmitter struct {
	relay   *relaypkg.Client
	node    node.Client
	config  Config
	ledger  Ledger
	log     *zap.SugaredLogger
	metrics metrics.Recorder
}

// New builds an Autosubmitter over relay and node, governed by config.
// ledger may be nil, which disables idempotency tracking. Records no
// metrics; use NewWithMetrics to observe broadcast/sign outcomes.
func New(relay *relaypkg.Client, n node.Client, config Config, ledger Ledger, log *zap.SugaredLogger) *Autosubmitter {
	return NewWithMetrics(relay, n, config, ledger, log, metrics.NoOp{})
}

// NewWithMetrics builds an Autosubmitter that records broadcast and
// re-sign outcomes through rec.
func NewWithMetrics(relay *relaypkg.Client, n node.Client, config Config, ledger Ledger, log *zap.SugaredLogger, rec metrics.Recorder) *Autosubmitter {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if rec == nil {
		rec = metrics.NoOp{}
	}
	return &Autosubmitter{relay: relay, node: n, config: config, ledger: ledger, log: log, metrics: rec}
}

func (a *Autosubmitter) record(txHash [32]byte, state State, rawTx []byte) {
	if a.ledger != nil {
		a.ledger.Record(txHash, state, rawTx)
	}
}

// SubmitAndMonitor submits signed and drives it to inclusion or failure.
// unsigned/sign/expectedPnLPerTx may be nil/empty together, which disables
// the re-bid path and restricts timeout handling to the re-broadcast path
// (max_bumps = 0 and no signer means only direct re-broadcasts).
func (a *Autosubmitter) SubmitAndMonitor(
	ctx context.Context,
	signed [][]byte,
	unsigned []*txtypes.Transaction,
	sign signer.Signer,
	expectedPnLPerTx []*big.Int,
) (Result, error) {
	// 1. Relay attempt: logged and non-fatal.
	if a.relay != nil && a.relay.Configured() {
		if _, err := a.relay.SubmitBundle(ctx, signed, nil); err != nil {
			a.log.Warnw("relay submission failed; falling back to direct broadcast", "error", err)
		} else {
			a.log.Infow("submitted bundle to relay")
		}
	}

	// 2. Direct broadcast.
	hashes := a.broadcastAll(ctx, signed)
	rebroadcasted := false

	for bumpsUsed := 0; ; {
		// 3. Polling loop.
		receipts, allIncluded := a.poll(ctx, hashes)
		if allIncluded {
			for _, h := range hashes {
				a.record(h, Done, nil)
			}
			return Result{State: Done, Receipts: receipts}, nil
		}

		// 4. On timeout.
		if unsigned != nil && sign != nil && bumpsUsed < a.config.MaxBumps {
			bumpsUsed++
			for _, h := range hashes {
				a.record(h, Bump, nil)
			}
			signedBumped, bumpedUnsigned, err := a.rebid(ctx, unsigned, sign, expectedPnLPerTx, bumpsUsed)
			if err != nil {
				return Result{State: Failed}, err
			}
			signed = signedBumped
			unsigned = bumpedUnsigned
			hashes = a.broadcastAll(ctx, signed)
			continue
		}

		if !rebroadcasted && a.rebroadcast(ctx, signed) {
			rebroadcasted = true
			continue
		}

		return Result{State: Failed}, coreerr.New(coreerr.CodeInclusionTimeout,
			"neither re-bid nor re-broadcast produced inclusion", coreerr.Retryable, nil)
	}
}

// broadcastAll sends each raw transaction and returns the tx hashes it
// expects to observe. Broadcast failures are logged, not fatal: the relay
// may still have propagated the transaction.
func (a *Autosubmitter) broadcastAll(ctx context.Context, signed [][]byte) [][32]byte {
	hashes := make([][32]byte, len(signed))
	for i, raw := range signed {
		hash := node.TxHashOf(raw)
		hashes[i] = hash
		start := time.Now()
		err := a.node.SendRawTransaction(ctx, raw)
		a.metrics.RecordBroadcast(time.Since(start), err == nil)
		if err != nil {
			a.log.Warnw("direct broadcast failed; continuing to poll in case relay propagated it", "error", err)
		}
		a.record(hash, Polling, raw)
	}
	return hashes
}

// poll queries each outstanding hash once per poll interval until every hash
// has a receipt or MaxWait elapses.
func (a *Autosubmitter) poll(ctx context.Context, hashes [][32]byte) (map[[32]byte]*node.Receipt, bool) {
	deadline := time.Now().Add(a.config.MaxWait)
	receipts := make(map[[32]byte]*node.Receipt, len(hashes))

	for {
		for _, h := range hashes {
			if _, seen := receipts[h]; seen {
				continue
			}
			receipt, err := a.node.ReceiptFor(ctx, h)
			if err == nil && receipt != nil {
				receipts[h] = receipt
			}
		}
		if len(receipts) == len(hashes) {
			return receipts, true
		}
		if time.Now().After(deadline) {
			return receipts, false
		}
		select {
		case <-ctx.Done():
			return receipts, false
		case <-time.After(a.config.PollInterval):
		}
	}
}

// rebroadcast re-sends the existing raw transactions up to MaxRetries
// times with 1s spacing, then resumes polling. Returns false without
// sending anything when MaxRetries is not positive; SubmitAndMonitor runs
// it at most once per session.
func (a *Autosubmitter) rebroadcast(ctx context.Context, signed [][]byte) bool {
	if a.config.MaxRetries <= 0 {
		return false
	}
	for retry := 0; retry < a.config.MaxRetries; retry++ {
		for _, raw := range signed {
			if err := a.node.SendRawTransaction(ctx, raw); err != nil {
				a.log.Warnw("re-broadcast failed", "retry", retry, "error", err)
			}
		}
		time.Sleep(1 * time.Second)
	}
	return true
}

// rebid implements the re-bid path: scale gas fields by bump_factor^k,
// re-sign, evaluate kill switches, return the freshly signed bundle.
func (a *Autosubmitter) rebid(
	ctx context.Context,
	unsigned []*txtypes.Transaction,
	sign signer.Signer,
	expectedPnLPerTx []*big.Int,
	k int,
) ([][]byte, []*txtypes.Transaction, error) {
	bumped := make([]*txtypes.Transaction, len(unsigned))
	for i, tx := range unsigned {
		bumped[i] = bumpGas(tx, a.config.BumpFactor, k)
	}

	if err := evaluateKillSwitches(bumped, expectedPnLPerTx, a.config.KillSwitchMaxGasWei, a.config.KillSwitchMaxLossWei); err != nil {
		return nil, nil, err
	}

	signed := make([][]byte, len(bumped))
	for i, tx := range bumped {
		start := time.Now()
		raw, err := sign.SignTyped(ctx, tx)
		a.metrics.RecordSign(time.Since(start), err == nil)
		if err != nil {
			return nil, nil, err
		}
		signed[i] = raw
	}

	a.log.Infow("gas-bumped and re-signed bundle", "bump_attempt", k, "bump_factor", a.config.BumpFactor)
	time.Sleep(1 * time.Second) // propagation delay before the next poll cycle
	return signed, bumped, nil
}

// bumpGas scales tx's fee fields by bumpFactor^k, per-variant. Unknown
// variants are returned unchanged.
func bumpGas(tx *txtypes.Transaction, bumpFactor float64, k int) *txtypes.Transaction {
	clone := tx.Clone()
	multiplier := new(big.Float).SetFloat64(pow(bumpFactor, k))

	switch clone.Variant {
	case txtypes.Legacy:
		clone.GasPrice = scaleBigInt(clone.GasPrice, multiplier)
	case txtypes.DynamicFee:
		clone.GasFeeCap = scaleBigInt(clone.GasFeeCap, multiplier)
		clone.GasTipCap = scaleBigInt(clone.GasTipCap, multiplier)
	}
	return clone
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

// scaleBigInt multiplies v by multiplier, rounding to the nearest integer
// wei.
func scaleBigInt(v *big.Int, multiplier *big.Float) *big.Int {
	if v == nil {
		return nil
	}
	scaled := new(big.Float).Mul(new(big.Float).SetInt(v), multiplier)
	scaled.Add(scaled, big.NewFloat(0.5))
	result, _ := scaled.Int(nil)
	return result
}
