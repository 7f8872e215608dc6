// Command mevcore wires the signing, simulation, and submission core
// together: it loads configuration from the environment, constructs a
// LocalSigner when PRIVATE_KEY is set, and dispatches to one of a few
// diagnostic subcommands. External collaborators outside this core's
// scope (CLI parsing, the scanner's data feed, the transaction builder)
// are not implemented here beyond what's needed to exercise the core end
// to end.
//
// Follows cmd/arcsign's plain-switch dispatch (cmd/arcsign/main.go),
// trimmed to this core's much smaller surface.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/yourusername/mevcore/internal/appconfig"
	"github.com/yourusername/mevcore/internal/autosubmit"
	"github.com/yourusername/mevcore/internal/metrics"
	"github.com/yourusername/mevcore/internal/node"
	"github.com/yourusername/mevcore/internal/relaypkg"
	"github.com/yourusername/mevcore/internal/signer"
	"github.com/yourusername/mevcore/internal/simulator"
	"github.com/yourusername/mevcore/internal/txstore"
	"github.com/yourusername/mevcore/internal/txtypes"
)

const version = "0.1.0"

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	sugar := log.Sugar()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := appconfig.Load()
	if err != nil {
		sugar.Fatalw("failed to load configuration", "error", err)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("mevcore v%s\n", version)
	case "address":
		handleAddress(sugar, cfg)
	case "submit":
		handleSubmit(sugar, cfg)
	case "metrics":
		handleMetrics(sugar, cfg)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("usage: mevcore <command>")
	fmt.Println()
	fmt.Println("commands:")
	fmt.Println("  address   print the LocalSigner address derived from PRIVATE_KEY")
	fmt.Println("  submit    sweep a zero-value self-transfer through the simulator, then the autosubmitter")
	fmt.Println("  metrics   submit a zero-value self-transfer once (no nonce sweep) and print Prometheus-format metrics")
	fmt.Println("  version   print the build version")
}

// handleMetrics signs the same zero-value self-transfer as handleSubmit at
// the node's current nonce and hands it straight to the autosubmitter,
// with a Prometheus-compatible recorder wired through the node client and
// the autosubmitter, then prints the scrape text. It runs no nonce sweep,
// so the simulator is not exercised and no simulate metrics are recorded.
func handleMetrics(sugar *zap.SugaredLogger, cfg appconfig.Config) {
	ctx := context.Background()
	rec := metrics.New()

	sign, err := localSignerFrom(cfg)
	if err != nil {
		sugar.Fatalw("could not construct signer", "error", err)
	}

	nodeClient := node.NewHTTPClientWithMetrics(cfg.AnvilRPCURL, rec)
	chainID, err := nodeClient.ChainID(ctx)
	if err != nil {
		sugar.Fatalw("could not query chain id", "error", err)
	}
	nonce, err := nodeClient.NonceAt(ctx, sign.Address().Hex())
	if err != nil {
		sugar.Fatalw("could not query nonce", "error", err)
	}

	relay := relaypkg.New(cfg.FlashbotsRelayURL, sugar)
	ledger := txstore.NewMemoryStore()
	submitter := autosubmit.NewWithMetrics(relay, nodeClient, cfg.Autosubmit, ledger, sugar, rec)

	self := sign.Address()
	tx := &txtypes.Transaction{
		Variant:   txtypes.DynamicFee,
		ChainID:   chainID,
		Nonce:     nonce,
		To:        &self,
		Value:     common.Big0,
		Gas:       21000,
		GasTipCap: common.Big1,
		GasFeeCap: common.Big1,
	}

	raw, err := sign.SignTyped(ctx, tx)
	if err != nil {
		sugar.Fatalw("signing failed", "error", err)
	}

	result, err := submitter.SubmitAndMonitor(ctx, [][]byte{raw}, nil, nil, nil)
	if err != nil {
		sugar.Warnw("submission failed", "error", err, "state", result.State.String())
	}

	fmt.Print(rec.Export())
}

func handleAddress(sugar *zap.SugaredLogger, cfg appconfig.Config) {
	sign, err := localSignerFrom(cfg)
	if err != nil {
		sugar.Fatalw("could not construct signer", "error", err)
	}
	fmt.Println(sign.Address().Hex())
}

// handleSubmit builds a zero-value self-transfer against the configured
// node, sweeps it across the configured nonce range through the Bundle
// Simulator to pick the best-scoring offset, then hands the winning
// signed bundle (plus the unsigned template, so a timeout can still
// re-bid) to the Autosubmitter. It exists to exercise the core end to
// end, not as a production CLI.
func handleSubmit(sugar *zap.SugaredLogger, cfg appconfig.Config) {
	ctx := context.Background()

	sign, err := localSignerFrom(cfg)
	if err != nil {
		sugar.Fatalw("could not construct signer", "error", err)
	}

	nodeClient := node.NewHTTPClient(cfg.AnvilRPCURL)
	chainID, err := nodeClient.ChainID(ctx)
	if err != nil {
		sugar.Fatalw("could not query chain id", "error", err)
	}
	nonce, err := nodeClient.NonceAt(ctx, sign.Address().Hex())
	if err != nil {
		sugar.Fatalw("could not query nonce", "error", err)
	}

	sim := simulator.New(nodeClient, sugar)

	relay := relaypkg.New(cfg.FlashbotsRelayURL, sugar)
	ledger := txstore.NewMemoryStore()
	submitter := autosubmit.New(relay, nodeClient, cfg.Autosubmit, ledger, sugar)

	self := sign.Address()
	tx := &txtypes.Transaction{
		Variant:   txtypes.DynamicFee,
		ChainID:   chainID,
		To:        &self,
		Value:     common.Big0,
		Gas:       21000,
		GasTipCap: common.Big1,
		GasFeeCap: common.Big1,
	}

	outcome, ok, err := sim.ChooseBest(
		ctx,
		[]*txtypes.Transaction{tx},
		sign,
		nonce,
		cfg.SweepNonceRange,
		cfg.SweepConcurrency,
		simulator.GasCostScorer{},
		nil,
		nil,
	)
	if err != nil {
		sugar.Fatalw("nonce sweep failed", "error", err)
	}
	if !ok {
		sugar.Fatalw("nonce sweep produced no viable offset")
	}
	sugar.Infow("sweep selected offset", "nonce", outcome.Nonce, "score", outcome.Score)

	unsigned := tx.Clone()
	unsigned.Nonce = outcome.Nonce

	result, err := submitter.SubmitAndMonitor(ctx, outcome.SignedBundle, []*txtypes.Transaction{unsigned}, sign, nil)
	if err != nil {
		sugar.Fatalw("submission failed", "error", err, "state", result.State.String())
	}
	sugar.Infow("submission settled", "state", result.State.String())
}

func localSignerFrom(cfg appconfig.Config) (*signer.LocalSigner, error) {
	if cfg.PrivateKeyHex == "" {
		return nil, fmt.Errorf("PRIVATE_KEY not set")
	}
	raw, err := hex.DecodeString(cfg.PrivateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid PRIVATE_KEY: %w", err)
	}
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid PRIVATE_KEY: %w", err)
	}
	return signer.NewLocalSigner(key), nil
}
