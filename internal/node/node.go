// Package node defines the execution-node RPC contract the Bundle
// Simulator and Autosubmitter depend on: snapshot/revert, base-fee
// override, raw-tx broadcast, receipt lookup, and the nonce/chain-id
// queries the external transaction builder needs. This package does not
// define the node's wire protocol itself; it only names the surface
// consumed.
//
// Generalized from rpc.RPCClient (src/chainadapter/rpc/client.go) and
// rpc.HTTPRPCClient (src/chainadapter/rpc/http.go) — a generic
// "Call(method, params)" abstraction specialized here into the specific
// calls this package needs, the same way RPCHelper
// (src/chainadapter/ethereum/rpc.go) wraps RPCClient.Call with typed
// helpers.
package node

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/yourusername/mevcore/internal/coreerr"
	"github.com/yourusername/mevcore/internal/metrics"
)

// TxHashOf derives the canonical transaction hash from its RLP-encoded
// wire form: keccak256 of the encoded bytes matches go-ethereum's own
// Transaction.Hash() for both legacy and typed envelopes.
func TxHashOf(raw []byte) [32]byte {
	return crypto.Keccak256Hash(raw)
}

// receiptTimeout is the fixed per-receipt wait before giving up.
const receiptTimeout = 10 * time.Second

// Receipt is a transaction receipt as observed by the simulator and
// autosubmitter.
type Receipt struct {
	Status            uint64
	GasUsed           uint64
	EffectiveGasPrice *big.Int
}

// Client is the RPC surface the simulator and autosubmitter consume.
// Implementations MUST be safe for concurrent use: the node client is
// shared across goroutines evaluating different nonce offsets in a sweep.
type Client interface {
	Snapshot(ctx context.Context) (string, error)
	Revert(ctx context.Context, snapshotID string) error
	SetNextBlockBaseFee(ctx context.Context, baseFee *big.Int) error
	SendRawTransaction(ctx context.Context, raw []byte) error
	ReceiptFor(ctx context.Context, txHash [32]byte) (*Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
	NonceAt(ctx context.Context, address string) (uint64, error)
}

// HTTPClient implements Client against an Anvil-compatible JSON-RPC node.
type HTTPClient struct {
	rpcURL     string
	httpClient *http.Client
	metrics    metrics.Recorder
}

// NewHTTPClient builds an HTTPClient against rpcURL (the configured
// ANVIL_RPC_URL), recording no metrics.
func NewHTTPClient(rpcURL string) *HTTPClient {
	return NewHTTPClientWithMetrics(rpcURL, metrics.NoOp{})
}

// NewHTTPClientWithMetrics builds an HTTPClient that records every RPC
// call's duration and outcome through rec.
func NewHTTPClientWithMetrics(rpcURL string, rec metrics.Recorder) *HTTPClient {
	return &HTTPClient{rpcURL: rpcURL, httpClient: &http.Client{Timeout: receiptTimeout}, metrics: rec}
}

type rpcEnvelope struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcEnvelopeResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (h *HTTPClient) call(ctx context.Context, method string, params []interface{}, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		h.metrics.RecordRPCCall(method, time.Since(start), err == nil)
	}()

	body, marshalErr := json.Marshal(rpcEnvelope{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if marshalErr != nil {
		err = coreerr.NewNonRetryable(coreerr.CodeRPCUnavailable, "failed to marshal RPC request", marshalErr)
		return err
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, h.rpcURL, bytes.NewReader(body))
	if reqErr != nil {
		err = coreerr.NewNonRetryable(coreerr.CodeRPCUnavailable, "failed to build RPC request", reqErr)
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, doErr := h.httpClient.Do(req)
	if doErr != nil {
		err = coreerr.NewRetryable(coreerr.CodeRPCUnavailable, fmt.Sprintf("%s call failed", method), nil, doErr)
		return err
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		err = coreerr.NewRetryable(coreerr.CodeRPCUnavailable, "failed to read RPC response", nil, readErr)
		return err
	}

	var env rpcEnvelopeResponse
	if unmarshalErr := json.Unmarshal(raw, &env); unmarshalErr != nil {
		err = coreerr.NewNonRetryable(coreerr.CodeRPCUnavailable, "failed to parse RPC response", unmarshalErr)
		return err
	}
	if env.Error != nil {
		err = coreerr.NewRetryable(coreerr.CodeRPCUnavailable, env.Error.Message, nil, nil)
		return err
	}
	if out != nil {
		if decodeErr := json.Unmarshal(env.Result, out); decodeErr != nil {
			err = coreerr.NewNonRetryable(coreerr.CodeRPCUnavailable, "failed to decode RPC result", decodeErr)
			return err
		}
	}
	return nil
}

func (h *HTTPClient) Snapshot(ctx context.Context) (string, error) {
	var id string
	if err := h.call(ctx, "evm_snapshot", nil, &id); err != nil {
		return "", coreerr.New(coreerr.CodeSnapshotFailed, "evm_snapshot failed", coreerr.Retryable, err)
	}
	return id, nil
}

func (h *HTTPClient) Revert(ctx context.Context, snapshotID string) error {
	var ok bool
	if err := h.call(ctx, "evm_revert", []interface{}{snapshotID}, &ok); err != nil {
		return coreerr.New(coreerr.CodeRevertFailed, "evm_revert failed", coreerr.Retryable, err)
	}
	return nil
}

func (h *HTTPClient) SetNextBlockBaseFee(ctx context.Context, baseFee *big.Int) error {
	return h.call(ctx, "evm_setNextBlockBaseFeePerGas", []interface{}{hexutil.EncodeBig(baseFee)}, nil)
}

func (h *HTTPClient) SendRawTransaction(ctx context.Context, raw []byte) error {
	if err := h.call(ctx, "eth_sendRawTransaction", []interface{}{hexutil.Encode(raw)}, nil); err != nil {
		return coreerr.New(coreerr.CodeBroadcastFailed, "eth_sendRawTransaction failed", coreerr.Retryable, err)
	}
	return nil
}

func (h *HTTPClient) ReceiptFor(ctx context.Context, txHash [32]byte) (*Receipt, error) {
	var raw struct {
		Status            string `json:"status"`
		GasUsed           string `json:"gasUsed"`
		EffectiveGasPrice string `json:"effectiveGasPrice"`
	}
	if err := h.call(ctx, "eth_getTransactionReceipt", []interface{}{hexutil.Encode(txHash[:])}, &raw); err != nil {
		return nil, err
	}
	if raw.Status == "" {
		return nil, nil // not yet mined
	}

	status, err := hexutil.DecodeUint64(raw.Status)
	if err != nil {
		return nil, coreerr.NewNonRetryable(coreerr.CodeRPCUnavailable, "failed to decode receipt status", err)
	}
	gasUsed, err := hexutil.DecodeUint64(raw.GasUsed)
	if err != nil {
		return nil, coreerr.NewNonRetryable(coreerr.CodeRPCUnavailable, "failed to decode receipt gasUsed", err)
	}
	effGasPrice := big.NewInt(0)
	if raw.EffectiveGasPrice != "" {
		effGasPrice, err = hexutil.DecodeBig(raw.EffectiveGasPrice)
		if err != nil {
			return nil, coreerr.NewNonRetryable(coreerr.CodeRPCUnavailable, "failed to decode effectiveGasPrice", err)
		}
	}

	return &Receipt{Status: status, GasUsed: gasUsed, EffectiveGasPrice: effGasPrice}, nil
}

func (h *HTTPClient) ChainID(ctx context.Context) (*big.Int, error) {
	var hex string
	if err := h.call(ctx, "eth_chainId", nil, &hex); err != nil {
		return nil, err
	}
	id, err := hexutil.DecodeBig(hex)
	if err != nil {
		return nil, coreerr.NewNonRetryable(coreerr.CodeRPCUnavailable, "failed to decode chain id", err)
	}
	return id, nil
}

func (h *HTTPClient) NonceAt(ctx context.Context, address string) (uint64, error) {
	var hex string
	if err := h.call(ctx, "eth_getTransactionCount", []interface{}{address, "pending"}, &hex); err != nil {
		return 0, err
	}
	nonce, err := hexutil.DecodeUint64(hex)
	if err != nil {
		return 0, coreerr.NewNonRetryable(coreerr.CodeRPCUnavailable, "failed to decode nonce", err)
	}
	return nonce, nil
}

// WaitForReceipt polls ReceiptFor until a receipt is available or
// receiptTimeout elapses.
func WaitForReceipt(ctx context.Context, client Client, txHash [32]byte) (*Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		receipt, err := client.ReceiptFor(ctx, txHash)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, coreerr.New(coreerr.CodeReceiptTimeout, "timed out waiting for receipt", coreerr.Retryable, ctx.Err())
		case <-ticker.C:
		}
	}
}
