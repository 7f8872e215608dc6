// Package relaypkg posts bundles of raw signed transactions to a
// private-relay JSON-RPC endpoint (submit_bundle -> eth_sendBundle,
// simulate_bundle -> eth_simulateBundle) and degrades to a stub when no
// relay URL is configured.
//
// Grounded on rpc.HTTPRPCClient (src/chainadapter/rpc/http.go) for the
// POST/decode shape, with the "no relay configured" stub-and-log
// behavior carried over from the original executor's fallback path.
package relaypkg

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/mevcore/internal/coreerr"
)

// requestTimeout is the fixed HTTP timeout for every relay call.
const requestTimeout = 10 * time.Second

// RelayResponse is the verbatim decoded JSON-RPC result surfaced to
// callers.
type RelayResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Client posts JSON-RPC envelopes to a single configured relay endpoint.
// A zero-value relayURL puts the client in "not configured" mode: every
// structured call fails with RelayNotConfigured, and the legacy
// SubmitBundleLegacy path returns the stub marker.
type Client struct {
	relayURL   string
	httpClient *http.Client
	log        *zap.SugaredLogger
}

// New constructs a relay Client. relayURL may be empty, which disables
// relay submission (an unset FLASHBOTS_RELAY_URL).
func New(relayURL string, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{
		relayURL:   relayURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		log:        log,
	}
}

// Configured reports whether a relay URL was provided.
func (c *Client) Configured() bool {
	return c.relayURL != ""
}

// SubmitBundle posts signed transactions with method eth_sendBundle.
func (c *Client) SubmitBundle(ctx context.Context, signed [][]byte, block *uint64) (*RelayResponse, error) {
	return c.call(ctx, "eth_sendBundle", signed, block)
}

// SimulateBundle posts signed transactions with method
// eth_simulateBundle.
func (c *Client) SimulateBundle(ctx context.Context, signed [][]byte, block *uint64) (*RelayResponse, error) {
	return c.call(ctx, "eth_simulateBundle", signed, block)
}

// SubmitBundleLegacy preserves the original executor's behavior: log the
// bundle size and return the stub marker "stub" when no relay is
// configured, otherwise POST the bundle hex-encoded under a "bundle" key
// of a JSON object and return the response text verbatim.
func (c *Client) SubmitBundleLegacy(ctx context.Context, bundle []byte) (string, error) {
	if !c.Configured() {
		c.log.Infow("no relay configured; bundle not submitted", "bundle_bytes", len(bundle))
		return "stub", nil
	}

	body, err := json.Marshal(map[string]string{"bundle": hex.EncodeToString(bundle)})
	if err != nil {
		return "", coreerr.NewNonRetryable(coreerr.CodeRelayError, "failed to marshal legacy bundle", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL, bytes.NewReader(body))
	if err != nil {
		return "", coreerr.NewNonRetryable(coreerr.CodeRelayError, "failed to build legacy request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", coreerr.NewRetryable(coreerr.CodeRelayError, "legacy relay post failed", nil, err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", coreerr.NewRetryable(coreerr.CodeRelayError, "failed to read legacy relay response", nil, err)
	}
	return string(text), nil
}

// call builds and posts a JSON-RPC envelope to the configured relay.
func (c *Client) call(ctx context.Context, method string, signed [][]byte, block *uint64) (*RelayResponse, error) {
	if !c.Configured() {
		return nil, coreerr.NewNonRetryable(coreerr.CodeRelayNotConfigured, "no relay URL configured", nil)
	}

	txs := make([]string, len(signed))
	for i, raw := range signed {
		txs[i] = "0x" + hex.EncodeToString(raw)
	}

	params := map[string]interface{}{"txs": txs}
	if block != nil {
		params["blockNumber"] = fmt.Sprintf("0x%x", *block)
	}

	envelope := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  []interface{}{params},
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, coreerr.NewNonRetryable(coreerr.CodeRelayError, "failed to marshal envelope", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL, bytes.NewReader(body))
	if err != nil {
		return nil, coreerr.NewNonRetryable(coreerr.CodeRelayError, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, coreerr.NewRetryable(coreerr.CodeRelayError, fmt.Sprintf("%s POST failed", method), nil, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, coreerr.NewRetryable(coreerr.CodeRelayError, "failed to read relay response", nil, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &coreerr.CoreError{
			Code:           coreerr.CodeRelayError,
			Message:        fmt.Sprintf("relay returned HTTP %d: %s", resp.StatusCode, string(respBody)),
			Classification: coreerr.Retryable,
		}
	}

	var out RelayResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, coreerr.NewNonRetryable(coreerr.CodeRelayError, "failed to parse relay response", err)
	}
	if out.Error != nil {
		return nil, coreerr.NewRetryable(coreerr.CodeRelayError, out.Error.Message, nil, nil)
	}
	return &out, nil
}
