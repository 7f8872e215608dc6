package relaypkg

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSubmitBundle_PostsExpectedEnvelope asserts the exact wire shape:
// params[0].txs == ["0x010203"], blockNumber == "0x3039", response
// surfaced verbatim.
func TestSubmitBundle_PostsExpectedEnvelope(t *testing.T) {
	var captured map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":"ok"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, nil)
	block := uint64(12345)
	resp, err := client.SubmitBundle(t.Context(), [][]byte{{0x01, 0x02, 0x03}}, &block)
	require.NoError(t, err)

	assert.Equal(t, "eth_sendBundle", captured["method"])
	params := captured["params"].([]interface{})[0].(map[string]interface{})
	txs := params["txs"].([]interface{})
	assert.Equal(t, []interface{}{"0x010203"}, txs)
	assert.Equal(t, "0x3039", params["blockNumber"])

	var result string
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "ok", result)
}

// TestSubmitBundleLegacy_StubWhenUnconfigured covers the no-relay-URL
// fallback path.
func TestSubmitBundleLegacy_StubWhenUnconfigured(t *testing.T) {
	client := New("", nil)
	result, err := client.SubmitBundleLegacy(t.Context(), []byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	assert.Equal(t, "stub", result)
}

func TestCall_NotConfiguredFailsFast(t *testing.T) {
	client := New("", nil)
	_, err := client.SubmitBundle(t.Context(), [][]byte{{0x01}}, nil)
	assert.Error(t, err)
}

func TestSimulateBundle_UsesSimulateMethod(t *testing.T) {
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		method = body["method"].(string)
		w.Write([]byte(`{"result":{}}`))
	}))
	defer srv.Close()

	client := New(srv.URL, nil)
	_, err := client.SimulateBundle(t.Context(), [][]byte{{0xaa}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "eth_simulateBundle", method)
}
