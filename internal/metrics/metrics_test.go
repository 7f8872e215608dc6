package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics_RecordRPCCall_Aggregates(t *testing.T) {
	m := New()
	m.RecordRPCCall("eth_chainId", 10*time.Millisecond, true)
	m.RecordRPCCall("eth_chainId", 20*time.Millisecond, false)
	m.RecordRPCCall("eth_getTransactionReceipt", 5*time.Millisecond, true)

	agg := m.GetMetrics()
	assert.EqualValues(t, 3, agg.TotalRPCCalls)
	assert.EqualValues(t, 2, agg.SuccessfulRPCCalls)
	assert.EqualValues(t, 1, agg.FailedRPCCalls)
	assert.InDelta(t, 2.0/3.0, agg.RPCSuccessRate, 0.001)
}

func TestPrometheusMetrics_RecordSignSimulateBroadcast(t *testing.T) {
	m := New()
	m.RecordSign(time.Millisecond, true)
	m.RecordSimulate(2*time.Millisecond, true)
	m.RecordBroadcast(3*time.Millisecond, false)

	agg := m.GetMetrics()
	assert.EqualValues(t, 1, agg.SuccessfulSigns)
	assert.EqualValues(t, 1, agg.SuccessfulSimulates)
	assert.EqualValues(t, 1, agg.FailedBroadcasts)
}

func TestPrometheusMetrics_HealthStatus_DegradedOnLowSuccessRate(t *testing.T) {
	m := New()
	for i := 0; i < 8; i++ {
		m.RecordRPCCall("eth_call", time.Millisecond, false)
	}
	for i := 0; i < 2; i++ {
		m.RecordRPCCall("eth_call", time.Millisecond, true)
	}

	health := m.GetHealthStatus()
	assert.True(t, health.IsDegraded())
	assert.True(t, health.LowSuccessRate)
}

func TestPrometheusMetrics_HealthStatus_OKWithNoCalls(t *testing.T) {
	m := New()
	health := m.GetHealthStatus()
	assert.True(t, health.IsHealthy())
}

func TestPrometheusMetrics_Export_IncludesCounters(t *testing.T) {
	m := New()
	m.RecordRPCCall("eth_chainId", time.Millisecond, true)
	m.RecordSign(time.Millisecond, true)

	out := m.Export()
	require.NotEmpty(t, out)
	assert.True(t, strings.Contains(out, "mevcore_rpc_calls_total"))
	assert.True(t, strings.Contains(out, "mevcore_operations_total"))
	assert.True(t, strings.Contains(out, "mevcore_health_status"))
}

func TestNoOp_NeverPanics(t *testing.T) {
	var rec Recorder = NoOp{}
	rec.RecordRPCCall("x", time.Millisecond, true)
	rec.RecordSign(time.Millisecond, false)
	rec.RecordSimulate(time.Millisecond, true)
	rec.RecordBroadcast(time.Millisecond, false)
	assert.Equal(t, "", rec.Export())
	assert.True(t, rec.GetHealthStatus().IsHealthy())
	assert.NotNil(t, rec.GetMetrics())
}
