// Package metrics provides observability for the signing, simulation,
// and submission core: RPC health, signing/broadcast success rates, and
// timing, exported in a format compatible with Prometheus scraping.
//
// Adapted from metrics.ChainMetrics / metrics.PrometheusMetrics
// (src/chainadapter/metrics/{metrics,prometheus}.go): the same
// mutex-guarded counters-and-histograms-by-hand shape, with Build/Sign
// the teacher tracked per multi-chain transaction replaced by the
// node RPC / Sign / Simulate / Broadcast operations this core actually
// performs. No Prometheus client library appears anywhere in the
// retrieval pack, so the hand-rolled text exporter is kept rather than
// introducing an unfamiliar client library wholesale (see DESIGN.md).
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Recorder is the capability the node, simulator, and autosubmitter
// packages record operation outcomes against.
type Recorder interface {
	RecordRPCCall(method string, duration time.Duration, success bool)
	RecordSign(duration time.Duration, success bool)
	RecordSimulate(duration time.Duration, success bool)
	RecordBroadcast(duration time.Duration, success bool)
	GetMetrics() *AggregatedMetrics
	GetHealthStatus() HealthStatus
	Export() string
}

// AggregatedMetrics summarizes every recorded operation.
type AggregatedMetrics struct {
	TotalRPCCalls      int64
	SuccessfulRPCCalls int64
	FailedRPCCalls     int64
	RPCSuccessRate     float64
	AvgRPCDuration     time.Duration
	LastSuccessfulCall time.Time

	TotalSigns      int64
	SuccessfulSigns int64
	FailedSigns     int64
	SignSuccessRate float64
	AvgSignDuration time.Duration

	TotalSimulates      int64
	SuccessfulSimulates int64
	FailedSimulates     int64
	SimulateSuccessRate float64
	AvgSimulateDuration time.Duration

	TotalBroadcasts      int64
	SuccessfulBroadcasts int64
	FailedBroadcasts     int64
	BroadcastSuccessRate float64
	AvgBroadcastDuration time.Duration
}

// HealthStatus reports whether the core's collaborators look healthy.
type HealthStatus struct {
	Status    string
	Message   string
	CheckedAt time.Time

	LowSuccessRate  bool
	HighLatency     bool
	NoRecentSuccess bool
}

func (h HealthStatus) IsHealthy() bool  { return h.Status == "OK" }
func (h HealthStatus) IsDegraded() bool { return h.Status == "Degraded" }

type methodStats struct {
	totalCalls         int64
	successfulCalls    int64
	failedCalls        int64
	totalDuration      time.Duration
	minDuration        time.Duration
	maxDuration        time.Duration
	lastSuccessfulCall time.Time
	lastFailedCall     time.Time
}

type operationStats struct {
	totalCalls      int64
	successfulCalls int64
	failedCalls     int64
	totalDuration   time.Duration
}

func (o *operationStats) record(duration time.Duration, success bool) {
	o.totalCalls++
	o.totalDuration += duration
	if success {
		o.successfulCalls++
	} else {
		o.failedCalls++
	}
}

func (o *operationStats) rate() float64 {
	if o.totalCalls == 0 {
		return 0
	}
	return float64(o.successfulCalls) / float64(o.totalCalls)
}

func (o *operationStats) avg() time.Duration {
	if o.totalCalls == 0 {
		return 0
	}
	return o.totalDuration / time.Duration(o.totalCalls)
}

// PrometheusMetrics implements Recorder with a Prometheus-compatible
// text exporter. Thread-safe via sync.RWMutex.
type PrometheusMetrics struct {
	mu sync.RWMutex

	rpcMetrics map[string]*methodStats

	signStats      operationStats
	simulateStats  operationStats
	broadcastStats operationStats

	totalRPCCalls      int64
	successfulRPCCalls int64
	failedRPCCalls     int64
	lastSuccessfulCall time.Time
}

// New creates an empty Prometheus-compatible metrics recorder.
func New() *PrometheusMetrics {
	return &PrometheusMetrics{rpcMetrics: make(map[string]*methodStats)}
}

func (p *PrometheusMetrics) RecordRPCCall(method string, duration time.Duration, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.totalRPCCalls++
	if success {
		p.successfulRPCCalls++
		p.lastSuccessfulCall = time.Now()
	} else {
		p.failedRPCCalls++
	}

	stats, exists := p.rpcMetrics[method]
	if !exists {
		stats = &methodStats{minDuration: duration, maxDuration: duration}
		p.rpcMetrics[method] = stats
	}

	stats.totalCalls++
	stats.totalDuration += duration
	if success {
		stats.successfulCalls++
		stats.lastSuccessfulCall = time.Now()
	} else {
		stats.failedCalls++
		stats.lastFailedCall = time.Now()
	}
	if duration < stats.minDuration || stats.minDuration == 0 {
		stats.minDuration = duration
	}
	if duration > stats.maxDuration {
		stats.maxDuration = duration
	}
}

func (p *PrometheusMetrics) RecordSign(duration time.Duration, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signStats.record(duration, success)
}

func (p *PrometheusMetrics) RecordSimulate(duration time.Duration, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.simulateStats.record(duration, success)
}

func (p *PrometheusMetrics) RecordBroadcast(duration time.Duration, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broadcastStats.record(duration, success)
}

func (p *PrometheusMetrics) GetMetrics() *AggregatedMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var totalRPCDuration time.Duration
	for _, stats := range p.rpcMetrics {
		totalRPCDuration += stats.totalDuration
	}
	rpcSuccessRate := 0.0
	avgRPCDuration := time.Duration(0)
	if p.totalRPCCalls > 0 {
		rpcSuccessRate = float64(p.successfulRPCCalls) / float64(p.totalRPCCalls)
		avgRPCDuration = totalRPCDuration / time.Duration(p.totalRPCCalls)
	}

	return &AggregatedMetrics{
		TotalRPCCalls:        p.totalRPCCalls,
		SuccessfulRPCCalls:   p.successfulRPCCalls,
		FailedRPCCalls:       p.failedRPCCalls,
		RPCSuccessRate:       rpcSuccessRate,
		AvgRPCDuration:       avgRPCDuration,
		LastSuccessfulCall:   p.lastSuccessfulCall,
		TotalSigns:           p.signStats.totalCalls,
		SuccessfulSigns:      p.signStats.successfulCalls,
		FailedSigns:          p.signStats.failedCalls,
		SignSuccessRate:      p.signStats.rate(),
		AvgSignDuration:      p.signStats.avg(),
		TotalSimulates:       p.simulateStats.totalCalls,
		SuccessfulSimulates:  p.simulateStats.successfulCalls,
		FailedSimulates:      p.simulateStats.failedCalls,
		SimulateSuccessRate:  p.simulateStats.rate(),
		AvgSimulateDuration:  p.simulateStats.avg(),
		TotalBroadcasts:      p.broadcastStats.totalCalls,
		SuccessfulBroadcasts: p.broadcastStats.successfulCalls,
		FailedBroadcasts:     p.broadcastStats.failedCalls,
		BroadcastSuccessRate: p.broadcastStats.rate(),
		AvgBroadcastDuration: p.broadcastStats.avg(),
	}
}

// GetHealthStatus reports Degraded when the RPC success rate drops below
// 90%, average RPC latency exceeds 5s, or no RPC call has succeeded in
// the last 5 minutes.
func (p *PrometheusMetrics) GetHealthStatus() HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.healthStatusLocked()
}

func (p *PrometheusMetrics) healthStatusLocked() HealthStatus {
	status := HealthStatus{CheckedAt: time.Now()}

	successRate := 0.0
	var totalDuration time.Duration
	for _, stats := range p.rpcMetrics {
		totalDuration += stats.totalDuration
	}
	avgDuration := time.Duration(0)
	if p.totalRPCCalls > 0 {
		successRate = float64(p.successfulRPCCalls) / float64(p.totalRPCCalls)
		avgDuration = totalDuration / time.Duration(p.totalRPCCalls)
	}

	status.LowSuccessRate = successRate < 0.90 && p.totalRPCCalls > 0
	status.HighLatency = avgDuration > 5*time.Second
	status.NoRecentSuccess = !p.lastSuccessfulCall.IsZero() && time.Since(p.lastSuccessfulCall) > 5*time.Minute

	if p.totalRPCCalls == 0 {
		status.Status = "OK"
		status.Message = "no RPC calls recorded yet"
		return status
	}

	if status.LowSuccessRate || status.HighLatency || status.NoRecentSuccess {
		status.Status = "Degraded"
		var messages []string
		if status.LowSuccessRate {
			messages = append(messages, fmt.Sprintf("low success rate (%.1f%%)", successRate*100))
		}
		if status.HighLatency {
			messages = append(messages, fmt.Sprintf("high latency (%v)", avgDuration))
		}
		if status.NoRecentSuccess {
			messages = append(messages, fmt.Sprintf("no recent success (%v ago)", time.Since(p.lastSuccessfulCall)))
		}
		status.Message = strings.Join(messages, ", ")
		return status
	}

	status.Status = "OK"
	status.Message = fmt.Sprintf("success rate: %.1f%%, avg latency: %v", successRate*100, avgDuration)
	return status
}

// Export returns metrics in Prometheus text exposition format.
func (p *PrometheusMetrics) Export() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var sb strings.Builder

	sb.WriteString("# HELP mevcore_rpc_calls_total Total number of execution-node RPC calls\n")
	sb.WriteString("# TYPE mevcore_rpc_calls_total counter\n")
	for method, stats := range p.rpcMetrics {
		sb.WriteString(fmt.Sprintf("mevcore_rpc_calls_total{method=%q,status=\"success\"} %d\n", method, stats.successfulCalls))
		sb.WriteString(fmt.Sprintf("mevcore_rpc_calls_total{method=%q,status=\"failure\"} %d\n", method, stats.failedCalls))
	}

	sb.WriteString("# HELP mevcore_operations_total Total number of sign/simulate/broadcast operations\n")
	sb.WriteString("# TYPE mevcore_operations_total counter\n")
	for op, stats := range map[string]operationStats{"sign": p.signStats, "simulate": p.simulateStats, "broadcast": p.broadcastStats} {
		sb.WriteString(fmt.Sprintf("mevcore_operations_total{operation=%q,status=\"success\"} %d\n", op, stats.successfulCalls))
		sb.WriteString(fmt.Sprintf("mevcore_operations_total{operation=%q,status=\"failure\"} %d\n", op, stats.failedCalls))
	}

	health := p.healthStatusLocked()
	healthValue := 0.0
	switch health.Status {
	case "OK":
		healthValue = 1.0
	case "Degraded":
		healthValue = 0.5
	}
	sb.WriteString("# HELP mevcore_health_status Health status (1=OK, 0.5=Degraded, 0=Down)\n")
	sb.WriteString("# TYPE mevcore_health_status gauge\n")
	sb.WriteString(fmt.Sprintf("mevcore_health_status %.1f\n", healthValue))

	return sb.String()
}

// NoOp is a Recorder that discards everything; the zero value for
// callers that don't wire in real metrics.
type NoOp struct{}

func (NoOp) RecordRPCCall(string, time.Duration, bool) {}
func (NoOp) RecordSign(time.Duration, bool)            {}
func (NoOp) RecordSimulate(time.Duration, bool)        {}
func (NoOp) RecordBroadcast(time.Duration, bool)       {}
func (NoOp) GetMetrics() *AggregatedMetrics             { return &AggregatedMetrics{} }
func (NoOp) GetHealthStatus() HealthStatus {
	return HealthStatus{Status: "OK", Message: "metrics disabled", CheckedAt: time.Now()}
}
func (NoOp) Export() string { return "" }

var (
	_ Recorder = (*PrometheusMetrics)(nil)
	_ Recorder = NoOp{}
)
