// Package scanner implements a moving-average deviation detector: a
// sliding window over recent quote prices that signals an opportunity
// when the latest price deviates from the window's simple moving average
// by at least a threshold.
//
// Grounded on the original scanner module's process_quote
// remove-oldest/push-newest/average/compare shape; named types follow
// ethereum.FeeEstimator's (src/chainadapter/ethereum/fee.go) convention
// of a plain struct with pointer-receiver processing methods, no interfaces
// needed for a single-implementation component.
package scanner

import "fmt"

// Quote is a single price observation for a trading pair.
type Quote struct {
	Pair        string
	Price       float64
	TimestampMs int64
}

// MovingAverageScanner keeps a bounded sliding window of recent prices
// and flags deviations from their simple moving average.
type MovingAverageScanner struct {
	windowSize   int
	thresholdPct float64
	prices       []float64
}

// New builds a scanner over windowSize prices, signaling when a new quote
// deviates from the window average by at least thresholdPct (e.g. 0.02
// for 2%).
func New(windowSize int, thresholdPct float64) *MovingAverageScanner {
	return &MovingAverageScanner{
		windowSize:   windowSize,
		thresholdPct: thresholdPct,
		prices:       make([]float64, 0, windowSize),
	}
}

// ProcessQuote records q and returns a non-empty opportunity description
// if the window is full and q's price deviates from the window average by
// at least the configured threshold.
func (s *MovingAverageScanner) ProcessQuote(q Quote) (string, bool) {
	if len(s.prices) == s.windowSize {
		s.prices = s.prices[1:]
	}
	s.prices = append(s.prices, q.Price)

	if len(s.prices) < s.windowSize {
		return "", false
	}

	var sum float64
	for _, p := range s.prices {
		sum += p
	}
	avg := sum / float64(len(s.prices))
	pct := (q.Price - avg) / avg

	if abs(pct) >= s.thresholdPct {
		return fmt.Sprintf("opportunity:%s price %.4f avg %.4f pct %+.3f%%", q.Pair, q.Price, avg, pct*100.0), true
	}
	return "", false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
