// Package metrics provides observability for blockchain adapter and
// pipeline operations. Adapted from the teacher's ChainMetrics
// (src/chainadapter/metrics/metrics.go), trimmed from a wallet's
// Build/Sign/Broadcast transaction lifecycle down to the relay's
// send/decode/decrypt operations (spec §4.4, §4.5) and exposed in a
// format compatible with Prometheus.
package metrics

import (
	"time"
)

// RelayMetrics defines the interface for recording and querying relay
// operation metrics.
//
// Contract:
//   - RecordRPCCall() MUST be thread-safe (concurrent calls allowed).
//   - GetMetrics() MUST return accurate aggregated metrics.
//   - GetHealthStatus() MUST report degraded status when a threshold is
//     exceeded.
//   - Export() MUST return Prometheus-compatible metrics.
type RelayMetrics interface {
	// RecordRPCCall records a single blockchain RPC call with its
	// duration and success status.
	RecordRPCCall(method string, duration time.Duration, success bool)

	// RecordMessageSend records one tx-pipeline send stage call.
	RecordMessageSend(blockchainName string, duration time.Duration, success bool)

	// RecordMessageDecode records one rx-pipeline decode stage call,
	// including the key-search path for encrypted bodies.
	RecordMessageDecode(blockchainName string, duration time.Duration, success bool)

	// GetMetrics returns aggregated metrics for all recorded operations.
	GetMetrics() *AggregatedMetrics

	// GetRPCMetrics returns aggregated metrics for a specific RPC method,
	// or nil if no data exists.
	GetRPCMetrics(method string) *MethodMetrics

	// GetHealthStatus reports OK, Degraded, or Down based on recent
	// RPC success rate and latency.
	GetHealthStatus() HealthStatus

	// Export returns metrics in Prometheus text format.
	Export() string

	// Reset clears all recorded metrics (useful for testing).
	Reset()
}

// AggregatedMetrics contains aggregated metrics across all operations.
type AggregatedMetrics struct {
	TotalRPCCalls      int64
	SuccessfulRPCCalls int64
	FailedRPCCalls     int64
	RPCSuccessRate     float64
	AvgRPCDuration     time.Duration
	LastSuccessfulCall time.Time

	TotalSends      int64
	SuccessfulSends int64
	FailedSends     int64
	SendSuccessRate float64
	AvgSendDuration time.Duration

	TotalDecodes      int64
	SuccessfulDecodes int64
	FailedDecodes     int64
	DecodeSuccessRate float64
	AvgDecodeDuration time.Duration
}

// MethodMetrics contains metrics for a specific RPC method.
type MethodMetrics struct {
	Method             string
	TotalCalls         int64
	SuccessfulCalls    int64
	FailedCalls        int64
	SuccessRate        float64
	AvgDuration        time.Duration
	MinDuration        time.Duration
	MaxDuration        time.Duration
	LastSuccessfulCall time.Time
	LastFailedCall     time.Time
}

// HealthStatus represents the health status of a blockchain adapter.
type HealthStatus struct {
	Status    string // "OK", "Degraded", or "Down"
	Message   string
	CheckedAt time.Time

	LowSuccessRate  bool // success rate < 90%
	HighLatency     bool // avg response time > 5s
	NoRecentSuccess bool // no successful call in the last 5 minutes
}

func (h *HealthStatus) IsHealthy() bool  { return h.Status == "OK" }
func (h *HealthStatus) IsDegraded() bool { return h.Status == "Degraded" }
func (h *HealthStatus) IsDown() bool     { return h.Status == "Down" }

// NoOpMetrics is a metrics implementation that does nothing. It is the
// zero-value-friendly default so adapters and pipelines can record
// unconditionally without a nil check.
type NoOpMetrics struct{}

func (n *NoOpMetrics) RecordRPCCall(method string, duration time.Duration, success bool)      {}
func (n *NoOpMetrics) RecordMessageSend(blockchainName string, duration time.Duration, success bool) {
}
func (n *NoOpMetrics) RecordMessageDecode(blockchainName string, duration time.Duration, success bool) {
}
func (n *NoOpMetrics) GetMetrics() *AggregatedMetrics      { return &AggregatedMetrics{} }
func (n *NoOpMetrics) GetRPCMetrics(method string) *MethodMetrics { return nil }
func (n *NoOpMetrics) GetHealthStatus() HealthStatus {
	return HealthStatus{Status: "OK", Message: "metrics disabled", CheckedAt: time.Now()}
}
func (n *NoOpMetrics) Export() string { return "" }
func (n *NoOpMetrics) Reset()         {}

var _ RelayMetrics = (*NoOpMetrics)(nil)
