// Package metrics - Prometheus-compatible metrics exporter, adapted from
// src/chainadapter/metrics/prometheus.go down to the relay's RPC and
// send/decode operations.
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// PrometheusMetrics implements RelayMetrics with Prometheus-compatible
// export. Thread-safe via sync.RWMutex.
type PrometheusMetrics struct {
	mu sync.RWMutex

	rpcMetrics map[string]*methodStats

	sendStats   *operationStats
	decodeStats *operationStats

	totalRPCCalls      int64
	successfulRPCCalls int64
	failedRPCCalls     int64
	lastSuccessfulCall time.Time
}

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

// NewPrometheusMetrics creates a new Prometheus-compatible metrics recorder.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		rpcMetrics:  make(map[string]*methodStats),
		sendStats:   &operationStats{},
		decodeStats: &operationStats{},
	}
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

func (p *PrometheusMetrics) RecordMessageSend(blockchainName string, duration time.Duration, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sendStats.totalCalls++
	p.sendStats.totalDuration += duration
	if success {
		p.sendStats.successfulCalls++
	} else {
		p.sendStats.failedCalls++
	}
}

func (p *PrometheusMetrics) RecordMessageDecode(blockchainName string, duration time.Duration, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decodeStats.totalCalls++
	p.decodeStats.totalDuration += duration
	if success {
		p.decodeStats.successfulCalls++
	} else {
		p.decodeStats.failedCalls++
	}
}

func (p *PrometheusMetrics) GetMetrics() *AggregatedMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var totalRPCDuration time.Duration
	for _, stats := range p.rpcMetrics {
		totalRPCDuration += stats.totalDuration
	}
	rpcSuccessRate := 0.0
	if p.totalRPCCalls > 0 {
		rpcSuccessRate = float64(p.successfulRPCCalls) / float64(p.totalRPCCalls)
	}
	avgRPCDuration := time.Duration(0)
	if p.totalRPCCalls > 0 {
		avgRPCDuration = totalRPCDuration / time.Duration(p.totalRPCCalls)
	}

	sendSuccessRate := 0.0
	if p.sendStats.totalCalls > 0 {
		sendSuccessRate = float64(p.sendStats.successfulCalls) / float64(p.sendStats.totalCalls)
	}
	avgSendDuration := time.Duration(0)
	if p.sendStats.totalCalls > 0 {
		avgSendDuration = p.sendStats.totalDuration / time.Duration(p.sendStats.totalCalls)
	}

	decodeSuccessRate := 0.0
	if p.decodeStats.totalCalls > 0 {
		decodeSuccessRate = float64(p.decodeStats.successfulCalls) / float64(p.decodeStats.totalCalls)
	}
	avgDecodeDuration := time.Duration(0)
	if p.decodeStats.totalCalls > 0 {
		avgDecodeDuration = p.decodeStats.totalDuration / time.Duration(p.decodeStats.totalCalls)
	}

	return &AggregatedMetrics{
		TotalRPCCalls:      p.totalRPCCalls,
		SuccessfulRPCCalls: p.successfulRPCCalls,
		FailedRPCCalls:     p.failedRPCCalls,
		RPCSuccessRate:     rpcSuccessRate,
		AvgRPCDuration:     avgRPCDuration,
		LastSuccessfulCall: p.lastSuccessfulCall,

		TotalSends:      p.sendStats.totalCalls,
		SuccessfulSends: p.sendStats.successfulCalls,
		FailedSends:     p.sendStats.failedCalls,
		SendSuccessRate: sendSuccessRate,
		AvgSendDuration: avgSendDuration,

		TotalDecodes:      p.decodeStats.totalCalls,
		SuccessfulDecodes: p.decodeStats.successfulCalls,
		FailedDecodes:     p.decodeStats.failedCalls,
		DecodeSuccessRate: decodeSuccessRate,
		AvgDecodeDuration: avgDecodeDuration,
	}
}

func (p *PrometheusMetrics) GetRPCMetrics(method string) *MethodMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats, exists := p.rpcMetrics[method]
	if !exists {
		return nil
	}
	successRate := 0.0
	if stats.totalCalls > 0 {
		successRate = float64(stats.successfulCalls) / float64(stats.totalCalls)
	}
	avgDuration := time.Duration(0)
	if stats.totalCalls > 0 {
		avgDuration = stats.totalDuration / time.Duration(stats.totalCalls)
	}
	return &MethodMetrics{
		Method:             method,
		TotalCalls:         stats.totalCalls,
		SuccessfulCalls:    stats.successfulCalls,
		FailedCalls:        stats.failedCalls,
		SuccessRate:        successRate,
		AvgDuration:        avgDuration,
		MinDuration:        stats.minDuration,
		MaxDuration:        stats.maxDuration,
		LastSuccessfulCall: stats.lastSuccessfulCall,
		LastFailedCall:     stats.lastFailedCall,
	}
}

// GetHealthStatus reports Degraded when RPC success rate drops below 90%,
// average latency exceeds 5 seconds, or no call has succeeded in 5 minutes.
func (p *PrometheusMetrics) GetHealthStatus() HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.healthStatusLocked()
}

func (p *PrometheusMetrics) healthStatusLocked() HealthStatus {
	status := HealthStatus{CheckedAt: time.Now()}

	successRate := 0.0
	if p.totalRPCCalls > 0 {
		successRate = float64(p.successfulRPCCalls) / float64(p.totalRPCCalls)
	}
	var totalDuration time.Duration
	for _, stats := range p.rpcMetrics {
		totalDuration += stats.totalDuration
	}
	avgDuration := time.Duration(0)
	if p.totalRPCCalls > 0 {
		avgDuration = totalDuration / time.Duration(p.totalRPCCalls)
	}

	status.LowSuccessRate = successRate < 0.90 && p.totalRPCCalls > 0
	status.HighLatency = avgDuration > 5*time.Second
	status.NoRecentSuccess = !p.lastSuccessfulCall.IsZero() &&
		time.Since(p.lastSuccessfulCall) > 5*time.Minute

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

// Export returns metrics in Prometheus text format.
func (p *PrometheusMetrics) Export() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var sb strings.Builder

	sb.WriteString("# HELP wfrelay_rpc_calls_total Total number of blockchain RPC calls\n")
	sb.WriteString("# TYPE wfrelay_rpc_calls_total counter\n")
	for method, stats := range p.rpcMetrics {
		sb.WriteString(fmt.Sprintf("wfrelay_rpc_calls_total{method=%q,status=\"success\"} %d\n", method, stats.successfulCalls))
		sb.WriteString(fmt.Sprintf("wfrelay_rpc_calls_total{method=%q,status=\"failure\"} %d\n", method, stats.failedCalls))
	}
	sb.WriteString("\n")

	sb.WriteString("# HELP wfrelay_rpc_duration_seconds Blockchain RPC call duration in seconds\n")
	sb.WriteString("# TYPE wfrelay_rpc_duration_seconds summary\n")
	for method, stats := range p.rpcMetrics {
		if stats.totalCalls == 0 {
			continue
		}
		avgSec := stats.totalDuration.Seconds() / float64(stats.totalCalls)
		sb.WriteString(fmt.Sprintf("wfrelay_rpc_duration_seconds{method=%q,quantile=\"avg\"} %.6f\n", method, avgSec))
		sb.WriteString(fmt.Sprintf("wfrelay_rpc_duration_seconds{method=%q,quantile=\"min\"} %.6f\n", method, stats.minDuration.Seconds()))
		sb.WriteString(fmt.Sprintf("wfrelay_rpc_duration_seconds{method=%q,quantile=\"max\"} %.6f\n", method, stats.maxDuration.Seconds()))
	}
	sb.WriteString("\n")

	sb.WriteString("# HELP wfrelay_pipeline_operations_total Total number of tx/rx pipeline operations\n")
	sb.WriteString("# TYPE wfrelay_pipeline_operations_total counter\n")
	sb.WriteString(fmt.Sprintf("wfrelay_pipeline_operations_total{operation=\"send\",status=\"success\"} %d\n", p.sendStats.successfulCalls))
	sb.WriteString(fmt.Sprintf("wfrelay_pipeline_operations_total{operation=\"send\",status=\"failure\"} %d\n", p.sendStats.failedCalls))
	sb.WriteString(fmt.Sprintf("wfrelay_pipeline_operations_total{operation=\"decode\",status=\"success\"} %d\n", p.decodeStats.successfulCalls))
	sb.WriteString(fmt.Sprintf("wfrelay_pipeline_operations_total{operation=\"decode\",status=\"failure\"} %d\n", p.decodeStats.failedCalls))
	sb.WriteString("\n")

	health := p.healthStatusLocked()
	healthValue := 0.0
	switch health.Status {
	case "OK":
		healthValue = 1.0
	case "Degraded":
		healthValue = 0.5
	}
	sb.WriteString("# HELP wfrelay_health_status Health status (1=OK, 0.5=Degraded, 0=Down)\n")
	sb.WriteString("# TYPE wfrelay_health_status gauge\n")
	sb.WriteString(fmt.Sprintf("wfrelay_health_status %.1f\n", healthValue))

	return sb.String()
}

func (p *PrometheusMetrics) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rpcMetrics = make(map[string]*methodStats)
	p.sendStats = &operationStats{}
	p.decodeStats = &operationStats{}
	p.totalRPCCalls = 0
	p.successfulRPCCalls = 0
	p.failedRPCCalls = 0
	p.lastSuccessfulCall = time.Time{}
}

var _ RelayMetrics = (*PrometheusMetrics)(nil)
