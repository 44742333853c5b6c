// internal/utils/metrics.go
package utils

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector collects application metrics in memory
type MetricsCollector struct {
	counters   map[string]*int64
	gauges     map[string]*int64
	histograms map[string]*Histogram

	mu sync.RWMutex
}

// Histogram tracks count, sum, min and max of observed values
type Histogram struct {
	count int64
	sum   int64
	min   int64
	max   int64
	mu    sync.Mutex
}

// HistogramSnapshot is a point-in-time copy of a histogram
type HistogramSnapshot struct {
	Count int64   `json:"count"`
	Sum   int64   `json:"sum"`
	Min   int64   `json:"min"`
	Max   int64   `json:"max"`
	Avg   float64 `json:"avg"`
}

// MetricsSnapshot is what GetMetrics returns
type MetricsSnapshot struct {
	Counters   map[string]int64             `json:"counters"`
	Gauges     map[string]int64             `json:"gauges"`
	Histograms map[string]HistogramSnapshot `json:"histograms"`
	Timestamp  time.Time                    `json:"timestamp"`
}

// NewMetricsCollector creates an empty collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:   make(map[string]*int64),
		gauges:     make(map[string]*int64),
		histograms: make(map[string]*Histogram),
	}
}

// slot returns the value cell for name, creating it under the write lock
func (m *MetricsCollector) slot(set map[string]*int64, name string) *int64 {
	m.mu.RLock()
	v, ok := set[name]
	m.mu.RUnlock()
	if ok {
		return v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok = set[name]; !ok {
		v = new(int64)
		set[name] = v
	}
	return v
}

// IncrementCounter increments a counter metric
func (m *MetricsCollector) IncrementCounter(name string) {
	atomic.AddInt64(m.slot(m.counters, name), 1)
}

// AddGauge moves a gauge by delta
func (m *MetricsCollector) AddGauge(name string, delta int64) {
	atomic.AddInt64(m.slot(m.gauges, name), delta)
}

// RecordHistogram records a value in a histogram metric
func (m *MetricsCollector) RecordHistogram(name string, value int64) {
	m.mu.RLock()
	h, ok := m.histograms[name]
	m.mu.RUnlock()

	if !ok {
		m.mu.Lock()
		if h, ok = m.histograms[name]; !ok {
			h = &Histogram{min: value, max: value}
			m.histograms[name] = h
		}
		m.mu.Unlock()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 || value < h.min {
		h.min = value
	}
	if h.count == 0 || value > h.max {
		h.max = value
	}
	h.count++
	h.sum += value
}

// GetCounterValue returns the current value of a counter
func (m *MetricsCollector) GetCounterValue(name string) int64 {
	m.mu.RLock()
	v, ok := m.counters[name]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(v)
}

// GetGaugeValue returns the current value of a gauge
func (m *MetricsCollector) GetGaugeValue(name string) int64 {
	m.mu.RLock()
	v, ok := m.gauges[name]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(v)
}

// GetMetrics returns a snapshot of all metrics
func (m *MetricsCollector) GetMetrics() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		Counters:   make(map[string]int64, len(m.counters)),
		Gauges:     make(map[string]int64, len(m.gauges)),
		Histograms: make(map[string]HistogramSnapshot, len(m.histograms)),
		Timestamp:  time.Now(),
	}
	for name, v := range m.counters {
		snap.Counters[name] = atomic.LoadInt64(v)
	}
	for name, v := range m.gauges {
		snap.Gauges[name] = atomic.LoadInt64(v)
	}
	for name, h := range m.histograms {
		h.mu.Lock()
		hs := HistogramSnapshot{Count: h.count, Sum: h.sum, Min: h.min, Max: h.max}
		if h.count > 0 {
			hs.Avg = float64(h.sum) / float64(h.count)
		}
		h.mu.Unlock()
		snap.Histograms[name] = hs
	}
	return snap
}

// RecordAPIRequest records one HTTP request
func (m *MetricsCollector) RecordAPIRequest(method, route string, status int, duration time.Duration) {
	m.IncrementCounter("api_requests_total")
	m.IncrementCounter(fmt.Sprintf("api_requests_%s_%s", method, route))
	if status >= 400 {
		m.IncrementCounter("api_errors_total")
		m.IncrementCounter(fmt.Sprintf("api_errors_%d", status))
	}
	m.RecordHistogram("api_request_duration_ms", duration.Milliseconds())
}

// RecordGatewayCall records one model call made by the AI gateway
func (m *MetricsCollector) RecordGatewayCall(operation string, success bool, duration time.Duration) {
	m.IncrementCounter("gateway_calls_total")
	m.IncrementCounter("gateway_" + operation + "_total")
	if !success {
		m.IncrementCounter("gateway_errors_total")
		m.IncrementCounter("gateway_" + operation + "_errors")
	}
	m.RecordHistogram("gateway_"+operation+"_duration_ms", duration.Milliseconds())
}
