package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics aggregates conversation turn counters per channel.
type Metrics struct {
	mu sync.Mutex

	turnTotal    atomic.Int64
	turnFailed   atomic.Int64
	escalations  atomic.Int64

	channelMetrics map[string]*ChannelMetrics
}

// ChannelMetrics represents counters for a single channel.
type ChannelMetrics struct {
	turnCount     atomic.Int64
	totalDuration atomic.Int64 // milliseconds
	errorCount    atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		channelMetrics: make(map[string]*ChannelMetrics),
	}
}

var globalMetrics = NewMetrics()

// GlobalMetrics returns the global metrics instance.
func GlobalMetrics() *Metrics {
	return globalMetrics
}

// RecordTurn records a processed turn.
func (m *Metrics) RecordTurn(channel string) {
	m.turnTotal.Add(1)
	m.getChannelMetrics(channel).turnCount.Add(1)
}

// RecordFailure records a failed turn.
func (m *Metrics) RecordFailure(channel string) {
	m.turnFailed.Add(1)
	m.getChannelMetrics(channel).errorCount.Add(1)
}

// RecordEscalation records an escalated turn.
func (m *Metrics) RecordEscalation() {
	m.escalations.Add(1)
}

// RecordDuration records a turn duration.
func (m *Metrics) RecordDuration(channel string, duration time.Duration) {
	m.getChannelMetrics(channel).totalDuration.Add(duration.Milliseconds())
}

func (m *Metrics) getChannelMetrics(channel string) *ChannelMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	cm, ok := m.channelMetrics[channel]
	if !ok {
		cm = &ChannelMetrics{}
		m.channelMetrics[channel] = cm
	}
	return cm
}

// Reset clears all counters. Used by tests.
func (m *Metrics) Reset() {
	m.turnTotal.Store(0)
	m.turnFailed.Store(0)
	m.escalations.Store(0)

	m.mu.Lock()
	m.channelMetrics = make(map[string]*ChannelMetrics)
	m.mu.Unlock()
}

// Snapshot returns a point-in-time view of the counters.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	channels := make(map[string]*ChannelMetricsSnapshot, len(m.channelMetrics))
	for channel, cm := range m.channelMetrics {
		count := cm.turnCount.Load()
		var avg int64
		if count > 0 {
			avg = cm.totalDuration.Load() / count
		}
		channels[channel] = &ChannelMetricsSnapshot{
			TurnCount:       count,
			TotalDuration:   cm.totalDuration.Load(),
			ErrorCount:      cm.errorCount.Load(),
			AverageDuration: avg,
		}
	}

	return &MetricsSnapshot{
		TurnTotal:   m.turnTotal.Load(),
		TurnFailed:  m.turnFailed.Load(),
		Escalations: m.escalations.Load(),
		Channels:    channels,
	}
}

// MetricsSnapshot is a point-in-time snapshot of the counters.
type MetricsSnapshot struct {
	TurnTotal   int64                              `json:"turn_total"`
	TurnFailed  int64                              `json:"turn_failed"`
	Escalations int64                              `json:"escalations"`
	Channels    map[string]*ChannelMetricsSnapshot `json:"channels"`
}

// ChannelMetricsSnapshot holds per-channel counters.
type ChannelMetricsSnapshot struct {
	TurnCount       int64 `json:"turn_count"`
	TotalDuration   int64 `json:"total_duration_ms"`
	ErrorCount      int64 `json:"error_count"`
	AverageDuration int64 `json:"average_duration_ms"`
}

// SuccessRate returns the success rate as a percentage (0-100).
func (s *MetricsSnapshot) SuccessRate() float64 {
	if s.TurnTotal == 0 {
		return 100.0
	}
	return float64(s.TurnTotal-s.TurnFailed) / float64(s.TurnTotal) * 100.0
}
