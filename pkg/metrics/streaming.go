package metrics

import (
	"sync"
	"time"
)

/*
StreamingMetrics counts what happens on an event stream: connection
attempts, reconnections, and events delivered or dropped. The broker
records the sending side, the events client records the receiving side.
*/
type StreamingMetrics struct {
	mu sync.RWMutex

	TotalConnections  int64
	FailedConnections int64
	Reconnections     int64
	ConnectTime       time.Duration

	TotalEvents   int64
	DroppedEvents int64
	EventLatency  time.Duration
}

func NewStreamingMetrics() *StreamingMetrics {
	return &StreamingMetrics{}
}

// RecordConnection tallies one connection attempt and how long it took.
func (metrics *StreamingMetrics) RecordConnection(success bool, took time.Duration) {
	metrics.mu.Lock()
	defer metrics.mu.Unlock()

	metrics.TotalConnections++

	if !success {
		metrics.FailedConnections++
	}

	metrics.ConnectTime += took
}

func (metrics *StreamingMetrics) RecordReconnection() {
	metrics.mu.Lock()
	defer metrics.mu.Unlock()

	metrics.Reconnections++
}

// RecordEvent tallies one event. Dropped events still count toward the
// total so drop rates can be computed from the snapshot.
func (metrics *StreamingMetrics) RecordEvent(dropped bool, latency time.Duration) {
	metrics.mu.Lock()
	defer metrics.mu.Unlock()

	metrics.TotalEvents++

	if dropped {
		metrics.DroppedEvents++
	}

	metrics.EventLatency += latency
}

/*
Snapshot returns the current counters as a flat map, with averages
already computed.
*/
func (metrics *StreamingMetrics) Snapshot() map[string]any {
	metrics.mu.RLock()
	defer metrics.mu.RUnlock()

	avgLatency := 0.0

	if metrics.TotalEvents > 0 {
		avgLatency = metrics.EventLatency.Seconds() / float64(metrics.TotalEvents)
	}

	return map[string]any{
		"total_connections":  metrics.TotalConnections,
		"failed_connections": metrics.FailedConnections,
		"reconnections":      metrics.Reconnections,
		"connect_seconds":    metrics.ConnectTime.Seconds(),
		"total_events":       metrics.TotalEvents,
		"dropped_events":     metrics.DroppedEvents,
		"avg_event_latency":  avgLatency,
	}
}
