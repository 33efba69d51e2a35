package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestStreamingMetrics_RecordAndSnapshot checks the counters and the
// computed averages.
func TestStreamingMetrics_RecordAndSnapshot(t *testing.T) {
	metrics := NewStreamingMetrics()

	metrics.RecordConnection(true, 100*time.Millisecond)
	metrics.RecordConnection(false, 50*time.Millisecond)
	metrics.RecordReconnection()
	metrics.RecordEvent(false, 20*time.Millisecond)
	metrics.RecordEvent(true, 0)

	snapshot := metrics.Snapshot()

	assert.Equal(t, int64(2), snapshot["total_connections"])
	assert.Equal(t, int64(1), snapshot["failed_connections"])
	assert.Equal(t, int64(1), snapshot["reconnections"])
	assert.Equal(t, int64(2), snapshot["total_events"])
	assert.Equal(t, int64(1), snapshot["dropped_events"])
	assert.InDelta(t, 0.01, snapshot["avg_event_latency"], 0.001)
}

// TestStreamingMetrics_EmptySnapshot checks that averages stay zero
// before any events arrive.
func TestStreamingMetrics_EmptySnapshot(t *testing.T) {
	snapshot := NewStreamingMetrics().Snapshot()

	assert.Equal(t, int64(0), snapshot["total_events"])
	assert.Equal(t, 0.0, snapshot["avg_event_latency"])
}
