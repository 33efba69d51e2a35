package tape

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens_FallbackCounting(t *testing.T) {
	entries := []Entry{
		{ID: 1, Kind: KindMessage, Payload: map[string]any{"role": "user", "content": strings.Repeat("x", 40)}},
		{ID: 2, Kind: KindMessage, Payload: map[string]any{"role": "assistant", "content": "hi"}},
		{ID: 3, Kind: KindAnchor, Payload: map[string]any{"name": "handoff:x"}},
	}

	// 40/4 + floor of 1 for the short reply + flat 10 for the anchor.
	assert.Equal(t, 21, EstimateTokens(entries))
}

func TestEstimateTokens_PrefersUsageEvent(t *testing.T) {
	entries := []Entry{
		{ID: 1, Kind: KindMessage, Payload: map[string]any{"role": "user", "content": "hello"}},
		{
			ID:   2,
			Kind: KindEvent,
			Payload: map[string]any{
				"name": "run",
				"data": map[string]any{
					"status": "ok",
					"usage": map[string]any{
						"input_tokens":  123,
						"output_tokens": 45,
						"total_tokens":  168,
					},
				},
			},
		},
	}

	assert.Equal(t, 123, EstimateTokens(entries))
}

func TestEstimateTokens_NewestUsageWins(t *testing.T) {
	entries := []Entry{
		{ID: 1, Kind: KindEvent, Payload: map[string]any{
			"name": "run",
			"data": map[string]any{"usage": map[string]any{"input_tokens": float64(50)}},
		}},
		{ID: 2, Kind: KindEvent, Payload: map[string]any{
			"name": "run",
			"data": map[string]any{"usage": map[string]any{"input_tokens": float64(70)}},
		}},
	}

	assert.Equal(t, 70, EstimateTokens(entries))
}

func TestEstimateTokens_Empty(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(nil))
}
