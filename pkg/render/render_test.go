package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/theapemachine/bub-go/pkg/tape"
)

func entryOf(id int64, kind string, payload map[string]any) tape.Entry {
	return tape.Entry{ID: id, Kind: kind, Payload: payload, Meta: map[string]any{}}
}

func TestKindLabel(t *testing.T) {
	assert.Equal(t, "MESSAGE", KindLabel("message"))
	assert.Equal(t, "TOOL_RESUL", KindLabel("tool_result"))
}

func TestHumanTextMessage(t *testing.T) {
	entry := entryOf(1, tape.KindMessage, map[string]any{
		"role":    "user",
		"content": "first line\nsecond line",
	})

	assert.Equal(t, "user: first line second line", HumanText(entry))
}

func TestHumanTextContentWithoutRole(t *testing.T) {
	entry := entryOf(1, tape.KindSystem, map[string]any{"content": "booted"})
	assert.Equal(t, "booted", HumanText(entry))
}

func TestHumanTextToolCalls(t *testing.T) {
	entry := entryOf(1, tape.KindToolCall, map[string]any{
		"calls": []any{
			map[string]any{
				"id": "call-1",
				"function": map[string]any{
					"name":      "search",
					"arguments": map[string]any{"q": "where is the data"},
				},
			},
			map[string]any{
				"function": map[string]any{"name": "fetch"},
			},
		},
	})

	assert.Equal(t, "search(where is the data), fetch()", HumanText(entry))
}

func TestHumanTextToolCallsOverflow(t *testing.T) {
	call := map[string]any{"function": map[string]any{"name": "ping"}}
	entry := entryOf(1, tape.KindToolCall, map[string]any{
		"calls": []any{call, call, call, call},
	})

	assert.Equal(t, "ping(), ping(), ping(), ...", HumanText(entry))
}

func TestHumanTextToolResults(t *testing.T) {
	entry := entryOf(1, tape.KindToolResult, map[string]any{
		"results": []any{map[string]any{"message": "  found 3 rows  "}},
	})
	assert.Equal(t, "found 3 rows", HumanText(entry))

	empty := entryOf(2, tape.KindToolResult, map[string]any{"results": []any{}})
	assert.Equal(t, "tool_result (0 results)", HumanText(empty))

	opaque := entryOf(3, tape.KindToolResult, map[string]any{
		"results": []any{map[string]any{"rows": float64(3)}, "extra"},
	})
	assert.Equal(t, "results: 2 item(s)", HumanText(opaque))
}

func TestHumanTextEventNameCarriesDataKeys(t *testing.T) {
	entry := entryOf(1, tape.KindEvent, map[string]any{
		"name": "run",
		"data": map[string]any{"status": "ok", "usage": map[string]any{}},
	})

	assert.Equal(t, "event: run (status, usage)", HumanText(entry))
}

func TestHumanTextAnchorNameCarriesPhase(t *testing.T) {
	entry := entryOf(1, tape.KindAnchor, map[string]any{
		"name":  "handoff:impl",
		"state": map[string]any{"phase": "Implementation"},
	})

	assert.Equal(t, "handoff:impl (Implementation)", HumanText(entry))
}

func TestHumanTextFallsBackToDataFields(t *testing.T) {
	entry := entryOf(1, tape.KindEvent, map[string]any{
		"data": map[string]any{"status": "degraded"},
	})

	assert.Equal(t, "degraded", HumanText(entry))
}

func TestHumanTextCompactJSONFallback(t *testing.T) {
	entry := entryOf(1, "custom", map[string]any{"weight": float64(12)})
	assert.Equal(t, `{"weight":12}`, HumanText(entry))
}

func TestArgsSummaryTruncatesLongValues(t *testing.T) {
	long := strings.Repeat("x", 40)
	entry := entryOf(1, tape.KindToolCall, map[string]any{
		"calls": []any{
			map[string]any{
				"function": map[string]any{
					"name":      "write",
					"arguments": map[string]any{"body": long},
				},
			},
		},
	})

	human := HumanText(entry)
	assert.Contains(t, human, "write(")
	assert.Contains(t, human, "...")
	assert.Less(t, len(human), len(long)+10)
}

func TestArgsSummaryParsesJSONString(t *testing.T) {
	entry := entryOf(1, tape.KindToolCall, map[string]any{
		"calls": []any{
			map[string]any{
				"function": map[string]any{
					"name":      "get",
					"arguments": `{"url":"http://x"}`,
				},
			},
		},
	})

	assert.Equal(t, "get(http://x)", HumanText(entry))
}

func TestStructuredLinesOrdersKnownKinds(t *testing.T) {
	entry := entryOf(1, tape.KindMessage, map[string]any{
		"content": "hi",
		"role":    "user",
		"extra":   "tail",
	})

	lines := StructuredLines(entry)
	assert.Equal(t, []string{"role: user", "content: hi", "extra: tail"}, lines)
}

func TestStructuredLinesEmptyPayload(t *testing.T) {
	entry := entryOf(1, "custom", map[string]any{})
	assert.Equal(t, []string{"payload: (empty)"}, StructuredLines(entry))
}

func TestStructuredLinesCallsBlocks(t *testing.T) {
	entry := entryOf(1, tape.KindToolCall, map[string]any{
		"calls": []any{
			map[string]any{
				"id": "call-1",
				"function": map[string]any{
					"name":      "search",
					"arguments": `{"q":"x"}`,
				},
			},
		},
	})

	lines := StructuredLines(entry)
	assert.Equal(t, "calls 1:", lines[0])
	assert.Contains(t, lines, "  id: call-1")
	assert.Contains(t, lines, "  name: search")

	// String arguments decode for display.
	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, `"q": "x"`)
}

func TestStructuredLinesResultBlocks(t *testing.T) {
	entry := entryOf(1, tape.KindToolResult, map[string]any{
		"results": []any{
			map[string]any{"message": "done"},
			"plain",
		},
	})

	lines := StructuredLines(entry)
	assert.Equal(t, "results 1:", lines[0])
	assert.Equal(t, "  message: done", lines[1])
	assert.Equal(t, "results 2:", lines[2])
	assert.Equal(t, "  value: plain", lines[3])
}
