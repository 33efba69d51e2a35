package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/theapemachine/bub-go/pkg/tape"
)

func TestReplayMessagesPairsToolCallsWithResults(t *testing.T) {
	entries := []tape.Entry{
		entryOf(1, tape.KindMessage, map[string]any{"role": "user", "content": "find the answer"}),
		entryOf(2, tape.KindToolCall, map[string]any{
			"calls": []any{
				map[string]any{
					"id":   "call-1",
					"type": "function",
					"function": map[string]any{
						"name":      "search",
						"arguments": map[string]any{"q": "answer"},
					},
				},
				map[string]any{
					"id": "call-2",
					"function": map[string]any{
						"name":      "fetch",
						"arguments": `{"url":"x"}`,
					},
				},
			},
		}),
		entryOf(3, tape.KindToolResult, map[string]any{
			"results": []any{"42 results"},
		}),
		entryOf(4, tape.KindMessage, map[string]any{"role": "assistant", "content": "done"}),
	}

	messages := ReplayMessages(entries)
	assert.Len(t, messages, 5)

	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "find the answer", messages[0].Content)

	assert.Equal(t, "assistant", messages[1].Role)
	assert.Len(t, messages[1].ToolCalls, 2)
	assert.Equal(t, "call-1", messages[1].ToolCalls[0].ID)
	assert.Equal(t, "search", messages[1].ToolCalls[0].Name)
	assert.Equal(t, `{"q":"answer"}`, messages[1].ToolCalls[0].Arguments)
	assert.Equal(t, `{"url":"x"}`, messages[1].ToolCalls[1].Arguments)

	assert.Equal(t, "tool", messages[2].Role)
	assert.Equal(t, "42 results", messages[2].Content)
	assert.Equal(t, "call-1", messages[2].ToolCallID)
	assert.Equal(t, "search", messages[2].Name)

	// The second call had no recorded result.
	assert.Equal(t, "tool", messages[3].Role)
	assert.Empty(t, messages[3].Content)
	assert.Equal(t, "call-2", messages[3].ToolCallID)

	assert.Equal(t, "assistant", messages[4].Role)
	assert.Equal(t, "done", messages[4].Content)
}

func TestReplayMessagesFlushesDanglingCalls(t *testing.T) {
	entries := []tape.Entry{
		entryOf(1, tape.KindToolCall, map[string]any{
			"calls": []any{
				map[string]any{"id": "a", "function": map[string]any{"name": "ping"}},
			},
		}),
		entryOf(2, tape.KindMessage, map[string]any{"role": "user", "content": "hi"}),
		entryOf(3, tape.KindToolCall, map[string]any{
			"calls": []any{
				map[string]any{"id": "b", "function": map[string]any{"name": "pong"}},
			},
		}),
	}

	messages := ReplayMessages(entries)
	assert.Len(t, messages, 5)

	assert.Equal(t, "assistant", messages[0].Role)
	assert.Equal(t, "tool", messages[1].Role)
	assert.Empty(t, messages[1].Content)
	assert.Equal(t, "a", messages[1].ToolCallID)

	assert.Equal(t, "user", messages[2].Role)

	// A call at the end of the tape still gets its placeholder result.
	assert.Equal(t, "assistant", messages[3].Role)
	assert.Equal(t, "tool", messages[4].Role)
	assert.Equal(t, "b", messages[4].ToolCallID)
}

func TestReplayMessagesSkipsNonConversationEntries(t *testing.T) {
	entries := []tape.Entry{
		entryOf(1, tape.KindAnchor, map[string]any{"name": "session/start"}),
		entryOf(2, tape.KindEvent, map[string]any{"name": "run", "data": map[string]any{}}),
		entryOf(3, tape.KindToolCall, map[string]any{"calls": "junk"}),
		entryOf(4, tape.KindMessage, map[string]any{"role": "user", "content": "hello"}),
	}

	messages := ReplayMessages(entries)
	assert.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].Role)
}

func TestDecodeToolCalls(t *testing.T) {
	calls := decodeToolCalls([]any{
		map[string]any{
			"id":       "call-1",
			"function": map[string]any{"name": "search", "arguments": map[string]any{"q": "x"}},
		},
		map[string]any{"name": "flat", "arguments": map[string]any{"n": float64(1)}},
		map[string]any{"type": "function"},
		"junk",
	})

	assert.Len(t, calls, 2)
	assert.Equal(t, "call-1", calls[0].ID)
	assert.Equal(t, "search", calls[0].Name)
	assert.Equal(t, `{"q":"x"}`, calls[0].Arguments)
	assert.Equal(t, "flat", calls[1].Name)
	assert.Equal(t, `{"n":1}`, calls[1].Arguments)

	assert.Nil(t, decodeToolCalls("not a list"))
	assert.Nil(t, decodeToolCalls(nil))
}

func TestDumpToolResult(t *testing.T) {
	assert.Equal(t, "plain", dumpToolResult("plain"))
	assert.Equal(t, `{"ok":true}`, dumpToolResult(map[string]any{"ok": true}))
	assert.Equal(t, "3", dumpToolResult(3))

	// Unserializable values degrade to a typed wrapper.
	wrapped := dumpToolResult(make(chan int))
	assert.Contains(t, wrapped, "_type")
	assert.Contains(t, wrapped, "chan int")
}
