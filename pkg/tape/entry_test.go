package tape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEntry(t *testing.T) {
	entry, err := NewEntry("message", map[string]any{"role": "user", "content": "hi"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, "message", entry.Kind)
	assert.NotNil(t, entry.Meta)
	assert.Zero(t, entry.ID)
}

func TestNewEntry_Validation(t *testing.T) {
	_, err := NewEntry("", map[string]any{}, nil)
	assert.Error(t, err)

	_, err = NewEntry("message", nil, nil)
	assert.Error(t, err)

	_, err = NewEntry("message", map[string]any{"role": "", "content": "hi"}, nil)
	assert.Error(t, err)

	_, err = NewEntry("message", map[string]any{"role": "user", "content": ""}, nil)
	assert.Error(t, err)

	_, err = NewEntry("anchor", map[string]any{"name": "  "}, nil)
	assert.Error(t, err)

	// Non-message, non-anchor kinds only need an object payload.
	_, err = NewEntry("event", map[string]any{}, nil)
	assert.NoError(t, err)
}

func TestSnapshotMessages(t *testing.T) {
	snapshot := BuildSnapshot("demo", []Entry{
		{ID: 1, Kind: KindMessage, Payload: map[string]any{"role": "user", "content": "q"}},
		{ID: 2, Kind: KindEvent, Payload: map[string]any{"name": "run"}},
		{ID: 3, Kind: KindMessage, Payload: map[string]any{"role": "system", "content": "hidden"}},
		{ID: 4, Kind: KindMessage, Payload: map[string]any{"role": "assistant", "content": "a"}},
	}, ViewFull, "")

	messages := snapshot.Messages()
	assert.Len(t, messages, 2)
	assert.Equal(t, ChatMessage{Role: "user", Content: "q"}, messages[0])
	assert.Equal(t, ChatMessage{Role: "assistant", Content: "a"}, messages[1])
}

func TestBuildSnapshot(t *testing.T) {
	snapshot := BuildSnapshot("demo", tapeFixture(), ViewLatest, "")

	assert.Equal(t, "demo", snapshot.TapeName)
	assert.Equal(t, ViewLatest, snapshot.ViewMode)
	assert.Equal(t, "handoff:second", snapshot.AnchorName)
	assert.Equal(t, 5, snapshot.TotalEntries())
	assert.Equal(t, 1, snapshot.ContextEntryCount())
	assert.NotNil(t, snapshot.ActiveAnchor)
	assert.NotZero(t, snapshot.EstimatedTokens)
}
