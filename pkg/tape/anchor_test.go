package tape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAnchorName(t *testing.T) {
	name, err := NormalizeAnchorName("Implementation Details")
	assert.NoError(t, err)
	assert.Equal(t, "handoff:implementation-details", name)

	// Prefixed names pass through untouched.
	name, err = NormalizeAnchorName("handoff:Already There")
	assert.NoError(t, err)
	assert.Equal(t, "handoff:Already There", name)

	name, err = NormalizeAnchorName("phase:Two")
	assert.NoError(t, err)
	assert.Equal(t, "phase:Two", name)

	_, err = NormalizeAnchorName("   ")
	assert.Error(t, err)
}

func TestExtractAnchors(t *testing.T) {
	entries := []Entry{
		{ID: 1, Kind: KindMessage, Payload: map[string]any{"role": "user", "content": "a"}},
		{
			ID:   2,
			Kind: KindAnchor,
			Payload: map[string]any{
				"name": "handoff:first",
				"state": map[string]any{
					"phase":   "First Phase",
					"summary": "  got here  ",
					"facts":   []any{"one", "  ", 2},
				},
			},
			Meta: map[string]any{"created_at": "2025-01-02T03:04:05"},
		},
		// Anchors without a name are skipped.
		{ID: 3, Kind: KindAnchor, Payload: map[string]any{"name": "  "}},
		{ID: 4, Kind: KindAnchor, Payload: map[string]any{"name": "handoff:second"}},
	}

	anchors := ExtractAnchors(entries)
	assert.Len(t, anchors, 2)

	assert.Equal(t, int64(2), anchors[0].EntryID)
	assert.Equal(t, "handoff:first", anchors[0].Name)
	assert.Equal(t, "First Phase", anchors[0].Label)
	assert.Equal(t, "got here", anchors[0].Summary)
	assert.Equal(t, []string{"one", "2"}, anchors[0].Facts)
	assert.Equal(t, "2025-01-02T03:04:05", anchors[0].CreatedAt)

	// No phase: label falls back to the name segment after the colon.
	assert.Equal(t, "second", anchors[1].Label)
}

func TestExtractAnchorsStateNotAnObject(t *testing.T) {
	entries := []Entry{
		{ID: 1, Kind: KindAnchor, Payload: map[string]any{"name": "session/start", "state": "junk"}},
	}

	anchors := ExtractAnchors(entries)
	assert.Len(t, anchors, 1)
	assert.Equal(t, "session/start", anchors[0].Label)
	assert.Empty(t, anchors[0].Summary)
	assert.Empty(t, anchors[0].Facts)
}

func TestFindAnchorByName(t *testing.T) {
	anchors := []AnchorState{
		{EntryID: 1, Name: "handoff:dup"},
		{EntryID: 5, Name: "handoff:other"},
		{EntryID: 9, Name: "handoff:dup"},
	}

	found := FindAnchorByName(anchors, "handoff:dup")
	assert.NotNil(t, found)
	// Duplicates resolve to the newest occurrence.
	assert.Equal(t, int64(9), found.EntryID)

	assert.Nil(t, FindAnchorByName(anchors, "handoff:missing"))
}
