package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestStore_RememberAndGet checks round-tripping a fact by ID.
func TestStore_RememberAndGet(t *testing.T) {
	store := New()

	id := store.Remember("the database lives on port 2881", "infra")
	assert.NotEmpty(t, id)

	mem, ok := store.Get(id)
	assert.True(t, ok)
	assert.Equal(t, "the database lives on port 2881", mem.Content)
	assert.Equal(t, []string{"infra"}, mem.Tags)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

// TestStore_SearchNewestFirst checks ordering and the limit.
func TestStore_SearchNewestFirst(t *testing.T) {
	store := New()

	store.Remember("deploy checklist step one")
	store.Remember("deploy checklist step two")
	store.Remember("unrelated fact")
	store.Remember("deploy checklist step three")

	results := store.Search("deploy", 0)
	assert.Len(t, results, 3)
	assert.Equal(t, "deploy checklist step three", results[0].Content)
	assert.Equal(t, "deploy checklist step one", results[2].Content)

	limited := store.Search("deploy", 2)
	assert.Len(t, limited, 2)
	assert.Equal(t, "deploy checklist step three", limited[0].Content)
}

// TestStore_SearchByTag checks that tags participate in matching.
func TestStore_SearchByTag(t *testing.T) {
	store := New()

	store.Remember("qwen-max is the default model", "provider")

	results := store.Search("provider", 0)
	assert.Len(t, results, 1)

	assert.Empty(t, store.Search("", 0))
	assert.Empty(t, store.Search("nothing matches this", 0))
}

func TestStore_Len(t *testing.T) {
	store := New()
	assert.Equal(t, 0, store.Len())

	store.Remember("one")
	store.Remember("two")
	assert.Equal(t, 2, store.Len())
}
