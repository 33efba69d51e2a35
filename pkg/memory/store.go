// Package memory provides a small in-memory store for facts the agent
// wants to keep across turns without replaying the whole tape. Matching is
// a naive substring scan, newest first, which is enough for recalling
// recent facts into a prompt. Deployments that outgrow it can swap in a
// vector store behind the same interface.
package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a single remembered fact.
type Memory struct {
	ID      string    `json:"id"`
	Content string    `json:"content"`
	Tags    []string  `json:"tags,omitempty"`
	Created time.Time `json:"created_at"`
}

// Store keeps memories in insertion order so searches can prefer the most
// recently remembered facts.
type Store struct {
	mu       sync.RWMutex
	memories []Memory
	byID     map[string]int
}

// New returns an empty Store instance.
func New() *Store {
	return &Store{
		byID: make(map[string]int),
	}
}

// Remember stores a fact and returns its generated ID.
func (s *Store) Remember(content string, tags ...string) string {
	mem := Memory{
		ID:      uuid.NewString(),
		Content: content,
		Tags:    tags,
		Created: time.Now().UTC(),
	}

	s.mu.Lock()
	s.byID[mem.ID] = len(s.memories)
	s.memories = append(s.memories, mem)
	s.mu.Unlock()

	return mem.ID
}

// Get returns the memory with the given ID if present.
func (s *Store) Get(id string) (Memory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byID[id]

	if !ok {
		return Memory{}, false
	}

	return s.memories[idx], true
}

// Search performs a case-insensitive substring search, newest first. It
// stops after limit hits when limit > 0. An empty query matches nothing.
func (s *Store) Search(query string, limit int) []Memory {
	q := strings.ToLower(strings.TrimSpace(query))

	if q == "" {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Memory

	for i := len(s.memories) - 1; i >= 0; i-- {
		mem := s.memories[i]

		if !matches(mem, q) {
			continue
		}

		out = append(out, mem)

		if limit > 0 && len(out) >= limit {
			break
		}
	}

	return out
}

// Len reports how many memories are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.memories)
}

func matches(mem Memory, q string) bool {
	if strings.Contains(strings.ToLower(mem.Content), q) {
		return true
	}

	for _, tag := range mem.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}

	return false
}
