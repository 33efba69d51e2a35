package stores

// InMemoryTapeStore keeps tapes in a map, safe for concurrent use. It backs
// unit tests and DB-less smoke runs; production deployments use the seekdb
// implementation. Semantics mirror the SQL store: dense per-tape entry IDs,
// fork start tracking, archive-by-rename.

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/theapemachine/bub-go/pkg/tape"
)

type InMemoryTapeStore struct {
	mu           sync.RWMutex
	tapes        map[string][]tape.Entry
	forkStartIDs map[string]int64
}

func NewInMemoryTapeStore() *InMemoryTapeStore {
	return &InMemoryTapeStore{
		tapes:        make(map[string][]tape.Entry),
		forkStartIDs: make(map[string]int64),
	}
}

func (s *InMemoryTapeStore) Append(
	ctx context.Context, tapeName string, entry tape.Entry,
) (tape.Entry, error) {
	if err := tape.ValidatePayload(entry.Kind, entry.Payload); err != nil {
		return tape.Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.tapes[tapeName]

	var nextID int64 = 1
	if len(entries) > 0 {
		nextID = entries[len(entries)-1].ID + 1
	}

	stored := tape.Entry{
		ID:      nextID,
		Kind:    entry.Kind,
		Payload: copyMap(entry.Payload),
		Meta:    copyMap(entry.Meta),
	}

	if stored.Meta == nil {
		stored.Meta = map[string]any{}
	}
	if _, ok := stored.Meta["created_at"]; !ok {
		stored.Meta["created_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	}

	s.tapes[tapeName] = append(entries, stored)
	return stored, nil
}

func (s *InMemoryTapeStore) Read(ctx context.Context, tapeName string) ([]tape.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.tapes[tapeName]
	out := make([]tape.Entry, 0, len(entries))

	for _, entry := range entries {
		out = append(out, tape.Entry{
			ID:      entry.ID,
			Kind:    entry.Kind,
			Payload: copyMap(entry.Payload),
			Meta:    copyMap(entry.Meta),
		})
	}

	return out, nil
}

func (s *InMemoryTapeStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string

	for name, entries := range s.tapes {
		if len(entries) == 0 || !tape.IsLive(name) {
			continue
		}
		names = append(names, name)
	}

	sort.Strings(names)
	return names, nil
}

func (s *InMemoryTapeStore) Fork(ctx context.Context, source string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	forkName := tape.ForkName(source)
	entries := s.tapes[source]

	copied := make([]tape.Entry, 0, len(entries))
	for _, entry := range entries {
		copied = append(copied, tape.Entry{
			ID:      entry.ID,
			Kind:    entry.Kind,
			Payload: copyMap(entry.Payload),
			Meta:    copyMap(entry.Meta),
		})
	}

	s.tapes[forkName] = copied

	var startID int64 = 1
	if len(entries) > 0 {
		startID = entries[len(entries)-1].ID + 1
	}
	s.forkStartIDs[forkName] = startID

	return forkName, nil
}

func (s *InMemoryTapeStore) Merge(ctx context.Context, source, target string) error {
	if !tape.IsFork(source) {
		return fmt.Errorf("%s is not a fork", source)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	startID, ok := s.forkStartIDs[source]
	if !ok {
		startID = 1
	}

	var added []tape.Entry
	for _, entry := range s.tapes[source] {
		if entry.ID >= startID {
			added = append(added, entry)
		}
	}

	if len(added) > 0 {
		targetEntries := s.tapes[target]

		var nextID int64 = 1
		if len(targetEntries) > 0 {
			nextID = targetEntries[len(targetEntries)-1].ID + 1
		}

		for offset, entry := range added {
			targetEntries = append(targetEntries, tape.Entry{
				ID:      nextID + int64(offset),
				Kind:    entry.Kind,
				Payload: copyMap(entry.Payload),
				Meta:    copyMap(entry.Meta),
			})
		}

		s.tapes[target] = targetEntries
	}

	delete(s.tapes, source)
	delete(s.forkStartIDs, source)
	return nil
}

func (s *InMemoryTapeStore) Archive(ctx context.Context, tapeName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.tapes[tapeName]
	if len(entries) == 0 {
		return "", nil
	}

	archived := tape.ArchiveName(tapeName, time.Now())
	s.tapes[archived] = entries
	delete(s.tapes, tapeName)
	delete(s.forkStartIDs, tapeName)

	return archived, nil
}

func (s *InMemoryTapeStore) Reset(ctx context.Context, tapeName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tapes, tapeName)
	delete(s.forkStartIDs, tapeName)
	return nil
}

func copyMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}

	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
