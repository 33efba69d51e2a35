package seekdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"

	"github.com/theapemachine/bub-go/pkg/tape"
)

/*
Store persists tapes in the SeekDB tape table. Entry IDs are assigned as
MAX(entry_id)+1 per tape inside a transaction, serialized by a process-wide
mutex so concurrent appends never race on the same ID.
*/
type Store struct {
	conn *Conn

	mu sync.Mutex
	// forkStartIDs remembers where each fork began so Merge only carries
	// over what the fork added.
	forkStartIDs map[string]int64
}

/*
NewStore creates a tape store on an established connection.
*/
func NewStore(conn *Conn) *Store {
	return &Store{
		conn:         conn,
		forkStartIDs: make(map[string]int64),
	}
}

type entryRow struct {
	EntryID     int64     `gorm:"column:entry_id"`
	Kind        string    `gorm:"column:kind"`
	PayloadJSON string    `gorm:"column:payload_json"`
	MetaJSON    string    `gorm:"column:meta_json"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (store *Store) table() string {
	return store.conn.cfg.Table
}

func (store *Store) Append(
	ctx context.Context, tapeName string, entry tape.Entry,
) (tape.Entry, error) {
	if err := tape.ValidatePayload(entry.Kind, entry.Payload); err != nil {
		return tape.Entry{}, err
	}

	payloadJSON := encodeJSON(entry.Payload)
	metaJSON := encodeJSON(entry.Meta)

	store.mu.Lock()
	defer store.mu.Unlock()

	var stored tape.Entry

	err := store.conn.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var nextID int64

		query := fmt.Sprintf(
			"SELECT COALESCE(MAX(entry_id), 0) + 1 FROM `%s` WHERE tape_name = ?",
			store.table(),
		)

		if err := tx.Raw(query, tapeName).Scan(&nextID).Error; err != nil {
			return err
		}

		insert := fmt.Sprintf(
			"INSERT INTO `%s` (tape_name, entry_id, kind, payload_json, meta_json) VALUES (?, ?, ?, ?, ?)",
			store.table(),
		)

		if err := tx.Exec(insert, tapeName, nextID, entry.Kind, payloadJSON, metaJSON).Error; err != nil {
			return err
		}

		stored = tape.Entry{
			ID:      nextID,
			Kind:    entry.Kind,
			Payload: entry.Payload,
			Meta:    withCreatedAt(entry.Meta, time.Now()),
		}

		return nil
	})

	if err != nil {
		log.Error("failed to append entry", "tape", tapeName, "kind", entry.Kind, "error", err)
		return tape.Entry{}, err
	}

	return stored, nil
}

func (store *Store) Read(ctx context.Context, tapeName string) ([]tape.Entry, error) {
	query := fmt.Sprintf(
		"SELECT entry_id, kind, payload_json, meta_json, created_at FROM `%s` WHERE tape_name = ? ORDER BY entry_id ASC",
		store.table(),
	)

	var rows []entryRow

	if err := store.conn.db.WithContext(ctx).Raw(query, tapeName).Scan(&rows).Error; err != nil {
		log.Error("failed to read tape", "tape", tapeName, "error", err)
		return nil, err
	}

	entries := make([]tape.Entry, 0, len(rows))

	for _, row := range rows {
		meta := safeLoadJSON(row.MetaJSON)

		if _, ok := meta["created_at"]; !ok && !row.CreatedAt.IsZero() {
			meta["created_at"] = row.CreatedAt.UTC().Format(time.RFC3339Nano)
		}

		entries = append(entries, tape.Entry{
			ID:      row.EntryID,
			Kind:    row.Kind,
			Payload: safeLoadJSON(row.PayloadJSON),
			Meta:    meta,
		})
	}

	return entries, nil
}

func (store *Store) List(ctx context.Context) ([]string, error) {
	// INSTR rather than LIKE: the underscores in the fork delimiter would
	// act as single-character wildcards in a LIKE pattern.
	query := fmt.Sprintf(
		"SELECT DISTINCT tape_name FROM `%s` WHERE INSTR(tape_name, ?) = 0 AND INSTR(tape_name, ?) = 0 ORDER BY tape_name ASC",
		store.table(),
	)

	var names []string

	err := store.conn.db.WithContext(ctx).Raw(
		query,
		tape.ForkDelimiter,
		tape.ArchiveMarker,
	).Scan(&names).Error

	if err != nil {
		log.Error("failed to list tapes", "error", err)
		return nil, err
	}

	return names, nil
}

func (store *Store) Fork(ctx context.Context, source string) (string, error) {
	forkName := tape.ForkName(source)

	store.mu.Lock()
	defer store.mu.Unlock()

	err := store.conn.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		copyRows := fmt.Sprintf(
			"INSERT INTO `%s` (tape_name, entry_id, kind, payload_json, meta_json) "+
				"SELECT ?, entry_id, kind, payload_json, meta_json FROM `%s` WHERE tape_name = ? ORDER BY entry_id ASC",
			store.table(), store.table(),
		)

		if err := tx.Exec(copyRows, forkName, source).Error; err != nil {
			return err
		}

		var startID int64

		maxQuery := fmt.Sprintf(
			"SELECT COALESCE(MAX(entry_id), 0) + 1 FROM `%s` WHERE tape_name = ?",
			store.table(),
		)

		if err := tx.Raw(maxQuery, source).Scan(&startID).Error; err != nil {
			return err
		}

		store.forkStartIDs[forkName] = startID
		return nil
	})

	if err != nil {
		log.Error("failed to fork tape", "source", source, "error", err)
		return "", err
	}

	return forkName, nil
}

func (store *Store) Merge(ctx context.Context, source, target string) error {
	if !tape.IsFork(source) {
		return fmt.Errorf("%s is not a fork", source)
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	startID, ok := store.forkStartIDs[source]
	if !ok {
		startID = 1
	}

	err := store.conn.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		selectAdded := fmt.Sprintf(
			"SELECT entry_id, kind, payload_json, meta_json, created_at FROM `%s` "+
				"WHERE tape_name = ? AND entry_id >= ? ORDER BY entry_id ASC",
			store.table(),
		)

		var added []entryRow

		if err := tx.Raw(selectAdded, source, startID).Scan(&added).Error; err != nil {
			return err
		}

		if len(added) > 0 {
			var nextID int64

			maxQuery := fmt.Sprintf(
				"SELECT COALESCE(MAX(entry_id), 0) + 1 FROM `%s` WHERE tape_name = ?",
				store.table(),
			)

			if err := tx.Raw(maxQuery, target).Scan(&nextID).Error; err != nil {
				return err
			}

			insert := fmt.Sprintf(
				"INSERT INTO `%s` (tape_name, entry_id, kind, payload_json, meta_json) VALUES (?, ?, ?, ?, ?)",
				store.table(),
			)

			for offset, row := range added {
				err := tx.Exec(
					insert,
					target, nextID+int64(offset), row.Kind, row.PayloadJSON, row.MetaJSON,
				).Error

				if err != nil {
					return err
				}
			}
		}

		deleteFork := fmt.Sprintf("DELETE FROM `%s` WHERE tape_name = ?", store.table())
		return tx.Exec(deleteFork, source).Error
	})

	if err != nil {
		log.Error("failed to merge tape", "source", source, "target", target, "error", err)
		return err
	}

	delete(store.forkStartIDs, source)
	return nil
}

func (store *Store) Archive(ctx context.Context, tapeName string) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var archived string

	err := store.conn.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64

		countQuery := fmt.Sprintf(
			"SELECT COUNT(*) FROM `%s` WHERE tape_name = ?",
			store.table(),
		)

		if err := tx.Raw(countQuery, tapeName).Scan(&count).Error; err != nil {
			return err
		}

		if count == 0 {
			return nil
		}

		archived = tape.ArchiveName(tapeName, time.Now())

		rename := fmt.Sprintf(
			"UPDATE `%s` SET tape_name = ? WHERE tape_name = ?",
			store.table(),
		)

		return tx.Exec(rename, archived, tapeName).Error
	})

	if err != nil {
		log.Error("failed to archive tape", "tape", tapeName, "error", err)
		return "", err
	}

	delete(store.forkStartIDs, tapeName)
	return archived, nil
}

func (store *Store) Reset(ctx context.Context, tapeName string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	query := fmt.Sprintf("DELETE FROM `%s` WHERE tape_name = ?", store.table())

	if err := store.conn.db.WithContext(ctx).Exec(query, tapeName).Error; err != nil {
		log.Error("failed to reset tape", "tape", tapeName, "error", err)
		return err
	}

	delete(store.forkStartIDs, tapeName)
	return nil
}

// safeLoadJSON decodes a stored JSON document, collapsing anything that is
// not an object to an empty map so a corrupt row never poisons a read.
func safeLoadJSON(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}

	var value map[string]any

	if err := json.Unmarshal([]byte(raw), &value); err != nil || value == nil {
		return map[string]any{}
	}

	return value
}

// encodeJSON marshals a payload for storage. Values the encoder cannot
// handle are stringified rather than failing the append.
func encodeJSON(value map[string]any) string {
	data, err := json.Marshal(toJSONSafe(value))
	if err != nil {
		return "{}"
	}
	return string(data)
}

func toJSONSafe(value any) any {
	switch v := value.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return v
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = toJSONSafe(item)
		}
		return out
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, toJSONSafe(item))
		}
		return out
	case []string:
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, item)
		}
		return out
	default:
		return fmt.Sprintf("%v", v)
	}
}

func withCreatedAt(meta map[string]any, at time.Time) map[string]any {
	out := make(map[string]any, len(meta)+1)

	for key, value := range meta {
		out[key] = value
	}

	if _, ok := out["created_at"]; !ok {
		out["created_at"] = at.UTC().Format(time.RFC3339Nano)
	}

	return out
}
