package tape

import "context"

/*
Store is the persistence contract for tapes. Implementations must assign
entry IDs as MAX(entry_id)+1 per tape so IDs stay dense and ordered, and
must treat tape names as data, never as SQL identifiers.
*/
type Store interface {
	// Append persists the entry on the named tape and returns it with its
	// assigned ID and created_at meta.
	Append(ctx context.Context, tape string, entry Entry) (Entry, error)

	// Read returns every entry on the tape in ID order. A missing tape
	// returns an empty slice, not an error.
	Read(ctx context.Context, tape string) ([]Entry, error)

	// List names the live tapes, excluding forks and archived ones.
	List(ctx context.Context) ([]string, error)

	// Fork copies the tape under a derived name and returns that name.
	Fork(ctx context.Context, source string) (string, error)

	// Merge renumbers the entries a fork added onto the target tape and
	// deletes the fork. Merging a tape that is not a fork is an error.
	Merge(ctx context.Context, source, target string) error

	// Archive renames the tape out of the live namespace and returns the
	// archived name, or "" when the tape was empty.
	Archive(ctx context.Context, tape string) (string, error)

	// Reset deletes the tape's entries.
	Reset(ctx context.Context, tape string) error
}
