package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/theapemachine/bub-go/pkg/errors"
	"github.com/theapemachine/bub-go/pkg/tape"
)

const defaultBucket = "bub-archives"

/*
Store exports archived tapes to object storage so they survive database
resets and can be inspected offline.
*/
type Store struct {
	conn   *Conn
	bucket string
}

/*
NewStore creates an archive store on an established connection. The bucket
comes from BUB_ARCHIVE_BUCKET when set.
*/
func NewStore(conn *Conn) *Store {
	bucket := os.Getenv("BUB_ARCHIVE_BUCKET")
	if bucket == "" {
		bucket = defaultBucket
	}

	return &Store{conn: conn, bucket: bucket}
}

/*
Export writes a tape's entries as a JSON document into the archive bucket.
*/
func (store *Store) Export(
	ctx context.Context, tapeName string, entries []tape.Entry,
) *errors.RpcError {
	data, err := json.MarshalIndent(entries, "", "  ")

	if err != nil {
		log.Error("failed to marshal tape", "tape", tapeName, "error", err)
		return errors.ErrInternal.WithMessagef("failed to marshal tape: %v", err)
	}

	if err := store.conn.EnsureBucket(ctx, store.bucket); err != nil {
		log.Error("archive bucket unavailable", "bucket", store.bucket, "error", err)
		return errors.ErrStoreUnavailable.WithMessagef("archive bucket unavailable: %v", err)
	}

	key := objectKey(tapeName)

	if err := store.conn.Put(ctx, store.bucket, key, bytes.NewReader(data), int64(len(data))); err != nil {
		log.Error("failed to export tape", "tape", tapeName, "error", err)
		return errors.ErrInternal.WithMessagef("failed to export tape: %v", err)
	}

	return nil
}

/*
Fetch reads an exported tape back from the archive bucket.
*/
func (store *Store) Fetch(
	ctx context.Context, tapeName string,
) ([]tape.Entry, *errors.RpcError) {
	buf, err := store.conn.Get(ctx, store.bucket, objectKey(tapeName))

	if err != nil {
		log.Error("failed to fetch archived tape", "tape", tapeName, "error", err)
		return nil, errors.ErrTapeNotFound.WithMessagef(
			"archived tape %s not found: %v", tapeName, err,
		)
	}

	var entries []tape.Entry

	if err := json.Unmarshal(buf.Bytes(), &entries); err != nil {
		log.Error("failed to unmarshal archived tape", "tape", tapeName, "error", err)
		return nil, errors.ErrInternal.WithMessagef(
			"failed to unmarshal archived tape: %v", err,
		)
	}

	return entries, nil
}

/*
List returns the names of every exported tape in the archive bucket.
*/
func (store *Store) List(ctx context.Context) ([]string, *errors.RpcError) {
	keys, err := store.conn.List(ctx, store.bucket, "")

	if err != nil {
		log.Error("failed to list archives", "error", err)
		return nil, errors.ErrStoreUnavailable.WithMessagef(
			"failed to list archives: %v", err,
		)
	}

	names := make([]string, 0, len(keys))

	for _, key := range keys {
		names = append(names, strings.TrimSuffix(key, ".json"))
	}

	return names, nil
}

func objectKey(tapeName string) string {
	return tapeName + ".json"
}
