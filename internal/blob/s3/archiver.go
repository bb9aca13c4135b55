package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

const (
	jsonlContentType = "application/x-ndjson"

	// DefaultBatchLimit caps how many journal rows one archive run exports.
	DefaultBatchLimit = 50000
)

// JournalArchiver exports journal rows older than a cutoff to object storage
// as JSONL and then removes them from the primary store. Rows are deleted
// only after the upload succeeds.
type JournalArchiver struct {
	writer  domain.BlobWriter
	reader  domain.BlobReader
	journal domain.JournalStore
	prefix  string
	limit   int
}

// NewJournalArchiver creates a JournalArchiver writing under prefix, e.g.
// "archive". A limit of zero selects DefaultBatchLimit.
func NewJournalArchiver(writer domain.BlobWriter, reader domain.BlobReader, journal domain.JournalStore, prefix string, limit int) *JournalArchiver {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	return &JournalArchiver{
		writer:  writer,
		reader:  reader,
		journal: journal,
		prefix:  prefix,
		limit:   limit,
	}
}

// ArchiveJournal uploads rows created before the cutoff and deletes them. When
// more rows than the batch limit are due, the cutoff is pulled back to the
// newest full timestamp in the batch; the next run picks up the rest. It
// returns the number of rows archived.
func (a *JournalArchiver) ArchiveJournal(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.journal.ListBefore(ctx, before, a.limit)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive journal query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	cutoff := before
	if len(entries) == a.limit {
		entries, cutoff = trimPartial(entries)
		if len(entries) == 0 {
			// Every row in the batch shares one timestamp.
			return 0, fmt.Errorf("s3blob: archive journal: %d rows at %s exceed batch limit", a.limit, cutoff.Format(time.RFC3339Nano))
		}
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive journal marshal: %w", err)
	}

	key := archivePath(a.prefix, entries[0], entries[len(entries)-1])
	exists, err := a.reader.Exists(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive journal check %s: %w", key, err)
	}
	if !exists {
		if err := a.upload(ctx, key, buf); err != nil {
			return 0, err
		}
	}

	if _, err := a.journal.DeleteBefore(ctx, cutoff); err != nil {
		return 0, fmt.Errorf("s3blob: archive journal delete: %w", err)
	}
	return int64(len(entries)), nil
}

func (a *JournalArchiver) upload(ctx context.Context, key string, buf []byte) error {
	var err error
	if int64(len(buf)) > minPartSize {
		err = a.writer.PutMultipart(ctx, key, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, key, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return fmt.Errorf("s3blob: archive journal upload %s: %w", key, err)
	}
	return nil
}

// trimPartial drops the trailing rows that share the newest timestamp, since
// rows at that instant may continue past the batch. It returns the kept rows
// and that timestamp as the new exclusive cutoff.
func trimPartial(entries []domain.JournalEntry) ([]domain.JournalEntry, time.Time) {
	last := entries[len(entries)-1].CreatedAt
	n := len(entries)
	for n > 0 && entries[n-1].CreatedAt.Equal(last) {
		n--
	}
	return entries[:n], last
}

// archivePath partitions archives by the month of the first row:
//
//	archive/journal/2026-10/1-5000.jsonl
func archivePath(prefix string, first, last domain.JournalEntry) string {
	return path.Join(prefix, "journal", first.CreatedAt.UTC().Format("2006-01"),
		fmt.Sprintf("%d-%d.jsonl", first.ID, last.ID))
}

func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*JournalArchiver)(nil)
