package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/horaja/arbitrage-engine/internal/domain"
)

// CycleArchiveStore provides read access to cycle events for archival
// purposes, following the Interface Segregation Principle: the archiver
// only requires the one query method it actually calls, not the full
// domain.CycleStore interface.
type CycleArchiveStore interface {
	// ListBefore returns all cycle events detected strictly before the given
	// cutoff time.
	ListBefore(ctx context.Context, before time.Time) ([]domain.CycleEvent, error)
}

// ArchiveImpl implements domain.Archiver by querying the cycle store for old
// records, serializing them to JSONL, and uploading the result to S3.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here -- that is a separate, explicit step to be executed
// after the archive has been verified.
type ArchiveImpl struct {
	writer domain.BlobWriter
	cycles CycleArchiveStore
	audit  domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, cycles CycleArchiveStore, audit domain.AuditStore) *ArchiveImpl {
	return &ArchiveImpl{writer: writer, cycles: cycles, audit: audit}
}

// ArchiveCycleEvents queries all cycle events before the cutoff, serializes
// them to JSONL, and uploads the file to S3 at
// archive/cycle_events/YYYY-MM.jsonl. The archival event is recorded in the
// audit log and the count of archived records is returned.
func (a *ArchiveImpl) ArchiveCycleEvents(ctx context.Context, before time.Time) (int64, error) {
	events, err := a.cycles.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive cycle events query: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(events)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive cycle events marshal: %w", err)
	}

	path := archivePath("cycle_events", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive cycle events upload: %w", err)
	}

	count := int64(len(events))

	if err := a.audit.Log(ctx, "archive.cycle_events", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive cycle events audit log: %w", err)
	}

	return count, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/cycle_events/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
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
