package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Clish254/prediction-game/internal/domain"
)

// ArchiveImpl implements domain.Archiver by exporting settled rounds and
// their bets as JSONL to object storage.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here; that is a separate, explicit step to be executed
// after the archive has been verified.
type ArchiveImpl struct {
	writer domain.BlobWriter
	rounds domain.RoundStore
	bets   domain.BetStore
	audit  domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	rounds domain.RoundStore,
	bets domain.BetStore,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		rounds: rounds,
		bets:   bets,
		audit:  audit,
	}
}

// archivedRound is one JSONL record: a settled round together with every
// bet placed on it.
type archivedRound struct {
	Round domain.Round `json:"round"`
	Bets  []domain.Bet `json:"bets"`
}

// ArchiveRounds exports every closed round that opened strictly before the
// cutoff, each with its bets, to archive/rounds/YYYY-MM.jsonl. Rounds still
// in flight are skipped. The archival event is recorded in the audit log
// and the count of archived rounds is returned.
func (a *ArchiveImpl) ArchiveRounds(ctx context.Context, before time.Time) (int64, error) {
	rounds, err := a.rounds.List(ctx, domain.ListOpts{Until: &before})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive rounds query: %w", err)
	}

	var records []archivedRound
	for _, r := range rounds {
		if r.State != domain.RoundStateClosed {
			continue
		}
		bets, err := a.bets.ListByRound(ctx, r.Epoch, domain.ListOpts{})
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive bets of round %d: %w", r.Epoch, err)
		}
		records = append(records, archivedRound{Round: r, Bets: bets})
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive rounds marshal: %w", err)
	}

	path := archivePath("rounds", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive rounds upload: %w", err)
	}

	count := int64(len(records))

	if err := a.audit.Log(ctx, "archive.rounds", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive rounds audit log: %w", err)
	}

	return count, nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff time, e.g. archive/rounds/2025-01.jsonl.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
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

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
