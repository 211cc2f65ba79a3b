package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fernandocchaves/tabtalk/internal/audio"
)

// Put inserts or replaces a record. Payload-bearing rows (chunks, uploads)
// are validated against their format tag before anything is written.
func (s *Store) Put(ctx context.Context, r *Record) error {
	if r.Source == SourceChunk || r.Source == SourceUpload {
		if !r.Payload.Valid() {
			return fmt.Errorf("store: %s %q has invalid %q payload", r.Source, r.ID, r.Payload.Format)
		}
	}

	var variants any
	if len(r.Variants) > 0 {
		b, err := json.Marshal(r.Variants)
		if err != nil {
			return fmt.Errorf("store: marshal variants: %w", err)
		}
		variants = string(b)
	}

	var chunkNumber any
	if r.Source == SourceChunk {
		chunkNumber = r.ChunkNumber
	}

	var payload any
	if len(r.Payload.Data) > 0 {
		payload = r.Payload.Data
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO records
		(id, source, created_at, parent_id, chunk_number, sample_count, sample_rate,
		 channels, size_bytes, duration_secs, chunk_count, recovered, transcript, variants, hash, format, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Source), r.CreatedAt.UnixMilli(), nullString(r.ParentID), chunkNumber,
		r.SampleCount, r.SampleRate, r.Channels, r.SizeBytes, r.Duration, r.ChunkCount,
		boolToInt(r.Recovered), nullString(r.Transcript), variants, nullString(r.Hash),
		nullString(string(r.Payload.Format)), payload)
	if err != nil {
		return fmt.Errorf("store: put %q: %w", r.ID, err)
	}
	return nil
}

// Get returns one record including its payload.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, created_at, parent_id, chunk_number, sample_count, sample_rate,
		       channels, size_bytes, duration_secs, chunk_count, recovered, transcript, variants, hash, format, payload
		FROM records WHERE id = ?`, id)

	r, payload, format, err := scanRecord(row)
	if err != nil {
		return nil, err
	}
	if format != "" {
		r.Payload = audio.Payload{Format: audio.Format(format), Data: payload}
	}
	return r, nil
}

// ListBySource returns metadata-only records of one source tag, newest
// first. Payloads are never loaded here.
func (s *Store) ListBySource(ctx context.Context, src Source) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, created_at, parent_id, chunk_number, sample_count, sample_rate,
		       channels, size_bytes, duration_secs, chunk_count, recovered, transcript, variants, hash, format, NULL
		FROM records WHERE source = ? ORDER BY created_at DESC`, string(src))
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", src, err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ChunksByParent returns metadata-only chunk records for a recording,
// ordered by chunk number.
func (s *Store) ChunksByParent(ctx context.Context, parentID string) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, created_at, parent_id, chunk_number, sample_count, sample_rate,
		       channels, size_bytes, duration_secs, chunk_count, recovered, transcript, variants, hash, format, NULL
		FROM records WHERE source = ? AND parent_id = ? ORDER BY chunk_number ASC`,
		string(SourceChunk), parentID)
	if err != nil {
		return nil, fmt.Errorf("store: chunks of %q: %w", parentID, err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// Delete removes a record and, for recordings, all of its chunks and any
// transcription state, in one transaction.
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE parent_id = ?`, id); err != nil {
		return fmt.Errorf("store: delete chunks of %q: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transcription_states WHERE recording_id = ?`, id); err != nil {
		return fmt.Errorf("store: delete state of %q: %w", id, err)
	}
	return tx.Commit()
}

// SetTranscript attaches the final transcript to a record.
func (s *Store) SetTranscript(ctx context.Context, id, text string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE records SET transcript = ? WHERE id = ?`, text, id)
	if err != nil {
		return fmt.Errorf("store: set transcript on %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetVariant stores one post-processed transcript variant under its prompt
// name.
func (s *Store) SetVariant(ctx context.Context, id, name, text string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin variant update: %w", err)
	}
	defer tx.Rollback()

	var raw sql.NullString
	if err := tx.QueryRowContext(ctx, `SELECT variants FROM records WHERE id = ?`, id).Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("store: read variants of %q: %w", id, err)
	}

	variants := map[string]string{}
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &variants); err != nil {
			return fmt.Errorf("store: decode variants of %q: %w", id, err)
		}
	}
	variants[name] = text

	b, err := json.Marshal(variants)
	if err != nil {
		return fmt.Errorf("store: marshal variants: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE records SET variants = ? WHERE id = ?`, string(b), id); err != nil {
		return fmt.Errorf("store: write variants of %q: %w", id, err)
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, []byte, string, error) {
	var (
		r          Record
		src        string
		createdAt  int64
		parentID   sql.NullString
		chunkNum   sql.NullInt64
		recovered  int
		transcript sql.NullString
		variants   sql.NullString
		hash       sql.NullString
		format     sql.NullString
		payload    []byte
	)
	err := row.Scan(&r.ID, &src, &createdAt, &parentID, &chunkNum, &r.SampleCount, &r.SampleRate,
		&r.Channels, &r.SizeBytes, &r.Duration, &r.ChunkCount, &recovered, &transcript, &variants, &hash, &format, &payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, "", ErrNotFound
		}
		return nil, nil, "", fmt.Errorf("store: scan record: %w", err)
	}

	r.Source = Source(src)
	r.CreatedAt = time.UnixMilli(createdAt)
	r.ParentID = parentID.String
	r.ChunkNumber = int(chunkNum.Int64)
	r.Recovered = recovered != 0
	r.Transcript = transcript.String
	r.Hash = hash.String
	if variants.Valid && variants.String != "" {
		if err := json.Unmarshal([]byte(variants.String), &r.Variants); err != nil {
			return nil, nil, "", fmt.Errorf("store: decode variants of %q: %w", r.ID, err)
		}
	}
	return &r, payload, format.String, nil
}

func collectRecords(rows *sql.Rows) ([]*Record, error) {
	var out []*Record
	for rows.Next() {
		r, _, _, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
