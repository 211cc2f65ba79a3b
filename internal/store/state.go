package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SaveState inserts or replaces the transcription checkpoint for a
// recording.
func (s *Store) SaveState(ctx context.Context, st *TranscriptionState) error {
	segments, err := json.Marshal(st.Segments)
	if err != nil {
		return fmt.Errorf("store: marshal segments: %w", err)
	}

	var failed any
	if st.FailedSegment >= 0 {
		failed = st.FailedSegment
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO transcription_states
		(recording_id, last_completed, segments, last_error, failed_segment, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.RecordingID, st.LastCompleted, string(segments), nullString(st.LastError), failed,
		st.StartedAt.UnixMilli(), st.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("store: save state for %q: %w", st.RecordingID, err)
	}
	return nil
}

// GetState loads the transcription checkpoint for a recording, or
// ErrNotFound when none exists.
func (s *Store) GetState(ctx context.Context, recordingID string) (*TranscriptionState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT recording_id, last_completed, segments, last_error, failed_segment, started_at, updated_at
		FROM transcription_states WHERE recording_id = ?`, recordingID)

	var (
		st        TranscriptionState
		segments  string
		lastErr   sql.NullString
		failed    sql.NullInt64
		startedAt int64
		updatedAt int64
	)
	err := row.Scan(&st.RecordingID, &st.LastCompleted, &segments, &lastErr, &failed, &startedAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan state for %q: %w", recordingID, err)
	}

	if err := json.Unmarshal([]byte(segments), &st.Segments); err != nil {
		return nil, fmt.Errorf("store: decode segments for %q: %w", recordingID, err)
	}
	st.LastError = lastErr.String
	st.FailedSegment = -1
	if failed.Valid {
		st.FailedSegment = int(failed.Int64)
	}
	st.StartedAt = time.UnixMilli(startedAt)
	st.UpdatedAt = time.UnixMilli(updatedAt)
	return &st, nil
}

// HasState reports whether a transcription checkpoint exists for the
// recording.
func (s *Store) HasState(ctx context.Context, recordingID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM transcription_states WHERE recording_id = ?`, recordingID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: check state for %q: %w", recordingID, err)
	}
	return true, nil
}

// DeleteState discards the transcription checkpoint. Deleting a missing
// state is not an error.
func (s *Store) DeleteState(ctx context.Context, recordingID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM transcription_states WHERE recording_id = ?`, recordingID); err != nil {
		return fmt.Errorf("store: delete state for %q: %w", recordingID, err)
	}
	return nil
}

// StateIDs returns the ids of all recordings with a saved checkpoint,
// most recently updated first.
func (s *Store) StateIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT recording_id FROM transcription_states ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list states: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan state id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list states: %w", err)
	}
	return ids, nil
}
