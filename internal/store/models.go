// Package store persists audio records and transcription checkpoints in a
// single SQLite database. It is the only durable state in the system and the
// source of truth every other component re-reads before acting.
package store

import (
	"time"

	"github.com/fernandocchaves/tabtalk/internal/audio"
)

// Source tags a record row. Exactly these three values exist.
type Source string

const (
	SourceRecording Source = "recording"
	SourceChunk     Source = "recording-chunk"
	SourceUpload    Source = "upload"
)

// Record is one row of the records table. Chunk rows carry ParentID,
// ChunkNumber and a payload; recording rows carry the aggregate fields and
// no payload; upload rows carry a payload and aggregate fields but no chunk
// linkage.
type Record struct {
	ID          string
	Source      Source
	CreatedAt   time.Time
	ParentID    string
	ChunkNumber int
	SampleCount int64
	SampleRate  int
	Channels    int
	SizeBytes   int64
	Duration    int64 // whole seconds
	ChunkCount  int
	Recovered   bool
	Transcript  string
	Variants    map[string]string
	Hash        string        // blake3 content hash, set on uploads
	Payload     audio.Payload // empty on metadata-only reads
}

// TranscriptionState is the resumability checkpoint for one recording.
// Segments holds the completed per-segment texts, contiguous from 0 through
// LastCompleted (-1 means none yet).
type TranscriptionState struct {
	RecordingID   string
	LastCompleted int
	Segments      []string
	LastError     string
	FailedSegment int // -1 when the last attempt did not fail
	StartedAt     time.Time
	UpdatedAt     time.Time
}
