package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesCaptured counts frames accepted into the sample buffer.
	FramesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabtalk_frames_captured_total",
		Help: "Audio frames appended to the capture buffer.",
	})

	// RecordingActive is 1 while a capture session is running.
	RecordingActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tabtalk_recording_active",
		Help: "Whether a capture session is currently active.",
	})

	// ChunksWritten counts chunks durably persisted.
	ChunksWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabtalk_chunks_written_total",
		Help: "Crash-recovery chunks written to the store.",
	})

	// ChunkWriteErrors counts failed flushes (retried on the next tick).
	ChunkWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabtalk_chunk_write_errors_total",
		Help: "Chunk flushes that failed and were left for retry.",
	})

	// RecordingsRecovered counts recordings reconstructed from orphaned
	// chunks.
	RecordingsRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabtalk_recordings_recovered_total",
		Help: "Recordings reconstructed by the recovery engine.",
	})

	// TranscriptionCalls counts external transcription calls by outcome
	// (ok, truncated, error).
	TranscriptionCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tabtalk_transcription_calls_total",
		Help: "External transcription service calls by outcome.",
	}, []string{"outcome"})

	// TranscriptionCallSeconds observes external call latency.
	TranscriptionCallSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tabtalk_transcription_call_seconds",
		Help:    "Latency of external transcription calls.",
		Buckets: prometheus.DefBuckets,
	})
)
