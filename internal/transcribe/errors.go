package transcribe

import (
	"errors"
	"fmt"
)

var (
	// ErrStateExists is returned by Transcribe when the recording already
	// has partial progress. The caller must resume or clear it first.
	ErrStateExists = errors.New("transcription state exists, use resume")
	// ErrNothingToResume is returned by Resume when no saved state exists.
	ErrNothingToResume = errors.New("nothing to resume")
	// ErrRunInFlight is returned when a run for the same recording is
	// already in progress.
	ErrRunInFlight = errors.New("transcription already in progress")
)

// AuthError marks a credential rejection by the external service. The
// orchestrator drops its cached client on this error so the next attempt
// reconstructs one from current configuration instead of retrying a
// known-bad credential.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err carries a credential rejection.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// SegmentError reports which segment halted a transcription run. All
// progress before the failing segment is persisted and resumable.
type SegmentError struct {
	RecordingID string
	Segment     int
	Err         error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("transcription of %s halted at segment %d: %v", e.RecordingID, e.Segment, e.Err)
}

func (e *SegmentError) Unwrap() error {
	return e.Err
}
