package resonance

import (
	"errors"
	"fmt"

	"github.com/himanishpuri/resonance/pkg/models"
	"github.com/himanishpuri/resonance/pkg/resonance/session"
	"github.com/himanishpuri/resonance/pkg/resonance/storage"
)

// ListenOptions configures one session.
type ListenOptions struct {
	// ProfileID or name of a stored profile to correct targets against.
	ProfileID string
	// SpeakingLengthMm enables tension readings when positive.
	SpeakingLengthMm float64
	EmitUndetected   bool
}

// CaptureRequest describes the profile built by CaptureProfile.
type CaptureRequest struct {
	Name             string
	Kind             models.ProfileKind
	SpeakingLengthMm *float64
}

// NoteSegment is a run of consecutive readings on the same note.
type NoteSegment struct {
	Note    string  `json:"note"`
	Midi    int     `json:"midi"`
	StartMs int64   `json:"start_ms"`
	EndMs   int64   `json:"end_ms"`
	Freq    float64 `json:"frequency"`
	Cents   float64 `json:"cents"`
	Frames  int     `json:"frames"`
}

// Analysis is the result of running a recording through a session.
type Analysis struct {
	Path       string            `json:"path"`
	SampleRate int               `json:"sample_rate"`
	DurationMs int64             `json:"duration_ms"`
	Frames     uint64            `json:"frames"`
	Detected   uint64            `json:"detected"`
	Segments   []NoteSegment     `json:"segments"`
	Readings   []session.Reading `json:"readings,omitempty"`
}

// ErrNothingCaptured is returned when a capture recording has no usable note.
var ErrNothingCaptured = errors.New("no notes detected in recording")

// ProfileNotFoundError is returned by FindProfile. Suggestion holds the
// closest stored name, if any is close enough.
type ProfileNotFoundError struct {
	Query      string
	Suggestion string
}

func (e *ProfileNotFoundError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("profile %q not found, did you mean %q?", e.Query, e.Suggestion)
	}
	return fmt.Sprintf("profile %q not found", e.Query)
}

func (e *ProfileNotFoundError) Unwrap() error { return storage.ErrNotFound }
