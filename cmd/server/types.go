package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/himanishpuri/resonance/pkg/models"
	"github.com/himanishpuri/resonance/pkg/resonance/note"
	"github.com/himanishpuri/resonance/pkg/resonance/session"
	"github.com/himanishpuri/resonance/pkg/resonance/storage"
	"github.com/himanishpuri/resonance/pkg/resonance/tension"
)

const (
	minStreamSampleRate = 8000
	maxStreamSampleRate = 192000
)

// CreateProfileRequest is the request body for POST /api/profiles
type CreateProfileRequest struct {
	Name             string    `json:"name"`
	Kind             string    `json:"kind"`
	Data             []float64 `json:"data"`
	SpeakingLengthMm *float64  `json:"speaking_length_mm,omitempty"`
}

// Profile converts the request, checking the kind up front so the client
// gets a precise message.
func (r *CreateProfileRequest) Profile() (models.TuningProfile, error) {
	if strings.TrimSpace(r.Name) == "" {
		return models.TuningProfile{}, errors.New("name is required")
	}
	kind, err := models.ParseProfileKind(r.Kind)
	if err != nil {
		return models.TuningProfile{}, err
	}
	return models.TuningProfile{
		Name:             r.Name,
		Kind:             kind,
		Data:             r.Data,
		SpeakingLengthMm: r.SpeakingLengthMm,
	}, nil
}

// ProfileResponse is returned for a single profile. Warning is set when
// the remote store failed and the local copy answered.
type ProfileResponse struct {
	Profile models.TuningProfile `json:"profile"`
	Origin  storage.Origin       `json:"origin"`
	Warning string               `json:"warning,omitempty"`
}

// ListProfilesResponse is the response for GET /api/profiles
type ListProfilesResponse struct {
	Profiles []models.ProfileSummary `json:"profiles"`
	Count    int                     `json:"count"`
	Origin   storage.Origin          `json:"origin"`
	Warning  string                  `json:"warning,omitempty"`
}

// DeleteProfileResponse is the response for DELETE /api/profiles/{id}
type DeleteProfileResponse struct {
	Message string         `json:"message"`
	ID      string         `json:"id"`
	Origin  storage.Origin `json:"origin"`
}

// NoteResponse is the response for GET /api/note
type NoteResponse struct {
	Frequency float64 `json:"frequency"`
	note.Result
}

// TensionResponse is the response for GET /api/tension
type TensionResponse struct {
	LengthMm         float64 `json:"length_mm"`
	Frequency        float64 `json:"frequency"`
	MaxSafeFrequency float64 `json:"max_safe_frequency"`
	tension.Metrics
}

// TuneHello is the first text message of a /ws/tune stream.
type TuneHello struct {
	SampleRate       int     `json:"sample_rate"`
	ProfileID        string  `json:"profile_id,omitempty"`
	SpeakingLengthMm float64 `json:"speaking_length_mm,omitempty"`
}

func (h *TuneHello) Validate() error {
	if h.SampleRate < minStreamSampleRate || h.SampleRate > maxStreamSampleRate {
		return fmt.Errorf("sample_rate %d is outside %d..%d", h.SampleRate, minStreamSampleRate, maxStreamSampleRate)
	}
	if h.SpeakingLengthMm < 0 {
		return errors.New("speaking_length_mm must not be negative")
	}
	return nil
}

// ReadingDTO is one accepted frame as sent to the tuning UI.
type ReadingDTO struct {
	Seq             uint64           `json:"seq"`
	Frequency       float64          `json:"frequency"`
	Clarity         float64          `json:"clarity"`
	TimestampMs     int64            `json:"timestamp_ms"`
	Note            string           `json:"note,omitempty"`
	Midi            int              `json:"midi,omitempty"`
	Cents           float64          `json:"cents"`
	TargetFrequency float64          `json:"target_frequency,omitempty"`
	FromProfile     bool             `json:"from_profile,omitempty"`
	Tension         *tension.Metrics `json:"tension,omitempty"`
}

func newReadingDTO(r session.Reading) ReadingDTO {
	dto := ReadingDTO{
		Seq:         r.FrameSeq,
		Frequency:   r.Estimate.Frequency,
		Clarity:     r.Estimate.Clarity,
		TimestampMs: r.Estimate.TimestampMs,
		Tension:     r.Tension,
	}
	if n := r.Note; n != nil {
		dto.Note = n.NoteLabel
		dto.Midi = n.MidiIndex
		dto.Cents = n.Cents
		dto.TargetFrequency = n.TargetFrequency
		dto.FromProfile = n.FromProfile
	}
	return dto
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// degradedWarning describes a remote failure that the local store
// covered for. A profile that is only missing remotely is not a failure.
func degradedWarning(err error) string {
	if err == nil || errors.Is(err, storage.ErrNotFound) {
		return ""
	}
	return "remote profile store unavailable: " + err.Error()
}
