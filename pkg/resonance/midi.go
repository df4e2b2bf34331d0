package resonance

import (
	"fmt"
	"io"
	"math"
	"os"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	midiTempo      = 120.0
	midiResolution = smf.MetricTicks(960)
	midiVelocity   = 100
)

func msToTicks(ms int64) uint32 {
	beats := float64(ms) / 1000 * midiTempo / 60
	return uint32(math.Round(beats * float64(midiResolution)))
}

// WriteMIDI writes segments as a single-track Standard MIDI File at
// 120 BPM. Overlapping segments are shortened so that one note sounds
// at a time.
func WriteMIDI(w io.Writer, segments []NoteSegment, name string) error {
	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName(name))
	tr.Add(0, smf.MetaTempo(midiTempo))

	var cursor uint32
	for _, seg := range segments {
		if seg.Midi < 0 || seg.Midi > 127 {
			continue
		}
		start, end := msToTicks(seg.StartMs), msToTicks(seg.EndMs)
		start = max(start, cursor)
		if end <= start {
			end = start + 1
		}
		key := uint8(seg.Midi)
		tr.Add(start-cursor, midi.NoteOn(0, key, midiVelocity))
		tr.Add(end-start, midi.NoteOff(0, key))
		cursor = end
	}
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = midiResolution
	if err := s.Add(tr); err != nil {
		return fmt.Errorf("midi: add track: %w", err)
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("midi: write: %w", err)
	}
	return nil
}

// ExportMIDI writes segments to a new .mid file at path.
func ExportMIDI(path string, segments []NoteSegment, name string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteMIDI(f, segments, name); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
