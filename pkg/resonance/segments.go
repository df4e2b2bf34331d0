package resonance

import "github.com/himanishpuri/resonance/pkg/resonance/session"

const (
	// minSegmentFrames drops single-frame blips.
	minSegmentFrames = 2
	// maxGapFrames is the number of undetected or dropped frames a note
	// may skip before a new segment starts.
	maxGapFrames = 2
)

// SegmentNotes groups readings into notes. Readings must be in frame
// order. Times are derived from frame positions, not wall-clock
// timestamps.
func SegmentNotes(readings []session.Reading, frameSize, hop, sampleRate int) []NoteSegment {
	if sampleRate <= 0 || hop <= 0 {
		return nil
	}
	toMs := func(samples uint64) int64 {
		return int64(samples * 1000 / uint64(sampleRate))
	}

	var (
		out               []NoteSegment
		cur               *NoteSegment
		first, last       uint64
		sumFreq, sumCents float64
	)
	flush := func() {
		if cur != nil && cur.Frames >= minSegmentFrames {
			cur.StartMs = toMs(first * uint64(hop))
			cur.EndMs = toMs(last*uint64(hop) + uint64(frameSize))
			cur.Freq = sumFreq / float64(cur.Frames)
			cur.Cents = sumCents / float64(cur.Frames)
			out = append(out, *cur)
		}
		cur = nil
	}

	for _, r := range readings {
		if r.Note == nil {
			continue
		}
		if cur == nil || r.Note.MidiIndex != cur.Midi || r.FrameSeq-last > maxGapFrames+1 {
			flush()
			cur = &NoteSegment{Note: r.Note.NoteLabel, Midi: r.Note.MidiIndex}
			first = r.FrameSeq
			sumFreq, sumCents = 0, 0
		}
		last = r.FrameSeq
		cur.Frames++
		sumFreq += r.Estimate.Frequency
		sumCents += r.Note.Cents
	}
	flush()
	return out
}
