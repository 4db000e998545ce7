package analysis

import (
	"github.com/james-see/midimotif/pkg/model"
	"github.com/james-see/midimotif/pkg/theory"
)

// minResolvedRatio is the fraction of a candidate window's notes that
// must map to a diatonic position; windows more chromatic than this are
// not representable reliably and stay literal.
const minResolvedRatio = 0.7

// DegreeStep is one note of a voice rendered in scale-degree terms.
// Valid is false when the note has no diatonic position within the
// accidental tolerance; such notes still round-trip as literals but never
// anchor motif intervals.
type DegreeStep struct {
	Step     int // diatonic step index (degree + 7*octave)
	Acc      int // semitone accidental
	Valid    bool
	Delta    int // onset ticks since previous note
	Duration int
}

// DegreeTrack is a whole voice in scale-degree representation
type DegreeTrack struct {
	Steps []DegreeStep
}

// Interval is an optional signed degree delta between adjacent notes.
// Chromatic inflection rides along as half-degree units so that two
// spellings of the same semitone motion compare within the matcher's 0.5
// tolerance.
type Interval struct {
	Value float64
	Valid bool
}

// RhythmStep is one (delta, duration) pair of a motif's rhythm pattern.
// The first step of a motif always has Delta 0; its real onset comes from
// the reference that replaces the occurrence.
type RhythmStep struct {
	Delta    int
	Duration int
}

// Motif is a candidate contiguous note run in interval + rhythm form
type Motif struct {
	Voice     int // originating voice index
	Start     int // originating note index
	Length    int
	Intervals []Interval // Length-1 entries
	Rhythm    []RhythmStep
	Resolved  float64 // fraction of notes with a valid diatonic position
}

// BuildDegreeTrack converts a voice to its scale-degree representation,
// resolving each note against the key segment covering its index.
func BuildDegreeTrack(voice model.Voice, segments []KeySegment) DegreeTrack {
	steps := make([]DegreeStep, len(voice.Notes))
	for i, n := range voice.Notes {
		key := segmentFor(segments, i)
		step := DegreeStep{Delta: n.Delta, Duration: n.Duration}
		if pos, ok := theory.PitchToDiatonic(n.Pitch, key); ok {
			step.Step = pos.StepIndex()
			step.Acc = pos.Accidental
			step.Valid = true
		}
		steps[i] = step
	}
	return DegreeTrack{Steps: steps}
}

// motifAt builds the descriptor for the window [start, start+length) of a
// track. The caller guarantees the window is in range.
func motifAt(track DegreeTrack, voice, start, length int) Motif {
	m := Motif{
		Voice:     voice,
		Start:     start,
		Length:    length,
		Intervals: make([]Interval, 0, length-1),
		Rhythm:    make([]RhythmStep, 0, length),
	}
	resolved := 0
	for i := 0; i < length; i++ {
		s := track.Steps[start+i]
		if s.Valid {
			resolved++
		}
		delta := s.Delta
		if i == 0 {
			delta = 0
		}
		m.Rhythm = append(m.Rhythm, RhythmStep{Delta: delta, Duration: s.Duration})
		if i > 0 {
			prev := track.Steps[start+i-1]
			iv := Interval{}
			if s.Valid && prev.Valid {
				iv.Value = float64(s.Step-prev.Step) + float64(s.Acc-prev.Acc)/2
				iv.Valid = true
			}
			m.Intervals = append(m.Intervals, iv)
		}
	}
	m.Resolved = float64(resolved) / float64(length)
	return m
}

// ExtractMotifs enumerates every contiguous window of the voice with a
// length in [MinMotifLength, MaxMotifLength] and keeps those resolvable
// enough to represent diatonically. Candidate count grows with
// voiceLength x (max-min); the driver caps what it feeds to the matcher.
func ExtractMotifs(track DegreeTrack, voice int, opts model.Options) []Motif {
	minLen := opts.MinMotifLength
	if minLen < 2 {
		minLen = model.DefaultMinMotifLength
	}
	maxLen := opts.MaxMotifLength
	if maxLen < minLen {
		maxLen = minLen
	}

	n := len(track.Steps)
	var motifs []Motif
	for length := minLen; length <= maxLen; length++ {
		for start := 0; start+length <= n; start++ {
			m := motifAt(track, voice, start, length)
			if m.Resolved < minResolvedRatio {
				continue
			}
			motifs = append(motifs, m)
		}
	}
	return motifs
}
