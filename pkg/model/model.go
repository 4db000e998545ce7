// Package model holds the note-stream data model shared by the analysis
// and codec packages.
package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the codec contract.
var (
	// ErrMalformedInput marks a note stream that violates ordering or
	// range invariants. The whole file is rejected, never partially
	// encoded.
	ErrMalformedInput = errors.New("malformed input")

	// ErrRoundTripViolation marks a motif occurrence whose expansion did
	// not reproduce its source notes. Occurrences that trip this fall
	// back to literal form; the error surfaces only if that fallback is
	// impossible.
	ErrRoundTripViolation = errors.New("round-trip violation")
)

// Note is one note event inside a voice. Start, Duration and Delta are in
// MIDI ticks; Delta is the onset distance from the previous note in the
// same voice (for the first note, from tick zero). Notes are immutable
// once parsed.
type Note struct {
	Pitch    int
	Start    int
	Duration int
	Velocity int
	Delta    int
}

// Voice is an ordered monophonic note sequence with its source-track
// metadata. Start ticks are monotonically non-decreasing.
type Voice struct {
	Notes []Note
	Track int
	Name  string
}

// Validate checks the voice invariants: pitch and velocity ranges, tick
// ordering and delta consistency.
func (v Voice) Validate() error {
	prevStart := 0
	for i, n := range v.Notes {
		if n.Pitch < 0 || n.Pitch > 127 {
			return fmt.Errorf("%w: note %d pitch %d out of range", ErrMalformedInput, i, n.Pitch)
		}
		if n.Velocity < 0 || n.Velocity > 127 {
			return fmt.Errorf("%w: note %d velocity %d out of range", ErrMalformedInput, i, n.Velocity)
		}
		if n.Duration < 0 {
			return fmt.Errorf("%w: note %d has negative duration", ErrMalformedInput, i)
		}
		if n.Start < prevStart {
			return fmt.Errorf("%w: note %d starts before its predecessor", ErrMalformedInput, i)
		}
		if n.Delta != n.Start-prevStart {
			return fmt.Errorf("%w: note %d delta %d does not match start ticks", ErrMalformedInput, i, n.Delta)
		}
		prevStart = n.Start
	}
	return nil
}

// Piece is the I/O-layer handoff: the separated voices of one file plus
// the timing and track metadata the document preserves.
type Piece struct {
	Voices     []Voice
	PPQ        int
	Tempo      int
	TrackCount int
	TrackNames []string
}

// Options carries the already-resolved configuration for one encode pass.
// CLI and API layers translate their flags into this struct; the core
// never reads flags itself.
type Options struct {
	// Key estimation
	WindowSize     int     // notes per analysis window
	Stride         int     // window step, defaults to WindowSize/2
	MinKeyDelta    float64 // score improvement required to accept a key change
	HighConfidence float64 // absolute score that always accepts a key change

	// Motif extraction
	MinMotifLength int
	MaxMotifLength int

	// Motif matching
	SimilarityThreshold  float64 // minimum pitch similarity to keep a match
	AllowDilation        bool    // search tempo-dilation factors
	MaxCandidates        int     // cap on extracted candidates fed to the matcher
	MaxPositionsPerVoice int     // cap on match positions scanned per voice

	// Motif compression
	MinConfidence  float64 // minimum average match confidence per motif
	MinOccurrences int     // repeats (beyond the original) required
	NoMotifs       bool    // emit literals only, empty library
}

// Default thresholds for the encode pipeline.
const (
	DefaultWindowSize          = 8
	DefaultMinKeyDelta         = 0.1
	DefaultHighConfidence      = 0.85
	DefaultMinMotifLength      = 3
	DefaultMaxMotifLength      = 12
	DefaultSimilarityThreshold = 0.6
	DefaultMinConfidence       = 0.7
	DefaultMinOccurrences      = 1
	DefaultMaxCandidates       = 2000
	DefaultMaxPositions        = 4000
)

// DefaultOptions returns the standard encode configuration
func DefaultOptions() Options {
	return Options{
		WindowSize:           DefaultWindowSize,
		Stride:               DefaultWindowSize / 2,
		MinKeyDelta:          DefaultMinKeyDelta,
		HighConfidence:       DefaultHighConfidence,
		MinMotifLength:       DefaultMinMotifLength,
		MaxMotifLength:       DefaultMaxMotifLength,
		SimilarityThreshold:  DefaultSimilarityThreshold,
		AllowDilation:        true,
		MaxCandidates:        DefaultMaxCandidates,
		MaxPositionsPerVoice: DefaultMaxPositions,
		MinConfidence:        DefaultMinConfidence,
		MinOccurrences:       DefaultMinOccurrences,
	}
}
