package codec

import (
	"fmt"
	"sync"

	"github.com/james-see/midimotif/pkg/analysis"
	"github.com/james-see/midimotif/pkg/model"
)

// Encode runs the full pipeline over a piece: per-voice key estimation
// and motif extraction (independent, run concurrently), cross-voice
// matching, compression and document assembly. The input is never
// mutated.
func Encode(piece model.Piece, opts model.Options) (*Document, error) {
	for v, voice := range piece.Voices {
		if err := voice.Validate(); err != nil {
			return nil, fmt.Errorf("voice %d: %w", v, err)
		}
	}

	numVoices := len(piece.Voices)
	segments := make([][]analysis.KeySegment, numVoices)
	tracks := make([]analysis.DegreeTrack, numVoices)
	motifsPerVoice := make([][]analysis.Motif, numVoices)

	var wg sync.WaitGroup
	for v := range piece.Voices {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			segments[v] = analysis.EstimateKeys(piece.Voices[v], opts)
			tracks[v] = analysis.BuildDegreeTrack(piece.Voices[v], segments[v])
			if !opts.NoMotifs {
				motifsPerVoice[v] = analysis.ExtractMotifs(tracks[v], v, opts)
			}
		}(v)
	}
	wg.Wait()

	key, _ := analysis.GlobalKey(segments)

	var keyChanges []KeyChange
	for v, segs := range segments {
		for _, seg := range segs {
			keyChanges = append(keyChanges, KeyChange{
				Tonic:      seg.Key.TonicName(),
				Mode:       seg.Key.Mode.String(),
				Voice:      v,
				StartNote:  seg.Start,
				EndNote:    seg.End,
				Confidence: seg.Confidence,
			})
		}
	}

	var candidates []analysis.Motif
	for _, ms := range motifsPerVoice {
		candidates = append(candidates, ms...)
	}
	if opts.MaxCandidates > 0 && len(candidates) > opts.MaxCandidates {
		candidates = candidates[:opts.MaxCandidates]
	}

	var matches []analysis.Match
	if !opts.NoMotifs {
		matches = analysis.FindMatches(candidates, tracks, analysis.AllTransformations(), opts)
	}

	library, items := Compress(piece.Voices, candidates, matches, key, opts)
	if library == nil {
		library = []MotifEntry{}
	}
	if keyChanges == nil {
		keyChanges = []KeyChange{}
	}
	for v := range items {
		if items[v] == nil {
			items[v] = []VoiceItem{}
		}
	}

	voiceToTrack := make([]int, numVoices)
	for v, voice := range piece.Voices {
		voiceToTrack[v] = voice.Track
	}

	return &Document{
		PPQ:                piece.PPQ,
		Tempo:              piece.Tempo,
		Key:                keyInfoFor(key),
		KeyChanges:         keyChanges,
		Motifs:             library,
		Voices:             items,
		OriginalTrackCount: piece.TrackCount,
		VoiceToTrack:       voiceToTrack,
		TrackNames:         piece.TrackNames,
	}, nil
}

// Decode expands a document back into its exact original voices. No
// search or estimation happens here: references re-expand through the
// diatonic codec under the document's stored key, so decoding is fully
// deterministic.
func Decode(doc *Document) (model.Piece, error) {
	key, err := doc.Key.Key()
	if err != nil {
		return model.Piece{}, fmt.Errorf("%w: %v", model.ErrMalformedInput, err)
	}

	voices := make([]model.Voice, len(doc.Voices))
	for v, items := range doc.Voices {
		var notes []model.Note
		prevStart := 0
		for i, item := range items {
			switch {
			case item.Literal != nil:
				lit := item.Literal
				start := prevStart + lit.Delta
				notes = append(notes, model.Note{
					Pitch:    lit.Pitch,
					Start:    start,
					Duration: lit.Dur,
					Velocity: lit.Vel,
					Delta:    lit.Delta,
				})
				prevStart = start
			case item.Ref != nil:
				ref := item.Ref
				if ref.MotifID < 0 || ref.MotifID >= len(doc.Motifs) {
					return model.Piece{}, fmt.Errorf("%w: voice %d item %d references motif %d of %d",
						model.ErrMalformedInput, v, i, ref.MotifID, len(doc.Motifs))
				}
				expanded, ok := expandEntry(doc.Motifs[ref.MotifID], ref.BaseMIDI, ref.Delta, key)
				if !ok {
					return model.Piece{}, fmt.Errorf("%w: voice %d item %d base pitch %d unresolvable in %s",
						model.ErrMalformedInput, v, i, ref.BaseMIDI, key.Name())
				}
				for _, n := range expanded {
					start := prevStart + n.Delta
					n.Start = start
					notes = append(notes, n)
					prevStart = start
				}
			default:
				return model.Piece{}, fmt.Errorf("%w: voice %d item %d is empty", model.ErrMalformedInput, v, i)
			}
		}
		track := v
		if v < len(doc.VoiceToTrack) {
			track = doc.VoiceToTrack[v]
		}
		name := ""
		if track >= 0 && track < len(doc.TrackNames) {
			name = doc.TrackNames[track]
		}
		voices[v] = model.Voice{Notes: notes, Track: track, Name: name}
	}

	return model.Piece{
		Voices:     voices,
		PPQ:        doc.PPQ,
		Tempo:      doc.Tempo,
		TrackCount: doc.OriginalTrackCount,
		TrackNames: doc.TrackNames,
	}, nil
}

// VerifyRoundTrip encodes the piece, decodes the result and compares the
// reconstructed notes tuple-for-tuple against the originals. Used by the
// verify command and the compressor's own test suite.
func VerifyRoundTrip(piece model.Piece, opts model.Options) error {
	doc, err := Encode(piece, opts)
	if err != nil {
		return err
	}
	decoded, err := Decode(doc)
	if err != nil {
		return err
	}
	if len(decoded.Voices) != len(piece.Voices) {
		return fmt.Errorf("%w: voice count %d != %d", model.ErrRoundTripViolation, len(decoded.Voices), len(piece.Voices))
	}
	for v := range piece.Voices {
		orig := piece.Voices[v].Notes
		got := decoded.Voices[v].Notes
		if len(got) != len(orig) {
			return fmt.Errorf("%w: voice %d note count %d != %d", model.ErrRoundTripViolation, v, len(got), len(orig))
		}
		for i := range orig {
			a, b := orig[i], got[i]
			if a.Pitch != b.Pitch || a.Start != b.Start || a.Duration != b.Duration || a.Velocity != b.Velocity {
				return fmt.Errorf("%w: voice %d note %d: got %+v want %+v", model.ErrRoundTripViolation, v, i, b, a)
			}
		}
	}
	return nil
}
