package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-see/midimotif/pkg/model"
	"github.com/james-see/midimotif/pkg/theory"
)

// voiceFrom builds a monophonic voice with a fixed inter-onset gap.
func voiceFrom(pitches []int, gap int) model.Voice {
	notes := make([]model.Note, len(pitches))
	start := 0
	for i, p := range pitches {
		delta := gap
		if i == 0 {
			delta = 0
		}
		start += delta
		notes[i] = model.Note{Pitch: p, Start: start, Duration: gap / 2, Velocity: 80, Delta: delta}
	}
	return model.Voice{Notes: notes}
}

func pieceFrom(voices ...model.Voice) model.Piece {
	names := make([]string, len(voices))
	for i := range voices {
		voices[i].Track = i
	}
	return model.Piece{Voices: voices, PPQ: 480, Tempo: 120, TrackCount: len(voices), TrackNames: names}
}

func requireSameNotes(t *testing.T, want, got model.Piece) {
	t.Helper()
	require.Equal(t, len(want.Voices), len(got.Voices))
	for v := range want.Voices {
		a, b := want.Voices[v].Notes, got.Voices[v].Notes
		require.Equal(t, len(a), len(b), "voice %d note count", v)
		for i := range a {
			assert.Equal(t, a[i].Pitch, b[i].Pitch, "voice %d note %d pitch", v, i)
			assert.Equal(t, a[i].Start, b[i].Start, "voice %d note %d start", v, i)
			assert.Equal(t, a[i].Duration, b[i].Duration, "voice %d note %d duration", v, i)
			assert.Equal(t, a[i].Velocity, b[i].Velocity, "voice %d note %d velocity", v, i)
		}
	}
}

func TestEncodeRepeatedMotif(t *testing.T) {
	piece := pieceFrom(voiceFrom([]int{60, 62, 64, 60, 62, 64}, 480))
	opts := model.DefaultOptions()
	opts.MaxMotifLength = 3

	doc, err := Encode(piece, opts)
	require.NoError(t, err)

	require.Len(t, doc.Motifs, 1)
	entry := doc.Motifs[0]
	assert.Equal(t, []int{0, 1, 2}, entry.DegRels)
	assert.Equal(t, []int{0, 0, 0}, entry.Accs)
	assert.Equal(t, 0, entry.Deltas[0])

	require.Len(t, doc.Voices[0], 2)
	for i, item := range doc.Voices[0] {
		require.NotNil(t, item.Ref, "item %d should be a reference", i)
		assert.Equal(t, 0, item.Ref.MotifID)
		assert.Equal(t, 60, item.Ref.BaseMIDI)
	}
	assert.Equal(t, 0, doc.Voices[0][0].Ref.Delta)
	assert.Equal(t, 480, doc.Voices[0][1].Ref.Delta)

	decoded, err := Decode(doc)
	require.NoError(t, err)
	requireSameNotes(t, piece, decoded)
}

func TestEncodeNoRepeats(t *testing.T) {
	// unrelated intervals and no repetition: nothing to compress
	piece := pieceFrom(voiceFrom([]int{60, 67, 62, 71, 59, 72}, 480))

	doc, err := Encode(piece, model.DefaultOptions())
	require.NoError(t, err)

	assert.Empty(t, doc.Motifs)
	require.Len(t, doc.Voices[0], 6)
	for i, item := range doc.Voices[0] {
		assert.NotNil(t, item.Literal, "item %d should be literal", i)
	}

	decoded, err := Decode(doc)
	require.NoError(t, err)
	requireSameNotes(t, piece, decoded)
}

func TestEncodeMinOccurrences(t *testing.T) {
	// two total occurrences fail a min-occurrences of two (original plus
	// two repeats required)
	piece := pieceFrom(voiceFrom([]int{60, 62, 64, 60, 62, 64}, 480))
	opts := model.DefaultOptions()
	opts.MinOccurrences = 2

	doc, err := Encode(piece, opts)
	require.NoError(t, err)

	assert.Empty(t, doc.Motifs)
	for _, item := range doc.Voices[0] {
		assert.NotNil(t, item.Literal)
	}
}

func TestEncodeNoMotifs(t *testing.T) {
	piece := pieceFrom(voiceFrom([]int{60, 62, 64, 60, 62, 64}, 480))
	opts := model.DefaultOptions()
	opts.NoMotifs = true

	doc, err := Encode(piece, opts)
	require.NoError(t, err)

	assert.Empty(t, doc.Motifs)
	require.Len(t, doc.Voices[0], 6)
	for _, item := range doc.Voices[0] {
		require.NotNil(t, item.Literal)
	}

	decoded, err := Decode(doc)
	require.NoError(t, err)
	requireSameNotes(t, piece, decoded)
}

func TestEncodeNoMotifsIdempotent(t *testing.T) {
	piece := pieceFrom(
		voiceFrom([]int{60, 62, 64, 60, 62, 64}, 480),
		voiceFrom([]int{48, 55, 52, 48}, 960),
	)
	opts := model.DefaultOptions()
	opts.NoMotifs = true

	first, err := Encode(piece, opts)
	require.NoError(t, err)
	decoded, err := Decode(first)
	require.NoError(t, err)
	second, err := Encode(decoded, opts)
	require.NoError(t, err)

	// everything except the re-derived key fields must be byte-identical
	first.Key, second.Key = KeyInfo{}, KeyInfo{}
	first.KeyChanges, second.KeyChanges = nil, nil
	a, err := first.Marshal()
	require.NoError(t, err)
	b, err := second.Marshal()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestEncodeRejectsMalformedVoice(t *testing.T) {
	piece := pieceFrom(model.Voice{Notes: []model.Note{
		{Pitch: 200, Start: 0, Duration: 100, Velocity: 80, Delta: 0},
	}})

	_, err := Encode(piece, model.DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrMalformedInput)
}

func TestEncodeVaryingVelocityStaysLiteral(t *testing.T) {
	// same pitches and rhythm, but the repeat is played louder: the
	// occurrence cannot reproduce the library velocities, so it must
	// stay literal rather than round-trip wrong.
	voice := voiceFrom([]int{60, 62, 64, 60, 62, 64}, 480)
	for i := 3; i < 6; i++ {
		voice.Notes[i].Velocity = 110
	}
	piece := pieceFrom(voice)
	opts := model.DefaultOptions()
	opts.MaxMotifLength = 3

	doc, err := Encode(piece, opts)
	require.NoError(t, err)

	decoded, err := Decode(doc)
	require.NoError(t, err)
	requireSameNotes(t, piece, decoded)
}

func TestVerifyRoundTrip(t *testing.T) {
	piece := pieceFrom(
		voiceFrom([]int{60, 62, 64, 65, 67, 69, 71, 72}, 480),
		voiceFrom([]int{48, 55, 52, 48, 55, 52}, 960),
	)

	assert.NoError(t, VerifyRoundTrip(piece, model.DefaultOptions()))

	opts := model.DefaultOptions()
	opts.NoMotifs = true
	assert.NoError(t, VerifyRoundTrip(piece, opts))

	opts = model.DefaultOptions()
	opts.AllowDilation = false
	assert.NoError(t, VerifyRoundTrip(piece, opts))
}

func TestDecodeRejectsBadMotifID(t *testing.T) {
	doc := &Document{
		PPQ:   480,
		Tempo: 120,
		Key:   KeyInfo{Tonic: "C", Mode: "major"},
		Voices: [][]VoiceItem{{
			{Ref: &MotifRef{MotifID: 3, BaseMIDI: 60, Delta: 0}},
		}},
	}

	_, err := Decode(doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrMalformedInput)
}

func TestDecodeRejectsBadKey(t *testing.T) {
	doc := &Document{Key: KeyInfo{Tonic: "C", Mode: "dorian"}}
	_, err := Decode(doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrMalformedInput)
}

func TestBuildAndExpandEntry(t *testing.T) {
	key, err := theory.ParseKey("C", "major")
	require.NoError(t, err)

	notes := voiceFrom([]int{64, 62, 60}, 240).Notes
	entry, ok := buildEntry(notes, key)
	require.True(t, ok)
	assert.Equal(t, []int{0, -1, -2}, entry.DegRels)
	assert.Equal(t, []int{0, 240, 240}, entry.Deltas)

	// expanding a fourth higher keeps the contour
	expanded, ok := expandEntry(entry, 69, 0, key)
	require.True(t, ok)
	require.Len(t, expanded, 3)
	assert.Equal(t, 69, expanded[0].Pitch) // A4
	assert.Equal(t, 67, expanded[1].Pitch) // G4
	assert.Equal(t, 65, expanded[2].Pitch) // F4
}

func TestVerifyOccurrence(t *testing.T) {
	key, err := theory.ParseKey("C", "major")
	require.NoError(t, err)

	notes := voiceFrom([]int{60, 62, 64}, 480).Notes
	entry, ok := buildEntry(notes, key)
	require.True(t, ok)

	assert.True(t, verifyOccurrence(entry, notes, key))

	altered := voiceFrom([]int{60, 62, 64}, 480).Notes
	altered[2].Duration = 999
	assert.False(t, verifyOccurrence(entry, altered, key))

	short := notes[:2]
	assert.False(t, verifyOccurrence(entry, short, key))
}
