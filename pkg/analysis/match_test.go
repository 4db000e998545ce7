package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-see/midimotif/pkg/model"
	"github.com/james-see/midimotif/pkg/theory"
)

func cMajorTrack(t *testing.T, pitches []int, gap int) DegreeTrack {
	t.Helper()
	voice := voiceFrom(pitches, gap)
	key, err := theory.ParseKey("C", "major")
	require.NoError(t, err)
	segments := []KeySegment{{Start: 0, End: len(pitches) - 1, Key: key, Confidence: 1}}
	return BuildDegreeTrack(voice, segments)
}

func TestBuildDegreeTrack(t *testing.T) {
	track := cMajorTrack(t, []int{60, 62, 64, 61}, 480)
	require.Len(t, track.Steps, 4)

	assert.True(t, track.Steps[0].Valid)
	assert.Equal(t, track.Steps[0].Step+1, track.Steps[1].Step) // C4 -> D4
	assert.Equal(t, track.Steps[1].Step+1, track.Steps[2].Step) // D4 -> E4

	// C#4 resolves as an inflected degree, not a new step
	assert.True(t, track.Steps[3].Valid)
	assert.Equal(t, track.Steps[0].Step, track.Steps[3].Step)
	assert.Equal(t, 1, track.Steps[3].Acc)

	assert.Equal(t, 0, track.Steps[0].Delta)
	assert.Equal(t, 480, track.Steps[1].Delta)
}

func TestMotifIntervals(t *testing.T) {
	track := cMajorTrack(t, []int{60, 62, 64, 60, 62, 64}, 480)
	m := motifAt(track, 0, 0, 3)

	require.Len(t, m.Intervals, 2)
	assert.Equal(t, 1.0, m.Intervals[0].Value)
	assert.Equal(t, 1.0, m.Intervals[1].Value)
	assert.Equal(t, 1.0, m.Resolved)

	// the first rhythm step is always anchored at delta zero
	require.Len(t, m.Rhythm, 3)
	assert.Equal(t, 0, m.Rhythm[0].Delta)
	assert.Equal(t, 480, m.Rhythm[1].Delta)
}

func TestExtractMotifsBounds(t *testing.T) {
	track := cMajorTrack(t, []int{60, 62, 64, 65, 67, 69}, 480)
	opts := model.DefaultOptions()
	opts.MinMotifLength = 3
	opts.MaxMotifLength = 4

	motifs := ExtractMotifs(track, 0, opts)
	// 4 windows of length 3 plus 3 of length 4
	assert.Len(t, motifs, 7)
	for _, m := range motifs {
		assert.GreaterOrEqual(t, m.Length, 3)
		assert.LessOrEqual(t, m.Length, 4)
	}
}

func TestTransformIntervals(t *testing.T) {
	in := []Interval{{Value: 2, Valid: true}, {Value: -1, Valid: true}, {Value: 3, Valid: true}}

	values := func(ivs []Interval) []float64 {
		out := make([]float64, len(ivs))
		for i, iv := range ivs {
			out[i] = iv.Value
		}
		return out
	}

	assert.Equal(t, []float64{2, -1, 3}, values(TransformIntervals(in, TransformExact)))
	assert.Equal(t, []float64{3, -1, 2}, values(TransformIntervals(in, TransformRetrograde)))
	assert.Equal(t, []float64{-2, 1, -3}, values(TransformIntervals(in, TransformInversion)))
	assert.Equal(t, []float64{-3, 1, -2}, values(TransformIntervals(in, TransformRetrogradeInversion)))

	// input untouched
	assert.Equal(t, []float64{2, -1, 3}, values(in))
}

func TestTransformInvolutions(t *testing.T) {
	in := []Interval{{Value: 1, Valid: true}, {Value: -4, Valid: true}, {Value: 2, Valid: true}}
	for _, tr := range []Transformation{TransformRetrograde, TransformInversion, TransformRetrogradeInversion} {
		twice := TransformIntervals(TransformIntervals(in, tr), tr)
		assert.Equal(t, in, twice, "%s applied twice must be identity", tr)
	}
}

func TestPitchSimilarity(t *testing.T) {
	a := []Interval{{Value: 1, Valid: true}, {Value: 2, Valid: true}}

	assert.Equal(t, 1.0, PitchSimilarity(a, a))
	// unequal lengths never match
	assert.Equal(t, 0.0, PitchSimilarity(a, a[:1]))
	// chromatic half-degree drift stays within tolerance
	b := []Interval{{Value: 1.5, Valid: true}, {Value: 2, Valid: true}}
	assert.Equal(t, 1.0, PitchSimilarity(a, b))
	// a whole degree apart does not
	c := []Interval{{Value: 2, Valid: true}, {Value: 2, Valid: true}}
	assert.Equal(t, 0.5, PitchSimilarity(a, c))
	// unresolved positions count against the score
	d := []Interval{{Value: 1, Valid: true}, {Valid: false}}
	assert.Equal(t, 0.5, PitchSimilarity(a, d))
}

func TestRhythmSimilarityDilation(t *testing.T) {
	a := []RhythmStep{{Delta: 0, Duration: 240}, {Delta: 480, Duration: 240}, {Delta: 480, Duration: 240}}
	double := []RhythmStep{{Delta: 0, Duration: 120}, {Delta: 240, Duration: 120}, {Delta: 240, Duration: 120}}

	score, factor := RhythmSimilarity(a, double, true)
	assert.Equal(t, 1.0, score)
	assert.Equal(t, 2.0, factor)

	score, factor = RhythmSimilarity(a, double, false)
	assert.Less(t, score, 1.0)
	assert.Equal(t, 1.0, factor)

	// identity factor wins ties on identical rhythms
	score, factor = RhythmSimilarity(a, a, true)
	assert.Equal(t, 1.0, score)
	assert.Equal(t, 1.0, factor)
}

func TestFindMatchesRepeatedMotif(t *testing.T) {
	track := cMajorTrack(t, []int{60, 62, 64, 60, 62, 64}, 480)
	opts := model.DefaultOptions()
	opts.MinMotifLength = 3
	opts.MaxMotifLength = 3

	candidates := ExtractMotifs(track, 0, opts)
	require.Len(t, candidates, 4)

	matches := FindMatches(candidates, []DegreeTrack{track}, AllTransformations(), opts)

	var found bool
	for _, m := range matches {
		if m.Source == 0 && m.Start == 3 {
			found = true
			assert.Equal(t, TransformExact, m.Transform)
			assert.Equal(t, 1.0, m.Dilation)
			assert.Equal(t, 1.0, m.PitchSim)
			assert.Equal(t, 1.0, m.RhythmSim)
			assert.Equal(t, 1.0, m.Confidence)
		}
		// a candidate never matches a position overlapping itself
		cand := candidates[m.Source]
		assert.False(t, m.Voice == cand.Voice && overlaps(m.Start, cand.Length, cand.Start, cand.Length))
	}
	assert.True(t, found, "exact repeat at position 3 not found")
}

func TestFindMatchesInversion(t *testing.T) {
	// ascent C D E answered by descent E D C
	track := cMajorTrack(t, []int{60, 62, 64, 64, 62, 60}, 480)
	opts := model.DefaultOptions()
	opts.MinMotifLength = 3
	opts.MaxMotifLength = 3

	candidates := ExtractMotifs(track, 0, opts)
	matches := FindMatches(candidates, []DegreeTrack{track}, AllTransformations(), opts)

	var found bool
	for _, m := range matches {
		if m.Source == 0 && m.Start == 3 && m.PitchSim == 1.0 {
			found = true
			assert.Equal(t, TransformInversion, m.Transform)
		}
	}
	assert.True(t, found, "transformed repeat at position 3 not found")
}

func TestCompareMotifsSymmetry(t *testing.T) {
	track := cMajorTrack(t, []int{60, 64, 62, 67, 65}, 480)
	m := motifAt(track, 0, 0, 5)

	// a motif always matches itself exactly
	pitch, rhythm, _ := CompareMotifs(m, m, TransformExact, true)
	assert.Equal(t, 1.0, pitch)
	assert.Equal(t, 1.0, rhythm)

	// and matches its own inversion under the inversion transform
	inverted := m
	inverted.Intervals = TransformIntervals(m.Intervals, TransformInversion)
	pitch, _, _ = CompareMotifs(m, inverted, TransformInversion, true)
	assert.Equal(t, 1.0, pitch)
}

func TestCompareMotifsThreshold(t *testing.T) {
	track := cMajorTrack(t, []int{60, 67, 62, 71, 59, 72}, 480)
	a := motifAt(track, 0, 0, 3)
	b := motifAt(track, 0, 3, 3)

	for _, tr := range AllTransformations() {
		pitch, _, _ := CompareMotifs(a, b, tr, true)
		assert.Less(t, pitch, model.DefaultSimilarityThreshold,
			"unrelated motifs must stay below threshold under %s", tr)
	}
}
