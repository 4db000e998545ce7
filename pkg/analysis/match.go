package analysis

import (
	"math"

	"github.com/james-see/midimotif/pkg/model"
)

// Transformation is a melodic transform applied to a test motif's
// interval pattern before comparison.
type Transformation int

const (
	TransformExact Transformation = iota
	TransformRetrograde
	TransformInversion
	TransformRetrogradeInversion
)

// String returns the transformation name used in reports
func (t Transformation) String() string {
	switch t {
	case TransformRetrograde:
		return "retrograde"
	case TransformInversion:
		return "inversion"
	case TransformRetrogradeInversion:
		return "retrograde-inversion"
	default:
		return "exact"
	}
}

// AllTransformations lists the closed set of supported transforms
func AllTransformations() []Transformation {
	return []Transformation{
		TransformExact,
		TransformRetrograde,
		TransformInversion,
		TransformRetrogradeInversion,
	}
}

// dilationFactors is the fixed tempo-dilation search set. The identity
// factor comes first so that an undilated match wins score ties.
var dilationFactors = []float64{1, 0.5, 0.75, 1.25, 1.5, 2}

// pitchTolerance absorbs chromatic half-step encodings: a chromatic
// neighbour is half a degree away in interval units.
const pitchTolerance = 0.5

// rhythmTolerance is the maximum relative deviation for a delta or
// duration to count as matching at a given dilation factor.
const rhythmTolerance = 0.1

// Match is one scored occurrence of a source motif elsewhere in the piece
type Match struct {
	Source    int // index into the candidate motif slice
	Voice     int
	Start     int
	Transform Transformation
	Dilation  float64
	PitchSim  float64
	RhythmSim float64
	// Confidence is the mean of pitch and rhythm similarity
	Confidence float64
}

// TransformIntervals returns a new interval slice with the transform
// applied; the input is never mutated.
func TransformIntervals(intervals []Interval, t Transformation) []Interval {
	out := make([]Interval, len(intervals))
	copy(out, intervals)
	if t == TransformInversion || t == TransformRetrogradeInversion {
		for i := range out {
			out[i].Value = -out[i].Value
		}
	}
	if t == TransformRetrograde || t == TransformRetrogradeInversion {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// PitchSimilarity is the fraction of interval positions agreeing within
// the half-degree tolerance. Patterns of unequal length never match.
func PitchSimilarity(a, b []Interval) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	matches := 0
	for i := range a {
		if !a[i].Valid || !b[i].Valid {
			continue
		}
		if math.Abs(a[i].Value-b[i].Value) <= pitchTolerance {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}

// matchScaled reports whether value is within rhythmTolerance of
// reference scaled by factor.
func matchScaled(value, reference int, factor float64) bool {
	target := factor * float64(reference)
	if target == 0 {
		return value == 0
	}
	return math.Abs(float64(value)-target)/target <= rhythmTolerance
}

// RhythmSimilarity searches the dilation factor set (or just identity)
// for the scaling under which the most (delta, duration) pairs agree,
// returning the best score and its factor.
func RhythmSimilarity(a, b []RhythmStep, allowDilation bool) (float64, float64) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, 1
	}
	factors := dilationFactors
	if !allowDilation {
		factors = dilationFactors[:1]
	}

	bestScore := -1.0
	bestFactor := 1.0
	for _, f := range factors {
		matches := 0
		for i := range a {
			if matchScaled(a[i].Delta, b[i].Delta, f) && matchScaled(a[i].Duration, b[i].Duration, f) {
				matches++
			}
		}
		if score := float64(matches) / float64(len(a)); score > bestScore {
			bestScore = score
			bestFactor = f
		}
	}
	return bestScore, bestFactor
}

// CompareMotifs scores one candidate against one test motif under a
// transformation, returning pitch similarity, rhythm similarity and the
// dilation factor used for the rhythm score.
func CompareMotifs(source, test Motif, t Transformation, allowDilation bool) (float64, float64, float64) {
	pitch := PitchSimilarity(source.Intervals, TransformIntervals(test.Intervals, t))
	rhythm, factor := RhythmSimilarity(source.Rhythm, test.Rhythm, allowDilation)
	return pitch, rhythm, factor
}

// overlaps reports whether [aStart, aStart+aLen) intersects
// [bStart, bStart+bLen)
func overlaps(aStart, aLen, bStart, bLen int) bool {
	return aStart < bStart+bLen && bStart < aStart+aLen
}

// FindMatches scans every position of every voice for occurrences of the
// candidate motifs under the requested transformations. Positions
// overlapping a candidate's own occurrence are skipped, as is everything
// beyond the per-voice position cap; the search is the hot path of the
// whole encoder and the caps keep it bounded on long pieces.
func FindMatches(candidates []Motif, tracks []DegreeTrack, transforms []Transformation, opts model.Options) []Match {
	if len(transforms) == 0 {
		transforms = AllTransformations()
	}
	maxCandidates := opts.MaxCandidates
	if maxCandidates <= 0 || maxCandidates > len(candidates) {
		maxCandidates = len(candidates)
	}
	maxPositions := opts.MaxPositionsPerVoice
	if maxPositions <= 0 {
		maxPositions = model.DefaultMaxPositions
	}

	var matches []Match
	for ci := 0; ci < maxCandidates; ci++ {
		cand := candidates[ci]
		for v, track := range tracks {
			limit := len(track.Steps) - cand.Length
			if limit+1 > maxPositions {
				limit = maxPositions - 1
			}
			for pos := 0; pos <= limit; pos++ {
				if v == cand.Voice && overlaps(pos, cand.Length, cand.Start, cand.Length) {
					continue
				}
				test := motifAt(track, v, pos, cand.Length)

				best := Match{Confidence: -1}
				for _, t := range transforms {
					pitch, rhythm, factor := CompareMotifs(cand, test, t, opts.AllowDilation)
					if pitch < opts.SimilarityThreshold {
						continue
					}
					confidence := (pitch + rhythm) / 2
					if confidence > best.Confidence {
						best = Match{
							Source:     ci,
							Voice:      v,
							Start:      pos,
							Transform:  t,
							Dilation:   factor,
							PitchSim:   pitch,
							RhythmSim:  rhythm,
							Confidence: confidence,
						}
					}
				}
				if best.Confidence >= 0 {
					matches = append(matches, best)
				}
			}
		}
	}
	return matches
}
