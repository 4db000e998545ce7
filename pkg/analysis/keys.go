// Package analysis implements the per-voice analysis passes of the
// midimotif encoder: key estimation, motif candidate extraction and
// cross-voice motif matching.
package analysis

import (
	"github.com/james-see/midimotif/pkg/model"
	"github.com/james-see/midimotif/pkg/theory"
)

// KeySegment is a contiguous run of notes sharing one estimated key.
// Indices are inclusive note positions within the voice.
type KeySegment struct {
	Start      int
	End        int
	Key        theory.Key
	Confidence float64
}

// scoreWindow rates how well a set of pitch classes fits a key: the
// fraction of distinct classes that belong to the key's scale.
func scoreWindow(classes [12]bool, key theory.Key) float64 {
	scale := key.PitchClasses()
	total := 0
	inScale := 0
	for pc := 0; pc < 12; pc++ {
		if !classes[pc] {
			continue
		}
		total++
		if scale[pc] {
			inScale++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(inScale) / float64(total)
}

// bestKey scores all 24 keys against a window's pitch classes. Keys are
// tried in theory.AllKeys order and only a strictly better score replaces
// the current best, so ties resolve to the canonical ordering.
func bestKey(classes [12]bool) (theory.Key, float64, bool) {
	any := false
	for pc := 0; pc < 12; pc++ {
		if classes[pc] {
			any = true
			break
		}
	}
	if !any {
		return theory.Key{}, 0, false
	}
	var best theory.Key
	bestScore := -1.0
	for _, key := range theory.AllKeys() {
		if s := scoreWindow(classes, key); s > bestScore {
			best = key
			bestScore = s
		}
	}
	return best, bestScore, true
}

// EstimateKeys slides a window over the voice and merges adjacent windows
// that agree on a key into segments. A key change is accepted only when
// the new window scores better than the running segment by MinKeyDelta,
// or clears the HighConfidence threshold outright; the hysteresis keeps a
// single altered-tone window from splitting a stable segment.
func EstimateKeys(voice model.Voice, opts model.Options) []KeySegment {
	windowSize := opts.WindowSize
	if windowSize <= 0 {
		windowSize = model.DefaultWindowSize
	}
	stride := opts.Stride
	if stride <= 0 {
		stride = windowSize / 2
	}
	if stride <= 0 {
		stride = 1
	}

	n := len(voice.Notes)
	if n == 0 {
		return nil
	}

	var segments []KeySegment
	var current *KeySegment

	for start := 0; start < n; start += stride {
		end := start + windowSize - 1
		if end >= n {
			end = n - 1
		}

		var classes [12]bool
		for i := start; i <= end; i++ {
			classes[floorMod12(voice.Notes[i].Pitch)] = true
		}
		key, score, ok := bestKey(classes)
		if !ok {
			continue
		}

		switch {
		case current == nil:
			segments = append(segments, KeySegment{Start: start, End: end, Key: key, Confidence: score})
			current = &segments[len(segments)-1]
		case key == current.Key:
			current.End = end
			if score > current.Confidence {
				current.Confidence = score
			}
		case score > current.Confidence+opts.MinKeyDelta || score >= opts.HighConfidence:
			segments = append(segments, KeySegment{Start: start, End: end, Key: key, Confidence: score})
			current = &segments[len(segments)-1]
		default:
			// low-confidence dissent, absorb into the running segment
			current.End = end
		}

		if end == n-1 {
			break
		}
	}

	return segments
}

// GlobalKey picks one key for a whole piece with a cadence bias: the key
// of the final segment of the last analyzed voice is taken as the end
// key, and the earliest segment matching it (scanning voices in order)
// sets the result. Pieces that end in their tonic therefore report that
// tonic even when they open elsewhere. Falls back to the first segment
// found, then to C major for pieces with no segments at all.
func GlobalKey(segments [][]KeySegment) (theory.Key, float64) {
	var endKey theory.Key
	endFound := false
	for v := len(segments) - 1; v >= 0 && !endFound; v-- {
		if len(segments[v]) > 0 {
			last := segments[v][len(segments[v])-1]
			endKey = last.Key
			endFound = true
		}
	}
	if !endFound {
		return theory.Key{Tonic: 0, Mode: theory.ModeMajor}, 0
	}

	var first *KeySegment
	for v := range segments {
		for i := range segments[v] {
			seg := &segments[v][i]
			if first == nil {
				first = seg
			}
			if seg.Key == endKey {
				return seg.Key, seg.Confidence
			}
		}
	}
	return first.Key, first.Confidence
}

// segmentFor returns the key covering a note index, preferring the
// covering segment, then the first segment, then C major.
func segmentFor(segments []KeySegment, index int) theory.Key {
	for _, seg := range segments {
		if index >= seg.Start && index <= seg.End {
			return seg.Key
		}
	}
	if len(segments) > 0 {
		return segments[0].Key
	}
	return theory.Key{Tonic: 0, Mode: theory.ModeMajor}
}

func floorMod12(p int) int {
	m := p % 12
	if m < 0 {
		m += 12
	}
	return m
}
