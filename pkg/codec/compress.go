package codec

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/james-see/midimotif/pkg/analysis"
	"github.com/james-see/midimotif/pkg/model"
	"github.com/james-see/midimotif/pkg/theory"
)

// occurrence is one placement of a motif in a voice, either the original
// extraction site (confidence 1) or a matched site.
type occurrence struct {
	motif      int // index into the candidate slice
	voice      int
	start      int
	length     int
	confidence float64
}

// buildEntry derives the canonical library entry from a motif's original
// notes under the document's global key. All notes must resolve
// diatonically; a motif touching an unresolvable pitch cannot be stored.
func buildEntry(notes []model.Note, key theory.Key) (MotifEntry, bool) {
	if len(notes) == 0 {
		return MotifEntry{}, false
	}
	base, ok := theory.PitchToDiatonic(notes[0].Pitch, key)
	if !ok {
		return MotifEntry{}, false
	}
	entry := MotifEntry{
		DegRels: make([]int, len(notes)),
		Accs:    make([]int, len(notes)),
		Deltas:  make([]int, len(notes)),
		Durs:    make([]int, len(notes)),
		Vels:    make([]int, len(notes)),
	}
	for i, n := range notes {
		pos, ok := theory.PitchToDiatonic(n.Pitch, key)
		if !ok {
			return MotifEntry{}, false
		}
		entry.DegRels[i] = pos.StepIndex() - base.StepIndex()
		entry.Accs[i] = pos.Accidental
		if i > 0 {
			entry.Deltas[i] = n.Delta
		}
		entry.Durs[i] = n.Duration
		entry.Vels[i] = n.Velocity
	}
	return entry, true
}

// expandEntry regenerates a motif's notes from an entry, base pitch and
// onset delta. Start ticks are left to the caller, which accumulates
// deltas over the whole voice. Returns false when the base pitch has no
// diatonic position in the key.
func expandEntry(entry MotifEntry, basePitch, startDelta int, key theory.Key) ([]model.Note, bool) {
	base, ok := theory.PitchToDiatonic(basePitch, key)
	if !ok {
		return nil, false
	}
	notes := make([]model.Note, entry.Len())
	for i := range notes {
		pitch := basePitch
		if i > 0 {
			pitch = theory.DiatonicToPitch(base.AddDegrees(entry.DegRels[i], entry.Accs[i]), key)
		}
		delta := startDelta
		if i > 0 {
			delta = entry.Deltas[i]
		}
		notes[i] = model.Note{
			Pitch:    pitch,
			Delta:    delta,
			Duration: entry.Durs[i],
			Velocity: entry.Vels[i],
		}
	}
	return notes, true
}

// verifyOccurrence checks that expanding the entry at the occurrence's
// own base pitch reproduces its notes exactly. This runs for every
// occurrence independently, the canonical entry included: transformed or
// dilated matches that cannot reproduce their source bit-exact are
// rejected here and stay literal.
func verifyOccurrence(entry MotifEntry, notes []model.Note, key theory.Key) bool {
	if len(notes) != entry.Len() {
		return false
	}
	expanded, ok := expandEntry(entry, notes[0].Pitch, notes[0].Delta, key)
	if !ok {
		return false
	}
	for i, n := range notes {
		e := expanded[i]
		if n.Pitch != e.Pitch || n.Delta != e.Delta || n.Duration != e.Duration || n.Velocity != e.Velocity {
			return false
		}
	}
	return true
}

// Compress selects the motif library and rewrites the voices as a mix of
// literal notes and motif references. Guarantees: no two kept occurrences
// overlap within one voice, every emitted reference has been verified to
// reconstruct its source notes exactly, and with NoMotifs set the output
// is literal-only with an empty library.
func Compress(voices []model.Voice, candidates []analysis.Motif, matches []analysis.Match, key theory.Key, opts model.Options) ([]MotifEntry, [][]VoiceItem) {
	if opts.NoMotifs {
		return nil, literalVoices(voices)
	}

	// Collect occurrence sets per motif: the extraction site plus every
	// distinct matched site.
	occsByMotif := make(map[int][]occurrence)
	seen := make(map[[3]int]bool)
	addOcc := func(o occurrence) {
		site := [3]int{o.motif, o.voice, o.start}
		if seen[site] {
			return
		}
		seen[site] = true
		occsByMotif[o.motif] = append(occsByMotif[o.motif], o)
	}
	for _, m := range matches {
		cand := candidates[m.Source]
		addOcc(occurrence{motif: m.Source, voice: cand.Voice, start: cand.Start, length: cand.Length, confidence: 1})
		addOcc(occurrence{motif: m.Source, voice: m.Voice, start: m.Start, length: cand.Length, confidence: m.Confidence})
	}

	// Retain motifs with enough support and high enough confidence.
	minOccs := opts.MinOccurrences + 1
	var retained []occurrence
	entries := make(map[int]MotifEntry)
	motifOrder := make([]int, 0, len(occsByMotif))
	for motif := range occsByMotif {
		motifOrder = append(motifOrder, motif)
	}
	sort.Ints(motifOrder)
	for _, motif := range motifOrder {
		occs := occsByMotif[motif]
		if len(occs) < minOccs {
			continue
		}
		confs := make([]float64, len(occs))
		for i, o := range occs {
			confs[i] = o.confidence
		}
		if stat.Mean(confs, nil) < opts.MinConfidence {
			continue
		}
		cand := candidates[motif]
		src := voices[cand.Voice].Notes[cand.Start : cand.Start+cand.Length]
		entry, ok := buildEntry(src, key)
		if !ok {
			continue
		}
		entries[motif] = entry
		retained = append(retained, occs...)
	}

	// Greedy selection by note savings; never claim overlapping ranges
	// within one voice. Ties resolve by position for determinism.
	sort.Slice(retained, func(i, j int) bool {
		a, b := retained[i], retained[j]
		if a.length != b.length {
			return a.length > b.length
		}
		if a.voice != b.voice {
			return a.voice < b.voice
		}
		if a.start != b.start {
			return a.start < b.start
		}
		return a.motif < b.motif
	})
	claimed := make([][]occurrence, len(voices))
	verifiedCount := make(map[int]int)
	for _, o := range retained {
		if overlapsAny(claimed[o.voice], o) {
			continue
		}
		notes := voices[o.voice].Notes[o.start : o.start+o.length]
		if !verifyOccurrence(entries[o.motif], notes, key) {
			continue
		}
		claimed[o.voice] = append(claimed[o.voice], o)
		verifiedCount[o.motif]++
	}

	// Drop motifs whose verified support fell below the threshold; their
	// claims revert to literals.
	motifIDs := make(map[int]int)
	var library []MotifEntry
	for _, motif := range motifOrder {
		if _, ok := entries[motif]; ok && verifiedCount[motif] >= minOccs {
			motifIDs[motif] = len(library)
			library = append(library, entries[motif])
		}
	}

	items := make([][]VoiceItem, len(voices))
	for v, voice := range voices {
		occAt := make(map[int]occurrence)
		for _, o := range claimed[v] {
			if _, ok := motifIDs[o.motif]; ok {
				occAt[o.start] = o
			}
		}
		var out []VoiceItem
		for i := 0; i < len(voice.Notes); {
			if o, ok := occAt[i]; ok {
				n := voice.Notes[i]
				out = append(out, VoiceItem{Ref: &MotifRef{
					MotifID:  motifIDs[o.motif],
					BaseMIDI: n.Pitch,
					Delta:    n.Delta,
				}})
				i += o.length
				continue
			}
			n := voice.Notes[i]
			out = append(out, VoiceItem{Literal: &Literal{
				Delta: n.Delta, Pitch: n.Pitch, Dur: n.Duration, Vel: n.Velocity,
			}})
			i++
		}
		items[v] = out
	}
	return library, items
}

func overlapsAny(claimed []occurrence, o occurrence) bool {
	for _, c := range claimed {
		if o.start < c.start+c.length && c.start < o.start+o.length {
			return true
		}
	}
	return false
}

// literalVoices renders every voice as literal items only
func literalVoices(voices []model.Voice) [][]VoiceItem {
	items := make([][]VoiceItem, len(voices))
	for v, voice := range voices {
		out := make([]VoiceItem, len(voice.Notes))
		for i, n := range voice.Notes {
			out[i] = VoiceItem{Literal: &Literal{
				Delta: n.Delta, Pitch: n.Pitch, Dur: n.Duration, Vel: n.Velocity,
			}}
		}
		items[v] = out
	}
	return items
}
