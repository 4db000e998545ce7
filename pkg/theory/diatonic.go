package theory

// MaxAccidental is the largest semitone deviation from a scale tone that
// still resolves to a diatonic position (double sharp / double flat).
const MaxAccidental = 2

// Degree candidate search bounds for PitchToDiatonic. Three octaves of
// degrees either side of the tonic is more than any playable pitch needs.
const (
	minDegreeCandidate = -14
	maxDegreeCandidate = 21
)

// DiatonicPosition locates a pitch relative to a key: a signed scale
// degree (0 = tonic, not reduced to one octave), a semitone accidental in
// [-MaxAccidental, MaxAccidental] and an octave index. Degree and octave
// combine through floored division, so positions stay well defined for
// descending relative motion.
type DiatonicPosition struct {
	Degree     int
	Accidental int
	Octave     int
}

// AddDegrees returns the position shifted by a relative degree count with
// the given accidental. Octave carry is handled by DiatonicToPitch.
func (p DiatonicPosition) AddDegrees(rel, accidental int) DiatonicPosition {
	return DiatonicPosition{
		Degree:     p.Degree + rel,
		Accidental: accidental,
		Octave:     p.Octave,
	}
}

// StepIndex collapses degree and octave into a single diatonic step
// number, used when computing relative degrees between two positions.
func (p DiatonicPosition) StepIndex() int {
	return p.Degree + 7*p.Octave
}

// floorDiv divides rounding toward negative infinity. Truncating division
// is wrong here: for negative degrees it lands one octave high whenever
// the degree is not an exact multiple of seven.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// floorMod is the Euclidean companion of floorDiv, always in [0, b)
func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}

// PitchToDiatonic maps an absolute MIDI pitch to its diatonic position in
// the given key. It reports false when no scale degree lies within
// MaxAccidental semitones of the pitch.
//
// Among degree candidates the one with the smallest |accidental| wins,
// ties going to the smallest |degree|. The octave index is compensated by
// the candidate's octave carry so that DiatonicToPitch inverts the
// mapping exactly regardless of which candidate was chosen.
func PitchToDiatonic(pitch int, key Key) (DiatonicPosition, bool) {
	pitchClass := floorMod(pitch, 12)
	rawOctave := floorDiv(pitch, 12) - 1
	offsets := key.ScaleOffsets()

	bestDegree := 0
	bestAccidental := 0
	found := false

	for d := minDegreeCandidate; d <= maxDegreeCandidate; d++ {
		expected := floorMod(key.Tonic+offsets[floorMod(d, 7)], 12)
		accidental := floorMod(pitchClass-expected, 12)
		if accidental > 5 {
			accidental -= 12
		}
		if abs(accidental) > MaxAccidental {
			continue
		}
		if !found ||
			abs(accidental) < abs(bestAccidental) ||
			(abs(accidental) == abs(bestAccidental) && abs(d) < abs(bestDegree)) {
			bestDegree = d
			bestAccidental = accidental
			found = true
		}
	}
	if !found {
		return DiatonicPosition{}, false
	}
	return DiatonicPosition{
		Degree:     bestDegree,
		Accidental: bestAccidental,
		Octave:     rawOctave - floorDiv(bestDegree, 7),
	}, true
}

// DiatonicToPitch maps a diatonic position back to an absolute MIDI
// pitch under the given key. This is the inverse of PitchToDiatonic and
// the expansion primitive for motif references.
func DiatonicToPitch(pos DiatonicPosition, key Key) int {
	degreeMod := floorMod(pos.Degree, 7)
	octaveAdd := floorDiv(pos.Degree, 7)
	offsets := key.ScaleOffsets()
	pitchClass := floorMod(key.Tonic+offsets[degreeMod]+pos.Accidental, 12)
	return pitchClass + (pos.Octave+octaveAdd+1)*12
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
