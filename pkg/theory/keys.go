// Package theory provides the music-theory primitives for midimotif:
// key/scale tables, pitch-class naming and the diatonic pitch codec.
package theory

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode represents the scale mode of a key
type Mode int

const (
	ModeMajor Mode = iota
	ModeMinor
)

// String returns the lowercase mode name used in serialized documents
func (m Mode) String() string {
	if m == ModeMinor {
		return "minor"
	}
	return "major"
}

// ParseMode parses a mode name ("major" or "minor")
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "major", "maj":
		return ModeMajor, nil
	case "minor", "min":
		return ModeMinor, nil
	default:
		return ModeMajor, fmt.Errorf("unknown mode %q", s)
	}
}

// Semitone offsets of the seven scale tones from the tonic.
var (
	majorOffsets = [7]int{0, 2, 4, 5, 7, 9, 11}
	minorOffsets = [7]int{0, 2, 3, 5, 7, 8, 11}
)

// pitchClassNames uses sharps only; enharmonic spelling is not
// significant anywhere in the codec, only the pitch class number is.
var pitchClassNames = [12]string{
	"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B",
}

var flatAliases = map[string]int{
	"DB": 1, "EB": 3, "GB": 6, "AB": 8, "BB": 10, "CB": 11, "FB": 4,
	"E#": 5, "B#": 0,
}

// Key is a tonic pitch class plus a mode
type Key struct {
	Tonic int  // pitch class 0-11, 0 = C
	Mode  Mode
}

// Name returns the human-readable key name, e.g. "C major"
func (k Key) Name() string {
	return pitchClassNames[floorMod(k.Tonic, 12)] + " " + k.Mode.String()
}

// TonicName returns the tonic pitch-class name, e.g. "F#"
func (k Key) TonicName() string {
	return pitchClassNames[floorMod(k.Tonic, 12)]
}

// ScaleOffsets returns the seven semitone offsets of the key's scale
func (k Key) ScaleOffsets() [7]int {
	if k.Mode == ModeMinor {
		return minorOffsets
	}
	return majorOffsets
}

// PitchClasses returns membership of each pitch class in the key's scale
func (k Key) PitchClasses() [12]bool {
	var in [12]bool
	for _, off := range k.ScaleOffsets() {
		in[floorMod(k.Tonic+off, 12)] = true
	}
	return in
}

// AllKeys returns all 24 keys in canonical order: the 12 major keys by
// ascending tonic, then the 12 minor keys. Key estimation iterates this
// slice in order so that score ties resolve deterministically.
func AllKeys() []Key {
	keys := make([]Key, 0, 24)
	for _, mode := range []Mode{ModeMajor, ModeMinor} {
		for tonic := 0; tonic < 12; tonic++ {
			keys = append(keys, Key{Tonic: tonic, Mode: mode})
		}
	}
	return keys
}

// ParseTonic parses a pitch-class name like "C", "F#" or "Bb"
func ParseTonic(name string) (int, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	for pc, pcName := range pitchClassNames {
		if n == pcName {
			return pc, nil
		}
	}
	if pc, ok := flatAliases[n]; ok {
		return pc, nil
	}
	return 0, fmt.Errorf("unknown pitch class %q", name)
}

// ParseKey parses a tonic name and mode name into a Key
func ParseKey(tonic, mode string) (Key, error) {
	pc, err := ParseTonic(tonic)
	if err != nil {
		return Key{}, err
	}
	m, err := ParseMode(mode)
	if err != nil {
		return Key{}, err
	}
	return Key{Tonic: pc, Mode: m}, nil
}

// PitchName returns scientific pitch notation for a MIDI pitch,
// e.g. 60 -> "C4"
func PitchName(pitch int) string {
	pc := floorMod(pitch, 12)
	octave := floorDiv(pitch, 12) - 1
	return pitchClassNames[pc] + strconv.Itoa(octave)
}

// ParsePitch parses scientific pitch notation back into a MIDI pitch,
// e.g. "C4" -> 60, "F#-1" -> 6
func ParsePitch(s string) (int, error) {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && (s[i] < '0' || s[i] > '9') && s[i] != '-' {
		i++
	}
	if i == 0 || i == len(s) {
		return 0, fmt.Errorf("invalid pitch %q", s)
	}
	pc, err := ParseTonic(s[:i])
	if err != nil {
		return 0, err
	}
	octave, err := strconv.Atoi(s[i:])
	if err != nil {
		return 0, fmt.Errorf("invalid pitch %q: %w", s, err)
	}
	return pc + (octave+1)*12, nil
}
