// Package codec implements the midimotif encode/decode driver: motif
// compression over analyzed voices and the serialized document format.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/james-see/midimotif/pkg/theory"
)

// KeyInfo is the serialized form of a key context
type KeyInfo struct {
	Tonic string `json:"tonic"`
	Mode  string `json:"mode"`
}

// keyInfoFor renders a theory key into its document form
func keyInfoFor(key theory.Key) KeyInfo {
	return KeyInfo{Tonic: key.TonicName(), Mode: key.Mode.String()}
}

// Key parses the serialized key back into a theory key
func (k KeyInfo) Key() (theory.Key, error) {
	return theory.ParseKey(k.Tonic, k.Mode)
}

// KeyChange records one detected key segment of one voice
type KeyChange struct {
	Tonic      string  `json:"tonic"`
	Mode       string  `json:"mode"`
	Voice      int     `json:"voice"`
	StartNote  int     `json:"startNote"`
	EndNote    int     `json:"endNote"`
	Confidence float64 `json:"confidence"`
}

// MotifEntry is one canonical motif definition in the library. All five
// arrays have one element per motif note; deg_rels[0] and deltas[0] are
// always zero, the first note's absolute pitch and onset delta come from
// each reference.
type MotifEntry struct {
	DegRels []int `json:"deg_rels"`
	Accs    []int `json:"accs"`
	Deltas  []int `json:"deltas"`
	Durs    []int `json:"durs"`
	Vels    []int `json:"vels"`
}

// Len returns the motif's note count
func (e MotifEntry) Len() int { return len(e.DegRels) }

// Literal is a single note carried verbatim in a compressed voice
type Literal struct {
	Delta int `json:"delta"`
	Pitch int `json:"pitch"`
	Dur   int `json:"dur"`
	Vel   int `json:"vel"`
}

// MotifRef replaces a run of notes with a motif library reference plus
// the anchor data needed to re-expand it exactly.
type MotifRef struct {
	MotifID  int `json:"motif_id"`
	BaseMIDI int `json:"base_midi"`
	Delta    int `json:"delta"`
}

// VoiceItem is the tagged union of a compressed voice: exactly one of
// Literal or Ref is set.
type VoiceItem struct {
	Literal *Literal
	Ref     *MotifRef
}

// MarshalJSON emits the union without a discriminator field; decoders
// distinguish items by the presence of motif_id.
func (v VoiceItem) MarshalJSON() ([]byte, error) {
	if v.Ref != nil {
		return json.Marshal(v.Ref)
	}
	if v.Literal != nil {
		return json.Marshal(v.Literal)
	}
	return nil, fmt.Errorf("voice item has neither literal nor reference")
}

// UnmarshalJSON distinguishes references from literals by key presence
// and accepts pitches written either as MIDI numbers or as scientific
// pitch names.
func (v *VoiceItem) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if _, ok := raw["motif_id"]; ok {
		var ref MotifRef
		if err := json.Unmarshal(data, &ref); err != nil {
			return err
		}
		if base, ok := raw["base_pitch"]; ok {
			pitch, err := parsePitchValue(base)
			if err != nil {
				return err
			}
			ref.BaseMIDI = pitch
		}
		v.Ref = &ref
		return nil
	}

	var lit struct {
		Delta int             `json:"delta"`
		Pitch json.RawMessage `json:"pitch"`
		Dur   int             `json:"dur"`
		Vel   int             `json:"vel"`
	}
	if err := json.Unmarshal(data, &lit); err != nil {
		return err
	}
	pitch, err := parsePitchValue(lit.Pitch)
	if err != nil {
		return err
	}
	v.Literal = &Literal{Delta: lit.Delta, Pitch: pitch, Dur: lit.Dur, Vel: lit.Vel}
	return nil
}

// parsePitchValue accepts a pitch serialized as either an integer MIDI
// number or a scientific pitch name like "C4".
func parsePitchValue(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("missing pitch value")
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("pitch is neither number nor name: %s", raw)
	}
	return theory.ParsePitch(s)
}

// Document is the serialized compressed piece
type Document struct {
	PPQ                int           `json:"ppq"`
	Tempo              int           `json:"tempo"`
	Key                KeyInfo       `json:"key"`
	KeyChanges         []KeyChange   `json:"keyChanges"`
	Motifs             []MotifEntry  `json:"motifs"`
	Voices             [][]VoiceItem `json:"voices"`
	OriginalTrackCount int           `json:"originalTrackCount"`
	VoiceToTrack       []int         `json:"voiceToTrack"`
	TrackNames         []string      `json:"trackNames"`
}

// Marshal renders the document as indented JSON
func (d *Document) Marshal() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// ParseDocument reads a serialized document
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &doc, nil
}
