// Package midifile is the I/O boundary of midimotif: it reads standard
// MIDI files into separated monophonic voices and writes decoded voices
// back out. No compression logic lives here.
package midifile

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/james-see/midimotif/pkg/model"
)

// DefaultPPQ is used when writing a piece that carries no resolution
const DefaultPPQ = 480

// DefaultTempo is used when the source file has no tempo event
const DefaultTempo = 120

// rawNote is a paired note-on/off before voice separation
type rawNote struct {
	pitch    int
	start    int
	duration int
	velocity int
}

// Read parses MIDI data into a piece: per-track note pairing, then a
// greedy monophonic split of each track into voices. Notes sort by onset
// then pitch, and each note goes to the first voice that is free at its
// onset, so the split is deterministic.
func Read(data []byte) (model.Piece, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return model.Piece{}, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	piece := model.Piece{
		PPQ:        DefaultPPQ,
		Tempo:      DefaultTempo,
		TrackCount: len(s.Tracks),
	}
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		piece.PPQ = int(mt.Resolution())
	}
	piece.TrackNames = make([]string, len(s.Tracks))

	for trackIdx, track := range s.Tracks {
		var absTicks int
		var notes []rawNote
		open := make(map[int]rawNote) // pitch -> sounding note

		for _, ev := range track {
			absTicks += int(ev.Delta)
			msg := ev.Message

			// Tempo meta event (FF 51 03 t t t)
			if len(msg) >= 6 && msg[0] == 0xFF && msg[1] == 0x51 && msg[2] == 0x03 {
				usPerBeat := uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5])
				if usPerBeat > 0 {
					piece.Tempo = int(60000000.0/float64(usPerBeat) + 0.5)
				}
				continue
			}
			// Track name meta event (FF 03 len ...)
			if len(msg) >= 3 && msg[0] == 0xFF && msg[1] == 0x03 {
				nameLen := int(msg[2])
				if 3+nameLen <= len(msg) && piece.TrackNames[trackIdx] == "" {
					piece.TrackNames[trackIdx] = string(msg[3 : 3+nameLen])
				}
				continue
			}

			var channel, key, velocity uint8
			switch {
			case msg.GetNoteOn(&channel, &key, &velocity) && velocity > 0:
				// A retriggered pitch closes the sounding note first
				if n, ok := open[int(key)]; ok {
					n.duration = absTicks - n.start
					notes = append(notes, n)
				}
				open[int(key)] = rawNote{pitch: int(key), start: absTicks, velocity: int(velocity)}
			case msg.GetNoteOff(&channel, &key, &velocity),
				msg.GetNoteOn(&channel, &key, &velocity): // note-on velocity 0
				if n, ok := open[int(key)]; ok {
					n.duration = absTicks - n.start
					notes = append(notes, n)
					delete(open, int(key))
				}
			}
		}
		// close anything left hanging at end of track
		for _, n := range open {
			n.duration = absTicks - n.start
			notes = append(notes, n)
		}

		piece.Voices = append(piece.Voices, separate(notes, trackIdx, piece.TrackNames[trackIdx])...)
	}

	return piece, nil
}

// separate splits one track's notes into monophonic voices: each note
// lands in the first voice whose previous note has ended by its onset.
func separate(notes []rawNote, track int, name string) []model.Voice {
	if len(notes) == 0 {
		return nil
	}
	sort.Slice(notes, func(i, j int) bool {
		if notes[i].start != notes[j].start {
			return notes[i].start < notes[j].start
		}
		return notes[i].pitch < notes[j].pitch
	})

	var voices [][]rawNote
	for _, n := range notes {
		placed := false
		for v := range voices {
			last := voices[v][len(voices[v])-1]
			if last.start+last.duration <= n.start {
				voices[v] = append(voices[v], n)
				placed = true
				break
			}
		}
		if !placed {
			voices = append(voices, []rawNote{n})
		}
	}

	out := make([]model.Voice, len(voices))
	for v, raw := range voices {
		voice := model.Voice{Track: track, Name: name, Notes: make([]model.Note, len(raw))}
		prevStart := 0
		for i, n := range raw {
			voice.Notes[i] = model.Note{
				Pitch:    n.pitch,
				Start:    n.start,
				Duration: n.duration,
				Velocity: n.velocity,
				Delta:    n.start - prevStart,
			}
			prevStart = n.start
		}
		out[v] = voice
	}
	return out
}

// ReadFile reads and parses a MIDI file from disk
func ReadFile(path string) (model.Piece, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Piece{}, fmt.Errorf("failed to read MIDI file: %w", err)
	}
	return Read(data)
}

// Write renders a piece back into standard MIDI bytes: one conductor
// track with tempo, then one track per voice.
func Write(piece model.Piece) ([]byte, error) {
	ppq := piece.PPQ
	if ppq <= 0 {
		ppq = DefaultPPQ
	}
	tempo := piece.Tempo
	if tempo <= 0 {
		tempo = DefaultTempo
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ppq)

	var conductor smf.Track
	usPerBeat := uint32(60000000 / tempo)
	conductor.Add(0, smf.Message([]byte{
		0xFF, 0x51, 0x03,
		byte(usPerBeat >> 16),
		byte(usPerBeat >> 8),
		byte(usPerBeat),
	}))
	conductor.Close(0)
	if err := s.Add(conductor); err != nil {
		return nil, fmt.Errorf("failed to add tempo track: %w", err)
	}

	for _, voice := range piece.Voices {
		var track smf.Track
		if voice.Name != "" {
			nameEvent := append([]byte{0xFF, 0x03, byte(len(voice.Name))}, voice.Name...)
			track.Add(0, smf.Message(nameEvent))
		}

		type event struct {
			tick int
			off  bool
			note model.Note
		}
		events := make([]event, 0, len(voice.Notes)*2)
		for _, n := range voice.Notes {
			events = append(events, event{tick: n.Start, note: n})
			events = append(events, event{tick: n.Start + n.Duration, off: true, note: n})
		}
		// note-offs sort ahead of note-ons at the same tick
		sort.SliceStable(events, func(i, j int) bool {
			if events[i].tick != events[j].tick {
				return events[i].tick < events[j].tick
			}
			return events[i].off && !events[j].off
		})

		currentTick := 0
		for _, ev := range events {
			delta := uint32(ev.tick - currentTick)
			if ev.off {
				track.Add(delta, midi.NoteOff(0, uint8(ev.note.Pitch)))
			} else {
				track.Add(delta, midi.NoteOn(0, uint8(ev.note.Pitch), uint8(ev.note.Velocity)))
			}
			currentTick = ev.tick
		}
		track.Close(0)
		if err := s.Add(track); err != nil {
			return nil, fmt.Errorf("failed to add voice track: %w", err)
		}
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes a piece to a MIDI file on disk
func WriteFile(piece model.Piece, path string) error {
	data, err := Write(piece)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
