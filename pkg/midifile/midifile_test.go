package midifile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-see/midimotif/pkg/model"
)

func melodyVoice(name string, pitches []int, gap int) model.Voice {
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
	return model.Voice{Notes: notes, Name: name}
}

func TestWriteReadRoundTrip(t *testing.T) {
	piece := model.Piece{
		Voices: []model.Voice{
			melodyVoice("lead", []int{60, 62, 64, 65, 67}, 480),
			melodyVoice("bass", []int{48, 43, 48, 43}, 960),
		},
		PPQ:   480,
		Tempo: 90,
	}

	data, err := Write(piece)
	require.NoError(t, err)

	back, err := Read(data)
	require.NoError(t, err)

	assert.Equal(t, 480, back.PPQ)
	assert.Equal(t, 90, back.Tempo)
	// conductor track plus one track per voice
	assert.Equal(t, 3, back.TrackCount)

	require.Len(t, back.Voices, 2)
	for v := range piece.Voices {
		want := piece.Voices[v].Notes
		got := back.Voices[v].Notes
		require.Len(t, got, len(want), "voice %d", v)
		for i := range want {
			assert.Equal(t, want[i].Pitch, got[i].Pitch)
			assert.Equal(t, want[i].Start, got[i].Start)
			assert.Equal(t, want[i].Duration, got[i].Duration)
			assert.Equal(t, want[i].Velocity, got[i].Velocity)
			assert.Equal(t, want[i].Delta, got[i].Delta)
		}
		assert.Equal(t, piece.Voices[v].Name, back.Voices[v].Name)
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	_, err := Read([]byte("not a midi file"))
	assert.Error(t, err)
}

func TestSeparateMonophonic(t *testing.T) {
	// two overlapping lines on one track split into two voices
	notes := []rawNote{
		{pitch: 60, start: 0, duration: 960, velocity: 80},
		{pitch: 72, start: 480, duration: 240, velocity: 80},
		{pitch: 62, start: 960, duration: 960, velocity: 80},
		{pitch: 74, start: 1440, duration: 240, velocity: 80},
	}

	voices := separate(notes, 0, "piano")
	require.Len(t, voices, 2)

	first := voices[0]
	require.Len(t, first.Notes, 2)
	assert.Equal(t, 60, first.Notes[0].Pitch)
	assert.Equal(t, 62, first.Notes[1].Pitch)

	second := voices[1]
	require.Len(t, second.Notes, 2)
	assert.Equal(t, 72, second.Notes[0].Pitch)
	assert.Equal(t, 74, second.Notes[1].Pitch)

	// every produced voice satisfies the model invariants
	for _, v := range voices {
		assert.NoError(t, v.Validate())
		assert.Equal(t, 0, v.Track)
		assert.Equal(t, "piano", v.Name)
	}
}

func TestSeparateDeterministicOrder(t *testing.T) {
	// simultaneous onsets split by pitch, low voice first
	notes := []rawNote{
		{pitch: 72, start: 0, duration: 480, velocity: 80},
		{pitch: 60, start: 0, duration: 480, velocity: 80},
	}

	voices := separate(notes, 0, "")
	require.Len(t, voices, 2)
	assert.Equal(t, 60, voices[0].Notes[0].Pitch)
	assert.Equal(t, 72, voices[1].Notes[0].Pitch)
}

func TestSeparateEmpty(t *testing.T) {
	assert.Nil(t, separate(nil, 0, ""))
}
