package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sightread/sightread/note"
)

const twinkle = `X:1
T:Twinkle
M:4/4
L:1/4
Q:100
K:C
C C G G | A A G2 | F F E E | D D C2 |
`

func TestParseABCHeaders(t *testing.T) {
	s, err := ParseABC(twinkle)
	require.NoError(t, err)

	assert.Equal(t, "Twinkle", s.Title)
	assert.Equal(t, 100, s.QPM)
	assert.Equal(t, Meter{4, 4}, s.Meter)
	assert.Equal(t, 4, s.BeatsPerMeasure())
}

func TestParseABCEvents(t *testing.T) {
	s, err := ParseABC(twinkle)
	require.NoError(t, err)

	require.Len(t, s.Events, 14)

	// C4 C4 G4 G4 A4 A4 G4 ...
	wantNotes := []note.Number{60, 60, 67, 67, 69, 69, 67}
	for i, want := range wantNotes {
		assert.Equal(t, want, s.Events[i].Number, "event %d", i)
	}

	// L:1/4 quarter notes: one beat apart, the G2 lasts two beats
	assert.Equal(t, 0.0, s.Events[0].OnsetBeats)
	assert.Equal(t, 1.0, s.Events[1].OnsetBeats)
	assert.Equal(t, 6.0, s.Events[6].OnsetBeats)
	assert.Equal(t, 2.0, s.Events[6].DurationBeats)
	assert.Equal(t, 16.0, s.TotalBeats())
}

func TestParseABCRests(t *testing.T) {
	s, err := ParseABC("X:1\nL:1/4\nK:C\nC z C z2 C\n")
	require.NoError(t, err)

	require.Len(t, s.Events, 5)
	assert.False(t, s.Events[0].IsRest())
	assert.True(t, s.Events[1].IsRest())
	assert.True(t, s.Events[3].IsRest())
	assert.Equal(t, 2.0, s.Events[3].DurationBeats)
	assert.Equal(t, 5.0, s.Events[4].OnsetBeats)
}

func TestParseABCAccidentalsAndOctaves(t *testing.T) {
	s, err := ParseABC("X:1\nL:1/4\nK:C\n^C _D =E c C, c'\n")
	require.NoError(t, err)

	require.Len(t, s.Events, 6)
	assert.Equal(t, note.Number(61), s.Events[0].Number) // C#4
	assert.Equal(t, note.Number(61), s.Events[1].Number) // Db4
	assert.Equal(t, note.Number(64), s.Events[2].Number) // E4
	assert.Equal(t, note.Number(72), s.Events[3].Number) // C5
	assert.Equal(t, note.Number(48), s.Events[4].Number) // C3
	assert.Equal(t, note.Number(84), s.Events[5].Number) // C6
}

func TestParseABCKeySignature(t *testing.T) {
	// In D major F and C are sharp; the natural sign and the bar reset
	// explicit accidentals.
	s, err := ParseABC("X:1\nL:1/4\nK:D\nF C =F F | F\n")
	require.NoError(t, err)

	require.Len(t, s.Events, 5)
	assert.Equal(t, note.Number(66), s.Events[0].Number) // F#4 from key
	assert.Equal(t, note.Number(61), s.Events[1].Number) // C#4 from key
	assert.Equal(t, note.Number(65), s.Events[2].Number) // F4 natural
	assert.Equal(t, note.Number(65), s.Events[3].Number) // natural holds in measure
	assert.Equal(t, note.Number(66), s.Events[4].Number) // F#4 again after bar
}

func TestParseABCMinorKey(t *testing.T) {
	// E minor carries one sharp (F#)
	s, err := ParseABC("X:1\nL:1/4\nK:Em\nF C\n")
	require.NoError(t, err)

	assert.Equal(t, note.Number(66), s.Events[0].Number)
	assert.Equal(t, note.Number(60), s.Events[1].Number)
}

func TestParseABCChordFirstPitchWins(t *testing.T) {
	s, err := ParseABC("X:1\nL:1/4\nK:C\n[CEG] [GB]\n")
	require.NoError(t, err)

	require.Len(t, s.Events, 2)
	assert.Equal(t, note.Number(60), s.Events[0].Number)
	assert.Equal(t, note.Number(67), s.Events[1].Number)
}

func TestParseABCFractionalDurations(t *testing.T) {
	s, err := ParseABC("X:1\nL:1/8\nK:C\nC2 C/2 C/ C3/2\n")
	require.NoError(t, err)

	require.Len(t, s.Events, 4)
	assert.Equal(t, 1.0, s.Events[0].DurationBeats)
	assert.Equal(t, 0.25, s.Events[1].DurationBeats)
	assert.Equal(t, 0.25, s.Events[2].DurationBeats)
	assert.Equal(t, 0.75, s.Events[3].DurationBeats)
}

func TestParseABCIgnoresAnnotations(t *testing.T) {
	s, err := ParseABC("X:1\nL:1/4\nK:C\n\"Am\" C {DE}F !trill!G\n")
	require.NoError(t, err)

	require.Len(t, s.Events, 3)
	assert.Equal(t, note.Number(60), s.Events[0].Number)
	assert.Equal(t, note.Number(65), s.Events[1].Number)
	assert.Equal(t, note.Number(67), s.Events[2].Number)
}

func TestParseABCNoEvents(t *testing.T) {
	_, err := ParseABC("X:1\nK:C\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoEvents)

	_, err = ParseABC("complete garbage, no key, no notes: 12345")
	require.Error(t, err)
}

func TestParseTempoDirective(t *testing.T) {
	assert.Equal(t, 120, ParseTempo("X:1\nQ:120\nK:C\nCDE\n"))
	assert.Equal(t, 90, ParseTempo("Q: 1/4=90\n"))
	assert.Equal(t, 0, ParseTempo("X:1\nK:C\nCDE\n"))
}

func TestParseMeterVariants(t *testing.T) {
	assert.Equal(t, Meter{4, 4}, parseMeter("C"))
	assert.Equal(t, Meter{2, 2}, parseMeter("C|"))
	assert.Equal(t, Meter{6, 8}, parseMeter("6/8"))
	assert.Equal(t, Meter{4, 4}, parseMeter("junk"))
}

func TestMillisecondsPerBeat(t *testing.T) {
	assert.Equal(t, 1000.0, MillisecondsPerBeat(60))
	assert.Equal(t, 500.0, MillisecondsPerBeat(120))
	// non-positive tempo falls back to the default
	assert.Equal(t, 1000.0, MillisecondsPerBeat(0))
}

func TestMillisecondsPerMeasure(t *testing.T) {
	s := &Score{Meter: Meter{3, 4}}
	assert.Equal(t, 3000.0, s.MillisecondsPerMeasure(60))
}
