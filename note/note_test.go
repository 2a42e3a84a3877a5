package note

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFrequencyA4(t *testing.T) {
	assert.Equal(t, Number(69), FromFrequency(440.0))
}

func TestFromFrequencyNonPositive(t *testing.T) {
	assert.Equal(t, Silence, FromFrequency(0))
	assert.Equal(t, Silence, FromFrequency(-12.5))
}

func TestFromFrequencyKnownPitches(t *testing.T) {
	cases := []struct {
		freq float64
		want Number
		name string
	}{
		{261.63, 60, "C4"},
		{220.0, 57, "A3"},
		{880.0, 81, "A5"},
		{82.41, 40, "E2"},
		{1975.53, 95, "B6"},
	}
	for _, c := range cases {
		n := FromFrequency(c.freq)
		assert.Equal(t, c.want, n, c.name)
		assert.Equal(t, c.name, n.String())
	}
}

func TestRoundTripAtIntegerBoundaries(t *testing.T) {
	for n := Number(21); n <= 108; n++ {
		got := FromFrequency(n.Frequency())
		require.Equal(t, n, got, "note %d", n)
	}
}

func TestDisplayDeterminism(t *testing.T) {
	for _, freq := range []float64{27.5, 440.0, 441.3, 466.16, 4186.0} {
		first := FromFrequency(freq).String()
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, FromFrequency(freq).String())
		}
	}
}

func TestSilenceDisplay(t *testing.T) {
	assert.Equal(t, "-", Silence.String())
}

func TestOctaveBoundary(t *testing.T) {
	// B3 -> C4: one semitone crosses the octave name boundary
	assert.Equal(t, "B3", Number(59).String())
	assert.Equal(t, "C4", Number(60).String())
}

func TestCents(t *testing.T) {
	assert.InDelta(t, 0, Number(69).Cents(440.0), 1e-9)
	assert.InDelta(t, 100, Number(69).Cents(440.0*math.Pow(2, 1.0/12)), 1e-6)
	assert.InDelta(t, -100, Number(69).Cents(440.0*math.Pow(2, -1.0/12)), 1e-6)
	assert.Zero(t, Silence.Cents(440.0))
}
