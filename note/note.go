// Package note maps between frequencies, MIDI note numbers and display
// names in 12-tone equal temperament.
package note

import (
	"fmt"
	"math"
)

// Number is a MIDI note number: the semitone distance from C-1, with
// A4 = 69. Zero is the silence sentinel.
type Number int

// Silence marks the absence of a detected or expected pitch.
const Silence Number = 0

// SilenceMark is the display form of Silence.
const SilenceMark = "-"

// A4Frequency is the reference tuning pitch in Hz.
const A4Frequency = 440.0

// a4Number is the MIDI note number of the reference pitch.
const a4Number = 69

var pitchClasses = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// FromFrequency converts a frequency in Hz to the nearest note number.
// Non-positive frequencies map to Silence.
func FromFrequency(freq float64) Number {
	if freq <= 0 {
		return Silence
	}
	return Number(math.Round(12*math.Log2(freq/A4Frequency))) + a4Number
}

// Frequency returns the equal-temperament frequency of the note in Hz,
// or 0 for Silence.
func (n Number) Frequency() float64 {
	if n == Silence {
		return 0
	}
	return A4Frequency * math.Pow(2, float64(n-a4Number)/12)
}

// PitchClass returns one of the 12 pitch class names, cyclic modulo 12.
func (n Number) PitchClass() string {
	return pitchClasses[((int(n)%12)+12)%12]
}

// Octave returns the scientific pitch octave, C4 = middle C.
func (n Number) Octave() int {
	return int(n)/12 - 1
}

// String renders the note as pitch class plus octave, e.g. "A4", or the
// silence mark for Silence.
func (n Number) String() string {
	if n == Silence {
		return SilenceMark
	}
	return fmt.Sprintf("%s%d", n.PitchClass(), n.Octave())
}

// Cents returns the signed offset of freq from the note's tempered
// frequency in cents. Tuner display uses this; 0 for Silence or
// non-positive freq.
func (n Number) Cents(freq float64) float64 {
	if n == Silence || freq <= 0 {
		return 0
	}
	return 1200 * math.Log2(freq/n.Frequency())
}
