package dsp

import "math"

// Meter tracks the running input volume as a decaying RMS level, the
// same shape as a web audio volume meter: the level jumps to the frame
// RMS when louder and decays geometrically when quieter.
type Meter struct {
	averaging float64
	volume    float64
}

// DefaultAveraging is the per-frame decay factor of the meter.
const DefaultAveraging = 0.95

// NewMeter creates a volume meter. averaging in (0,1); values outside
// that range fall back to DefaultAveraging.
func NewMeter(averaging float64) *Meter {
	if averaging <= 0 || averaging >= 1 {
		averaging = DefaultAveraging
	}
	return &Meter{averaging: averaging}
}

// Process folds one frame of samples into the running level and returns
// the updated volume.
func (m *Meter) Process(samples []float64) float64 {
	rms := RMS(samples)
	if rms > m.volume {
		m.volume = rms
	} else {
		m.volume *= m.averaging
	}
	return m.volume
}

// Volume returns the current running level.
func (m *Meter) Volume() float64 {
	return m.volume
}

// Reset zeroes the running level.
func (m *Meter) Reset() {
	m.volume = 0
}

// RMS computes the root-mean-square level of a frame.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, s := range samples {
		sumSquares += s * s
	}
	return math.Sqrt(sumSquares / float64(len(samples)))
}
