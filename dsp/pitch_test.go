package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq float64, sampleRate, n int, amp float64) []float64 {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return samples
}

func TestDetectSine(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEstimator(cfg)

	for _, target := range []float64{110.0, 220.0, 440.0, 659.26} {
		samples := sine(target, cfg.SampleRate, 4096, 0.8)
		freq, ok := e.Detect(samples, 0.5)
		require.True(t, ok, "expected pitch at %.2f Hz", target)
		assert.InDelta(t, target, freq, target*0.02)
	}
}

func TestDetectHPSSine(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Method = MethodHPS
	e := NewEstimator(cfg)

	samples := sine(440.0, cfg.SampleRate, 4096, 0.8)
	// HPS needs harmonics; add a couple so the product is meaningful
	for i := range samples {
		samples[i] += 0.4 * math.Sin(2*math.Pi*880.0*float64(i)/float64(cfg.SampleRate))
		samples[i] += 0.2 * math.Sin(2*math.Pi*1320.0*float64(i)/float64(cfg.SampleRate))
	}
	freq, ok := e.Detect(samples, 0.5)
	require.True(t, ok)
	assert.InDelta(t, 440.0, freq, 15.0)
}

func TestGateSilencesRegardlessOfBuffer(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEstimator(cfg)

	// A loud, clean tone in the buffer must still be reported as silence
	// when the measured volume is under the gate.
	samples := sine(440.0, cfg.SampleRate, 4096, 1.0)
	for _, v := range []float64{0, 0.01, cfg.GateThreshold - 1e-9} {
		freq, ok := e.Detect(samples, v)
		assert.False(t, ok, "volume %v", v)
		assert.Zero(t, freq)
	}
}

func TestDetectNoPeriodicSignal(t *testing.T) {
	e := NewEstimator(DefaultConfig())
	flat := make([]float64, 2048)
	_, ok := e.Detect(flat, 0.5)
	assert.False(t, ok)
}

func TestDetectRejectsOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFreq = 200
	cfg.MaxFreq = 300
	e := NewEstimator(cfg)

	samples := sine(440.0, cfg.SampleRate, 4096, 0.8)
	_, ok := e.Detect(samples, 0.5)
	assert.False(t, ok)
}

func TestMeterRisesAndDecays(t *testing.T) {
	m := NewMeter(0.5)

	loud := sine(440.0, 44100, 1024, 0.9)
	quiet := make([]float64, 1024)

	v1 := m.Process(loud)
	assert.Greater(t, v1, 0.5)

	v2 := m.Process(quiet)
	assert.InDelta(t, v1*0.5, v2, 1e-9)

	m.Reset()
	assert.Zero(t, m.Volume())
}

func TestRMS(t *testing.T) {
	assert.Zero(t, RMS(nil))
	assert.InDelta(t, 1.0, RMS([]float64{1, -1, 1, -1}), 1e-12)
	// Full-scale sine has RMS 1/sqrt(2)
	assert.InDelta(t, 1/math.Sqrt2, RMS(sine(100, 44100, 44100, 1.0)), 0.01)
}

func TestHannWindowEdges(t *testing.T) {
	w := HannWindow(64)
	assert.InDelta(t, 0, w[0], 1e-12)
	assert.InDelta(t, 0, w[63], 1e-12)
	assert.InDelta(t, 1, w[31], 0.01)
}
