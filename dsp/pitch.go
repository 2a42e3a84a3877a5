// Package dsp implements the pitch estimation front end of the practice
// engine: a gated fundamental-frequency estimator and a running input
// volume meter.
package dsp

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// Method selects the fundamental-frequency estimation algorithm.
type Method int

const (
	// MethodYIN is the autocorrelation-family YIN estimator.
	// Reference: de Cheveigné, A., Kawahara, H. (2002). "YIN, a
	// fundamental frequency estimator for speech and music"
	MethodYIN Method = iota

	// MethodHPS is the frequency-domain harmonic product spectrum.
	MethodHPS
)

// Config contains parameters for the pitch estimator.
type Config struct {
	Method     Method `json:"method"`
	SampleRate int    `json:"sample_rate"`

	// Frequency range constraints
	MinFreq float64 `json:"min_freq"` // Minimum frequency (Hz)
	MaxFreq float64 `json:"max_freq"` // Maximum frequency (Hz)

	// YinThreshold is the absolute threshold on the cumulative mean
	// normalized difference function (0.1-0.5)
	YinThreshold float64 `json:"yin_threshold"`

	// GateThreshold is the minimum input volume; below it no frequency
	// analysis is attempted and the estimate is silence
	GateThreshold float64 `json:"gate_threshold"`

	// MaxHarmonics bounds the harmonic product for MethodHPS
	MaxHarmonics int `json:"max_harmonics"`
}

// DefaultConfig returns estimator parameters tuned for a monophonic
// instrument close to the microphone: the range spans a double bass low
// E through the top of a flute.
func DefaultConfig() Config {
	return Config{
		Method:        MethodYIN,
		SampleRate:    44100,
		MinFreq:       40.0,
		MaxFreq:       2100.0,
		YinThreshold:  0.15,
		GateThreshold: 0.075,
		MaxHarmonics:  5,
	}
}

// Estimator converts a window of time-domain samples plus the current
// input volume into a fundamental frequency estimate. It is a pure
// function of its inputs and configuration; the zero value is not usable,
// construct with NewEstimator.
type Estimator struct {
	cfg Config
}

// NewEstimator creates an estimator with the given configuration.
func NewEstimator(cfg Config) *Estimator {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultConfig().SampleRate
	}
	if cfg.MaxHarmonics <= 0 {
		cfg.MaxHarmonics = DefaultConfig().MaxHarmonics
	}
	return &Estimator{cfg: cfg}
}

// Config returns the estimator configuration.
func (e *Estimator) Config() Config {
	return e.cfg
}

// Detect returns the estimated fundamental frequency of samples in Hz.
// If volume is below the gate threshold the buffer is not analyzed and
// Detect reports silence. ok is false when no periodic signal inside the
// configured frequency range was found.
func (e *Estimator) Detect(samples []float64, volume float64) (freq float64, ok bool) {
	if volume < e.cfg.GateThreshold {
		return 0, false
	}
	if len(samples) < 64 {
		return 0, false
	}

	switch e.cfg.Method {
	case MethodHPS:
		freq = e.detectHPS(samples)
	default:
		freq = e.detectYIN(samples)
	}

	if freq < e.cfg.MinFreq || freq > e.cfg.MaxFreq {
		return 0, false
	}
	return freq, true
}

// detectYIN implements the YIN algorithm: difference function, cumulative
// mean normalized difference, absolute threshold, parabolic interpolation.
func (e *Estimator) detectYIN(frame []float64) float64 {
	n := len(frame)
	halfN := n / 2

	// Difference function
	diff := make([]float64, halfN)
	for tau := 0; tau < halfN; tau++ {
		sum := 0.0
		for j := 0; j < halfN; j++ {
			delta := frame[j] - frame[j+tau]
			sum += delta * delta
		}
		diff[tau] = sum
	}

	// Cumulative mean normalized difference function
	cmndf := make([]float64, halfN)
	cmndf[0] = 1.0

	runningSum := 0.0
	for tau := 1; tau < halfN; tau++ {
		runningSum += diff[tau]
		if runningSum == 0 {
			cmndf[tau] = 1.0
			continue
		}
		cmndf[tau] = diff[tau] / (runningSum / float64(tau))
	}

	// First minimum below threshold
	minTau := -1
	for tau := 1; tau < halfN; tau++ {
		if cmndf[tau] < e.cfg.YinThreshold {
			if tau+1 < halfN && cmndf[tau] < cmndf[tau+1] {
				minTau = tau
				break
			}
		}
	}
	if minTau <= 0 {
		return 0
	}

	period := parabolicInterpolation(cmndf, minTau)
	if period <= 0 {
		return 0
	}
	return float64(e.cfg.SampleRate) / period
}

// detectHPS computes the harmonic product spectrum over a Hann-windowed
// FFT and picks the strongest product bin inside the frequency range.
func (e *Estimator) detectHPS(frame []float64) float64 {
	windowed := make([]float64, len(frame))
	hann := HannWindow(len(frame))
	for i, s := range frame {
		windowed[i] = s * hann[i]
	}

	spectrum := fft.FFTReal(windowed)

	magnitude := make([]float64, len(spectrum)/2)
	for i := range magnitude {
		magnitude[i] = math.Hypot(real(spectrum[i]), imag(spectrum[i]))
	}

	hps := make([]float64, len(magnitude))
	copy(hps, magnitude)
	for h := 2; h <= e.cfg.MaxHarmonics; h++ {
		for i := 0; i < len(hps)/h; i++ {
			hps[i] *= magnitude[i*h]
		}
	}

	binHz := float64(e.cfg.SampleRate) / float64(len(frame))
	minBin := int(e.cfg.MinFreq / binHz)
	maxBin := int(e.cfg.MaxFreq / binHz)
	maxBin = min(maxBin, len(hps)-1)

	maxIdx := -1
	maxVal := 0.0
	for i := max(minBin, 1); i <= maxBin; i++ {
		if hps[i] > maxVal {
			maxVal = hps[i]
			maxIdx = i
		}
	}
	if maxIdx < 0 || maxVal == 0 {
		return 0
	}

	return parabolicInterpolation(hps, maxIdx) * binHz
}

// parabolicInterpolation refines a peak or valley location to sub-bin
// accuracy using its two neighbors.
func parabolicInterpolation(data []float64, peakIdx int) float64 {
	if peakIdx <= 0 || peakIdx >= len(data)-1 {
		return float64(peakIdx)
	}

	y1 := data[peakIdx-1]
	y2 := data[peakIdx]
	y3 := data[peakIdx+1]

	a := (y1 - 2*y2 + y3) / 2
	b := (y3 - y1) / 2

	if a == 0 {
		return float64(peakIdx)
	}

	return float64(peakIdx) - b/(2*a)
}

// HannWindow returns a Hann window of the given size.
func HannWindow(size int) []float64 {
	window := make([]float64, size)
	if size == 1 {
		window[0] = 1.0
		return window
	}
	for i := range window {
		window[i] = 0.5 * (1.0 - math.Cos(2.0*math.Pi*float64(i)/float64(size-1)))
	}
	return window
}
