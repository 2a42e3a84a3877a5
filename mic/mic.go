// Package mic captures microphone audio through the system audio backend
// and exposes it as the session engine's input stream: a sliding window of
// recent samples plus a running volume level.
package mic

import (
	"encoding/binary"
	"math"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/pkg/errors"

	"github.com/sightread/sightread/dsp"
	"github.com/sightread/sightread/logging"
	"github.com/sightread/sightread/session"
)

// DefaultWindowSize is the analysis window handed to the pitch estimator.
const DefaultWindowSize = 2048

// Config selects and shapes the capture device.
type Config struct {
	// Device matches a capture device by name substring; empty selects
	// the system default.
	Device string `json:"device"`

	SampleRate int `json:"sample_rate"`

	// WindowSize is the number of recent samples kept for analysis.
	WindowSize int `json:"window_size"`
}

// DefaultConfig returns capture parameters matching the pitch estimator
// defaults.
func DefaultConfig() Config {
	return Config{
		SampleRate: 44100,
		WindowSize: DefaultWindowSize,
	}
}

// Capture is an open microphone stream. It implements session.Input: the
// device callback folds incoming frames into a sliding window and the
// volume meter; readers take snapshots.
type Capture struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	log    logging.Logger

	mu     sync.Mutex
	window []float64
	meter  *dsp.Meter
	closed bool
}

// Open initializes the audio backend and starts capturing. The returned
// Capture owns the backend context; Close releases everything.
func Open(cfg Config, log logging.Logger) (*Capture, error) {
	if log == nil {
		log = logging.GetGlobalLogger()
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultConfig().SampleRate
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultWindowSize
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		log.Debug("audio backend", logging.Fields{"message": strings.TrimSpace(message)})
	})
	if err != nil {
		return nil, errors.Wrap(err, "init audio context")
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if cfg.Device != "" {
		info, err := findDevice(ctx, cfg.Device)
		if err != nil {
			freeContext(ctx)
			return nil, err
		}
		deviceConfig.Capture.DeviceID = info.ID.Pointer()
	}

	c := &Capture{
		ctx:    ctx,
		log:    log,
		window: make([]float64, cfg.WindowSize),
		meter:  dsp.NewMeter(dsp.DefaultAveraging),
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			if len(input) == 0 {
				return
			}
			c.push(decodeF32(input))
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		freeContext(ctx)
		return nil, errors.Wrap(err, "init capture device")
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		freeContext(ctx)
		return nil, errors.Wrap(err, "start capture device")
	}

	c.device = device
	log.Info("microphone capture started", logging.Fields{
		"sample_rate": cfg.SampleRate,
		"window":      cfg.WindowSize,
	})
	return c, nil
}

// Samples returns a copy of the current analysis window, oldest first.
func (c *Capture) Samples() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]float64, len(c.window))
	copy(out, c.window)
	return out
}

// Volume returns the running input level.
func (c *Capture) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meter.Volume()
}

// Close stops the device and releases the backend context. Safe to call
// more than once.
func (c *Capture) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.device != nil {
		c.device.Uninit()
	}
	freeContext(c.ctx)
	return nil
}

// push slides incoming samples into the window and updates the meter.
func (c *Capture) push(samples []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.meter.Process(samples)

	if len(samples) >= len(c.window) {
		copy(c.window, samples[len(samples)-len(c.window):])
		return
	}
	keep := len(c.window) - len(samples)
	copy(c.window, c.window[len(samples):])
	copy(c.window[keep:], samples)
}

// Source adapts the package to the session's input factory: each session
// run opens a fresh capture stream.
func Source(cfg Config, log logging.Logger) session.InputSource {
	return session.InputSourceFunc(func() (session.Input, error) {
		return Open(cfg, log)
	})
}

// ListDevices enumerates capture device names.
func ListDevices() ([]string, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "init audio context")
	}
	defer freeContext(ctx)

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, errors.Wrap(err, "enumerate capture devices")
	}
	names := make([]string, 0, len(infos))
	for i := range infos {
		name := infos[i].Name()
		if name == "" {
			name = "Unknown input"
		}
		names = append(names, name)
	}
	return names, nil
}

// findDevice matches a capture device by case-insensitive name substring.
func findDevice(ctx *malgo.AllocatedContext, name string) (*malgo.DeviceInfo, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, errors.Wrap(err, "enumerate capture devices")
	}
	needle := strings.ToLower(name)
	for i := range infos {
		if strings.Contains(strings.ToLower(infos[i].Name()), needle) {
			info := infos[i]
			return &info, nil
		}
	}
	return nil, errors.Errorf("no capture device matching %q", name)
}

func freeContext(ctx *malgo.AllocatedContext) {
	if ctx == nil {
		return
	}
	_ = ctx.Uninit()
	ctx.Free()
}

// decodeF32 converts little-endian 32-bit float PCM to float64 samples.
func decodeF32(data []byte) []float64 {
	n := len(data) / 4
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = float64(math.Float32frombits(bits))
	}
	return samples
}
