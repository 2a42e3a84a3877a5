package session

// Input is an acquired audio input stream. Exactly one may be open per
// session; the controller closes the previous stream before acquiring a
// new one.
type Input interface {
	// Samples returns the most recent window of time-domain samples.
	Samples() []float64

	// Volume returns the running RMS input level.
	Volume() float64

	// Close releases the device. Idempotent.
	Close() error
}

// InputSource acquires an input stream, typically a microphone. Acquisition
// failures are recoverable: the session stays idle and reports status text.
type InputSource interface {
	Acquire() (Input, error)
}

// InputSourceFunc adapts a function to the InputSource interface.
type InputSourceFunc func() (Input, error)

// Acquire calls f.
func (f InputSourceFunc) Acquire() (Input, error) {
	return f()
}
