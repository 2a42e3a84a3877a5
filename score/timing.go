package score

import (
	"sync"
	"time"
)

// EventFunc receives each note event at its onset boundary. A nil event is
// the end-of-piece sentinel, delivered exactly once after the final event's
// duration has elapsed.
type EventFunc func(*NoteEvent)

// Callbacks drives a tempo-scaled walk over a score's events, invoking the
// subscriber at each event boundary. It is the playback clock of a practice
// session: the session controller subscribes and mirrors the expected note
// from it.
type Callbacks struct {
	mu sync.Mutex

	score     *Score
	msPerBeat float64
	fn        EventFunc

	timer   *time.Timer
	startAt time.Time
	next    int
	started bool
	stopped bool
}

// NewCallbacks prepares a callback walk over s at the given tempo. fn must
// be non-nil.
func NewCallbacks(s *Score, qpm int, fn EventFunc) *Callbacks {
	return &Callbacks{
		score:     s,
		msPerBeat: MillisecondsPerBeat(qpm),
		fn:        fn,
	}
}

// Start begins the walk. The first event fires after its own onset offset,
// so a score starting with a pickup rest is honored. Start on a started or
// stopped walk is a no-op.
func (c *Callbacks) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.stopped {
		return
	}
	c.started = true
	c.startAt = time.Now()
	c.schedule()
}

// Stop cancels any pending boundary callback. Idempotent; no callback is
// delivered after Stop returns.
func (c *Callbacks) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// schedule arms the timer for the next boundary. Caller holds the mutex.
func (c *Callbacks) schedule() {
	var atBeats float64
	if c.next < len(c.score.Events) {
		atBeats = c.score.Events[c.next].OnsetBeats
	} else {
		atBeats = c.score.TotalBeats()
	}

	at := time.Duration(atBeats*c.msPerBeat) * time.Millisecond
	delay := at - time.Since(c.startAt)
	if delay < 0 {
		delay = 0
	}
	c.timer = time.AfterFunc(delay, c.fire)
}

func (c *Callbacks) fire() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}

	if c.next >= len(c.score.Events) {
		c.stopped = true
		c.timer = nil
		fn := c.fn
		c.mu.Unlock()
		fn(nil)
		return
	}

	event := c.score.Events[c.next]
	c.next++
	c.schedule()
	fn := c.fn
	c.mu.Unlock()

	fn(&event)
}
