// Package session implements the practice session engine: a state machine
// that synchronizes a countdown, playback timing callbacks, microphone
// pitch capture and note matching into a scored, resumable session.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/sightread/sightread/content"
	"github.com/sightread/sightread/dsp"
	"github.com/sightread/sightread/logging"
	"github.com/sightread/sightread/note"
	"github.com/sightread/sightread/playlist"
	"github.com/sightread/sightread/score"
	"github.com/sightread/sightread/stats"
)

// ErrNoScore is reported when start is requested with no score loaded.
// It is a state violation, not a failure: the session stays idle.
var ErrNoScore = errors.New("no score loaded")

// maxPlaylistDepth bounds nested playlist references.
const maxPlaylistDepth = 3

// Config holds the tunable parameters of a session.
type Config struct {
	Pitch dsp.Config `json:"pitch"`

	// PitchPollInterval is the cadence of reading the input stream into
	// the current-note value.
	PitchPollInterval time.Duration `json:"pitch_poll_interval"`

	// CheckInterval is the note matcher sampling cadence.
	CheckInterval time.Duration `json:"check_interval"`

	// AutoContinueDelay is the pause before an automatic restart after
	// advancing through the playlist.
	AutoContinueDelay time.Duration `json:"auto_continue_delay"`

	// StatsDebounce coalesces statistics refreshes triggered by rapid
	// tempo changes.
	StatsDebounce time.Duration `json:"stats_debounce"`

	RestPolicy RestPolicy `json:"rest_policy"`

	// OnCountdown, when set, observes each countdown beat, ending with 0.
	OnCountdown func(n int) `json:"-"`
}

// DefaultConfig returns the standard session parameters.
func DefaultConfig() Config {
	return Config{
		Pitch:             dsp.DefaultConfig(),
		PitchPollInterval: 10 * time.Millisecond,
		CheckInterval:     100 * time.Millisecond,
		AutoContinueDelay: 3 * time.Second,
		StatsDebounce:     250 * time.Millisecond,
		RestPolicy:        RestsExcluded,
	}
}

// Deps are the session's external collaborators. Source is required for
// anything involving the microphone; Content for loading by filename;
// Stats may be nil, which disables statistics and auto-continue.
type Deps struct {
	Source  InputSource
	Content content.Store
	Stats   *stats.Client
	Logger  logging.Logger
}

// Controller is the top-level session state machine. All public methods
// are safe for concurrent use; internally a single mutex serializes every
// transition, and timer callbacks check the session run identity so that
// stale ticks fired into a superseded session are discarded.
type Controller struct {
	mu  sync.Mutex
	cfg Config
	log logging.Logger

	estimator *dsp.Estimator
	source    InputSource
	content   content.Store
	stats     *stats.Client

	// run identifies the current activity epoch; bumped on every stop,
	// reset and load so in-flight timers and callbacks expire.
	run uuid.UUID

	// loadSeq invalidates in-flight content fetches and stats responses.
	loadSeq uint64

	phase Phase

	score     *score.Score
	rawSource string
	filename  string
	qpm       int
	userQPM   int

	input  Input
	timing *score.Callbacks

	countdown int
	scorer    scorer
	current   note.Number
	expected  note.Number
	volume    float64

	list         *playlist.Playlist
	autoContinue bool
	pendingAuto  uuid.UUID
	profile      string
	summary      *stats.Summary
	status       string

	debounced func(func())
}

// NewController creates an idle session controller.
func NewController(cfg Config, deps Deps) *Controller {
	log := deps.Logger
	if log == nil {
		log = logging.GetGlobalLogger()
	}
	if cfg.PitchPollInterval <= 0 {
		cfg.PitchPollInterval = DefaultConfig().PitchPollInterval
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultConfig().CheckInterval
	}
	if cfg.AutoContinueDelay <= 0 {
		cfg.AutoContinueDelay = DefaultConfig().AutoContinueDelay
	}
	if cfg.StatsDebounce <= 0 {
		cfg.StatsDebounce = DefaultConfig().StatsDebounce
	}

	c := &Controller{
		cfg:       cfg,
		log:       log,
		estimator: dsp.NewEstimator(cfg.Pitch),
		source:    deps.Source,
		content:   deps.Content,
		stats:     deps.Stats,
		run:       uuid.New(),
		countdown: CountdownInactive,
		scorer:    scorer{policy: cfg.RestPolicy},
		list:      playlist.New(nil),
		debounced: debounce.New(cfg.StatsDebounce),
	}
	return c
}

// Snapshot returns a copy of the current session status surface.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Phase:         c.phase,
		Countdown:     c.countdown,
		Current:       c.current,
		Expected:      c.expected,
		Volume:        c.volume,
		Checked:       c.scorer.checked,
		Correct:       c.scorer.correct,
		Percent:       c.scorer.percent(),
		QPM:           c.qpm,
		Filename:      c.filename,
		Status:        c.status,
		Stats:         c.summary,
		PlaylistIndex: c.list.Index(),
		PlaylistLen:   c.list.Len(),
		AutoContinue:  c.autoContinue,
		Profile:       c.profile,
	}
}

// Start toggles the session: from idle it begins the countdown, from
// countdown, playing or tuning it stops everything. With no score loaded
// it reports a status message and returns ErrNoScore without changing
// state.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingAuto = uuid.Nil

	switch c.phase {
	case PhaseCountdown, PhasePlaying, PhaseTuning:
		c.stopAllLocked("Stopped.")
		return nil
	default:
		if c.score == nil {
			c.status = "No score loaded."
			c.log.Warn("start requested with no score")
			return ErrNoScore
		}
		c.scorer.reset()
		c.beginCountdownLocked()
		return nil
	}
}

// Reset stops everything, zeroes the counters and returns to idle. The
// loaded score stays loaded.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopAllLocked("Reset.")
	c.scorer.reset()
}

// Tune toggles mic-only monitoring: no scoring, no playback. Useful for
// tuning an instrument against the note display.
func (c *Controller) Tune() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingAuto = uuid.Nil

	if c.phase == PhaseTuning {
		c.stopAllLocked("Tuner stopped.")
		return nil
	}
	if c.phase != PhaseIdle {
		c.status = "Stop the session before tuning."
		return nil
	}
	if err := c.acquireInputLocked(); err != nil {
		return err
	}
	c.phase = PhaseTuning
	c.status = "Tuner active."
	c.schedulePitchPollLocked()
	return nil
}

// LoadScore installs a score from raw ABC text, stopping any current
// activity first. On parse failure the session stays stopped and the
// prior score remains loaded.
func (c *Controller) LoadScore(source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopAllLocked("")

	parsed, err := score.ParseABC(source)
	if err != nil {
		c.status = "Unable to load score."
		c.log.Error(err, "score parse failed")
		return err
	}
	c.installLocked(parsed, source, "")
	return nil
}

// LoadFile resolves a filename through the content store and loads it:
// .pls as a playlist, .mid/.midi as a MIDI file, anything else as ABC
// text. The current session is stopped before the new content is
// installed; a response arriving after a newer load wins is discarded.
func (c *Controller) LoadFile(ctx context.Context, name string) error {
	return c.loadFile(ctx, name, 0)
}

func (c *Controller) loadFile(ctx context.Context, name string, depth int) error {
	if c.content == nil {
		return errors.New("no content store configured")
	}

	c.mu.Lock()
	seq := c.loadSeq
	c.status = fmt.Sprintf("Loading %s...", name)
	c.mu.Unlock()

	data, err := c.content.Load(ctx, name)

	c.mu.Lock()
	if c.loadSeq != seq {
		c.mu.Unlock()
		return nil // superseded by a newer load
	}
	if err != nil {
		c.status = fmt.Sprintf("Unable to load %s.", name)
		c.mu.Unlock()
		c.log.Error(err, "content load failed", logging.Fields{"filename": name})
		return err
	}
	c.mu.Unlock()

	switch {
	case strings.HasSuffix(name, ".pls"):
		return c.loadPlaylist(ctx, name, data, depth)
	case strings.HasSuffix(name, ".mid") || strings.HasSuffix(name, ".midi"):
		parsed, err := score.ParseSMF(data)
		if err != nil {
			c.setStatus("Unable to load " + name + ".")
			c.log.Error(err, "midi parse failed", logging.Fields{"filename": name})
			return err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.loadSeq != seq {
			return nil
		}
		c.installLocked(parsed, "", name)
		return nil
	default:
		parsed, err := score.ParseABC(string(data))
		if err != nil {
			c.setStatus("Unable to load " + name + ".")
			c.log.Error(err, "score parse failed", logging.Fields{"filename": name})
			return err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.loadSeq != seq {
			return nil
		}
		c.installLocked(parsed, string(data), name)
		return nil
	}
}

func (c *Controller) loadPlaylist(ctx context.Context, name string, data []byte, depth int) error {
	if depth >= maxPlaylistDepth {
		return errors.Errorf("playlist nesting too deep at %s", name)
	}
	list, err := playlist.ParseJSON(data)
	if err != nil {
		c.setStatus("Unable to load playlist " + name + ".")
		c.log.Error(err, "playlist parse failed", logging.Fields{"filename": name})
		return err
	}

	c.mu.Lock()
	c.list = list
	entry := list.Current()
	c.status = "Playlist loaded."
	c.mu.Unlock()
	c.log.Info("playlist loaded", logging.Fields{"filename": name, "entries": list.Len()})

	if entry == "" {
		return nil
	}
	return c.loadFile(ctx, entry, depth+1)
}

// SetTempo re-derives the timeline at the new tempo by reloading the
// retained raw source, and refreshes statistics for the new tempo. An
// explicit Q: directive in the source still wins.
func (c *Controller) SetTempo(qpm int) error {
	if qpm <= 0 {
		return errors.Errorf("invalid tempo %d", qpm)
	}

	c.mu.Lock()
	c.userQPM = qpm
	raw := c.rawSource
	c.mu.Unlock()

	if raw != "" {
		if err := c.LoadScore(raw); err != nil {
			return err
		}
	} else {
		c.mu.Lock()
		if c.score != nil && c.score.QPM == 0 {
			c.qpm = qpm
		}
		c.mu.Unlock()
	}
	c.refreshStats()
	return nil
}

// SetProfile switches the profile scoping score records. When save is set
// the name is persisted through the profile store; failure to persist is
// non-fatal.
func (c *Controller) SetProfile(name string, save bool) {
	c.mu.Lock()
	c.profile = name
	c.summary = nil
	c.mu.Unlock()

	if save && c.stats != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := c.stats.SaveProfile(ctx, name); err != nil {
				c.log.Error(err, "profile save failed", logging.Fields{"profile": name})
				c.setStatus("Unable to save profile.")
			}
		}()
	}
	c.refreshStats()
}

// SetAutoContinue toggles automatic playlist progression at end-of-piece.
func (c *Controller) SetAutoContinue(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoContinue = enabled
}

// Advance moves to the next playlist entry and loads it.
func (c *Controller) Advance(ctx context.Context) error {
	return c.movePlaylist(ctx, +1)
}

// Retreat moves to the previous playlist entry and loads it.
func (c *Controller) Retreat(ctx context.Context) error {
	return c.movePlaylist(ctx, -1)
}

func (c *Controller) movePlaylist(ctx context.Context, delta int) error {
	c.mu.Lock()
	var moved bool
	if delta > 0 {
		moved = c.list.Advance()
	} else {
		moved = c.list.Retreat()
	}
	entry := c.list.Current()
	c.mu.Unlock()

	if !moved || entry == "" {
		return nil
	}
	return c.loadFile(ctx, entry, 1)
}

// Close releases everything the controller owns.
func (c *Controller) Close() {
	c.Reset()
}

// --- internals ---

func (c *Controller) setStatus(msg string) {
	c.mu.Lock()
	c.status = msg
	c.mu.Unlock()
}

// installLocked replaces the loaded score. Caller holds the mutex.
func (c *Controller) installLocked(s *score.Score, raw, filename string) {
	c.stopAllLocked("")
	c.loadSeq++

	// tempo: explicit directive, else last user-set tempo, else default
	switch {
	case s.QPM > 0:
		c.qpm = s.QPM
	case c.userQPM > 0:
		c.qpm = c.userQPM
	default:
		c.qpm = score.DefaultQPM
	}

	c.score = s
	c.rawSource = raw
	c.filename = filename
	c.scorer.reset()
	c.expected = note.Silence
	c.summary = nil
	c.status = "Score loaded. Press start to play."

	c.log.Info("score loaded", logging.Fields{
		"filename": filename,
		"qpm":      c.qpm,
		"events":   len(s.Events),
	})

	go c.refreshStats()
}

// stopAllLocked cancels every running activity and returns to idle: the
// run identity is bumped so pending timer ticks and timing callbacks
// become no-ops, the timing walk is stopped and the input stream released.
// Caller holds the mutex.
func (c *Controller) stopAllLocked(msg string) {
	c.run = uuid.New()
	c.pendingAuto = uuid.Nil
	c.phase = PhaseIdle
	c.countdown = CountdownInactive
	c.current = note.Silence
	c.expected = note.Silence
	c.volume = 0

	if c.timing != nil {
		c.timing.Stop()
		c.timing = nil
	}
	if c.input != nil {
		if err := c.input.Close(); err != nil {
			c.log.Warn("input close failed", logging.Fields{"error": err.Error()})
		}
		c.input = nil
	}
	if msg != "" {
		c.status = msg
	}
}

// acquireInputLocked opens the input stream, releasing any previous one
// first. Caller holds the mutex.
func (c *Controller) acquireInputLocked() error {
	if c.source == nil {
		c.status = "No audio input available."
		return errors.New("no input source configured")
	}
	if c.input != nil {
		c.input.Close()
		c.input = nil
	}
	input, err := c.source.Acquire()
	if err != nil {
		c.status = "Unable to open audio device."
		c.log.Error(err, "device acquisition failed")
		return errors.Wrap(err, "acquire input")
	}
	c.input = input
	return nil
}

// schedule arms a one-shot timer whose callback runs under the mutex only
// if the session run identity is still current. fn reschedules itself for
// periodic work, so each tick runs to completion before the next is armed.
func (c *Controller) schedule(d time.Duration, run uuid.UUID, fn func()) {
	time.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.run != run {
			return
		}
		fn()
	})
}

// beginCountdownLocked enters the countdown phase. Caller holds the mutex.
func (c *Controller) beginCountdownLocked() {
	n := 4
	if c.score != nil {
		n = c.score.BeatsPerMeasure() + 1
	}

	c.phase = PhaseCountdown
	c.countdown = n
	c.status = "Get ready..."
	if c.cfg.OnCountdown != nil {
		c.cfg.OnCountdown(n)
	}

	run := c.run
	beat := time.Duration(score.MillisecondsPerBeat(c.qpm)) * time.Millisecond
	var tick func()
	tick = func() {
		c.countdown--
		if c.cfg.OnCountdown != nil {
			c.cfg.OnCountdown(c.countdown)
		}
		if c.countdown <= 0 {
			c.countdown = CountdownInactive
			c.startAllLocked()
			return
		}
		c.schedule(beat, run, tick)
	}
	c.schedule(beat, run, tick)
}

// startAllLocked transitions countdown -> playing: opens the mic, starts
// the pitch poll and matcher loops and the timing walk. Caller holds the
// mutex.
func (c *Controller) startAllLocked() {
	if err := c.acquireInputLocked(); err != nil {
		c.stopAllLocked("Unable to open audio device.")
		return
	}

	c.phase = PhasePlaying
	c.status = "Playing."
	c.expected = note.Silence

	run := c.run
	timing := score.NewCallbacks(c.score, c.qpm, func(e *score.NoteEvent) {
		c.onTimingEvent(run, e)
	})
	c.timing = timing
	timing.Start()

	c.schedulePitchPollLocked()
	c.scheduleMatcherLocked()
}

// schedulePitchPollLocked starts the current-note sampling loop for the
// current run. Caller holds the mutex.
func (c *Controller) schedulePitchPollLocked() {
	run := c.run
	var tick func()
	tick = func() {
		if c.input != nil {
			samples := c.input.Samples()
			c.volume = c.input.Volume()
			freq, ok := c.estimator.Detect(samples, c.volume)
			if ok {
				c.current = note.FromFrequency(freq)
			} else {
				c.current = note.Silence
			}
		}
		c.schedule(c.cfg.PitchPollInterval, run, tick)
	}
	c.schedule(c.cfg.PitchPollInterval, run, tick)
}

// scheduleMatcherLocked starts the note checking loop for the current run.
// Caller holds the mutex.
func (c *Controller) scheduleMatcherLocked() {
	run := c.run
	var tick func()
	tick = func() {
		if c.phase == PhasePlaying {
			c.scorer.sample(int(c.expected), int(c.current))
		}
		c.schedule(c.cfg.CheckInterval, run, tick)
	}
	c.schedule(c.cfg.CheckInterval, run, tick)
}

// onTimingEvent mirrors the expected note from the playback timing walk.
// A nil event is the end-of-piece sentinel. Events from a superseded run
// (a stale callback arriving after reset) are discarded.
func (c *Controller) onTimingEvent(run uuid.UUID, e *score.NoteEvent) {
	c.mu.Lock()
	if c.run != run {
		c.mu.Unlock()
		return
	}

	if e != nil {
		c.expected = e.Number
		c.mu.Unlock()
		return
	}

	c.endOfPieceLocked()
	c.mu.Unlock()
}

// endOfPieceLocked finishes the session: final score, record persistence,
// statistics refresh, teardown, then the auto-continue decision. Caller
// holds the mutex.
func (c *Controller) endOfPieceLocked() {
	pct := c.scorer.percent()
	filename := c.filename
	qpm := c.qpm
	profile := c.profile
	summary := c.summary

	c.stopAllLocked(fmt.Sprintf("Scored %d%%.", pct))
	c.log.Info("session finished", logging.Fields{
		"filename": filename,
		"score":    pct,
		"qpm":      qpm,
	})

	if c.stats != nil && filename != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := c.stats.Record(ctx, filename, pct, qpm, profile); err != nil {
				c.log.Error(err, "score record failed", logging.Fields{"filename": filename})
			}
			c.refreshStats()
		}()
	}

	// Auto-continue: only with the toggle on, statistics available, the
	// mean met and more of the playlist to go.
	if !c.autoContinue || !summary.Available() || float64(pct) < summary.MeanScore || c.list.AtEnd() {
		return
	}

	// The restart token is armed only after the advance has installed the
	// next entry: installing clears any pending token, so arming earlier
	// would cancel this restart, and a score the user loads during the
	// delay clears it again and wins.
	delay := c.cfg.AutoContinueDelay
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.Advance(ctx); err != nil {
			return
		}
		token := uuid.New()
		c.mu.Lock()
		c.pendingAuto = token
		c.mu.Unlock()
		time.AfterFunc(delay, func() {
			c.autoStart(token)
		})
	}()
}

// autoStart fires the delayed restart of an auto-continued session. It is
// skipped if a user operation intervened or the session is no longer idle.
func (c *Controller) autoStart(token uuid.UUID) {
	c.mu.Lock()
	if c.pendingAuto != token || c.phase != PhaseIdle || c.score == nil {
		c.mu.Unlock()
		return
	}
	c.pendingAuto = uuid.Nil
	c.scorer.reset()
	c.beginCountdownLocked()
	c.mu.Unlock()
}

// refreshStats fetches the statistics summary for the loaded (file, tempo,
// profile) triple, debounced against rapid tempo changes. The response is
// applied only if the triple is still current.
func (c *Controller) refreshStats() {
	if c.stats == nil {
		return
	}
	c.debounced(func() {
		c.mu.Lock()
		filename := c.filename
		qpm := c.qpm
		profile := c.profile
		c.mu.Unlock()
		if filename == "" {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		summary, err := c.stats.Get(ctx, filename, qpm, profile)
		if err != nil {
			// Statistics unavailability just disables auto-continue.
			c.log.Warn("statistics unavailable", logging.Fields{"filename": filename})
			return
		}

		c.mu.Lock()
		if c.filename == filename && c.qpm == qpm && c.profile == profile {
			c.summary = summary
		}
		c.mu.Unlock()
	})
}
