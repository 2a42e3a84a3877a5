package session

import (
	"github.com/sightread/sightread/note"
	"github.com/sightread/sightread/stats"
)

// Phase is the session state machine phase. At most one phase is active at
// any time.
type Phase int

const (
	// PhaseIdle means nothing is running; the loaded score, if any, is
	// ready to start.
	PhaseIdle Phase = iota

	// PhaseCountdown is the pre-roll beat countdown before playback.
	PhaseCountdown

	// PhasePlaying means playback, pitch capture and note matching are
	// all running.
	PhasePlaying

	// PhaseTuning is mic-only monitoring without scoring or playback.
	PhaseTuning
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCountdown:
		return "countdown"
	case PhasePlaying:
		return "playing"
	case PhaseTuning:
		return "tuning"
	default:
		return "unknown"
	}
}

// CountdownInactive is the countdown value outside PhaseCountdown.
const CountdownInactive = -1

// Snapshot is the session status surface consumed by the presentation
// layer. It is a copy; reading it never blocks the session.
type Snapshot struct {
	Phase     Phase       `json:"phase"`
	Countdown int         `json:"countdown"` // -1 when inactive
	Current   note.Number `json:"current"`
	Expected  note.Number `json:"expected"`
	Volume    float64     `json:"volume"`

	Checked int `json:"checked"`
	Correct int `json:"correct"`
	Percent int `json:"percent"`

	QPM      int    `json:"qpm"`
	Filename string `json:"filename"`
	Status   string `json:"status"`

	Stats *stats.Summary `json:"stats,omitempty"`

	PlaylistIndex int `json:"playlist_index"`
	PlaylistLen   int `json:"playlist_len"`

	AutoContinue bool   `json:"auto_continue"`
	Profile      string `json:"profile"`
}
