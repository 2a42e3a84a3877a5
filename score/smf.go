package score

import (
	"bytes"
	"math"
	"sort"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/sightread/sightread/note"
)

// restGapBeats is the smallest gap between consecutive notes that becomes
// an explicit rest event.
const restGapBeats = 1.0 / 16

// ParseSMF parses a standard MIDI file into a Score. Note-on events become
// the expected note sequence; where notes overlap, the earlier onset wins
// (the matcher is monophonic). Gaps turn into rests. A tempo meta event
// sets the score tempo.
func ParseSMF(data []byte) (*Score, error) {
	mf, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "read smf")
	}

	ticks, ok := mf.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, errors.New("smf: unsupported time format")
	}
	tpq := float64(ticks.Resolution())

	type rawNote struct {
		onsetBeats float64
		endBeats   float64
		key        uint8
	}

	var notes []rawNote
	qpm := 0
	open := map[uint8]int{} // key -> index into notes

	for _, track := range mf.Tracks {
		var absTicks int64
		for _, event := range track {
			absTicks += int64(event.Delta)
			beats := float64(absTicks) / tpq

			var channel, key, velocity uint8
			var bpm float64
			switch {
			case event.Message.GetMetaTempo(&bpm):
				if qpm == 0 && bpm > 0 {
					qpm = int(math.Round(bpm))
				}
			case event.Message.GetNoteStart(&channel, &key, &velocity):
				open[key] = len(notes)
				notes = append(notes, rawNote{onsetBeats: beats, endBeats: beats, key: key})
			case event.Message.GetNoteEnd(&channel, &key):
				if idx, held := open[key]; held {
					notes[idx].endBeats = beats
					delete(open, key)
				}
			}
		}
	}

	if len(notes) == 0 {
		return nil, errors.Wrap(ErrNoEvents, "parse smf")
	}

	// Stable keeps file order for simultaneous onsets, so the first
	// written pitch of a chord wins.
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].onsetBeats < notes[j].onsetBeats
	})

	s := &Score{
		QPM:   qpm,
		Meter: Meter{4, 4},
	}

	cursor := 0.0
	for _, n := range notes {
		if n.onsetBeats < cursor { // chord or overlap: first pitch wins
			continue
		}
		if n.onsetBeats-cursor >= restGapBeats {
			s.Events = append(s.Events, NoteEvent{
				OnsetBeats:    cursor,
				DurationBeats: n.onsetBeats - cursor,
				Number:        note.Silence,
			})
		}
		duration := n.endBeats - n.onsetBeats
		if duration <= 0 {
			duration = restGapBeats
		}
		s.Events = append(s.Events, NoteEvent{
			OnsetBeats:    n.onsetBeats,
			DurationBeats: duration,
			Number:        note.Number(n.key),
		})
		cursor = n.onsetBeats + duration
	}

	return s, nil
}
