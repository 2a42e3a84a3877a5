// Package score models a loaded piece of music as an ordered, tempo-scaled
// sequence of expected note events, and provides the timing callbacks that
// walk it during playback. Scores come from an ABC notation subset or from
// standard MIDI files.
package score

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"github.com/sightread/sightread/note"
)

// DefaultQPM is the tempo fallback when neither the score nor the user
// supplies one.
const DefaultQPM = 60

// ErrNoEvents is returned when a source parses to no playable structure.
var ErrNoEvents = errors.New("score contains no playable events")

// Meter is a time signature.
type Meter struct {
	Numerator   int `json:"numerator"`
	Denominator int `json:"denominator"`
}

// NoteEvent is one expected note: an onset offset from playback start in
// quarter-note beats and a note number, or note.Silence for a rest.
type NoteEvent struct {
	OnsetBeats    float64     `json:"onset_beats"`
	DurationBeats float64     `json:"duration_beats"`
	Number        note.Number `json:"number"`
}

// IsRest reports whether the event expects no pitch.
func (e NoteEvent) IsRest() bool {
	return e.Number == note.Silence
}

// Score is an immutable loaded piece: the raw source, the tempo it declared
// (0 when it declared none) and the derived event sequence. Replaced
// wholesale on reload, never mutated.
type Score struct {
	Source   string      `json:"source"`
	Filename string      `json:"filename"`
	Title    string      `json:"title"`
	QPM      int         `json:"qpm"`
	Meter    Meter       `json:"meter"`
	Events   []NoteEvent `json:"events"`
}

// BeatsPerMeasure returns the meter numerator, 4 when no meter was given.
func (s *Score) BeatsPerMeasure() int {
	if s.Meter.Numerator <= 0 {
		return 4
	}
	return s.Meter.Numerator
}

// TotalBeats returns the end of the last event in quarter-note beats.
func (s *Score) TotalBeats() float64 {
	if len(s.Events) == 0 {
		return 0
	}
	last := s.Events[len(s.Events)-1]
	return last.OnsetBeats + last.DurationBeats
}

// MillisecondsPerBeat converts a tempo in quarter-notes-per-minute to the
// duration of one beat.
func MillisecondsPerBeat(qpm int) float64 {
	if qpm <= 0 {
		qpm = DefaultQPM
	}
	return 60000.0 / float64(qpm)
}

// MillisecondsPerMeasure returns the duration of one measure at the given
// tempo.
func (s *Score) MillisecondsPerMeasure(qpm int) float64 {
	return float64(s.BeatsPerMeasure()) * MillisecondsPerBeat(qpm)
}

// fifths indexes keys on the circle of fifths: positive = sharps,
// negative = flats.
var majorFifths = map[string]int{
	"C": 0, "G": 1, "D": 2, "A": 3, "E": 4, "B": 5, "F#": 6, "C#": 7,
	"F": -1, "Bb": -2, "Eb": -3, "Ab": -4, "Db": -5, "Gb": -6, "Cb": -7,
}

var minorFifths = map[string]int{
	"A": 0, "E": 1, "B": 2, "F#": 3, "C#": 4, "G#": 5, "D#": 6, "A#": 7,
	"D": -1, "G": -2, "C": -3, "F": -4, "Bb": -5, "Eb": -6, "Ab": -7,
}

var sharpOrder = []byte{'F', 'C', 'G', 'D', 'A', 'E', 'B'}
var flatOrder = []byte{'B', 'E', 'A', 'D', 'G', 'C', 'F'}

// keyAccidentals maps a K: field value to per-letter semitone adjustments.
func keyAccidentals(value string) map[byte]int {
	acc := make(map[byte]int)

	value = strings.TrimSpace(value)
	if value == "" {
		return acc
	}
	fields := strings.Fields(value)
	name := fields[0]

	minor := false
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, "min"):
		minor = true
		name = name[:len(name)-3]
	case strings.HasSuffix(lower, "maj"):
		name = name[:len(name)-3]
	case strings.HasSuffix(name, "m"):
		minor = true
		name = name[:len(name)-1]
	}
	if len(fields) > 1 {
		mode := strings.ToLower(fields[1])
		if strings.HasPrefix(mode, "min") {
			minor = true
		}
	}
	if name == "" {
		return acc
	}

	tonic := strings.ToUpper(name[:1]) + name[1:]

	var f int
	var ok bool
	if minor {
		f, ok = minorFifths[tonic]
	} else {
		f, ok = majorFifths[tonic]
	}
	if !ok {
		return acc
	}

	if f > 0 {
		for _, letter := range sharpOrder[:f] {
			acc[letter] = 1
		}
	} else if f < 0 {
		for _, letter := range flatOrder[:-f] {
			acc[letter] = -1
		}
	}
	return acc
}

// letterSemitone is the semitone of each natural letter within an octave.
var letterSemitone = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

// middleC is the MIDI number of ABC uppercase C.
const middleC = 60

type abcParser struct {
	unitNum, unitDen int // L: unit note length
	keyAcc           map[byte]int
	measureAcc       map[string]int // letter+octave -> explicit accidental, reset at bar
	onsetBeats       float64
	events           []NoteEvent
}

// ParseTempo extracts a Q: tempo directive from ABC source. Supports
// "Q:120" and "Q:1/4=120". Returns 0 when none is present.
func ParseTempo(source string) int {
	for _, line := range strings.SplitAfter(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "Q:") {
			continue
		}
		return parseTempoValue(trimmed[2:])
	}
	return 0
}

func parseTempoValue(value string) int {
	value = strings.TrimSpace(value)
	if i := strings.IndexByte(value, '='); i >= 0 {
		value = value[i+1:]
	}
	digits := strings.TrimSpace(value)
	end := 0
	for end < len(digits) && digits[end] >= '0' && digits[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	qpm, err := strconv.Atoi(digits[:end])
	if err != nil {
		return 0
	}
	return qpm
}

func parseMeter(value string) Meter {
	value = strings.TrimSpace(value)
	switch value {
	case "C":
		return Meter{4, 4}
	case "C|":
		return Meter{2, 2}
	}
	num, den, ok := parseFraction(value)
	if !ok || num <= 0 || den <= 0 {
		return Meter{4, 4}
	}
	return Meter{num, den}
}

func parseFraction(value string) (num, den int, ok bool) {
	parts := strings.SplitN(value, "/", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	num, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	den, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return num, den, true
}

// ParseABC parses an ABC notation subset into a Score. Headers X, T, M, L,
// K and Q are honored; the body supports notes with accidentals and octave
// marks, rests, duration multipliers, chords (first pitch wins) and bar
// lines. Returns ErrNoEvents when nothing playable is found.
func ParseABC(source string) (*Score, error) {
	s := &Score{
		Source: source,
		Meter:  Meter{4, 4},
	}
	p := &abcParser{
		unitNum:    1,
		unitDen:    8,
		keyAcc:     map[byte]int{},
		measureAcc: map[string]int{},
	}

	inBody := false
	for _, line := range strings.SplitAfter(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "%") {
			continue
		}

		if len(trimmed) >= 2 && trimmed[1] == ':' && isHeaderLetter(trimmed[0]) {
			value := strings.TrimSpace(trimmed[2:])
			switch trimmed[0] {
			case 'T':
				if s.Title == "" {
					s.Title = value
				}
			case 'Q':
				s.QPM = parseTempoValue(value)
			case 'M':
				s.Meter = parseMeter(value)
			case 'L':
				if num, den, ok := parseFraction(value); ok && num > 0 && den > 0 {
					p.unitNum, p.unitDen = num, den
				}
			case 'K':
				p.keyAcc = keyAccidentals(value)
				inBody = true
			case 'w', 'W':
				// lyrics
			}
			continue
		}

		if inBody {
			p.parseLine(trimmed)
		}
	}

	if len(p.events) == 0 {
		return nil, errors.Wrap(ErrNoEvents, "parse abc")
	}

	s.Events = p.events
	return s, nil
}

func isHeaderLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

// unitBeats is the duration of one unit note length in quarter-note beats.
func (p *abcParser) unitBeats() float64 {
	return 4.0 * float64(p.unitNum) / float64(p.unitDen)
}

func (p *abcParser) parseLine(line string) {
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == '|' || c == ':':
			p.measureAcc = map[string]int{}
			i++
		case c == '"': // guitar chord annotation
			i = skipTo(line, i+1, '"')
		case c == '{': // grace notes
			i = skipTo(line, i+1, '}')
		case c == '!': // decorations
			i = skipTo(line, i+1, '!')
		case c == '[':
			if j := inlineFieldEnd(line, i); j > 0 {
				i = j
				continue
			}
			i = p.parseChord(line, i)
		case c == 'z' || c == 'x' || c == 'Z':
			i = p.parseRest(line, i)
		case isNoteLetter(c) || c == '^' || c == '_' || c == '=':
			i = p.parseNote(line, i)
		default:
			i++
		}
	}
}

func skipTo(line string, i int, delim byte) int {
	for i < len(line) && line[i] != delim {
		i++
	}
	if i < len(line) {
		i++
	}
	return i
}

// inlineFieldEnd detects an inline field like [K:G] and returns the index
// past it, or 0 if line[i:] is not an inline field.
func inlineFieldEnd(line string, i int) int {
	if i+2 < len(line) && isHeaderLetter(line[i+1]) && line[i+2] == ':' {
		return skipTo(line, i+3, ']')
	}
	return 0
}

func isNoteLetter(c byte) bool {
	return (c >= 'A' && c <= 'G') || (c >= 'a' && c <= 'g')
}

// parseNote consumes one note (accidental, letter, octave marks, duration)
// and appends its event.
func (p *abcParser) parseNote(line string, i int) int {
	num, next, ok := p.parsePitch(line, i)
	if !ok {
		return next
	}
	duration, next := p.parseDuration(line, next)
	p.emit(num, duration)
	return next
}

// parsePitch consumes accidental, letter and octave marks and returns the
// note number.
func (p *abcParser) parsePitch(line string, i int) (note.Number, int, bool) {
	accidental := 0
	explicit := false
	for i < len(line) {
		switch line[i] {
		case '^':
			accidental++
			explicit = true
		case '_':
			accidental--
			explicit = true
		case '=':
			explicit = true
		default:
			goto letter
		}
		i++
	}
letter:
	if i >= len(line) || !isNoteLetter(line[i]) {
		return 0, i + 1, false
	}
	c := line[i]
	i++

	letter := byte(unicode.ToUpper(rune(c)))
	octaveShift := 0
	if c >= 'a' && c <= 'g' {
		octaveShift = 12
	}
	for i < len(line) {
		if line[i] == '\'' {
			octaveShift += 12
			i++
		} else if line[i] == ',' {
			octaveShift -= 12
			i++
		} else {
			break
		}
	}

	accKey := string(letter) + strconv.Itoa(octaveShift)
	if explicit {
		p.measureAcc[accKey] = accidental
	} else if a, ok := p.measureAcc[accKey]; ok {
		accidental = a
	} else if a, ok := p.keyAcc[letter]; ok {
		accidental = a
	}

	num := note.Number(middleC + letterSemitone[letter] + accidental + octaveShift)
	return num, i, true
}

// parseDuration consumes a duration suffix like "2", "/2", "3/2" or "/"
// and returns the duration in quarter-note beats.
func (p *abcParser) parseDuration(line string, i int) (float64, int) {
	num, den := 1, 1

	start := i
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > start {
		num, _ = strconv.Atoi(line[start:i])
	}

	for i < len(line) && line[i] == '/' {
		i++
		start = i
		for i < len(line) && line[i] >= '0' && line[i] <= '9' {
			i++
		}
		if i > start {
			d, _ := strconv.Atoi(line[start:i])
			den *= d
		} else {
			den *= 2
		}
	}

	// ties and broken rhythms are beyond the matcher's resolution; skip
	for i < len(line) && (line[i] == '-' || line[i] == '<' || line[i] == '>') {
		i++
	}

	return p.unitBeats() * float64(num) / float64(den), i
}

func (p *abcParser) parseRest(line string, i int) int {
	duration, next := p.parseDuration(line, i+1)
	p.emit(note.Silence, duration)
	return next
}

// parseChord consumes a [CEG] chord; the first pitch becomes the expected
// note, matching monophonic matching.
func (p *abcParser) parseChord(line string, i int) int {
	i++ // consume '['
	first := note.Silence
	seen := false
	for i < len(line) && line[i] != ']' {
		c := line[i]
		if isNoteLetter(c) || c == '^' || c == '_' || c == '=' {
			num, next, ok := p.parsePitch(line, i)
			pitchDur, next2 := p.parseDuration(line, next)
			_ = pitchDur
			i = next2
			if ok && !seen {
				first = num
				seen = true
			}
			continue
		}
		i++
	}
	if i < len(line) {
		i++ // consume ']'
	}
	duration, next := p.parseDuration(line, i)
	if seen {
		p.emit(first, duration)
	}
	return next
}

func (p *abcParser) emit(num note.Number, duration float64) {
	p.events = append(p.events, NoteEvent{
		OnsetBeats:    p.onsetBeats,
		DurationBeats: duration,
		Number:        num,
	})
	p.onsetBeats += duration
}
