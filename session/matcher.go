package session

import "math"

// RestPolicy decides how a rest expected-note is scored when the matcher
// samples it.
type RestPolicy int

const (
	// RestsExcluded leaves rests out of both counters: a rest never
	// counts as correct or incorrect against a detected pitch.
	RestsExcluded RestPolicy = iota

	// RestsScored counts every sample: a rest scores as correct when the
	// player is silent.
	RestsScored
)

// scorer accumulates the coarse polling comparison of expected vs current
// note. It deliberately tolerates brief mismatches across note boundaries
// because of the fixed sampling cadence.
type scorer struct {
	policy  RestPolicy
	checked int
	correct int
}

// sample folds one matcher tick into the counters.
func (s *scorer) sample(expected, current int) {
	if expected == 0 && s.policy == RestsExcluded {
		return
	}
	s.checked++
	if expected == current {
		s.correct++
	}
}

// percent returns the running score percentage, 0 before any sample.
func (s *scorer) percent() int {
	if s.checked == 0 {
		return 0
	}
	return int(math.Round(float64(s.correct) / float64(s.checked) * 100))
}

func (s *scorer) reset() {
	s.checked = 0
	s.correct = 0
}
