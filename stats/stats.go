// Package stats handles score outcome records and their aggregates: the
// file-backed store behind the collaborator server and the HTTP client the
// session controller reads statistics through.
package stats

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RecentCount is how many recent scores a summary carries.
const RecentCount = 10

// Record is a single practice outcome. Written once at session end, never
// mutated.
type Record struct {
	Filename  string    `json:"filename"`
	Score     int       `json:"score"` // percentage 0-100
	QPM       int       `json:"qpm"`
	Profile   string    `json:"profile"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary is the aggregate for a (filename, tempo, profile) triple. The
// zero value means no statistics are available.
type Summary struct {
	MinScore         float64 `json:"min_score"`
	MeanScore        float64 `json:"mean_score"`
	MaxScore         float64 `json:"max_score"`
	MostRecentScores []int   `json:"most_recent_scores"`
}

// Available reports whether the summary aggregates any outcome.
func (s *Summary) Available() bool {
	return s != nil && len(s.MostRecentScores) > 0
}

// Summarize aggregates records, assumed oldest first.
func Summarize(records []Record) Summary {
	if len(records) == 0 {
		return Summary{}
	}

	scores := make([]float64, len(records))
	for i, r := range records {
		scores[i] = float64(r.Score)
	}

	recent := make([]int, 0, RecentCount)
	start := max(len(records)-RecentCount, 0)
	for _, r := range records[start:] {
		recent = append(recent, r.Score)
	}

	return Summary{
		MinScore:         floats.Min(scores),
		MeanScore:        math.Round(stat.Mean(scores, nil)*10) / 10,
		MaxScore:         floats.Max(scores),
		MostRecentScores: recent,
	}
}
