package stats

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.False(t, s.Available())
	assert.Zero(t, s.MeanScore)
}

func TestSummarizeAggregates(t *testing.T) {
	records := []Record{
		{Score: 60}, {Score: 80}, {Score: 100},
	}
	s := Summarize(records)

	assert.True(t, s.Available())
	assert.Equal(t, 60.0, s.MinScore)
	assert.Equal(t, 80.0, s.MeanScore)
	assert.Equal(t, 100.0, s.MaxScore)
	assert.Equal(t, []int{60, 80, 100}, s.MostRecentScores)
}

func TestSummarizeKeepsRecentTail(t *testing.T) {
	var records []Record
	for i := 0; i < 25; i++ {
		records = append(records, Record{Score: i})
	}
	s := Summarize(records)

	require.Len(t, s.MostRecentScores, RecentCount)
	assert.Equal(t, 15, s.MostRecentScores[0])
	assert.Equal(t, 24, s.MostRecentScores[RecentCount-1])
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, score := range []int{70, 90} {
		require.NoError(t, store.Add(Record{
			Filename:  "twinkle.abc",
			Score:     score,
			QPM:       100,
			Profile:   "alex",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	s, err := store.Summarize("twinkle.abc", 100, "alex")
	require.NoError(t, err)
	assert.Equal(t, 70.0, s.MinScore)
	assert.Equal(t, 90.0, s.MaxScore)
	assert.Equal(t, 80.0, s.MeanScore)

	// other tempo or profile is a separate triple
	other, err := store.Summarize("twinkle.abc", 120, "alex")
	require.NoError(t, err)
	assert.False(t, other.Available())
}

func TestStoreProfiles(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.SaveProfile("zoe"))
	require.NoError(t, store.SaveProfile("alex"))
	require.NoError(t, store.SaveProfile("zoe")) // duplicate is a no-op

	profiles, err := store.Profiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"alex", "zoe"}, profiles)
}

func TestClientGet(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(Summary{
			MinScore: 50, MeanScore: 75, MaxScore: 100,
			MostRecentScores: []int{50, 100},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	s, err := c.Get(context.Background(), "tune.abc", 90, "alex")
	require.NoError(t, err)

	assert.Equal(t, "/score/get/tune.abc/90/alex", gotPath)
	assert.Equal(t, 75.0, s.MeanScore)
	assert.True(t, s.Available())
}

func TestClientRecord(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	require.NoError(t, c.Record(context.Background(), "tune.abc", 85, 90, ""))
	assert.Equal(t, "/score/set/tune.abc/85/90/", gotPath)
}

func TestClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Get(context.Background(), "tune.abc", 90, "")
	assert.Error(t, err)

	assert.Error(t, c.SaveProfile(context.Background(), "p"))
}
