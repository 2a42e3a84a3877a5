package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Store persists score records and profile names as JSON files under a
// data directory. Safe for concurrent use by HTTP handlers.
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore opens (creating if needed) a record store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create stats dir")
	}
	return &Store{dir: dir}, nil
}

func (s *Store) recordsPath() string {
	return filepath.Join(s.dir, "records.json")
}

func (s *Store) profilesPath() string {
	return filepath.Join(s.dir, "profiles.json")
}

// key scopes records to a (filename, tempo, profile) triple.
func key(filename string, qpm int, profile string) string {
	return fmt.Sprintf("%s|%d|%s", filename, qpm, profile)
}

func (s *Store) loadRecords() (map[string][]Record, error) {
	data, err := os.ReadFile(s.recordsPath())
	if os.IsNotExist(err) {
		return map[string][]Record{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read records")
	}
	records := map[string][]Record{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrap(err, "decode records")
	}
	return records, nil
}

func (s *Store) saveRecords(records map[string][]Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode records")
	}
	return errors.Wrap(os.WriteFile(s.recordsPath(), data, 0o644), "write records")
}

// Add appends one outcome record.
func (s *Store) Add(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadRecords()
	if err != nil {
		return err
	}
	k := key(r.Filename, r.QPM, r.Profile)
	records[k] = append(records[k], r)
	return s.saveRecords(records)
}

// Summarize aggregates the records for a (filename, tempo, profile) triple.
// A triple with no records yields the zero Summary.
func (s *Store) Summarize(filename string, qpm int, profile string) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadRecords()
	if err != nil {
		return Summary{}, err
	}
	matched := records[key(filename, qpm, profile)]
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})
	return Summarize(matched), nil
}

// SaveProfile records a profile name. Saving an existing name is a no-op.
func (s *Store) SaveProfile(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.Profiles()
	if err != nil {
		return err
	}
	for _, p := range profiles {
		if p == name {
			return nil
		}
	}
	profiles = append(profiles, name)
	sort.Strings(profiles)

	data, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode profiles")
	}
	return errors.Wrap(os.WriteFile(s.profilesPath(), data, 0o644), "write profiles")
}

// Profiles lists the saved profile names.
func (s *Store) Profiles() ([]string, error) {
	data, err := os.ReadFile(s.profilesPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read profiles")
	}
	var profiles []string
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, errors.Wrap(err, "decode profiles")
	}
	return profiles, nil
}
