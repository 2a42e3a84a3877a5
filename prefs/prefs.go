// Package prefs persists user preferences between runs: the auto-continue
// and ignore-duration toggles, the active profile and the last loaded file.
package prefs

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Prefs is the persisted preference set. The zero value holds the
// defaults: default profile (empty string), toggles off.
type Prefs struct {
	AutoContinue   bool   `json:"auto_continue"`
	IgnoreDuration bool   `json:"ignore_duration"`
	Profile        string `json:"profile"`
	File           string `json:"file"`
}

// Load reads preferences from path. A missing file yields the defaults
// without error; preferences are never required.
func Load(path string) (Prefs, error) {
	var p Prefs
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return p, errors.Wrap(err, "read prefs")
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return Prefs{}, errors.Wrap(err, "decode prefs")
	}
	return p, nil
}

// Save writes preferences to path, creating parent directories as needed.
func Save(path string, p Prefs) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create prefs dir")
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode prefs")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "write prefs")
}
