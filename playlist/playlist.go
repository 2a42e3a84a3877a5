// Package playlist tracks an ordered sequence of score references and the
// position within it. An empty playlist is a valid, inert state.
package playlist

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Playlist is an ordered list of score (or nested playlist) filenames plus
// a current index, clamped to the valid range. Not safe for concurrent use;
// the session controller serializes access.
type Playlist struct {
	entries []string
	index   int
}

// New creates a playlist over the given entries, positioned at the first.
func New(entries []string) *Playlist {
	return &Playlist{entries: append([]string(nil), entries...)}
}

// ParseJSON decodes a playlist file: a JSON array of filenames.
func ParseJSON(data []byte) (*Playlist, error) {
	var entries []string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrap(err, "parse playlist")
	}
	return New(entries), nil
}

// Len returns the number of entries.
func (p *Playlist) Len() int {
	return len(p.entries)
}

// Index returns the current position, 0 for an empty playlist.
func (p *Playlist) Index() int {
	return p.index
}

// Entries returns a copy of the entry list.
func (p *Playlist) Entries() []string {
	return append([]string(nil), p.entries...)
}

// Current returns the entry at the current position, or "" when empty.
func (p *Playlist) Current() string {
	if len(p.entries) == 0 {
		return ""
	}
	return p.entries[p.index]
}

// AtEnd reports whether the playlist is empty or at its last entry.
func (p *Playlist) AtEnd() bool {
	return len(p.entries) == 0 || p.index == len(p.entries)-1
}

// Advance moves forward one entry, clamped; it reports whether the index
// changed.
func (p *Playlist) Advance() bool {
	return p.Seek(p.index + 1)
}

// Retreat moves back one entry, clamped; it reports whether the index
// changed.
func (p *Playlist) Retreat() bool {
	return p.Seek(p.index - 1)
}

// Seek jumps to the given index, clamped to [0, len-1]; it reports whether
// the index changed.
func (p *Playlist) Seek(i int) bool {
	i = clamp(i, 0, len(p.entries)-1)
	if i == p.index {
		return false
	}
	p.index = i
	return true
}

func clamp(val, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
