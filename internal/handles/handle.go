// Package handles defines the watched handle record, its status values and
// the normalization rules applied before any lookup or storage access.
package handles

import (
	"bufio"
	"strings"
	"time"
	"unicode"
)

// Status is the last observed state of a handle.
type Status string

const (
	StatusUnknown  Status = "unknown"
	StatusOccupied Status = "occupied"
	StatusFree     Status = "free"
	StatusError    Status = "error"
)

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUnknown, StatusOccupied, StatusFree, StatusError:
		return true
	}
	return false
}

// ParseStatus maps a stored value back onto a Status. Anything unrecognised
// reads as unknown.
func ParseStatus(v string) Status {
	s := Status(v)
	if !s.Valid() {
		return StatusUnknown
	}
	return s
}

// Handle is a watched handle as kept in storage.
type Handle struct {
	Name        string
	Status      Status
	LastChecked *time.Time
	Notified    bool
	AddedAt     time.Time
}

// Transition is emitted when a handle becomes free.
type Transition struct {
	Name string
	Old  Status
	New  Status
}

// Marker is the prefix users commonly type in front of a handle.
const Marker = "@"

// Normalize strips leading markers and whitespace, trims the tail and
// lowercases the name. Normalize(Normalize(x)) == Normalize(x).
func Normalize(name string) string {
	n := strings.TrimLeftFunc(name, func(r rune) bool {
		return r == '@' || unicode.IsSpace(r)
	})
	return strings.ToLower(strings.TrimRightFunc(n, unicode.IsSpace))
}

// Format renders a normalized name for display.
func Format(name string) string {
	return Marker + name
}

// ShouldNotify reports whether moving from old to next is a freed-handle event.
// Only occupied->free and unknown->free qualify.
func ShouldNotify(old, next Status) bool {
	if next != StatusFree {
		return false
	}
	return old == StatusOccupied || old == StatusUnknown
}

// ParseList extracts handle names from imported text: one per line, blank
// lines and '#' comments skipped, and for comma separated lines only the
// first column is used. Names are normalized; empty results are dropped.
func ParseList(text string) []string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, ','); i >= 0 {
			line = line[:i]
		}
		line = strings.Trim(line, `"' `)
		if n := Normalize(line); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Dedupe normalizes names and returns the unique non-empty ones in input
// order, together with how many entries were dropped as duplicates.
func Dedupe(names []string) (unique []string, duplicates int) {
	seen := make(map[string]struct{}, len(names))
	for _, raw := range names {
		n := Normalize(raw)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			duplicates++
			continue
		}
		seen[n] = struct{}{}
		unique = append(unique, n)
	}
	return unique, duplicates
}
