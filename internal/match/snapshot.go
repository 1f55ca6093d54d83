package match

import (
	"sort"
	"time"
)

// Snapshot is the document published by every pipeline run.
// It is always a full replacement of the previous one.
type Snapshot struct {
	Matches      []MatchRecord `json:"matches"`
	Arenas       []string      `json:"arenas"`
	LastUpdate   time.Time     `json:"last_update"`
	TotalMatches int           `json:"total_matches"`
	Error        string        `json:"error,omitempty"`
}

// NewSnapshot creates a snapshot from retained records
func NewSnapshot(records []MatchRecord, at time.Time) *Snapshot {
	matches := make([]MatchRecord, len(records))
	copy(matches, records)

	return &Snapshot{
		Matches:      matches,
		Arenas:       Arenas(matches),
		LastUpdate:   at,
		TotalMatches: len(matches),
	}
}

// FailedSnapshot creates the fail-safe snapshot written when a run cannot complete
func FailedSnapshot(diagnostic string, at time.Time) *Snapshot {
	if diagnostic == "" {
		diagnostic = "unknown error"
	}
	return &Snapshot{
		Matches:      []MatchRecord{},
		Arenas:       []string{},
		LastUpdate:   at,
		TotalMatches: 0,
		Error:        diagnostic,
	}
}

// Failed reports whether the snapshot records a failed run
func (s *Snapshot) Failed() bool {
	return s.Error != ""
}

// Arenas returns the sorted set of non-empty venue names
func Arenas(records []MatchRecord) []string {
	seen := make(map[string]bool)
	arenas := make([]string, 0)
	for _, r := range records {
		if r.VenueName == "" || seen[r.VenueName] {
			continue
		}
		seen[r.VenueName] = true
		arenas = append(arenas, r.VenueName)
	}
	sort.Strings(arenas)
	return arenas
}

// WithMatches returns a copy of the snapshot restricted to the given records.
// Arenas and TotalMatches are kept from s.
func (s *Snapshot) WithMatches(records []MatchRecord) *Snapshot {
	out := *s
	out.Matches = records
	if out.Matches == nil {
		out.Matches = []MatchRecord{}
	}
	return &out
}
