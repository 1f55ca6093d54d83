// Package filter narrows a match list for display and for the HTTP API.
//
// Supported criteria:
//   - Date range (from/to, inclusive)
//   - Arenas (case-insensitive substring of the venue name)
//   - Teams (case-insensitive substring of the team pair)
//   - Weekends only (Saturday/Sunday)
//
// Example usage:
//
//	f := filter.NewFilter()
//	f.WeekendsOnly = true
//	f.Teams = []string{"Спартак"}
//	upcoming := f.Apply(snapshot.Matches)
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/vsporte/fhm-matches/internal/match"
)

// Filter represents match filtering criteria
type Filter struct {
	DateFrom *match.Date `json:"date_from,omitempty"`
	DateTo   *match.Date `json:"date_to,omitempty"`

	Arenas []string `json:"arenas,omitempty"`
	Teams  []string `json:"teams,omitempty"`

	WeekendsOnly bool `json:"weekends_only,omitempty"`
}

// NewFilter creates a filter with no active criteria; it matches every record.
func NewFilter() *Filter {
	return &Filter{
		Arenas: []string{},
		Teams:  []string{},
	}
}

// IsEmpty reports whether the filter has no active criteria
func (f *Filter) IsEmpty() bool {
	return f.DateFrom == nil &&
		f.DateTo == nil &&
		len(f.Arenas) == 0 &&
		len(f.Teams) == 0 &&
		!f.WeekendsOnly
}

// Matches reports whether m passes every active criterion.
func (f *Filter) Matches(m match.MatchRecord) bool {
	if f.IsEmpty() {
		return true
	}

	if f.DateFrom != nil && m.Date.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && m.Date.After(*f.DateTo) {
		return false
	}

	if f.WeekendsOnly {
		if wd := m.Date.Weekday(); wd != time.Saturday && wd != time.Sunday {
			return false
		}
	}

	if len(f.Arenas) > 0 && !containsAny(m.VenueName, f.Arenas) {
		return false
	}
	if len(f.Teams) > 0 && !containsAny(m.Pair, f.Teams) {
		return false
	}

	return true
}

// Apply returns the matching records in their original order. The result is never nil.
func (f *Filter) Apply(records []match.MatchRecord) []match.MatchRecord {
	filtered := make([]match.MatchRecord, 0, len(records))
	for _, m := range records {
		if f.Matches(m) {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

// String returns a human-readable description of the active criteria.
// Format: "From: 01.03.2099 | To: 31.03.2099 | Arenas: Арена | Weekends only"
func (f *Filter) String() string {
	if f.IsEmpty() {
		return "No active filters"
	}

	var parts []string

	if f.DateFrom != nil {
		parts = append(parts, fmt.Sprintf("From: %s", f.DateFrom))
	}
	if f.DateTo != nil {
		parts = append(parts, fmt.Sprintf("To: %s", f.DateTo))
	}
	if len(f.Arenas) > 0 {
		parts = append(parts, fmt.Sprintf("Arenas: %s", strings.Join(f.Arenas, ", ")))
	}
	if len(f.Teams) > 0 {
		parts = append(parts, fmt.Sprintf("Teams: %s", strings.Join(f.Teams, ", ")))
	}
	if f.WeekendsOnly {
		parts = append(parts, "Weekends only")
	}

	return strings.Join(parts, " | ")
}


func containsAny(s string, needles []string) bool {
	s = strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(s, strings.ToLower(strings.TrimSpace(n))) {
			return true
		}
	}
	return false
}
