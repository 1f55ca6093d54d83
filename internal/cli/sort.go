package cli

import (
	"sort"
	"strings"

	"github.com/vsporte/fhm-matches/internal/match"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByDate  SortOrder = "date"
	SortByArena SortOrder = "arena"
	SortByTeam  SortOrder = "team"
)

// sortMatches sorts matches in place based on the specified sort order
func sortMatches(matches []match.MatchRecord, order SortOrder) {
	switch order {
	case SortByDate:
		sort.SliceStable(matches, func(i, j int) bool {
			return compareByDate(matches[i], matches[j])
		})
	case SortByArena:
		sort.SliceStable(matches, func(i, j int) bool {
			a, b := strings.ToLower(matches[i].VenueName), strings.ToLower(matches[j].VenueName)
			if a != b {
				return a < b
			}
			// If arenas are equal, sort by date
			return compareByDate(matches[i], matches[j])
		})
	case SortByTeam:
		sort.SliceStable(matches, func(i, j int) bool {
			a, b := strings.ToLower(matches[i].Pair), strings.ToLower(matches[j].Pair)
			if a != b {
				return a < b
			}
			return compareByDate(matches[i], matches[j])
		})
	}
}

// compareByDate reports whether i starts before j
func compareByDate(i, j match.MatchRecord) bool {
	if i.Date != j.Date {
		return i.Date.Before(j.Date)
	}
	ti, tj := padTime(i.Time), padTime(j.Time)
	if ti != tj {
		return ti < tj
	}
	return strings.ToLower(i.Pair) < strings.ToLower(j.Pair)
}

// padTime turns "9:05" into "09:05"
func padTime(t string) string {
	t = strings.TrimSpace(t)
	if len(t) >= 2 && (t[1] == ':' || t[1] == '.') {
		return "0" + t
	}
	return t
}
