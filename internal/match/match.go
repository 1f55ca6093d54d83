package match

import (
	"crypto/sha1"
	"fmt"
	"strings"
)

// PairSeparator joins the two team names of a match
const PairSeparator = " – "

// RawRow is one qualifying table row, mapped positionally but not yet validated.
type RawRow struct {
	Weekday    string
	Date       string
	Tour       string
	GameNumber string
	Time       string
	Year       string
	Team1      string
	Team2      string
	Venue      string
	MapLink    string
	Address    string
}

// MatchRecord is one retained upcoming match
type MatchRecord struct {
	Weekday    string `json:"day"`
	Date       Date   `json:"date"`
	Tour       string `json:"tour"`
	GameNumber string `json:"game_number"`
	Time       string `json:"time"`
	Year       string `json:"year"`
	Pair       string `json:"pair"`
	VenueName  string `json:"venue_name"`
	MapLink    string `json:"map_link"`
	Address    string `json:"address"`
}

// BuildPair joins two team names with PairSeparator.
// Returns "" when either side is empty.
func BuildPair(team1, team2 string) string {
	team1 = strings.TrimSpace(team1)
	team2 = strings.TrimSpace(team2)
	if team1 == "" || team2 == "" {
		return ""
	}
	return team1 + PairSeparator + team2
}

// ID returns a deterministic identifier for the match based on stable fields
func (m MatchRecord) ID() string {
	h := sha1.New()
	h.Write([]byte(m.Date.String() + "|" + m.GameNumber + "|" + m.Pair))
	return fmt.Sprintf("%x", h.Sum(nil))
}
