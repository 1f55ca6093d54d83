package match

// Stats counts how rows were disposed of during normalization
type Stats struct {
	Rows        int `json:"rows"`
	Retained    int `json:"retained"`
	Unparseable int `json:"unparseable"`
	NotUpcoming int `json:"not_upcoming"`
}

// NormalizeRow converts a raw row into a MatchRecord.
// Returns false when the row's date does not parse.
func NormalizeRow(r RawRow) (MatchRecord, bool) {
	date, ok := ParseDate(r.Date)
	if !ok {
		return MatchRecord{}, false
	}

	return MatchRecord{
		Weekday:    r.Weekday,
		Date:       date,
		Tour:       r.Tour,
		GameNumber: r.GameNumber,
		Time:       r.Time,
		Year:       r.Year,
		Pair:       BuildPair(r.Team1, r.Team2),
		VenueName:  r.Venue,
		MapLink:    r.MapLink,
		Address:    r.Address,
	}, true
}

// IsUpcoming reports whether the match is strictly after today.
// A match dated today is not upcoming.
func (m MatchRecord) IsUpcoming(today Date) bool {
	return m.Date.After(today)
}

// Normalize converts rows into records and keeps only upcoming ones, preserving row order.
// Malformed and past dates are excluded silently and counted in Stats.
func Normalize(rows []RawRow, today Date) ([]MatchRecord, Stats) {
	stats := Stats{Rows: len(rows)}
	out := make([]MatchRecord, 0, len(rows))

	for _, r := range rows {
		rec, ok := NormalizeRow(r)
		if !ok {
			stats.Unparseable++
			continue
		}
		if !rec.IsUpcoming(today) {
			stats.NotUpcoming++
			continue
		}
		out = append(out, rec)
	}

	stats.Retained = len(out)
	return out, stats
}
