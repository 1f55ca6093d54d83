// Package calendar renders upcoming matches as an iCalendar (RFC 5545) feed.
package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vsporte/fhm-matches/internal/match"
)

const (
	// DefaultDuration is the assumed length of a match
	DefaultDuration = 2 * time.Hour
	DefaultName     = "Ближайшие матчи"
)

const maxLineOctets = 75

var clock = regexp.MustCompile(`^(\d{1,2})[:.](\d{2})`)

// Options control feed rendering
type Options struct {
	// Name is the calendar display name (X-WR-CALNAME).
	Name string
	// Location is the zone match times are given in. Defaults to UTC.
	Location *time.Location
	Duration time.Duration
	// Stamp is written as DTSTAMP on every event. Defaults to time.Now.
	Stamp time.Time
}

// GenerateICS generates a calendar with one VEVENT per match.
// Matches without a readable start time become all-day events.
func GenerateICS(records []match.MatchRecord, opts Options) string {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Duration <= 0 {
		opts.Duration = DefaultDuration
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Stamp.IsZero() {
		opts.Stamp = time.Now()
	}

	var ics strings.Builder

	writeLine(&ics, "BEGIN:VCALENDAR")
	writeLine(&ics, "VERSION:2.0")
	writeLine(&ics, "PRODID:-//FHM Matches//fhm-matches//RU")
	writeLine(&ics, "CALSCALE:GREGORIAN")
	writeLine(&ics, "METHOD:PUBLISH")
	writeLine(&ics, "X-WR-CALNAME:"+escapeICS(opts.Name))

	for _, m := range records {
		writeEvent(&ics, m, opts)
	}

	writeLine(&ics, "END:VCALENDAR")

	return ics.String()
}

func writeEvent(ics *strings.Builder, m match.MatchRecord, opts Options) {
	writeLine(ics, "BEGIN:VEVENT")
	writeLine(ics, fmt.Sprintf("UID:%s@fhm-matches", m.ID()))
	writeLine(ics, "DTSTAMP:"+formatICSTime(opts.Stamp))

	if start, ok := startTime(m, opts.Location); ok {
		writeLine(ics, "DTSTART:"+formatICSTime(start))
		writeLine(ics, "DTEND:"+formatICSTime(start.Add(opts.Duration)))
	} else {
		day := m.Date.In(time.UTC)
		writeLine(ics, "DTSTART;VALUE=DATE:"+day.Format("20060102"))
		writeLine(ics, "DTEND;VALUE=DATE:"+day.AddDate(0, 0, 1).Format("20060102"))
	}

	writeLine(ics, "SUMMARY:"+escapeICS(summary(m)))

	var desc []string
	if m.Tour != "" {
		desc = append(desc, "Тур: "+m.Tour)
	}
	if m.GameNumber != "" {
		desc = append(desc, "Игра №"+m.GameNumber)
	}
	if m.Year != "" {
		desc = append(desc, "Год рождения: "+m.Year)
	}
	if m.MapLink != "" {
		desc = append(desc, "Карта: "+m.MapLink)
	}
	if len(desc) > 0 {
		writeLine(ics, "DESCRIPTION:"+escapeICS(strings.Join(desc, "\n")))
	}

	location := m.VenueName
	if m.Address != "" {
		if location != "" {
			location += ", "
		}
		location += m.Address
	}
	if location != "" {
		writeLine(ics, "LOCATION:"+escapeICS(location))
	}
	if m.MapLink != "" {
		writeLine(ics, "URL:"+m.MapLink)
	}

	writeLine(ics, "STATUS:CONFIRMED")
	writeLine(ics, "TRANSP:OPAQUE")
	writeLine(ics, "END:VEVENT")
}

func summary(m match.MatchRecord) string {
	s := m.Pair
	if s == "" {
		s = "Матч"
	}
	if m.VenueName != "" {
		s += " (" + m.VenueName + ")"
	}
	return s
}

// startTime combines the match date with its HH:MM time in loc
func startTime(m match.MatchRecord, loc *time.Location) (time.Time, bool) {
	c := clock.FindStringSubmatch(strings.TrimSpace(m.Time))
	if c == nil {
		return time.Time{}, false
	}
	hour, _ := strconv.Atoi(c[1])
	minute, _ := strconv.Atoi(c[2])
	if hour > 23 || minute > 59 {
		return time.Time{}, false
	}
	return time.Date(m.Date.Year, m.Date.Month, m.Date.Day, hour, minute, 0, 0, loc), true
}

// writeLine writes a content line folded at 75 octets without splitting a UTF-8 sequence
func writeLine(ics *strings.Builder, line string) {
	limit := maxLineOctets
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8Start(line[cut]) {
			cut--
		}
		ics.WriteString(line[:cut])
		ics.WriteString("\r\n ")
		line = line[cut:]
		limit = maxLineOctets - 1
	}
	ics.WriteString(line)
	ics.WriteString("\r\n")
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}

// formatICSTime formats a time.Time as an iCalendar datetime string
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// escapeICS escapes special characters for iCalendar format
func escapeICS(s string) string {
	// Replace special characters according to RFC 5545
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
