package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vsporte/fhm-matches/internal/match"
)

var (
	rangePattern = regexp.MustCompile(`^(\d{1,2}\.\d{1,2}\.\d{4})\s*-\s*(\d{1,2}\.\d{1,2}\.\d{4})$`)
	monthPattern = regexp.MustCompile(`^(\d{1,2})\.(\d{4})$`)
	namePattern  = regexp.MustCompile(`^(\p{L}+)(?:\s+(\d{4}))?$`)
)

// Params are the raw filter inputs of the HTTP API and the CLI
type Params struct {
	Arena    string
	Team     string
	From     string
	To       string
	Range    string
	Weekends bool
}

// Filter parses p into a Filter. today anchors month names given without a year.
func (p Params) Filter(today match.Date) (*Filter, error) {
	f := NewFilter()
	if a := strings.TrimSpace(p.Arena); a != "" {
		f.Arenas = append(f.Arenas, a)
	}
	if t := strings.TrimSpace(p.Team); t != "" {
		f.Teams = append(f.Teams, t)
	}
	f.WeekendsOnly = p.Weekends

	if strings.TrimSpace(p.Range) != "" {
		from, to, err := ParseDateRange(p.Range, today)
		if err != nil {
			return nil, err
		}
		f.DateFrom, f.DateTo = &from, &to
	}

	if strings.TrimSpace(p.From) != "" {
		d, ok := match.ParseDate(p.From)
		if !ok {
			return nil, fmt.Errorf("invalid from date %q (use DD.MM.YYYY)", p.From)
		}
		f.DateFrom = &d
	}
	if strings.TrimSpace(p.To) != "" {
		d, ok := match.ParseDate(p.To)
		if !ok {
			return nil, fmt.Errorf("invalid to date %q (use DD.MM.YYYY)", p.To)
		}
		f.DateTo = &d
	}

	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return nil, fmt.Errorf("start date must be before end date")
	}
	return f, nil
}

// ParseDateRange parses a date range into inclusive start and end dates.
//
// Supported formats:
//   - "01.03.2099 - 15.03.2099" - explicit range
//   - "01.03.2099" - a single day
//   - "03.2099" - an entire month
//   - "март" or "март 2099" - an entire month by name; without a year the
//     next occurrence on or after today is used
func ParseDateRange(input string, today match.Date) (match.Date, match.Date, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return match.Date{}, match.Date{}, fmt.Errorf("date range cannot be empty")
	}

	if m := rangePattern.FindStringSubmatch(input); m != nil {
		from, ok := match.ParseDate(m[1])
		if !ok {
			return match.Date{}, match.Date{}, fmt.Errorf("invalid date: %s", m[1])
		}
		to, ok := match.ParseDate(m[2])
		if !ok {
			return match.Date{}, match.Date{}, fmt.Errorf("invalid date: %s", m[2])
		}
		if from.After(to) {
			return match.Date{}, match.Date{}, fmt.Errorf("start date must be before end date")
		}
		return from, to, nil
	}

	if d, ok := match.ParseDate(input); ok {
		return d, d, nil
	}

	if m := monthPattern.FindStringSubmatch(input); m != nil {
		month, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return match.Date{}, match.Date{}, fmt.Errorf("invalid month: %s", m[1])
		}
		from, to := monthBounds(year, time.Month(month))
		return from, to, nil
	}

	if m := namePattern.FindStringSubmatch(input); m != nil {
		month := parseMonth(m[1])
		if month == 0 {
			return match.Date{}, match.Date{}, fmt.Errorf("invalid month: %s", m[1])
		}
		year := yearForMonth(month, today)
		if m[2] != "" {
			year, _ = strconv.Atoi(m[2])
		}
		from, to := monthBounds(year, month)
		return from, to, nil
	}

	return match.Date{}, match.Date{}, fmt.Errorf("invalid date range format. Use '01.03.2099 - 15.03.2099', '01.03.2099', '03.2099' or 'март'")
}

func monthBounds(year int, month time.Month) (match.Date, match.Date) {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	return match.Date{Year: year, Month: month, Day: 1}, match.DateOf(last)
}

// parseMonth converts a Russian or English month name to time.Month, or 0
func parseMonth(name string) time.Month {
	name = strings.ToLower(strings.TrimSpace(name))

	months := map[string]time.Month{
		"январь": time.January, "января": time.January, "янв": time.January, "jan": time.January, "january": time.January,
		"февраль": time.February, "февраля": time.February, "фев": time.February, "feb": time.February, "february": time.February,
		"март": time.March, "марта": time.March, "мар": time.March, "mar": time.March, "march": time.March,
		"апрель": time.April, "апреля": time.April, "апр": time.April, "apr": time.April, "april": time.April,
		"май": time.May, "мая": time.May, "may": time.May,
		"июнь": time.June, "июня": time.June, "jun": time.June, "june": time.June,
		"июль": time.July, "июля": time.July, "jul": time.July, "july": time.July,
		"август": time.August, "августа": time.August, "авг": time.August, "aug": time.August, "august": time.August,
		"сентябрь": time.September, "сентября": time.September, "сен": time.September, "sep": time.September, "september": time.September,
		"октябрь": time.October, "октября": time.October, "окт": time.October, "oct": time.October, "october": time.October,
		"ноябрь": time.November, "ноября": time.November, "ноя": time.November, "nov": time.November, "november": time.November,
		"декабрь": time.December, "декабря": time.December, "дек": time.December, "dec": time.December, "december": time.December,
	}

	return months[name]
}

// yearForMonth returns today's year, or the next one if month has already passed
func yearForMonth(month time.Month, today match.Date) int {
	if month < today.Month {
		return today.Year + 1
	}
	return today.Year
}
