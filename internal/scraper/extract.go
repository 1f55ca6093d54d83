package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/vsporte/fhm-matches/internal/match"
)

const (
	DefaultMinCells       = 8
	DefaultFallbackMapURL = "https://yandex.ru/maps/"
)

// Layout maps logical fields to zero-based cell positions.
type Layout struct {
	Day        int `yaml:"day"`
	Date       int `yaml:"date"`
	Tour       int `yaml:"tour"`
	GameNumber int `yaml:"game_number"`
	Time       int `yaml:"time"`
	Year       int `yaml:"year"`
	Team1      int `yaml:"team1"`
	Team2      int `yaml:"team2"`
	Venue      int `yaml:"venue"`
	Map        int `yaml:"map"`
	Address    int `yaml:"address"`
}

// DefaultLayout is the 11-column schedule row
var DefaultLayout = Layout{
	Day:        0,
	Date:       1,
	Tour:       2,
	GameNumber: 3,
	Time:       4,
	Year:       5,
	Team1:      6,
	Team2:      7,
	Venue:      8,
	Map:        9,
	Address:    10,
}

// Extractor converts table rows into raw rows
type Extractor struct {
	Layout Layout
	// MinCells is the number of data cells a row needs to qualify
	MinCells       int
	FallbackMapURL string
}

// NewExtractor returns an Extractor with the default cell threshold and fallback map link
func NewExtractor(layout Layout) *Extractor {
	return &Extractor{
		Layout:         layout,
		MinCells:       DefaultMinCells,
		FallbackMapURL: DefaultFallbackMapURL,
	}
}

// Extract returns one RawRow per qualifying row of table, in table order, and the
// number of rows skipped for having too few cells. base resolves relative map links.
func (e *Extractor) Extract(table *goquery.Selection, base *url.URL) ([]match.RawRow, int) {
	minCells := e.MinCells
	if minCells <= 0 {
		minCells = DefaultMinCells
	}

	var (
		rows    []match.RawRow
		skipped int
	)
	ownRows(table).Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("td")
		if cells.Length() < minCells {
			skipped++
			return
		}
		rows = append(rows, e.row(cells, base))
	})
	return rows, skipped
}

func (e *Extractor) row(cells *goquery.Selection, base *url.URL) match.RawRow {
	text := func(i int) string {
		if i < 0 || i >= cells.Length() {
			return ""
		}
		return cellText(cells.Eq(i))
	}

	l := e.Layout
	return match.RawRow{
		Weekday:    text(l.Day),
		Date:       text(l.Date),
		Tour:       text(l.Tour),
		GameNumber: text(l.GameNumber),
		Time:       text(l.Time),
		Year:       text(l.Year),
		Team1:      firstLine(text(l.Team1)),
		Team2:      firstLine(text(l.Team2)),
		Venue:      text(l.Venue),
		MapLink:    e.mapLink(cells, l.Map, base),
		Address:    text(l.Address),
	}
}

// mapLink returns the absolute href of the first link in cell i, or the fallback.
func (e *Extractor) mapLink(cells *goquery.Selection, i int, base *url.URL) string {
	fallback := e.FallbackMapURL
	if fallback == "" {
		fallback = DefaultFallbackMapURL
	}
	if i < 0 || i >= cells.Length() {
		return fallback
	}

	href, ok := cells.Eq(i).Find("a[href]").First().Attr("href")
	if !ok {
		return fallback
	}
	href = strings.TrimSpace(href)
	if href == "" {
		return fallback
	}

	u, err := url.Parse(href)
	if err != nil {
		return fallback
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fallback
	}
	return u.String()
}
