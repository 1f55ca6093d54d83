package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/vsporte/fhm-matches/internal/failure"
)

const DefaultMinRows = 5

var (
	// DefaultMarkers are the heading phrases of the schedule table
	DefaultMarkers = []string{"БЛИЖАЙШИЕ МАТЧИ", "upcoming matches"}
	// DefaultKeywords are secondary words the content heuristic also accepts
	DefaultKeywords = []string{"БЛИЖАЙШИЕ", "День"}
)

// Strategy is one way of finding the schedule table.
type Strategy interface {
	Name() string
	Locate(doc *goquery.Document) (*goquery.Selection, bool)
}

// LocatorConfig tunes the default strategy list
type LocatorConfig struct {
	Markers  []string
	Keywords []string
	// Class is a stable class name carried by the schedule table, if one is known
	Class   string
	MinRows int
}

// Locator tries its strategies in order; the first hit wins.
type Locator struct {
	Strategies []Strategy
}

// NewLocator builds the standard heading, class, content and largest-table strategies.
func NewLocator(cfg LocatorConfig) *Locator {
	if len(cfg.Markers) == 0 {
		cfg.Markers = DefaultMarkers
	}
	if cfg.Keywords == nil {
		cfg.Keywords = DefaultKeywords
	}
	if cfg.MinRows <= 0 {
		cfg.MinRows = DefaultMinRows
	}

	return &Locator{
		Strategies: []Strategy{
			HeadingStrategy{Markers: cfg.Markers},
			ClassStrategy{Class: cfg.Class},
			ContentStrategy{Phrases: append(append([]string{}, cfg.Markers...), cfg.Keywords...)},
			LargestTableStrategy{MinRows: cfg.MinRows},
		},
	}
}

// Locate returns the table and the name of the strategy that found it.
func (l *Locator) Locate(doc *goquery.Document) (*goquery.Selection, string, error) {
	for _, s := range l.Strategies {
		if table, ok := s.Locate(doc); ok {
			return table, s.Name(), nil
		}
	}
	return nil, "", failure.New(failure.TableNotFound, "no schedule table on page")
}

// HeadingStrategy finds a header cell containing a marker and takes its table.
type HeadingStrategy struct {
	Markers []string
}

func (HeadingStrategy) Name() string { return "heading" }

func (s HeadingStrategy) Locate(doc *goquery.Document) (*goquery.Selection, bool) {
	var table *goquery.Selection
	doc.Find("th").EachWithBreak(func(_ int, th *goquery.Selection) bool {
		if !containsAny(cellText(th), s.Markers) {
			return true
		}
		if t := th.Closest("table"); t.Length() > 0 {
			table = t
			return false
		}
		return true
	})
	return table, table != nil
}

// ClassStrategy matches table elements carrying Class.
type ClassStrategy struct {
	Class string
}

func (ClassStrategy) Name() string { return "class" }

func (s ClassStrategy) Locate(doc *goquery.Document) (*goquery.Selection, bool) {
	if strings.TrimSpace(s.Class) == "" {
		return nil, false
	}

	var table *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		if t.HasClass(s.Class) {
			table = t
			return false
		}
		return true
	})
	return table, table != nil
}

// ContentStrategy picks the innermost table whose text contains any phrase,
// so an outer layout table is skipped in favour of a matching table nested inside it.
type ContentStrategy struct {
	Phrases []string
}

func (ContentStrategy) Name() string { return "content" }

func (s ContentStrategy) Locate(doc *goquery.Document) (*goquery.Selection, bool) {
	matches := func(t *goquery.Selection) bool {
		return containsAny(t.Text(), s.Phrases)
	}

	var table *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		if !matches(t) {
			return true
		}
		nested := false
		t.Find("table").EachWithBreak(func(_ int, inner *goquery.Selection) bool {
			nested = matches(inner)
			return !nested
		})
		// Descend: a matching inner table wins over its wrapper.
		if nested {
			return true
		}
		table = t
		return false
	})
	return table, table != nil
}

// LargestTableStrategy picks the table with the most rows, if it has more than MinRows.
type LargestTableStrategy struct {
	MinRows int
}

func (LargestTableStrategy) Name() string { return "largest" }

func (s LargestTableStrategy) Locate(doc *goquery.Document) (*goquery.Selection, bool) {
	var (
		best  *goquery.Selection
		count int
	)
	doc.Find("table").Each(func(_ int, t *goquery.Selection) {
		if n := ownRows(t).Length(); n > count {
			best, count = t, n
		}
	})
	if best == nil || count <= s.MinRows {
		return nil, false
	}
	return best, true
}

// ownRows returns the rows of table, excluding rows of nested tables.
func ownRows(table *goquery.Selection) *goquery.Selection {
	return table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(table)
	})
}

func containsAny(text string, phrases []string) bool {
	text = strings.ToLower(text)
	for _, p := range phrases {
		if p != "" && strings.Contains(text, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
