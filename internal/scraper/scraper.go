package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/vsporte/fhm-matches/internal/match"
)

// Scraper locates the schedule table in a page and extracts its rows
type Scraper struct {
	Locator   *Locator
	Extractor *Extractor
}

// New returns a Scraper with the default strategies and layout
func New() *Scraper {
	return &Scraper{
		Locator:   NewLocator(LocatorConfig{}),
		Extractor: NewExtractor(DefaultLayout),
	}
}

// Result describes one parsed page
type Result struct {
	Rows []match.RawRow
	// Strategy names the locator strategy that found the table
	Strategy string
	// Skipped counts rows with too few cells
	Skipped int
}

// Parse extracts raw rows from page HTML served at pageURL.
// A page without a schedule table yields a table_not_found failure.
func (s *Scraper) Parse(body, pageURL string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	var base *url.URL
	if pageURL != "" {
		if base, err = url.Parse(pageURL); err != nil {
			return nil, fmt.Errorf("invalid page url %q: %w", pageURL, err)
		}
	}

	table, strategy, err := s.Locator.Locate(doc)
	if err != nil {
		return nil, err
	}

	rows, skipped := s.Extractor.Extract(table, base)
	return &Result{Rows: rows, Strategy: strategy, Skipped: skipped}, nil
}
