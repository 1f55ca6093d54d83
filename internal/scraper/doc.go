// Package scraper turns the schedule page HTML into raw match rows.
//
// A Locator tries an ordered list of table-finding strategies against the parsed
// document and returns the first table found. An Extractor then maps every
// qualifying row of that table to a match.RawRow using a positional column Layout.
// Pages are parsed with goquery; cell text is rendered the way a browser's
// innerText would be, so line breaks inside a cell are preserved.
package scraper
