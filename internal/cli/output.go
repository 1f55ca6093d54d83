package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/vsporte/fhm-matches/internal/calendar"
	"github.com/vsporte/fhm-matches/internal/filter"
	"github.com/vsporte/fhm-matches/internal/match"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatICS  OutputFormat = "ics"
)

// RunSummary describes a finished run
type RunSummary struct {
	Output   string          `json:"output"`
	Snapshot *match.Snapshot `json:"snapshot"`
}

// WriteRunSummary writes the result of a run in the specified format
func WriteRunSummary(w io.Writer, sum *RunSummary, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, sum)
	case FormatText:
		snap := sum.Snapshot
		if snap.Failed() {
			fmt.Fprintf(w, "Run failed: %s\n", snap.Error)
			fmt.Fprintf(w, "Fail-safe snapshot written to %s\n", sum.Output)
			return nil
		}
		fmt.Fprintf(w, "Snapshot written to %s\n", sum.Output)
		fmt.Fprintf(w, "Matches: %d (arenas: %d)\n", snap.TotalMatches, len(snap.Arenas))
		fmt.Fprintf(w, "Updated: %s\n", snap.LastUpdate.Format(time.RFC3339))
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// ShowResult is a filtered view of a snapshot
type ShowResult struct {
	Snapshot *match.Snapshot
	Filter   *filter.Filter
	Location *time.Location
}

// WriteMatches writes the filtered matches in the specified format
func WriteMatches(w io.Writer, res *ShowResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, res.Snapshot)
	case FormatICS:
		_, err := io.WriteString(w, calendar.GenerateICS(res.Snapshot.Matches, calendar.Options{
			Location: res.Location,
			Stamp:    res.Snapshot.LastUpdate,
		}))
		return err
	case FormatText:
		return writeText(w, res, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs v as indented JSON
func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// writeText outputs matches as human-readable text
func writeText(w io.Writer, res *ShowResult, verbose bool) error {
	snap := res.Snapshot
	loc := res.Location
	if loc == nil {
		loc = time.UTC
	}

	fmt.Fprintf(w, "Updated: %s\n", snap.LastUpdate.In(loc).Format("02.01.2006 15:04 MST"))
	if snap.Failed() {
		fmt.Fprintf(w, "Last run failed: %s\n", snap.Error)
	}
	if res.Filter != nil && !res.Filter.IsEmpty() {
		fmt.Fprintf(w, "Filter: %s\n", res.Filter)
	}

	if len(snap.Matches) == 0 {
		fmt.Fprintln(w, "No matches found.")
		return nil
	}

	fmt.Fprintln(w)
	for _, m := range snap.Matches {
		when := m.Date.String()
		if m.Weekday != "" {
			when = m.Weekday + " " + when
		}
		if m.Time != "" {
			when += " " + m.Time
		}
		fmt.Fprintf(w, "%s  %s", when, m.Pair)
		if m.VenueName != "" {
			fmt.Fprintf(w, " @ %s", m.VenueName)
		}
		fmt.Fprintln(w)

		if verbose {
			if m.Tour != "" {
				fmt.Fprintf(w, "     Tour: %s\n", m.Tour)
			}
			if m.GameNumber != "" {
				fmt.Fprintf(w, "     Game: %s\n", m.GameNumber)
			}
			if m.Year != "" {
				fmt.Fprintf(w, "     Year: %s\n", m.Year)
			}
			if m.Address != "" {
				fmt.Fprintf(w, "     Address: %s\n", m.Address)
			}
			if m.MapLink != "" {
				fmt.Fprintf(w, "     Map: %s\n", m.MapLink)
			}
		}
	}
	fmt.Fprintf(w, "\nTotal: %d of %d matches\n", len(snap.Matches), snap.TotalMatches)

	return nil
}
