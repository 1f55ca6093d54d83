// Package match provides the schedule record types and the rules that turn raw
// table rows into retained upcoming matches.
//
// A row becomes a MatchRecord only when its date parses as D.M.YYYY or
// DD.MM.YYYY and falls strictly after the run's reference date. Everything else
// about a row is carried as free text. The Snapshot type is the single document
// published per run.
package match
