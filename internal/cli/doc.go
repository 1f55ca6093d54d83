// Package cli implements the command-line interface for fhm-matches.
//
// The cli package provides the Cobra-based commands: run (one extraction into the
// snapshot file), serve (the cached HTTP API) and show (filtered, sorted output of
// the persisted snapshot as text, JSON or iCalendar). It wires configuration into
// the browser, auth, scraper, storage, pipeline and cache packages.
package cli
