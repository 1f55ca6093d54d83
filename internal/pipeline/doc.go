// Package pipeline runs one authenticated extraction end to end.
//
// Stages run strictly in order: log in, load the schedule page, locate the
// table, extract rows, normalize and filter them, then write the snapshot.
// The browser session is opened once per run and closed exactly once on every
// exit path. Stage failures never escape Run: they are logged, dumped to the
// debug directory and published in-band as a fail-safe snapshot. Only a
// snapshot write failure or cancellation is returned to the caller.
package pipeline
