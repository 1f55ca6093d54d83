// Package failure defines the error taxonomy shared by the extraction pipeline.
//
// Every stage reports its failures as a *Error carrying a Kind. Row- and
// record-local kinds are recovered where they occur; stage-level kinds abort
// the run and are converted into a fail-safe snapshot by the pipeline.
// SnapshotWrite is the only kind that reaches the caller.
package failure
