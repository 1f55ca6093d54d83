// Package cache serves the latest snapshot within a freshness window and runs
// the pipeline when it has gone stale.
//
// Every pipeline run happens under one run lock. Concurrent Get calls that miss
// share a single run through singleflight; Refresh always runs and only shares
// with other concurrent refreshes. Runs use the accessor's base context, so a
// caller that gives up does not cancel the run other callers are waiting on.
package cache
