// Package server exposes the cached match snapshot over HTTP.
//
// Routes:
//
//	GET  /                 service index
//	GET  /health           liveness, independent of pipeline state
//	GET  /api/matches      cached snapshot, filtered by arena, team, from, to, weekends
//	GET  /api/matches.ics  the same matches as an iCalendar feed
//	GET  /api/arenas       venues of the current snapshot
//	POST /api/refresh      forced pipeline run
//	GET  /api/metrics      in-process counters, gauges and timings
//
// A failed run is reported as HTTP 500 with {"success": false, "error": ...}.
package server
