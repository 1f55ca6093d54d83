// Package storage persists the match snapshot as a single JSON document.
//
// Every Save replaces the whole file atomically (temp file in the same directory,
// fsync, rename), so readers see either the previous snapshot or the new one and
// never a partial write. last_update is kept strictly increasing across saves.
// A Mirror, such as the MongoDB one, can receive a copy of every saved snapshot.
package storage
