// Package conversation provides the durable, append-only log of voice-agent
// interactions: one record per conversational turn, plus point metric samples
// and user feedback entries. Records are written once and never updated; the
// read side serves the analysis and reporting paths.
//
// Storage is a single SQLite database (modernc.org/sqlite, no cgo) accessed
// through one connection so concurrent appends from multiple sessions
// serialize instead of failing with lock errors.
package conversation
