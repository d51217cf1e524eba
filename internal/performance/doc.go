// Package performance analyzes conversation records for latency, error,
// and verbosity trends, and emits severity-ranked suggestions when a
// trend crosses a threshold.
//
// The analyses are pure functions over a finite batch of records: they
// hold no state and are safe to call concurrently. Point metric samples
// recorded during live turns are held separately by a Tracker, bounded
// per session.
package performance
