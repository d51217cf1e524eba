// Package insight coordinates the durable conversation log, the semantic
// index, and the statistical analyzer behind a single Manager façade.
//
// The Manager owns the enable switch: while the subsystem is disabled every
// operation returns its no-op value and never an error. Leaf components are
// built lazily by the first real operation. Within one logged turn the
// durable write happens before the index insert and the metric sample; the
// secondary writes are best-effort and their failures never reach the
// caller.
package insight
