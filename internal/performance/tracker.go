package performance

import (
	"sync"
	"time"
)

// DefaultSampleLimit caps how many samples a session retains. Once the
// cap is reached the oldest sample is discarded per new one recorded.
const DefaultSampleLimit = 1000

// Sample is one recorded point metric.
type Sample struct {
	Timestamp  time.Time         `json:"timestamp"`
	MetricName string            `json:"metric_name"`
	Value      float64           `json:"metric_value"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Tracker accumulates point metric samples in memory, keyed by session.
// Samples live for the lifetime of the process and are never persisted.
// Safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string][]Sample
	limit    int
}

// NewTracker returns a Tracker retaining up to DefaultSampleLimit samples
// per session.
func NewTracker() *Tracker {
	return &Tracker{
		sessions: make(map[string][]Sample),
		limit:    DefaultSampleLimit,
	}
}

// Record appends a sample to the session's buffer, evicting the oldest
// sample when the buffer is full.
func (t *Tracker) Record(sessionID, metricName string, value float64, metadata map[string]string) {
	sample := Sample{
		Timestamp:  time.Now().UTC(),
		MetricName: metricName,
		Value:      value,
		Metadata:   metadata,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	samples := append(t.sessions[sessionID], sample)
	if len(samples) > t.limit {
		samples = samples[len(samples)-t.limit:]
	}
	t.sessions[sessionID] = samples
}

// Samples returns a copy of the session's buffer, oldest first. Unknown
// sessions yield an empty slice.
func (t *Tracker) Samples(sessionID string) []Sample {
	t.mu.Lock()
	defer t.mu.Unlock()
	src := t.sessions[sessionID]
	out := make([]Sample, len(src))
	copy(out, src)
	return out
}

// Sessions returns how many sessions currently hold samples.
func (t *Tracker) Sessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
