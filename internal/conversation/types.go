package conversation

import (
	"errors"
	"time"
)

var (
	// ErrStorage wraps durable-store I/O and schema failures.
	ErrStorage = errors.New("conversation storage failure")

	// ErrEmptySession is returned when a write carries no session id.
	ErrEmptySession = errors.New("session id required")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("conversation store is closed")
)

// Record is one logged conversational turn. The store assigns ID and
// Timestamp on write; records are immutable afterwards.
type Record struct {
	ID             int64             `json:"id"`
	SessionID      string            `json:"session_id"`
	RoomName       string            `json:"room_name,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
	UserMessage    string            `json:"user_message"`
	AgentResponse  string            `json:"agent_response"`
	ResponseTimeMS float64           `json:"response_time_ms"`
	Success        bool              `json:"success"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// RecordInput is the caller-supplied portion of a Record.
type RecordInput struct {
	SessionID      string
	RoomName       string
	UserMessage    string
	AgentResponse  string
	ResponseTimeMS float64
	Success        bool
	ErrorMessage   string
	Metadata       map[string]string
}

// MetricSample is one appended point metric, e.g. response_time.
type MetricSample struct {
	ID          int64             `json:"id"`
	SessionID   string            `json:"session_id"`
	Timestamp   time.Time         `json:"timestamp"`
	MetricName  string            `json:"metric_name"`
	MetricValue float64           `json:"metric_value"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// FeedbackEntry references a Record by id. The reference is a logical
// foreign key only; writes do not verify the record exists.
type FeedbackEntry struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Timestamp      time.Time `json:"timestamp"`
	FeedbackType   string    `json:"feedback_type"`
	FeedbackValue  string    `json:"feedback_value"`
}

// Stats is the aggregate view over a window of records.
type Stats struct {
	TotalConversations int       `json:"total_conversations"`
	SuccessCount       int       `json:"success_count"`
	FailureCount       int       `json:"failure_count"`
	SuccessRatePct     float64   `json:"success_rate_pct"`
	AvgResponseTimeMS  float64   `json:"avg_response_time_ms"`
	Sessions           int       `json:"sessions"`
	FirstTimestamp     time.Time `json:"first_timestamp"`
	LastTimestamp      time.Time `json:"last_timestamp"`
}

// ErrorPattern is one row of the failure histogram: how often an exact
// error message occurred and when it was last seen.
type ErrorPattern struct {
	ErrorMessage string    `json:"error_message"`
	Count        int       `json:"count"`
	LastSeen     time.Time `json:"last_seen"`
}
