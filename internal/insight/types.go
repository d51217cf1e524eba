package insight

import (
	"github.com/fyrsmithlabs/insightd/internal/conversation"
	"github.com/fyrsmithlabs/insightd/internal/knowledge"
	"github.com/fyrsmithlabs/insightd/internal/performance"
)

// Statuses reported by advisory operations when no real result exists.
const (
	// StatusDisabled marks results produced while the subsystem is off.
	StatusDisabled = "disabled"

	// StatusError marks results degraded by an internal failure. The
	// failure itself is logged, not returned.
	StatusError = "error"
)

// TurnInput is one completed user/agent exchange.
type TurnInput struct {
	SessionID     string
	UserMessage   string
	AgentResponse string

	// ResponseTimeMS is the elapsed response time in milliseconds.
	ResponseTimeMS float64

	// RoomName is an optional channel or room label.
	RoomName string

	Success bool

	// ErrorMessage carries failure detail when Success is false.
	ErrorMessage string

	// Metadata is free-form context carried into the store and the index.
	Metadata map[string]string
}

// TurnResult reports what LogTurn recorded.
type TurnResult struct {
	// RecordID is the durable store id, 0 when nothing was logged.
	RecordID int64 `json:"record_id,omitempty"`

	// Logged is false when the subsystem is disabled.
	Logged bool `json:"logged"`

	// Indexed is true when the turn also reached the semantic index.
	Indexed bool `json:"indexed"`
}

// PerformanceReport is the statistical report merged with store and index
// summaries. Status is set only when no report could be generated.
type PerformanceReport struct {
	Status string `json:"status,omitempty"`

	*performance.Report

	DatabaseStats      *conversation.Stats   `json:"database_stats,omitempty"`
	KnowledgeBaseStats *knowledge.Statistics `json:"knowledge_base_stats,omitempty"`
}

// SessionSummary aggregates the logged turns of one session.
type SessionSummary struct {
	Status                  string `json:"status,omitempty"`
	SessionID               string `json:"session_id,omitempty"`
	TotalConversations      int    `json:"total_conversations"`
	SuccessfulConversations int    `json:"successful_conversations"`
	FailedConversations     int    `json:"failed_conversations"`

	// AvgResponseTimeMS covers only turns that carried a response time.
	AvgResponseTimeMS float64 `json:"avg_response_time_ms,omitempty"`
}

// ErrorInsights summarizes the store's failure histogram.
type ErrorInsights struct {
	Status            string                      `json:"status,omitempty"`
	TotalUniqueErrors int                         `json:"total_unique_errors"`
	ErrorPatterns     []conversation.ErrorPattern `json:"error_patterns"`
}

// Status is a point-in-time snapshot of the subsystem.
type Status struct {
	Enabled          bool  `json:"enabled"`
	Initialized      bool  `json:"initialized"`
	TotalTurnsLogged int64 `json:"total_turns_logged"`
	AutoImprove      bool  `json:"auto_improve"`
	ReportInterval   int   `json:"report_interval"`

	// SinkConfigured reports whether the optional downstream sink has both
	// a URL and a credential set. The core never dials it.
	SinkConfigured bool `json:"sink_configured"`

	KnowledgeBase *knowledge.Statistics `json:"knowledge_base,omitempty"`
	DatabaseStats *conversation.Stats   `json:"database_stats,omitempty"`
}
