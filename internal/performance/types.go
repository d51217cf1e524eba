package performance

import "time"

// Severity ranks how urgently a suggestion should be acted on.
type Severity string

const (
	// SeverityHigh flags issues that degrade the user experience now.
	SeverityHigh Severity = "high"
	// SeverityMedium flags issues worth monitoring before they escalate.
	SeverityMedium Severity = "medium"
	// SeverityLow flags stylistic or efficiency improvements.
	SeverityLow Severity = "low"
)

// Status reports whether an analysis had enough data to produce results.
type Status string

const (
	StatusNoData           Status = "no_data"
	StatusAnalyzed         Status = "analyzed"
	StatusInsufficientData Status = "insufficient_data"
	StatusCompared         Status = "compared"
)

// Suggestion categories.
const (
	CategoryResponseTime   = "response_time"
	CategoryErrorRate      = "error_rate"
	CategoryRecurringError = "recurring_error"
	CategoryResponseLength = "response_length"
)

// Suggestion is a rule-triggered improvement hint.
type Suggestion struct {
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
	Text     string   `json:"text"`
}

// ResponseTimeAnalysis summarizes latency over the records that carry a
// response time. All values are milliseconds.
type ResponseTimeAnalysis struct {
	Status Status  `json:"status"`
	Count  int     `json:"count"`
	AvgMS  float64 `json:"avg_ms"`
	MinMS  float64 `json:"min_ms"`
	MaxMS  float64 `json:"max_ms"`
	P50MS  float64 `json:"p50_ms"`
	P95MS  float64 `json:"p95_ms"`
	P99MS  float64 `json:"p99_ms"`
}

// ErrorAnalysis summarizes failure frequency across a batch of records.
type ErrorAnalysis struct {
	Status       Status  `json:"status"`
	Total        int     `json:"total"`
	ErrorCount   int     `json:"error_count"`
	ErrorRatePct float64 `json:"error_rate_pct"`
	// ErrorTypes maps the first line of each error message, truncated to
	// 50 characters, to its occurrence count.
	ErrorTypes map[string]int `json:"error_types,omitempty"`
}

// ConversationAnalysis summarizes message verbosity in characters. The
// averages cover only records whose message is non-empty and are zero
// when no record qualifies.
type ConversationAnalysis struct {
	Status                 Status  `json:"status"`
	Count                  int     `json:"count"`
	AvgUserMessageLength   float64 `json:"avg_user_message_length,omitempty"`
	AvgAgentResponseLength float64 `json:"avg_agent_response_length,omitempty"`
}

// Summary counts a report's suggestions by severity.
type Summary struct {
	Total  int `json:"total"`
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Report bundles the three analyses with the suggestions they produced.
type Report struct {
	GeneratedAt   time.Time            `json:"generated_at"`
	ResponseTimes ResponseTimeAnalysis `json:"response_times"`
	Errors        ErrorAnalysis        `json:"errors"`
	Conversations ConversationAnalysis `json:"conversations"`
	Suggestions   []Suggestion         `json:"suggestions"`
	Summary       Summary              `json:"summary"`
}

// PeriodStats condenses one side of a period comparison.
type PeriodStats struct {
	Conversations     int     `json:"conversations"`
	AvgResponseTimeMS float64 `json:"avg_response_time_ms"`
	ErrorRatePct      float64 `json:"error_rate_pct"`
}

// Improvement reports the delta between two periods. A positive response
// time improvement means the recent period is faster.
type Improvement struct {
	ResponseTimeImprovementPct float64 `json:"response_time_improvement_pct"`
	ErrorRateChangePct         float64 `json:"error_rate_change_pct"`
}

// Comparison contrasts a recent window against a historical baseline.
// Recent, Historical, and Improvement are only meaningful when Status is
// StatusCompared.
type Comparison struct {
	Status      Status      `json:"status"`
	Recent      PeriodStats `json:"recent_period"`
	Historical  PeriodStats `json:"historical_period"`
	Improvement Improvement `json:"improvement"`
}
