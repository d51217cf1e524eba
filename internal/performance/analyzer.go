package performance

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fyrsmithlabs/insightd/internal/conversation"
)

// Suggestion thresholds.
const (
	slowP95ThresholdMS     = 5000.0
	degradedP95ThresholdMS = 3000.0
	highErrorRate          = 0.10
	recurringErrorMinCount = 3
	longResponseChars      = 500
	longResponseShare      = 0.30
	errorTypeMaxChars      = 50
)

// AnalyzeResponseTimes computes latency statistics over the records that
// carry a response time. Percentiles index the ascending-sorted values at
// floor(len*fraction) without interpolation. Returns StatusNoData when no
// record carries a response time.
func AnalyzeResponseTimes(records []conversation.Record) (ResponseTimeAnalysis, []Suggestion) {
	times := make([]float64, 0, len(records))
	for _, r := range records {
		if r.ResponseTimeMS > 0 {
			times = append(times, r.ResponseTimeMS)
		}
	}
	if len(times) == 0 {
		return ResponseTimeAnalysis{Status: StatusNoData}, nil
	}

	sort.Float64s(times)
	var total float64
	for _, t := range times {
		total += t
	}

	analysis := ResponseTimeAnalysis{
		Status: StatusAnalyzed,
		Count:  len(times),
		AvgMS:  round2(total / float64(len(times))),
		MinMS:  round2(times[0]),
		MaxMS:  round2(times[len(times)-1]),
		P50MS:  round2(percentile(times, 0.50)),
		P95MS:  round2(percentile(times, 0.95)),
		P99MS:  round2(percentile(times, 0.99)),
	}

	var suggestions []Suggestion
	switch {
	case analysis.P95MS > slowP95ThresholdMS:
		suggestions = append(suggestions, Suggestion{
			Category: CategoryResponseTime,
			Severity: SeverityHigh,
			Text:     "95th percentile response time exceeds 5 seconds. Consider optimizing LLM parameters or using a faster model.",
		})
	case analysis.P95MS > degradedP95ThresholdMS:
		suggestions = append(suggestions, Suggestion{
			Category: CategoryResponseTime,
			Severity: SeverityMedium,
			Text:     "95th percentile response time exceeds 3 seconds. Monitor for user experience impact.",
		})
	}
	return analysis, suggestions
}

// AnalyzeErrorPatterns computes the failure rate and groups failures by
// the first line of their error message.
func AnalyzeErrorPatterns(records []conversation.Record) (ErrorAnalysis, []Suggestion) {
	if len(records) == 0 {
		return ErrorAnalysis{Status: StatusNoData}, nil
	}

	errorTypes := make(map[string]int)
	errorCount := 0
	for _, r := range records {
		if r.Success {
			continue
		}
		errorCount++
		errorTypes[errorKey(r.ErrorMessage)]++
	}
	rate := float64(errorCount) / float64(len(records))

	analysis := ErrorAnalysis{
		Status:       StatusAnalyzed,
		Total:        len(records),
		ErrorCount:   errorCount,
		ErrorRatePct: round2(rate * 100),
		ErrorTypes:   errorTypes,
	}

	var suggestions []Suggestion
	if rate > highErrorRate {
		suggestions = append(suggestions, Suggestion{
			Category: CategoryErrorRate,
			Severity: SeverityHigh,
			Text:     fmt.Sprintf("Error rate is %.1f%%. Investigate and fix common error patterns.", rate*100),
		})
	}
	if msg, count := mostFrequentError(errorTypes); count > recurringErrorMinCount {
		suggestions = append(suggestions, Suggestion{
			Category: CategoryRecurringError,
			Severity: SeverityMedium,
			Text:     fmt.Sprintf("Recurring error detected: '%s' occurred %d times.", msg, count),
		})
	}
	return analysis, suggestions
}

// AnalyzeConversationPatterns computes average message lengths in
// characters, counting only non-empty messages.
func AnalyzeConversationPatterns(records []conversation.Record) (ConversationAnalysis, []Suggestion) {
	if len(records) == 0 {
		return ConversationAnalysis{Status: StatusNoData}, nil
	}

	var userLengths, agentLengths []int
	for _, r := range records {
		if r.UserMessage != "" {
			userLengths = append(userLengths, utf8.RuneCountInString(r.UserMessage))
		}
		if r.AgentResponse != "" {
			agentLengths = append(agentLengths, utf8.RuneCountInString(r.AgentResponse))
		}
	}

	analysis := ConversationAnalysis{
		Status: StatusAnalyzed,
		Count:  len(records),
	}
	if len(userLengths) > 0 {
		analysis.AvgUserMessageLength = round2(mean(userLengths))
	}
	if len(agentLengths) > 0 {
		analysis.AvgAgentResponseLength = round2(mean(agentLengths))
	}

	var suggestions []Suggestion
	if len(agentLengths) > 0 {
		long := 0
		for _, l := range agentLengths {
			if l > longResponseChars {
				long++
			}
		}
		if float64(long)/float64(len(agentLengths)) > longResponseShare {
			suggestions = append(suggestions, Suggestion{
				Category: CategoryResponseLength,
				Severity: SeverityLow,
				Text:     "More than 30% of responses are quite long (>500 chars). For voice interactions, consider making responses more concise.",
			})
		}
	}
	return analysis, suggestions
}

// GenerateReport runs all three analyses over records and bundles their
// results. Suggestions are a per-call result: each report carries exactly
// the suggestions its own analyses produced, in analysis order.
func GenerateReport(records []conversation.Record) *Report {
	responseTimes, rtSuggestions := AnalyzeResponseTimes(records)
	errors, errSuggestions := AnalyzeErrorPatterns(records)
	conversations, convSuggestions := AnalyzeConversationPatterns(records)

	suggestions := make([]Suggestion, 0, len(rtSuggestions)+len(errSuggestions)+len(convSuggestions))
	suggestions = append(suggestions, rtSuggestions...)
	suggestions = append(suggestions, errSuggestions...)
	suggestions = append(suggestions, convSuggestions...)

	return &Report{
		GeneratedAt:   time.Now().UTC(),
		ResponseTimes: responseTimes,
		Errors:        errors,
		Conversations: conversations,
		Suggestions:   suggestions,
		Summary:       summarize(suggestions),
	}
}

// CompareTimePeriods contrasts recent records against a historical
// baseline. Both periods need at least one timed record; otherwise the
// comparison reports StatusInsufficientData.
func CompareTimePeriods(recent, historical []conversation.Record) Comparison {
	recentTimes, _ := AnalyzeResponseTimes(recent)
	historicalTimes, _ := AnalyzeResponseTimes(historical)
	if recentTimes.Status != StatusAnalyzed || historicalTimes.Status != StatusAnalyzed {
		return Comparison{Status: StatusInsufficientData}
	}

	avgImprovement := (historicalTimes.AvgMS - recentTimes.AvgMS) / historicalTimes.AvgMS
	recentRate := failureRate(recent)
	historicalRate := failureRate(historical)

	return Comparison{
		Status: StatusCompared,
		Recent: PeriodStats{
			Conversations:     len(recent),
			AvgResponseTimeMS: recentTimes.AvgMS,
			ErrorRatePct:      round2(recentRate * 100),
		},
		Historical: PeriodStats{
			Conversations:     len(historical),
			AvgResponseTimeMS: historicalTimes.AvgMS,
			ErrorRatePct:      round2(historicalRate * 100),
		},
		Improvement: Improvement{
			ResponseTimeImprovementPct: round2(avgImprovement * 100),
			ErrorRateChangePct:         round2((recentRate - historicalRate) * 100),
		},
	}
}

// FilterBySeverity returns the suggestions matching severity. An empty
// severity matches everything.
func FilterBySeverity(suggestions []Suggestion, severity Severity) []Suggestion {
	if severity == "" {
		return suggestions
	}
	filtered := make([]Suggestion, 0, len(suggestions))
	for _, s := range suggestions {
		if s.Severity == severity {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// percentile picks the value at index floor(len*fraction) of the
// ascending-sorted input, without interpolation.
func percentile(sorted []float64, fraction float64) float64 {
	idx := int(float64(len(sorted)) * fraction)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// errorKey reduces an error message to its grouping key: the first line,
// truncated to 50 characters. Blank messages group as "Unknown error".
func errorKey(message string) string {
	if message == "" {
		return "Unknown error"
	}
	line, _, _ := strings.Cut(message, "\n")
	runes := []rune(line)
	if len(runes) > errorTypeMaxChars {
		return string(runes[:errorTypeMaxChars])
	}
	return line
}

// mostFrequentError returns the error type with the highest count. Ties
// break toward the lexicographically smaller message so repeated analyses
// are stable.
func mostFrequentError(errorTypes map[string]int) (string, int) {
	var topMsg string
	topCount := 0
	for msg, count := range errorTypes {
		if count > topCount || (count == topCount && msg < topMsg) {
			topMsg = msg
			topCount = count
		}
	}
	return topMsg, topCount
}

// failureRate returns the fraction of records with success=false.
func failureRate(records []conversation.Record) float64 {
	if len(records) == 0 {
		return 0
	}
	failures := 0
	for _, r := range records {
		if !r.Success {
			failures++
		}
	}
	return float64(failures) / float64(len(records))
}

func summarize(suggestions []Suggestion) Summary {
	s := Summary{Total: len(suggestions)}
	for _, sg := range suggestions {
		switch sg.Severity {
		case SeverityHigh:
			s.High++
		case SeverityMedium:
			s.Medium++
		case SeverityLow:
			s.Low++
		}
	}
	return s
}

func mean(values []int) float64 {
	total := 0
	for _, v := range values {
		total += v
	}
	return float64(total) / float64(len(values))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
