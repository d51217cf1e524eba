package insight

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/insightd/internal/config"
	"github.com/fyrsmithlabs/insightd/internal/conversation"
	"github.com/fyrsmithlabs/insightd/internal/embeddings"
	"github.com/fyrsmithlabs/insightd/internal/knowledge"
	"github.com/fyrsmithlabs/insightd/internal/performance"
	"github.com/fyrsmithlabs/insightd/internal/vectorstore"
)

const instrumentationName = "github.com/fyrsmithlabs/insightd/internal/insight"

const (
	// reportFetchLimit caps how many records feed one report or summary.
	reportFetchLimit = 1000

	// defaultReportDays is the window a report covers when none is given.
	defaultReportDays = 7

	// autoReportDays is the window background-scheduled reports cover.
	autoReportDays = 1

	// enhanceContextLimit is how many retrieved contexts extend a set of
	// agent instructions.
	enhanceContextLimit = 2

	// errorInsightLimit caps the failure histogram size.
	errorInsightLimit = 20
)

// interactionStore is the durable log the Manager writes through.
type interactionStore interface {
	AppendRecord(ctx context.Context, in conversation.RecordInput) (int64, error)
	AppendMetric(ctx context.Context, sessionID, name string, value float64, metadata map[string]string) error
	AppendFeedback(ctx context.Context, recordID int64, kind, value string) error
	RecentRecords(ctx context.Context, limit int, sessionID string) ([]conversation.Record, error)
	Stats(ctx context.Context, sessionID string, sinceDays int) (*conversation.Stats, error)
	ErrorHistogram(ctx context.Context, limit int) ([]conversation.ErrorPattern, error)
	Close() error
}

// semanticIndex is the vector index the Manager reads and writes.
type semanticIndex interface {
	InsertConversation(ctx context.Context, conv knowledge.Conversation) (string, error)
	InsertPattern(ctx context.Context, description, category string, metadata map[string]string) (string, error)
	Query(ctx context.Context, query string, k int, filters map[string]string) ([]knowledge.Entry, error)
	Statistics(ctx context.Context) (knowledge.Statistics, error)
	ClearAll(ctx context.Context) error
}

var (
	_ interactionStore = (*conversation.Store)(nil)
	_ semanticIndex    = (*knowledge.Retriever)(nil)
)

// Manager is the single entry point the surrounding application talks to.
// One instance is shared process-wide and is safe for concurrent use.
type Manager struct {
	cfg    *config.Config
	logger *zap.Logger

	tracer trace.Tracer
	meter  metric.Meter

	turnsLogged      metric.Int64Counter
	contextsServed   metric.Int64Counter
	reportsGenerated metric.Int64Counter

	// initMu guards lazy initialization. A failed attempt leaves
	// initialized false so the next operation retries.
	initMu      sync.Mutex
	initialized bool

	store    interactionStore
	index    semanticIndex
	tracker  *performance.Tracker
	reporter *reporter

	// provider and vstore are retained only for Close; store and index are
	// the working handles.
	provider embeddings.Provider
	vstore   vectorstore.Store

	turnCount atomic.Int64

	closeMu sync.Mutex
	closed  bool
}

// NewManager creates a Manager from configuration. Leaf components (the
// SQLite store, the embedding provider, the vector index) are not opened
// here; the first real operation initializes them lazily.
func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		cfg:     cfg,
		logger:  logger,
		tracer:  otel.Tracer(instrumentationName),
		meter:   otel.Meter(instrumentationName),
		tracker: performance.NewTracker(),
	}
	m.initMetrics()

	if !cfg.Insights.Enabled {
		logger.Info("insights disabled, all operations are no-ops")
	}
	return m
}

// initMetrics initializes OpenTelemetry metrics.
func (m *Manager) initMetrics() {
	var err error

	m.turnsLogged, err = m.meter.Int64Counter(
		"insightd.insight.turns_logged_total",
		metric.WithDescription("Total number of turns durably logged"),
		metric.WithUnit("{turn}"),
	)
	if err != nil {
		m.logger.Warn("failed to create turns counter", zap.Error(err))
	}

	m.contextsServed, err = m.meter.Int64Counter(
		"insightd.insight.contexts_served_total",
		metric.WithDescription("Total number of retrieved context entries served"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		m.logger.Warn("failed to create contexts counter", zap.Error(err))
	}

	m.reportsGenerated, err = m.meter.Int64Counter(
		"insightd.insight.reports_generated_total",
		metric.WithDescription("Total number of performance reports generated"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		m.logger.Warn("failed to create reports counter", zap.Error(err))
	}
}

func (m *Manager) enabled() bool {
	return m.cfg.Insights.Enabled
}

// ensureReady lazily builds the leaf components. The first successful call
// wins; later calls return immediately. A failed call is retried by the
// next operation.
func (m *Manager) ensureReady(ctx context.Context) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()
	if m.initialized {
		return nil
	}

	if m.store == nil {
		store, err := conversation.Open(m.cfg.Store.Path, m.logger)
		if err != nil {
			return fmt.Errorf("opening interaction store: %w", err)
		}
		m.store = store
	}

	if m.index == nil {
		provider, err := embeddings.NewProvider(embeddings.ProviderConfig{
			Provider: m.cfg.Embeddings.Provider,
			Model:    m.cfg.Embeddings.Model,
			BaseURL:  m.cfg.Embeddings.BaseURL,
			CacheDir: m.cfg.Embeddings.CacheDir,
			Timeout:  m.cfg.Embeddings.Timeout.Duration(),
		})
		if err != nil {
			return fmt.Errorf("creating embedding provider: %w", err)
		}
		vstore, err := vectorstore.NewStore(m.cfg, provider, provider.Dimension(), m.logger)
		if err != nil {
			provider.Close()
			return fmt.Errorf("creating vector store: %w", err)
		}
		retriever, err := knowledge.NewRetriever(vstore, m.cfg.Embeddings.Model, m.logger)
		if err != nil {
			vstore.Close()
			provider.Close()
			return err
		}
		m.provider = provider
		m.vstore = vstore
		m.index = retriever
	}

	if m.reporter == nil {
		m.reporter = newReporter(m, m.logger)
	}
	m.reporter.start()

	m.initialized = true
	m.logger.Info("insight manager initialized",
		zap.String("store_path", m.cfg.Store.Path),
		zap.Bool("auto_improve", m.cfg.Insights.AutoImprove),
		zap.Int("report_interval", m.cfg.Insights.ReportInterval))
	return nil
}

// LogTurn records one completed exchange. The durable write happens first
// and its failure aborts the call; indexing and metric samples are
// secondary and never fail the caller. Every ReportInterval-th turn
// schedules a background improvement report.
func (m *Manager) LogTurn(ctx context.Context, turn TurnInput) (*TurnResult, error) {
	if !m.enabled() {
		return &TurnResult{}, nil
	}

	ctx, span := m.tracer.Start(ctx, "insight.log_turn")
	defer span.End()

	span.SetAttributes(
		attribute.String("session_id", turn.SessionID),
		attribute.Bool("success", turn.Success),
	)

	if err := m.ensureReady(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	recordID, err := m.store.AppendRecord(ctx, conversation.RecordInput{
		SessionID:      turn.SessionID,
		RoomName:       turn.RoomName,
		UserMessage:    turn.UserMessage,
		AgentResponse:  turn.AgentResponse,
		ResponseTimeMS: turn.ResponseTimeMS,
		Success:        turn.Success,
		ErrorMessage:   turn.ErrorMessage,
		Metadata:       turn.Metadata,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("logging turn: %w", err)
	}

	result := &TurnResult{RecordID: recordID, Logged: true}

	// Only successful exchanges become retrievable knowledge. A failure
	// here leaves the durable record in place.
	if turn.Success {
		if _, err := m.index.InsertConversation(ctx, knowledge.Conversation{
			RecordID:       recordID,
			SessionID:      turn.SessionID,
			UserMessage:    turn.UserMessage,
			AgentResponse:  turn.AgentResponse,
			ResponseTimeMS: turn.ResponseTimeMS,
			Success:        turn.Success,
			Timestamp:      time.Now().UTC(),
			Metadata:       turn.Metadata,
		}); err != nil {
			m.logger.Warn("turn indexing failed",
				zap.Int64("record_id", recordID),
				zap.String("session_id", turn.SessionID),
				zap.Error(err))
		} else {
			result.Indexed = true
		}
	}

	metricMeta := map[string]string{"success": strconv.FormatBool(turn.Success)}
	if err := m.store.AppendMetric(ctx, turn.SessionID, "response_time", turn.ResponseTimeMS, metricMeta); err != nil {
		m.logger.Warn("metric write failed",
			zap.Int64("record_id", recordID),
			zap.Error(err))
	}
	m.tracker.Record(turn.SessionID, "response_time", turn.ResponseTimeMS, metricMeta)

	count := m.turnCount.Add(1)
	if interval := m.cfg.Insights.ReportInterval; m.cfg.Insights.AutoImprove && interval > 0 && count%int64(interval) == 0 {
		m.reporter.requestReport()
	}

	if m.turnsLogged != nil {
		m.turnsLogged.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool("success", turn.Success),
		))
	}
	span.SetAttributes(attribute.Int64("record_id", recordID))
	span.SetStatus(codes.Ok, "logged")
	return result, nil
}

// RelevantContext retrieves up to maxResults entries similar to query,
// optionally restricted to one session. Advisory: a disabled subsystem and
// internal failures both yield an empty result, never an error.
func (m *Manager) RelevantContext(ctx context.Context, query string, maxResults int, sessionID string) []knowledge.Entry {
	if !m.enabled() {
		return nil
	}

	ctx, span := m.tracer.Start(ctx, "insight.relevant_context")
	defer span.End()

	if err := m.ensureReady(ctx); err != nil {
		m.logger.Warn("context retrieval unavailable", zap.Error(err))
		span.RecordError(err)
		return nil
	}

	var filters map[string]string
	if sessionID != "" {
		filters = map[string]string{"session_id": sessionID}
	}

	entries, err := m.index.Query(ctx, query, maxResults, filters)
	if err != nil {
		m.logger.Warn("context retrieval failed", zap.Error(err))
		span.RecordError(err)
		return nil
	}

	if m.contextsServed != nil {
		m.contextsServed.Add(ctx, int64(len(entries)))
	}
	span.SetAttributes(attribute.Int("results", len(entries)))
	return entries
}

// EnhanceInstructions appends up to two retrieved contexts to the base
// agent instructions. The base comes back unchanged when the subsystem is
// disabled or nothing relevant is indexed.
func (m *Manager) EnhanceInstructions(ctx context.Context, baseInstructions, query string) string {
	if !m.enabled() {
		return baseInstructions
	}

	contexts := m.RelevantContext(ctx, query, enhanceContextLimit, "")
	if len(contexts) == 0 {
		return baseInstructions
	}

	var b strings.Builder
	b.WriteString(baseInstructions)
	b.WriteString("\n\nRelevant past interactions:\n")
	for i, entry := range contexts {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, entry.Content)
	}
	b.WriteString("\n\nUse the above context if relevant to the current conversation, but prioritize the user's current needs.")
	return b.String()
}

// PerformanceReport builds the statistical report over roughly the last
// days of records, merged with store and index summaries. Advisory:
// failures degrade to a status-only report, never an error.
func (m *Manager) PerformanceReport(ctx context.Context, days int) *PerformanceReport {
	if !m.enabled() {
		return &PerformanceReport{Status: StatusDisabled}
	}

	ctx, span := m.tracer.Start(ctx, "insight.performance_report")
	defer span.End()

	if days <= 0 {
		days = defaultReportDays
	}
	span.SetAttributes(attribute.Int("days", days))

	if err := m.ensureReady(ctx); err != nil {
		m.logger.Warn("performance report unavailable", zap.Error(err))
		span.RecordError(err)
		return &PerformanceReport{Status: StatusError}
	}

	records, err := m.store.RecentRecords(ctx, reportFetchLimit, "")
	if err != nil {
		m.logger.Warn("performance report source read failed", zap.Error(err))
		span.RecordError(err)
		return &PerformanceReport{Status: StatusError}
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	recent := make([]conversation.Record, 0, len(records))
	for _, r := range records {
		if r.Timestamp.After(cutoff) {
			recent = append(recent, r)
		}
	}

	report := &PerformanceReport{Report: performance.GenerateReport(recent)}

	if stats, err := m.store.Stats(ctx, "", days); err != nil {
		m.logger.Warn("database stats unavailable", zap.Error(err))
	} else {
		report.DatabaseStats = stats
	}
	if kb, err := m.index.Statistics(ctx); err != nil {
		m.logger.Warn("knowledge base stats unavailable", zap.Error(err))
	} else {
		report.KnowledgeBaseStats = &kb
	}

	if m.reportsGenerated != nil {
		m.reportsGenerated.Add(ctx, 1)
	}
	m.logger.Info("generated performance report",
		zap.Int("days", days),
		zap.Int("records", len(recent)),
		zap.Int("suggestions", report.Summary.Total))
	return report
}

// SessionSummary aggregates the logged turns of one session.
func (m *Manager) SessionSummary(ctx context.Context, sessionID string) *SessionSummary {
	if !m.enabled() {
		return &SessionSummary{Status: StatusDisabled}
	}

	ctx, span := m.tracer.Start(ctx, "insight.session_summary")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", sessionID))

	if err := m.ensureReady(ctx); err != nil {
		m.logger.Warn("session summary unavailable", zap.Error(err))
		span.RecordError(err)
		return &SessionSummary{Status: StatusError, SessionID: sessionID}
	}

	records, err := m.store.RecentRecords(ctx, reportFetchLimit, sessionID)
	if err != nil {
		m.logger.Warn("session summary read failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
		span.RecordError(err)
		return &SessionSummary{Status: StatusError, SessionID: sessionID}
	}

	summary := &SessionSummary{
		SessionID:          sessionID,
		TotalConversations: len(records),
	}
	var timed int
	var total float64
	for _, r := range records {
		if r.Success {
			summary.SuccessfulConversations++
		} else {
			summary.FailedConversations++
		}
		if r.ResponseTimeMS > 0 {
			total += r.ResponseTimeMS
			timed++
		}
	}
	if timed > 0 {
		summary.AvgResponseTimeMS = total / float64(timed)
	}
	return summary
}

// AddPattern inserts a curated pattern into the semantic index under a
// fresh pattern id and returns that id. Disabled subsystems return an
// empty id without error.
func (m *Manager) AddPattern(ctx context.Context, patternType, description string, metadata map[string]string) (string, error) {
	if !m.enabled() {
		return "", nil
	}

	ctx, span := m.tracer.Start(ctx, "insight.add_pattern")
	defer span.End()
	span.SetAttributes(attribute.String("pattern_type", patternType))

	if err := m.ensureReady(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	id, err := m.index.InsertPattern(ctx, description, patternType, metadata)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("adding pattern: %w", err)
	}

	m.logger.Info("added pattern",
		zap.String("id", id),
		zap.String("type", patternType),
		zap.String("description", description))
	return id, nil
}

// RecordFeedback attaches user feedback to a previously logged turn.
func (m *Manager) RecordFeedback(ctx context.Context, recordID int64, kind, value string) error {
	if !m.enabled() {
		return nil
	}

	ctx, span := m.tracer.Start(ctx, "insight.record_feedback")
	defer span.End()
	span.SetAttributes(attribute.Int64("record_id", recordID))

	if err := m.ensureReady(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	return m.store.AppendFeedback(ctx, recordID, kind, value)
}

// ErrorInsights summarizes the most common failure messages.
func (m *Manager) ErrorInsights(ctx context.Context) *ErrorInsights {
	if !m.enabled() {
		return &ErrorInsights{Status: StatusDisabled}
	}

	ctx, span := m.tracer.Start(ctx, "insight.error_insights")
	defer span.End()

	if err := m.ensureReady(ctx); err != nil {
		m.logger.Warn("error insights unavailable", zap.Error(err))
		span.RecordError(err)
		return &ErrorInsights{Status: StatusError}
	}

	patterns, err := m.store.ErrorHistogram(ctx, errorInsightLimit)
	if err != nil {
		m.logger.Warn("error histogram read failed", zap.Error(err))
		span.RecordError(err)
		return &ErrorInsights{Status: StatusError}
	}

	return &ErrorInsights{
		TotalUniqueErrors: len(patterns),
		ErrorPatterns:     patterns,
	}
}

// ClearKnowledge removes every entry from the semantic index. The durable
// conversation log is untouched.
func (m *Manager) ClearKnowledge(ctx context.Context) error {
	if !m.enabled() {
		return nil
	}
	if err := m.ensureReady(ctx); err != nil {
		return err
	}
	if err := m.index.ClearAll(ctx); err != nil {
		return fmt.Errorf("clearing knowledge base: %w", err)
	}
	m.logger.Info("knowledge base cleared")
	return nil
}

// Status reports the subsystem's current state. A disabled subsystem
// reports only Enabled=false; store or index summary failures degrade to
// a snapshot without that section.
func (m *Manager) Status(ctx context.Context) *Status {
	if !m.enabled() {
		return &Status{Enabled: false}
	}

	status := &Status{
		Enabled:        true,
		AutoImprove:    m.cfg.Insights.AutoImprove,
		ReportInterval: m.cfg.Insights.ReportInterval,
		SinkConfigured: m.cfg.Sink.Configured(),
	}

	if err := m.ensureReady(ctx); err != nil {
		m.logger.Warn("status degraded, initialization failed", zap.Error(err))
		return status
	}
	status.Initialized = true
	status.TotalTurnsLogged = m.turnCount.Load()

	if kb, err := m.index.Statistics(ctx); err != nil {
		m.logger.Warn("knowledge base stats unavailable", zap.Error(err))
	} else {
		status.KnowledgeBase = &kb
	}
	if db, err := m.store.Stats(ctx, "", defaultReportDays); err != nil {
		m.logger.Warn("database stats unavailable", zap.Error(err))
	} else {
		status.DatabaseStats = db
	}
	return status
}

// Close stops the background reporter and closes the leaf components.
// Safe to call more than once.
func (m *Manager) Close() error {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	if m.reporter != nil {
		m.reporter.stop()
	}

	var errs []error
	if m.vstore != nil {
		if err := m.vstore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing vector store: %w", err))
		}
	}
	if m.provider != nil {
		if err := m.provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing embedding provider: %w", err))
		}
	}
	if m.store != nil {
		if err := m.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing interaction store: %w", err))
		}
	}
	return errors.Join(errs...)
}
