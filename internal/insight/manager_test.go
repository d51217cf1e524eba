package insight

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/insightd/internal/config"
	"github.com/fyrsmithlabs/insightd/internal/conversation"
	"github.com/fyrsmithlabs/insightd/internal/knowledge"
	"github.com/fyrsmithlabs/insightd/internal/performance"
)

type storedMetric struct {
	sessionID string
	name      string
	value     float64
	metadata  map[string]string
}

type storedFeedback struct {
	recordID int64
	kind     string
	value    string
}

type fakeStore struct {
	mu sync.Mutex

	records  []conversation.Record
	metrics  []storedMetric
	feedback []storedFeedback

	appendErr error
	metricErr error

	recent      []conversation.Record
	recentErr   error
	panicNext   bool
	recentCalls atomic.Int32

	lastRecentLimit   int
	lastRecentSession string

	stats         *conversation.Stats
	statsErr      error
	lastStatsDays int

	histogram     []conversation.ErrorPattern
	histErr       error
	lastHistLimit int

	closeCalls int
}

func (f *fakeStore) AppendRecord(_ context.Context, in conversation.RecordInput) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return 0, f.appendErr
	}
	id := int64(len(f.records) + 1)
	f.records = append(f.records, conversation.Record{
		ID:             id,
		SessionID:      in.SessionID,
		RoomName:       in.RoomName,
		Timestamp:      time.Now().UTC(),
		UserMessage:    in.UserMessage,
		AgentResponse:  in.AgentResponse,
		ResponseTimeMS: in.ResponseTimeMS,
		Success:        in.Success,
		ErrorMessage:   in.ErrorMessage,
		Metadata:       in.Metadata,
	})
	return id, nil
}

func (f *fakeStore) AppendMetric(_ context.Context, sessionID, name string, value float64, metadata map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.metricErr != nil {
		return f.metricErr
	}
	f.metrics = append(f.metrics, storedMetric{sessionID, name, value, metadata})
	return nil
}

func (f *fakeStore) AppendFeedback(_ context.Context, recordID int64, kind, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedback = append(f.feedback, storedFeedback{recordID, kind, value})
	return nil
}

func (f *fakeStore) RecentRecords(_ context.Context, limit int, sessionID string) ([]conversation.Record, error) {
	f.recentCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicNext {
		f.panicNext = false
		panic("store exploded")
	}
	f.lastRecentLimit = limit
	f.lastRecentSession = sessionID
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	return f.recent, nil
}

func (f *fakeStore) Stats(_ context.Context, _ string, sinceDays int) (*conversation.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastStatsDays = sinceDays
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return f.stats, nil
}

func (f *fakeStore) ErrorHistogram(_ context.Context, limit int) ([]conversation.ErrorPattern, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastHistLimit = limit
	if f.histErr != nil {
		return nil, f.histErr
	}
	return f.histogram, nil
}

func (f *fakeStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return nil
}

func (f *fakeStore) recordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type storedPattern struct {
	description string
	category    string
	metadata    map[string]string
}

type fakeIndex struct {
	mu sync.Mutex

	convs    []knowledge.Conversation
	patterns []storedPattern

	insertErr  error
	patternErr error

	entries  []knowledge.Entry
	queryErr error

	lastQuery   string
	lastK       int
	lastFilters map[string]string

	stats    knowledge.Statistics
	statsErr error

	cleared bool
}

func (f *fakeIndex) InsertConversation(_ context.Context, conv knowledge.Conversation) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return "", f.insertErr
	}
	f.convs = append(f.convs, conv)
	return fmt.Sprintf("conv_%d", conv.RecordID), nil
}

func (f *fakeIndex) InsertPattern(_ context.Context, description, category string, metadata map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.patternErr != nil {
		return "", f.patternErr
	}
	f.patterns = append(f.patterns, storedPattern{description, category, metadata})
	return "pattern_test", nil
}

func (f *fakeIndex) Query(_ context.Context, query string, k int, filters map[string]string) ([]knowledge.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = query
	f.lastK = k
	f.lastFilters = filters
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.entries, nil
}

func (f *fakeIndex) Statistics(_ context.Context) (knowledge.Statistics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return knowledge.Statistics{}, f.statsErr
	}
	return f.stats, nil
}

func (f *fakeIndex) ClearAll(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = true
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Insights.Enabled = true
	cfg.Insights.AutoImprove = true
	cfg.ApplyDefaults()
	return cfg
}

func disabledConfig() *config.Config {
	cfg := testConfig()
	cfg.Insights.Enabled = false
	return cfg
}

// newTestManager wires a Manager to fakes. The first operation still runs
// ensureReady, which keeps the injected leaves and starts the reporter.
func newTestManager(t *testing.T, store *fakeStore, index *fakeIndex) *Manager {
	t.Helper()
	m := NewManager(testConfig(), zaptest.NewLogger(t))
	m.store = store
	m.index = index
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func sampleTurn() TurnInput {
	return TurnInput{
		SessionID:      "session-1",
		UserMessage:    "what are your opening hours",
		AgentResponse:  "we are open nine to five",
		ResponseTimeMS: 220.5,
		RoomName:       "lobby",
		Success:        true,
		Metadata:       map[string]string{"channel": "voice"},
	}
}

func TestLogTurnWritesStoreThenIndex(t *testing.T) {
	store := &fakeStore{}
	index := &fakeIndex{}
	m := newTestManager(t, store, index)

	res, err := m.LogTurn(context.Background(), sampleTurn())
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Logged)
	assert.True(t, res.Indexed)
	assert.Equal(t, int64(1), res.RecordID)

	require.Len(t, store.records, 1)
	rec := store.records[0]
	assert.Equal(t, "session-1", rec.SessionID)
	assert.Equal(t, "lobby", rec.RoomName)
	assert.Equal(t, "what are your opening hours", rec.UserMessage)
	assert.True(t, rec.Success)

	require.Len(t, index.convs, 1)
	conv := index.convs[0]
	assert.Equal(t, int64(1), conv.RecordID)
	assert.Equal(t, "we are open nine to five", conv.AgentResponse)
	assert.Equal(t, 220.5, conv.ResponseTimeMS)
	assert.Equal(t, map[string]string{"channel": "voice"}, conv.Metadata)

	require.Len(t, store.metrics, 1)
	assert.Equal(t, "response_time", store.metrics[0].name)
	assert.Equal(t, 220.5, store.metrics[0].value)
	assert.Equal(t, map[string]string{"success": "true"}, store.metrics[0].metadata)

	samples := m.tracker.Samples("session-1")
	require.Len(t, samples, 1)
	assert.Equal(t, 220.5, samples[0].Value)
	assert.Equal(t, int64(1), m.turnCount.Load())
}

func TestLogTurnStoreFailureShortCircuits(t *testing.T) {
	store := &fakeStore{appendErr: errors.New("disk full")}
	index := &fakeIndex{}
	m := newTestManager(t, store, index)

	res, err := m.LogTurn(context.Background(), sampleTurn())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorContains(t, err, "logging turn")
	assert.ErrorContains(t, err, "disk full")

	assert.Empty(t, index.convs)
	assert.Empty(t, store.metrics)
	assert.Zero(t, m.turnCount.Load())
	assert.Zero(t, m.tracker.Sessions())
}

func TestLogTurnFailedTurnSkipsIndexing(t *testing.T) {
	store := &fakeStore{}
	index := &fakeIndex{}
	m := newTestManager(t, store, index)

	turn := sampleTurn()
	turn.Success = false
	turn.ErrorMessage = "llm timeout"

	res, err := m.LogTurn(context.Background(), turn)
	require.NoError(t, err)
	assert.True(t, res.Logged)
	assert.False(t, res.Indexed)

	assert.Empty(t, index.convs)
	require.Len(t, store.records, 1)
	assert.Equal(t, "llm timeout", store.records[0].ErrorMessage)

	require.Len(t, store.metrics, 1)
	assert.Equal(t, map[string]string{"success": "false"}, store.metrics[0].metadata)
}

func TestLogTurnIndexFailureKeepsRecord(t *testing.T) {
	store := &fakeStore{}
	index := &fakeIndex{insertErr: errors.New("embedder offline")}
	m := newTestManager(t, store, index)

	res, err := m.LogTurn(context.Background(), sampleTurn())
	require.NoError(t, err)
	assert.True(t, res.Logged)
	assert.False(t, res.Indexed)
	assert.Equal(t, int64(1), res.RecordID)

	require.Len(t, store.records, 1)
	require.Len(t, store.metrics, 1)
	assert.Equal(t, int64(1), m.turnCount.Load())
}

func TestLogTurnMetricFailureIsDropped(t *testing.T) {
	store := &fakeStore{metricErr: errors.New("metrics table locked")}
	index := &fakeIndex{}
	m := newTestManager(t, store, index)

	res, err := m.LogTurn(context.Background(), sampleTurn())
	require.NoError(t, err)
	assert.True(t, res.Logged)
	assert.True(t, res.Indexed)

	assert.Empty(t, store.metrics)
	require.Len(t, m.tracker.Samples("session-1"), 1)
	assert.Equal(t, int64(1), m.turnCount.Load())
}

func TestLogTurnSchedulesReportAtInterval(t *testing.T) {
	store := &fakeStore{}
	index := &fakeIndex{}
	m := newTestManager(t, store, index)
	m.cfg.Insights.ReportInterval = 2

	// The worker is deliberately not started so trigger tokens stay
	// observable instead of being consumed.
	m.reporter = newReporter(m, zap.NewNop())
	m.initialized = true

	for i := 0; i < 2; i++ {
		_, err := m.LogTurn(context.Background(), sampleTurn())
		require.NoError(t, err)
	}
	assert.Len(t, m.reporter.trigger, 1)

	// The 4th turn crosses the interval again while a request is already
	// pending; it coalesces instead of queueing a second run.
	for i := 0; i < 2; i++ {
		_, err := m.LogTurn(context.Background(), sampleTurn())
		require.NoError(t, err)
	}
	assert.Len(t, m.reporter.trigger, 1)
}

func TestLogTurnAutoImproveOffSchedulesNothing(t *testing.T) {
	store := &fakeStore{}
	index := &fakeIndex{}
	m := newTestManager(t, store, index)
	m.cfg.Insights.AutoImprove = false
	m.cfg.Insights.ReportInterval = 2

	m.reporter = newReporter(m, zap.NewNop())
	m.initialized = true

	for i := 0; i < 4; i++ {
		_, err := m.LogTurn(context.Background(), sampleTurn())
		require.NoError(t, err)
	}
	assert.Empty(t, m.reporter.trigger)
}

func TestLogTurnConcurrentSessions(t *testing.T) {
	store := &fakeStore{}
	index := &fakeIndex{}
	m := newTestManager(t, store, index)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				turn := sampleTurn()
				turn.SessionID = fmt.Sprintf("session-%d", n%4)
				_, err := m.LogTurn(context.Background(), turn)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(200), m.turnCount.Load())
	assert.Equal(t, 200, store.recordCount())
	assert.Equal(t, 4, m.tracker.Sessions())
}

func TestLogTurnsThenReport(t *testing.T) {
	store := &fakeStore{}
	index := &fakeIndex{}
	m := newTestManager(t, store, index)

	for i := 0; i < 10; i++ {
		turn := sampleTurn()
		if i%5 == 0 {
			turn.Success = false
			turn.AgentResponse = ""
			turn.ErrorMessage = "llm timeout"
		}
		_, err := m.LogTurn(context.Background(), turn)
		require.NoError(t, err)
	}

	// Reads go through RecentRecords; serve the appended records newest first.
	store.mu.Lock()
	for i := len(store.records) - 1; i >= 0; i-- {
		store.recent = append(store.recent, store.records[i])
	}
	store.mu.Unlock()

	report := m.PerformanceReport(context.Background(), 7)
	require.NotNil(t, report.Report)

	assert.Equal(t, 10, report.Errors.Total)
	assert.Equal(t, 2, report.Errors.ErrorCount)
	assert.Equal(t, 20.0, report.Errors.ErrorRatePct)

	var highErrorRate bool
	for _, s := range report.Suggestions {
		if s.Category == performance.CategoryErrorRate && s.Severity == performance.SeverityHigh {
			highErrorRate = true
		}
	}
	assert.True(t, highErrorRate, "expected a high severity error_rate suggestion")

	// Only the eight successful turns reached the index.
	assert.Len(t, index.convs, 8)
}

func TestRelevantContextQueriesIndex(t *testing.T) {
	index := &fakeIndex{entries: []knowledge.Entry{
		{ID: "conv_1", Content: "User asked about hours; agent listed them.", Similarity: 0.91},
	}}
	m := newTestManager(t, &fakeStore{}, index)

	got := m.RelevantContext(context.Background(), "opening hours", 5, "session-1")
	require.Len(t, got, 1)
	assert.Equal(t, "conv_1", got[0].ID)

	assert.Equal(t, "opening hours", index.lastQuery)
	assert.Equal(t, 5, index.lastK)
	assert.Equal(t, map[string]string{"session_id": "session-1"}, index.lastFilters)
}

func TestRelevantContextWithoutSessionFilter(t *testing.T) {
	index := &fakeIndex{}
	m := newTestManager(t, &fakeStore{}, index)

	got := m.RelevantContext(context.Background(), "anything", 3, "")
	assert.Empty(t, got)
	assert.Nil(t, index.lastFilters)
}

func TestRelevantContextFailureYieldsEmpty(t *testing.T) {
	index := &fakeIndex{queryErr: errors.New("index corrupt")}
	m := newTestManager(t, &fakeStore{}, index)

	got := m.RelevantContext(context.Background(), "anything", 3, "")
	assert.Empty(t, got)
}

func TestEnhanceInstructions(t *testing.T) {
	index := &fakeIndex{entries: []knowledge.Entry{
		{Content: "User asked about hours; agent listed them."},
		{Content: "User asked for directions; agent gave them."},
	}}
	m := newTestManager(t, &fakeStore{}, index)

	base := "You are a helpful voice assistant."
	got := m.EnhanceInstructions(context.Background(), base, "opening hours")

	want := base +
		"\n\nRelevant past interactions:\n" +
		"\n1. User asked about hours; agent listed them.\n" +
		"\n2. User asked for directions; agent gave them.\n" +
		"\n\nUse the above context if relevant to the current conversation, but prioritize the user's current needs."
	assert.Equal(t, want, got)
	assert.Equal(t, 2, index.lastK)
}

func TestEnhanceInstructionsWithoutContexts(t *testing.T) {
	m := newTestManager(t, &fakeStore{}, &fakeIndex{})

	base := "You are a helpful voice assistant."
	assert.Equal(t, base, m.EnhanceInstructions(context.Background(), base, "anything"))
}

func TestPerformanceReportWindowsRecords(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{
		recent: []conversation.Record{
			{ID: 1, SessionID: "s", Timestamp: now.Add(-time.Hour), ResponseTimeMS: 120, Success: true},
			{ID: 2, SessionID: "s", Timestamp: now.AddDate(0, 0, -10), ResponseTimeMS: 9000, Success: true},
		},
		stats: &conversation.Stats{TotalConversations: 2},
	}
	index := &fakeIndex{stats: knowledge.Statistics{DocumentCount: 5, CollectionName: "voice_agent_knowledge"}}
	m := newTestManager(t, store, index)

	report := m.PerformanceReport(context.Background(), 0)
	require.NotNil(t, report)
	assert.Empty(t, report.Status)
	require.NotNil(t, report.Report)

	assert.Equal(t, reportFetchLimit, store.lastRecentLimit)
	assert.Equal(t, defaultReportDays, store.lastStatsDays)

	// The ten-day-old record falls outside the default seven-day window.
	assert.Equal(t, 1, report.ResponseTimes.Count)
	assert.Equal(t, 120.0, report.ResponseTimes.AvgMS)

	require.NotNil(t, report.DatabaseStats)
	assert.Equal(t, 2, report.DatabaseStats.TotalConversations)
	require.NotNil(t, report.KnowledgeBaseStats)
	assert.Equal(t, 5, report.KnowledgeBaseStats.DocumentCount)
}

func TestPerformanceReportSourceFailureDegrades(t *testing.T) {
	store := &fakeStore{recentErr: errors.New("db gone")}
	m := newTestManager(t, store, &fakeIndex{})

	report := m.PerformanceReport(context.Background(), 7)
	require.NotNil(t, report)
	assert.Equal(t, StatusError, report.Status)
	assert.Nil(t, report.Report)
}

func TestPerformanceReportSummaryFailuresAreDropped(t *testing.T) {
	store := &fakeStore{statsErr: errors.New("stats query failed")}
	index := &fakeIndex{statsErr: errors.New("count failed")}
	m := newTestManager(t, store, index)

	report := m.PerformanceReport(context.Background(), 7)
	require.NotNil(t, report)
	assert.Empty(t, report.Status)
	require.NotNil(t, report.Report)
	assert.Nil(t, report.DatabaseStats)
	assert.Nil(t, report.KnowledgeBaseStats)
}

func TestSessionSummary(t *testing.T) {
	store := &fakeStore{recent: []conversation.Record{
		{SessionID: "session-9", Success: true, ResponseTimeMS: 100},
		{SessionID: "session-9", Success: true, ResponseTimeMS: 200},
		{SessionID: "session-9", Success: false},
	}}
	m := newTestManager(t, store, &fakeIndex{})

	sum := m.SessionSummary(context.Background(), "session-9")
	require.NotNil(t, sum)
	assert.Empty(t, sum.Status)
	assert.Equal(t, "session-9", sum.SessionID)
	assert.Equal(t, 3, sum.TotalConversations)
	assert.Equal(t, 2, sum.SuccessfulConversations)
	assert.Equal(t, 1, sum.FailedConversations)
	assert.Equal(t, 150.0, sum.AvgResponseTimeMS)

	assert.Equal(t, "session-9", store.lastRecentSession)
	assert.Equal(t, reportFetchLimit, store.lastRecentLimit)
}

func TestSessionSummaryEmptySession(t *testing.T) {
	m := newTestManager(t, &fakeStore{}, &fakeIndex{})

	sum := m.SessionSummary(context.Background(), "ghost")
	require.NotNil(t, sum)
	assert.Zero(t, sum.TotalConversations)
	assert.Zero(t, sum.AvgResponseTimeMS)
}

func TestAddPattern(t *testing.T) {
	index := &fakeIndex{}
	m := newTestManager(t, &fakeStore{}, index)

	id, err := m.AddPattern(context.Background(), "error_recovery",
		"Offer to repeat the answer when confidence is low.",
		map[string]string{"source": "review"})
	require.NoError(t, err)
	assert.Equal(t, "pattern_test", id)

	require.Len(t, index.patterns, 1)
	assert.Equal(t, "error_recovery", index.patterns[0].category)
	assert.Equal(t, "Offer to repeat the answer when confidence is low.", index.patterns[0].description)
	assert.Equal(t, map[string]string{"source": "review"}, index.patterns[0].metadata)
}

func TestAddPatternPropagatesFailure(t *testing.T) {
	index := &fakeIndex{patternErr: errors.New("collection missing")}
	m := newTestManager(t, &fakeStore{}, index)

	id, err := m.AddPattern(context.Background(), "greeting", "Greet returning callers by name.", nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "adding pattern")
	assert.Empty(t, id)
}

func TestRecordFeedback(t *testing.T) {
	store := &fakeStore{}
	m := newTestManager(t, store, &fakeIndex{})

	err := m.RecordFeedback(context.Background(), 7, "thumbs_up", "helpful")
	require.NoError(t, err)
	require.Len(t, store.feedback, 1)
	assert.Equal(t, storedFeedback{recordID: 7, kind: "thumbs_up", value: "helpful"}, store.feedback[0])
}

func TestErrorInsights(t *testing.T) {
	store := &fakeStore{histogram: []conversation.ErrorPattern{
		{ErrorMessage: "llm timeout", Count: 4},
		{ErrorMessage: "asr dropout", Count: 2},
	}}
	m := newTestManager(t, store, &fakeIndex{})

	in := m.ErrorInsights(context.Background())
	require.NotNil(t, in)
	assert.Empty(t, in.Status)
	assert.Equal(t, 2, in.TotalUniqueErrors)
	assert.Equal(t, "llm timeout", in.ErrorPatterns[0].ErrorMessage)
	assert.Equal(t, errorInsightLimit, store.lastHistLimit)
}

func TestClearKnowledge(t *testing.T) {
	index := &fakeIndex{}
	m := newTestManager(t, &fakeStore{}, index)

	require.NoError(t, m.ClearKnowledge(context.Background()))
	assert.True(t, index.cleared)
}

func TestStatus(t *testing.T) {
	store := &fakeStore{stats: &conversation.Stats{TotalConversations: 12}}
	index := &fakeIndex{stats: knowledge.Statistics{DocumentCount: 7, CollectionName: "voice_agent_knowledge"}}
	m := newTestManager(t, store, index)

	_, err := m.LogTurn(context.Background(), sampleTurn())
	require.NoError(t, err)

	st := m.Status(context.Background())
	require.NotNil(t, st)
	assert.True(t, st.Enabled)
	assert.True(t, st.Initialized)
	assert.Equal(t, int64(1), st.TotalTurnsLogged)
	assert.True(t, st.AutoImprove)
	assert.Equal(t, 100, st.ReportInterval)
	assert.False(t, st.SinkConfigured)
	require.NotNil(t, st.KnowledgeBase)
	assert.Equal(t, 7, st.KnowledgeBase.DocumentCount)
	require.NotNil(t, st.DatabaseStats)
	assert.Equal(t, 12, st.DatabaseStats.TotalConversations)
}

func TestStatusReportsSink(t *testing.T) {
	m := newTestManager(t, &fakeStore{}, &fakeIndex{})
	m.cfg.Sink.URL = "https://collector.example.com"
	m.cfg.Sink.Credential = config.Secret("token")

	st := m.Status(context.Background())
	assert.True(t, st.SinkConfigured)
}

func TestDisabledOperationsAreNoOps(t *testing.T) {
	m := NewManager(disabledConfig(), zaptest.NewLogger(t))
	ctx := context.Background()

	res, err := m.LogTurn(ctx, sampleTurn())
	require.NoError(t, err)
	assert.Equal(t, &TurnResult{}, res)

	assert.Empty(t, m.RelevantContext(ctx, "anything", 3, ""))

	base := "You are a helpful voice assistant."
	assert.Equal(t, base, m.EnhanceInstructions(ctx, base, "anything"))

	report := m.PerformanceReport(ctx, 7)
	assert.Equal(t, StatusDisabled, report.Status)
	assert.Nil(t, report.Report)

	assert.Equal(t, StatusDisabled, m.SessionSummary(ctx, "s").Status)

	id, err := m.AddPattern(ctx, "greeting", "Greet callers warmly.", nil)
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, m.RecordFeedback(ctx, 1, "thumbs_up", "ok"))

	assert.Equal(t, StatusDisabled, m.ErrorInsights(ctx).Status)
	require.NoError(t, m.ClearKnowledge(ctx))

	st := m.Status(ctx)
	assert.Equal(t, &Status{Enabled: false}, st)

	assert.False(t, m.initialized)
	require.NoError(t, m.Close())
}

func TestEnsureReadyRetriesAfterFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Embeddings.Provider = "bogus"
	m := NewManager(cfg, zaptest.NewLogger(t))
	m.store = &fakeStore{}
	t.Cleanup(func() { _ = m.Close() })

	_, err := m.LogTurn(context.Background(), sampleTurn())
	require.Error(t, err)
	assert.ErrorContains(t, err, "creating embedding provider")
	assert.False(t, m.initialized)

	// Once the index can be built the same Manager initializes cleanly.
	m.index = &fakeIndex{}
	res, err := m.LogTurn(context.Background(), sampleTurn())
	require.NoError(t, err)
	assert.True(t, res.Logged)
	assert.True(t, m.initialized)
}

func TestCloseIsIdempotent(t *testing.T) {
	store := &fakeStore{}
	m := newTestManager(t, store, &fakeIndex{})

	_, err := m.LogTurn(context.Background(), sampleTurn())
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.closeCalls)
}
