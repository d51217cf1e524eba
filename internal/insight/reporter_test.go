package insight

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/insightd/internal/conversation"
)

func reportableStore() *fakeStore {
	return &fakeStore{
		recent: []conversation.Record{
			{ID: 1, SessionID: "s", Timestamp: time.Now().UTC(), ResponseTimeMS: 100, Success: true},
		},
		stats: &conversation.Stats{TotalConversations: 1},
	}
}

func TestReporterRunsOnTrigger(t *testing.T) {
	store := reportableStore()
	m := newTestManager(t, store, &fakeIndex{})
	require.NoError(t, m.ensureReady(context.Background()))

	m.reporter.requestReport()

	require.Eventually(t, func() bool {
		return store.recentCalls.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReporterCoalescesPendingTriggers(t *testing.T) {
	r := newReporter(nil, zap.NewNop())

	r.requestReport()
	r.requestReport()
	r.requestReport()

	assert.Len(t, r.trigger, 1)
}

func TestReporterRecoversFromPanic(t *testing.T) {
	store := reportableStore()
	store.panicNext = true
	m := newTestManager(t, store, &fakeIndex{})
	require.NoError(t, m.ensureReady(context.Background()))

	m.reporter.requestReport()
	require.Eventually(t, func() bool {
		return store.recentCalls.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// The worker survived the panic and serves the next request.
	m.reporter.requestReport()
	require.Eventually(t, func() bool {
		return store.recentCalls.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReporterDegradedRunLogsWarning(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	store := &fakeStore{recentErr: errors.New("db gone")}

	m := NewManager(testConfig(), zap.New(core))
	m.store = store
	m.index = &fakeIndex{}
	t.Cleanup(func() { _ = m.Close() })
	require.NoError(t, m.ensureReady(context.Background()))

	m.reporter.requestReport()

	require.Eventually(t, func() bool {
		return logs.FilterMessage("improvement report degraded").Len() >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReporterStopIsIdempotent(t *testing.T) {
	m := NewManager(testConfig(), zaptest.NewLogger(t))
	m.store = &fakeStore{}
	m.index = &fakeIndex{}
	require.NoError(t, m.ensureReady(context.Background()))

	m.reporter.stop()
	m.reporter.stop()

	// Requests after stop are absorbed by the buffer, never a panic.
	m.reporter.requestReport()

	require.NoError(t, m.Close())
}

func TestReporterStartIsIdempotent(t *testing.T) {
	store := reportableStore()
	m := newTestManager(t, store, &fakeIndex{})
	require.NoError(t, m.ensureReady(context.Background()))

	// A second start must not spawn a second worker; one trigger then
	// produces exactly one run.
	m.reporter.start()
	m.reporter.requestReport()

	require.Eventually(t, func() bool {
		return store.recentCalls.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), store.recentCalls.Load())
}
