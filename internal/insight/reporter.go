package insight

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/insightd/internal/performance"
)

// reporter generates improvement reports off the turn-logging path. A
// single worker goroutine serves trigger requests; a request arriving
// while one is already pending coalesces into it.
type reporter struct {
	manager *Manager
	logger  *zap.Logger

	trigger chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}

	mu      sync.Mutex
	running bool
}

func newReporter(m *Manager, logger *zap.Logger) *reporter {
	return &reporter{
		manager: m,
		logger:  logger,
		trigger: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// start launches the worker goroutine. Idempotent.
func (r *reporter) start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	go r.run()
}

// stop halts the worker and waits for the in-flight run, if any, to
// finish. Idempotent; a reporter that never started returns immediately.
func (r *reporter) stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
}

// requestReport schedules a run without blocking the caller. When a run is
// already pending the request is absorbed into it.
func (r *reporter) requestReport() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

func (r *reporter) run() {
	defer close(r.doneCh)
	for {
		select {
		case <-r.stopCh:
			return
		case <-r.trigger:
			r.generate()
		}
	}
}

// generate runs one report. Failures stay inside this boundary: they are
// logged and dropped, never surfaced to the turn that scheduled them.
func (r *reporter) generate() {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("improvement report panicked", zap.Any("panic", rec))
			recordReport(start, false)
		}
	}()

	report := r.manager.PerformanceReport(context.Background(), autoReportDays)
	if report.Status != "" {
		r.logger.Warn("improvement report degraded", zap.String("status", report.Status))
		recordReport(start, false)
		return
	}

	r.logger.Info("auto-generated improvement report",
		zap.Int("suggestions", report.Summary.Total))
	for _, s := range performance.FilterBySeverity(report.Suggestions, performance.SeverityHigh) {
		r.logger.Warn("high priority suggestion", zap.String("suggestion", s.Text))
	}
	recordReport(start, true)
}
