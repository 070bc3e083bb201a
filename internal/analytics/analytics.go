// Package analytics computes traffic metrics from raw page views.
//
// The package is organized into focused modules:
//   - analytics.go: MetricContext, the single range read shared by every metric of a request
//   - sessions.go: session reconstruction and bounce rate
//   - totals.go: unique visitors, page views, average session duration
//   - breakdowns.go: country, device and traffic source breakdowns
//   - pages.go: popular pages
//   - series.go: zero-filled visitor and page view series
//   - comparison.go: period-over-period changes
//   - engine.go: request orchestration over the event store
package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trafficlens/internal/events"
	"trafficlens/internal/timeframe"
)

// PageViewReader is the part of the event store the read path needs.
type PageViewReader interface {
	GetPageViews(ctx context.Context, start, end time.Time) ([]events.PageView, error)
}

// MetricContext is the page views of one range, fetched once and shared by every metric
// computed for a request. It is safe for concurrent use.
type MetricContext struct {
	Range timeframe.Range
	views []events.PageView

	sessionsOnce sync.Once
	sessions     []Session
	sessionIndex map[string]int
}

// NewMetricContext wraps an already filtered event list.
func NewMetricContext(r timeframe.Range, views []events.PageView) *MetricContext {
	return &MetricContext{Range: r, views: views}
}

// Load performs the single range read for [start, end].
func Load(ctx context.Context, store PageViewReader, start, end time.Time) (*MetricContext, error) {
	r, err := timeframe.NewRange(start, end)
	if err != nil {
		return nil, err
	}

	views, err := store.GetPageViews(ctx, r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("error loading page views: %w", err)
	}
	return NewMetricContext(r, views), nil
}

// Views returns the underlying events. Callers must not modify them.
func (m *MetricContext) Views() []events.PageView {
	return m.views
}

// Sessions returns the sessions reconstructed from this context, computed on first use.
func (m *MetricContext) Sessions() []Session {
	m.buildSessions()
	return m.sessions
}

func (m *MetricContext) session(id string) (Session, bool) {
	m.buildSessions()
	i, ok := m.sessionIndex[id]
	if !ok {
		return Session{}, false
	}
	return m.sessions[i], true
}

func (m *MetricContext) buildSessions() {
	m.sessionsOnce.Do(func() {
		m.sessions = ReconstructSessions(m.views)
		m.sessionIndex = make(map[string]int, len(m.sessions))
		for i, s := range m.sessions {
			m.sessionIndex[s.ID] = i
		}
	})
}
