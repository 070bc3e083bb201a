package analytics

import "trafficlens/internal/events"

// Totals are the four headline metrics of a range.
type Totals struct {
	UniqueVisitors     int     `json:"uniqueVisitors"`
	PageViews          int     `json:"pageViews"`
	AvgSessionDuration float64 `json:"avgSessionDuration"`
	BounceRate         float64 `json:"bounceRate"`
}

// UniqueVisitors counts distinct visitor ids.
func (m *MetricContext) UniqueVisitors() int {
	seen := make(map[string]struct{})
	for _, view := range m.views {
		seen[view.VisitorID] = struct{}{}
	}
	return len(seen)
}

// TotalPageViews counts every view in range.
func (m *MetricContext) TotalPageViews() int {
	return len(m.views)
}

// AvgSessionDuration is the mean duration in seconds of the views that have one.
func (m *MetricContext) AvgSessionDuration() float64 {
	return averageDuration(m.views)
}

// BounceRate is the bounce rate over every session in range.
func (m *MetricContext) BounceRate() float64 {
	return BounceRate(m.Sessions())
}

func (m *MetricContext) Totals() Totals {
	return Totals{
		UniqueVisitors:     m.UniqueVisitors(),
		PageViews:          m.TotalPageViews(),
		AvgSessionDuration: m.AvgSessionDuration(),
		BounceRate:         m.BounceRate(),
	}
}

// averageDuration skips views whose duration is unknown; 0 when none is known.
func averageDuration(views []events.PageView) float64 {
	sum, count := 0, 0
	for _, view := range views {
		if view.Duration == nil {
			continue
		}
		sum += *view.Duration
		count++
	}
	if count == 0 {
		return 0
	}
	return float64(sum) / float64(count)
}
