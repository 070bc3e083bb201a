package analytics

import (
	"errors"
	"fmt"
	"time"

	"trafficlens/internal/events"
	"trafficlens/internal/timeframe"
)

// MaxSeriesPoints caps the number of buckets a single series may produce.
const MaxSeriesPoints = 5000

var ErrSeriesTooLarge = errors.New("date range too large for interval")

// CheckSeriesSize fails with ErrSeriesTooLarge when r splits into more than
// MaxSeriesPoints buckets of interval.
func CheckSeriesSize(r timeframe.Range, interval timeframe.Interval) error {
	if points := interval.Count(r.Start, r.End); points > MaxSeriesPoints {
		return fmt.Errorf("%w: %d %s buckets", ErrSeriesTooLarge, points, interval)
	}
	return nil
}

// SeriesPoint is one bucket of the visitors-over-time series.
type SeriesPoint struct {
	Date      string `json:"date"`
	Visitors  int    `json:"visitors"`
	PageViews int    `json:"pageViews"`
}

type Series struct {
	Interval timeframe.Interval `json:"interval"`
	Data     []SeriesPoint      `json:"data"`
}

// BuildSeries buckets views by interval and emits one point for every bucket between start
// and end, zero-filled where no view fell.
func BuildSeries(views []events.PageView, start, end time.Time, interval timeframe.Interval) Series {
	visitors := make(map[string]map[string]struct{})
	pageViews := make(map[string]int)

	for _, view := range views {
		key := interval.BucketKey(view.Timestamp)
		set, ok := visitors[key]
		if !ok {
			set = make(map[string]struct{})
			visitors[key] = set
		}
		set[view.VisitorID] = struct{}{}
		pageViews[key]++
	}

	keys := interval.Buckets(start, end)
	data := make([]SeriesPoint, len(keys))
	for i, key := range keys {
		data[i] = SeriesPoint{
			Date:      key,
			Visitors:  len(visitors[key]),
			PageViews: pageViews[key],
		}
	}

	return Series{Interval: interval, Data: data}
}

// Series builds the series for this context's range.
func (m *MetricContext) Series(interval timeframe.Interval) Series {
	return BuildSeries(m.views, m.Range.Start, m.Range.End, interval)
}
