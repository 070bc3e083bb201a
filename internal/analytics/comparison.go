package analytics

import (
	"fmt"

	"trafficlens/internal/timeframe"
)

// ComparisonPreset selects how the comparison range is derived.
type ComparisonPreset string

const (
	PresetPreviousPeriod ComparisonPreset = "previous_period"
	PresetPreviousYear   ComparisonPreset = "previous_year"
	PresetCustom         ComparisonPreset = "custom"
)

// Snapshot is a metric value with its percentage change against a comparison period.
type Snapshot struct {
	Value  float64 `json:"value"`
	Change float64 `json:"change"`
}

// Overview holds the headline metrics as snapshots.
type Overview struct {
	UniqueVisitors     Snapshot `json:"uniqueVisitors"`
	PageViews          Snapshot `json:"pageViews"`
	AvgSessionDuration Snapshot `json:"avgSessionDuration"`
	BounceRate         Snapshot `json:"bounceRate"`
}

// Change is the percentage change from previous to current, 0 when previous is 0.
func Change(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return ((current - previous) / previous) * 100
}

// Compare builds an overview from two already computed sets of totals.
func Compare(current, prior Totals) Overview {
	snapshot := func(c, p float64) Snapshot {
		return Snapshot{Value: c, Change: Change(c, p)}
	}

	return Overview{
		UniqueVisitors:     snapshot(float64(current.UniqueVisitors), float64(prior.UniqueVisitors)),
		PageViews:          snapshot(float64(current.PageViews), float64(prior.PageViews)),
		AvgSessionDuration: snapshot(current.AvgSessionDuration, prior.AvgSessionDuration),
		BounceRate:         snapshot(current.BounceRate, prior.BounceRate),
	}
}

// PreviousPeriod is the span of equal length ending where r starts.
func PreviousPeriod(r timeframe.Range) timeframe.Range {
	end := r.Start
	return timeframe.Range{Start: end.Add(-r.Duration()), End: end}
}

// PreviousYear is r shifted back one calendar year.
func PreviousYear(r timeframe.Range) timeframe.Range {
	return timeframe.Range{Start: r.Start.AddDate(-1, 0, 0), End: r.End.AddDate(-1, 0, 0)}
}

// ParsePreset maps a query value to a preset. Empty means previous_period.
func ParsePreset(s string) (ComparisonPreset, error) {
	switch ComparisonPreset(s) {
	case "", PresetPreviousPeriod:
		return PresetPreviousPeriod, nil
	case PresetPreviousYear:
		return PresetPreviousYear, nil
	case PresetCustom:
		return PresetCustom, nil
	default:
		return "", fmt.Errorf("unknown comparison preset: %q", s)
	}
}

// ComparisonRange derives the comparison range for a preset. custom is returned unchanged.
func ComparisonRange(preset ComparisonPreset, current, custom timeframe.Range) timeframe.Range {
	switch preset {
	case PresetPreviousYear:
		return PreviousYear(current)
	case PresetCustom:
		return custom
	default:
		return PreviousPeriod(current)
	}
}
