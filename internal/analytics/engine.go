package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"trafficlens/internal/pkg/async"
	"trafficlens/internal/timeframe"
)

const (
	currentPeriod    = "current"
	comparisonPeriod = "comparison"
)

// Engine answers dashboard queries. Every query performs one range read per period and
// derives all of its metrics from that read.
type Engine struct {
	store   PageViewReader
	logger  *slog.Logger
	workers int
}

func NewEngine(store PageViewReader, logger *slog.Logger, workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{store: store, logger: logger, workers: workers}
}

// Comparison is the result of comparing two ranges.
type Comparison struct {
	Preset           ComparisonPreset `json:"preset"`
	Current          timeframe.Range  `json:"current"`
	Comparison       timeframe.Range  `json:"comparison"`
	CurrentTotals    Totals           `json:"currentTotals"`
	ComparisonTotals Totals           `json:"comparisonTotals"`
	Metrics          Overview         `json:"metrics"`
}

// Report is every dashboard metric for one range, computed from a single read.
type Report struct {
	Range          timeframe.Range `json:"range"`
	Totals         Totals          `json:"totals"`
	Series         Series          `json:"series"`
	Geography      []BreakdownItem `json:"geography"`
	TrafficSources []TrafficSource `json:"trafficSources"`
	PopularPages   []PageMetric    `json:"popularPages"`
	Devices        []BreakdownItem `json:"devices"`
}

// Load reads the page views of r into a MetricContext.
func (e *Engine) Load(ctx context.Context, r timeframe.Range) (*MetricContext, error) {
	return Load(ctx, e.store, r.Start, r.End)
}

// Overview compares r with the period of equal length right before it.
func (e *Engine) Overview(ctx context.Context, r timeframe.Range) (Overview, error) {
	cmp, err := e.CompareRanges(ctx, r, PreviousPeriod(r))
	if err != nil {
		return Overview{}, err
	}
	return cmp.Metrics, nil
}

// CompareRanges loads both ranges and computes the headline metrics of each concurrently.
func (e *Engine) CompareRanges(ctx context.Context, current, comparison timeframe.Range) (Comparison, error) {
	cmp, _, err := e.comparePeriods(ctx, current, comparison)
	return cmp, err
}

// ReportWithComparison is Report for r together with r compared against the period right
// before it. Both are derived from the same read of r.
func (e *Engine) ReportWithComparison(ctx context.Context, r timeframe.Range, interval timeframe.Interval, limit int) (Report, Comparison, error) {
	cmp, current, err := e.comparePeriods(ctx, r, PreviousPeriod(r))
	if err != nil {
		return Report{}, Comparison{}, err
	}
	return buildReport(current, interval, limit), cmp, nil
}

// comparePeriods returns the comparison and the MetricContext it read for current.
func (e *Engine) comparePeriods(ctx context.Context, current, comparison timeframe.Range) (Comparison, *MetricContext, error) {
	startedAt := time.Now()

	contexts, err := e.loadPeriods(ctx, map[string]timeframe.Range{
		currentPeriod:    current,
		comparisonPeriod: comparison,
	})
	if err != nil {
		return Comparison{}, nil, err
	}

	totals, err := e.computeTotals(ctx, contexts)
	if err != nil {
		return Comparison{}, nil, err
	}

	e.logger.Debug("Compared ranges",
		slog.String("current", current.String()),
		slog.String("comparison", comparison.String()),
		slog.Duration("elapsed", time.Since(startedAt)))

	return Comparison{
		Current:          current,
		Comparison:       comparison,
		CurrentTotals:    totals[currentPeriod],
		ComparisonTotals: totals[comparisonPeriod],
		Metrics:          Compare(totals[currentPeriod], totals[comparisonPeriod]),
	}, contexts[currentPeriod], nil
}

func (e *Engine) loadPeriods(ctx context.Context, ranges map[string]timeframe.Range) (map[string]*MetricContext, error) {
	tasks := make([]async.Task[*MetricContext], 0, len(ranges))
	for name, r := range ranges {
		tasks = append(tasks, async.Task[*MetricContext]{
			Name: name,
			Execute: func(ctx context.Context) (*MetricContext, error) {
				return e.Load(ctx, r)
			},
		})
	}

	results := async.NewPool[*MetricContext](e.workers).Execute(ctx, tasks)

	contexts := make(map[string]*MetricContext, len(results))
	for name, result := range results {
		if result.Err != nil {
			return nil, fmt.Errorf("error loading %s period: %w", name, result.Err)
		}
		contexts[name] = result.Data
	}
	return contexts, nil
}

// computeTotals dispatches every headline metric of every period as its own task.
func (e *Engine) computeTotals(ctx context.Context, contexts map[string]*MetricContext) (map[string]Totals, error) {
	metrics := map[string]func(*MetricContext) float64{
		"unique_visitors":      func(m *MetricContext) float64 { return float64(m.UniqueVisitors()) },
		"page_views":           func(m *MetricContext) float64 { return float64(m.TotalPageViews()) },
		"avg_session_duration": (*MetricContext).AvgSessionDuration,
		"bounce_rate":          (*MetricContext).BounceRate,
	}

	var tasks []async.Task[float64]
	for period, mc := range contexts {
		for metric, fn := range metrics {
			tasks = append(tasks, async.Task[float64]{
				Name: period + ":" + metric,
				Execute: func(context.Context) (float64, error) {
					return fn(mc), nil
				},
			})
		}
	}

	results := async.NewPool[float64](e.workers).Execute(ctx, tasks)
	for name, result := range results {
		if result.Err != nil {
			return nil, fmt.Errorf("error computing %s: %w", name, result.Err)
		}
	}

	totals := make(map[string]Totals, len(contexts))
	for period := range contexts {
		totals[period] = Totals{
			UniqueVisitors:     int(results[period+":unique_visitors"].Data),
			PageViews:          int(results[period+":page_views"].Data),
			AvgSessionDuration: results[period+":avg_session_duration"].Data,
			BounceRate:         results[period+":bounce_rate"].Data,
		}
	}
	return totals, nil
}

func (e *Engine) Series(ctx context.Context, r timeframe.Range, interval timeframe.Interval) (Series, error) {
	mc, err := e.Load(ctx, r)
	if err != nil {
		return Series{}, err
	}
	return mc.Series(interval), nil
}

func (e *Engine) Geography(ctx context.Context, r timeframe.Range) ([]BreakdownItem, error) {
	mc, err := e.Load(ctx, r)
	if err != nil {
		return nil, err
	}
	return mc.VisitorsByCountry(), nil
}

func (e *Engine) TrafficSources(ctx context.Context, r timeframe.Range) ([]TrafficSource, error) {
	mc, err := e.Load(ctx, r)
	if err != nil {
		return nil, err
	}
	return mc.TrafficSources(), nil
}

func (e *Engine) PopularPages(ctx context.Context, r timeframe.Range, limit int) ([]PageMetric, error) {
	mc, err := e.Load(ctx, r)
	if err != nil {
		return nil, err
	}
	return mc.PopularPages(limit), nil
}

func (e *Engine) Devices(ctx context.Context, r timeframe.Range) ([]BreakdownItem, error) {
	mc, err := e.Load(ctx, r)
	if err != nil {
		return nil, err
	}
	return mc.DeviceBreakdown(), nil
}

// Report computes every dashboard metric for r from one read.
func (e *Engine) Report(ctx context.Context, r timeframe.Range, interval timeframe.Interval, limit int) (Report, error) {
	mc, err := e.Load(ctx, r)
	if err != nil {
		return Report{}, err
	}
	return buildReport(mc, interval, limit), nil
}

func buildReport(mc *MetricContext, interval timeframe.Interval, limit int) Report {
	return Report{
		Range:          mc.Range,
		Totals:         mc.Totals(),
		Series:         mc.Series(interval),
		Geography:      mc.VisitorsByCountry(),
		TrafficSources: mc.TrafficSources(),
		PopularPages:   mc.PopularPages(limit),
		Devices:        mc.DeviceBreakdown(),
	}
}
