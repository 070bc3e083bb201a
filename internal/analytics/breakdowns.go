package analytics

import (
	"math"
	"sort"

	"trafficlens/internal/events"
	"trafficlens/internal/pkg/referrers"
)

// BreakdownItem is one row of a per-visitor breakdown.
type BreakdownItem struct {
	Name       string `json:"name"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// TrafficSource is one row of the traffic source breakdown.
type TrafficSource struct {
	Name     string `json:"name"`
	Source   string `json:"source"`
	Visitors int    `json:"visitors"`
	Icon     string `json:"icon"`
}

// VisitorsByCountry attributes every visitor to the first country seen for them.
func (m *MetricContext) VisitorsByCountry() []BreakdownItem {
	return attributePerVisitor(m.views, func(v events.PageView) *string { return v.Country })
}

// DeviceBreakdown attributes every visitor to the first device seen for them.
func (m *MetricContext) DeviceBreakdown() []BreakdownItem {
	return attributePerVisitor(m.views, func(v events.PageView) *string { return v.Device })
}

// TrafficSources counts views per referrer, "Direct" when absent. Each view counts.
func (m *MetricContext) TrafficSources() []TrafficSource {
	counts := newOrderedCounter()
	for _, view := range m.views {
		counts.add(view.Source())
	}

	sources := make([]TrafficSource, 0, len(counts.keys))
	for _, entry := range counts.sorted() {
		name, icon := referrers.Classify(entry.key)
		sources = append(sources, TrafficSource{
			Name:     name,
			Source:   entry.key,
			Visitors: entry.count,
			Icon:     icon,
		})
	}
	return sources
}

// attributePerVisitor counts one per visitor, for the first view where field is set.
func attributePerVisitor(views []events.PageView, field func(events.PageView) *string) []BreakdownItem {
	attributed := make(map[string]struct{})
	counts := newOrderedCounter()

	for _, view := range views {
		value := field(view)
		if value == nil || *value == "" {
			continue
		}
		if _, done := attributed[view.VisitorID]; done {
			continue
		}
		attributed[view.VisitorID] = struct{}{}
		counts.add(*value)
	}

	entries := counts.sorted()
	items := make([]BreakdownItem, len(entries))
	for i, entry := range entries {
		items[i] = BreakdownItem{
			Name:       entry.key,
			Count:      entry.count,
			Percentage: Percentage(entry.count, counts.total),
		}
	}
	capPercentages(items, counts.total)
	return items
}

// capPercentages keeps the rounded percentages from summing past 100. Each excess point is
// taken from the entry that rounding inflated the most; ties go to the later entry.
func capPercentages(items []BreakdownItem, total int) {
	sum := 0
	for _, item := range items {
		sum += item.Percentage
	}

	for excess := sum - 100; excess > 0; excess-- {
		best, bestErr := -1, 0.0
		for i, item := range items {
			err := float64(item.Percentage) - float64(item.Count)/float64(total)*100
			if best < 0 || err >= bestErr {
				best, bestErr = i, err
			}
		}
		items[best].Percentage--
	}
}

// Percentage is round(part / total * 100), 0 when total is 0.
func Percentage(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

type countEntry struct {
	key   string
	count int
}

// orderedCounter counts keys and remembers the order they were first seen in.
type orderedCounter struct {
	keys   []string
	counts map[string]int
	total  int
}

func newOrderedCounter() *orderedCounter {
	return &orderedCounter{counts: make(map[string]int)}
}

func (c *orderedCounter) add(key string) {
	if _, ok := c.counts[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.counts[key]++
	c.total++
}

// sorted returns entries by descending count; ties keep first-seen order.
func (c *orderedCounter) sorted() []countEntry {
	entries := make([]countEntry, len(c.keys))
	for i, key := range c.keys {
		entries[i] = countEntry{key: key, count: c.counts[key]}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].count > entries[j].count
	})
	return entries
}
