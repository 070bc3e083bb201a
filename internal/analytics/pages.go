package analytics

import (
	"fmt"
	"math"
	"sort"

	"trafficlens/internal/events"
)

// DefaultPopularPagesLimit is used when no positive limit is given.
const DefaultPopularPagesLimit = 5

// PageMetric is one row of the popular pages table. AvgTime is in seconds.
type PageMetric struct {
	PageURL    string  `json:"pageUrl"`
	PageTitle  string  `json:"pageTitle"`
	Views      int     `json:"views"`
	AvgTime    float64 `json:"avgTime"`
	BounceRate float64 `json:"bounceRate"`
}

type pageGroup struct {
	url      string
	title    string
	views    []events.PageView
	sessions []string
	seen     map[string]struct{}
}

// PopularPages groups views by URL and returns the limit most viewed pages.
// A page's bounce rate looks at every session that touched it and counts the session as
// bounced when the session has a single view in the whole range.
func (m *MetricContext) PopularPages(limit int) []PageMetric {
	if limit <= 0 {
		limit = DefaultPopularPagesLimit
	}

	var order []*pageGroup
	groups := make(map[string]*pageGroup)

	for _, view := range m.views {
		g, ok := groups[view.PageURL]
		if !ok {
			g = &pageGroup{url: view.PageURL, title: view.PageURL, seen: make(map[string]struct{})}
			groups[view.PageURL] = g
			order = append(order, g)
		}
		if g.title == g.url {
			g.title = view.Title()
		}
		g.views = append(g.views, view)

		if id, ok := view.Session(); ok {
			if _, dup := g.seen[id]; !dup {
				g.seen[id] = struct{}{}
				g.sessions = append(g.sessions, id)
			}
		}
	}

	pages := make([]PageMetric, len(order))
	for i, g := range order {
		pages[i] = PageMetric{
			PageURL:    g.url,
			PageTitle:  g.title,
			Views:      len(g.views),
			AvgTime:    averageDuration(g.views),
			BounceRate: m.pageBounceRate(g.sessions),
		}
	}

	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].Views > pages[j].Views
	})

	if len(pages) > limit {
		pages = pages[:limit]
	}
	return pages
}

func (m *MetricContext) pageBounceRate(sessionIDs []string) float64 {
	if len(sessionIDs) == 0 {
		return 0
	}

	bounced := 0
	for _, id := range sessionIDs {
		if s, ok := m.session(id); ok && s.Bounced() {
			bounced++
		}
	}
	return float64(bounced) / float64(len(sessionIDs)) * 100
}

// FormatAvgTime renders seconds as "<minutes>m <seconds>s", both floored.
func FormatAvgTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	minutes := math.Floor(seconds / 60)
	rest := math.Floor(math.Mod(seconds, 60))
	return fmt.Sprintf("%dm %ds", int(minutes), int(rest))
}
