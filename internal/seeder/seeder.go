package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"trafficlens/internal/events"
)

const (
	defaultVisitorCount = 100
	defaultDays         = 7
	sampleUserAgent     = "Sample User Agent"
)

type page struct {
	url   string
	title string
}

var (
	pages = []page{
		{url: "/", title: "Home Page"},
		{url: "/anime/attack-on-titan", title: "Attack on Titan"},
		{url: "/anime/demon-slayer", title: "Demon Slayer"},
		{url: "/news", title: "Anime News"},
		{url: "/reviews", title: "Anime Reviews"},
	}

	countries = []string{
		"United States", "Japan", "United Kingdom", "Canada", "Germany",
		"France", "Australia", "Brazil", "India", "South Korea",
	}

	// An empty referrer is a direct visit.
	referrers = []string{
		"",
		"https://www.google.com/search",
		"https://twitter.com/",
		"https://www.reddit.com/r/anime",
		"https://www.facebook.com/",
		"https://www.instagram.com/",
		"https://www.youtube.com/watch",
		"https://www.bing.com/search",
		"https://duckduckgo.com/",
	}

	devices = []string{events.DeviceMobile, events.DeviceDesktop, events.DeviceTablet}
)

// Seeder fills an event store with demo traffic.
type Seeder struct {
	Store        events.Store
	Logger       *slog.Logger
	VisitorCount int
	Days         int

	rng *rand.Rand
	now func() time.Time
}

// Summary describes what a run wrote.
type Summary struct {
	Visitors  int
	PageViews int
	Start     time.Time
	End       time.Time
}

type Option func(*Seeder)

// WithSeed makes a run reproducible.
func WithSeed(seed uint64) Option {
	return func(s *Seeder) { s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Seeder) { s.now = now }
}

// NewSeeder creates a new seeder instance
func NewSeeder(store events.Store, logger *slog.Logger, opts ...Option) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Seeder{
		Store:        store,
		Logger:       logger,
		VisitorCount: defaultVisitorCount,
		Days:         defaultDays,
		rng:          rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run writes VisitorCount visitors with one session of 3 to 10 page views each, spread
// over the last Days days.
func (s *Seeder) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	end := s.now().UTC()
	windowStart := end.AddDate(0, 0, -s.Days)
	window := end.Sub(windowStart)

	s.Logger.Info("Starting demo seeding...",
		slog.Int("visitors", s.VisitorCount),
		slog.Int("days", s.Days))

	summary := Summary{Start: windowStart, End: end}

	for i := 1; i <= s.VisitorCount; i++ {
		visitorID := fmt.Sprintf("visitor-%d", i)
		sessionID := uuid.NewString()

		if err := s.seedVisitor(ctx, visitorID, windowStart, end); err != nil {
			return summary, err
		}
		summary.Visitors++

		viewCount := s.rng.IntN(8) + 3
		for j := 0; j < viewCount; j++ {
			p := pages[s.rng.IntN(len(pages))]
			ts := windowStart.Add(time.Duration(s.rng.Int64N(int64(window))))
			bounced := s.rng.Float64() < 0.1

			_, err := s.Store.RecordPageView(ctx, events.PageViewInput{
				PageURL:   p.url,
				PageTitle: events.StringPtr(p.title),
				VisitorID: visitorID,
				SessionID: events.StringPtr(sessionID),
				Referrer:  events.StringPtr(referrers[s.rng.IntN(len(referrers))]),
				UserAgent: events.StringPtr(sampleUserAgent),
				Country:   events.StringPtr(countries[s.rng.IntN(len(countries))]),
				Device:    events.StringPtr(devices[s.rng.IntN(len(devices))]),
				Timestamp: ts,
				Duration:  events.IntPtr(s.rng.IntN(270) + 30),
				Bounced:   &bounced,
			})
			if err != nil {
				return summary, fmt.Errorf("failed to record page view for %s: %w", visitorID, err)
			}
			summary.PageViews++
		}
	}

	s.Logger.Info("Seeding completed successfully",
		slog.Int("visitors", summary.Visitors),
		slog.Int("page_views", summary.PageViews),
		slog.Duration("elapsed", time.Since(start)))

	return summary, nil
}

// seedVisitor saves the visitor and bumps it to a random visit count between 1 and 5.
func (s *Seeder) seedVisitor(ctx context.Context, id string, firstSeen, lastSeen time.Time) error {
	if _, err := s.Store.SaveVisitor(ctx, events.Visitor{ID: id, FirstSeen: firstSeen, LastSeen: firstSeen}); err != nil {
		return fmt.Errorf("failed to save visitor %s: %w", id, err)
	}

	for extra := s.rng.IntN(5); extra > 0; extra-- {
		if _, err := s.Store.UpdateVisitor(ctx, id, lastSeen); err != nil {
			return fmt.Errorf("failed to update visitor %s: %w", id, err)
		}
	}
	return nil
}
