package timeframe

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Interval is the bucket size of a time series.
type Interval string

const (
	IntervalDay   Interval = "day"
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
)

// ErrInvalidRange is returned when a range starts after it ends.
var ErrInvalidRange = errors.New("start date must not be after end date")

// ParseInterval maps a query value to an Interval. Empty and unknown values mean day.
func ParseInterval(s string) Interval {
	switch Interval(strings.ToLower(strings.TrimSpace(s))) {
	case IntervalWeek:
		return IntervalWeek
	case IntervalMonth:
		return IntervalMonth
	default:
		return IntervalDay
	}
}

// Truncate returns the UTC start of the bucket containing t.
// Weeks start on Sunday.
func (i Interval) Truncate(t time.Time) time.Time {
	utc := t.UTC()
	year, month, day := utc.Date()

	switch i {
	case IntervalWeek:
		return time.Date(year, month, day-int(utc.Weekday()), 0, 0, 0, 0, time.UTC)
	case IntervalMonth:
		return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	}
}

// next advances a bucket start to the following bucket start.
func (i Interval) next(bucket time.Time) time.Time {
	switch i {
	case IntervalWeek:
		return bucket.AddDate(0, 0, 7)
	case IntervalMonth:
		return bucket.AddDate(0, 1, 0)
	default:
		return bucket.AddDate(0, 0, 1)
	}
}

// Format renders a bucket start as its key.
func (i Interval) Format(bucket time.Time) string {
	if i == IntervalMonth {
		return bucket.Format("2006-01")
	}
	return bucket.Format("2006-01-02")
}

// BucketKey returns the key of the bucket containing t: YYYY-MM-DD for days and weeks
// (the Sunday on or before t), YYYY-MM for months.
func (i Interval) BucketKey(t time.Time) string {
	return i.Format(i.Truncate(t))
}

// Buckets enumerates every bucket key from the one containing start to the one containing
// end, in order and without gaps. It returns nil when start is after end.
func (i Interval) Buckets(start, end time.Time) []string {
	if start.After(end) {
		return nil
	}

	last := i.Truncate(end)
	keys := make([]string, 0, i.Count(start, end))
	for cur := i.Truncate(start); !cur.After(last); cur = i.next(cur) {
		keys = append(keys, i.Format(cur))
	}
	return keys
}

// Count returns the number of buckets Buckets would produce without building them.
func (i Interval) Count(start, end time.Time) int {
	if start.After(end) {
		return 0
	}

	first, last := i.Truncate(start), i.Truncate(end)
	switch i {
	case IntervalMonth:
		return (last.Year()-first.Year())*12 + int(last.Month()) - int(first.Month()) + 1
	case IntervalWeek:
		return int(last.Sub(first).Hours()/(24*7)) + 1
	default:
		return int(last.Sub(first).Hours()/24) + 1
	}
}

// Range is an inclusive [Start, End] query window in UTC.
type Range struct {
	Start time.Time `json:"startDate"`
	End   time.Time `json:"endDate"`
}

// NewRange builds a range, rejecting one that starts after it ends.
func NewRange(start, end time.Time) (Range, error) {
	r := Range{Start: start.UTC(), End: end.UTC()}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

func (r Range) Validate() error {
	if r.Start.After(r.End) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidRange,
			r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether t falls in the range, bounds included.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

func (r Range) String() string {
	return r.Start.Format("2006-01-02") + "-to-" + r.End.Format("2006-01-02")
}

type TimeProvider interface {
	Now(loc *time.Location) time.Time
}

// DefaultTimeProvider uses the system clock.
type DefaultTimeProvider struct{}

func (p *DefaultTimeProvider) Now(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// FixedTimeProvider always returns the same instant.
type FixedTimeProvider struct {
	CurrentTime time.Time
}

func (p *FixedTimeProvider) Now(loc *time.Location) time.Time {
	return p.CurrentTime.In(loc)
}
