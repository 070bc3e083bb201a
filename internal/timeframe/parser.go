package timeframe

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateOnlyLayout = "2006-01-02"

// ErrInvalidDate is returned when a supplied date is neither YYYY-MM-DD nor RFC3339.
var ErrInvalidDate = errors.New("invalid date format")

// RangeParserParams are the raw query values of a date range.
type RangeParserParams struct {
	StartDate string
	EndDate   string
}

type RangeParser struct {
	timeProvider TimeProvider
	defaultDays  int
}

// NewRangeParser creates a parser whose fallback window is the trailing defaultDays days.
func NewRangeParser(defaultDays int, timeProvider ...TimeProvider) *RangeParser {
	var provider TimeProvider = &DefaultTimeProvider{}
	if len(timeProvider) > 0 && timeProvider[0] != nil {
		provider = timeProvider[0]
	}
	if defaultDays <= 0 {
		defaultDays = 7
	}

	return &RangeParser{
		timeProvider: provider,
		defaultDays:  defaultDays,
	}
}

// Parse resolves startDate/endDate into a range. When either value is missing the trailing
// default window ending now is used. A value that does not parse is rejected with
// ErrInvalidDate, a start after the end with ErrInvalidRange.
func (p *RangeParser) Parse(params RangeParserParams) (Range, error) {
	if strings.TrimSpace(params.StartDate) == "" || strings.TrimSpace(params.EndDate) == "" {
		return p.Default(), nil
	}

	start, ok := ParseDate(params.StartDate, false)
	if !ok {
		return Range{}, fmt.Errorf("%w: startDate %q", ErrInvalidDate, params.StartDate)
	}
	end, ok := ParseDate(params.EndDate, true)
	if !ok {
		return Range{}, fmt.Errorf("%w: endDate %q", ErrInvalidDate, params.EndDate)
	}

	return NewRange(start, end)
}

// Default returns the trailing window ending now.
func (p *RangeParser) Default() Range {
	now := p.timeProvider.Now(time.UTC)
	return Range{
		Start: now.AddDate(0, 0, -p.defaultDays),
		End:   now,
	}
}

// ParseDate accepts YYYY-MM-DD or RFC3339. A date-only value is the start of that UTC day,
// or its last instant when endOfDay is set.
func ParseDate(value string, endOfDay bool) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	if date, err := time.ParseInLocation(dateOnlyLayout, value, time.UTC); err == nil {
		if endOfDay {
			return time.Date(date.Year(), date.Month(), date.Day(), 23, 59, 59, 999999999, time.UTC), true
		}
		return date, true
	}

	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC(), true
	}

	return time.Time{}, false
}
