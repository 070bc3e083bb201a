package analytics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficlens/internal/analytics"
	"trafficlens/internal/timeframe"
)

func TestChange(t *testing.T) {
	testCases := []struct {
		name     string
		current  float64
		previous float64
		expected float64
	}{
		{"no previous value", 42, 0, 0},
		{"both zero", 0, 0, 0},
		{"doubled", 100, 50, 100},
		{"halved", 50, 100, -50},
		{"dropped to zero", 0, 80, -100},
		{"unchanged", 7, 7, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, analytics.Change(tc.current, tc.previous))
		})
	}
}

func TestCompare(t *testing.T) {
	current := analytics.Totals{UniqueVisitors: 30, PageViews: 90, AvgSessionDuration: 45, BounceRate: 20}
	prior := analytics.Totals{UniqueVisitors: 20, PageViews: 0, AvgSessionDuration: 90, BounceRate: 40}

	overview := analytics.Compare(current, prior)

	assert.Equal(t, analytics.Snapshot{Value: 30, Change: 50}, overview.UniqueVisitors)
	assert.Equal(t, analytics.Snapshot{Value: 90, Change: 0}, overview.PageViews)
	assert.Equal(t, analytics.Snapshot{Value: 45, Change: -50}, overview.AvgSessionDuration)
	assert.Equal(t, analytics.Snapshot{Value: 20, Change: -50}, overview.BounceRate)
}

func TestPreviousPeriod(t *testing.T) {
	current := timeframe.Range{
		Start: time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
	}

	previous := analytics.PreviousPeriod(current)

	assert.Equal(t, current.Start, previous.End)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), previous.Start)
	assert.Equal(t, current.Duration(), previous.Duration())
}

func TestPreviousYear(t *testing.T) {
	current := timeframe.Range{
		Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC),
	}

	previous := analytics.PreviousYear(current)

	assert.Equal(t, time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), previous.Start)
	assert.Equal(t, time.Date(2023, 3, 31, 23, 0, 0, 0, time.UTC), previous.End)
}

func TestParsePreset(t *testing.T) {
	testCases := []struct {
		input    string
		expected analytics.ComparisonPreset
		wantErr  bool
	}{
		{"", analytics.PresetPreviousPeriod, false},
		{"previous_period", analytics.PresetPreviousPeriod, false},
		{"previous_year", analytics.PresetPreviousYear, false},
		{"custom", analytics.PresetCustom, false},
		{"last_week", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			preset, err := analytics.ParsePreset(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, preset)
		})
	}
}

func TestComparisonRange(t *testing.T) {
	current := timeframe.Range{
		Start: time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
	}
	custom := timeframe.Range{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}

	assert.Equal(t, analytics.PreviousPeriod(current), analytics.ComparisonRange(analytics.PresetPreviousPeriod, current, custom))
	assert.Equal(t, analytics.PreviousYear(current), analytics.ComparisonRange(analytics.PresetPreviousYear, current, custom))
	assert.Equal(t, custom, analytics.ComparisonRange(analytics.PresetCustom, current, custom))
}
