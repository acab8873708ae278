package insights_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"pagewatch/internal/aggregate"
	"pagewatch/internal/funnel"
	"pagewatch/internal/insights"
)

func dailySeries(counts ...int) []aggregate.DateStat {
	series := make([]aggregate.DateStat, len(counts))
	for i, count := range counts {
		series[i] = aggregate.DateStat{
			Date:  fmt.Sprintf("2026-03-%02d", i+1),
			Count: count,
		}
	}
	return series
}

func TestAnomalyRule(t *testing.T) {
	testCases := []struct {
		name          string
		funnel        []funnel.Stat
		expectAnomaly bool
	}{
		{
			name:          "High inflow and zero conversions raises anomaly",
			funnel:        []funnel.Stat{{Source: "instagram", Inflow: 100, View: 100, Conversion: 0}},
			expectAnomaly: true,
		},
		{
			name:          "Below minimum sample stays quiet",
			funnel:        []funnel.Stat{{Source: "instagram", Inflow: 10, View: 10, Conversion: 0}},
			expectAnomaly: false,
		},
		{
			name:          "Healthy conversion rate stays quiet",
			funnel:        []funnel.Stat{{Source: "instagram", Inflow: 100, View: 100, Conversion: 5}},
			expectAnomaly: false,
		},
		{
			name: "Inflow aggregates across sources",
			funnel: []funnel.Stat{
				{Source: "instagram", Inflow: 30, View: 30, Conversion: 0},
				{Source: "google", Inflow: 40, View: 40, Conversion: 0},
			},
			expectAnomaly: true,
		},
		{
			name:          "Exactly at the minimum sample stays quiet",
			funnel:        []funnel.Stat{{Source: "instagram", Inflow: 50, View: 50, Conversion: 0}},
			expectAnomaly: false,
		},
		{
			name:          "Empty funnel stays quiet",
			funnel:        nil,
			expectAnomaly: false,
		},
	}

	engine := insights.NewEngine()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			report := engine.Generate(insights.Input{Funnel: tc.funnel})
			if tc.expectAnomaly {
				assert.NotEmpty(t, report.Anomaly)
			} else {
				assert.Empty(t, report.Anomaly)
			}
		})
	}
}

func TestTrendSummary(t *testing.T) {
	t.Run("Growth shows up in the summary", func(t *testing.T) {
		// Prior week 7x10, recent week 7x20: +100%
		report := insights.NewEngine().Generate(insights.Input{
			RecentDaily: dailySeries(10, 10, 10, 10, 10, 10, 10, 20, 20, 20, 20, 20, 20, 20),
			Referrers:   []aggregate.BreakdownStat{{Key: "instagram", Count: 140}},
			Devices:     []aggregate.BreakdownStat{{Key: "mobile", Count: 140}},
			TotalViews:  210,
		})
		assert.Contains(t, report.Summary, "up 100.0%")
		assert.Contains(t, report.Summary, "instagram")
		assert.Contains(t, report.Summary, "mobile")
	})

	t.Run("Decline is a signed percentage", func(t *testing.T) {
		report := insights.NewEngine().Generate(insights.Input{
			RecentDaily: dailySeries(20, 20, 20, 20, 20, 20, 20, 10, 10, 10, 10, 10, 10, 10),
		})
		assert.Contains(t, report.Summary, "down 50.0%")
	})

	t.Run("Empty prior period reads as flat", func(t *testing.T) {
		// Only 7 days of history: the prior window sums to zero and the
		// trend must not divide by zero.
		report := insights.NewEngine().Generate(insights.Input{
			RecentDaily: dailySeries(5, 5, 5, 5, 5, 5, 5),
		})
		assert.Contains(t, report.Summary, "flat")
	})

	t.Run("No data at all still produces a summary", func(t *testing.T) {
		report := insights.NewEngine().Generate(insights.Input{})
		assert.NotEmpty(t, report.Summary)
		assert.NotEmpty(t, report.Suggestion)
		assert.Empty(t, report.Anomaly)
	})
}

func TestSuggestionRule(t *testing.T) {
	t.Run("Dominant social channel suggests doubling down", func(t *testing.T) {
		report := insights.NewEngine().Generate(insights.Input{
			Funnel: []funnel.Stat{
				{Source: "instagram", Inflow: 30, View: 30, Conversion: 1},
				{Source: "google", Inflow: 10, View: 10, Conversion: 1},
			},
		})
		assert.Contains(t, report.Suggestion, "instagram")
	})

	t.Run("Dominant search channel falls back to the generic message", func(t *testing.T) {
		report := insights.NewEngine().Generate(insights.Input{
			Funnel: []funnel.Stat{
				{Source: "google", Inflow: 30, View: 30, Conversion: 1},
			},
		})
		assert.NotContains(t, report.Suggestion, "google")
	})

	t.Run("Direct traffic never drives the suggestion", func(t *testing.T) {
		report := insights.NewEngine().Generate(insights.Input{
			Funnel: []funnel.Stat{
				{Source: "direct", Inflow: 100, View: 100, Conversion: 5},
			},
		})
		assert.NotContains(t, report.Suggestion, "direct")
	})
}

func TestCustomThresholds(t *testing.T) {
	engine := insights.NewEngineWithThresholds(5, 10.0)

	report := engine.Generate(insights.Input{
		Funnel: []funnel.Stat{{Source: "instagram", Inflow: 10, View: 10, Conversion: 0}},
	})
	assert.NotEmpty(t, report.Anomaly)

	// Non-positive overrides fall back to defaults
	fallback := insights.NewEngineWithThresholds(0, 0)
	report = fallback.Generate(insights.Input{
		Funnel: []funnel.Stat{{Source: "instagram", Inflow: 10, View: 10, Conversion: 0}},
	})
	assert.Empty(t, report.Anomaly)
}
