// Package insights turns aggregated analytics into a short heuristic
// report: a trend summary, a rule-based suggestion and an optional anomaly
// flag. This is deterministic threshold logic, not statistical modeling.
package insights

import (
	"fmt"

	"pagewatch/internal/aggregate"
	"pagewatch/internal/funnel"
	"pagewatch/internal/pkg/referrers"
)

// Default thresholds for the anomaly rule. Configurable, but the defaults
// are part of the behavioral contract.
const (
	// DefaultMinSampleInflow is the minimum aggregate inflow before the
	// low-conversion rule fires at all.
	DefaultMinSampleInflow = 50
	// DefaultConversionFloorPercent is the conversion-rate floor, in
	// percent, below which the anomaly is raised.
	DefaultConversionFloorPercent = 1.0
)

// Input carries the aggregates the report is derived from.
type Input struct {
	RecentDaily []aggregate.DateStat
	Referrers   []aggregate.BreakdownStat
	Devices     []aggregate.BreakdownStat
	Browsers    []aggregate.BreakdownStat
	TotalViews  int64
	Funnel      []funnel.Stat
}

// Report is the generated insight. Anomaly is empty when no anomaly was
// detected.
type Report struct {
	Summary    string `json:"summary"`
	Suggestion string `json:"suggestion"`
	Anomaly    string `json:"anomaly,omitempty"`
}

// Engine generates reports with fixed thresholds.
type Engine struct {
	minSampleInflow        int
	conversionFloorPercent float64
}

// NewEngine returns an engine with the default thresholds.
func NewEngine() *Engine {
	return &Engine{
		minSampleInflow:        DefaultMinSampleInflow,
		conversionFloorPercent: DefaultConversionFloorPercent,
	}
}

// NewEngineWithThresholds returns an engine with custom thresholds.
// Non-positive values fall back to the defaults.
func NewEngineWithThresholds(minSampleInflow int, conversionFloorPercent float64) *Engine {
	e := NewEngine()
	if minSampleInflow > 0 {
		e.minSampleInflow = minSampleInflow
	}
	if conversionFloorPercent > 0 {
		e.conversionFloorPercent = conversionFloorPercent
	}
	return e
}

// Generate produces the report. The trend compares the sum of the last 7
// daily buckets against the prior 7, expressed as a signed percentage
// (zero when the prior period is empty, avoiding division by zero).
func (e *Engine) Generate(input Input) Report {
	trend := weeklyTrendPercent(input.RecentDaily)

	topReferrer := topKey(input.Referrers, referrers.PlatformDirect)
	topDevice := topKey(input.Devices, "desktop")

	summary := fmt.Sprintf(
		"Views over the last 7 days are %s compared to the previous 7 (%d views total). Top referrer source is %q and most visits come from %s devices.",
		describeTrend(trend), input.TotalViews, topReferrer, topDevice)

	suggestion := "Traffic mix looks steady. Keep publishing and monitor the weekly trend."
	if topSource := topFunnelSource(input.Funnel); topSource != "" && referrers.IsSocial(topSource) {
		suggestion = fmt.Sprintf(
			"Your biggest channel is %s. Doubling down on that platform is likely the fastest way to grow inflow.",
			topSource)
	}

	return Report{
		Summary:    summary,
		Suggestion: suggestion,
		Anomaly:    e.detectAnomaly(input.Funnel),
	}
}

// detectAnomaly raises the low-conversion flag only once the sample is
// large enough to mean something.
func (e *Engine) detectAnomaly(stats []funnel.Stat) string {
	var inflow, conversions int
	for _, s := range stats {
		inflow += s.Inflow
		conversions += s.Conversion
	}

	if inflow <= e.minSampleInflow {
		return ""
	}
	rate := float64(conversions) / float64(inflow) * 100
	if rate >= e.conversionFloorPercent {
		return ""
	}

	return fmt.Sprintf(
		"Conversion rate is %.2f%% across %d visits, below the %.1f%% floor. Check that the conversion action is working and visible.",
		rate, inflow, e.conversionFloorPercent)
}

// weeklyTrendPercent compares the last 7 daily buckets with the prior 7.
// RecentDaily is expected in ascending date order.
func weeklyTrendPercent(daily []aggregate.DateStat) float64 {
	recent, prior := 0, 0
	n := len(daily)

	for i := n - 1; i >= 0 && i >= n-7; i-- {
		recent += daily[i].Count
	}
	for i := n - 8; i >= 0 && i >= n-14; i-- {
		prior += daily[i].Count
	}

	if prior == 0 {
		return 0
	}
	return float64(recent-prior) / float64(prior) * 100
}

func describeTrend(percent float64) string {
	switch {
	case percent > 0:
		return fmt.Sprintf("up %.1f%%", percent)
	case percent < 0:
		return fmt.Sprintf("down %.1f%%", -percent)
	default:
		return "flat"
	}
}

func topKey(stats []aggregate.BreakdownStat, fallback string) string {
	if len(stats) == 0 {
		return fallback
	}
	return stats[0].Key
}

// topFunnelSource returns the source with the highest inflow, skipping
// direct and unclassified traffic.
func topFunnelSource(stats []funnel.Stat) string {
	best := ""
	bestInflow := 0
	for _, s := range stats {
		if s.Source == referrers.SourceDirect || s.Source == referrers.SourceOther {
			continue
		}
		if s.Inflow > bestInflow {
			best = s.Source
			bestInflow = s.Inflow
		}
	}
	return best
}
