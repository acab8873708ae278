// Package funnel joins page-view sessions with the conversion log to
// produce per-source performance records and the coarse
// inflow/view/conversion funnel. Both computations are pure reads; they
// intentionally produce different counts (the funnel ignores sessions) and
// must not be unified.
package funnel

import (
	"sort"

	"pagewatch/internal/events"
	"pagewatch/internal/pkg/referrers"
)

// PageCount is one page tallied within a source's exit or conversion list.
type PageCount struct {
	Page  string `json:"page"`
	Count int    `json:"count"`
}

// SourcePerformance is the per-source session analysis: inflow sessions,
// conversions, conversion rate, and the exit/conversion page
// distributions.
type SourcePerformance struct {
	Source          string      `json:"source"`
	Platform        string      `json:"platform"`
	InflowCount     int         `json:"inflow_count"`
	ConversionCount int         `json:"conversion_count"`
	ConversionRate  float64     `json:"conversion_rate"`
	ExitPages       []PageCount `json:"exit_pages"`
	ConversionPages []PageCount `json:"conversion_pages"`
}

// Stat is one row of the coarse funnel-by-source model. View always equals
// Inflow: every recorded view counts toward both. This mirrors an
// unfinished distinction in the counting model and is preserved as-is.
type Stat struct {
	Source     string `json:"source"`
	Platform   string `json:"platform"`
	Inflow     int    `json:"inflow"`
	View       int    `json:"view"`
	Conversion int    `json:"conversion"`
}

type sourceAccumulator struct {
	platform        string
	inflow          int
	conversions     int
	exitPages       map[string]int
	conversionPages map[string]int
}

// SourcePerformances groups page views into per-user sessions, classifies
// each session by its first event's referrer, and joins the conversion log
// by source. Results are sorted descending by inflow.
func SourcePerformances(evts []events.AnalyticsEvent, conversions []events.ConversionEvent) []SourcePerformance {
	accs := make(map[string]*sourceAccumulator)

	acc := func(c referrers.Classification) *sourceAccumulator {
		a, ok := accs[c.Source]
		if !ok {
			a = &sourceAccumulator{
				platform:        c.Platform,
				exitPages:       make(map[string]int),
				conversionPages: make(map[string]int),
			}
			accs[c.Source] = a
		}
		return a
	}

	for _, session := range sessionsByUser(evts) {
		first := session[0]
		last := session[len(session)-1]
		a := acc(referrers.Classify(first.Referrer))
		a.inflow++
		a.exitPages[last.PagePath]++
	}

	for _, c := range conversions {
		a := acc(referrers.Classify(c.Referrer))
		a.conversions++
		if c.PagePath != "" {
			a.conversionPages[c.PagePath]++
		}
	}

	result := make([]SourcePerformance, 0, len(accs))
	for source, a := range accs {
		rate := 0.0
		if a.inflow > 0 {
			rate = float64(a.conversions) / float64(a.inflow) * 100
		}
		result = append(result, SourcePerformance{
			Source:          source,
			Platform:        a.platform,
			InflowCount:     a.inflow,
			ConversionCount: a.conversions,
			ConversionRate:  rate,
			ExitPages:       sortPageCounts(a.exitPages),
			ConversionPages: sortPageCounts(a.conversionPages),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].InflowCount != result[j].InflowCount {
			return result[i].InflowCount > result[j].InflowCount
		}
		return result[i].Source < result[j].Source
	})
	return result
}

// BySource computes the coarse funnel: every event increments its source's
// inflow and view identically, with no session grouping; every conversion
// increments that source's conversion.
func BySource(evts []events.AnalyticsEvent, conversions []events.ConversionEvent) []Stat {
	stats := make(map[string]*Stat)

	get := func(c referrers.Classification) *Stat {
		s, ok := stats[c.Source]
		if !ok {
			s = &Stat{Source: c.Source, Platform: c.Platform}
			stats[c.Source] = s
		}
		return s
	}

	for _, e := range evts {
		s := get(referrers.Classify(e.Referrer))
		s.Inflow++
		s.View++
	}
	for _, c := range conversions {
		get(referrers.Classify(c.Referrer)).Conversion++
	}

	result := make([]Stat, 0, len(stats))
	for _, s := range stats {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Inflow != result[j].Inflow {
			return result[i].Inflow > result[j].Inflow
		}
		return result[i].Source < result[j].Source
	})
	return result
}

func sortPageCounts(counts map[string]int) []PageCount {
	result := make([]PageCount, 0, len(counts))
	for page, count := range counts {
		result = append(result, PageCount{Page: page, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Page < result[j].Page
	})
	return result
}

func sessionsByUser(evts []events.AnalyticsEvent) [][]events.AnalyticsEvent {
	grouped := make(map[string][]events.AnalyticsEvent)
	var order []string
	for _, e := range evts {
		if _, ok := grouped[e.UserID]; !ok {
			order = append(order, e.UserID)
		}
		grouped[e.UserID] = append(grouped[e.UserID], e)
	}

	result := make([][]events.AnalyticsEvent, 0, len(grouped))
	for _, userID := range order {
		session := grouped[userID]
		sort.SliceStable(session, func(i, j int) bool {
			return session[i].Timestamp.Before(session[j].Timestamp)
		})
		result = append(result, session)
	}
	return result
}
