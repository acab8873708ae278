// Package aggregate computes the read-side breakdowns of the event log.
// Every function is a pure scan over the events it is handed: results are
// recomputed on each call, never cached or incrementally maintained, so a
// read always equals a full recompute.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"pagewatch/internal/events"
	"pagewatch/internal/pkg/referrers"
)

// HourStat is a count bucketed by hour of day.
type HourStat struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// DateStat is a count bucketed by a calendar key (day, week or month).
type DateStat struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// WeekdayStat is a count bucketed by day of week, 0 = Sunday.
type WeekdayStat struct {
	Weekday int `json:"weekday"`
	Count   int `json:"count"`
}

// BreakdownStat is a count bucketed by a categorical key such as a device
// type, browser name or referrer source.
type BreakdownStat struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// ByHour buckets events by their stored hour field, ascending. The hour is
// the one derived at write time, never recomputed from the timestamp.
func ByHour(evts []events.AnalyticsEvent) []HourStat {
	counts := make(map[int]int)
	for _, e := range evts {
		counts[e.Hour]++
	}

	result := make([]HourStat, 0, len(counts))
	for hour, count := range counts {
		result = append(result, HourStat{Hour: hour, Count: count})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Hour < result[j].Hour })
	return result
}

// ByDay buckets events by calendar date, ascending.
func ByDay(evts []events.AnalyticsEvent) []DateStat {
	return byDateKey(evts, func(t time.Time) string {
		return t.Format("2006-01-02")
	})
}

// ByWeek buckets events by week string, ascending.
func ByWeek(evts []events.AnalyticsEvent) []DateStat {
	return byDateKey(evts, WeekKey)
}

// ByMonth buckets events by calendar month, ascending.
func ByMonth(evts []events.AnalyticsEvent) []DateStat {
	return byDateKey(evts, func(t time.Time) string {
		return t.Format("2006-01")
	})
}

// ByDayOfWeek buckets events by their stored day-of-week field, ascending.
func ByDayOfWeek(evts []events.AnalyticsEvent) []WeekdayStat {
	counts := make(map[int]int)
	for _, e := range evts {
		counts[e.DayOfWeek]++
	}

	result := make([]WeekdayStat, 0, len(counts))
	for weekday, count := range counts {
		result = append(result, WeekdayStat{Weekday: weekday, Count: count})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Weekday < result[j].Weekday })
	return result
}

// ByDevice buckets events by device type, descending by count.
func ByDevice(evts []events.AnalyticsEvent) []BreakdownStat {
	return byCategoricalKey(evts, func(e events.AnalyticsEvent) string {
		return e.DeviceType
	})
}

// ByBrowser buckets events by browser, descending by count.
func ByBrowser(evts []events.AnalyticsEvent) []BreakdownStat {
	return byCategoricalKey(evts, func(e events.AnalyticsEvent) string {
		return e.Browser
	})
}

// ByReferrerSource buckets events by classified referrer source,
// descending by count.
func ByReferrerSource(evts []events.AnalyticsEvent) []BreakdownStat {
	return byCategoricalKey(evts, func(e events.AnalyticsEvent) string {
		return referrers.Classify(e.Referrer).Source
	})
}

// WeekKey formats a timestamp as YYYY-Www where ww is
// ceil(dayOfYear / 7), zero padded. This is a deliberately naive week
// approximation, not an ISO week: it can exceed 52/53 at year boundaries,
// and downstream comparisons assume exactly this format.
func WeekKey(t time.Time) string {
	week := (t.YearDay() + 6) / 7
	return fmt.Sprintf("%d-W%02d", t.Year(), week)
}

func byDateKey(evts []events.AnalyticsEvent, key func(time.Time) string) []DateStat {
	counts := make(map[string]int)
	for _, e := range evts {
		counts[key(e.Timestamp)]++
	}

	result := make([]DateStat, 0, len(counts))
	for date, count := range counts {
		result = append(result, DateStat{Date: date, Count: count})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result
}

func byCategoricalKey(evts []events.AnalyticsEvent, key func(events.AnalyticsEvent) string) []BreakdownStat {
	counts := make(map[string]int)
	for _, e := range evts {
		counts[key(e)]++
	}

	result := make([]BreakdownStat, 0, len(counts))
	for k, count := range counts {
		result = append(result, BreakdownStat{Key: k, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Key < result[j].Key
	})
	return result
}
